package viewmodel

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tomodachi/internal/domain/user"

	"github.com/google/uuid"
)

const (
	primarySearchCap  = 10
	fallbackSearchCap = 20
)

// SearchProfiles runs the two-pass directory search and returns ranked
// matches, always excluding the searching user.
//
// Primary pass: a username range query lower-bounded by the query (cap 10),
// filtered client-side to usernames containing the query as a substring.
// Ranking: online users first; within the same online state, earlier
// substring match wins; ties keep arrival order.
//
// Fallback pass, only when the primary pass finds nothing: a broader
// unfiltered page (cap 20) matched case-insensitively against displayName OR
// username. Best effort by construction; matches beyond the caps are missed.
func SearchProfiles(ctx context.Context, dir Directory, selfID uuid.UUID, query string) ([]user.Profile, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	page, err := dir.UsernameRange(ctx, query, primarySearchCap)
	if err != nil {
		return nil, err
	}

	var matches []user.Profile
	for _, p := range page {
		if p.ID == selfID {
			continue
		}
		if strings.Contains(p.Username, query) {
			matches = append(matches, p)
		}
	}

	if len(matches) > 0 {
		rankMatches(matches, query)
		return matches, nil
	}

	broad, err := dir.BrowseProfiles(ctx, fallbackSearchCap)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(matches))
	for _, p := range matches {
		seen[p.ID] = true
	}
	for _, p := range broad {
		if p.ID == selfID || seen[p.ID] {
			continue
		}
		if strings.Contains(strings.ToLower(p.Username), query) ||
			strings.Contains(strings.ToLower(p.DisplayName), query) {
			matches = append(matches, p)
			seen[p.ID] = true
		}
	}

	rankMatches(matches, query)
	return matches, nil
}

// rankMatches orders online-first, then by ascending first-match index,
// keeping arrival order for ties.
func rankMatches(matches []user.Profile, query string) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.IsOnline != b.IsOnline {
			return a.IsOnline
		}
		return matchIndex(a, query) < matchIndex(b, query)
	})
}

func matchIndex(p user.Profile, query string) int {
	if idx := strings.Index(strings.ToLower(p.Username), query); idx >= 0 {
		return idx
	}
	if idx := strings.Index(strings.ToLower(p.DisplayName), query); idx >= 0 {
		return idx
	}
	return len(p.Username) + len(p.DisplayName)
}

// SearchView holds search state for a view: the last query and its results.
// Queries are serialized per view; a result set belonging to a superseded
// query is dropped.
type SearchView struct {
	dir  Directory
	self uuid.UUID

	mu      sync.Mutex
	seq     int
	query   string
	results []user.Profile
}

func NewSearchView(dir Directory, self uuid.UUID) *SearchView {
	return &SearchView{dir: dir, self: self}
}

// Query runs a search and installs its results unless a newer query has
// started meanwhile.
func (v *SearchView) Query(ctx context.Context, query string) ([]user.Profile, error) {
	v.mu.Lock()
	v.seq++
	seq := v.seq
	v.query = query
	v.mu.Unlock()

	results, err := SearchProfiles(ctx, v.dir, v.self, query)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	if v.seq == seq {
		v.results = results
	}
	v.mu.Unlock()
	return results, nil
}

func (v *SearchView) Results() []user.Profile {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.results
}

// Clear drops the current query and results.
func (v *SearchView) Clear() {
	v.mu.Lock()
	v.seq++
	v.query = ""
	v.results = nil
	v.mu.Unlock()
}
