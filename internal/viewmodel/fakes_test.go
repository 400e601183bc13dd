package viewmodel

import (
	"context"
	"sync"

	"tomodachi/internal/domain/user"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

// fakeSub counts Close calls.
type fakeSub struct {
	mu     sync.Mutex
	closed int
}

func (s *fakeSub) Close() {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
}

func (s *fakeSub) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeChatFeed hands the caller its push function so tests drive snapshots
// manually.
type fakeChatFeed struct {
	mu   sync.Mutex
	push func([]ChatSnapshot)
	sub  *fakeSub
	err  error
}

func (f *fakeChatFeed) SubscribeChats(ctx context.Context, userID uuid.UUID, fn func([]ChatSnapshot)) (Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.push = fn
	if f.sub == nil {
		f.sub = &fakeSub{}
	}
	sub := f.sub
	f.mu.Unlock()
	return sub, nil
}

func (f *fakeChatFeed) emit(snapshot []ChatSnapshot) {
	f.mu.Lock()
	fn := f.push
	f.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

// fakeProfileFeed tracks one push function and one subscription per user id.
type fakeProfileFeed struct {
	mu    sync.Mutex
	push  map[uuid.UUID]func(user.Profile)
	subs  map[uuid.UUID]*fakeSub
	err   error
	count int
}

func newFakeProfileFeed() *fakeProfileFeed {
	return &fakeProfileFeed{
		push: make(map[uuid.UUID]func(user.Profile)),
		subs: make(map[uuid.UUID]*fakeSub),
	}
}

func (f *fakeProfileFeed) SubscribeProfile(ctx context.Context, userID uuid.UUID, fn func(user.Profile)) (Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	f.push[userID] = fn
	sub := &fakeSub{}
	f.subs[userID] = sub
	return sub, nil
}

func (f *fakeProfileFeed) emit(userID uuid.UUID, p user.Profile) {
	f.mu.Lock()
	fn := f.push[userID]
	f.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (f *fakeProfileFeed) subFor(userID uuid.UUID) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[userID]
}

func (f *fakeProfileFeed) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// fakeMessageFeed mirrors fakeChatFeed for message snapshots.
type fakeMessageFeed struct {
	mu   sync.Mutex
	push func([]MessageSnapshot)
	subs []*fakeSub
	err  error
}

func (f *fakeMessageFeed) SubscribeMessages(ctx context.Context, actorID, chatID uuid.UUID, fn func([]MessageSnapshot)) (Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.push = fn
	sub := &fakeSub{}
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

func (f *fakeMessageFeed) emit(snapshot []MessageSnapshot) {
	f.mu.Lock()
	fn := f.push
	f.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

func (f *fakeMessageFeed) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// fakeWriter records every write-side call and lets tests force failures.
type fakeWriter struct {
	mu sync.Mutex

	ensureErr  error
	sendErr    error
	markErr    error
	ensuredID  uuid.UUID
	ensures    int
	sent       []string
	markedRead []uuid.UUID
}

func (w *fakeWriter) EnsureChat(ctx context.Context, actorID, recipientID uuid.UUID) (uuid.UUID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ensureErr != nil {
		return uuid.Nil, w.ensureErr
	}
	w.ensures++
	if w.ensuredID == uuid.Nil {
		w.ensuredID = uuid.New()
	}
	return w.ensuredID, nil
}

func (w *fakeWriter) SendMessage(ctx context.Context, actorID, chatID uuid.UUID, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sendErr != nil {
		return w.sendErr
	}
	w.sent = append(w.sent, text)
	return nil
}

func (w *fakeWriter) MarkRead(ctx context.Context, actorID, chatID, messageID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.markErr != nil {
		return w.markErr
	}
	w.markedRead = append(w.markedRead, messageID)
	return nil
}

func (w *fakeWriter) sentTexts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.sent))
	copy(out, w.sent)
	return out
}

func (w *fakeWriter) marked() []uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]uuid.UUID, len(w.markedRead))
	copy(out, w.markedRead)
	return out
}

func (w *fakeWriter) ensureCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ensures
}

// fakeDirectory serves canned profiles, sorted by username for the range pass.
type fakeDirectory struct {
	profiles []user.Profile
}

func (d *fakeDirectory) UsernameRange(ctx context.Context, from string, limit int) ([]user.Profile, error) {
	sorted := make([]user.Profile, len(d.profiles))
	copy(sorted, d.profiles)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Username < sorted[j-1].Username; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	out := make([]user.Profile, 0, limit)
	for _, p := range sorted {
		if p.Username >= from {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) BrowseProfiles(ctx context.Context, limit int) ([]user.Profile, error) {
	if len(d.profiles) <= limit {
		return d.profiles, nil
	}
	return d.profiles[:limit], nil
}
