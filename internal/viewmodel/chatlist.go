package viewmodel

import (
	"context"
	"sort"
	"sync"

	"tomodachi/internal/domain/user"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

// ChatListEntry is one row of the rendered chat list: the chat snapshot plus
// the recipient's resolved profile and the derived unread flag.
type ChatListEntry struct {
	Chat      ChatSnapshot `json:"chat"`
	Recipient user.Profile `json:"recipient"`
	// Unread is set when the last message exists, was sent by the other
	// side, and has not been read yet.
	Unread bool `json:"unread"`
}

// ChatList is the live view over all chats of one user. Every chat snapshot
// replaces the list wholesale and re-sorts it by recency; recipient profiles
// arrive on their own subscriptions and are patch-merged into a map so
// concurrent profile updates cannot clobber each other's rebuilds.
type ChatList struct {
	me       uuid.UUID
	chats    ChatFeed
	profiles ProfileFeed
	log      *logger.Logger

	mu          sync.Mutex
	snapshot    []ChatSnapshot
	recipients  map[uuid.UUID]user.Profile
	profileSubs map[uuid.UUID]Subscription
	chatSub     Subscription
	listener    func([]ChatListEntry)
	closed      bool
}

func NewChatList(me uuid.UUID, chats ChatFeed, profiles ProfileFeed, log *logger.Logger) *ChatList {
	return &ChatList{
		me:          me,
		chats:       chats,
		profiles:    profiles,
		log:         log,
		recipients:  make(map[uuid.UUID]user.Profile),
		profileSubs: make(map[uuid.UUID]Subscription),
	}
}

// OnChange registers the render callback. It fires with the full entry list
// after every rebuild. Must be set before Open.
func (l *ChatList) OnChange(fn func([]ChatListEntry)) {
	l.mu.Lock()
	l.listener = fn
	l.mu.Unlock()
}

// Open starts the chat subscription. The profile subscriptions it spawns are
// strictly nested inside it: Close tears all of them down.
func (l *ChatList) Open(ctx context.Context) error {
	sub, err := l.chats.SubscribeChats(ctx, l.me, func(snapshot []ChatSnapshot) {
		l.applySnapshot(ctx, snapshot)
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		sub.Close()
		return nil
	}
	l.chatSub = sub
	l.mu.Unlock()
	return nil
}

func (l *ChatList) applySnapshot(ctx context.Context, snapshot []ChatSnapshot) {
	// Replace, never patch: the latest snapshot is authoritative.
	sorted := make([]ChatSnapshot, len(snapshot))
	copy(sorted, snapshot)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.Resolve().After(sorted[j].UpdatedAt.Resolve())
	})

	wanted := make(map[uuid.UUID]bool, len(sorted))
	for _, c := range sorted {
		wanted[c.RecipientID] = true
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.snapshot = sorted

	var toOpen []uuid.UUID
	for id := range wanted {
		if _, ok := l.profileSubs[id]; !ok {
			l.profileSubs[id] = nil // reserve before unlocking
			toOpen = append(toOpen, id)
		}
	}

	// Drop subscriptions for recipients that left the list.
	var toClose []Subscription
	for id, sub := range l.profileSubs {
		if !wanted[id] && sub != nil {
			toClose = append(toClose, sub)
			delete(l.profileSubs, id)
			delete(l.recipients, id)
		}
	}
	l.mu.Unlock()

	for _, sub := range toClose {
		sub.Close()
	}

	for _, id := range toOpen {
		recipientID := id
		sub, err := l.profiles.SubscribeProfile(ctx, recipientID, func(p user.Profile) {
			l.mergeProfile(recipientID, p)
		})
		if err != nil {
			l.log.Warnf("profile subscription failed for %s: %v", recipientID, err)
			l.mu.Lock()
			delete(l.profileSubs, recipientID)
			l.mu.Unlock()
			continue
		}
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			sub.Close()
			return
		}
		l.profileSubs[recipientID] = sub
		l.mu.Unlock()
	}

	l.notify()
}

// mergeProfile patches a single recipient into the map. Only that entry
// changes; the chat snapshot is untouched.
func (l *ChatList) mergeProfile(id uuid.UUID, p user.Profile) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.recipients[id] = p
	l.mu.Unlock()
	l.notify()
}

// Entries returns the current rendered list, recency first.
func (l *ChatList) Entries() []ChatListEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buildLocked()
}

func (l *ChatList) buildLocked() []ChatListEntry {
	entries := make([]ChatListEntry, 0, len(l.snapshot))
	for _, c := range l.snapshot {
		entry := ChatListEntry{Chat: c}
		if p, ok := l.recipients[c.RecipientID]; ok {
			entry.Recipient = p
		}
		if c.LastMessage != nil && c.LastMessage.SenderID != l.me && !c.LastMessage.Read {
			entry.Unread = true
		}
		entries = append(entries, entry)
	}
	return entries
}

func (l *ChatList) notify() {
	l.mu.Lock()
	fn := l.listener
	var entries []ChatListEntry
	if fn != nil {
		entries = l.buildLocked()
	}
	l.mu.Unlock()
	if fn != nil {
		fn(entries)
	}
}

// Close tears down the chat subscription and every profile subscription it
// opened. Idempotent.
func (l *ChatList) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	chatSub := l.chatSub
	subs := make([]Subscription, 0, len(l.profileSubs))
	for _, sub := range l.profileSubs {
		if sub != nil {
			subs = append(subs, sub)
		}
	}
	l.profileSubs = map[uuid.UUID]Subscription{}
	l.mu.Unlock()

	if chatSub != nil {
		chatSub.Close()
	}
	for _, sub := range subs {
		sub.Close()
	}
}
