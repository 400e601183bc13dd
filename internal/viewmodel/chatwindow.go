package viewmodel

import (
	"context"
	"strings"
	"sync"
	"time"

	"tomodachi/internal/domain"
	"tomodachi/internal/domain/user"
	tomodachi_errors "tomodachi/pkg/errors"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

// Phase is the chat window's load state. It resets to Empty whenever the
// chat id changes.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseLoading
	PhaseReady
)

// EntryKind discriminates confirmed store messages from optimistic local
// placeholders awaiting confirmation.
type EntryKind int

const (
	EntryConfirmed EntryKind = iota + 1
	EntryPending
)

// Entry is one message row. Pending entries carry a client-generated id and
// a client-side timestamp until the store's copy arrives.
type Entry struct {
	Kind    EntryKind       `json:"kind"`
	LocalID uuid.UUID       `json:"local_id,omitempty"`
	Message MessageSnapshot `json:"message"`
}

// Item is one rendered row: either a date separator or a message entry.
type Item struct {
	Separator bool      `json:"separator,omitempty"`
	Day       time.Time `json:"day,omitempty"`
	Entry     Entry     `json:"entry,omitempty"`
}

// pendingMatchWindow bounds how far a confirmed message's server timestamp
// may drift from the pending entry's client timestamp and still count as the
// same message.
const pendingMatchWindow = 2 * time.Minute

// ChatWindow is the live view over one open conversation. It owns exactly
// one message subscription at a time; switching chats closes the old one and
// resets all local state.
//
// The recipient profile is kept live via subscription rather than a point
// read, so the header's online indicator tracks presence instead of showing
// the status from open time.
type ChatWindow struct {
	me       uuid.UUID
	writer   ChatWriter
	messages MessageFeed
	profiles ProfileFeed
	log      *logger.Logger

	mu          sync.Mutex
	phase       Phase
	chatID      uuid.UUID
	recipientID uuid.UUID
	recipient   user.Profile
	confirmed   []MessageSnapshot
	pending     []Entry
	draft       string
	msgSub      Subscription
	profileSub  Subscription
	listener    func()
	closed      bool
}

func NewChatWindow(me uuid.UUID, writer ChatWriter, messages MessageFeed, profiles ProfileFeed, log *logger.Logger) *ChatWindow {
	return &ChatWindow{
		me:       me,
		writer:   writer,
		messages: messages,
		profiles: profiles,
		log:      log,
	}
}

// OnChange registers the render callback, fired after every state change.
func (w *ChatWindow) OnChange(fn func()) {
	w.mu.Lock()
	w.listener = fn
	w.mu.Unlock()
}

// SetChat points the window at a conversation. chatID may be Nil when the
// conversation has no chat yet (it is created lazily on first send). All
// local state from the previous chat is dropped.
func (w *ChatWindow) SetChat(ctx context.Context, chatID, recipientID uuid.UUID) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	oldMsgSub := w.msgSub
	oldProfileSub := w.profileSub
	w.msgSub = nil
	w.profileSub = nil
	w.chatID = chatID
	w.recipientID = recipientID
	w.recipient = user.Profile{}
	w.confirmed = nil
	w.pending = nil
	w.phase = PhaseEmpty
	w.mu.Unlock()

	if oldMsgSub != nil {
		oldMsgSub.Close()
	}
	if oldProfileSub != nil {
		oldProfileSub.Close()
	}

	if recipientID != uuid.Nil {
		sub, err := w.profiles.SubscribeProfile(ctx, recipientID, func(p user.Profile) {
			w.mu.Lock()
			if w.closed || w.recipientID != recipientID {
				w.mu.Unlock()
				return
			}
			w.recipient = p
			w.mu.Unlock()
			w.notify()
		})
		if err != nil {
			w.log.Warnf("recipient profile subscription failed for %s: %v", recipientID, err)
		} else {
			w.adoptProfileSub(recipientID, sub)
		}
	}

	if chatID == uuid.Nil {
		w.notify()
		return nil
	}
	return w.openMessages(ctx, chatID)
}

func (w *ChatWindow) adoptProfileSub(recipientID uuid.UUID, sub Subscription) {
	w.mu.Lock()
	if w.closed || w.recipientID != recipientID {
		w.mu.Unlock()
		sub.Close()
		return
	}
	w.profileSub = sub
	w.mu.Unlock()
}

func (w *ChatWindow) openMessages(ctx context.Context, chatID uuid.UUID) error {
	w.mu.Lock()
	w.phase = PhaseLoading
	w.mu.Unlock()
	w.notify()

	sub, err := w.messages.SubscribeMessages(ctx, w.me, chatID, func(snapshot []MessageSnapshot) {
		w.applySnapshot(ctx, chatID, snapshot)
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed || w.chatID != chatID {
		w.mu.Unlock()
		sub.Close()
		return nil
	}
	w.msgSub = sub
	w.mu.Unlock()
	return nil
}

func (w *ChatWindow) applySnapshot(ctx context.Context, chatID uuid.UUID, snapshot []MessageSnapshot) {
	var toMark []uuid.UUID

	w.mu.Lock()
	if w.closed || w.chatID != chatID {
		w.mu.Unlock()
		return
	}
	w.confirmed = snapshot
	w.phase = PhaseReady
	w.reconcilePendingLocked()

	for _, m := range snapshot {
		if m.SenderID != w.me && !m.Read {
			toMark = append(toMark, m.ID)
		}
	}
	w.mu.Unlock()

	// Read receipts are fire-and-forget: failures are logged, never
	// retried, and never block the snapshot.
	for _, id := range toMark {
		messageID := id
		go func() {
			if err := w.writer.MarkRead(ctx, w.me, chatID, messageID); err != nil {
				w.log.Warnf("read receipt failed for message %s: %v", messageID, err)
			}
		}()
	}

	w.notify()
}

// reconcilePendingLocked removes pending entries whose confirmed counterpart
// has arrived: same sender, same text, server timestamp within the match
// window of the client timestamp.
func (w *ChatWindow) reconcilePendingLocked() {
	if len(w.pending) == 0 {
		return
	}
	kept := w.pending[:0]
	for _, p := range w.pending {
		matched := false
		for _, m := range w.confirmed {
			if m.SenderID != p.Message.SenderID || m.Text != p.Message.Text {
				continue
			}
			delta := m.Timestamp.Resolve().Sub(p.Message.Timestamp.Resolve())
			if delta < 0 {
				delta = -delta
			}
			if delta <= pendingMatchWindow {
				matched = true
				break
			}
		}
		if !matched {
			kept = append(kept, p)
		}
	}
	w.pending = kept
}

// Send validates and submits the draft. When no chat exists yet it creates
// one synchronously and adopts its id. An optimistic pending entry appears
// immediately; on write failure it is removed and the text is restored into
// the draft for retry.
func (w *ChatWindow) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return tomodachi_errors.ErrInvalidInput
	}
	if w.me == uuid.Nil {
		return tomodachi_errors.ErrUnauthorized
	}

	w.mu.Lock()
	chatID := w.chatID
	recipientID := w.recipientID
	w.mu.Unlock()

	if chatID == uuid.Nil {
		if recipientID == uuid.Nil {
			return tomodachi_errors.ErrInvalidInput
		}
		created, err := w.writer.EnsureChat(ctx, w.me, recipientID)
		if err != nil {
			return err
		}
		w.mu.Lock()
		adopted := w.recipientID == recipientID && w.chatID == uuid.Nil && !w.closed
		if adopted {
			w.chatID = created
		}
		w.mu.Unlock()
		if !adopted {
			return nil
		}
		chatID = created
		if err := w.openMessages(ctx, chatID); err != nil {
			w.log.Warnf("message subscription failed for chat %s: %v", chatID, err)
		}
	}

	entry := Entry{
		Kind:    EntryPending,
		LocalID: uuid.New(),
		Message: MessageSnapshot{
			SenderID:  w.me,
			Text:      text,
			Timestamp: domain.FromISO(time.Now().UTC().Format(time.RFC3339Nano)),
		},
	}

	w.mu.Lock()
	w.pending = append(w.pending, entry)
	w.draft = ""
	w.mu.Unlock()
	w.notify()

	if err := w.writer.SendMessage(ctx, w.me, chatID, text); err != nil {
		w.mu.Lock()
		kept := w.pending[:0]
		for _, p := range w.pending {
			if p.LocalID != entry.LocalID {
				kept = append(kept, p)
			}
		}
		w.pending = kept
		if w.draft == "" {
			w.draft = text
		}
		w.mu.Unlock()
		w.notify()
		return err
	}
	return nil
}

// Items returns the rendered rows: confirmed messages first (already in
// timestamp order), pending entries after them, with a date separator before
// the first message of each calendar day.
func (w *ChatWindow) Items() []Item {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := make([]Entry, 0, len(w.confirmed)+len(w.pending))
	for _, m := range w.confirmed {
		entries = append(entries, Entry{Kind: EntryConfirmed, Message: m})
	}
	entries = append(entries, w.pending...)

	items := make([]Item, 0, len(entries)*2)
	var prev domain.Timestamp
	for i, e := range entries {
		if i == 0 || !e.Message.Timestamp.SameDay(prev) {
			day := e.Message.Timestamp.Resolve().Truncate(24 * time.Hour)
			items = append(items, Item{Separator: true, Day: day})
		}
		items = append(items, Item{Entry: e})
		prev = e.Message.Timestamp
	}
	return items
}

func (w *ChatWindow) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

func (w *ChatWindow) ChatID() uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chatID
}

func (w *ChatWindow) Recipient() user.Profile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recipient
}

func (w *ChatWindow) Draft() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *ChatWindow) SetDraft(text string) {
	w.mu.Lock()
	w.draft = text
	w.mu.Unlock()
}

func (w *ChatWindow) notify() {
	w.mu.Lock()
	fn := w.listener
	w.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close tears down both subscriptions. Idempotent.
func (w *ChatWindow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	msgSub := w.msgSub
	profileSub := w.profileSub
	w.msgSub = nil
	w.profileSub = nil
	w.mu.Unlock()

	if msgSub != nil {
		msgSub.Close()
	}
	if profileSub != nil {
		profileSub.Close()
	}
}
