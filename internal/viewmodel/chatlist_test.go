package viewmodel

import (
	"context"
	"testing"
	"time"

	"tomodachi/internal/domain"
	"tomodachi/internal/domain/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatSnap(recipient uuid.UUID, updatedAt time.Time, last *LastMessageSnapshot) ChatSnapshot {
	return ChatSnapshot{
		ID:          uuid.New(),
		RecipientID: recipient,
		UpdatedAt:   domain.FromTime(updatedAt),
		LastMessage: last,
	}
}

func TestChatListSortsByRecency(t *testing.T) {
	me := uuid.New()
	chats := &fakeChatFeed{}
	profiles := newFakeProfileFeed()
	list := NewChatList(me, chats, profiles, testLogger())
	require.NoError(t, list.Open(context.Background()))
	defer list.Close()

	// Mixed wire forms: ordering must hold across both timestamp kinds.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := chatSnap(uuid.New(), base, nil)
	newer := chatSnap(uuid.New(), base.Add(time.Hour), nil)
	newer.UpdatedAt = domain.FromISO(base.Add(time.Hour).Format(time.RFC3339Nano))
	newest := chatSnap(uuid.New(), base.Add(2*time.Hour), nil)

	chats.emit([]ChatSnapshot{old, newest, newer})

	entries := list.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, newest.ID, entries[0].Chat.ID)
	assert.Equal(t, newer.ID, entries[1].Chat.ID)
	assert.Equal(t, old.ID, entries[2].Chat.ID)
}

func TestChatListUnreadFlag(t *testing.T) {
	me := uuid.New()
	other := uuid.New()
	chats := &fakeChatFeed{}
	profiles := newFakeProfileFeed()
	list := NewChatList(me, chats, profiles, testLogger())
	require.NoError(t, list.Open(context.Background()))
	defer list.Close()

	now := time.Now()
	fromOtherUnread := chatSnap(other, now, &LastMessageSnapshot{
		Text: "hey", SenderID: other, Timestamp: domain.FromTime(now), Read: false,
	})
	fromOtherRead := chatSnap(uuid.New(), now.Add(-time.Minute), &LastMessageSnapshot{
		Text: "ok", SenderID: other, Timestamp: domain.FromTime(now), Read: true,
	})
	fromMeUnread := chatSnap(uuid.New(), now.Add(-2*time.Minute), &LastMessageSnapshot{
		Text: "sent", SenderID: me, Timestamp: domain.FromTime(now), Read: false,
	})
	noMessages := chatSnap(uuid.New(), now.Add(-3*time.Minute), nil)

	chats.emit([]ChatSnapshot{fromOtherUnread, fromOtherRead, fromMeUnread, noMessages})

	entries := list.Entries()
	require.Len(t, entries, 4)
	assert.True(t, entries[0].Unread, "incoming unread message must flag the chat")
	assert.False(t, entries[1].Unread, "read message must not flag")
	assert.False(t, entries[2].Unread, "own message must never flag")
	assert.False(t, entries[3].Unread, "empty chat must not flag")
}

func TestChatListReadFlipClearsBadgeWithoutReorder(t *testing.T) {
	me := uuid.New()
	a, b := uuid.New(), uuid.New()
	chats := &fakeChatFeed{}
	profiles := newFakeProfileFeed()
	list := NewChatList(me, chats, profiles, testLogger())
	require.NoError(t, list.Open(context.Background()))
	defer list.Close()

	now := time.Now()
	top := chatSnap(a, now, &LastMessageSnapshot{Text: "hi", SenderID: a, Timestamp: domain.FromTime(now)})
	bottom := chatSnap(b, now.Add(-time.Hour), nil)
	chats.emit([]ChatSnapshot{top, bottom})

	require.True(t, list.Entries()[0].Unread)

	// The read receipt arrives as a fresh snapshot with the same recency.
	topRead := top
	topRead.LastMessage = &LastMessageSnapshot{Text: "hi", SenderID: a, Timestamp: domain.FromTime(now), Read: true}
	chats.emit([]ChatSnapshot{topRead, bottom})

	entries := list.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, top.ID, entries[0].Chat.ID, "order must not change on a read flip")
	assert.False(t, entries[0].Unread)
}

func TestChatListMergesProfileUpdates(t *testing.T) {
	me := uuid.New()
	other := uuid.New()
	chats := &fakeChatFeed{}
	profiles := newFakeProfileFeed()
	list := NewChatList(me, chats, profiles, testLogger())
	require.NoError(t, list.Open(context.Background()))
	defer list.Close()

	chats.emit([]ChatSnapshot{chatSnap(other, time.Now(), nil)})

	profiles.emit(other, user.Profile{ID: other, Username: "anna", DisplayName: "Anna K", IsOnline: true})

	entries := list.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "anna", entries[0].Recipient.Username)
	assert.True(t, entries[0].Recipient.IsOnline)

	// Presence flips are patch-merged without touching the chat snapshot.
	profiles.emit(other, user.Profile{ID: other, Username: "anna", DisplayName: "Anna K", IsOnline: false})
	assert.False(t, list.Entries()[0].Recipient.IsOnline)
}

func TestChatListClosesSubscriptionsForDepartedRecipients(t *testing.T) {
	me := uuid.New()
	staying, leaving := uuid.New(), uuid.New()
	chats := &fakeChatFeed{}
	profiles := newFakeProfileFeed()
	list := NewChatList(me, chats, profiles, testLogger())
	require.NoError(t, list.Open(context.Background()))
	defer list.Close()

	now := time.Now()
	chats.emit([]ChatSnapshot{chatSnap(staying, now, nil), chatSnap(leaving, now, nil)})
	require.Equal(t, 2, profiles.subscribeCount())

	chats.emit([]ChatSnapshot{chatSnap(staying, now, nil)})

	assert.Equal(t, 1, profiles.subFor(leaving).closeCount())
	assert.Equal(t, 0, profiles.subFor(staying).closeCount())
}

func TestChatListCloseTearsDownEverything(t *testing.T) {
	me := uuid.New()
	a, b := uuid.New(), uuid.New()
	chats := &fakeChatFeed{}
	profiles := newFakeProfileFeed()
	list := NewChatList(me, chats, profiles, testLogger())
	require.NoError(t, list.Open(context.Background()))

	now := time.Now()
	chats.emit([]ChatSnapshot{chatSnap(a, now, nil), chatSnap(b, now, nil)})

	list.Close()
	list.Close() // idempotent

	assert.Equal(t, 1, chats.sub.closeCount())
	assert.Equal(t, 1, profiles.subFor(a).closeCount())
	assert.Equal(t, 1, profiles.subFor(b).closeCount())

	// Snapshots after Close are ignored.
	chats.emit([]ChatSnapshot{chatSnap(uuid.New(), now, nil)})
	assert.Len(t, list.Entries(), 2)
}
