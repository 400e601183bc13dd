package services

import (
	"context"
	"sync"
	"time"

	"tomodachi/internal/domain/chat"
	"tomodachi/internal/domain/user"
	"tomodachi/internal/events"
	tomodachi_errors "tomodachi/pkg/errors"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

// memPublisher records everything published, keyed by channel.
type memPublisher struct {
	mu       sync.Mutex
	byChan   map[string][][]byte
	failWith error
}

func newMemPublisher() *memPublisher {
	return &memPublisher{byChan: make(map[string][][]byte)}
}

func (p *memPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.byChan[channel] = append(p.byChan[channel], payload)
	return nil
}

func (p *memPublisher) countFor(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byChan[channel])
}

func testBus(p *memPublisher) *events.Bus {
	return events.NewBus(p)
}

// memUserRepo is an in-memory UserRepository.
type memUserRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]user.User
	sessions map[uuid.UUID]user.UserSession
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:    make(map[uuid.UUID]user.User),
		sessions: make(map[uuid.UUID]user.UserSession),
	}
}

func (r *memUserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return tomodachi_errors.ErrAlreadyExists
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.User{}, tomodachi_errors.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, tomodachi_errors.ErrNotFound
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, tomodachi_errors.ErrNotFound
}

func (r *memUserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, bio, photoURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return tomodachi_errors.ErrNotFound
	}
	u.DisplayName = displayName
	u.Bio = bio
	u.PhotoURL = photoURL
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return nil
}

func (r *memUserRepo) SetOnline(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return tomodachi_errors.ErrNotFound
	}
	u.IsOnline = true
	r.users[id] = u
	return nil
}

func (r *memUserRepo) SetOffline(ctx context.Context, id uuid.UUID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return tomodachi_errors.ErrNotFound
	}
	u.IsOnline = false
	u.LastSeenAt.Valid = true
	u.LastSeenAt.Time = lastSeen
	r.users[id] = u
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return tomodachi_errors.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) UsernameRange(ctx context.Context, from string, limit int) ([]user.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []user.Profile
	for _, u := range r.users {
		if u.Username >= from {
			out = append(out, u.ToProfile())
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memUserRepo) BrowseProfiles(ctx context.Context, limit int) ([]user.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []user.Profile
	for _, u := range r.users {
		out = append(out, u.ToProfile())
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memUserRepo) CreateSession(ctx context.Context, s *user.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *memUserRepo) GetSessionByID(ctx context.Context, id uuid.UUID) (user.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return user.UserSession{}, tomodachi_errors.ErrNotFound
	}
	return s, nil
}

func (r *memUserRepo) UpdateSession(ctx context.Context, s user.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return tomodachi_errors.ErrNotFound
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *memUserRepo) RevokeSession(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return tomodachi_errors.ErrNotFound
	}
	s.IsRevoked = true
	r.sessions[id] = s
	return nil
}

func (r *memUserRepo) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			s.IsRevoked = true
			r.sessions[id] = s
		}
	}
	return nil
}

// memChatRepo is an in-memory ChatRepository keyed like the table: by id,
// with a unique index on pair key.
type memChatRepo struct {
	mu        sync.Mutex
	chats     map[uuid.UUID]chat.Chat
	byPairKey map[string]uuid.UUID
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{
		chats:     make(map[uuid.UUID]chat.Chat),
		byPairKey: make(map[string]uuid.UUID),
	}
}

func (r *memChatRepo) CreateIfAbsent(ctx context.Context, c *chat.Chat) (chat.Chat, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID, ok := r.byPairKey[c.PairKey]; ok {
		return r.chats[existingID], false, nil
	}
	r.chats[c.ID] = *c
	r.byPairKey[c.PairKey] = c.ID
	return *c, true, nil
}

func (r *memChatRepo) GetByID(ctx context.Context, id uuid.UUID) (chat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return chat.Chat{}, tomodachi_errors.ErrNotFound
	}
	return c, nil
}

func (r *memChatRepo) GetByPairKey(ctx context.Context, pairKey string) (chat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPairKey[pairKey]
	if !ok {
		return chat.Chat{}, tomodachi_errors.ErrNotFound
	}
	return r.chats[id], nil
}

func (r *memChatRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Chat
	for _, c := range r.chats {
		if c.Has(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memChatRepo) setLastMessage(m chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[m.ChatID]
	if !ok {
		return tomodachi_errors.ErrNotFound
	}
	c.LastMessageText.Valid = true
	c.LastMessageText.String = m.Text
	c.LastMessageSenderID.Valid = true
	c.LastMessageSenderID.UUID = m.SenderID
	c.LastMessageAt.Valid = true
	c.LastMessageAt.Time = m.SentAt
	c.LastMessageRead.Valid = true
	c.LastMessageRead.Bool = m.Read
	c.UpdatedAt = time.Now()
	r.chats[m.ChatID] = c
	return nil
}

func (r *memChatRepo) markLastMessageRead(chatID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return
	}
	c.LastMessageRead.Valid = true
	c.LastMessageRead.Bool = true
	r.chats[chatID] = c
}

func (r *memChatRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return tomodachi_errors.ErrNotFound
	}
	delete(r.byPairKey, c.PairKey)
	delete(r.chats, id)
	return nil
}

// memMessageRepo is an in-memory MessageRepository preserving insert order.
// Like the Postgres one, its writes mirror the chat's last-message snapshot:
// either both land or neither does.
type memMessageRepo struct {
	mu         sync.Mutex
	messages   []chat.Message
	chats      *memChatRepo
	failCreate error
}

func (r *memMessageRepo) Create(ctx context.Context, m *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	if r.chats != nil {
		if err := r.chats.setLastMessage(*m); err != nil {
			return err
		}
	}
	r.messages = append(r.messages, *m)
	return nil
}

func (r *memMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return chat.Message{}, tomodachi_errors.ErrNotFound
}

func (r *memMessageRepo) ListByChat(ctx context.Context, chatID uuid.UUID) ([]chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMessageRepo) MarkRead(ctx context.Context, chatID, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.messages {
		if m.ID == messageID && m.ChatID == chatID {
			r.messages[i].Read = true
			if r.chats != nil {
				r.chats.markLastMessageRead(chatID)
			}
			return nil
		}
	}
	return tomodachi_errors.ErrNotFound
}
