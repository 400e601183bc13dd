package websocket

import (
	"context"
	"encoding/json"

	"tomodachi/internal/domain/user"
	"tomodachi/internal/viewmodel"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

// SnapshotFeeds bundles the live feeds one connection consumes.
type SnapshotFeeds interface {
	viewmodel.ChatFeed
	viewmodel.ProfileFeed
	viewmodel.MessageFeed
}

// Server frame types. Every frame replaces the client's copy of that view
// wholesale; the client never diffs.
const (
	frameChatList      = "chat_list"
	frameChatWindow    = "chat_window"
	frameSearchResults = "search_results"
	frameError         = "error"
)

type chatListFrame struct {
	Type    string                    `json:"type"`
	Entries []viewmodel.ChatListEntry `json:"entries"`
}

type chatWindowFrame struct {
	Type      string           `json:"type"`
	ChatID    string           `json:"chat_id,omitempty"`
	Phase     viewmodel.Phase  `json:"phase"`
	Recipient user.Profile     `json:"recipient"`
	Items     []viewmodel.Item `json:"items"`
	Draft     string           `json:"draft,omitempty"`
}

type searchResultsFrame struct {
	Type    string         `json:"type"`
	Query   string         `json:"query"`
	Results []user.Profile `json:"results"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Op      string `json:"op"`
	Message string `json:"message"`
}

// Session owns the rendered views of one connection: the chat list, the
// currently open chat window and the directory search. Its lifetime matches
// the socket's; Close tears down every subscription the views opened.
type Session struct {
	me   uuid.UUID
	send func([]byte)
	log  *logger.Logger

	list   *viewmodel.ChatList
	window *viewmodel.ChatWindow
	search *viewmodel.SearchView
}

func NewSession(me uuid.UUID, feeds SnapshotFeeds, writer viewmodel.ChatWriter, dir viewmodel.Directory, send func([]byte), log *logger.Logger) *Session {
	s := &Session{
		me:     me,
		send:   send,
		log:    log,
		list:   viewmodel.NewChatList(me, feeds, feeds, log),
		window: viewmodel.NewChatWindow(me, writer, feeds, feeds, log),
		search: viewmodel.NewSearchView(dir, me),
	}
	s.list.OnChange(func(entries []viewmodel.ChatListEntry) {
		s.push(chatListFrame{Type: frameChatList, Entries: entries})
	})
	s.window.OnChange(s.renderWindow)
	return s
}

// Open starts the chat list subscription; the initial snapshot is rendered
// before Open returns.
func (s *Session) Open(ctx context.Context) error {
	return s.list.Open(ctx)
}

// OpenChat points the window at a conversation. chatID may be Nil for a
// conversation that has no chat row yet.
func (s *Session) OpenChat(ctx context.Context, chatID, recipientID uuid.UUID) {
	if err := s.window.SetChat(ctx, chatID, recipientID); err != nil {
		s.log.Warnf("chat open failed for %s: %v", chatID, err)
		s.push(errorFrame{Type: frameError, Op: "open_chat", Message: "chat could not be opened"})
	}
}

// CloseChat resets the window to its empty state.
func (s *Session) CloseChat(ctx context.Context) {
	s.OpenChat(ctx, uuid.Nil, uuid.Nil)
}

// SendText submits the draft through the window. On failure the window has
// already restored the draft; the client only needs the error frame.
func (s *Session) SendText(ctx context.Context, text string) {
	if err := s.window.Send(ctx, text); err != nil {
		s.push(errorFrame{Type: frameError, Op: "send", Message: "message not sent"})
	}
}

func (s *Session) SetDraft(text string) {
	s.window.SetDraft(text)
}

// Search runs the directory search and pushes the ranked results.
func (s *Session) Search(ctx context.Context, query string) {
	results, err := s.search.Query(ctx, query)
	if err != nil {
		s.log.Warnf("search failed for %q: %v", query, err)
		s.push(errorFrame{Type: frameError, Op: "search", Message: "search failed"})
		return
	}
	s.push(searchResultsFrame{Type: frameSearchResults, Query: query, Results: results})
}

// Close tears down the chat list, the window and every nested subscription.
func (s *Session) Close() {
	s.window.Close()
	s.list.Close()
	s.search.Clear()
}

func (s *Session) renderWindow() {
	frame := chatWindowFrame{
		Type:      frameChatWindow,
		Phase:     s.window.Phase(),
		Recipient: s.window.Recipient(),
		Items:     s.window.Items(),
		Draft:     s.window.Draft(),
	}
	if id := s.window.ChatID(); id != uuid.Nil {
		frame.ChatID = id.String()
	}
	s.push(frame)
}

func (s *Session) push(frame interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.log.Warnf("frame marshal failed for %s: %v", s.me, err)
		return
	}
	s.send(data)
}
