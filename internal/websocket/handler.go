package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tomodachi/internal/events"
	"tomodachi/internal/presence"
	"tomodachi/internal/services"
	"tomodachi/internal/transport/httpdto"
	"tomodachi/internal/viewmodel"
	"tomodachi/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// clientFrame is an inbound control message from the browser.
type clientFrame struct {
	Type        string `json:"type"`
	Channel     string `json:"channel,omitempty"`
	ChatID      string `json:"chat_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	Text        string `json:"text,omitempty"`
	Query       string `json:"query,omitempty"`
}

type Handler struct {
	auth       *services.AuthService
	hub        *Hub
	authorizer *ChannelAuthorizer
	presence   presence.ProfileWriter
	feeds      SnapshotFeeds
	writer     viewmodel.ChatWriter
	directory  viewmodel.Directory
	heartbeat  time.Duration
	log        *logger.Logger
}

func NewHandler(auth *services.AuthService, hub *Hub, authorizer *ChannelAuthorizer, pw presence.ProfileWriter, feeds SnapshotFeeds, writer viewmodel.ChatWriter, directory viewmodel.Directory, heartbeat time.Duration, log *logger.Logger) *Handler {
	return &Handler{
		auth:       auth,
		hub:        hub,
		authorizer: authorizer,
		presence:   pw,
		feeds:      feeds,
		writer:     writer,
		directory:  directory,
		heartbeat:  heartbeat,
		log:        log,
	}
}

// Connect upgrades the request and drives the connection's lifecycle: the
// client is subscribed to its own channels immediately, its session renders
// the chat list, window and search views into frames, and its presence
// tracker runs for as long as the socket lives.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	if _, err := h.auth.ValidateSession(c.Request.Context(), sessionID, userID); err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID.String())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.ChannelUser(userID.String()))
	h.hub.Subscribe(client, events.ChannelPresence(userID.String()))
	go client.WriteLoop(ctx)

	session := NewSession(userID, h.feeds, h.writer, h.directory, client.SendMessage, h.log)
	if err := session.Open(ctx); err != nil {
		h.log.Warnf("chat list open failed for %s: %v", userID, err)
	}

	tracker := presence.NewTracker(userID, h.presence, h.heartbeat, h.log)
	if err := tracker.Start(ctx); err != nil {
		h.log.Warnf("presence start failed for %s: %v", userID, err)
	}

	h.readLoop(ctx, conn, client, tracker, session, userID)

	session.Close()
	tracker.Stop()
	h.hub.Unregister(client)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client, tracker *presence.Tracker, session *Session, userID uuid.UUID) {
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "foreground":
			tracker.Foreground()
		case "open_chat":
			recipientID, err := uuid.Parse(frame.RecipientID)
			if err != nil {
				continue
			}
			chatID := uuid.Nil
			if frame.ChatID != "" {
				if chatID, err = uuid.Parse(frame.ChatID); err != nil {
					continue
				}
			}
			session.OpenChat(ctx, chatID, recipientID)
		case "close_chat":
			session.CloseChat(ctx)
		case "send":
			session.SendText(ctx, frame.Text)
		case "draft":
			session.SetDraft(frame.Text)
		case "search":
			session.Search(ctx, frame.Query)
		case "subscribe":
			if frame.Channel == "" {
				continue
			}
			ok, err := h.authorizer.CanSubscribe(ctx, userID.String(), frame.Channel)
			if err != nil {
				h.log.Warnf("channel authorization failed for %s on %s: %v", userID, frame.Channel, err)
				continue
			}
			if ok {
				h.hub.Subscribe(client, frame.Channel)
			}
		case "unsubscribe":
			if frame.Channel != "" {
				h.hub.Unsubscribe(client, frame.Channel)
			}
		}
	}
}
