package handler

import (
	"net/http"
	"time"

	"tomodachi/internal/domain/chat"
	"tomodachi/internal/services"
	"tomodachi/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MessageHandler handles message HTTP endpoints.
type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send appends a message to a chat.
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid chat id", "INVALID_REQUEST"))
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	m, err := h.messages.Send(c.Request.Context(), userID, chatID, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toMessageDTO(m)))
}

// List returns a chat's messages oldest first.
func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid chat id", "INVALID_REQUEST"))
		return
	}

	list, err := h.messages.ListByChat(c.Request.Context(), userID, chatID)
	if err != nil {
		writeError(c, err)
		return
	}

	dtos := make([]httpdto.MessageDTO, 0, len(list))
	for _, m := range list {
		dtos = append(dtos, toMessageDTO(m))
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(dtos))
}

// MarkRead flips a received message's read flag.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid chat id", "INVALID_REQUEST"))
		return
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}

	if err := h.messages.MarkRead(c.Request.Context(), userID, chatID, messageID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func toMessageDTO(m chat.Message) httpdto.MessageDTO {
	return httpdto.MessageDTO{
		ID:       m.ID.String(),
		ChatID:   m.ChatID.String(),
		SenderID: m.SenderID.String(),
		Text:     m.Text,
		SentAt:   m.SentAt.UTC().Format(time.RFC3339Nano),
		Read:     m.Read,
	}
}
