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

// ChatHandler handles chat HTTP endpoints.
type ChatHandler struct {
	chats *services.ChatService
}

func NewChatHandler(chats *services.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// Create ensures a chat with the given recipient exists and returns it.
// Repeating the call returns the same chat.
func (h *ChatHandler) Create(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recipient id", "INVALID_REQUEST"))
		return
	}

	stored, err := h.chats.EnsureDirectChat(c.Request.Context(), userID, recipientID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toChatDTO(stored, userID)))
}

// List returns the caller's chats, newest activity first.
func (h *ChatHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	list, err := h.chats.ListForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	dtos := make([]httpdto.ChatDTO, 0, len(list))
	for _, item := range list {
		dtos = append(dtos, toChatDTO(item, userID))
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(dtos))
}

// Get returns one chat the caller participates in.
func (h *ChatHandler) Get(c *gin.Context) {
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

	stored, err := h.chats.GetForUser(c.Request.Context(), userID, chatID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toChatDTO(stored, userID)))
}

// Delete removes a chat and its messages.
func (h *ChatHandler) Delete(c *gin.Context) {
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

	if err := h.chats.Delete(c.Request.Context(), userID, chatID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func toChatDTO(stored chat.Chat, viewer uuid.UUID) httpdto.ChatDTO {
	dto := httpdto.ChatDTO{
		ID:          stored.ID.String(),
		RecipientID: stored.Other(viewer).String(),
		CreatedAt:   stored.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   stored.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if stored.LastMessageText.Valid && stored.LastMessageSenderID.Valid && stored.LastMessageAt.Valid {
		dto.LastMessage = &httpdto.LastMessageDTO{
			Text:      stored.LastMessageText.String,
			SenderID:  stored.LastMessageSenderID.UUID.String(),
			Timestamp: stored.LastMessageAt.Time.UTC().Format(time.RFC3339Nano),
			Read:      stored.LastMessageRead.Valid && stored.LastMessageRead.Bool,
		}
	}
	return dto
}
