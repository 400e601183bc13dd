package handler

import (
	"net/http"

	"tomodachi/internal/services"
	"tomodachi/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// UploadHandler handles avatar upload HTTP endpoints.
type UploadHandler struct {
	avatars *services.AvatarService
}

func NewUploadHandler(avatars *services.AvatarService) *UploadHandler {
	return &UploadHandler{avatars: avatars}
}

// Presign issues a direct-upload URL for a new avatar.
func (h *UploadHandler) Presign(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.AvatarPresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.avatars.Presign(c.Request.Context(), services.AvatarPresignInput{
		UserID:      userID,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

// Complete commits an uploaded avatar to the caller's profile.
func (h *UploadHandler) Complete(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.AvatarCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	photoURL, err := h.avatars.Complete(c.Request.Context(), userID, req.ObjectKey)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AvatarCompleteResponse{PhotoURL: photoURL}))
}

// Remove clears the caller's avatar.
func (h *UploadHandler) Remove(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.avatars.Remove(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
