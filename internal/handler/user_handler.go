package handler

import (
	"net/http"

	"tomodachi/internal/domain/user"
	"tomodachi/internal/services"
	"tomodachi/internal/transport/httpdto"
	"tomodachi/internal/viewmodel"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler handles profile and directory HTTP endpoints.
type UserHandler struct {
	users     *services.UserService
	auth      *services.AuthService
	avatars   *services.AvatarService
	directory viewmodel.Directory
	presence  viewmodel.PresenceOverlay
}

func NewUserHandler(users *services.UserService, auth *services.AuthService, avatars *services.AvatarService, directory viewmodel.Directory, presence viewmodel.PresenceOverlay) *UserHandler {
	return &UserHandler{users: users, auth: auth, avatars: avatars, directory: directory, presence: presence}
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(profile))
}

// Get returns another user's public profile.
func (h *UserHandler) Get(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), targetID)
	if err != nil {
		writeError(c, err)
		return
	}

	// The row can still say online for a client that died silently; the
	// mirror's TTL has already expired it.
	if h.presence != nil {
		profile = h.presence.OverlayPresence(c.Request.Context(), []user.Profile{profile})[0]
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(profile))
}

// Update edits the authenticated user's profile. Username changes are
// rejected.
func (h *UserHandler) Update(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	profile, err := h.users.UpdateProfile(c.Request.Context(), userID, services.UpdateProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		PhotoURL:    req.PhotoURL,
		Username:    req.Username,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(profile))
}

// Search runs the two-pass directory search, excluding the caller.
func (h *UserHandler) Search(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	results, err := viewmodel.SearchProfiles(c.Request.Context(), h.directory, userID, req.Query)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(results))
}

// Delete removes the authenticated user's account after re-verifying the
// password. Chats and messages cascade away with the user row.
func (h *UserHandler) Delete(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	if err := h.auth.VerifyCredential(c.Request.Context(), userID, req.Password); err != nil {
		writeError(c, err)
		return
	}

	if err := h.avatars.Remove(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}

	if err := h.users.DeleteAccount(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
