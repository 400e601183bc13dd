package httpdto

// RegisterRequest is used for POST /auth/register
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest is used for POST /auth/login
type LoginRequest struct {
	Identity string `json:"identity" binding:"required"` // email or username
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is used for POST /auth/refresh
type RefreshRequest struct {
	SessionID    string `json:"session_id" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest is used for POST /auth/logout
type LogoutRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// DeleteAccountRequest is used for DELETE /users/me. Deleting an account
// requires re-entering the password.
type DeleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}
