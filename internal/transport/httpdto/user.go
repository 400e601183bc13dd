package httpdto

// UpdateProfileRequest is used for PATCH /users/me. Pointer fields
// distinguish "clear" from "leave unchanged". A username field is accepted
// only so the attempt can be rejected explicitly.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty"`
	Username    *string `json:"username,omitempty"`
}

// SearchRequest is used for GET /users/search
type SearchRequest struct {
	Query string `form:"q" binding:"required"`
}
