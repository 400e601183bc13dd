package httpdto

// AvatarPresignRequest is used for POST /users/me/avatar/presign
type AvatarPresignRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	SizeBytes   int64  `json:"size_bytes" binding:"required"`
}

// AvatarCompleteRequest is used for POST /users/me/avatar/complete after the
// browser has PUT the object to the presigned URL.
type AvatarCompleteRequest struct {
	ObjectKey string `json:"object_key" binding:"required"`
}

// AvatarCompleteResponse returns the committed public URL.
type AvatarCompleteResponse struct {
	PhotoURL string `json:"photo_url"`
}
