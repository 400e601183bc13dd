package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tomodachi/internal/repository"
	"tomodachi/internal/storage"
	tomodachi_errors "tomodachi/pkg/errors"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

// avatarContentTypes maps the accepted upload types to object key extensions.
var avatarContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type AvatarService struct {
	users   *UserService
	repo    repository.UserRepository
	storage *storage.Client
	maxSize int64
	log     *logger.Logger
}

type AvatarPresignInput struct {
	UserID      uuid.UUID
	ContentType string
	SizeBytes   int64
}

type AvatarPresignResult struct {
	UploadURL string            `json:"upload_url"`
	ObjectKey string            `json:"object_key"`
	Headers   map[string]string `json:"headers"`
	PhotoURL  string            `json:"photo_url"`
}

func NewAvatarService(users *UserService, repo repository.UserRepository, storage *storage.Client, maxSize int64, log *logger.Logger) *AvatarService {
	return &AvatarService{users: users, repo: repo, storage: storage, maxSize: maxSize, log: log}
}

// Presign issues a direct-upload URL for a new avatar. The object key embeds
// a fresh UUID so replacing an avatar never overwrites the old object; the
// old one is reaped on Complete.
func (s *AvatarService) Presign(ctx context.Context, in AvatarPresignInput) (AvatarPresignResult, error) {
	if s.storage == nil {
		return AvatarPresignResult{}, errors.New("s3 storage is not configured")
	}
	if in.UserID == uuid.Nil || in.SizeBytes <= 0 {
		return AvatarPresignResult{}, tomodachi_errors.ErrInvalidInput
	}
	if s.maxSize > 0 && in.SizeBytes > s.maxSize {
		return AvatarPresignResult{}, tomodachi_errors.ErrTooLarge
	}

	ext, ok := avatarContentTypes[strings.ToLower(in.ContentType)]
	if !ok {
		return AvatarPresignResult{}, tomodachi_errors.ErrUnsupportedMedia
	}

	key := fmt.Sprintf("avatars/%s/%s%s", in.UserID, uuid.New(), ext)

	uploadURL, headers, err := s.storage.PresignPut(ctx, key, in.ContentType, in.SizeBytes)
	if err != nil {
		return AvatarPresignResult{}, err
	}

	return AvatarPresignResult{
		UploadURL: uploadURL,
		ObjectKey: key,
		Headers:   headers,
		PhotoURL:  s.storage.FileURL(key),
	}, nil
}

// Complete commits an uploaded avatar to the profile and reaps the replaced
// object. The delete is best effort; an orphaned object costs storage, a
// failed profile write costs correctness.
func (s *AvatarService) Complete(ctx context.Context, userID uuid.UUID, objectKey string) (string, error) {
	if s.storage == nil {
		return "", errors.New("s3 storage is not configured")
	}
	if userID == uuid.Nil || objectKey == "" {
		return "", tomodachi_errors.ErrInvalidInput
	}
	if !strings.HasPrefix(objectKey, fmt.Sprintf("avatars/%s/", userID)) {
		return "", tomodachi_errors.ErrForbidden
	}

	exists, err := s.storage.ObjectExists(ctx, objectKey)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", tomodachi_errors.ErrNotFound
	}

	current, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	oldKey := s.storage.KeyFromURL(current.PhotoURL)

	photoURL := s.storage.FileURL(objectKey)
	if _, err := s.users.UpdateProfile(ctx, userID, UpdateProfileInput{PhotoURL: &photoURL}); err != nil {
		return "", err
	}

	if oldKey != "" && oldKey != objectKey {
		if err := s.storage.DeleteObject(ctx, oldKey); err != nil {
			s.log.Warnf("old avatar delete failed for %s (%s): %v", userID, oldKey, err)
		}
	}

	return photoURL, nil
}

// Remove clears the avatar and deletes the stored object.
func (s *AvatarService) Remove(ctx context.Context, userID uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if current.PhotoURL == "" {
		return nil
	}

	empty := ""
	if _, err := s.users.UpdateProfile(ctx, userID, UpdateProfileInput{PhotoURL: &empty}); err != nil {
		return err
	}

	if s.storage != nil {
		if key := s.storage.KeyFromURL(current.PhotoURL); key != "" {
			if err := s.storage.DeleteObject(ctx, key); err != nil {
				s.log.Warnf("avatar delete failed for %s (%s): %v", userID, key, err)
			}
		}
	}
	return nil
}
