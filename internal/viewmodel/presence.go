package viewmodel

import (
	"context"

	"tomodachi/internal/domain/user"
)

// PresenceOverlay rewrites profiles' presence fields from a live source.
// The presence service satisfies it with the Redis mirror.
type PresenceOverlay interface {
	OverlayPresence(ctx context.Context, profiles []user.Profile) []user.Profile
}

// PresenceDirectory decorates a Directory so search ranks on the mirror's
// presence instead of the durable rows, which can still say online for a
// client that died without its offline write.
type PresenceDirectory struct {
	dir     Directory
	overlay PresenceOverlay
}

func NewPresenceDirectory(dir Directory, overlay PresenceOverlay) *PresenceDirectory {
	return &PresenceDirectory{dir: dir, overlay: overlay}
}

func (d *PresenceDirectory) UsernameRange(ctx context.Context, from string, limit int) ([]user.Profile, error) {
	page, err := d.dir.UsernameRange(ctx, from, limit)
	if err != nil {
		return nil, err
	}
	return d.overlay.OverlayPresence(ctx, page), nil
}

func (d *PresenceDirectory) BrowseProfiles(ctx context.Context, limit int) ([]user.Profile, error) {
	page, err := d.dir.BrowseProfiles(ctx, limit)
	if err != nil {
		return nil, err
	}
	return d.overlay.OverlayPresence(ctx, page), nil
}
