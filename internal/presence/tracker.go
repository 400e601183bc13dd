// Package presence runs the per-connection presence lifecycle: an immediate
// online write on start, periodic heartbeats while the connection lives, an
// eager rewrite when the client returns to the foreground, and a best-effort
// offline write with a last-seen stamp on stop.
package presence

import (
	"context"
	"sync"
	"time"

	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

// ProfileWriter is the sink for presence transitions. PresenceService
// implements it against Postgres and the Redis mirror.
type ProfileWriter interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	Heartbeat(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error
}

// Tracker drives presence for one user connection. Start it when the
// connection is established and Stop it exactly once when it goes away.
type Tracker struct {
	userID   uuid.UUID
	writer   ProfileWriter
	interval time.Duration
	log      *logger.Logger

	foreground chan struct{}
	stopOnce   sync.Once
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewTracker(userID uuid.UUID, writer ProfileWriter, interval time.Duration, log *logger.Logger) *Tracker {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Tracker{
		userID:     userID,
		writer:     writer,
		interval:   interval,
		log:        log,
		foreground: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start writes the online marker immediately and then heartbeats until the
// context is cancelled or Stop is called. It returns after the first write
// so callers know the user is visible before serving traffic.
func (t *Tracker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	if err := t.writer.SetOnline(runCtx, t.userID); err != nil {
		cancel()
		close(t.done)
		return err
	}

	go t.loop(runCtx)
	return nil
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.writer.Heartbeat(ctx, t.userID); err != nil && ctx.Err() == nil {
				t.log.Warnf("presence heartbeat failed for %s: %v", t.userID, err)
			}
		case <-t.foreground:
			// Returning to the foreground rewrites the marker right away
			// instead of waiting out the tick.
			if err := t.writer.Heartbeat(ctx, t.userID); err != nil && ctx.Err() == nil {
				t.log.Warnf("presence foreground write failed for %s: %v", t.userID, err)
			}
			ticker.Reset(t.interval)
		}
	}
}

// Foreground requests an immediate online rewrite. Safe to call from any
// goroutine; coalesces when one is already pending.
func (t *Tracker) Foreground() {
	select {
	case t.foreground <- struct{}{}:
	default:
	}
}

// Stop halts the heartbeat loop and writes the offline marker with the
// current instant as last-seen. The write uses a fresh context so a dying
// request context cannot block it; failure is logged, not returned, since
// the Redis TTL will expire the stale marker anyway.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		<-t.done

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.writer.SetOffline(ctx, t.userID, time.Now()); err != nil {
			t.log.Warnf("presence offline write failed for %s: %v", t.userID, err)
		}
	})
}
