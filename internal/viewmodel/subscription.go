// Package viewmodel holds the client-facing synchronization layer: live,
// subscription-fed views of chats, messages, profiles and search results.
// Views always replace their state wholesale from the latest snapshot; they
// never diff. The latest snapshot is authoritative.
package viewmodel

// Subscription is a handle to a live feed. Close is idempotent and must be
// called when the owning view goes away; a leaked subscription keeps writing
// into state nobody renders.
type Subscription interface {
	Close()
}

type subscriptionFunc func()

func (f subscriptionFunc) Close() { f() }
