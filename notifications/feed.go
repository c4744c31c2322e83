// Package notifications holds the per-session notification feed. The feed is
// a secondary, non-authoritative resource: its failures surface as a
// user-visible error string and never invalidate the session.
package notifications

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/grindolympiads/examgate/olympiads"
	"github.com/samber/lo"
)

// FetchErrorMessage is the user-visible error set when the feed cannot load.
const FetchErrorMessage = "Unable to load notifications. Please try again later."

// Backend is the part of the GrindOlympiads client the feed needs.
type Backend interface {
	Notifications(ctx context.Context, token string) ([]olympiads.Notification, error)
	MarkNotificationRead(ctx context.Context, token, notificationID string) error
}

// TokenSource reports the session's bearer token and logged-in state.
// Implemented by session.Session.
type TokenSource interface {
	Token() (token string, loggedIn bool)
}

// Feed is the notification list of a single session.
type Feed struct {
	backend Backend
	source  TokenSource

	mu     sync.Mutex
	items  []olympiads.Notification
	errMsg string
}

// NewFeed creates a feed scoped to the given session token source.
func NewFeed(backend Backend, source TokenSource) *Feed {
	return &Feed{
		backend: backend,
		source:  source,
	}
}

// Refresh fetches the notification list. It only runs while the session is
// logged in; otherwise it is a no-op. It returns the notifications that are
// new and unread since the previous refresh, so callers can forward them to
// push channels. A fetch failure sets the feed's error string but leaves the
// session untouched.
func (f *Feed) Refresh(ctx context.Context) ([]olympiads.Notification, error) {
	token, loggedIn := f.source.Token()
	if !loggedIn || token == "" {
		return nil, nil
	}

	items, err := f.backend.Notifications(ctx, token)
	if err != nil {
		log.Error("failed to fetch notifications", "error", err)
		f.mu.Lock()
		f.errMsg = FetchErrorMessage
		f.mu.Unlock()
		return nil, err
	}

	f.mu.Lock()
	known := lo.SliceToMap(f.items, func(n olympiads.Notification) (string, struct{}) {
		return n.ID, struct{}{}
	})
	fresh := lo.Filter(items, func(n olympiads.Notification, _ int) bool {
		_, seen := known[n.ID]
		return !seen && !n.Read
	})
	f.items = items
	f.errMsg = ""
	f.mu.Unlock()

	return fresh, nil
}

// MarkRead marks a notification as read. Local state is only updated after
// the backend confirms; on failure the notification is left unchanged and the
// failure is logged, without retry.
func (f *Feed) MarkRead(ctx context.Context, notificationID string) error {
	token, loggedIn := f.source.Token()
	if !loggedIn || token == "" {
		return nil
	}

	if err := f.backend.MarkNotificationRead(ctx, token, notificationID); err != nil {
		log.Error("failed to mark notification as read", "notification_id", notificationID, "error", err)
		return err
	}

	f.mu.Lock()
	f.items = lo.Map(f.items, func(n olympiads.Notification, _ int) olympiads.Notification {
		if n.ID == notificationID {
			n.Read = true
		}
		return n
	})
	f.mu.Unlock()
	return nil
}

// Notifications returns a copy of the current notification list.
func (f *Feed) Notifications() []olympiads.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]olympiads.Notification, len(f.items))
	copy(items, f.items)
	return items
}

// Unread returns the number of unread notifications.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.CountBy(f.items, func(n olympiads.Notification) bool {
		return !n.Read
	})
}

// Err returns the user-visible error string of the last failed fetch, or ""
// if the last fetch succeeded.
func (f *Feed) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// Clear empties the feed. Called when the session transitions to logged-out;
// no further fetches happen until re-login because Refresh re-checks the
// token source.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	f.errMsg = ""
}
