// internal/activity/activity.go
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

// Store persists one last-activity timestamp per user. Concurrent writers
// converge because the operation is a monotonic "set to now"; no locking.
type Store interface {
	LastActivity(ctx context.Context, userID uuid.UUID) (time.Time, bool, error)
	TouchActivity(ctx context.Context, userID uuid.UUID, t time.Time) error
}

type Result int

const (
	Continue Result = iota
	ForceLogout
)

// Tracker is the idle-timeout state machine, invoked once per request for
// authenticated users.
type Tracker struct {
	store Store
	log   *slog.Logger
}

func NewTracker(store Store, log *slog.Logger) *Tracker {
	return &Tracker{store: store, log: log.With("component", "activity")}
}

// OnLogin resets the idle timer. A failed write must never block a
// successful login, so errors are logged and swallowed.
func (t *Tracker) OnLogin(ctx context.Context, userID uuid.UUID) {
	if err := t.store.TouchActivity(ctx, userID, time.Now()); err != nil {
		t.log.Warn("activity write on login failed", "user_id", userID, "error", err)
	}
}

// OnRequest checks whether the user sat idle past the configured timeout.
// ForceLogout means the caller must terminate the session and redirect back
// to the originally requested URL, so the login wall re-engages on a
// private site. Otherwise the timestamp is refreshed and the request
// continues. A timeout of zero disables the check entirely.
func (t *Tracker) OnRequest(ctx context.Context, userID uuid.UUID, s settings.Settings, now time.Time) Result {
	timeout := s.TimeoutSeconds()
	if timeout > 0 {
		last, _, err := t.store.LastActivity(ctx, userID)
		if err != nil {
			// Best-effort bookkeeping: a read failure only degrades
			// timeout precision, never access control.
			t.log.Warn("activity read failed", "user_id", userID, "error", err)
		} else if last.Unix()+timeout < now.Unix() {
			return ForceLogout
		}
	}

	if err := t.store.TouchActivity(ctx, userID, now); err != nil {
		t.log.Warn("activity refresh failed", "user_id", userID, "error", err)
	}
	return Continue
}
