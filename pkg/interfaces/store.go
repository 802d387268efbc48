package interfaces

import (
	"context"
	"time"

	"waregate/pkg/types"
)

// SessionStore is a dumb expiring map for per-connection sessions. Only the
// realtime orchestrator writes to it; handlers never touch it directly.
type SessionStore interface {
	// PutSession writes or overwrites a session with a fresh TTL.
	PutSession(ctx context.Context, session *types.Session) error

	// GetSession returns the session for a connection, or ErrSessionNotFound
	// if it never existed or has expired.
	GetSession(ctx context.Context, connectionID string) (*types.Session, error)

	// DeleteSession removes a session. Deleting a missing session is a no-op.
	DeleteSession(ctx context.Context, connectionID string) error
}

// StatusCache holds the last-known shelf snapshot per shelf with a bounded
// staleness TTL. Entries are always full-snapshot overwrites.
type StatusCache interface {
	// GetShelfStatus returns the cached snapshot or ErrCacheMiss when the
	// entry is absent or expired.
	GetShelfStatus(ctx context.Context, shelfID string) (*types.ShelfStatus, error)

	// PutShelfStatus stores a complete snapshot with a fresh TTL.
	PutShelfStatus(ctx context.Context, status *types.ShelfStatus) error
}

// StatsRecorder accumulates per-shelf, per-day event counters. The counters
// are monitoring-only and never read back into business logic.
type StatsRecorder interface {
	// RecordEvent increments the counter for (shelfID, day-of-at, eventType).
	RecordEvent(ctx context.Context, shelfID, eventType string, at time.Time) error
}

// AdmissionCounter is the fixed-window counter primitive behind the rate
// limiter: increment a per-address counter, arming its expiry only when the
// increment created the key.
type AdmissionCounter interface {
	// IncrWithWindow returns the counter value after incrementing. The window
	// starts when the key is first created and is not extended by later hits.
	IncrWithWindow(ctx context.Context, address string, window time.Duration) (int64, error)
}
