// Package store provides the key-value abstraction behind the CSRF
// registry and the rate-limit counters.  The default backend is a
// mutex-guarded in-process map with a periodic sweeper; a Redis
// backend can be swapped in for horizontally-scaled deployments
// without touching call sites.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or already expired.
var ErrNotFound = errors.New("store: key not found")

// Window describes the state of a fixed-window counter.
type Window struct {
	Count       int64
	ResetAt     time.Time
	LastRequest time.Time
}

// Store is the shared contract for expiring key-value state.
//
// Get/SetEX/Delete cover single-value entries (CSRF token hashes).
// IncrWindow implements fixed-window counting: the first increment of
// a window, or any increment once the window has elapsed, restarts the
// counter at 1 with a fresh reset instant.  GetWindow reads a counter
// without incrementing it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	IncrWindow(ctx context.Context, key string, window time.Duration) (Window, error)
	GetWindow(ctx context.Context, key string) (Window, error)
}
