package security

import (
    "context"
    "math"
    "time"

    "github.com/acermak/user-management-api/internal/store"
)

// Policy names a fixed-window budget for one route class.
type Policy struct {
    Name    string        // route class label, also part of the counter key
    Window  time.Duration // window length; the counter resets at a scheduled instant
    Max     int64         // requests allowed per window
    Message string        // user-facing message when over limit
}

// Result is the outcome of a single Check.
type Result struct {
    Allowed    bool
    Limit      int64
    Remaining  int64
    ResetAt    time.Time
    RetryAfter int // seconds until the window resets; only meaningful when !Allowed
}

// Limiter enforces per-key fixed-window budgets on top of a Store.
// Keys default to the authenticated user's identifier; pre-auth
// endpoints key by submitted email so per-identity brute force is
// bounded independent of network address.
type Limiter struct {
    store store.Store
}

func NewLimiter(s store.Store) *Limiter {
    return &Limiter{store: s}
}

func counterKey(p Policy, key string) string { return p.Name + ":" + key }

// Check counts the request against the key's window and reports
// whether it is allowed.  The first request for a key, or any request
// once the window has elapsed, starts a fresh window.  Over-limit
// requests keep incrementing the counter; they simply stay rejected
// until the reset instant.
func (l *Limiter) Check(ctx context.Context, key string, p Policy) (Result, error) {
    w, err := l.store.IncrWindow(ctx, counterKey(p, key), p.Window)
    if err != nil {
        return Result{}, err
    }
    res := Result{
        Allowed:   w.Count <= p.Max,
        Limit:     p.Max,
        Remaining: p.Max - w.Count,
        ResetAt:   w.ResetAt,
    }
    if res.Remaining < 0 {
        res.Remaining = 0
    }
    if !res.Allowed {
        secs := int(math.Ceil(time.Until(w.ResetAt).Seconds()))
        if secs < 0 {
            secs = 0
        }
        res.RetryAfter = secs
    }
    return res, nil
}

// Status reads a key's counter for one route class without counting a
// request.  The second return is false when no live window exists.
func (l *Limiter) Status(ctx context.Context, key string, p Policy) (store.Window, bool) {
    w, err := l.store.GetWindow(ctx, counterKey(p, key))
    if err != nil {
        return store.Window{}, false
    }
    return w, true
}

// Reset drops a key's counter for one route class (admin operation).
func (l *Limiter) Reset(ctx context.Context, key string, p Policy) error {
    return l.store.Delete(ctx, counterKey(p, key))
}

// Entries returns a snapshot of all live counters when the backing
// store is the in-memory one.  Shared backends do not support
// enumeration and yield nil.
func (l *Limiter) Entries() []store.WindowEntry {
    if m, ok := l.store.(*store.Memory); ok {
        return m.Entries()
    }
    return nil
}
