// Package security implements the session-adjacent protections: the
// per-user CSRF token registry and the per-key fixed-window rate
// limiter.  Both keep their state behind the store abstraction so a
// shared cache can replace the in-process maps without touching call
// sites.
package security

import (
    "context"
    "strconv"
    "time"

    "github.com/acermak/user-management-api/internal/store"
    "github.com/acermak/user-management-api/internal/utils"
)

// DefaultCSRFTTL is the absolute lifetime of an issued CSRF token.
const DefaultCSRFTTL = 24 * time.Hour

// CSRFTokenBytes is the entropy of a generated token in bytes.
const CSRFTokenBytes = 32

// CSRFGuard maintains at most one live CSRF token per user.  Only the
// SHA-256 hash of the token is stored; the plaintext is returned once
// at issuance and is never retrievable again, only regenerable.
// Regenerating overwrites the previous entry, so the old plaintext
// stops validating immediately.
type CSRFGuard struct {
    store store.Store
    ttl   time.Duration
}

// NewCSRFGuard builds a guard over the given store.  A non-positive
// ttl falls back to DefaultCSRFTTL.
func NewCSRFGuard(s store.Store, ttl time.Duration) *CSRFGuard {
    if ttl <= 0 {
        ttl = DefaultCSRFTTL
    }
    return &CSRFGuard{store: s, ttl: ttl}
}

func csrfKey(userID uint64) string { return strconv.FormatUint(userID, 10) }

// IssueForUser generates a fresh token for the user, stores its hash
// with an absolute expiry, and returns the plaintext.
func (g *CSRFGuard) IssueForUser(ctx context.Context, userID uint64) (string, error) {
    token, err := utils.RandomHex(CSRFTokenBytes)
    if err != nil {
        return "", err
    }
    if err := g.store.SetEX(ctx, csrfKey(userID), utils.HashTokenRaw(token), g.ttl); err != nil {
        return "", err
    }
    return token, nil
}

// Validate reports whether the presented plaintext matches the live
// entry for the user.  A token validates only for the user it was
// issued to, only before expiry, and only while present in the
// registry.  The comparison runs against the hash in constant time.
func (g *CSRFGuard) Validate(ctx context.Context, userID uint64, presented string) bool {
    stored, err := g.store.Get(ctx, csrfKey(userID))
    if err != nil {
        return false
    }
    return utils.ConstantTimeEqual(stored, utils.HashTokenRaw(presented))
}

// HasToken reports whether the user currently has a live entry.
func (g *CSRFGuard) HasToken(ctx context.Context, userID uint64) bool {
    _, err := g.store.Get(ctx, csrfKey(userID))
    return err == nil
}

// Clear removes the user's entry, e.g. on logout.
func (g *CSRFGuard) Clear(ctx context.Context, userID uint64) error {
    return g.store.Delete(ctx, csrfKey(userID))
}
