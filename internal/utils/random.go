package utils

import (
    "crypto/rand"    // secure random number generation
    "crypto/sha256"  // SHA-256 hashing for stored token values
    "crypto/subtle"  // constant-time comparison
    "encoding/hex"   // hex encoding
)

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.  It backs the email
// verification, password reset and CSRF tokens.
func RandomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}

// HashTokenRaw returns the SHA-256 hash of a raw token as a hex
// string.  Only hashes are persisted so that a leaked store cannot be
// replayed as live credentials.
func HashTokenRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares two strings without leaking the position
// of the first mismatch.
func ConstantTimeEqual(a, b string) bool {
    return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
