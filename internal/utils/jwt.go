package utils // package utils provides helper functions for token creation and hashing

import (
    "errors" // error wrapping and sentinel comparison
    "time"   // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Access and refresh tokens are signed with distinct secrets so that
// leaking or rotating one key class cannot be used to forge the other.
// Callers must distinguish ErrTokenExpired from ErrTokenInvalid to
// produce the correct user-facing message ("session expired" vs
// "invalid token").
var (
    ErrTokenExpired = errors.New("token expired")
    ErrTokenInvalid = errors.New("token invalid")
)

// Claims carries the identity embedded in both token classes: the
// subject user ID plus email and role.  Verifying a token yields
// exactly the claims it was issued with.
type Claims struct {
    jwt.RegisteredClaims
    UserID uint64 `json:"uid"`
    Email  string `json:"email"`
    Role   string `json:"role"`
}

// SignedToken couples a serialized JWT with its UTC expiration time.
type SignedToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs a short-lived HS256 JWT for a user.
// Access tokens are stateless: they are never persisted and are
// trusted until natural expiry.  Logout does not revoke them — the
// short TTL bounds the blast radius.  This is intentional.
func NewAccessToken(secret string, userID uint64, email, role string, ttl time.Duration) (SignedToken, error) {
    return sign(secret, userID, email, role, ttl)
}

// NewRefreshToken builds and signs a long-lived HS256 JWT used to
// obtain new token pairs.  Only the SHA-256 hash of the serialized
// token is persisted; rotation replaces that single stored value.
func NewRefreshToken(secret string, userID uint64, email, role string, ttl time.Duration) (SignedToken, error) {
    return sign(secret, userID, email, role, ttl)
}

func sign(secret string, userID uint64, email, role string, ttl time.Duration) (SignedToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := Claims{
        RegisteredClaims: jwt.RegisteredClaims{
            ExpiresAt: jwt.NewNumericDate(exp),
            IssuedAt:  jwt.NewNumericDate(now),
        },
        UserID: userID,
        Email:  email,
        Role:   role,
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return SignedToken{}, err
    }
    return SignedToken{Token: signed, Exp: exp}, nil
}

// VerifyToken parses and validates a token against the secret of its
// key class.  It returns ErrTokenExpired for tokens past their expiry
// and ErrTokenInvalid for anything malformed, forged or signed with a
// different algorithm.
func VerifyToken(secret, raw string) (*Claims, error) {
    claims := &Claims{}
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        // Reject tokens signed with a different algorithm.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrTokenInvalid
        }
        return []byte(secret), nil
    })
    if err != nil {
        if errors.Is(err, jwt.ErrTokenExpired) {
            return nil, ErrTokenExpired
        }
        return nil, ErrTokenInvalid
    }
    if !tok.Valid {
        return nil, ErrTokenInvalid
    }
    return claims, nil
}
