package model

import "time"

// Role is the closed set of roles a user can hold.  The values match
// the `role` enum column in the users table and are embedded verbatim
// into JWT claims.
type Role string

const (
    RoleAdmin     Role = "ADMIN"
    RoleClient    Role = "CLIENT"
    RoleDeveloper Role = "DEVELOPER"
    RoleModerator Role = "MODERATOR"
)

// Status is the administrative account state.  It is orthogonal to
// EmailVerified; both gate login.
type Status string

const (
    StatusActive    Status = "ACTIVE"
    StatusInactive  Status = "INACTIVE"
    StatusSuspended Status = "SUSPENDED"
)

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
    switch Role(s) {
    case RoleAdmin, RoleClient, RoleDeveloper, RoleModerator:
        return true
    }
    return false
}

// ValidStatus reports whether s names a known status.
func ValidStatus(s string) bool {
    switch Status(s) {
    case StatusActive, StatusInactive, StatusSuspended:
        return true
    }
    return false
}

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column.  The password hash and
// the token columns never leave the repository layer in API responses;
// handlers build separate projection types.
//
// Fields:
//  ID                  – primary key identifier of the user.
//  Name                – display name.
//  Email               – unique email address (stored lower-cased).
//  PasswordHash        – bcrypt hashed password.
//  Phone               – optional phone number (empty when unset).
//  Role                – one of ADMIN | CLIENT | DEVELOPER | MODERATOR.
//  Status              – one of ACTIVE | INACTIVE | SUSPENDED.
//  EmailVerified       – whether the email verification flow completed.
//  VerificationToken   – opaque email verification token (empty once used).
//  ResetToken          – opaque password reset token (empty when none).
//  ResetTokenExpires   – absolute expiry of the reset token.
//  RefreshTokenHash    – SHA-256 hex of the latest refresh token; one slot per user.
//  RefreshTokenExpires – absolute expiry of the stored refresh token.
//  CreatedAt           – timestamp of creation.
//  UpdatedAt           – timestamp of last update.
type User struct {
    ID                  uint64     // users.id
    Name                string     // users.name
    Email               string     // users.email
    PasswordHash        string     // users.password_hash
    Phone               string     // users.phone (nullable)
    Role                Role       // users.role
    Status              Status     // users.status
    EmailVerified       bool       // users.email_verified
    VerificationToken   string     // users.verification_token (nullable)
    ResetToken          string     // users.reset_token (nullable)
    ResetTokenExpires   *time.Time // users.reset_token_expires (nullable)
    RefreshTokenHash    string     // users.refresh_token_hash (nullable)
    RefreshTokenExpires *time.Time // users.refresh_token_expires (nullable)
    CreatedAt           time.Time  // users.created_at
    UpdatedAt           time.Time  // users.updated_at
}
