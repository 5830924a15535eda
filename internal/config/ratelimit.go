package config

import (
    "time"

    "github.com/acermak/user-management-api/internal/security"
)

// RateLimitPolicies bundles the named fixed-window budgets per route
// class.  Windows and thresholds are env-tunable; the defaults match
// production traffic patterns: general API traffic is generous, auth
// and sensitive operations are tight.
type RateLimitPolicies struct {
    General   security.Policy // authenticated API traffic
    Auth      security.Policy // pre-auth endpoints, keyed by submitted email
    Sensitive security.Policy // password change and similar
    Admin     security.Policy // admin operations
    Upload    security.Policy // file uploads
}

// LoadRateLimitPolicies reads the per-class overrides from the
// environment and fills in defaults.
func LoadRateLimitPolicies() RateLimitPolicies {
    return RateLimitPolicies{
        General: security.Policy{
            Name:    "general",
            Window:  envDur("RATE_LIMIT_GENERAL_WINDOW", 15*time.Minute),
            Max:     int64(envInt("RATE_LIMIT_GENERAL_MAX", 1000)),
            Message: "Too many API requests. Please slow down.",
        },
        Auth: security.Policy{
            Name:    "auth",
            Window:  envDur("RATE_LIMIT_AUTH_WINDOW", 15*time.Minute),
            Max:     int64(envInt("RATE_LIMIT_AUTH_MAX", 20)),
            Message: "Too many authentication attempts. Please try again later.",
        },
        Sensitive: security.Policy{
            Name:    "sensitive",
            Window:  envDur("RATE_LIMIT_SENSITIVE_WINDOW", time.Hour),
            Max:     int64(envInt("RATE_LIMIT_SENSITIVE_MAX", 10)),
            Message: "Too many sensitive operations. Please try again later.",
        },
        Admin: security.Policy{
            Name:    "admin",
            Window:  envDur("RATE_LIMIT_ADMIN_WINDOW", 5*time.Minute),
            Max:     int64(envInt("RATE_LIMIT_ADMIN_MAX", 200)),
            Message: "Too many admin operations. Please slow down.",
        },
        Upload: security.Policy{
            Name:    "upload",
            Window:  envDur("RATE_LIMIT_UPLOAD_WINDOW", time.Hour),
            Max:     int64(envInt("RATE_LIMIT_UPLOAD_MAX", 50)),
            Message: "Too many file uploads. Please try again later.",
        },
    }
}
