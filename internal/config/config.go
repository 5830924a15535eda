package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Access and refresh tokens are signed with
// separate secrets so the two key classes can be rotated independently.
type Config struct {
    Env              string        // application environment (e.g. "dev", "prod")
    Port             string        // HTTP port to listen on
    DBUser           string        // database username
    DBPass           string        // database password (optional)
    DBHost           string        // database host address
    DBPort           string        // database port number
    DBName           string        // database name
    JWTSecret        string        // secret used to sign access tokens
    JWTRefreshSecret string        // secret used to sign refresh tokens
    AccessTTL        time.Duration // access token time-to-live
    RefreshTTL       time.Duration // refresh token time-to-live
    ResetTokenTTL    time.Duration // password reset token time-to-live
    CSRFTTL          time.Duration // CSRF token time-to-live
    BcryptCost       int           // bcrypt cost for password hashing
    FrontendURL      string        // base URL embedded in email links
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:              getenv("APP_ENV", "dev"),
        Port:             getenv("APP_PORT", "8080"),
        DBUser:           must("DB_USER"),
        DBPass:           os.Getenv("DB_PASS"), // empty allowed
        DBHost:           must("DB_HOST"),
        DBPort:           must("DB_PORT"),
        DBName:           must("DB_NAME"),
        JWTSecret:        must("JWT_SECRET"),
        JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
        AccessTTL:        envDur("ACCESS_TOKEN_TTL", 7*24*time.Hour),
        RefreshTTL:       envDur("REFRESH_TOKEN_TTL", 30*24*time.Hour),
        ResetTokenTTL:    envDur("RESET_TOKEN_TTL", time.Hour),
        CSRFTTL:          envDur("CSRF_TOKEN_TTL", 24*time.Hour),
        BcryptCost:       envInt("BCRYPT_COST", 10),
        FrontendURL:      getenv("FRONTEND_URL", "http://localhost:3000"),
    }
}

// IsProd reports whether the service runs in production mode.  Internal
// error messages are suppressed from responses in production.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return def
}

func envDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if d, err := time.ParseDuration(v); err == nil {
        return d
    }
    return def
}
