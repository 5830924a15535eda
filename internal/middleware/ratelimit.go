package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acermak/user-management-api/internal/security"
)

// rate limit headers attached to every counted response.
const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
)

// UserRateLimit enforces a fixed-window policy keyed by the
// authenticated user's id.  Unauthenticated requests pass through:
// they are the province of the coarse network-address limiter in
// front of the service.
func UserRateLimit(l *security.Limiter, p security.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := CurrentUserID(c)
			if userID == 0 {
				return next(c)
			}
			return checked(c, next, l, p, strconv.FormatUint(userID, 10))
		}
	}
}

// AuthRateLimit enforces the pre-auth policy on login/register-class
// endpoints.  No session exists yet, so the key is the submitted email
// when one is present, bounding per-identity brute force independent
// of network address; the caller address is the fallback.
func AuthRateLimit(l *security.Limiter, p security.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if email := peekEmail(c); email != "" {
				key = "email:" + email
			}
			return checked(c, next, l, p, key)
		}
	}
}

func checked(c echo.Context, next echo.HandlerFunc, l *security.Limiter, p security.Policy, key string) error {
	res, err := l.Check(c.Request().Context(), key, p)
	if err != nil {
		// The limiter is protection, not a dependency: on store failure
		// let the request through rather than failing closed.
		c.Logger().Warnf("ratelimit check failed key=%s: %v", key, err)
		return next(c)
	}

	h := c.Response().Header()
	h.Set(headerLimit, strconv.FormatInt(res.Limit, 10))
	h.Set(headerRemaining, strconv.FormatInt(res.Remaining, 10))
	h.Set(headerReset, res.ResetAt.UTC().Format(time.RFC3339))

	if !res.Allowed {
		c.Logger().Warnf("rate limit exceeded key=%s policy=%s", key, p.Name)
		h.Set("Retry-After", strconv.Itoa(res.RetryAfter))
		return c.JSON(http.StatusTooManyRequests, map[string]any{
			"success":    false,
			"message":    p.Message,
			"retryAfter": res.RetryAfter,
			"limit":      res.Limit,
			"remaining":  0,
			"resetTime":  res.ResetAt.UTC().Format(time.RFC3339),
		})
	}
	return next(c)
}

// peekEmail extracts the email field from a JSON body without
// consuming it, restoring the reader for the handler's Bind.
func peekEmail(c echo.Context) string {
	req := c.Request()
	if req.Body == nil {
		return ""
	}
	ct := req.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil {
		return ""
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	var probe struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(probe.Email))
}
