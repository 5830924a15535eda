// Package handler implements the HTTP endpoints.  Handlers own the
// orchestration: they validate at the boundary, call repositories and
// the security components, and append an activity entry for every
// state change.  All success responses use the {success, message,
// data} envelope; failures surface as typed apperr errors rendered by
// the boundary error handler.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acermak/user-management-api/internal/model"
	"github.com/acermak/user-management-api/internal/repository"
)

// UserStore is the slice of the user repository the handlers depend
// on.  *repository.UserRepo satisfies it; tests substitute a fake.
type UserStore interface {
	Create(ctx context.Context, u *model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*model.User, error)
	GetByResetToken(ctx context.Context, token string) (*model.User, error)
	MarkEmailVerified(ctx context.Context, id uint64) error
	SetVerificationToken(ctx context.Context, id uint64, token string) error
	SetResetToken(ctx context.Context, id uint64, token string, expires time.Time) error
	UpdatePasswordClearReset(ctx context.Context, id uint64, hash string) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	StoreRefresh(ctx context.Context, id uint64, tokenHash string, exp time.Time) error
	RotateRefresh(ctx context.Context, id uint64, oldHash, newHash string, exp time.Time) (bool, error)
	ClearRefresh(ctx context.Context, id uint64) error
	UpdateProfile(ctx context.Context, id uint64, name, phone string) error
	List(ctx context.Context, f repository.ListFilter) ([]*model.User, int, error)
	AdminUpdate(ctx context.Context, id uint64, name, email, phone string, role model.Role, status model.Status) error
	Delete(ctx context.Context, id uint64) error
	GetStats(ctx context.Context) (repository.Stats, error)
}

// ActivityStore is the audit sink contract.
type ActivityStore interface {
	Insert(ctx context.Context, e *model.ActivityLog) error
	List(ctx context.Context, f repository.ActivityFilter) ([]*repository.Entry, int, error)
	GetForUser(ctx context.Context, id, userID uint64) (*repository.Entry, error)
	Recent(ctx context.Context, limit int) ([]*repository.Entry, error)
}

// envelope is the uniform response body.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

// userProjection is the public view of a user.  It never carries the
// password hash or any stored token.
type userProjection struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func projectUser(u *model.User) userProjection {
	return userProjection{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		Role:          string(u.Role),
		Status:        string(u.Status),
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// pagination is the standard paging block for list responses.
type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func paginate(page, limit, total int) pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// requestMeta captures the caller's origin for audit entries.
func requestMeta(c echo.Context) (ip, userAgent string) {
	ip = c.RealIP()
	userAgent = c.Request().UserAgent()
	if userAgent == "" {
		userAgent = "Unknown"
	}
	return ip, userAgent
}

// audit appends an entry to the activity log.  The write is
// synchronous but failures never surface: a lost audit row must not
// fail an operation that already succeeded.
func audit(ctx context.Context, store ActivityStore, c echo.Context, userID uint64, activity string, details map[string]any) {
	ip, ua := requestMeta(c)
	entry := &model.ActivityLog{
		UserID:    userID,
		Activity:  activity,
		IPAddress: ip,
		UserAgent: ua,
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = string(b)
		}
	}
	if err := store.Insert(ctx, entry); err != nil {
		log.Printf("audit: insert failed user_id=%d activity=%q: %v", userID, activity, err)
	}
}

// ----- boundary validation helpers -----

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}

// validPassword enforces the password policy: at least 8 characters
// with one lowercase, one uppercase, one digit and one special
// character.
func validPassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("@$!%*?&#^()-_=+[]{};:,.", r):
			special = true
		}
	}
	return lower && upper && digit && special
}

const passwordPolicy = "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"

// pathID parses a numeric :id path parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}

// queryInt parses an integer query parameter with a default.
func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

// dbCtx bounds a persistence call the way all handlers do.
func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
