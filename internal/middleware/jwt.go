package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/acermak/user-management-api/internal/apperr"
    "github.com/acermak/user-management-api/internal/model"
    "github.com/acermak/user-management-api/internal/repository"
    "github.com/acermak/user-management-api/internal/utils"
)

// Context keys populated by JWTAuth for downstream middleware and handlers.
const (
    CtxUserID = "user_id"
    CtxEmail  = "email"
    CtxRole   = "role"
    CtxUser   = "user"
)

// UserLoader is the slice of the user repository JWTAuth needs.
type UserLoader interface {
    GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token,
// loads the account it names, and rejects requests from accounts that are
// no longer ACTIVE.  On success the user's id, email, role and the full
// record are stored in the request context.  Expired tokens and malformed
// tokens produce distinct messages so clients can prompt for re-login
// rather than report a generic failure.
func JWTAuth(secret string, users UserLoader) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return apperr.Authentication(apperr.MsgNotAuthorized)
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims, err := utils.VerifyToken(secret, raw)
            if err != nil {
                if errors.Is(err, utils.ErrTokenExpired) {
                    return apperr.Authentication(apperr.MsgSessionExpired)
                }
                return apperr.Authentication(apperr.MsgTokenInvalid)
            }

            // Load the account so that status changes take effect on the
            // next request even while an access token is still valid.
            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()
            u, err := users.GetByID(ctx, claims.UserID)
            if err != nil {
                if errors.Is(err, repository.ErrNotFound) {
                    return apperr.Authentication(apperr.MsgUserNotFound)
                }
                return err
            }
            if u.Status != model.StatusActive {
                return apperr.Authentication("Account is not active")
            }

            c.Set(CtxUserID, u.ID)
            c.Set(CtxEmail, u.Email)
            c.Set(CtxRole, string(u.Role))
            c.Set(CtxUser, u)
            return next(c)
        }
    }
}

// CurrentUser returns the authenticated user stored by JWTAuth, or nil.
func CurrentUser(c echo.Context) *model.User {
    if u, ok := c.Get(CtxUser).(*model.User); ok {
        return u
    }
    return nil
}

// CurrentUserID returns the authenticated user's id, zero when absent.
func CurrentUserID(c echo.Context) uint64 {
    if id, ok := c.Get(CtxUserID).(uint64); ok {
        return id
    }
    return 0
}
