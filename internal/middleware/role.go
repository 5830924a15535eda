package middleware // middleware provides shared request processing for handlers

import (
    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/acermak/user-management-api/internal/apperr"
    "github.com/acermak/user-management-api/internal/model"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  If the user's
// role is not in the allowed set, the request is aborted with a 403
// response.  It assumes JWTAuth has already stored the role in the
// context.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
    // Build a set of allowed roles for constant-time lookups.
    allowed := make(map[model.Role]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            v := c.Get(CtxRole)
            role, ok := v.(string)
            if !ok || !allowed[model.Role(role)] {
                return apperr.Authorization(apperr.MsgForbidden)
            }
            return next(c)
        }
    }
}
