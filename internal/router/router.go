package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/acermak/user-management-api/internal/config"
	"github.com/acermak/user-management-api/internal/handler"
	"github.com/acermak/user-management-api/internal/middleware"
	"github.com/acermak/user-management-api/internal/model"
	"github.com/acermak/user-management-api/internal/security"
)

// Deps carries everything route registration needs: the handlers plus
// the security components the middleware chain is built from.
type Deps struct {
	Cfg      config.Config
	Policies config.RateLimitPolicies
	Limiter  *security.Limiter
	CSRF     *security.CSRFGuard
	Users    middleware.UserLoader

	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Activity *handler.ActivityHandler
	Admin    *handler.AdminHandler
}

// Register wires every route group onto the Echo instance.  The
// middleware chain on protected groups runs in a fixed order: token
// authentication, then the per-user rate limit, then CSRF validation,
// then token provisioning for sessions that lack one.
func Register(e *echo.Echo, d Deps) {
	// Health check endpoint for load balancers and monitoring.  No
	// authentication and no rate limiting.
	e.GET("/health", d.Health.Health)

	registerAuth(e, d)
	registerUsers(e, d)
	registerActivity(e, d)
	registerAdmin(e, d)
}

// protected builds a route group with the standard authenticated chain.
func protected(e *echo.Echo, d Deps, prefix string) *echo.Group {
	g := e.Group(prefix)
	g.Use(middleware.JWTAuth(d.Cfg.JWTSecret, d.Users))
	g.Use(middleware.UserRateLimit(d.Limiter, d.Policies.General))
	g.Use(middleware.CSRFProtect(d.CSRF))
	g.Use(middleware.CSRFProvide(d.CSRF, d.Cfg.IsProd()))
	return g
}

// registerAuth registers the session lifecycle endpoints.  The
// unauthenticated operations live under /api/auth behind the tight
// pre-auth limiter keyed by submitted email; the session-bound
// operations use the standard protected chain.
func registerAuth(e *echo.Echo, d Deps) {
	g := e.Group("/api/auth")
	g.Use(middleware.AuthRateLimit(d.Limiter, d.Policies.Auth))
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.GET("/verify-email/:token", d.Auth.VerifyEmail)
	g.POST("/resend-verification", d.Auth.ResendVerification)
	g.POST("/forgot-password", d.Auth.ForgotPassword)
	g.POST("/reset-password/:token", d.Auth.ResetPassword)
	// Refresh presents the refresh token itself; no access token and
	// no CSRF check, the rotating token is the proof of possession.
	g.POST("/refresh-token", d.Auth.RefreshToken)

	auth := protected(e, d, "/api/auth")
	auth.GET("/me", d.Auth.Me)
	auth.GET("/csrf-token", d.Auth.CSRFToken)
	auth.POST("/logout", d.Auth.Logout)
	auth.POST("/logout-all", d.Auth.LogoutAll)
}

// registerUsers registers the self-service profile endpoints.  The
// password change additionally sits behind the sensitive-operations
// limiter.
func registerUsers(e *echo.Echo, d Deps) {
	g := protected(e, d, "/api/users")
	g.GET("/profile", d.User.GetProfile)
	g.PUT("/profile", d.User.UpdateProfile)
	g.PUT("/password", d.User.ChangePassword,
		middleware.UserRateLimit(d.Limiter, d.Policies.Sensitive))
}

// registerActivity registers the caller-scoped audit trail views.
func registerActivity(e *echo.Echo, d Deps) {
	g := protected(e, d, "/api/activity")
	g.GET("", d.Activity.MyActivity)
	g.GET("/:id", d.Activity.GetMyActivity)
}

// registerAdmin registers user administration, the cross-user audit
// views and the security utilities.  User and security management is
// ADMIN only; the audit views are open to all staff roles.
func registerAdmin(e *echo.Echo, d Deps) {
	g := protected(e, d, "/api/admin")
	g.Use(middleware.UserRateLimit(d.Limiter, d.Policies.Admin))

	staff := g.Group("/activity-logs",
		middleware.RequireRole(model.RoleAdmin, model.RoleDeveloper, model.RoleModerator))
	staff.GET("", d.Activity.AllActivity)
	staff.GET("/recent", d.Activity.RecentActivity)

	admin := g.Group("", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/stats", d.Admin.Stats)
	admin.GET("/users", d.Admin.ListUsers)
	admin.GET("/users/:id", d.Admin.GetUser)
	admin.PUT("/users/:id", d.Admin.UpdateUser)
	admin.DELETE("/users/:id", d.Admin.DeleteUser)

	admin.GET("/rate-limits", d.Admin.RateLimitEntries)
	admin.GET("/users/:id/rate-limit", d.Admin.RateLimitStatus)
	admin.DELETE("/users/:id/rate-limit", d.Admin.RateLimitReset)
	admin.POST("/users/:id/csrf-token", d.Admin.RegenerateCSRF)
}
