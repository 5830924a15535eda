package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acermak/user-management-api/internal/apperr"
	"github.com/acermak/user-management-api/internal/config"
	"github.com/acermak/user-management-api/internal/middleware"
	"github.com/acermak/user-management-api/internal/model"
	"github.com/acermak/user-management-api/internal/repository"
	"github.com/acermak/user-management-api/internal/security"
)

// AdminHandler serves user administration and the security utilities.
type AdminHandler struct {
	Users    UserStore
	Activity ActivityStore
	Limiter  *security.Limiter
	Policies config.RateLimitPolicies
	CSRF     *security.CSRFGuard
}

func NewAdminHandler(users UserStore, activity ActivityStore, l *security.Limiter, p config.RateLimitPolicies, csrf *security.CSRFGuard) *AdminHandler {
	return &AdminHandler{Users: users, Activity: activity, Limiter: l, Policies: p, CSRF: csrf}
}

type adminUpdateReq struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// ListUsers pages through all accounts with optional role/status/search
// filters and whitelisted sorting.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	f := repository.ListFilter{
		Role:      c.QueryParam("role"),
		Status:    c.QueryParam("status"),
		Search:    c.QueryParam("search"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
		Page:      queryInt(c, "page", 1),
		Limit:     queryInt(c, "limit", 10),
	}
	if f.Role != "" && !model.ValidRole(f.Role) {
		return apperr.Validation("Invalid role filter", nil)
	}
	if f.Status != "" && !model.ValidStatus(f.Status) {
		return apperr.Validation("Invalid status filter", nil)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	users, total, err := h.Users.List(ctx, f)
	if err != nil {
		return err
	}
	out := make([]userProjection, 0, len(users))
	for _, u := range users {
		out = append(out, projectUser(u))
	}
	return respond(c, http.StatusOK, "Users retrieved successfully", echo.Map{
		"users":      out,
		"pagination": paginate(f.Page, f.Limit, total),
	})
}

// GetUser returns one account with its recent activity.
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperr.Validation("Invalid user id", nil)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(apperr.MsgUserNotFound)
		}
		return err
	}

	entries, _, err := h.Activity.List(ctx, repository.ActivityFilter{UserID: id, Page: 1, Limit: 10})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User retrieved successfully", echo.Map{
		"user":           projectUser(u),
		"recentActivity": projectActivities(entries),
	})
}

// UpdateUser applies admin edits.  Role and status changes go through
// the transition tables: admin accounts are frozen, and a suspended
// account can only be moved to inactive.  Admins cannot change their
// own role or status; demotion and suspension require a second admin.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperr.Validation("Invalid user id", nil)
	}
	var req adminUpdateReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}
	req.Email = normalizeEmail(req.Email)

	fields := map[string][]string{}
	if req.Name != "" {
		if l := len(req.Name); l < 2 || l > 50 {
			fields["name"] = []string{"Name must be between 2 and 50 characters"}
		}
	}
	if req.Email != "" && !validEmail(req.Email) {
		fields["email"] = []string{"Invalid email address"}
	}
	if req.Role != "" && !model.ValidRole(req.Role) {
		fields["role"] = []string{"Invalid role"}
	}
	if req.Status != "" && !model.ValidStatus(req.Status) {
		fields["status"] = []string{"Invalid status"}
	}
	if len(fields) > 0 {
		return apperr.Validation("Validation failed", fields)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(apperr.MsgUserNotFound)
		}
		return err
	}

	actorID := middleware.CurrentUserID(c)
	if actorID == id && (req.Role != "" || req.Status != "") {
		return apperr.Authorization("You cannot change your own role or status")
	}

	role := model.Role(req.Role)
	status := model.Status(req.Status)
	if req.Role != "" && !model.RoleTransitionAllowed(target.Role, role) {
		return apperr.Authorization("Role change from " + string(target.Role) + " to " + req.Role + " is not allowed")
	}
	if req.Status != "" && !model.StatusTransitionAllowed(target.Status, status) {
		return apperr.Authorization("Status change from " + string(target.Status) + " to " + req.Status + " is not allowed")
	}

	if err := h.Users.AdminUpdate(ctx, id, req.Name, req.Email, req.Phone, role, status); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apperr.Conflict(apperr.MsgUserExists)
		}
		return err
	}

	// Suspension or deactivation kills the account's ability to refresh.
	if status == model.StatusSuspended || status == model.StatusInactive {
		if err := h.Users.ClearRefresh(ctx, id); err != nil {
			c.Logger().Warnf("revoke refresh for user %d failed: %v", id, err)
		}
		if err := h.CSRF.Clear(ctx, id); err != nil {
			c.Logger().Warnf("clear csrf for user %d failed: %v", id, err)
		}
	}

	audit(ctx, h.Activity, c, actorID, "User updated by admin", map[string]any{
		"targetUserId": id,
		"role":         req.Role,
		"status":       req.Status,
	})

	updated, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User updated successfully", echo.Map{"user": projectUser(updated)})
}

// DeleteUser removes an account.  Only inactive non-admin accounts can
// be deleted, and never one's own: deactivation first, deletion second.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperr.Validation("Invalid user id", nil)
	}
	actorID := middleware.CurrentUserID(c)
	if actorID == id {
		return apperr.Authorization("You cannot delete your own account")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(apperr.MsgUserNotFound)
		}
		return err
	}
	if target.Role == model.RoleAdmin {
		return apperr.Authorization("Admin accounts cannot be deleted")
	}
	if target.Status != model.StatusInactive {
		return apperr.Authorization("Only inactive accounts can be deleted")
	}

	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(apperr.MsgUserNotFound)
		}
		return err
	}

	audit(ctx, h.Activity, c, actorID, "User deleted by admin", map[string]any{
		"targetUserId": id,
		"targetEmail":  target.Email,
	})

	return respond(c, http.StatusOK, "User deleted successfully", nil)
}

// Stats returns the role and status breakdown for the dashboard.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	s, err := h.Users.GetStats(ctx)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User statistics retrieved successfully", echo.Map{
		"total": s.Total,
		"byRole": echo.Map{
			"admins":     s.Admins,
			"developers": s.Developers,
			"moderators": s.Moderators,
			"clients":    s.Clients,
		},
		"byStatus": echo.Map{
			"active":    s.Active,
			"inactive":  s.Inactive,
			"suspended": s.Suspended,
		},
	})
}

// ----- security utilities -----

func (h *AdminHandler) policyByName(name string) (security.Policy, bool) {
	switch name {
	case "general":
		return h.Policies.General, true
	case "auth":
		return h.Policies.Auth, true
	case "sensitive":
		return h.Policies.Sensitive, true
	case "admin":
		return h.Policies.Admin, true
	case "upload":
		return h.Policies.Upload, true
	}
	return security.Policy{}, false
}

// RateLimitStatus reports a user's live counters across every route
// class without counting a request.
func (h *AdminHandler) RateLimitStatus(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperr.Validation("Invalid user id", nil)
	}
	key := strconv.FormatUint(id, 10)
	ctx := c.Request().Context()

	status := echo.Map{}
	for _, p := range []security.Policy{h.Policies.General, h.Policies.Auth, h.Policies.Sensitive, h.Policies.Admin, h.Policies.Upload} {
		if w, live := h.Limiter.Status(ctx, key, p); live {
			remaining := p.Max - w.Count
			if remaining < 0 {
				remaining = 0
			}
			status[p.Name] = echo.Map{
				"count":     w.Count,
				"limit":     p.Max,
				"remaining": remaining,
				"resetTime": w.ResetAt.UTC().Format(time.RFC3339),
			}
		}
	}
	return respond(c, http.StatusOK, "Rate limit status retrieved successfully", echo.Map{
		"userId": id,
		"limits": status,
	})
}

// RateLimitReset drops a user's counter for one route class, or for
// every class when none is named.
func (h *AdminHandler) RateLimitReset(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperr.Validation("Invalid user id", nil)
	}
	key := strconv.FormatUint(id, 10)
	ctx := c.Request().Context()

	name := c.QueryParam("policy")
	policies := []security.Policy{h.Policies.General, h.Policies.Auth, h.Policies.Sensitive, h.Policies.Admin, h.Policies.Upload}
	if name != "" {
		p, ok := h.policyByName(name)
		if !ok {
			return apperr.Validation("Unknown rate limit policy: "+name, nil)
		}
		policies = []security.Policy{p}
	}
	for _, p := range policies {
		if err := h.Limiter.Reset(ctx, key, p); err != nil {
			return err
		}
	}

	audit(ctx, h.Activity, c, middleware.CurrentUserID(c), "Rate limit reset by admin", map[string]any{
		"targetUserId": id,
		"policy":       name,
	})

	return respond(c, http.StatusOK, "Rate limit reset successfully", nil)
}

// RateLimitEntries snapshots every live counter.  Only available with
// the in-memory store; a shared backend yields an empty list.
func (h *AdminHandler) RateLimitEntries(c echo.Context) error {
	entries := h.Limiter.Entries()
	out := make([]echo.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, echo.Map{
			"key":         e.Key,
			"count":       e.Count,
			"resetTime":   e.ResetAt.UTC().Format(time.RFC3339),
			"lastRequest": e.LastRequest.UTC().Format(time.RFC3339),
		})
	}
	return respond(c, http.StatusOK, "Rate limit entries retrieved successfully", echo.Map{
		"entries": out,
		"count":   len(out),
	})
}

// RegenerateCSRF rotates another user's CSRF token, invalidating the
// one their session currently holds.
func (h *AdminHandler) RegenerateCSRF(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperr.Validation("Invalid user id", nil)
	}
	ctx := c.Request().Context()

	if _, err := h.CSRF.IssueForUser(ctx, id); err != nil {
		return err
	}

	audit(ctx, h.Activity, c, middleware.CurrentUserID(c), "CSRF token regenerated by admin", map[string]any{
		"targetUserId": id,
	})

	return respond(c, http.StatusOK, "CSRF token regenerated successfully", nil)
}
