package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acermak/user-management-api/internal/apperr"
	"github.com/acermak/user-management-api/internal/middleware"
	"github.com/acermak/user-management-api/internal/repository"
)

// ActivityHandler serves the audit trail views.
type ActivityHandler struct {
	Activity ActivityStore
}

func NewActivityHandler(activity ActivityStore) *ActivityHandler {
	return &ActivityHandler{Activity: activity}
}

// activityProjection flattens a log entry with the actor's identity.
type activityProjection struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	UserEmail string    `json:"userEmail,omitempty"`
	UserRole  string    `json:"userRole,omitempty"`
	Activity  string    `json:"activity"`
	Details   string    `json:"details,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func projectActivity(e *repository.Entry) activityProjection {
	return activityProjection{
		ID:        e.ID,
		UserID:    e.UserID,
		UserName:  e.UserName,
		UserEmail: e.UserEmail,
		UserRole:  string(e.UserRole),
		Activity:  e.Activity,
		Details:   e.Details,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		CreatedAt: e.CreatedAt,
	}
}

func projectActivities(entries []*repository.Entry) []activityProjection {
	out := make([]activityProjection, 0, len(entries))
	for _, e := range entries {
		out = append(out, projectActivity(e))
	}
	return out
}

// MyActivity lists the caller's own audit entries, newest first.
func (h *ActivityHandler) MyActivity(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return apperr.Authentication(apperr.MsgNotAuthorized)
	}

	f := repository.ActivityFilter{
		UserID:   userID,
		Activity: c.QueryParam("activity"),
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 20),
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	entries, total, err := h.Activity.List(ctx, f)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Activity logs retrieved successfully", echo.Map{
		"logs":       projectActivities(entries),
		"pagination": paginate(f.Page, f.Limit, total),
	})
}

// GetMyActivity returns one of the caller's own entries by id.  The
// lookup is scoped to the caller, so other users' entries read as not
// found rather than forbidden.
func (h *ActivityHandler) GetMyActivity(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return apperr.Authentication(apperr.MsgNotAuthorized)
	}
	id, ok := pathID(c)
	if !ok {
		return apperr.Validation("Invalid activity log id", nil)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	entry, err := h.Activity.GetForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Activity log not found")
		}
		return err
	}
	return respond(c, http.StatusOK, "Activity log retrieved successfully",
		echo.Map{"log": projectActivity(entry)})
}

// AllActivity lists audit entries across all users.  Reserved for the
// staff roles by the router.
func (h *ActivityHandler) AllActivity(c echo.Context) error {
	f := repository.ActivityFilter{
		Activity: c.QueryParam("activity"),
		Search:   c.QueryParam("search"),
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 20),
	}
	if v := queryInt(c, "userId", 0); v > 0 {
		f.UserID = uint64(v)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	entries, total, err := h.Activity.List(ctx, f)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Activity logs retrieved successfully", echo.Map{
		"logs":       projectActivities(entries),
		"pagination": paginate(f.Page, f.Limit, total),
	})
}

// RecentActivity returns the latest entries for the admin dashboard.
func (h *ActivityHandler) RecentActivity(c echo.Context) error {
	limit := queryInt(c, "limit", 10)
	if limit > 100 {
		limit = 100
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	entries, err := h.Activity.Recent(ctx, limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Recent activity retrieved successfully",
		echo.Map{"logs": projectActivities(entries)})
}
