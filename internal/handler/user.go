package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/acermak/user-management-api/internal/apperr"
	"github.com/acermak/user-management-api/internal/config"
	"github.com/acermak/user-management-api/internal/middleware"
	"github.com/acermak/user-management-api/internal/utils"
)

// UserHandler serves the self-service profile endpoints.
type UserHandler struct {
	Cfg      config.Config
	Users    UserStore
	Activity ActivityStore
}

func NewUserHandler(cfg config.Config, users UserStore, activity ActivityStore) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users, Activity: activity}
}

type updateProfileReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// GetProfile returns the caller's own profile.
func (h *UserHandler) GetProfile(c echo.Context) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return apperr.Authentication(apperr.MsgNotAuthorized)
	}
	return respond(c, http.StatusOK, "Profile retrieved successfully", echo.Map{"user": projectUser(u)})
}

// UpdateProfile changes the caller's name and phone.  Email and role
// are not self-serviceable; those changes go through an administrator.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return apperr.Authentication(apperr.MsgNotAuthorized)
	}

	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}
	if req.Name == "" {
		req.Name = u.Name
	}
	if l := len(req.Name); l < 2 || l > 50 {
		return apperr.Validation("Validation failed",
			map[string][]string{"name": {"Name must be between 2 and 50 characters"}})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, u.ID, req.Name, req.Phone); err != nil {
		return err
	}

	audit(ctx, h.Activity, c, u.ID, "Profile updated", map[string]any{
		"name":  req.Name,
		"phone": req.Phone,
	})

	updated, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile updated successfully", echo.Map{"user": projectUser(updated)})
}

// ChangePassword replaces the caller's credential after verifying the
// current one.  The stored refresh token is revoked so every existing
// session has to authenticate again with the new password.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return apperr.Authentication(apperr.MsgNotAuthorized)
	}

	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}

	fields := map[string][]string{}
	if req.CurrentPassword == "" {
		fields["currentPassword"] = []string{"Current password is required"}
	}
	if !validPassword(req.NewPassword) {
		fields["newPassword"] = []string{passwordPolicy}
	}
	if req.NewPassword != req.ConfirmPassword {
		fields["confirmPassword"] = []string{"Passwords do not match"}
	}
	if len(fields) > 0 {
		return apperr.Validation("Validation failed", fields)
	}

	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return apperr.Authentication(apperr.MsgPasswordMismatch)
	}
	if req.NewPassword == req.CurrentPassword {
		return apperr.Validation("Validation failed",
			map[string][]string{"newPassword": {"New password must be different from the current password"}})
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := h.Users.ClearRefresh(ctx, u.ID); err != nil {
		c.Logger().Warnf("revoke refresh after password change failed user_id=%d: %v", u.ID, err)
	}

	audit(ctx, h.Activity, c, u.ID, "Password changed", nil)

	return respond(c, http.StatusOK, "Password changed successfully. Please log in again.", nil)
}
