package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acermak/user-management-api/internal/apperr"
	"github.com/acermak/user-management-api/internal/config"
	"github.com/acermak/user-management-api/internal/mail"
	"github.com/acermak/user-management-api/internal/middleware"
	"github.com/acermak/user-management-api/internal/model"
	"github.com/acermak/user-management-api/internal/repository"
	"github.com/acermak/user-management-api/internal/security"
	"github.com/acermak/user-management-api/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Activity ActivityStore
	Mailer   mail.Mailer
	CSRF     *security.CSRFGuard
}

func NewAuthHandler(cfg config.Config, users UserStore, activity ActivityStore, mailer mail.Mailer, csrf *security.CSRFGuard) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Activity: activity, Mailer: mailer, CSRF: csrf}
}

// ----- DTOs -----

type registerReq struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailReq struct {
	Email string `json:"email"`
}

type resetPasswordReq struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResp struct {
	User         userProjection `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	CSRFToken    string         `json:"csrfToken"`
}

// Register creates an account in the unverified state and queues the
// verification email.  A failed send never fails the registration —
// the account already exists and the token can be resent.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}
	req.Email = normalizeEmail(req.Email)

	fields := map[string][]string{}
	if l := len(req.Name); l < 2 || l > 50 {
		fields["name"] = []string{"Name must be between 2 and 50 characters"}
	}
	if !validEmail(req.Email) {
		fields["email"] = []string{"Invalid email address"}
	}
	if !validPassword(req.Password) {
		fields["password"] = []string{passwordPolicy}
	}
	if req.Password != req.ConfirmPassword {
		fields["confirmPassword"] = []string{"Passwords do not match"}
	}
	if len(fields) > 0 {
		return apperr.Validation("Validation failed", fields)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
		return apperr.Conflict(apperr.MsgUserExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	verificationToken, err := utils.RandomHex(32)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return err
	}

	u := &model.User{
		Name:              req.Name,
		Email:             req.Email,
		PasswordHash:      hash,
		Phone:             req.Phone,
		Role:              model.RoleClient,
		Status:            model.StatusActive,
		VerificationToken: verificationToken,
	}
	id, err := h.Users.Create(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apperr.Conflict(apperr.MsgUserExists)
		}
		return err
	}
	u.ID = id

	audit(ctx, h.Activity, c, id, "User registered", map[string]any{"email": req.Email})

	// Best effort: registration already succeeded.
	if err := h.Mailer.SendVerification(ctx, u.Email, u.Name, verificationToken); err != nil {
		c.Logger().Errorf("send verification email failed user_id=%d: %v", id, err)
	}

	return respond(c, http.StatusCreated,
		"Registration successful. Please check your email to verify your account.",
		echo.Map{"user": projectUser(u)})
}

// Login verifies the credentials, gates on account status and email
// verification, and returns a fresh token triple.  The stored refresh
// token is replaced, so logging in ends any previous session's ability
// to refresh.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}
	req.Email = normalizeEmail(req.Email)
	if !validEmail(req.Email) || req.Password == "" {
		return apperr.Validation("Email and password are required", nil)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Authentication(apperr.MsgNoAccount)
		}
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperr.Authentication(apperr.MsgWrongPassword)
	}

	if u.Status != model.StatusActive {
		switch u.Status {
		case model.StatusInactive:
			return apperr.Authentication(apperr.MsgAccountInactive)
		case model.StatusSuspended:
			return apperr.Authentication(apperr.MsgAccountSuspended)
		default:
			return apperr.Authentication(apperr.MsgAccountNotActive)
		}
	}
	if !u.EmailVerified {
		return apperr.Authentication(apperr.MsgEmailNotVerified)
	}

	access, refresh, err := h.issuePair(u)
	if err != nil {
		return err
	}
	// Persist the refresh token only after both tokens exist, so the
	// stored value always matches a token the client actually holds.
	if err := h.Users.StoreRefresh(ctx, u.ID, utils.HashTokenRaw(refresh.Token), refresh.Exp); err != nil {
		return err
	}

	csrfToken, err := h.CSRF.IssueForUser(ctx, u.ID)
	if err != nil {
		return err
	}

	audit(ctx, h.Activity, c, u.ID, "User logged in", map[string]any{"email": u.Email})

	return respond(c, http.StatusOK, "Login successful", sessionResp{
		User:         projectUser(u),
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		CSRFToken:    csrfToken,
	})
}

// VerifyEmail consumes a verification token.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return apperr.Validation("Verification token is required", nil)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Validation(apperr.MsgVerifyInvalid,
				map[string][]string{"token": {apperr.MsgVerifyInvalid}})
		}
		return err
	}
	if err := h.Users.MarkEmailVerified(ctx, u.ID); err != nil {
		return err
	}

	audit(ctx, h.Activity, c, u.ID, "Email verified", map[string]any{"email": u.Email})

	if err := h.Mailer.SendWelcome(ctx, u.Email, u.Name); err != nil {
		c.Logger().Errorf("send welcome email failed user_id=%d: %v", u.ID, err)
	}

	return respond(c, http.StatusOK,
		"Email verified successfully. You can now log in to your account.", nil)
}

// ResendVerification rotates the verification token and resends the email.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}
	req.Email = normalizeEmail(req.Email)
	if !validEmail(req.Email) {
		return apperr.Validation("Invalid email address", nil)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(apperr.MsgUserNotFound)
		}
		return err
	}
	if u.EmailVerified {
		return apperr.Validation("Email is already verified",
			map[string][]string{"email": {"Email is already verified"}})
	}

	token, err := utils.RandomHex(32)
	if err != nil {
		return err
	}
	if err := h.Users.SetVerificationToken(ctx, u.ID, token); err != nil {
		return err
	}

	if err := h.Mailer.SendVerification(ctx, u.Email, u.Name, token); err != nil {
		c.Logger().Errorf("resend verification email failed user_id=%d: %v", u.ID, err)
	}

	audit(ctx, h.Activity, c, u.ID, "Verification email resent", map[string]any{"email": u.Email})

	return respond(c, http.StatusOK,
		"Verification email sent successfully. Please check your inbox.", nil)
}

// ForgotPassword issues a short-lived reset token and emails it.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}
	req.Email = normalizeEmail(req.Email)
	if !validEmail(req.Email) {
		return apperr.Validation("Invalid email address", nil)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(apperr.MsgUserNotFound)
		}
		return err
	}

	token, err := utils.RandomHex(32)
	if err != nil {
		return err
	}
	expires := time.Now().UTC().Add(h.Cfg.ResetTokenTTL)
	if err := h.Users.SetResetToken(ctx, u.ID, token, expires); err != nil {
		return err
	}

	if err := h.Mailer.SendPasswordReset(ctx, u.Email, u.Name, token); err != nil {
		c.Logger().Errorf("send password reset email failed user_id=%d: %v", u.ID, err)
	}

	audit(ctx, h.Activity, c, u.ID, "Password reset requested", map[string]any{"email": u.Email})

	return respond(c, http.StatusOK, "Password reset instructions sent to your email", nil)
}

// ResetPassword consumes a reset token and replaces the credential.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return apperr.Validation("Reset token is required", nil)
	}
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}

	fields := map[string][]string{}
	if !validPassword(req.Password) {
		fields["password"] = []string{passwordPolicy}
	}
	if req.Password != req.ConfirmPassword {
		fields["confirmPassword"] = []string{"Passwords do not match"}
	}
	if len(fields) > 0 {
		return apperr.Validation("Validation failed", fields)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Validation(apperr.MsgResetInvalid,
				map[string][]string{"token": {"Reset token is invalid or has expired"}})
		}
		return err
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := h.Users.UpdatePasswordClearReset(ctx, u.ID, hash); err != nil {
		return err
	}

	audit(ctx, h.Activity, c, u.ID, "Password reset completed", map[string]any{"email": u.Email})

	return respond(c, http.StatusOK, "Password has been reset successfully", nil)
}

// RefreshToken exchanges a valid refresh token for a new pair.  The
// stored value is swapped with a conditional update, so of two racing
// calls presenting the same token exactly one wins; the loser gets an
// authentication error and must use the winner's tokens.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return apperr.Validation("Refresh token is required", nil)
	}

	claims, err := utils.VerifyToken(h.Cfg.JWTRefreshSecret, req.RefreshToken)
	if err != nil {
		return apperr.Authentication(apperr.MsgInvalidRefresh)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return apperr.Authentication(apperr.MsgInvalidRefresh)
	}

	presentedHash := utils.HashTokenRaw(req.RefreshToken)
	if u.RefreshTokenHash == "" || !utils.ConstantTimeEqual(u.RefreshTokenHash, presentedHash) {
		return apperr.Authentication(apperr.MsgInvalidRefresh)
	}
	if u.RefreshTokenExpires == nil || u.RefreshTokenExpires.Before(time.Now().UTC()) {
		return apperr.Authentication(apperr.MsgInvalidRefresh)
	}

	access, refresh, err := h.issuePair(u)
	if err != nil {
		return err
	}
	swapped, err := h.Users.RotateRefresh(ctx, u.ID, presentedHash, utils.HashTokenRaw(refresh.Token), refresh.Exp)
	if err != nil {
		return err
	}
	if !swapped {
		// Lost a rotation race or the token was revoked meanwhile.
		return apperr.Authentication(apperr.MsgInvalidRefresh)
	}

	csrfToken, err := h.CSRF.IssueForUser(ctx, u.ID)
	if err != nil {
		return err
	}

	audit(ctx, h.Activity, c, u.ID, "Token refreshed", map[string]any{"email": u.Email})

	return respond(c, http.StatusOK, "Token refreshed successfully", sessionResp{
		User:         projectUser(u),
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		CSRFToken:    csrfToken,
	})
}

// Logout revokes the stored refresh token and the CSRF entry.  The
// current access token keeps working until it naturally expires; its
// short TTL bounds the exposure.
func (h *AuthHandler) Logout(c echo.Context) error {
	return h.logout(c, "User logged out", "Logged out successfully")
}

// LogoutAll revokes every session.  With a single stored refresh token
// per user this is identical to Logout; it exists as a separate
// endpoint so clients keep working if per-session tokens arrive later.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	return h.logout(c, "User logged out from all devices", "Logged out from all devices successfully")
}

func (h *AuthHandler) logout(c echo.Context, activity, message string) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return apperr.Authentication(apperr.MsgNotAuthorized)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Users.ClearRefresh(ctx, userID); err != nil {
		return err
	}
	if err := h.CSRF.Clear(ctx, userID); err != nil {
		c.Logger().Warnf("clear csrf token failed user_id=%d: %v", userID, err)
	}

	audit(ctx, h.Activity, c, userID, activity, nil)

	return respond(c, http.StatusOK, message, nil)
}

// Me returns the authenticated user's projection.
func (h *AuthHandler) Me(c echo.Context) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return apperr.Authentication(apperr.MsgNotAuthorized)
	}
	return respond(c, http.StatusOK, "User retrieved successfully", echo.Map{"user": projectUser(u)})
}

// CSRFToken regenerates the caller's CSRF token and returns it.  The
// previous plaintext stops validating immediately.
func (h *AuthHandler) CSRFToken(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return apperr.Authentication(apperr.MsgNotAuthorized)
	}
	token, err := h.CSRF.IssueForUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	c.Response().Header().Set(middleware.CSRFHeaderName, token)
	return respond(c, http.StatusOK, "CSRF token generated", echo.Map{"csrfToken": token})
}

func (h *AuthHandler) issuePair(u *model.User) (access, refresh utils.SignedToken, err error) {
	access, err = utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, string(u.Role), h.Cfg.AccessTTL)
	if err != nil {
		return
	}
	refresh, err = utils.NewRefreshToken(h.Cfg.JWTRefreshSecret, u.ID, u.Email, string(u.Role), h.Cfg.RefreshTTL)
	return
}
