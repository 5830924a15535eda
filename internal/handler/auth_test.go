package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acermak/user-management-api/internal/apperr"
	"github.com/acermak/user-management-api/internal/config"
	"github.com/acermak/user-management-api/internal/middleware"
	"github.com/acermak/user-management-api/internal/model"
	"github.com/acermak/user-management-api/internal/security"
	"github.com/acermak/user-management-api/internal/store"
	"github.com/acermak/user-management-api/internal/utils"
)

func testConfig() config.Config {
	return config.Config{
		Env:              "test",
		JWTSecret:        "access-secret",
		JWTRefreshSecret: "refresh-secret",
		AccessTTL:        time.Hour,
		RefreshTTL:       24 * time.Hour,
		ResetTokenTTL:    time.Hour,
		CSRFTTL:          time.Hour,
		BcryptCost:       4,
	}
}

type authFixture struct {
	h        *AuthHandler
	users    *fakeUserStore
	activity *fakeActivityStore
	mailer   *fakeMailer
	csrf     *security.CSRFGuard
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mem := store.NewMemory(time.Hour)
	t.Cleanup(mem.Stop)
	f := &authFixture{
		users:    newFakeUserStore(),
		activity: newFakeActivityStore(),
		mailer:   &fakeMailer{},
		csrf:     security.NewCSRFGuard(mem, time.Hour),
	}
	f.h = NewAuthHandler(testConfig(), f.users, f.activity, f.mailer, f.csrf)
	return f
}

// seedUser inserts a verified, active user with the given password.
func (f *authFixture) seedUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	hash, err := utils.HashPassword(password, 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return f.users.add(&model.User{
		Name:          "Seed User",
		Email:         email,
		PasswordHash:  hash,
		Role:          model.RoleClient,
		Status:        model.StatusActive,
		EmailVerified: true,
	})
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	if !body.Success {
		t.Fatalf("success = false: %s", body.Message)
	}
	return body.Data
}

func wantAppErr(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("want *apperr.Error, got %v", err)
	}
	if ae.Kind != kind {
		t.Fatalf("error kind = %v (%s), want %v", ae.Kind, ae.Message, kind)
	}
	return ae
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	f := newAuthFixture(t)

	// Register.
	c, rec := newRequest(t, http.MethodPost, "/api/auth/register",
		`{"name":"Alex","email":"alex@example.com","password":"Str0ng!pass","confirmPassword":"Str0ng!pass"}`)
	if err := f.h.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if len(f.mailer.verificationTokens) != 1 {
		t.Fatalf("verification emails sent = %d, want 1", len(f.mailer.verificationTokens))
	}

	// Login before verification is rejected.
	c, _ = newRequest(t, http.MethodPost, "/api/auth/login",
		`{"email":"alex@example.com","password":"Str0ng!pass"}`)
	ae := wantAppErr(t, f.h.Login(c), apperr.KindAuthentication)
	if ae.Message != apperr.MsgEmailNotVerified {
		t.Fatalf("message = %q, want %q", ae.Message, apperr.MsgEmailNotVerified)
	}

	// Verify with the emailed token.
	c, rec = newRequest(t, http.MethodGet, "/api/auth/verify-email/x", "")
	c.SetParamNames("token")
	c.SetParamValues(f.mailer.verificationTokens[0])
	if err := f.h.VerifyEmail(c); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(f.mailer.welcomes) != 1 {
		t.Fatalf("welcome emails sent = %d, want 1", len(f.mailer.welcomes))
	}

	// The token is consumed: a second verification attempt fails.
	c, _ = newRequest(t, http.MethodGet, "/api/auth/verify-email/x", "")
	c.SetParamNames("token")
	c.SetParamValues(f.mailer.verificationTokens[0])
	wantAppErr(t, f.h.VerifyEmail(c), apperr.KindValidation)

	// Login now succeeds and yields the full token triple.
	c, rec = newRequest(t, http.MethodPost, "/api/auth/login",
		`{"email":"alex@example.com","password":"Str0ng!pass"}`)
	if err := f.h.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	data := decodeData(t, rec)
	for _, field := range []string{"accessToken", "refreshToken", "csrfToken"} {
		if s, _ := data[field].(string); s == "" {
			t.Fatalf("missing %s in login response", field)
		}
	}

	// The stored refresh slot holds the hash of the returned token.
	u, err := f.users.GetByEmail(c.Request().Context(), "alex@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u.RefreshTokenHash != utils.HashTokenRaw(data["refreshToken"].(string)) {
		t.Fatal("stored refresh hash does not match issued token")
	}
}

func TestLoginCredentialMessages(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "known@example.com", "Str0ng!pass")

	c, _ := newRequest(t, http.MethodPost, "/api/auth/login",
		`{"email":"unknown@example.com","password":"Str0ng!pass"}`)
	ae := wantAppErr(t, f.h.Login(c), apperr.KindAuthentication)
	if ae.Message != apperr.MsgNoAccount {
		t.Fatalf("message = %q, want %q", ae.Message, apperr.MsgNoAccount)
	}

	c, _ = newRequest(t, http.MethodPost, "/api/auth/login",
		`{"email":"known@example.com","password":"Wr0ng!pass"}`)
	ae = wantAppErr(t, f.h.Login(c), apperr.KindAuthentication)
	if ae.Message != apperr.MsgWrongPassword {
		t.Fatalf("message = %q, want %q", ae.Message, apperr.MsgWrongPassword)
	}
}

func TestLoginStatusGating(t *testing.T) {
	f := newAuthFixture(t)

	cases := []struct {
		status model.Status
		want   string
	}{
		{model.StatusInactive, apperr.MsgAccountInactive},
		{model.StatusSuspended, apperr.MsgAccountSuspended},
	}
	for _, tc := range cases {
		u := f.seedUser(t, strings.ToLower(string(tc.status))+"@example.com", "Str0ng!pass")
		u.Status = tc.status

		c, _ := newRequest(t, http.MethodPost, "/api/auth/login",
			`{"email":"`+u.Email+`","password":"Str0ng!pass"}`)
		ae := wantAppErr(t, f.h.Login(c), apperr.KindAuthentication)
		if ae.Message != tc.want {
			t.Fatalf("status %s: message = %q, want %q", tc.status, ae.Message, tc.want)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "taken@example.com", "Str0ng!pass")

	c, _ := newRequest(t, http.MethodPost, "/api/auth/register",
		`{"name":"Dup","email":"taken@example.com","password":"Str0ng!pass","confirmPassword":"Str0ng!pass"}`)
	wantAppErr(t, f.h.Register(c), apperr.KindConflict)
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)

	c, _ := newRequest(t, http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"not-an-email","password":"weak","confirmPassword":"other"}`)
	ae := wantAppErr(t, f.h.Register(c), apperr.KindValidation)
	for _, field := range []string{"name", "email", "password", "confirmPassword"} {
		if len(ae.Fields[field]) == 0 {
			t.Errorf("missing field error for %q", field)
		}
	}
}

func loginFor(t *testing.T, f *authFixture, email, password string) (access, refresh string) {
	t.Helper()
	c, rec := newRequest(t, http.MethodPost, "/api/auth/login",
		`{"email":"`+email+`","password":"`+password+`"}`)
	if err := f.h.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	data := decodeData(t, rec)
	return data["accessToken"].(string), data["refreshToken"].(string)
}

func TestRefreshRotation(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "rot@example.com", "Str0ng!pass")
	_, refresh := loginFor(t, f, "rot@example.com", "Str0ng!pass")

	// First refresh succeeds and returns a new pair.
	c, rec := newRequest(t, http.MethodPost, "/api/auth/refresh-token",
		`{"refreshToken":"`+refresh+`"}`)
	if err := f.h.RefreshToken(c); err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	data := decodeData(t, rec)
	newRefresh := data["refreshToken"].(string)
	if newRefresh == refresh {
		t.Fatal("refresh token was not rotated")
	}

	// The consumed token loses the compare-and-swap and is rejected.
	c, _ = newRequest(t, http.MethodPost, "/api/auth/refresh-token",
		`{"refreshToken":"`+refresh+`"}`)
	ae := wantAppErr(t, f.h.RefreshToken(c), apperr.KindAuthentication)
	if ae.Message != apperr.MsgInvalidRefresh {
		t.Fatalf("message = %q, want %q", ae.Message, apperr.MsgInvalidRefresh)
	}

	// The rotated token keeps working.
	c, _ = newRequest(t, http.MethodPost, "/api/auth/refresh-token",
		`{"refreshToken":"`+newRefresh+`"}`)
	if err := f.h.RefreshToken(c); err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}
}

func TestRefreshRejectsForgedAndRevoked(t *testing.T) {
	f := newAuthFixture(t)
	u := f.seedUser(t, "rev@example.com", "Str0ng!pass")
	_, refresh := loginFor(t, f, "rev@example.com", "Str0ng!pass")

	// A structurally valid token signed with the wrong secret.
	forged, err := utils.NewRefreshToken("other-secret", u.ID, u.Email, string(u.Role), time.Hour)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	c, _ := newRequest(t, http.MethodPost, "/api/auth/refresh-token",
		`{"refreshToken":"`+forged.Token+`"}`)
	wantAppErr(t, f.h.RefreshToken(c), apperr.KindAuthentication)

	// Revocation clears the slot; the last-issued token stops working.
	if err := f.users.ClearRefresh(c.Request().Context(), u.ID); err != nil {
		t.Fatalf("ClearRefresh: %v", err)
	}
	c, _ = newRequest(t, http.MethodPost, "/api/auth/refresh-token",
		`{"refreshToken":"`+refresh+`"}`)
	wantAppErr(t, f.h.RefreshToken(c), apperr.KindAuthentication)
}

func authedContext(t *testing.T, f *authFixture, u *model.User, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	c, rec := newRequest(t, method, target, body)
	c.Set(middleware.CtxUserID, u.ID)
	c.Set(middleware.CtxEmail, u.Email)
	c.Set(middleware.CtxRole, string(u.Role))
	c.Set(middleware.CtxUser, u)
	return c, rec
}

func TestLogoutClearsSessionState(t *testing.T) {
	f := newAuthFixture(t)
	u := f.seedUser(t, "out@example.com", "Str0ng!pass")
	_, refresh := loginFor(t, f, "out@example.com", "Str0ng!pass")

	c, rec := authedContext(t, f, u, http.MethodPost, "/api/auth/logout", "")
	if err := f.h.Logout(c); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	stored, err := f.users.GetByID(c.Request().Context(), u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.RefreshTokenHash != "" {
		t.Fatal("refresh slot not cleared on logout")
	}
	if f.csrf.HasToken(c.Request().Context(), u.ID) {
		t.Fatal("csrf entry not cleared on logout")
	}

	// The revoked refresh token cannot start a new session.
	c, _ = newRequest(t, http.MethodPost, "/api/auth/refresh-token",
		`{"refreshToken":"`+refresh+`"}`)
	wantAppErr(t, f.h.RefreshToken(c), apperr.KindAuthentication)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	u := f.seedUser(t, "reset@example.com", "Old$tr0ngpass")

	c, _ := newRequest(t, http.MethodPost, "/api/auth/forgot-password",
		`{"email":"reset@example.com"}`)
	if err := f.h.ForgotPassword(c); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if len(f.mailer.resetTokens) != 1 {
		t.Fatalf("reset emails sent = %d, want 1", len(f.mailer.resetTokens))
	}

	c, _ = newRequest(t, http.MethodPost, "/api/auth/reset-password/x",
		`{"password":"New$tr0ngpass1","confirmPassword":"New$tr0ngpass1"}`)
	c.SetParamNames("token")
	c.SetParamValues(f.mailer.resetTokens[0])
	if err := f.h.ResetPassword(c); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	stored, err := f.users.GetByID(c.Request().Context(), u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !utils.VerifyPassword(stored.PasswordHash, "New$tr0ngpass1") {
		t.Fatal("new password does not verify")
	}
	if stored.ResetToken != "" {
		t.Fatal("reset token not consumed")
	}

	// A consumed token cannot be replayed.
	c, _ = newRequest(t, http.MethodPost, "/api/auth/reset-password/x",
		`{"password":"An0ther$trong1","confirmPassword":"An0ther$trong1"}`)
	c.SetParamNames("token")
	c.SetParamValues(f.mailer.resetTokens[0])
	wantAppErr(t, f.h.ResetPassword(c), apperr.KindValidation)
}

func TestCSRFTokenEndpointRotates(t *testing.T) {
	f := newAuthFixture(t)
	u := f.seedUser(t, "csrf@example.com", "Str0ng!pass")

	c, rec := authedContext(t, f, u, http.MethodGet, "/api/auth/csrf-token", "")
	if err := f.h.CSRFToken(c); err != nil {
		t.Fatalf("CSRFToken: %v", err)
	}
	first := decodeData(t, rec)["csrfToken"].(string)
	if rec.Header().Get(middleware.CSRFHeaderName) != first {
		t.Fatal("response header does not carry the issued token")
	}

	c, rec = authedContext(t, f, u, http.MethodGet, "/api/auth/csrf-token", "")
	if err := f.h.CSRFToken(c); err != nil {
		t.Fatalf("CSRFToken: %v", err)
	}
	second := decodeData(t, rec)["csrfToken"].(string)

	if !f.csrf.Validate(c.Request().Context(), u.ID, second) {
		t.Fatal("latest token does not validate")
	}
	if f.csrf.Validate(c.Request().Context(), u.ID, first) {
		t.Fatal("superseded token still validates")
	}
}

func TestAuditTrailRecordsAuthEvents(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "trail@example.com", "Str0ng!pass")
	loginFor(t, f, "trail@example.com", "Str0ng!pass")

	got := f.activity.activities()
	if len(got) == 0 || got[len(got)-1] != "User logged in" {
		t.Fatalf("activities = %v, want trailing login entry", got)
	}
}
