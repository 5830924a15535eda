package handler

// In-memory fakes for the store interfaces.  They implement just
// enough semantics for the handler tests: keyed lookups, the
// conditional refresh-token swap, and ordered activity entries.

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acermak/user-management-api/internal/model"
	"github.com/acermak/user-management-api/internal/repository"
)

type fakeUserStore struct {
	mu     sync.Mutex
	users  map[uint64]*model.User
	nextID uint64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uint64]*model.User{}}
}

func (s *fakeUserStore) add(u *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	return u
}

func clone(u *model.User) *model.User {
	cp := *u
	if u.ResetTokenExpires != nil {
		t := *u.ResetTokenExpires
		cp.ResetTokenExpires = &t
	}
	if u.RefreshTokenExpires != nil {
		t := *u.RefreshTokenExpires
		cp.RefreshTokenExpires = &t
	}
	return &cp
}

func (s *fakeUserStore) Create(_ context.Context, u *model.User) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return 0, repository.ErrEmailExists
		}
	}
	s.nextID++
	cp := clone(u)
	cp.ID = s.nextID
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.users[cp.ID] = cp
	return cp.ID, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return clone(u), nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) GetByVerificationToken(_ context.Context, token string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerificationToken != "" && u.VerificationToken == token {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) GetByResetToken(_ context.Context, token string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ResetToken != "" && u.ResetToken == token &&
			u.ResetTokenExpires != nil && u.ResetTokenExpires.After(time.Now()) {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) MarkEmailVerified(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.EmailVerified = true
		u.VerificationToken = ""
	}
	return nil
}

func (s *fakeUserStore) SetVerificationToken(_ context.Context, id uint64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.VerificationToken = token
	}
	return nil
}

func (s *fakeUserStore) SetResetToken(_ context.Context, id uint64, token string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.ResetToken = token
		u.ResetTokenExpires = &expires
	}
	return nil
}

func (s *fakeUserStore) UpdatePasswordClearReset(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.PasswordHash = hash
		u.ResetToken = ""
		u.ResetTokenExpires = nil
	}
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (s *fakeUserStore) StoreRefresh(_ context.Context, id uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.RefreshTokenHash = tokenHash
		u.RefreshTokenExpires = &exp
	}
	return nil
}

func (s *fakeUserStore) RotateRefresh(_ context.Context, id uint64, oldHash, newHash string, exp time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.RefreshTokenHash != oldHash {
		return false, nil
	}
	u.RefreshTokenHash = newHash
	u.RefreshTokenExpires = &exp
	return true, nil
}

func (s *fakeUserStore) ClearRefresh(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.RefreshTokenHash = ""
		u.RefreshTokenExpires = nil
	}
	return nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, id uint64, name, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Name = name
		u.Phone = phone
	}
	return nil
}

func (s *fakeUserStore) List(_ context.Context, f repository.ListFilter) ([]*model.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.User
	for _, u := range s.users {
		if f.Role != "" && string(u.Role) != f.Role {
			continue
		}
		if f.Status != "" && string(u.Status) != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(u.Name, f.Search) && !strings.Contains(u.Email, f.Search) {
			continue
		}
		out = append(out, clone(u))
	}
	return out, len(out), nil
}

func (s *fakeUserStore) AdminUpdate(_ context.Context, id uint64, name, email, phone string, role model.Role, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if name != "" {
		u.Name = name
	}
	if email != "" {
		u.Email = email
	}
	if phone != "" {
		u.Phone = phone
	}
	if role != "" {
		u.Role = role
	}
	if status != "" {
		u.Status = status
	}
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *fakeUserStore) GetStats(_ context.Context) (repository.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st repository.Stats
	for _, u := range s.users {
		st.Total++
		switch u.Role {
		case model.RoleAdmin:
			st.Admins++
		case model.RoleDeveloper:
			st.Developers++
		case model.RoleModerator:
			st.Moderators++
		case model.RoleClient:
			st.Clients++
		}
		switch u.Status {
		case model.StatusActive:
			st.Active++
		case model.StatusInactive:
			st.Inactive++
		case model.StatusSuspended:
			st.Suspended++
		}
	}
	return st, nil
}

type fakeActivityStore struct {
	mu      sync.Mutex
	entries []*model.ActivityLog
	nextID  uint64
}

func newFakeActivityStore() *fakeActivityStore { return &fakeActivityStore{} }

func (s *fakeActivityStore) Insert(_ context.Context, e *model.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *e
	cp.ID = s.nextID
	cp.CreatedAt = time.Now().UTC()
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *fakeActivityStore) toEntry(e *model.ActivityLog) *repository.Entry {
	return &repository.Entry{ActivityLog: *e}
}

func (s *fakeActivityStore) List(_ context.Context, f repository.ActivityFilter) ([]*repository.Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if f.UserID != 0 && e.UserID != f.UserID {
			continue
		}
		if f.Activity != "" && e.Activity != f.Activity {
			continue
		}
		out = append(out, s.toEntry(e))
	}
	return out, len(out), nil
}

func (s *fakeActivityStore) GetForUser(_ context.Context, id, userID uint64) (*repository.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id && e.UserID == userID {
			return s.toEntry(e), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeActivityStore) Recent(_ context.Context, limit int) ([]*repository.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.Entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.toEntry(s.entries[i]))
	}
	return out, nil
}

// activities returns the recorded activity labels in insertion order.
func (s *fakeActivityStore) activities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Activity)
	}
	return out
}

// fakeMailer records sends so tests can assert on them.
type fakeMailer struct {
	mu                 sync.Mutex
	verificationTokens []string
	resetTokens        []string
	welcomes           []string
}

func (m *fakeMailer) SendVerification(_ context.Context, _, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verificationTokens = append(m.verificationTokens, token)
	return nil
}

func (m *fakeMailer) SendWelcome(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes = append(m.welcomes, to)
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, _, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens = append(m.resetTokens, token)
	return nil
}

// newRequest builds an Echo context around a request with an optional
// JSON body.
func newRequest(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
