package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/acermak/user-management-api/internal/model"
)

// UserRepo persists users in the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id,name,email,password_hash,phone,role,status,email_verified,
verification_token,reset_token,reset_token_expires,refresh_token_hash,refresh_token_expires,
created_at,updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u         model.User
		phone     sql.NullString
		verTok    sql.NullString
		resetTok  sql.NullString
		resetExp  sql.NullTime
		refHash   sql.NullString
		refExp    sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &phone, &u.Role, &u.Status,
		&u.EmailVerified, &verTok, &resetTok, &resetExp, &refHash, &refExp,
		&u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Phone = phone.String
	u.VerificationToken = verTok.String
	u.ResetToken = resetTok.String
	if resetExp.Valid {
		t := resetExp.Time
		u.ResetTokenExpires = &t
	}
	u.RefreshTokenHash = refHash.String
	if refExp.Valid {
		t := refExp.Time
		u.RefreshTokenExpires = &t
	}
	return &u, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts a user and returns its ID.  New accounts start
// ACTIVE, unverified, role CLIENT unless the caller says otherwise.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, phone, role, status, email_verified, verification_token) VALUES (?,?,?,?,?,?,?,?)",
		u.Name, u.Email, u.PasswordHash, nullStr(u.Phone), u.Role, u.Status, u.EmailVerified, nullStr(u.VerificationToken))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// GetByVerificationToken fetches a user by exact verification token match.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE verification_token=? LIMIT 1", token)
	return scanUser(row)
}

// GetByResetToken fetches a user whose reset token matches and has not expired.
func (r *UserRepo) GetByResetToken(ctx context.Context, token string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE reset_token=? AND reset_token_expires > UTC_TIMESTAMP() LIMIT 1", token)
	return scanUser(row)
}

// MarkEmailVerified flips the verified flag and consumes the token.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified=1, verification_token=NULL WHERE id=?", id)
	return err
}

// SetVerificationToken rotates the email verification token.
func (r *UserRepo) SetVerificationToken(ctx context.Context, id uint64, token string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET verification_token=? WHERE id=?", token, id)
	return err
}

// SetResetToken stores a password reset token with its absolute expiry.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, token string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token=?, reset_token_expires=? WHERE id=?", token, expires, id)
	return err
}

// UpdatePasswordClearReset replaces the password hash and consumes the
// reset token in one statement.
func (r *UserRepo) UpdatePasswordClearReset(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, reset_token=NULL, reset_token_expires=NULL WHERE id=?", hash, id)
	return err
}

// UpdatePassword replaces the password hash (authenticated change).
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return err
}

// StoreRefresh unconditionally replaces the user's stored refresh
// token hash and expiry (login path).
func (r *UserRepo) StoreRefresh(ctx context.Context, id uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, refresh_token_expires=? WHERE id=?", tokenHash, exp, id)
	return err
}

// RotateRefresh swaps the stored refresh token hash only if the
// current stored value still equals oldHash.  The conditional update
// makes rotation a compare-and-swap: when two refresh calls race,
// exactly one succeeds and the loser sees false.
func (r *UserRepo) RotateRefresh(ctx context.Context, id uint64, oldHash, newHash string, exp time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, refresh_token_expires=? WHERE id=? AND refresh_token_hash=?",
		newHash, exp, id, oldHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearRefresh revokes the stored refresh token (logout).
func (r *UserRepo) ClearRefresh(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULL, refresh_token_expires=NULL WHERE id=?", id)
	return err
}

// UpdateProfile applies the self-service editable fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, phone string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, phone=? WHERE id=?", name, nullStr(phone), id)
	return err
}

// ListFilter narrows and pages the admin user listing.
type ListFilter struct {
	Role      string
	Status    string
	Search    string // matches name or email, case-insensitive
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// sortColumns whitelists ORDER BY targets.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"status":    "status",
}

// List returns a page of users plus the total match count.
func (r *UserRepo) List(ctx context.Context, f ListFilter) ([]*model.User, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Role != "" {
		where = append(where, "role=?")
		args = append(args, f.Role)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.Search != "" {
		where = append(where, "(name LIKE ? OR email LIKE ?)")
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat)
	}
	cond := strings.Join(where, " AND ")

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}

	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?",
		userColumns, cond, col, dir)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// AdminUpdate applies the admin-editable fields.  Empty values leave
// the column untouched.
func (r *UserRepo) AdminUpdate(ctx context.Context, id uint64, name, email, phone string, role model.Role, status model.Status) error {
	sets := []string{}
	args := []any{}
	if name != "" {
		sets = append(sets, "name=?")
		args = append(args, name)
	}
	if email != "" {
		sets = append(sets, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(email)))
	}
	if phone != "" {
		sets = append(sets, "phone=?")
		args = append(args, phone)
	}
	if role != "" {
		sets = append(sets, "role=?")
		args = append(args, role)
	}
	if status != "" {
		sets = append(sets, "status=?")
		args = append(args, status)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrEmailExists
	}
	return err
}

// Delete removes a user.  Activity logs cascade at the schema level.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates user counts for the admin dashboard.
type Stats struct {
	Total      int
	Admins     int
	Developers int
	Moderators int
	Clients    int
	Active     int
	Inactive   int
	Suspended  int
}

// GetStats counts users by role and status in one pass.
func (r *UserRepo) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.DB.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(role='ADMIN'),0), COALESCE(SUM(role='DEVELOPER'),0),
		COALESCE(SUM(role='MODERATOR'),0), COALESCE(SUM(role='CLIENT'),0),
		COALESCE(SUM(status='ACTIVE'),0), COALESCE(SUM(status='INACTIVE'),0),
		COALESCE(SUM(status='SUSPENDED'),0)
		FROM users`).Scan(&s.Total, &s.Admins, &s.Developers, &s.Moderators, &s.Clients,
		&s.Active, &s.Inactive, &s.Suspended)
	return s, err
}
