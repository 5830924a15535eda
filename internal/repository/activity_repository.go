package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/acermak/user-management-api/internal/model"
)

// ActivityRepo appends to and reads from the append-only
// 'activity_logs' table.  Rows are never updated; the only deletion
// path is the cascading delete of the owning user.
type ActivityRepo struct{ DB *sql.DB }

func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{DB: db} }

// Insert appends one entry.
func (r *ActivityRepo) Insert(ctx context.Context, e *model.ActivityLog) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO activity_logs (user_id, activity, details, ip_address, user_agent) VALUES (?,?,?,?,?)",
		e.UserID, e.Activity, nullStr(e.Details), nullStr(e.IPAddress), nullStr(e.UserAgent))
	return err
}

// Entry is an activity row joined with its owner's public fields for
// the admin views.
type Entry struct {
	model.ActivityLog
	UserName  string
	UserEmail string
	UserRole  model.Role
}

// ActivityFilter narrows and pages activity listings.  UserID zero
// means all users (admin listing only).
type ActivityFilter struct {
	UserID   uint64
	Activity string // label contains, case-insensitive
	Search   string // label or details contain
	Page     int
	Limit    int
}

func (f *ActivityFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
}

// List returns a page of entries newest-first plus the total match count.
func (r *ActivityRepo) List(ctx context.Context, f ActivityFilter) ([]*Entry, int, error) {
	f.normalize()
	where := []string{"1=1"}
	args := []any{}
	if f.UserID != 0 {
		where = append(where, "a.user_id=?")
		args = append(args, f.UserID)
	}
	if f.Activity != "" && f.Activity != "all" {
		where = append(where, "a.activity LIKE ?")
		args = append(args, "%"+f.Activity+"%")
	}
	if f.Search != "" {
		where = append(where, "(a.activity LIKE ? OR a.details LIKE ? OR u.name LIKE ? OR u.email LIKE ?)")
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat, pat, pat)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activity_logs a JOIN users u ON u.id=a.user_id WHERE "+cond,
		args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.activity, a.details, a.ip_address, a.user_agent, a.created_at,
			u.name, u.email, u.role
		FROM activity_logs a JOIN users u ON u.id=a.user_id
		WHERE `+cond+` ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// GetForUser fetches one entry scoped to its owner.
func (r *ActivityRepo) GetForUser(ctx context.Context, id, userID uint64) (*Entry, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT a.id, a.user_id, a.activity, a.details, a.ip_address, a.user_agent, a.created_at,
			u.name, u.email, u.role
		FROM activity_logs a JOIN users u ON u.id=a.user_id
		WHERE a.id=? AND a.user_id=? LIMIT 1`, id, userID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

// Recent returns the latest entries across all users (admin dashboard).
func (r *ActivityRepo) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	entries, _, err := r.List(ctx, ActivityFilter{Limit: limit})
	return entries, err
}

func scanEntry(row interface{ Scan(...any) error }) (*Entry, error) {
	var (
		e       Entry
		details sql.NullString
		ip      sql.NullString
		ua      sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Activity, &details, &ip, &ua, &e.CreatedAt,
		&e.UserName, &e.UserEmail, &e.UserRole)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Details = details.String
	e.IPAddress = ip.String
	e.UserAgent = ua.String
	return &e, nil
}
