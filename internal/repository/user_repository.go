package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// UserRepo maintains the users table.  Rows are written from
// authenticated traffic (the identity middleware touches last_seen on
// every request) and read for display joins and statistics.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Touch upserts the user's display metadata and refreshes last_seen.
func (r *UserRepo) Touch(ctx context.Context, id model.Identity, at time.Time) error {
	const q = `INSERT INTO users (id, username, avatar, last_seen) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE username = VALUES(username), avatar = VALUES(avatar), last_seen = VALUES(last_seen)`
	_, err := r.db.ExecContext(ctx, q, id.ID, id.Username, id.Avatar, at.UTC())
	return err
}

// Get returns a single user row or ErrUserNotFound.
func (r *UserRepo) Get(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT u.id, u.username, u.avatar, u.last_seen, COALESCE(p.points, 0)
		FROM users u LEFT JOIN points p ON u.id = p.admin_id
		WHERE u.id = ?`
	var u model.User
	err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Username, &u.Avatar, &u.LastSeen, &u.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CountAll returns the total number of known users.
func (r *UserRepo) CountAll(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

// CountActive returns users seen since the given instant.
func (r *UserRepo) CountActive(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE last_seen > ?`, since.UTC())
}

// CountAdmins returns the size of the recorded admin roster.
func (r *UserRepo) CountAdmins(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM admins`)
}

// CountActiveAdmins returns roster members seen since the given instant.
func (r *UserRepo) CountActiveAdmins(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx,
		`SELECT COUNT(*) FROM users u JOIN admins a ON u.id = a.id WHERE u.last_seen > ?`,
		since.UTC())
}

func (r *UserRepo) count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
