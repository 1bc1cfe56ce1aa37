package repository

import (
	"context"
	"database/sql"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// PointsRepo tracks the per-admin point counter.  An admin earns a
// point for each message they post on a ticket, each status change on
// someone else's ticket and each acceptance.
type PointsRepo struct {
	db *sql.DB
}

// NewPointsRepo returns a PointsRepo bound to the given database.
func NewPointsRepo(db *sql.DB) *PointsRepo { return &PointsRepo{db: db} }

// Increment adds one point to the admin's counter, creating the row
// on first use.
func (r *PointsRepo) Increment(ctx context.Context, adminID string) error {
	const q = `INSERT INTO points (admin_id, points) VALUES (?, 1)
		ON DUPLICATE KEY UPDATE points = points + 1`
	_, err := r.db.ExecContext(ctx, q, adminID)
	return err
}

// Top returns the highest-scoring admins with display metadata, up to
// limit entries.
func (r *PointsRepo) Top(ctx context.Context, limit int) ([]model.User, error) {
	const q = `SELECT u.id, u.username, u.avatar, u.last_seen, p.points
		FROM points p
		JOIN users u ON p.admin_id = u.id
		JOIN admins a ON u.id = a.id
		ORDER BY p.points DESC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar, &u.LastSeen, &u.Points); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
