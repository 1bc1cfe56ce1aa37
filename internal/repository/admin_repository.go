package repository

import (
	"context"
	"database/sql"
)

// AdminRepo persists the admin roster.  The roster is fed by the role
// checker whenever a membership lookup confirms the admin role, so the
// notification dispatcher can resolve recipients without a gateway
// round-trip per event.
type AdminRepo struct {
	db *sql.DB
}

// NewAdminRepo returns an AdminRepo bound to the given database.
func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{db: db} }

// Remember records a confirmed admin.  Repeated calls are no-ops.
func (r *AdminRepo) Remember(ctx context.Context, userID string) error {
	const q = `INSERT IGNORE INTO admins (id) VALUES (?)`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}

// Roster returns every recorded admin ID.
func (r *AdminRepo) Roster(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM admins`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
