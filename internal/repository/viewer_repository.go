package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// ViewerRepo maintains the ticket presence index: one row per
// (ticket, user) pair recording when that user first opened the
// ticket.  INSERT IGNORE keeps the first-seen timestamp — a repeat
// view is a no-op, not a refresh.
type ViewerRepo struct {
	db *sql.DB
}

// NewViewerRepo returns a ViewerRepo bound to the given database.
func NewViewerRepo(db *sql.DB) *ViewerRepo { return &ViewerRepo{db: db} }

// Record upserts the (ticketID, userID) pair with the given instant.
func (r *ViewerRepo) Record(ctx context.Context, ticketID, userID string, at time.Time) error {
	const q = `INSERT IGNORE INTO ticket_viewers (ticket_id, user_id, timestamp) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, ticketID, userID, at.UTC())
	return err
}

// List returns the viewers of a ticket joined with their display
// metadata, most recently arrived first.
func (r *ViewerRepo) List(ctx context.Context, ticketID string) ([]model.Viewer, error) {
	const q = `SELECT tv.user_id, u.username, u.avatar, tv.timestamp
		FROM ticket_viewers tv
		JOIN users u ON tv.user_id = u.id
		WHERE tv.ticket_id = ?
		ORDER BY tv.timestamp DESC`
	rows, err := r.db.QueryContext(ctx, q, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	viewers := make([]model.Viewer, 0)
	for rows.Next() {
		var v model.Viewer
		if err := rows.Scan(&v.UserID, &v.Username, &v.Avatar, &v.FirstSeen); err != nil {
			return nil, err
		}
		viewers = append(viewers, v)
	}
	return viewers, rows.Err()
}

// Clear removes a single viewer from a ticket's index.
func (r *ViewerRepo) Clear(ctx context.Context, ticketID, userID string) error {
	const q = `DELETE FROM ticket_viewers WHERE ticket_id = ? AND user_id = ?`
	_, err := r.db.ExecContext(ctx, q, ticketID, userID)
	return err
}

// ClearAll wipes the whole index for a ticket.  Used by the admin
// reset endpoint and by ticket deletion.
func (r *ViewerRepo) ClearAll(ctx context.Context, ticketID string) error {
	const q = `DELETE FROM ticket_viewers WHERE ticket_id = ?`
	_, err := r.db.ExecContext(ctx, q, ticketID)
	return err
}
