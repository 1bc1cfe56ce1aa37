package repository

import (
	"context"
	"database/sql"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// RatingRepo appends to and reads the rating ledger.  The ledger is
// append-only by design: rating an already-rated ticket adds another
// row rather than updating the previous one, so aggregate reports see
// every rating event.
type RatingRepo struct {
	db *sql.DB
}

// NewRatingRepo returns a RatingRepo bound to the given database.
func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

// Append inserts one ledger entry.
func (r *RatingRepo) Append(ctx context.Context, e *model.RatingEntry) error {
	const q = `INSERT INTO ratings
		(id, ticket_id, ticket_title, user_id, username, user_avatar,
		 admin_id, admin_name, admin_avatar, rating, comment, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var adminID, adminAvatar sql.NullString
	if e.Admin.ID != "" {
		adminID = sql.NullString{String: e.Admin.ID, Valid: true}
		adminAvatar = sql.NullString{String: e.Admin.Avatar, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.TicketID, e.TicketTitle, e.User.ID, e.User.Username, e.User.Avatar,
		adminID, e.Admin.Username, adminAvatar, e.Rating, e.Comment, e.Timestamp.UTC())
	return err
}

// List returns every ledger entry, newest first.
func (r *RatingRepo) List(ctx context.Context) ([]model.RatingEntry, error) {
	const q = `SELECT id, ticket_id, ticket_title, user_id, username, user_avatar,
		admin_id, admin_name, admin_avatar, rating, comment, timestamp
		FROM ratings ORDER BY timestamp DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.RatingEntry, 0)
	for rows.Next() {
		var e model.RatingEntry
		var adminID, adminAvatar, comment sql.NullString
		if err := rows.Scan(&e.ID, &e.TicketID, &e.TicketTitle,
			&e.User.ID, &e.User.Username, &e.User.Avatar,
			&adminID, &e.Admin.Username, &adminAvatar,
			&e.Rating, &comment, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Admin.ID = adminID.String
		e.Admin.Avatar = adminAvatar.String
		e.Comment = comment.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
