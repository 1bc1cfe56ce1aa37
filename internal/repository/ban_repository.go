package repository

import (
	"context"
	"database/sql"

	"github.com/BladedNarwhal/Nar-Bot/internal/model"
)

// BanRepo manages the ban list.  A banned user keeps their data but
// is rejected by the ban guard on every authenticated request.
type BanRepo struct {
	db *sql.DB
}

// NewBanRepo returns a BanRepo bound to the given database.
func NewBanRepo(db *sql.DB) *BanRepo { return &BanRepo{db: db} }

// IsBanned reports whether the user has an active ban.
func (r *BanRepo) IsBanned(ctx context.Context, userID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM banned WHERE user_id = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ban inserts a ban record.  Returns ErrAlreadyBanned if the user
// already has one.
func (r *BanRepo) Ban(ctx context.Context, b *model.BanRecord) error {
	banned, err := r.IsBanned(ctx, b.UserID)
	if err != nil {
		return err
	}
	if banned {
		return ErrAlreadyBanned
	}
	const q = `INSERT INTO banned (user_id, username, avatar, admin_id, admin_name, reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		b.UserID, b.Username, b.Avatar, b.AdminID, b.AdminName, b.Reason, b.Timestamp.UTC())
	return err
}

// Unban deletes the user's ban records.  Returns ErrNotBanned when no
// record existed.
func (r *BanRepo) Unban(ctx context.Context, userID string) error {
	banned, err := r.IsBanned(ctx, userID)
	if err != nil {
		return err
	}
	if !banned {
		return ErrNotBanned
	}
	const q = `DELETE FROM banned WHERE user_id = ?`
	_, err = r.db.ExecContext(ctx, q, userID)
	return err
}

// List returns every active ban, newest first.
func (r *BanRepo) List(ctx context.Context) ([]model.BanRecord, error) {
	const q = `SELECT id, user_id, username, avatar, admin_id, admin_name, reason, timestamp
		FROM banned ORDER BY timestamp DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bans := make([]model.BanRecord, 0)
	for rows.Next() {
		var b model.BanRecord
		var reason sql.NullString
		if err := rows.Scan(&b.ID, &b.UserID, &b.Username, &b.Avatar,
			&b.AdminID, &b.AdminName, &reason, &b.Timestamp); err != nil {
			return nil, err
		}
		b.Reason = reason.String
		bans = append(bans, b)
	}
	return bans, rows.Err()
}
