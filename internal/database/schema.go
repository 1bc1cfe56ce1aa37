package database

import (
	"context"
	"database/sql"
)

// schema lists the DDL for every relational aggregate.  Statements are
// idempotent so Migrate can run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id        VARCHAR(64) PRIMARY KEY,
		username  VARCHAR(128) NOT NULL,
		avatar    VARCHAR(255) NOT NULL DEFAULT '',
		last_seen DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id VARCHAR(64) PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS banned (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id    VARCHAR(64) NOT NULL,
		username   VARCHAR(128) NOT NULL,
		avatar     VARCHAR(255) NOT NULL DEFAULT '',
		admin_id   VARCHAR(64) NOT NULL,
		admin_name VARCHAR(128) NOT NULL,
		reason     TEXT,
		timestamp  DATETIME NOT NULL,
		KEY idx_banned_user (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS points (
		admin_id VARCHAR(64) PRIMARY KEY,
		points   INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id           VARCHAR(36) PRIMARY KEY,
		ticket_id    VARCHAR(36) NOT NULL,
		ticket_title VARCHAR(255) NOT NULL,
		user_id      VARCHAR(64) NOT NULL,
		username     VARCHAR(128) NOT NULL,
		user_avatar  VARCHAR(255) NOT NULL DEFAULT '',
		admin_id     VARCHAR(64),
		admin_name   VARCHAR(128) NOT NULL,
		admin_avatar VARCHAR(255),
		rating       INT NOT NULL,
		comment      TEXT,
		timestamp    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_viewers (
		ticket_id VARCHAR(36) NOT NULL,
		user_id   VARCHAR(64) NOT NULL,
		timestamp DATETIME NOT NULL,
		PRIMARY KEY (ticket_id, user_id)
	)`,
}

// Migrate creates any missing tables.  It is safe to call repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
