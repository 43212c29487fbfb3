package sqlite

import (
	"context"

	"github.com/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_session (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL DEFAULT '',
		config TEXT NOT NULL DEFAULT '{}',
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chat_message (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_uid TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_message_session ON chat_message (session_uid, id)`,
	`CREATE TABLE IF NOT EXISTS chat_summary (
		session_uid TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		last_message_id BIGINT NOT NULL DEFAULT 0,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_product (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		skin_types TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_product_slug ON catalog_product (slug)`,
	`CREATE TABLE IF NOT EXISTS catalog_routine (
		id TEXT PRIMARY KEY,
		skin_concern TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cart_item (
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		size_id TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL,
		updated_ts BIGINT NOT NULL,
		PRIMARY KEY (user_id, product_id, size_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT PRIMARY KEY,
		preferences TEXT NOT NULL DEFAULT '{}',
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS system_setting (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// Migrate applies the schema. Every statement is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply schema")
		}
	}
	return nil
}
