package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/store"
)

func (d *DB) UpsertUserPreferences(ctx context.Context, upsert *store.UpsertUserPreferences) (*store.UserPreferences, error) {
	now := time.Now().Unix()
	stmt := `INSERT INTO user_preferences (user_id, preferences, created_ts, updated_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (user_id) DO UPDATE SET
			preferences = EXCLUDED.preferences,
			updated_ts = EXCLUDED.updated_ts
		RETURNING user_id, preferences::TEXT, created_ts, updated_ts`
	p := &store.UserPreferences{}
	if err := d.db.QueryRowContext(ctx, stmt, upsert.UserID, upsert.Preferences, now, now).
		Scan(&p.UserID, &p.Preferences, &p.CreatedTs, &p.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert user_preferences")
	}
	return p, nil
}

func (d *DB) GetUserPreferences(ctx context.Context, userID string) (*store.UserPreferences, error) {
	p := &store.UserPreferences{}
	err := d.db.QueryRowContext(ctx,
		`SELECT user_id, preferences::TEXT, created_ts, updated_ts FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Preferences, &p.CreatedTs, &p.UpdatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get user_preferences")
	}
	return p, nil
}
