package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/store"
)

func (d *DB) CreateChatSession(ctx context.Context, create *store.ChatSession) (*store.ChatSession, error) {
	now := time.Now().Unix()
	create.CreatedTs, create.UpdatedTs = now, now
	if create.Config == "" {
		create.Config = "{}"
	}
	stmt := `INSERT INTO chat_session (uid, user_id, config, created_ts, updated_ts) VALUES (?, ?, ?, ?, ?) RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, create.UID, create.UserID, create.Config, create.CreatedTs, create.UpdatedTs).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create chat_session")
	}
	return create, nil
}

func (d *DB) EnsureChatSession(ctx context.Context, create *store.ChatSession) (*store.ChatSession, error) {
	now := time.Now().Unix()
	config := create.Config
	if config == "" {
		config = "{}"
	}
	stmt := `INSERT INTO chat_session (uid, user_id, config, created_ts, updated_ts) VALUES (?, ?, ?, ?, ?) ON CONFLICT(uid) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, stmt, create.UID, create.UserID, config, now, now); err != nil {
		return nil, errors.Wrap(err, "failed to ensure chat_session")
	}
	return d.GetChatSession(ctx, &store.FindChatSession{UID: &create.UID})
}

func (d *DB) GetChatSession(ctx context.Context, find *store.FindChatSession) (*store.ChatSession, error) {
	if find.UID == nil {
		return nil, errors.New("uid required")
	}
	s := &store.ChatSession{}
	err := d.db.QueryRowContext(ctx,
		`SELECT id, uid, user_id, config, created_ts, updated_ts FROM chat_session WHERE uid = ?`, *find.UID,
	).Scan(&s.ID, &s.UID, &s.UserID, &s.Config, &s.CreatedTs, &s.UpdatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get chat_session")
	}
	return s, nil
}

func (d *DB) CreateChatMessage(ctx context.Context, create *store.ChatMessage) (*store.ChatMessage, error) {
	create.CreatedTs = time.Now().Unix()
	stmt := `INSERT INTO chat_message (session_uid, role, content, created_ts) VALUES (?, ?, ?, ?) RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, create.SessionUID, create.Role, create.Content, create.CreatedTs).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create chat_message")
	}
	if _, err := d.db.ExecContext(ctx, `UPDATE chat_session SET updated_ts = ? WHERE uid = ?`, create.CreatedTs, create.SessionUID); err != nil {
		return nil, errors.Wrap(err, "failed to touch chat_session")
	}
	return create, nil
}

func (d *DB) ListChatMessages(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error) {
	query := `SELECT id, session_uid, role, content, created_ts FROM chat_message WHERE session_uid = ? AND id > ? ORDER BY id ASC`
	args := []any{find.SessionUID, find.AfterID}
	if find.Limit > 0 {
		query = `SELECT id, session_uid, role, content, created_ts FROM (
			SELECT id, session_uid, role, content, created_ts FROM chat_message
			WHERE session_uid = ? AND id > ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chat_message")
	}
	defer rows.Close()

	list := make([]*store.ChatMessage, 0)
	for rows.Next() {
		m := &store.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.SessionUID, &m.Role, &m.Content, &m.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat_message")
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate chat_message")
	}
	return list, nil
}

func (d *DB) CountChatMessagesAfter(ctx context.Context, sessionUID string, afterID int64) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_message WHERE session_uid = ? AND id > ?`, sessionUID, afterID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count chat_message")
	}
	return count, nil
}

func (d *DB) UpsertChatSummary(ctx context.Context, upsert *store.ChatSummary) (*store.ChatSummary, error) {
	upsert.UpdatedTs = time.Now().Unix()
	stmt := `INSERT INTO chat_summary (session_uid, content, last_message_id, updated_ts) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_uid) DO UPDATE SET
			content = excluded.content,
			last_message_id = excluded.last_message_id,
			updated_ts = excluded.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.SessionUID, upsert.Content, upsert.LastMessageID, upsert.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert chat_summary")
	}
	return upsert, nil
}

func (d *DB) GetChatSummary(ctx context.Context, sessionUID string) (*store.ChatSummary, error) {
	s := &store.ChatSummary{}
	err := d.db.QueryRowContext(ctx,
		`SELECT session_uid, content, last_message_id, updated_ts FROM chat_summary WHERE session_uid = ?`, sessionUID,
	).Scan(&s.SessionUID, &s.Content, &s.LastMessageID, &s.UpdatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get chat_summary")
	}
	return s, nil
}
