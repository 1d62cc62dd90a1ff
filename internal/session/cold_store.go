package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// PostgresColdStore persists sessions as JSONB rows, the durable tier a
// Store migrates hot sessions into.
type PostgresColdStore struct {
	pool *pgxpool.Pool
}

func NewPostgresColdStore(pool *pgxpool.Pool) *PostgresColdStore {
	return &PostgresColdStore{pool: pool}
}

func (c *PostgresColdStore) Upsert(ctx context.Context, s model.Session) error {
	messages, err := json.Marshal(s.Messages)
	if err != nil {
		return fmt.Errorf("session.PostgresColdStore.Upsert: marshal messages: %w", err)
	}
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("session.PostgresColdStore.Upsert: marshal metadata: %w", err)
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO chat_sessions (session_id, messages, metadata, created_at, last_activity, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE
		SET messages = EXCLUDED.messages,
		    metadata = EXCLUDED.metadata,
		    last_activity = EXCLUDED.last_activity,
		    archived_at = EXCLUDED.archived_at`,
		s.SessionID, messages, metadata, s.CreatedAt, s.LastActivity, s.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("session.PostgresColdStore.Upsert: %w", err)
	}
	return nil
}

func (c *PostgresColdStore) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	var (
		s             model.Session
		messagesRaw   []byte
		metadataRaw   []byte
	)
	err := c.pool.QueryRow(ctx, `
		SELECT session_id, messages, metadata, created_at, last_activity, archived_at
		FROM chat_sessions WHERE session_id = $1`, sessionID,
	).Scan(&s.SessionID, &messagesRaw, &metadataRaw, &s.CreatedAt, &s.LastActivity, &s.ArchivedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("session.PostgresColdStore.Get: %w", err)
	}
	if err := json.Unmarshal(messagesRaw, &s.Messages); err != nil {
		return nil, fmt.Errorf("session.PostgresColdStore.Get: unmarshal messages: %w", err)
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &s.Metadata); err != nil {
			return nil, fmt.Errorf("session.PostgresColdStore.Get: unmarshal metadata: %w", err)
		}
	}
	return &s, nil
}

func (c *PostgresColdStore) List(ctx context.Context, limit int) ([]model.Session, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT session_id, messages, metadata, created_at, last_activity, archived_at
		FROM chat_sessions ORDER BY last_activity DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("session.PostgresColdStore.List: %w", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var (
			s           model.Session
			messagesRaw []byte
			metadataRaw []byte
		)
		if err := rows.Scan(&s.SessionID, &messagesRaw, &metadataRaw, &s.CreatedAt, &s.LastActivity, &s.ArchivedAt); err != nil {
			return nil, fmt.Errorf("session.PostgresColdStore.List: scan: %w", err)
		}
		if err := json.Unmarshal(messagesRaw, &s.Messages); err != nil {
			return nil, fmt.Errorf("session.PostgresColdStore.List: unmarshal messages: %w", err)
		}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &s.Metadata); err != nil {
				return nil, fmt.Errorf("session.PostgresColdStore.List: unmarshal metadata: %w", err)
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session.PostgresColdStore.List: %w", err)
	}
	return out, nil
}
