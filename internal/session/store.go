// Package session implements the two-tier chat session store: a Redis hot
// tier for active sessions and a durable cold tier mirrored in the
// background, generalizing the original session service's Redis+Mongo
// design onto this module's Postgres-backed durable store.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// ColdStore is the durable tier a Session is mirrored into. Implemented by
// internal/session.PostgresColdStore.
type ColdStore interface {
	Upsert(ctx context.Context, s model.Session) error
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	List(ctx context.Context, limit int) ([]model.Session, error)
}

// Store is the hot/cold session store.
type Store struct {
	redis   *redis.Client
	cold    ColdStore
	hotTTL  time.Duration
}

func NewStore(redisClient *redis.Client, cold ColdStore, hotTTL time.Duration) *Store {
	if hotTTL <= 0 {
		hotTTL = 2 * time.Minute
	}
	return &Store{redis: redisClient, cold: cold, hotTTL: hotTTL}
}

func hotKey(sessionID string) string { return fmt.Sprintf("session:%s", sessionID) }

// GetOrCreate fetches a session from the hot tier, extending its TTL; if
// absent it falls back to the cold tier and rehydrates the hot tier; if
// still absent it creates a new session. Matches the original
// get_or_create_session fallback order.
func (s *Store) GetOrCreate(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if sess, err := s.getHot(ctx, sessionID); err != nil {
		return nil, err
	} else if sess != nil {
		if err := s.redis.Expire(ctx, hotKey(sessionID), s.hotTTL).Err(); err != nil {
			return nil, fmt.Errorf("session.GetOrCreate: extend TTL: %w", err)
		}
		return sess, nil
	}

	if s.cold != nil {
		sess, err := s.cold.Get(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("session.GetOrCreate: cold lookup: %w", err)
		}
		if sess != nil {
			if err := s.saveHot(ctx, *sess); err != nil {
				return nil, err
			}
			return sess, nil
		}
	}

	now := time.Now().UTC()
	sess := &model.Session{
		SessionID:    sessionID,
		Messages:     []model.Message{},
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.saveHot(ctx, *sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AddMessage appends a message to a session (creating it if absent) and
// saves it back to the hot tier.
func (s *Store) AddMessage(ctx context.Context, sessionID string, msg model.Message) (*model.Session, error) {
	sess, err := s.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Messages = append(sess.Messages, msg)
	sess.LastActivity = time.Now().UTC()
	if err := s.saveHot(ctx, *sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) getHot(ctx context.Context, sessionID string) (*model.Session, error) {
	raw, err := s.redis.Get(ctx, hotKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session.getHot: %w", err)
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("session.getHot: unmarshal: %w", err)
	}
	return &sess, nil
}

func (s *Store) saveHot(ctx context.Context, sess model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session.saveHot: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, hotKey(sess.SessionID), data, s.hotTTL).Err(); err != nil {
		return fmt.Errorf("session.saveHot: %w", err)
	}
	return nil
}

// MigrateToColdStore copies every currently-hot session into the cold
// store. It never deletes the hot-tier key: sessions remain in the hot
// tier until TTL-driven eviction, independent of migration — unlike the
// original, which deleted the Redis key after migrating. See DESIGN.md.
func (s *Store) MigrateToColdStore(ctx context.Context) (int, error) {
	if s.cold == nil {
		return 0, nil
	}

	var cursor uint64
	migrated := 0
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, "session:*", 100).Result()
		if err != nil {
			return migrated, fmt.Errorf("session.MigrateToColdStore: scan: %w", err)
		}
		for _, key := range keys {
			raw, err := s.redis.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var sess model.Session
			if err := json.Unmarshal([]byte(raw), &sess); err != nil {
				continue
			}
			if err := s.cold.Upsert(ctx, sess); err != nil {
				return migrated, fmt.Errorf("session.MigrateToColdStore: upsert %s: %w", sess.SessionID, err)
			}
			migrated++
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return migrated, nil
}

// ListAll unions hot and cold sessions, deduplicated by session ID
// (preferring the cold-tier record when both exist, since it may carry a
// later ArchivedAt), sorted by LastActivity descending and truncated to
// limit. Matches the original's list_all_sessions behavior.
func (s *Store) ListAll(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 100
	}

	byID := make(map[string]model.Session)

	if s.cold != nil {
		coldSessions, err := s.cold.List(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("session.ListAll: cold list: %w", err)
		}
		for _, sess := range coldSessions {
			byID[sess.SessionID] = sess
		}
	}

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, "session:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("session.ListAll: scan: %w", err)
		}
		for _, key := range keys {
			raw, err := s.redis.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var sess model.Session
			if err := json.Unmarshal([]byte(raw), &sess); err != nil {
				continue
			}
			if _, exists := byID[sess.SessionID]; !exists {
				byID[sess.SessionID] = sess
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	all := make([]model.Session, 0, len(byID))
	for _, sess := range byID {
		all = append(all, sess)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].LastActivity.After(all[j].LastActivity) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
