// internal/assessments/session.go
package assessments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "marketing-platform/internal/common/errors"
	"marketing-platform/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore persists the per-session answer map. The browser used to hold
// this in localStorage; server-side it lives in redis with a TTL so abandoned
// sessions age out.
type SessionStore interface {
	Load(ctx context.Context, configSlug, sessionID string) (models.AnswerMap, error)
	Save(ctx context.Context, configSlug, sessionID string, answers models.AnswerMap) error
	Clear(ctx context.Context, configSlug, sessionID string) error
}

// NewSessionID generates a fresh client session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// RedisSessionStore is the production SessionStore.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(configSlug, sessionID string) string {
	return fmt.Sprintf("assessment_session:%s:%s", configSlug, sessionID)
}

// Load returns the stored answer map, or an empty map for a new session.
func (s *RedisSessionStore) Load(ctx context.Context, configSlug, sessionID string) (models.AnswerMap, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(configSlug, sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return models.AnswerMap{}, nil
	}
	if err != nil {
		return nil, apperrors.NewSessionStoreError(err)
	}

	var answers models.AnswerMap
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		// A corrupt session is unrecoverable, restart the flow.
		return models.AnswerMap{}, nil
	}
	return answers, nil
}

// Save writes the answer map, refreshing the session TTL.
func (s *RedisSessionStore) Save(ctx context.Context, configSlug, sessionID string, answers models.AnswerMap) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return apperrors.NewSessionStoreError(err)
	}
	if err := s.rdb.Set(ctx, sessionKey(configSlug, sessionID), raw, s.ttl).Err(); err != nil {
		return apperrors.NewSessionStoreError(err)
	}
	return nil
}

// Clear removes the session, called on submission and on forced reset.
func (s *RedisSessionStore) Clear(ctx context.Context, configSlug, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(configSlug, sessionID)).Err(); err != nil {
		return apperrors.NewSessionStoreError(err)
	}
	return nil
}
