package redis

import (
	"context"
	"encoding/json"
	"time"

	"edu-quiz-engine/internal/domain"

	"github.com/redis/go-redis/v9"
)

// SessionStore persists resumable attempt state in Redis as one JSON blob
// per session key. A mid-attempt page reload loads exactly the last
// committed state; unreadable blobs are treated as absence.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, key domain.SessionKey, session *domain.QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), data, s.ttl).Err()
}

func (s *SessionStore) Load(ctx context.Context, key domain.SessionKey) (*domain.QuizSession, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		// missing or unreachable both degrade to a fresh session
		return nil, nil
	}
	var session domain.QuizSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, nil
	}
	return &session, nil
}

func (s *SessionStore) Clear(ctx context.Context, key domain.SessionKey) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *SessionStore) key(key domain.SessionKey) string {
	return "quiz:session:" + key.String()
}
