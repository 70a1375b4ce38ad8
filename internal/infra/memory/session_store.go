package memory

import (
	"context"
	"encoding/json"
	"sync"

	"edu-quiz-engine/internal/domain"
)

// SessionStore is an in-memory implementation of engine.SessionStore.
// State is held as serialized blobs so restore semantics match the Redis
// edition byte for byte.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string][]byte)}
}

func (s *SessionStore) Save(_ context.Context, key domain.SessionKey, session *domain.QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key.String()] = data
	return nil
}

func (s *SessionStore) Load(_ context.Context, key domain.SessionKey) (*domain.QuizSession, error) {
	s.mu.RLock()
	data, ok := s.sessions[key.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var session domain.QuizSession
	if err := json.Unmarshal(data, &session); err != nil {
		// corrupt state falls back to a fresh session
		return nil, nil
	}
	return &session, nil
}

func (s *SessionStore) Clear(_ context.Context, key domain.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key.String())
	return nil
}
