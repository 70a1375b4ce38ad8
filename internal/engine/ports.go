package engine

import (
	"context"

	"edu-quiz-engine/internal/domain"
)

// SessionStore persists resumable attempt state (in-memory, Redis, etc).
// Load returns (nil, nil) for absent or unreadable state; corrupt data is
// treated as absence, never as an error the engine has to handle.
type SessionStore interface {
	Save(ctx context.Context, key domain.SessionKey, session *domain.QuizSession) error
	Load(ctx context.Context, key domain.SessionKey) (*domain.QuizSession, error)
	Clear(ctx context.Context, key domain.SessionKey) error
}

// ProgressStore holds the cross-session course state: the missed-question
// record feeding progress mode, and the course completion percentage.
type ProgressStore interface {
	AddMissed(ctx context.Context, courseCode string, texts []string) error
	RemoveMissed(ctx context.Context, courseCode string, texts []string) error
	Missed(ctx context.Context, courseCode string) ([]string, error)
	ClearMissed(ctx context.Context, courseCode string) error
	SetCompletion(ctx context.Context, courseCode string, percent int) error
	Completion(ctx context.Context, courseCode string) (int, error)
}
