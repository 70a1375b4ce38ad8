package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"edu-quiz-engine/internal/domain"

	"golang.org/x/sync/singleflight"
)

// BankLoader fetches raw course questions from a backing store.
type BankLoader interface {
	LoadQuestions(ctx context.Context, courseCode string) ([]domain.Question, error)
}

// QuestionBank caches course questions with TTL to avoid repeated DB hits.
type QuestionBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

func (b *QuestionBank) Questions(ctx context.Context, courseCode string) ([]domain.Question, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[courseCode]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(courseCode, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[courseCode]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx, courseCode)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[courseCode] = cachedBank{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader is a loader backed by an in-memory map (tests/demos).
type StaticBankLoader struct {
	courses map[string][]domain.Question
}

func NewStaticBankLoader(courses map[string][]domain.Question) *StaticBankLoader {
	return &StaticBankLoader{courses: courses}
}

func (l *StaticBankLoader) LoadQuestions(_ context.Context, courseCode string) ([]domain.Question, error) {
	if questions, ok := l.courses[courseCode]; ok {
		return questions, nil
	}
	return nil, domain.ErrCourseNotFound
}
