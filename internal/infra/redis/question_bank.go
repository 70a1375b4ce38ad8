package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"edu-quiz-engine/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches raw course questions from a backing store.
type BankLoader interface {
	LoadQuestions(ctx context.Context, courseCode string) ([]domain.Question, error)
}

// QuestionBank caches a course's raw question list in Redis as JSON and
// falls back to the loader on cache miss. Fills are coalesced with
// singleflight; TTLs carry jitter so course caches don't expire together.
type QuestionBank struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Questions(ctx context.Context, courseCode string) ([]domain.Question, error) {
	key := b.key(courseCode)

	if cached, err := b.client.Get(ctx, key).Bytes(); err == nil {
		var questions []domain.Question
		if err := json.Unmarshal(cached, &questions); err == nil {
			return questions, nil
		}
	}

	result, err, _ := b.sf.Do(courseCode, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, err := b.client.Get(ctx, key).Bytes(); err == nil {
			var questions []domain.Question
			if err := json.Unmarshal(cached, &questions); err == nil {
				return questions, nil
			}
		}

		questions, err := b.loader.LoadQuestions(ctx, courseCode)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(questions); err == nil {
			_ = b.client.Set(ctx, key, data, b.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) key(courseCode string) string {
	return "bank:" + courseCode + ":questions"
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
