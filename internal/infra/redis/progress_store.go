package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps the cross-session course state in Redis:
// missed-question texts as a SET per course, completion percentage as a
// plain key. Both are global per course, independent of any session key.
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) AddMissed(ctx context.Context, courseCode string, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	members := make([]interface{}, len(texts))
	for i, text := range texts {
		members[i] = text
	}
	return s.client.SAdd(ctx, s.missedKey(courseCode), members...).Err()
}

func (s *ProgressStore) RemoveMissed(ctx context.Context, courseCode string, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	members := make([]interface{}, len(texts))
	for i, text := range texts {
		members[i] = text
	}
	return s.client.SRem(ctx, s.missedKey(courseCode), members...).Err()
}

func (s *ProgressStore) Missed(ctx context.Context, courseCode string) ([]string, error) {
	texts, err := s.client.SMembers(ctx, s.missedKey(courseCode)).Result()
	if err != nil {
		return nil, err
	}
	return texts, nil
}

func (s *ProgressStore) ClearMissed(ctx context.Context, courseCode string) error {
	return s.client.Del(ctx, s.missedKey(courseCode)).Err()
}

func (s *ProgressStore) SetCompletion(ctx context.Context, courseCode string, percent int) error {
	return s.client.Set(ctx, s.completionKey(courseCode), percent, 0).Err()
}

func (s *ProgressStore) Completion(ctx context.Context, courseCode string) (int, error) {
	raw, err := s.client.Get(ctx, s.completionKey(courseCode)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	percent, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return percent, nil
}

func (s *ProgressStore) missedKey(courseCode string) string {
	return "course:" + courseCode + ":missed"
}

func (s *ProgressStore) completionKey(courseCode string) string {
	return "course:" + courseCode + ":completion"
}
