package redis

import (
	"context"
	"testing"
	"time"

	"edu-quiz-engine/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testKey() domain.SessionKey {
	return domain.SessionKey{CourseCode: "GO101", Mode: domain.ModeTimed, TimeLimitSeconds: 60, NumQuestions: 5}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	ctx := context.Background()

	session := domain.NewQuizSession("GO101", domain.ModeTimed, []domain.ProcessedQuestion{
		{Text: "q1", ShuffledOptions: []string{"a", "b"}, CorrectIndices: []int{0}, CorrectTexts: []string{"a"}},
	}, 60)
	session.TimeRemainingSeconds = 41
	session.Answers[0] = domain.UserAnswer{SelectedIndices: []int{0}, Correct: true, Locked: true, TimeSpentSeconds: 19}

	if err := store.Save(ctx, testKey(), session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:session:GO101:timed:60:5") {
		t.Fatalf("expected redis key to be set")
	}

	restored, err := store.Load(ctx, testKey())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored == nil || restored.TimeRemainingSeconds != 41 || !restored.Answers[0].Locked {
		t.Fatalf("restore mismatch: %+v", restored)
	}
}

func TestSessionStoreCorruptFallsBack(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	mr.Set("quiz:session:GO101:timed:60:5", "{not json")

	restored, err := store.Load(context.Background(), testKey())
	if err != nil || restored != nil {
		t.Fatalf("corrupt state must fall back to absence, got %+v, %v", restored, err)
	}
}

func TestSessionStoreClear(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, testKey(), domain.NewQuizSession("GO101", domain.ModeTimed, nil, 60)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(ctx, testKey()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("quiz:session:GO101:timed:60:5") {
		t.Fatalf("expected redis key to be removed")
	}
}
