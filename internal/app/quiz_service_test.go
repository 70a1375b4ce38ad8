package app_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"edu-quiz-engine/internal/app"
	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/infra/memory"
	"edu-quiz-engine/internal/selector"
)

func sampleBank() map[string][]domain.Question {
	questions := make([]domain.Question, 0, 12)
	for week := 1; week <= 2; week++ {
		for i := 0; i < 6; i++ {
			questions = append(questions, domain.Question{
				Week:        week,
				Text:        "w" + string(rune('0'+week)) + "q" + string(rune('a'+i)),
				Options:     []string{"A) right", "B) wrong", "C) also wrong"},
				Answer:      []string{"A"},
				ContentType: domain.ContentMultipleChoice,
			})
		}
	}
	return map[string][]domain.Question{"GO101": questions}
}

type testService struct {
	service  *app.QuizService
	sessions *memory.SessionStore
	progress *memory.ProgressStore
}

func newTestService() *testService {
	bank := memory.NewQuestionBank(memory.NewStaticBankLoader(sampleBank()), 5*time.Minute)
	sessions := memory.NewSessionStore()
	progress := memory.NewProgressStore()
	sel := selector.NewWithRand(rand.New(rand.NewSource(42)))
	return &testService{
		service:  app.NewQuizService(bank, sessions, progress, sel, 0),
		sessions: sessions,
		progress: progress,
	}
}

func TestStartAttemptUnknownMode(t *testing.T) {
	ts := newTestService()
	_, err := ts.service.StartAttempt(context.Background(), app.AttemptRequest{
		CourseCode: "GO101",
		Mode:       domain.Mode("marathon"),
	})
	if !errors.Is(err, domain.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestStartAttemptUnknownCourse(t *testing.T) {
	ts := newTestService()
	_, err := ts.service.StartAttempt(context.Background(), app.AttemptRequest{
		CourseCode: "NOPE",
		Mode:       domain.ModePractice,
	})
	if !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestQuickAttemptDrawsTen(t *testing.T) {
	ts := newTestService()
	eng, err := ts.service.StartAttempt(context.Background(), app.AttemptRequest{
		CourseCode: "GO101",
		Mode:       domain.ModeQuick,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Close()
	if total := len(eng.SessionState().Questions); total != 10 {
		t.Fatalf("expected 10 questions, got %d", total)
	}
}

func TestWeeklyAttemptFiltersByWeek(t *testing.T) {
	ts := newTestService()
	eng, err := ts.service.StartAttempt(context.Background(), app.AttemptRequest{
		CourseCode: "GO101",
		Mode:       domain.ModeWeekly,
		Week:       2,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Close()
	state := eng.SessionState()
	if len(state.Questions) != 6 {
		t.Fatalf("expected the 6 week-2 questions, got %d", len(state.Questions))
	}
	for _, q := range state.Questions {
		if q.Text[:2] != "w2" {
			t.Fatalf("question from the wrong week: %q", q.Text)
		}
	}
}

func TestTimedAttemptDefaultsTimeLimit(t *testing.T) {
	ts := newTestService()
	eng, err := ts.service.StartAttempt(context.Background(), app.AttemptRequest{
		CourseCode: "GO101",
		Mode:       domain.ModeTimed,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Close()
	if remaining := eng.SessionState().TimeRemainingSeconds; remaining != app.DefaultTimeLimitSeconds {
		t.Fatalf("expected default limit %d, got %d", app.DefaultTimeLimitSeconds, remaining)
	}
}

func TestProgressAttemptRequiresRecord(t *testing.T) {
	ts := newTestService()
	_, err := ts.service.StartAttempt(context.Background(), app.AttemptRequest{
		CourseCode: "GO101",
		Mode:       domain.ModeProgress,
	})
	if !errors.Is(err, domain.ErrEmptyProgressSet) {
		t.Fatalf("expected ErrEmptyProgressSet, got %v", err)
	}
}

func TestProgressAttemptBuiltFromRecord(t *testing.T) {
	ts := newTestService()
	ctx := context.Background()
	if err := ts.progress.AddMissed(ctx, "GO101", []string{"w1qa", "w2qb"}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	eng, err := ts.service.StartAttempt(ctx, app.AttemptRequest{
		CourseCode: "GO101",
		Mode:       domain.ModeProgress,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Close()
	if total := len(eng.SessionState().Questions); total != 2 {
		t.Fatalf("expected the 2 recorded questions, got %d", total)
	}
}

func TestAttemptResumesFromStorage(t *testing.T) {
	ts := newTestService()
	ctx := context.Background()
	req := app.AttemptRequest{CourseCode: "GO101", Mode: domain.ModePractice}

	eng, err := ts.service.StartAttempt(ctx, req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	q := eng.SessionState().Questions[0]
	correct := q.CorrectIndices[0]
	if _, err := eng.SubmitAnswer(ctx, []int{correct}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	scoreBefore := eng.SessionState().Score
	indexBefore := eng.SessionState().CurrentIndex
	eng.Close()

	resumed, err := ts.service.StartAttempt(ctx, req)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	defer resumed.Close()
	state := resumed.SessionState()
	if state.Score != scoreBefore || state.CurrentIndex != indexBefore {
		t.Fatalf("resume mismatch: score %d/%d index %d/%d",
			state.Score, scoreBefore, state.CurrentIndex, indexBefore)
	}
	if !state.Answers[0].Locked {
		t.Fatalf("resumed attempt lost the locked answer")
	}
}

func TestMalformedPersistedSessionFallsBackToFresh(t *testing.T) {
	ts := newTestService()
	ctx := context.Background()
	req := app.AttemptRequest{CourseCode: "GO101", Mode: domain.ModePractice}
	key := domain.SessionKey{CourseCode: "GO101", Mode: domain.ModePractice}

	// A blob that unmarshals fine but is structurally inconsistent:
	// a question with no matching answer slot.
	broken := &domain.QuizSession{
		CourseCode: "GO101",
		Mode:       domain.ModePractice,
		Questions: []domain.ProcessedQuestion{
			{Text: "q1", ShuffledOptions: []string{"a", "b"}, CorrectIndices: []int{0}, CorrectTexts: []string{"a"}},
		},
	}
	if err := ts.sessions.Save(ctx, key, broken); err != nil {
		t.Fatalf("save: %v", err)
	}

	eng, err := ts.service.StartAttempt(ctx, req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Close()

	state := eng.SessionState()
	if len(state.Answers) != len(state.Questions) {
		t.Fatalf("restored a malformed session: %d answers for %d questions",
			len(state.Answers), len(state.Questions))
	}
	q := state.Questions[0]
	if _, err := eng.SubmitAnswer(ctx, []int{q.CorrectIndices[0]}); err != nil {
		t.Fatalf("submit on fresh fallback: %v", err)
	}
}

func TestRestoreRejectsOutOfRangeIndex(t *testing.T) {
	ts := newTestService()
	ctx := context.Background()
	req := app.AttemptRequest{CourseCode: "GO101", Mode: domain.ModePractice}
	key := domain.SessionKey{CourseCode: "GO101", Mode: domain.ModePractice}

	broken := domain.NewQuizSession("GO101", domain.ModePractice, []domain.ProcessedQuestion{
		{Text: "q1", ShuffledOptions: []string{"a", "b"}, CorrectIndices: []int{0}, CorrectTexts: []string{"a"}},
	}, 0)
	broken.CurrentIndex = 7
	if err := ts.sessions.Save(ctx, key, broken); err != nil {
		t.Fatalf("save: %v", err)
	}

	eng, err := ts.service.StartAttempt(ctx, req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Close()
	if idx := eng.SessionState().CurrentIndex; idx != 0 {
		t.Fatalf("expected fresh session at index 0, got %d", idx)
	}
}

func TestRestartDiscardsPersistedAttempt(t *testing.T) {
	ts := newTestService()
	ctx := context.Background()
	req := app.AttemptRequest{CourseCode: "GO101", Mode: domain.ModePractice}

	eng, err := ts.service.StartAttempt(ctx, req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Close()
	q := eng.SessionState().Questions[0]
	if _, err := eng.SubmitAnswer(ctx, []int{q.CorrectIndices[0]}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := eng.Restart(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	state := eng.SessionState()
	if state.Score != 0 || state.CurrentIndex != 0 {
		t.Fatalf("restart did not reset: %+v", state)
	}
}

func TestCompletionExposedToUI(t *testing.T) {
	ts := newTestService()
	ctx := context.Background()
	if err := ts.progress.SetCompletion(ctx, "GO101", 80); err != nil {
		t.Fatalf("set completion: %v", err)
	}
	pct, err := ts.service.Completion(ctx, "GO101")
	if err != nil || pct != 80 {
		t.Fatalf("completion = %d, %v; want 80", pct, err)
	}
}
