package app

import (
	"context"
	"time"

	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/engine"
	"edu-quiz-engine/internal/selector"
)

// QuestionBank loads raw course questions (from cache/backing store).
type QuestionBank interface {
	Questions(ctx context.Context, courseCode string) ([]domain.Question, error)
}

// DefaultTimeLimitSeconds applies when a timed-mode attempt gives no limit.
const DefaultTimeLimitSeconds = 60

// AttemptRequest carries the mode parameters supplied by the UI layer.
type AttemptRequest struct {
	CourseCode       string
	Mode             domain.Mode
	Week             int // weekly mode: restrict the bank to this week
	NumQuestions     int
	TimeLimitSeconds int
}

// QuizService contains the quiz attempt use cases: building or restoring
// a session engine per quiz screen, and exposing cross-session course
// state to the UI.
type QuizService struct {
	bank          QuestionBank
	sessions      engine.SessionStore
	progress      engine.ProgressStore
	selector      *selector.Selector
	feedbackDelay time.Duration
}

func NewQuizService(bank QuestionBank, sessions engine.SessionStore, progress engine.ProgressStore, sel *selector.Selector, feedbackDelay time.Duration) *QuizService {
	return &QuizService{
		bank:          bank,
		sessions:      sessions,
		progress:      progress,
		selector:      sel,
		feedbackDelay: feedbackDelay,
	}
}

// StartAttempt builds the engine for one quiz attempt: loads the course
// bank, applies mode selection, and restores persisted state when a
// resumable attempt exists under the same key. Precondition failures
// (unknown mode, empty bank, empty progress set) fail here, before any
// session exists.
func (s *QuizService) StartAttempt(ctx context.Context, req AttemptRequest) (*engine.Engine, error) {
	mode, err := domain.ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	raw, err := s.bank.Questions(ctx, req.CourseCode)
	if err != nil {
		return nil, err
	}
	if mode == domain.ModeWeekly && req.Week > 0 {
		raw = filterWeek(raw, req.Week)
	}
	if len(raw) == 0 {
		return nil, domain.ErrNoQuestions
	}

	timeLimit := req.TimeLimitSeconds
	if mode.UsesTimer() && timeLimit <= 0 {
		timeLimit = DefaultTimeLimitSeconds
	}

	params := selector.Params{NumQuestions: req.NumQuestions}
	if mode == domain.ModeProgress {
		missed, err := s.progress.Missed(ctx, req.CourseCode)
		if err != nil || len(missed) == 0 {
			return nil, domain.ErrEmptyProgressSet
		}
		params.MissedTexts = missed
	}

	key := domain.SessionKey{
		CourseCode:       req.CourseCode,
		Mode:             mode,
		TimeLimitSeconds: timeLimit,
		NumQuestions:     req.NumQuestions,
	}

	session, fresh, err := s.restoreOrCreate(ctx, key, mode, raw, params, timeLimit)
	if err != nil {
		return nil, err
	}

	// Restart re-runs selection against the same draw parameters. For
	// progress mode the filter input is frozen to the attempt's question
	// set, so a cleared record still reshuffles to a full restart.
	reselectParams := params
	if mode == domain.ModeProgress {
		reselectParams.MissedTexts = questionTexts(session.Questions)
	}
	reselect := func() ([]domain.ProcessedQuestion, error) {
		return s.selector.Select(mode, raw, reselectParams)
	}

	eng := engine.New(engine.Config{
		Key:           key,
		Session:       session,
		Reselect:      reselect,
		Store:         s.sessions,
		Progress:      s.progress,
		FeedbackDelay: s.feedbackDelay,
	})
	if fresh && s.sessions != nil && mode.Resumable() {
		_ = s.sessions.Save(ctx, key, session)
	}
	return eng, nil
}

func (s *QuizService) restoreOrCreate(ctx context.Context, key domain.SessionKey, mode domain.Mode, raw []domain.Question, params selector.Params, timeLimit int) (*domain.QuizSession, bool, error) {
	if mode.Resumable() && s.sessions != nil {
		if restored, err := s.sessions.Load(ctx, key); err == nil && validRestore(restored, mode) {
			return restored, false, nil
		}
	}
	questions, err := s.selector.Select(mode, raw, params)
	if err != nil {
		return nil, false, err
	}
	return domain.NewQuizSession(key.CourseCode, mode, questions, timeLimit), true, nil
}

// validRestore rejects persisted state that unmarshals but is structurally
// inconsistent. A blob that fails any check is treated as absence and the
// attempt starts fresh.
func validRestore(s *domain.QuizSession, mode domain.Mode) bool {
	if s == nil || s.Mode != mode || len(s.Questions) == 0 {
		return false
	}
	if len(s.Answers) != len(s.Questions) {
		return false
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return false
	}
	if s.Lives < 0 || s.TimeRemainingSeconds < 0 || s.Score < 0 {
		return false
	}
	return true
}

// Completion reports the stored course completion percentage.
func (s *QuizService) Completion(ctx context.Context, courseCode string) (int, error) {
	return s.progress.Completion(ctx, courseCode)
}

// MissedQuestions reports the course's recorded missed-question texts.
func (s *QuizService) MissedQuestions(ctx context.Context, courseCode string) ([]string, error) {
	return s.progress.Missed(ctx, courseCode)
}

func filterWeek(raw []domain.Question, week int) []domain.Question {
	var out []domain.Question
	for _, q := range raw {
		if q.Week == week {
			out = append(out, q)
		}
	}
	return out
}

func questionTexts(questions []domain.ProcessedQuestion) []string {
	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = q.Text
	}
	return texts
}
