package engine

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"edu-quiz-engine/internal/domain"
)

// Config wires one attempt's collaborators into an Engine.
type Config struct {
	Key     domain.SessionKey
	Session *domain.QuizSession
	// Reselect re-runs question selection for Restart. For progress mode it
	// draws from the set the attempt was created with, re-shuffled.
	Reselect func() ([]domain.ProcessedQuestion, error)
	Store    SessionStore  // optional; nil disables resume persistence
	Progress ProgressStore // optional; nil disables missed-question records
	Clock    func() time.Time
	// FeedbackDelay is the pause between locking an answer and the
	// auto-advance, so the UI can show feedback. Zero advances synchronously.
	FeedbackDelay time.Duration
	Rand          *rand.Rand
}

// Feedback is the immediate outcome of a submission.
type Feedback struct {
	Correct        bool  `json:"correct"`
	CorrectIndices []int `json:"correctIndices"`
	Score          int   `json:"score"`
	Lives          int   `json:"lives"`
	Ended          bool  `json:"ended"`
}

// Snapshot is the UI-facing view of the attempt, pushed to subscribers on
// every state change.
type Snapshot struct {
	CourseCode           string             `json:"courseCode"`
	Mode                 domain.Mode        `json:"mode"`
	QuestionIndex        int                `json:"questionIndex"`
	TotalQuestions       int                `json:"totalQuestions"`
	QuestionText         string             `json:"questionText"`
	Options              []string           `json:"options"`
	Eliminated           []int              `json:"eliminated,omitempty"`
	ContentType          domain.ContentType `json:"contentType"`
	Answered             bool               `json:"answered"`
	Score                int                `json:"score"`
	Lives                int                `json:"lives"`
	TimeRemainingSeconds int                `json:"timeRemainingSeconds"`
	PowerUps             []domain.PowerUp   `json:"powerUps"`
	Ended                bool               `json:"ended"`
	Result               *domain.Result     `json:"result,omitempty"`
}

// Engine is the state machine over one QuizSession. All mutations go
// through its operations; every mutation writes through to the session
// store (best-effort) and broadcasts a snapshot.
type Engine struct {
	mu            sync.Mutex
	key           domain.SessionKey
	session       *domain.QuizSession
	reselect      func() ([]domain.ProcessedQuestion, error)
	store         SessionStore
	progress      ProgressStore
	clock         func() time.Time
	feedbackDelay time.Duration
	rnd           *rand.Rand

	questionStart  time.Time
	timer          *countdown
	timerWanted    bool
	pendingAdvance *time.Timer
	// gen invalidates deferred callbacks scheduled for a discarded state:
	// a restart or teardown bumps it, and stale callbacks compare and bail.
	gen         int
	subscribers map[chan Snapshot]struct{}
}

// New builds an Engine around an initialized or restored session.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		key:           cfg.Key,
		session:       cfg.Session,
		reselect:      cfg.Reselect,
		store:         cfg.Store,
		progress:      cfg.Progress,
		clock:         clock,
		feedbackDelay: cfg.FeedbackDelay,
		rnd:           rnd,
		questionStart: clock(),
		subscribers:   make(map[chan Snapshot]struct{}),
	}
}

// Start begins the countdown for timed modes. It is a no-op for untimed
// modes, ended sessions, and repeated calls.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timerWanted = true
	e.startTimerLocked()
}

func (e *Engine) startTimerLocked() {
	if e.timer != nil || e.session.Ended {
		return
	}
	if !e.session.Mode.UsesTimer() || e.session.TimeRemainingSeconds <= 0 {
		return
	}
	gen := e.gen
	e.timer = newCountdown(func() { e.tickForGeneration(gen) })
}

// tickForGeneration discards ticks from a countdown belonging to a
// discarded session (halted but with one tick still in flight).
func (e *Engine) tickForGeneration(gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	e.tickLocked(context.Background())
}

// Tick advances the countdown by one second. Ticks after the session has
// ended are discarded.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked(ctx)
}

func (e *Engine) tickLocked(ctx context.Context) {
	if e.session.Ended || !e.session.Mode.UsesTimer() {
		return
	}
	if e.session.TimeRemainingSeconds <= 0 {
		return
	}
	e.session.TimeRemainingSeconds--
	if e.session.TimeRemainingSeconds <= 0 {
		e.session.TimeRemainingSeconds = 0
		e.timerExpireLocked(ctx)
		return
	}
	e.saveLocked(ctx)
	e.broadcastLocked()
}

// TimerExpire forces the current question to lock as incorrect with an
// empty selection and ends the session. Idempotent, and a no-op in modes
// without a timer.
func (e *Engine) TimerExpire(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.session.Mode.UsesTimer() {
		return
	}
	e.timerExpireLocked(ctx)
}

func (e *Engine) timerExpireLocked(ctx context.Context) {
	if e.session.Ended {
		return
	}
	if _, ok := e.session.CurrentQuestion(); ok {
		ans := &e.session.Answers[e.session.CurrentIndex]
		if !ans.Locked {
			*ans = domain.UserAnswer{
				SelectedIndices:  []int{},
				Correct:          false,
				Locked:           true,
				TimeSpentSeconds: e.elapsedLocked(),
			}
		}
	}
	e.endLocked(ctx)
	e.broadcastLocked()
}

// SubmitAnswer scores a multiple-choice selection against the current
// question. Resubmitting a locked question is a no-op that returns the
// recorded outcome; an empty selection is rejected with ErrNoSelection and
// locks nothing.
func (e *Engine) SubmitAnswer(ctx context.Context, selected []int) (Feedback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Ended {
		return Feedback{}, domain.ErrSessionEnded
	}
	q, ok := e.session.CurrentQuestion()
	if !ok {
		return Feedback{}, domain.ErrSessionEnded
	}
	ans := &e.session.Answers[e.session.CurrentIndex]
	if ans.Locked {
		return e.feedbackLocked(q, ans), nil
	}
	if len(selected) == 0 {
		return Feedback{}, domain.ErrNoSelection
	}

	correct := q.IsCorrectSelection(selected)
	*ans = domain.UserAnswer{
		SelectedIndices:  append([]int(nil), selected...),
		Correct:          correct,
		Locked:           true,
		TimeSpentSeconds: e.elapsedLocked(),
	}
	e.applyOutcomeLocked(ctx, q, correct)
	return e.feedbackLocked(q, ans), nil
}

// SubmitText scores a free-text answer by normalized comparison against
// the question's correct texts.
func (e *Engine) SubmitText(ctx context.Context, answer string) (Feedback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Ended {
		return Feedback{}, domain.ErrSessionEnded
	}
	q, ok := e.session.CurrentQuestion()
	if !ok {
		return Feedback{}, domain.ErrSessionEnded
	}
	ans := &e.session.Answers[e.session.CurrentIndex]
	if ans.Locked {
		return e.feedbackLocked(q, ans), nil
	}
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return Feedback{}, domain.ErrNoSelection
	}

	correct := false
	for _, want := range q.CorrectTexts {
		if strings.EqualFold(trimmed, strings.TrimSpace(want)) {
			correct = true
			break
		}
	}
	*ans = domain.UserAnswer{
		TextAnswer:       trimmed,
		Correct:          correct,
		Locked:           true,
		TimeSpentSeconds: e.elapsedLocked(),
	}
	e.applyOutcomeLocked(ctx, q, correct)
	return e.feedbackLocked(q, ans), nil
}

// applyOutcomeLocked applies scoring, life depletion, and the auto-advance
// rule after an answer locks.
func (e *Engine) applyOutcomeLocked(ctx context.Context, q *domain.ProcessedQuestion, correct bool) {
	if correct {
		e.session.Score++
	} else if e.session.Mode.UsesLives() {
		e.session.Lives--
		if e.session.Lives <= 0 {
			e.session.Lives = 0
			e.endLocked(ctx)
			e.broadcastLocked()
			return
		}
	}
	// Correct answers always auto-advance; in modes without lives any
	// locked answer does. Lives modes hold on an incorrect answer so the
	// user can review before calling Advance.
	if correct || !e.session.Mode.UsesLives() {
		e.scheduleAdvanceLocked()
	}
	e.saveLocked(ctx)
	e.broadcastLocked()
}

func (e *Engine) feedbackLocked(q *domain.ProcessedQuestion, ans *domain.UserAnswer) Feedback {
	return Feedback{
		Correct:        ans.Correct,
		CorrectIndices: append([]int(nil), q.CorrectIndices...),
		Score:          e.session.Score,
		Lives:          e.session.Lives,
		Ended:          e.session.Ended,
	}
}

// scheduleAdvanceLocked arms the feedback-delay advance. The deferred
// callback is generation-checked so a restart or teardown in the gap makes
// it a no-op instead of a stale mutation.
func (e *Engine) scheduleAdvanceLocked() {
	if e.feedbackDelay <= 0 {
		e.advanceLocked(context.Background())
		return
	}
	gen := e.gen
	e.cancelPendingAdvanceLocked()
	e.pendingAdvance = time.AfterFunc(e.feedbackDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.gen || e.session.Ended {
			return
		}
		e.advanceLocked(context.Background())
		e.broadcastLocked()
	})
}

func (e *Engine) cancelPendingAdvanceLocked() {
	if e.pendingAdvance != nil {
		e.pendingAdvance.Stop()
		e.pendingAdvance = nil
	}
}

// Advance moves to the next question, or ends the attempt on the last one.
func (e *Engine) Advance(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Ended {
		return
	}
	e.advanceLocked(ctx)
	e.broadcastLocked()
}

func (e *Engine) advanceLocked(ctx context.Context) {
	e.cancelPendingAdvanceLocked()
	if e.session.CurrentIndex >= len(e.session.Questions)-1 {
		e.endLocked(ctx)
		return
	}
	e.session.CurrentIndex++
	e.questionStart = e.clock()
	e.saveLocked(ctx)
}

// UsePowerUp applies a power-up's one-time effect. Spent or unavailable
// power-ups are a silent no-op; the returned bool reports whether the
// power-up was consumed.
func (e *Engine) UsePowerUp(ctx context.Context, kind domain.PowerUpKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Ended {
		return false
	}
	pu, ok := e.session.PowerUp(kind)
	if !ok || !pu.Active {
		return false
	}

	switch kind {
	case domain.PowerUpFiftyFifty:
		if !e.applyFiftyFiftyLocked() {
			return false
		}
	case domain.PowerUpExtraTime:
		if e.session.Mode.UsesTimer() {
			e.session.TimeRemainingSeconds += domain.ExtraTimeSeconds
		}
	case domain.PowerUpShield:
		e.session.Lives++
	default:
		return false
	}

	pu.Active = false
	e.saveLocked(ctx)
	e.broadcastLocked()
	return true
}

// applyFiftyFiftyLocked hides up to two incorrect options of the current
// question. It never hides a correct option and never shrinks the visible
// set below one more than the number of correct options. Returns false
// when there is nothing it can remove, leaving the power-up unspent.
func (e *Engine) applyFiftyFiftyLocked() bool {
	q, ok := e.session.CurrentQuestion()
	if !ok || q.ContentType == domain.ContentFreeText {
		return false
	}
	if e.session.Answers[e.session.CurrentIndex].Locked {
		return false
	}

	correct := make(map[int]bool, len(q.CorrectIndices))
	for _, i := range q.CorrectIndices {
		correct[i] = true
	}
	hidden := make(map[int]bool, len(q.Eliminated))
	for _, i := range q.Eliminated {
		hidden[i] = true
	}

	var candidates []int
	for i := range q.ShuffledOptions {
		if !correct[i] && !hidden[i] {
			candidates = append(candidates, i)
		}
	}
	visible := len(q.ShuffledOptions) - len(q.Eliminated)
	budget := visible - len(q.CorrectIndices) - 1
	remove := 2
	if remove > len(candidates) {
		remove = len(candidates)
	}
	if remove > budget {
		remove = budget
	}
	if remove <= 0 {
		return false
	}

	e.rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	q.Eliminated = append(q.Eliminated, candidates[:remove]...)
	return true
}

// End finalizes the attempt: updates the course's missed-question record,
// writes the completion percentage, and stops all timers. Idempotent.
func (e *Engine) End(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Ended {
		return
	}
	e.endLocked(ctx)
	e.broadcastLocked()
}

func (e *Engine) endLocked(ctx context.Context) {
	if e.session.Ended {
		return
	}
	e.session.Ended = true
	e.gen++
	e.cancelPendingAdvanceLocked()
	if e.timer != nil {
		e.timer.halt()
		e.timer = nil
	}
	e.recordProgressLocked(ctx)
	e.saveLocked(ctx)
}

// recordProgressLocked merges this attempt into the course's cross-session
// state. Incorrect answers union into the missed record; a progress
// attempt also removes the questions it got right. A perfect attempt
// clears the record outright when its question set covers everything
// recorded. All writes are best-effort.
func (e *Engine) recordProgressLocked(ctx context.Context) {
	if e.progress == nil {
		return
	}
	course := e.session.CourseCode
	incorrect := e.session.IncorrectTexts()
	correct := e.session.CorrectTexts()

	if len(incorrect) > 0 {
		_ = e.progress.AddMissed(ctx, course, incorrect)
	}
	if e.session.Mode == domain.ModeProgress && len(correct) > 0 {
		_ = e.progress.RemoveMissed(ctx, course, correct)
	}

	total := len(e.session.Questions)
	if total > 0 && e.session.Score == total {
		if recorded, err := e.progress.Missed(ctx, course); err == nil && covers(e.session.Questions, recorded) {
			_ = e.progress.ClearMissed(ctx, course)
		}
	}

	if total > 0 {
		// Floor division; the last attempt wins regardless of history.
		_ = e.progress.SetCompletion(ctx, course, e.session.Score*100/total)
	}
}

// covers reports whether the attempt's question set includes every
// recorded missed question.
func covers(questions []domain.ProcessedQuestion, recorded []string) bool {
	asked := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		asked[q.Text] = struct{}{}
	}
	for _, text := range recorded {
		if _, ok := asked[text]; !ok {
			return false
		}
	}
	return true
}

// Restart discards the persisted state for this attempt's key, re-runs
// selection with a fresh shuffle, and reinitializes to mode defaults. In
// progress mode it also clears the course's missed-question record.
func (e *Engine) Restart(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.cancelPendingAdvanceLocked()
	if e.timer != nil {
		e.timer.halt()
		e.timer = nil
	}

	if e.store != nil {
		_ = e.store.Clear(ctx, e.key)
	}
	if e.session.Mode == domain.ModeProgress && e.progress != nil {
		_ = e.progress.ClearMissed(ctx, e.session.CourseCode)
	}

	questions := e.session.Questions
	if e.reselect != nil {
		reshuffled, err := e.reselect()
		if err != nil {
			return err
		}
		questions = reshuffled
	}
	e.session = domain.NewQuizSession(e.session.CourseCode, e.session.Mode, questions, e.key.TimeLimitSeconds)
	e.questionStart = e.clock()
	if e.timerWanted {
		e.startTimerLocked()
	}
	e.saveLocked(ctx)
	e.broadcastLocked()
	return nil
}

// Result computes the score breakdown for the review screen.
func (e *Engine) Result() domain.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeResult(e.session)
}

// SessionState returns a copy of the aggregate for inspection.
func (e *Engine) SessionState() domain.QuizSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.session
}

// Snapshot returns the current UI view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot per state change. The
// caller must invoke the returned cancel function to avoid leaks.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	initial := e.snapshotLocked()
	e.mu.Unlock()

	ch <- initial

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// Close tears the engine down on screen unmount: timers halted, deferred
// callbacks invalidated, subscribers closed. The persisted session is left
// in place so the attempt can resume.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.cancelPendingAdvanceLocked()
	if e.timer != nil {
		e.timer.halt()
		e.timer = nil
	}
	for ch := range e.subscribers {
		delete(e.subscribers, ch)
		close(ch)
	}
}

func (e *Engine) elapsedLocked() int {
	return int(e.clock().Sub(e.questionStart) / time.Second)
}

func (e *Engine) saveLocked(ctx context.Context) {
	if e.store == nil || !e.session.Mode.Resumable() {
		return
	}
	// best-effort write-through; a failed save degrades to non-persistent
	_ = e.store.Save(ctx, e.key, e.session)
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		CourseCode:           e.session.CourseCode,
		Mode:                 e.session.Mode,
		QuestionIndex:        e.session.CurrentIndex,
		TotalQuestions:       len(e.session.Questions),
		Score:                e.session.Score,
		Lives:                e.session.Lives,
		TimeRemainingSeconds: e.session.TimeRemainingSeconds,
		PowerUps:             append([]domain.PowerUp(nil), e.session.PowerUps...),
		Ended:                e.session.Ended,
	}
	if q, ok := e.session.CurrentQuestion(); ok {
		snap.QuestionText = q.Text
		snap.Options = append([]string(nil), q.ShuffledOptions...)
		snap.Eliminated = append([]int(nil), q.Eliminated...)
		snap.ContentType = q.ContentType
		snap.Answered = e.session.Answers[e.session.CurrentIndex].Locked
	}
	if e.session.Ended {
		result := ComputeResult(e.session)
		snap.Result = &result
	}
	return snap
}

func (e *Engine) broadcastLocked() {
	snap := e.snapshotLocked()
	for ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale update so a slow client never blocks the engine
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
