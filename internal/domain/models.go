package domain

import (
	"fmt"
	"sort"
)

// Mode selects the behavior of a quiz attempt: timing, lives, and how
// questions are drawn from the course bank.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeTimed    Mode = "timed"
	ModeQuick    Mode = "quick"
	ModeProgress Mode = "progress"
	ModeWeekly   Mode = "weekly"
)

// ParseMode validates a raw mode string coming from the UI layer.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModePractice, ModeTimed, ModeQuick, ModeProgress, ModeWeekly:
		return Mode(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
}

// UsesLives reports whether incorrect answers cost a life in this mode.
func (m Mode) UsesLives() bool {
	return m == ModePractice || m == ModeProgress
}

// UsesTimer reports whether the mode runs against a countdown.
func (m Mode) UsesTimer() bool {
	return m == ModeTimed || m == ModeQuick
}

// HasPowerUps reports whether power-ups are offered in this mode.
func (m Mode) HasPowerUps() bool {
	return m != ModeWeekly
}

// Resumable reports whether a half-finished attempt may be restored from
// storage. Progress attempts are always rebuilt from the current missed
// record, never resumed.
func (m Mode) Resumable() bool {
	return m != ModeProgress
}

// ContentType distinguishes multiple-choice questions from free-text ones.
type ContentType string

const (
	ContentMultipleChoice ContentType = "multiple_choice"
	ContentFreeText       ContentType = "free_text"
)

// Question is a raw bank entry as supplied by the data-fetching layer.
// Option strings may carry a literal leading label ("A) ", "Option B: ")
// and Answer holds the correct option letters. Never mutated.
type Question struct {
	Week        int         `json:"question"`
	Text        string      `json:"question_text"`
	Options     []string    `json:"options"`
	Answer      []string    `json:"answer"`
	ContentType ContentType `json:"content_type"`
}

// ProcessedQuestion is one attempt's view of a Question: options shuffled,
// correct indices re-derived from option text so the shuffle can never
// desync scoring. Eliminated holds indices hidden by a fiftyFifty.
type ProcessedQuestion struct {
	Text            string      `json:"text"`
	ShuffledOptions []string    `json:"shuffledOptions"`
	CorrectIndices  []int       `json:"correctIndices"`
	CorrectTexts    []string    `json:"correctTexts"`
	Eliminated      []int       `json:"eliminated,omitempty"`
	ContentType     ContentType `json:"contentType"`
}

// IsCorrectSelection compares a selection against the correct set by exact
// set equality.
func (q ProcessedQuestion) IsCorrectSelection(selected []int) bool {
	if len(selected) != len(q.CorrectIndices) {
		return false
	}
	a := append([]int(nil), selected...)
	b := append([]int(nil), q.CorrectIndices...)
	sort.Ints(a)
	sort.Ints(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// UserAnswer records one submission. Once Locked, SelectedIndices and
// Correct are immutable until a restart.
type UserAnswer struct {
	SelectedIndices  []int  `json:"selectedIndices"`
	TextAnswer       string `json:"textAnswer,omitempty"`
	Correct          bool   `json:"correct"`
	Locked           bool   `json:"locked"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// PowerUpKind enumerates the single-use modifiers.
type PowerUpKind string

const (
	PowerUpFiftyFifty PowerUpKind = "fiftyFifty"
	PowerUpExtraTime  PowerUpKind = "extraTime"
	PowerUpShield     PowerUpKind = "shield"
)

// PowerUp tracks availability of one modifier within an attempt. Active
// flips to false on use and never back without a restart.
type PowerUp struct {
	Kind   PowerUpKind `json:"kind"`
	Active bool        `json:"active"`
}

// DefaultPowerUps returns the starting set for a mode.
func DefaultPowerUps(mode Mode) []PowerUp {
	if !mode.HasPowerUps() {
		return nil
	}
	return []PowerUp{
		{Kind: PowerUpFiftyFifty, Active: true},
		{Kind: PowerUpExtraTime, Active: true},
		{Kind: PowerUpShield, Active: true},
	}
}

// DefaultLives is the starting life count for lives-based modes.
const DefaultLives = 3

// ExtraTimeSeconds is added by the extraTime power-up.
const ExtraTimeSeconds = 30

// QuizSession is the aggregate root for one attempt. It is mutated only
// through the engine's operations.
type QuizSession struct {
	CourseCode           string              `json:"courseCode"`
	Mode                 Mode                `json:"mode"`
	Questions            []ProcessedQuestion `json:"questions"`
	CurrentIndex         int                 `json:"currentIndex"`
	Score                int                 `json:"score"`
	Lives                int                 `json:"lives"`
	TimeRemainingSeconds int                 `json:"timeRemainingSeconds"`
	PowerUps             []PowerUp           `json:"powerUps"`
	Ended                bool                `json:"ended"`
	Answers              []UserAnswer        `json:"answers"`
}

// NewQuizSession initializes an attempt to mode defaults.
func NewQuizSession(course string, mode Mode, questions []ProcessedQuestion, timeLimitSeconds int) *QuizSession {
	s := &QuizSession{
		CourseCode: course,
		Mode:       mode,
		Questions:  questions,
		PowerUps:   DefaultPowerUps(mode),
		Answers:    make([]UserAnswer, len(questions)),
	}
	if mode.UsesLives() {
		s.Lives = DefaultLives
	}
	if mode.UsesTimer() {
		s.TimeRemainingSeconds = timeLimitSeconds
	}
	return s
}

// CurrentQuestion returns the active question, or false when the attempt
// has no questions or is past the end.
func (s *QuizSession) CurrentQuestion() (*ProcessedQuestion, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return nil, false
	}
	return &s.Questions[s.CurrentIndex], true
}

// PowerUp returns the tracked power-up of the given kind, if offered.
func (s *QuizSession) PowerUp(kind PowerUpKind) (*PowerUp, bool) {
	for i := range s.PowerUps {
		if s.PowerUps[i].Kind == kind {
			return &s.PowerUps[i], true
		}
	}
	return nil, false
}

// IncorrectTexts lists the texts of locked questions answered incorrectly.
func (s *QuizSession) IncorrectTexts() []string {
	var texts []string
	for i, ans := range s.Answers {
		if ans.Locked && !ans.Correct {
			texts = append(texts, s.Questions[i].Text)
		}
	}
	return texts
}

// CorrectTexts lists the texts of locked questions answered correctly.
func (s *QuizSession) CorrectTexts() []string {
	var texts []string
	for i, ans := range s.Answers {
		if ans.Locked && ans.Correct {
			texts = append(texts, s.Questions[i].Text)
		}
	}
	return texts
}

// SessionKey identifies one resumable attempt in storage.
type SessionKey struct {
	CourseCode       string `json:"courseCode"`
	Mode             Mode   `json:"mode"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
	NumQuestions     int    `json:"numQuestions"`
}

// String renders the stable storage form of the key.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s:%s:%d:%d", k.CourseCode, k.Mode, k.TimeLimitSeconds, k.NumQuestions)
}

// QuestionReview pairs a question with its answer for the review screen.
type QuestionReview struct {
	Question ProcessedQuestion `json:"question"`
	Answer   UserAnswer        `json:"answer"`
}

// Result is the score breakdown computed once an attempt ends.
type Result struct {
	ScorePercent              int              `json:"scorePercent"`
	AccuracyPercent           int              `json:"accuracyPercent"`
	IncorrectCount            int              `json:"incorrectCount"`
	AvgTimePerQuestionSeconds float64          `json:"avgTimePerQuestionSeconds"`
	Review                    []QuestionReview `json:"review"`
}
