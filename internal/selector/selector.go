package selector

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"edu-quiz-engine/internal/domain"
)

// Params carries the optional knobs supplied by the settings layer.
type Params struct {
	NumQuestions int
	// MissedTexts is the course's missed-question record; consulted only in
	// progress mode.
	MissedTexts []string
}

// QuickDefaultCount caps a quick attempt when NumQuestions is not given.
const QuickDefaultCount = 10

// Selector turns raw bank questions into the processed, shuffled set for
// one attempt.
type Selector struct {
	rnd *rand.Rand
}

// New returns a Selector seeded from the wall clock.
func New() *Selector {
	return NewWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand is for deterministic shuffles in tests.
func NewWithRand(rnd *rand.Rand) *Selector {
	return &Selector{rnd: rnd}
}

// Select draws, orders, and processes the question set for an attempt.
// Progress mode with no eligible questions fails before any session exists.
func (s *Selector) Select(mode domain.Mode, raw []domain.Question, params Params) ([]domain.ProcessedQuestion, error) {
	if len(raw) == 0 {
		return nil, domain.ErrNoQuestions
	}

	var picked []domain.Question
	switch mode {
	case domain.ModeQuick:
		limit := params.NumQuestions
		if limit <= 0 {
			limit = QuickDefaultCount
		}
		picked = s.sample(raw, limit)
	case domain.ModeTimed:
		limit := params.NumQuestions
		if limit <= 0 {
			limit = len(raw)
		}
		picked = s.sample(raw, limit)
	case domain.ModePractice:
		picked = capAt(raw, params.NumQuestions)
	case domain.ModeWeekly:
		// Caller pre-filters by week; the full set is the draw.
		picked = append([]domain.Question(nil), raw...)
	case domain.ModeProgress:
		picked = filterMissed(raw, params.MissedTexts)
		if len(picked) == 0 {
			return nil, domain.ErrEmptyProgressSet
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMode, mode)
	}

	processed := make([]domain.ProcessedQuestion, 0, len(picked))
	for _, q := range picked {
		pq, err := s.Process(q)
		if err != nil {
			return nil, err
		}
		processed = append(processed, pq)
	}
	return processed, nil
}

// sample draws up to limit questions without repeats, order-independent.
func (s *Selector) sample(raw []domain.Question, limit int) []domain.Question {
	drawn := append([]domain.Question(nil), raw...)
	s.rnd.Shuffle(len(drawn), func(i, j int) {
		drawn[i], drawn[j] = drawn[j], drawn[i]
	})
	if limit < len(drawn) {
		drawn = drawn[:limit]
	}
	return drawn
}

func capAt(raw []domain.Question, limit int) []domain.Question {
	out := append([]domain.Question(nil), raw...)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func filterMissed(raw []domain.Question, missed []string) []domain.Question {
	set := make(map[string]struct{}, len(missed))
	for _, text := range missed {
		set[text] = struct{}{}
	}
	var out []domain.Question
	for _, q := range raw {
		if _, ok := set[q.Text]; ok {
			out = append(out, q)
		}
	}
	return out
}

// optionPrefix matches literal leading labels like "A) ", "B. ", "C: " or
// "Option D - " that some banks bake into option strings.
var optionPrefix = regexp.MustCompile(`(?i)^(?:option\s+)?[a-h][).:\-]\s*`)

// StripOptionPrefix removes a literal leading option label, if present.
func StripOptionPrefix(option string) string {
	return optionPrefix.ReplaceAllString(strings.TrimSpace(option), "")
}

// Process derives a ProcessedQuestion: strip option labels, shuffle, then
// re-derive the correct indices by locating the correct option texts in the
// shuffled list. Indices are never carried across the shuffle.
func (s *Selector) Process(q domain.Question) (domain.ProcessedQuestion, error) {
	cleaned := make([]string, len(q.Options))
	for i, opt := range q.Options {
		cleaned[i] = StripOptionPrefix(opt)
	}

	correctTexts, err := correctOptionTexts(q, cleaned)
	if err != nil {
		return domain.ProcessedQuestion{}, err
	}

	if q.ContentType == domain.ContentFreeText {
		// Nothing to permute; the answer is typed, not picked.
		return domain.ProcessedQuestion{
			Text:            q.Text,
			ShuffledOptions: cleaned,
			CorrectTexts:    correctTexts,
			ContentType:     domain.ContentFreeText,
		}, nil
	}

	shuffled := append([]string(nil), cleaned...)
	s.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	indices, err := locateByText(shuffled, correctTexts)
	if err != nil {
		return domain.ProcessedQuestion{}, err
	}

	return domain.ProcessedQuestion{
		Text:            q.Text,
		ShuffledOptions: shuffled,
		CorrectIndices:  indices,
		CorrectTexts:    correctTexts,
		ContentType:     domain.ContentMultipleChoice,
	}, nil
}

// correctOptionTexts resolves answer letters ("A", "B", ...) to the cleaned
// option texts they named in the original order.
func correctOptionTexts(q domain.Question, cleaned []string) ([]string, error) {
	if len(q.Answer) == 0 {
		return nil, fmt.Errorf("question %q has no answer", q.Text)
	}
	texts := make([]string, 0, len(q.Answer))
	for _, label := range q.Answer {
		idx, err := letterIndex(label)
		if err != nil {
			return nil, fmt.Errorf("question %q: %w", q.Text, err)
		}
		if idx >= len(cleaned) {
			return nil, fmt.Errorf("question %q: answer %q beyond %d options", q.Text, label, len(cleaned))
		}
		texts = append(texts, cleaned[idx])
	}
	return texts, nil
}

func letterIndex(label string) (int, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(label))
	if len(trimmed) != 1 || trimmed[0] < 'A' || trimmed[0] > 'Z' {
		return 0, fmt.Errorf("invalid answer label %q", label)
	}
	return int(trimmed[0] - 'A'), nil
}

// locateByText finds each correct text's position in the shuffled list,
// consuming matches so duplicated option texts resolve to distinct indices.
func locateByText(shuffled []string, correctTexts []string) ([]int, error) {
	used := make(map[int]bool, len(correctTexts))
	indices := make([]int, 0, len(correctTexts))
	for _, text := range correctTexts {
		found := -1
		for i, opt := range shuffled {
			if opt == text && !used[i] {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("correct option %q not present after shuffle", text)
		}
		used[found] = true
		indices = append(indices, found)
	}
	return indices, nil
}
