package engine

import (
	"math"

	"edu-quiz-engine/internal/domain"
)

// ComputeResult derives the final score breakdown and per-question review
// data from a session's terminal state. Safe on zero-question sessions.
func ComputeResult(s *domain.QuizSession) domain.Result {
	total := len(s.Questions)

	answered := 0
	correct := 0
	incorrect := 0
	timeSpent := 0
	review := make([]domain.QuestionReview, 0, total)
	for i, q := range s.Questions {
		ans := s.Answers[i]
		if ans.Locked {
			answered++
			timeSpent += ans.TimeSpentSeconds
			if ans.Correct {
				correct++
			} else {
				incorrect++
			}
		}
		review = append(review, domain.QuestionReview{Question: q, Answer: ans})
	}

	result := domain.Result{
		IncorrectCount: incorrect,
		Review:         review,
	}
	if total > 0 {
		result.ScorePercent = roundPercent(s.Score, total)
	}
	if answered > 0 {
		result.AccuracyPercent = roundPercent(correct, answered)
		result.AvgTimePerQuestionSeconds = float64(timeSpent) / float64(answered)
	}
	return result
}

func roundPercent(part, whole int) int {
	return int(math.Round(100 * float64(part) / float64(whole)))
}
