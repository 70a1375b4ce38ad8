package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"edu-quiz-engine/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads course question banks from Postgres. Each row holds
// one week's questions as JSONB.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// LoadQuestions returns every question for a course across all weeks, in
// week order. The row's week column is authoritative over whatever the
// JSON payload carries.
func (l *QuestionLoader) LoadQuestions(ctx context.Context, courseCode string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT week, data FROM question_banks WHERE course_code=$1 ORDER BY week`, courseCode)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	defer rows.Close()

	var all []domain.Question
	for rows.Next() {
		var week int
		var raw []byte
		if err := rows.Scan(&week, &raw); err != nil {
			return nil, fmt.Errorf("scan question bank row: %w", err)
		}
		var questions []domain.Question
		if err := json.Unmarshal(raw, &questions); err != nil {
			return nil, fmt.Errorf("unmarshal question bank week %d: %w", week, err)
		}
		for i := range questions {
			questions[i].Week = week
		}
		all = append(all, questions...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	if len(all) == 0 {
		return nil, domain.ErrCourseNotFound
	}
	return all, nil
}

// SeedWeek upserts one week's question list for a course. Used to load
// demo banks and test fixtures.
func SeedWeek(ctx context.Context, pool *pgxpool.Pool, courseCode string, week int, questions []domain.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal question bank week %d: %w", week, err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO question_banks (course_code, week, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (course_code, week) DO UPDATE SET data=EXCLUDED.data`,
		courseCode, week, string(data))
	if err != nil {
		return fmt.Errorf("seed question bank week %d: %w", week, err)
	}
	return nil
}
