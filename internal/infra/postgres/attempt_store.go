package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"quizcode-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const attemptColumns = `id, quiz_id, user_id, user_name, score, total_questions,
correct_answers, total_points, max_possible_points, completed_at, answers`

// AttemptStore persists completed attempts in Postgres. Answers are stored as
// a JSONB array; rows are never updated after insert.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Append(ctx context.Context, attempt domain.Attempt) (string, error) {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return "", fmt.Errorf("marshal answers: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO attempts (quiz_id, user_id, user_name, score, total_questions,
			correct_answers, total_points, max_possible_points, completed_at, answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		attempt.QuizID, attempt.UserID, attempt.UserName, attempt.Score,
		attempt.TotalQuestions, attempt.CorrectAnswers, attempt.TotalPoints,
		attempt.MaxPossiblePoints, attempt.CompletedAt, answers,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("append attempt: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *AttemptStore) TopByQuiz(ctx context.Context, quizID string, limit int) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM attempts
		WHERE quiz_id=$1
		ORDER BY total_points DESC, completed_at ASC
		LIMIT $2`, quizID, limit)
	if err != nil {
		return nil, fmt.Errorf("top attempts: %w", err)
	}
	return collectAttempts(rows)
}

func (s *AttemptStore) BestByQuizAndUser(ctx context.Context, quizID, userID string, limit int) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM attempts
		WHERE quiz_id=$1 AND user_id=$2
		ORDER BY total_points DESC, completed_at ASC
		LIMIT $3`, quizID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("user attempts: %w", err)
	}
	return collectAttempts(rows)
}

func (s *AttemptStore) CountWithMorePoints(ctx context.Context, quizID string, points int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM attempts WHERE quiz_id=$1 AND total_points > $2`,
		quizID, points,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

func (s *AttemptStore) ByUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM attempts
		WHERE user_id=$1
		ORDER BY completed_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("attempt history: %w", err)
	}
	return collectAttempts(rows)
}

func collectAttempts(rows pgx.Rows) ([]domain.Attempt, error) {
	defer rows.Close()
	attempts := make([]domain.Attempt, 0)
	for rows.Next() {
		var (
			a   domain.Attempt
			id  int64
			raw []byte
		)
		if err := rows.Scan(&id, &a.QuizID, &a.UserID, &a.UserName, &a.Score,
			&a.TotalQuestions, &a.CorrectAnswers, &a.TotalPoints,
			&a.MaxPossiblePoints, &a.CompletedAt, &raw); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal(raw, &a.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		a.ID = strconv.FormatInt(id, 10)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
