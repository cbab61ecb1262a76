package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quizcode-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Catalog reads quiz JSONB from Postgres.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) GetQuizByID(ctx context.Context, id string) (domain.Quiz, error) {
	row := c.pool.QueryRow(ctx, `SELECT id, code, data FROM quizzes WHERE id=$1`, id)
	return scanQuiz(row)
}

func (c *Catalog) GetQuizByCode(ctx context.Context, code string) (domain.Quiz, error) {
	row := c.pool.QueryRow(ctx, `SELECT id, code, data FROM quizzes WHERE code=$1`, code)
	return scanQuiz(row)
}

func (c *Catalog) GetAllQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := c.pool.Query(ctx, `SELECT id, code, data FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

// IsCodeUnique reports whether no stored quiz uses the code.
func (c *Catalog) IsCodeUnique(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM quizzes WHERE code=$1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check quiz code: %w", err)
	}
	return !exists, nil
}

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var (
		id   string
		code *string
		raw  []byte
	)
	if err := row.Scan(&id, &code, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = id
	if code != nil {
		quiz.Code = *code
	}
	return quiz, nil
}
