package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quizdesk/internal/domain"
	"quizdesk/internal/repository"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS quiz_results (
	id TEXT PRIMARY KEY,
	quiz_id TEXT NOT NULL,
	student_id TEXT NOT NULL,
	score INTEGER NOT NULL,
	total INTEGER NOT NULL,
	submitted_at DATETIME NOT NULL,
	UNIQUE (quiz_id, student_id)
);
`

type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) repository.ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createResultsTable); err != nil {
		return fmt.Errorf("create quiz_results table: %w", err)
	}
	return nil
}

func (r *ResultRepository) Create(ctx context.Context, result *domain.QuizResult) error {
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO quiz_results (id, quiz_id, student_id, score, total, submitted_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		result.ID,
		result.QuizID,
		result.StudentID,
		result.Score,
		result.Total,
		result.SubmittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert result: %w", repository.ErrAlreadyExists)
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

const selectResultColumns = `
SELECT id, quiz_id, student_id, score, total, submitted_at
FROM quiz_results`

func (r *ResultRepository) GetByQuizAndStudent(ctx context.Context, quizID, studentID string) (*domain.QuizResult, error) {
	row := r.db.QueryRowContext(ctx,
		selectResultColumns+` WHERE quiz_id = ? AND student_id = ?`,
		quizID, studentID,
	)
	return scanResult(row)
}

func (r *ResultRepository) ListByQuiz(ctx context.Context, quizID string) ([]domain.QuizResult, error) {
	rows, err := r.db.QueryContext(ctx,
		selectResultColumns+` WHERE quiz_id = ? ORDER BY submitted_at`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("list results by quiz: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func (r *ResultRepository) ListByStudent(ctx context.Context, studentID string) ([]domain.QuizResult, error) {
	rows, err := r.db.QueryContext(ctx,
		selectResultColumns+` WHERE student_id = ? ORDER BY submitted_at DESC`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list results by student: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func scanResult(row interface {
	Scan(dest ...any) error
}) (*domain.QuizResult, error) {
	var result domain.QuizResult
	if err := row.Scan(
		&result.ID,
		&result.QuizID,
		&result.StudentID,
		&result.Score,
		&result.Total,
		&result.SubmittedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("result: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	return &result, nil
}

func collectResults(rows *sql.Rows) ([]domain.QuizResult, error) {
	var results []domain.QuizResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
