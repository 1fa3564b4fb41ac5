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

const createQuizzesTable = `
CREATE TABLE IF NOT EXISTS quizzes (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	instructor_id TEXT NOT NULL,
	class_name TEXT NOT NULL,
	published INTEGER NOT NULL DEFAULT 0,
	due_at DATETIME,
	reminder_sent_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type QuizRepository struct {
	db *sql.DB
}

func NewQuizRepository(db *sql.DB) repository.QuizRepository {
	return &QuizRepository{db: db}
}

func (r *QuizRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createQuizzesTable); err != nil {
		return fmt.Errorf("create quizzes table: %w", err)
	}
	return nil
}

func (r *QuizRepository) Create(ctx context.Context, quiz *domain.Quiz) error {
	now := time.Now().UTC()
	quiz.CreatedAt = now
	quiz.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO quizzes (id, title, description, instructor_id, class_name, published, due_at, reminder_sent_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		quiz.ID,
		quiz.Title,
		quiz.Description,
		quiz.InstructorID,
		quiz.ClassName,
		quiz.Published,
		quiz.DueAt,
		quiz.ReminderSentAt,
		quiz.CreatedAt,
		quiz.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

const selectQuizColumns = `
SELECT id, title, description, instructor_id, class_name, published, due_at, reminder_sent_at, created_at, updated_at
FROM quizzes`

func (r *QuizRepository) Get(ctx context.Context, id string) (*domain.Quiz, error) {
	row := r.db.QueryRowContext(ctx, selectQuizColumns+` WHERE id = ?`, id)
	return scanQuiz(row)
}

func (r *QuizRepository) List(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := r.db.QueryContext(ctx, selectQuizColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()
	return collectQuizzes(rows)
}

func (r *QuizRepository) ListByInstructor(ctx context.Context, instructorID string) ([]domain.Quiz, error) {
	rows, err := r.db.QueryContext(ctx,
		selectQuizColumns+` WHERE instructor_id = ? ORDER BY created_at DESC`,
		instructorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list quizzes by instructor: %w", err)
	}
	defer rows.Close()
	return collectQuizzes(rows)
}

func (r *QuizRepository) ListPublishedByClass(ctx context.Context, className string) ([]domain.Quiz, error) {
	rows, err := r.db.QueryContext(ctx,
		selectQuizColumns+` WHERE class_name = ? AND published = 1 ORDER BY created_at DESC`,
		className,
	)
	if err != nil {
		return nil, fmt.Errorf("list published quizzes: %w", err)
	}
	defer rows.Close()
	return collectQuizzes(rows)
}

func (r *QuizRepository) ListDueForReminder(ctx context.Context, from, to time.Time) ([]domain.Quiz, error) {
	rows, err := r.db.QueryContext(ctx,
		selectQuizColumns+` WHERE published = 1 AND reminder_sent_at IS NULL AND due_at IS NOT NULL AND due_at > ? AND due_at <= ?`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list quizzes due for reminder: %w", err)
	}
	defer rows.Close()
	return collectQuizzes(rows)
}

func (r *QuizRepository) Update(ctx context.Context, quiz *domain.Quiz) error {
	quiz.UpdatedAt = time.Now().UTC()
	return r.exec(ctx, `
UPDATE quizzes SET title = ?, description = ?, due_at = ?, updated_at = ? WHERE id = ?`,
		quiz.Title, quiz.Description, quiz.DueAt, quiz.UpdatedAt, quiz.ID)
}

func (r *QuizRepository) MarkPublished(ctx context.Context, id string) error {
	return r.exec(ctx, `
UPDATE quizzes SET published = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
}

func (r *QuizRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `
UPDATE quizzes SET reminder_sent_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id)
}

func (r *QuizRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM quizzes WHERE id = ?`, id)
}

func (r *QuizRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update quiz rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update quiz: %w", repository.ErrNotFound)
	}
	return nil
}

func scanQuiz(row interface {
	Scan(dest ...any) error
}) (*domain.Quiz, error) {
	var (
		quiz     domain.Quiz
		dueAt    sql.NullTime
		reminded sql.NullTime
	)
	if err := row.Scan(
		&quiz.ID,
		&quiz.Title,
		&quiz.Description,
		&quiz.InstructorID,
		&quiz.ClassName,
		&quiz.Published,
		&dueAt,
		&reminded,
		&quiz.CreatedAt,
		&quiz.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("quiz: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan quiz: %w", err)
	}
	if dueAt.Valid {
		t := dueAt.Time
		quiz.DueAt = &t
	}
	if reminded.Valid {
		t := reminded.Time
		quiz.ReminderSentAt = &t
	}
	return &quiz, nil
}

func collectQuizzes(rows *sql.Rows) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quizzes: %w", err)
	}
	return quizzes, nil
}
