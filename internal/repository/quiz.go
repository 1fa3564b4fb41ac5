package repository

import (
	"context"
	"time"

	"quizdesk/internal/domain"
)

// QuizRepository defines persistence operations for Quiz entities.
type QuizRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, quiz *domain.Quiz) error
	Get(ctx context.Context, id string) (*domain.Quiz, error)
	List(ctx context.Context) ([]domain.Quiz, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]domain.Quiz, error)
	ListPublishedByClass(ctx context.Context, className string) ([]domain.Quiz, error)
	ListDueForReminder(ctx context.Context, from, to time.Time) ([]domain.Quiz, error)
	Update(ctx context.Context, quiz *domain.Quiz) error
	MarkPublished(ctx context.Context, id string) error
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// ResultRepository defines persistence operations for quiz submissions.
type ResultRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, result *domain.QuizResult) error
	GetByQuizAndStudent(ctx context.Context, quizID, studentID string) (*domain.QuizResult, error)
	ListByQuiz(ctx context.Context, quizID string) ([]domain.QuizResult, error)
	ListByStudent(ctx context.Context, studentID string) ([]domain.QuizResult, error)
}
