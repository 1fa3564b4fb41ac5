package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizdesk/internal/domain"
	"quizdesk/internal/repository"
)

var (
	// ErrQuizNotFound is returned when the referenced quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNotQuizOwner is returned when an instructor touches a quiz they
	// did not create.
	ErrNotQuizOwner = errors.New("not the quiz owner")
	// ErrQuizNotPublished is returned when a student submits to an
	// unpublished quiz.
	ErrQuizNotPublished = errors.New("quiz not published")
	// ErrResultAlreadySubmitted is returned on a second submission for the
	// same quiz by the same student.
	ErrResultAlreadySubmitted = errors.New("result already submitted")
)

// QuizService coordinates quiz lifecycle operations backed by repositories.
// Notification fan-out is best effort throughout: a failed write is logged
// and never rolls back the primary operation.
type QuizService interface {
	CreateQuiz(ctx context.Context, instructorID, title, description, className string, dueAt *time.Time) (*domain.Quiz, error)
	GetQuiz(ctx context.Context, id string) (*domain.Quiz, error)
	UpdateQuiz(ctx context.Context, instructorID, id, title, description string, dueAt *time.Time) (*domain.Quiz, error)
	DeleteQuiz(ctx context.Context, instructorID, id string) error
	PublishQuiz(ctx context.Context, instructorID, id string) (*domain.Quiz, error)
	ListAll(ctx context.Context) ([]domain.Quiz, error)
	ListForInstructor(ctx context.Context, instructorID string) ([]domain.Quiz, error)
	ListPublishedForClass(ctx context.Context, className string) ([]domain.Quiz, error)
	SubmitResult(ctx context.Context, quizID, studentID string, score, total int) (*domain.QuizResult, error)
	ListResults(ctx context.Context, instructorID, quizID string) ([]domain.QuizResult, error)
	ListStudentResults(ctx context.Context, studentID string) ([]domain.QuizResult, error)
}

type quizService struct {
	quizzes       repository.QuizRepository
	results       repository.ResultRepository
	users         repository.UserRepository
	notifications NotificationService
	logger        *logrus.Logger
}

func NewQuizService(quizzes repository.QuizRepository, results repository.ResultRepository, users repository.UserRepository, notifications NotificationService, logger *logrus.Logger) QuizService {
	if logger == nil {
		logger = logrus.New()
	}
	return &quizService{
		quizzes:       quizzes,
		results:       results,
		users:         users,
		notifications: notifications,
		logger:        logger,
	}
}

func (s *quizService) CreateQuiz(ctx context.Context, instructorID, title, description, className string, dueAt *time.Time) (*domain.Quiz, error) {
	if title == "" {
		return nil, errors.New("quiz title is required")
	}
	if className == "" {
		return nil, errors.New("class name is required")
	}

	quiz := &domain.Quiz{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  description,
		InstructorID: instructorID,
		ClassName:    className,
		DueAt:        dueAt,
	}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *quizService) GetQuiz(ctx context.Context, id string) (*domain.Quiz, error) {
	quiz, err := s.quizzes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

func (s *quizService) UpdateQuiz(ctx context.Context, instructorID, id, title, description string, dueAt *time.Time) (*domain.Quiz, error) {
	quiz, err := s.ownedQuiz(ctx, instructorID, id)
	if err != nil {
		return nil, err
	}

	if title != "" {
		quiz.Title = title
	}
	quiz.Description = description
	quiz.DueAt = dueAt

	if err := s.quizzes.Update(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *quizService) DeleteQuiz(ctx context.Context, instructorID, id string) error {
	if _, err := s.ownedQuiz(ctx, instructorID, id); err != nil {
		return err
	}
	return s.quizzes.Delete(ctx, id)
}

// PublishQuiz makes the quiz visible to its class and fans out a
// QUIZ_ASSIGNED notification to every student on the roster.
func (s *quizService) PublishQuiz(ctx context.Context, instructorID, id string) (*domain.Quiz, error) {
	quiz, err := s.ownedQuiz(ctx, instructorID, id)
	if err != nil {
		return nil, err
	}

	if !quiz.Published {
		if err := s.quizzes.MarkPublished(ctx, id); err != nil {
			return nil, err
		}
		quiz.Published = true

		roster, err := s.users.ListByClass(ctx, quiz.ClassName, domain.RoleStudent)
		if err != nil {
			s.logger.Warnf("roster lookup for quiz %s fan-out: %v", id, err)
			return quiz, nil
		}
		link := quizLink(quiz.ID)
		for i := range roster {
			if _, err := s.notifications.QuizAssigned(ctx, roster[i].ID, quiz.Title, quiz.ClassName, link); err != nil {
				s.logger.Warnf("notify quiz assigned to %s: %v", roster[i].ID, err)
			}
		}
	}
	return quiz, nil
}

func (s *quizService) ListAll(ctx context.Context) ([]domain.Quiz, error) {
	return s.quizzes.List(ctx)
}

func (s *quizService) ListForInstructor(ctx context.Context, instructorID string) ([]domain.Quiz, error) {
	return s.quizzes.ListByInstructor(ctx, instructorID)
}

func (s *quizService) ListPublishedForClass(ctx context.Context, className string) ([]domain.Quiz, error) {
	return s.quizzes.ListPublishedByClass(ctx, className)
}

// SubmitResult records one student submission and fans out a QUIZ_RESULT
// notification to the student.
func (s *quizService) SubmitResult(ctx context.Context, quizID, studentID string, score, total int) (*domain.QuizResult, error) {
	if total <= 0 || score < 0 || score > total {
		return nil, errors.New("invalid score")
	}

	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.Published {
		return nil, ErrQuizNotPublished
	}

	result := &domain.QuizResult{
		ID:          uuid.NewString(),
		QuizID:      quizID,
		StudentID:   studentID,
		Score:       score,
		Total:       total,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.results.Create(ctx, result); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrResultAlreadySubmitted
		}
		return nil, err
	}

	if _, err := s.notifications.QuizResult(ctx, studentID, quiz.Title, score, total, quizLink(quizID)); err != nil {
		s.logger.Warnf("notify quiz result to %s: %v", studentID, err)
	}
	return result, nil
}

func (s *quizService) ListResults(ctx context.Context, instructorID, quizID string) ([]domain.QuizResult, error) {
	if _, err := s.ownedQuiz(ctx, instructorID, quizID); err != nil {
		return nil, err
	}
	return s.results.ListByQuiz(ctx, quizID)
}

func (s *quizService) ListStudentResults(ctx context.Context, studentID string) ([]domain.QuizResult, error) {
	return s.results.ListByStudent(ctx, studentID)
}

func (s *quizService) ownedQuiz(ctx context.Context, instructorID, id string) (*domain.Quiz, error) {
	quiz, err := s.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if quiz.InstructorID != instructorID {
		return nil, ErrNotQuizOwner
	}
	return quiz, nil
}

func quizLink(id string) string {
	return fmt.Sprintf("/quizzes/%s", id)
}
