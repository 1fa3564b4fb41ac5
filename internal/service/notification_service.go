package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quizdesk/internal/domain"
	"quizdesk/internal/repository"
)

// ErrUnknownNotificationType is returned for a type outside the closed enum.
var ErrUnknownNotificationType = errors.New("unknown notification type")

// NotificationService records notifications for users and exposes typed
// constructors for each event kind. Every call persists exactly one row;
// repeated calls with identical content create repeated rows, one per real
// event. Callers performing an unrelated primary operation treat a returned
// error as non-fatal: log it and move on.
type NotificationService interface {
	Notify(ctx context.Context, userID string, typ domain.NotificationType, title, message, link string) (*domain.Notification, error)

	QuizAssigned(ctx context.Context, userID, quizTitle, className, link string) (*domain.Notification, error)
	QuizReminder(ctx context.Context, userID, quizTitle, link string) (*domain.Notification, error)
	DeadlineApproaching(ctx context.Context, userID, quizTitle string, dueAt time.Time, link string) (*domain.Notification, error)
	QuizResult(ctx context.Context, userID, quizTitle string, score, total int, link string) (*domain.Notification, error)
	AccountLocked(ctx context.Context, userID, reason string) (*domain.Notification, error)
	PasswordReset(ctx context.Context, userID string) (*domain.Notification, error)
	SystemMessage(ctx context.Context, userID, title, message string) (*domain.Notification, error)

	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type notificationService struct {
	notifications repository.NotificationRepository
}

func NewNotificationService(notifications repository.NotificationRepository) NotificationService {
	return &notificationService{notifications: notifications}
}

func (s *notificationService) Notify(ctx context.Context, userID string, typ domain.NotificationType, title, message, link string) (*domain.Notification, error) {
	if userID == "" {
		return nil, errors.New("notification recipient is required")
	}
	if !typ.IsValid() {
		return nil, ErrUnknownNotificationType
	}

	notification := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Link:      link,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (s *notificationService) QuizAssigned(ctx context.Context, userID, quizTitle, className, link string) (*domain.Notification, error) {
	return s.Notify(ctx, userID, domain.NotificationQuizAssigned,
		"New quiz assigned",
		fmt.Sprintf("A new quiz %q has been posted for %s.", quizTitle, className),
		link)
}

func (s *notificationService) QuizReminder(ctx context.Context, userID, quizTitle, link string) (*domain.Notification, error) {
	return s.Notify(ctx, userID, domain.NotificationQuizReminder,
		"Quiz reminder",
		fmt.Sprintf("Don't forget to take the quiz %q.", quizTitle),
		link)
}

func (s *notificationService) DeadlineApproaching(ctx context.Context, userID, quizTitle string, dueAt time.Time, link string) (*domain.Notification, error) {
	return s.Notify(ctx, userID, domain.NotificationDeadlineApproaching,
		"Deadline approaching",
		fmt.Sprintf("The quiz %q is due %s.", quizTitle, dueAt.Format("Mon, 02 Jan 2006 15:04 MST")),
		link)
}

func (s *notificationService) QuizResult(ctx context.Context, userID, quizTitle string, score, total int, link string) (*domain.Notification, error) {
	return s.Notify(ctx, userID, domain.NotificationQuizResult,
		"Quiz result available",
		fmt.Sprintf("You scored %d/%d on %q.", score, total, quizTitle),
		link)
}

func (s *notificationService) AccountLocked(ctx context.Context, userID, reason string) (*domain.Notification, error) {
	return s.Notify(ctx, userID, domain.NotificationAccountLocked,
		"Account locked",
		fmt.Sprintf("Your account has been locked: %s. Contact an administrator.", reason),
		"")
}

func (s *notificationService) PasswordReset(ctx context.Context, userID string) (*domain.Notification, error) {
	return s.Notify(ctx, userID, domain.NotificationPasswordReset,
		"Password reset",
		"Your password has been reset. If this wasn't you, contact an administrator.",
		"")
}

func (s *notificationService) SystemMessage(ctx context.Context, userID, title, message string) (*domain.Notification, error) {
	return s.Notify(ctx, userID, domain.NotificationSystemMessage, title, message, "")
}

func (s *notificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, unreadOnly)
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) error {
	return s.notifications.MarkRead(ctx, id, userID)
}
