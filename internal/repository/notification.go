package repository

import (
	"context"

	"quizdesk/internal/domain"
)

// NotificationRepository defines persistence operations for Notification
// records. Create is a single-row insert; no cross-record ordering is
// guaranteed or required.
type NotificationRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, notification *domain.Notification) error
	Get(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}
