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

const createNotificationsTable = `
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	link TEXT NOT NULL DEFAULT '',
	read INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
`

const createNotificationsIndex = `
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at);
`

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createNotificationsTable); err != nil {
		return fmt.Errorf("create notifications table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createNotificationsIndex); err != nil {
		return fmt.Errorf("create notifications index: %w", err)
	}
	return nil
}

func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO notifications (id, user_id, type, title, message, link, read, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		notification.ID,
		notification.UserID,
		string(notification.Type),
		notification.Title,
		notification.Message,
		notification.Link,
		notification.Read,
		notification.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

const selectNotificationColumns = `
SELECT id, user_id, type, title, message, link, read, created_at
FROM notifications`

func (r *NotificationRepository) Get(ctx context.Context, id string) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx, selectNotificationColumns+` WHERE id = ?`, id)
	return scanNotification(row)
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	query := selectNotificationColumns + ` WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *notification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flips read to true for the recipient's own notification. The
// transition is one-way; marking an already-read notification is a no-op
// success.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`,
		id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark notification read: %w", repository.ErrNotFound)
	}
	return nil
}

func scanNotification(row interface {
	Scan(dest ...any) error
}) (*domain.Notification, error) {
	var (
		notification domain.Notification
		typ          string
	)
	if err := row.Scan(
		&notification.ID,
		&notification.UserID,
		&typ,
		&notification.Title,
		&notification.Message,
		&notification.Link,
		&notification.Read,
		&notification.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	notification.Type = domain.NotificationType(typ)
	return &notification, nil
}
