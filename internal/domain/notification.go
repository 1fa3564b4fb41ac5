package domain

import "time"

// NotificationType is the closed set of event kinds a notification can carry.
type NotificationType string

const (
	NotificationQuizAssigned        NotificationType = "QUIZ_ASSIGNED"
	NotificationQuizReminder        NotificationType = "QUIZ_REMINDER"
	NotificationDeadlineApproaching NotificationType = "DEADLINE_APPROACHING"
	NotificationQuizResult          NotificationType = "QUIZ_RESULT"
	NotificationAccountLocked       NotificationType = "ACCOUNT_LOCKED"
	NotificationPasswordReset       NotificationType = "PASSWORD_RESET"
	NotificationSystemMessage       NotificationType = "SYSTEM_MESSAGE"
)

// IsValid reports whether the type is one of the known notification kinds.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationQuizAssigned, NotificationQuizReminder,
		NotificationDeadlineApproaching, NotificationQuizResult,
		NotificationAccountLocked, NotificationPasswordReset,
		NotificationSystemMessage:
		return true
	default:
		return false
	}
}

// Notification is a persisted message addressed to exactly one user. Read
// starts false and only ever transitions to true.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	Link      string
	Read      bool
	CreatedAt time.Time
}
