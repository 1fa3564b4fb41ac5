package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"quizdesk/internal/domain"
	"quizdesk/internal/repository"
)

// In-memory repositories used by the service tests.

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User

	failUpdatePassword bool
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]domain.User{}}
}

func (r *memUserRepo) Init(context.Context) error { return nil }

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrAlreadyExists
		}
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copy := u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := u
	return &copy, nil
}

func (r *memUserRepo) List(context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []domain.User
	for _, u := range r.users {
		users = append(users, u)
	}
	return users, nil
}

func (r *memUserRepo) ListByClass(_ context.Context, className string, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []domain.User
	for _, u := range r.users {
		if u.ClassName == className && u.Role == role {
			users = append(users, u)
		}
	}
	return users, nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, id, fullName, email string) error {
	return r.mutate(id, func(u *domain.User) {
		u.FullName = fullName
		u.Email = email
	})
}

func (r *memUserRepo) UpdateAvatar(_ context.Context, id, avatarKey string) error {
	return r.mutate(id, func(u *domain.User) { u.AvatarKey = avatarKey })
}

func (r *memUserRepo) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	if r.failUpdatePassword {
		return errors.New("disk full")
	}
	return r.mutate(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (r *memUserRepo) UpdateLoginState(_ context.Context, id string, failedLogins int, locked bool) error {
	return r.mutate(id, func(u *domain.User) {
		u.FailedLogins = failedLogins
		u.Locked = locked
	})
}

func (r *memUserRepo) mutate(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

type memQuizRepo struct {
	mu      sync.Mutex
	quizzes map[string]domain.Quiz
}

func newMemQuizRepo() *memQuizRepo {
	return &memQuizRepo{quizzes: map[string]domain.Quiz{}}
}

func (r *memQuizRepo) Init(context.Context) error { return nil }

func (r *memQuizRepo) Create(_ context.Context, quiz *domain.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz.CreatedAt = time.Now().UTC()
	quiz.UpdatedAt = quiz.CreatedAt
	r.quizzes[quiz.ID] = *quiz
	return nil
}

func (r *memQuizRepo) Get(_ context.Context, id string) (*domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := q
	return &copy, nil
}

func (r *memQuizRepo) List(context.Context) ([]domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var quizzes []domain.Quiz
	for _, q := range r.quizzes {
		quizzes = append(quizzes, q)
	}
	return quizzes, nil
}

func (r *memQuizRepo) ListByInstructor(_ context.Context, instructorID string) ([]domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var quizzes []domain.Quiz
	for _, q := range r.quizzes {
		if q.InstructorID == instructorID {
			quizzes = append(quizzes, q)
		}
	}
	return quizzes, nil
}

func (r *memQuizRepo) ListPublishedByClass(_ context.Context, className string) ([]domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var quizzes []domain.Quiz
	for _, q := range r.quizzes {
		if q.ClassName == className && q.Published {
			quizzes = append(quizzes, q)
		}
	}
	return quizzes, nil
}

func (r *memQuizRepo) ListDueForReminder(_ context.Context, from, to time.Time) ([]domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var quizzes []domain.Quiz
	for _, q := range r.quizzes {
		if q.Published && q.ReminderSentAt == nil && q.DueAt != nil &&
			q.DueAt.After(from) && !q.DueAt.After(to) {
			quizzes = append(quizzes, q)
		}
	}
	return quizzes, nil
}

func (r *memQuizRepo) Update(_ context.Context, quiz *domain.Quiz) error {
	return r.mutate(quiz.ID, func(q *domain.Quiz) {
		q.Title = quiz.Title
		q.Description = quiz.Description
		q.DueAt = quiz.DueAt
	})
}

func (r *memQuizRepo) MarkPublished(_ context.Context, id string) error {
	return r.mutate(id, func(q *domain.Quiz) { q.Published = true })
}

func (r *memQuizRepo) MarkReminderSent(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(q *domain.Quiz) { q.ReminderSentAt = &at })
}

func (r *memQuizRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.quizzes, id)
	return nil
}

func (r *memQuizRepo) mutate(id string, fn func(*domain.Quiz)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quizzes[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&q)
	q.UpdatedAt = time.Now().UTC()
	r.quizzes[id] = q
	return nil
}

type memResultRepo struct {
	mu      sync.Mutex
	results map[string]domain.QuizResult
}

func newMemResultRepo() *memResultRepo {
	return &memResultRepo{results: map[string]domain.QuizResult{}}
}

func (r *memResultRepo) Init(context.Context) error { return nil }

func (r *memResultRepo) Create(_ context.Context, result *domain.QuizResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.results {
		if existing.QuizID == result.QuizID && existing.StudentID == result.StudentID {
			return repository.ErrAlreadyExists
		}
	}
	r.results[result.ID] = *result
	return nil
}

func (r *memResultRepo) GetByQuizAndStudent(_ context.Context, quizID, studentID string) (*domain.QuizResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.QuizID == quizID && res.StudentID == studentID {
			copy := res
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memResultRepo) ListByQuiz(_ context.Context, quizID string) ([]domain.QuizResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var results []domain.QuizResult
	for _, res := range r.results {
		if res.QuizID == quizID {
			results = append(results, res)
		}
	}
	return results, nil
}

func (r *memResultRepo) ListByStudent(_ context.Context, studentID string) ([]domain.QuizResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var results []domain.QuizResult
	for _, res := range r.results {
		if res.StudentID == studentID {
			results = append(results, res)
		}
	}
	return results, nil
}

type memNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]domain.Notification

	failCreate bool
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{notifications: map[string]domain.Notification{}}
}

func (r *memNotificationRepo) Init(context.Context) error { return nil }

func (r *memNotificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.New("store unavailable")
	}
	r.notifications[notification.ID] = *notification
	return nil
}

func (r *memNotificationRepo) Get(_ context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := n
	return &copy, nil
}

func (r *memNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var notifications []domain.Notification
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	n.Read = true
	r.notifications[id] = n
	return nil
}

func (r *memNotificationRepo) setFailCreate(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failCreate = fail
}
