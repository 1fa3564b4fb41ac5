package repository

import (
	"context"

	"quizdesk/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	ListByClass(ctx context.Context, className string, role domain.Role) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id, fullName, email string) error
	UpdateAvatar(ctx context.Context, id, avatarKey string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateLoginState(ctx context.Context, id string, failedLogins int, locked bool) error
}
