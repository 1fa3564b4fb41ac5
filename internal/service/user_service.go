package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizdesk/internal/auth"
	"quizdesk/internal/domain"
	"quizdesk/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account has been locked after repeated failures.
	ErrAccountLocked = errors.New("account locked")
	// ErrUserAlreadyExists is returned when registering an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, username, password, fullName, email string, role domain.Role, className string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Roster(ctx context.Context, className string) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id, fullName, email string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, id, avatarKey string) error
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
	ResetPassword(ctx context.Context, id, newPassword string) error
}

type userService struct {
	users            repository.UserRepository
	hasher           auth.PasswordHasher
	notifications    NotificationService
	maxLoginAttempts int
	logger           *logrus.Logger
}

func NewUserService(users repository.UserRepository, hasher auth.PasswordHasher, notifications NotificationService, maxLoginAttempts int, logger *logrus.Logger) UserService {
	if logger == nil {
		logger = logrus.New()
	}
	return &userService{
		users:            users,
		hasher:           hasher,
		notifications:    notifications,
		maxLoginAttempts: maxLoginAttempts,
		logger:           logger,
	}
}

func (s *userService) Register(ctx context.Context, username, password, fullName, email string, role domain.Role, className string) (*domain.User, error) {
	username = strings.TrimSpace(username)

	if username == "" {
		return nil, errors.New("username is required")
	}
	// Passwords are hashed exactly as supplied; only reject blank ones.
	if strings.TrimSpace(password) == "" {
		return nil, errors.New("password is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	if !role.IsValid() {
		return nil, errors.New("invalid role")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		FullName:     strings.TrimSpace(fullName),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         role,
		ClassName:    strings.TrimSpace(className),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.Locked {
		return nil, ErrAccountLocked
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.recordFailedLogin(ctx, user)
		return nil, ErrInvalidCredentials
	}

	if user.FailedLogins > 0 {
		if err := s.users.UpdateLoginState(ctx, user.ID, 0, false); err != nil {
			s.logger.Warnf("reset failed login counter for %s: %v", user.ID, err)
		}
	}

	return sanitizeUser(user), nil
}

// recordFailedLogin bumps the failure counter and locks the account once
// the threshold is reached. The lock fan-out is best effort.
func (s *userService) recordFailedLogin(ctx context.Context, user *domain.User) {
	failed := user.FailedLogins + 1
	lock := s.maxLoginAttempts > 0 && failed >= s.maxLoginAttempts

	if err := s.users.UpdateLoginState(ctx, user.ID, failed, lock); err != nil {
		s.logger.Warnf("record failed login for %s: %v", user.ID, err)
		return
	}
	if lock {
		s.logger.Infof("account %s locked after %d failed logins", user.Username, failed)
		if _, err := s.notifications.AccountLocked(ctx, user.ID, "too many failed login attempts"); err != nil {
			s.logger.Warnf("notify account locked: %v", err)
		}
	}
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	return sanitizeUsers(users), nil
}

func (s *userService) Roster(ctx context.Context, className string) ([]domain.User, error) {
	users, err := s.users.ListByClass(ctx, className, domain.RoleStudent)
	if err != nil {
		return nil, err
	}
	return sanitizeUsers(users), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id, fullName, email string) (*domain.User, error) {
	if err := s.users.UpdateProfile(ctx, id, strings.TrimSpace(fullName), strings.TrimSpace(email)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *userService) UpdateAvatar(ctx context.Context, id, avatarKey string) error {
	if err := s.users.UpdateAvatar(ctx, id, avatarKey); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// ChangePassword verifies the current password before hashing and storing
// the new one. A store failure leaves the old password in effect and is
// surfaced to the caller.
func (s *userService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if len(strings.TrimSpace(newPassword)) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, id, hash); err != nil {
		return fmt.Errorf("store new password: %w", err)
	}
	return nil
}

// ResetPassword sets a new password without knowing the old one (admin
// operation) and clears any lockout. The reset fan-out is best effort.
func (s *userService) ResetPassword(ctx context.Context, id, newPassword string) error {
	if len(strings.TrimSpace(newPassword)) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, id, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("store new password: %w", err)
	}
	if err := s.users.UpdateLoginState(ctx, id, 0, false); err != nil {
		s.logger.Warnf("clear lockout for %s: %v", id, err)
	}

	if _, err := s.notifications.PasswordReset(ctx, id); err != nil {
		s.logger.Warnf("notify password reset: %v", err)
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}

func sanitizeUsers(users []domain.User) []domain.User {
	clean := make([]domain.User, len(users))
	for i := range users {
		clean[i] = *sanitizeUser(&users[i])
	}
	return clean
}
