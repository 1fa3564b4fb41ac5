package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"quizdesk/internal/domain"
	"quizdesk/internal/repository"
	"quizdesk/internal/service"
)

// Reminder periodically scans for published quizzes whose deadline falls
// inside the reminder window and fans out DEADLINE_APPROACHING notifications
// to every rostered student who has not submitted yet. Each quiz is reminded
// at most once; a failed notification write is logged and skipped, never
// retried within the same sweep.
type Reminder interface {
	Start(ctx context.Context) error
	Shutdown()
	Sweep(ctx context.Context) error
}

type Config struct {
	Interval      time.Duration
	Window        time.Duration
	MaxConcurrent int
	Logger        *logrus.Logger
}

type reminder struct {
	cfg           Config
	quizzes       repository.QuizRepository
	results       repository.ResultRepository
	users         repository.UserRepository
	notifications service.NotificationService

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewReminder(cfg Config, quizzes repository.QuizRepository, results repository.ResultRepository, users repository.UserRepository, notifications service.NotificationService) Reminder {
	if cfg.Interval == 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Window == 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &reminder{
		cfg:           cfg,
		quizzes:       quizzes,
		results:       results,
		users:         users,
		notifications: notifications,
		sem:           make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (r *reminder) Start(ctx context.Context) error {
	if r.cancel != nil {
		return errors.New("reminder already started")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				if err := r.Sweep(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
					r.cfg.Logger.Warnf("reminder sweep: %v", err)
				}
			}
		}
	}()

	r.cfg.Logger.Infof("reminder scheduler started, interval %s, window %s", r.cfg.Interval, r.cfg.Window)
	return nil
}

func (r *reminder) Shutdown() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.cfg.Logger.Info("reminder scheduler stopped")
}

// Sweep runs a single reminder pass. Exposed for tests and for an eager
// pass at startup.
func (r *reminder) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := r.quizzes.ListDueForReminder(ctx, now, now.Add(r.cfg.Window))
	if err != nil {
		return err
	}

	for i := range due {
		quiz := due[i]
		// marked before the fan-out so an overlapping sweep cannot
		// double-send
		if err := r.quizzes.MarkReminderSent(ctx, quiz.ID, now); err != nil {
			r.cfg.Logger.WithField("quiz_id", quiz.ID).Warnf("mark reminder sent: %v", err)
			continue
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			select {
			case <-ctx.Done():
				return
			case r.sem <- struct{}{}:
				defer func() { <-r.sem }()
				r.remindQuiz(ctx, quiz)
			}
		}()
	}
	return nil
}

func (r *reminder) remindQuiz(ctx context.Context, quiz domain.Quiz) {
	logger := r.cfg.Logger.WithField("quiz_id", quiz.ID)

	roster, err := r.users.ListByClass(ctx, quiz.ClassName, domain.RoleStudent)
	if err != nil {
		logger.Errorf("roster lookup: %v", err)
		return
	}

	reminded := 0
	for i := range roster {
		student := roster[i]
		if _, err := r.results.GetByQuizAndStudent(ctx, quiz.ID, student.ID); err == nil {
			continue // already submitted
		} else if !errors.Is(err, repository.ErrNotFound) {
			logger.Warnf("result lookup for %s: %v", student.ID, err)
			continue
		}

		if _, err := r.notifications.DeadlineApproaching(ctx, student.ID, quiz.Title, *quiz.DueAt, "/quizzes/"+quiz.ID); err != nil {
			logger.Warnf("notify %s: %v", student.ID, err)
			continue
		}
		reminded++
	}

	logger.Infof("deadline reminders sent to %d of %d students", reminded, len(roster))
}

var _ Reminder = (*reminder)(nil)
