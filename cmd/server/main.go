package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quizdesk/internal/auth"
	"quizdesk/internal/config"
	apphttp "quizdesk/internal/http"
	"quizdesk/internal/repository/sqlite"
	"quizdesk/internal/scheduler"
	"quizdesk/internal/service"
	"quizdesk/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	quizRepo := sqlite.NewQuizRepository(db)
	resultRepo := sqlite.NewResultRepository(db)
	notificationRepo := sqlite.NewNotificationRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := quizRepo.Init(ctx); err != nil {
		logger.Fatalf("init quiz repository: %v", err)
	}
	if err := resultRepo.Init(ctx); err != nil {
		logger.Fatalf("init result repository: %v", err)
	}
	if err := notificationRepo.Init(ctx); err != nil {
		logger.Fatalf("init notification repository: %v", err)
	}

	hasher := auth.NewPasswordHasher()
	codec := auth.NewTokenCodec(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	guard := auth.NewGuard(codec)

	notificationService := service.NewNotificationService(notificationRepo)
	userService := service.NewUserService(userRepo, hasher, notificationService, cfg.Auth.MaxLoginAttempts, logger)
	quizService := service.NewQuizService(quizRepo, resultRepo, userRepo, notificationService, logger)

	var storageSvc storage.Service
	if cfg.Storage.Bucket != "" {
		storageSvc, err = buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
	} else {
		logger.Warn("storage bucket not configured, avatar uploads disabled")
	}

	reminder := scheduler.NewReminder(scheduler.Config{
		Interval: time.Duration(cfg.Reminder.IntervalMinutes) * time.Minute,
		Window:   time.Duration(cfg.Reminder.WindowHours) * time.Hour,
		Logger:   logger,
	}, quizRepo, resultRepo, userRepo, notificationService)

	if err := reminder.Start(ctx); err != nil {
		logger.Fatalf("start reminder scheduler: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		userService,
		quizService,
		notificationService,
		guard,
		codec,
		storageSvc,
		cfg.Storage.Bucket,
		cfg.Storage.KeyPrefix,
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	reminder.Shutdown()

	logger.Info("bye")
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
