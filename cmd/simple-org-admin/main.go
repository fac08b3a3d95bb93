package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-org-admin/internal/cache"
	"github.com/tendant/simple-org-admin/internal/config"
	"github.com/tendant/simple-org-admin/internal/notification"
	"github.com/tendant/simple-org-admin/internal/scheduler"
	"github.com/tendant/simple-org-admin/orgadmin"
	"github.com/tendant/simple-org-admin/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	db, err := repository.NewDB(startCtx, repository.Config{
		URL:             cfg.DatabaseURL(),
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	if cfg.RunMigrations {
		if err := orgadmin.Migrate(db, logger); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// Optional infrastructure
	var redisClient *redis.Client
	if cfg.HasRedis() {
		redisClient, err = cache.NewRedisClient(startCtx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("ability cache enabled")
	}

	var twoFactorKey []byte
	if cfg.HasTwoFactor() {
		twoFactorKey, err = hex.DecodeString(cfg.TwoFactorEncryptionKey)
		if err != nil || len(twoFactorKey) != 32 {
			logger.Error("TWO_FACTOR_ENCRYPTION_KEY must be 64-char hex (32 bytes)")
			os.Exit(1)
		}
		logger.Info("two-step login enrollment enabled")
	}

	var kafkaBrokers []string
	if cfg.HasKafka() {
		kafkaBrokers = cfg.KafkaBrokers
	}

	admin, err := orgadmin.New(orgadmin.Config{
		DB:                      db,
		JWTSecret:               cfg.JWTSecret,
		JWTIssuer:               cfg.JWTIssuer,
		AccessTokenTTL:          cfg.AccessTokenTTL,
		InviteTokenSecret:       cfg.InviteTokenSecret,
		LegacyInviteTokenSecret: cfg.LegacyInviteTokenSecret,
		InviteTokenTTL:          cfg.InviteTokenTTL,
		WebVaultURL:             cfg.WebVaultURL,
		TwoFactorEncryptionKey:  twoFactorKey,
		UsePolicyRequirements:   cfg.UsePolicyRequirements,
		Mail:                    mailSender(cfg, logger),
		Redis:                   redisClient,
		AbilityCacheTTL:         cfg.AbilityCacheTTL,
		KafkaBrokers:            kafkaBrokers,
		KafkaEventsTopic:        cfg.KafkaEventsTopic,
		RateLimit:               cfg.RateLimit,
		SecurityHeaders:         cfg.SecurityHeaders,
		Validation:              cfg.Validation,
		Logger:                  logger,
	})
	if err != nil {
		logger.Error("failed to initialize service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := admin.Close(); err != nil {
			logger.Error("failed to close service", "error", err)
		}
	}()

	// Start the two-step login compliance sweep
	var sweeps *scheduler.Scheduler
	if cfg.HasComplianceSweep() {
		sweeps = scheduler.NewScheduler(admin.ComplianceSweep(), 10*time.Minute, logger)
		if err := sweeps.Start(cfg.ComplianceSweepSchedule); err != nil {
			logger.Error("failed to start compliance sweep", "error", err)
			os.Exit(1)
		}
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      admin.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	if sweeps != nil {
		sweeps.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

// mailSender prefers SendGrid, then SMTP, then logging.
func mailSender(cfg *config.Config, logger *slog.Logger) orgadmin.MailSender {
	switch {
	case cfg.HasSendGrid():
		logger.Info("email delivery via sendgrid")
		return notification.NewSendGridSender(cfg.SendGridAPIKey, cfg.SMTPFrom, cfg.SMTPFromName)
	case cfg.HasSMTP():
		logger.Info("email delivery via smtp")
		return notification.NewSMTPSender(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
	default:
		return nil
	}
}
