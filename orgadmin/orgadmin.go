// Package orgadmin wires the organization membership service into an
// embeddable HTTP handler.
//
// Setup:
//
//  1. Apply the schema with orgadmin.Migrate or your own migration tool
//  2. Create an instance and mount its handler
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/vault?sslmode=disable")
//
//	admin, err := orgadmin.New(orgadmin.Config{
//	    DB:                db,
//	    JWTSecret:         "your-secret-key-at-least-32-chars",
//	    InviteTokenSecret: "another-secret-at-least-32-chars",
//	    WebVaultURL:       "https://vault.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if the schema is missing
//	}
//	defer admin.Close()
//
//	http.ListenAndServe(":8080", admin.Handler())
package orgadmin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-org-admin/internal/cache"
	"github.com/tendant/simple-org-admin/internal/config"
	"github.com/tendant/simple-org-admin/internal/events"
	httpserver "github.com/tendant/simple-org-admin/internal/http"
	"github.com/tendant/simple-org-admin/internal/http/middleware"
	"github.com/tendant/simple-org-admin/internal/notification"
	"github.com/tendant/simple-org-admin/internal/push"
	"github.com/tendant/simple-org-admin/internal/scheduler"
	"github.com/tendant/simple-org-admin/pkg/auth"
	"github.com/tendant/simple-org-admin/pkg/billing"
	"github.com/tendant/simple-org-admin/pkg/membership"
	"github.com/tendant/simple-org-admin/pkg/policy"
	"github.com/tendant/simple-org-admin/pkg/repository"
)

// MailSender delivers rendered notification emails.
type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Config holds the configuration for an instance.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret verifies access tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the expected issuer claim; empty skips the check.
	JWTIssuer string

	// AccessTokenTTL is the lifetime of tokens issued by Tokens() (default: 15 minutes).
	AccessTokenTTL time.Duration

	// InviteTokenSecret signs invite links (required, min 32 chars).
	InviteTokenSecret string

	// LegacyInviteTokenSecret accepts invite links in the legacy format (optional).
	LegacyInviteTokenSecret string

	// InviteTokenTTL is how long invite links stay valid (default: 5 days).
	InviteTokenTTL time.Duration

	// WebVaultURL is the base of links in emails.
	WebVaultURL string

	// TwoFactorEncryptionKey enables two-step login enrollment (optional, 32 bytes).
	TwoFactorEncryptionKey []byte

	// UsePolicyRequirements evaluates policies through requirements.
	UsePolicyRequirements bool

	// Mail delivers emails (default: log only).
	Mail MailSender

	// Redis caches organization abilities (optional).
	Redis           *redis.Client
	AbilityCacheTTL time.Duration

	// KafkaBrokers and KafkaEventsTopic stream audit events (optional).
	KafkaBrokers     []string
	KafkaEventsTopic string

	// PaymentGateway adjusts subscriptions (default: log only).
	PaymentGateway billing.PaymentGateway

	// AllowedOrigins restricts websocket origins; empty allows any.
	AllowedOrigins []string

	RateLimit       config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// OrgAdmin is a wired organization membership service.
type OrgAdmin struct {
	config    Config
	tokens    *auth.AccessTokenService
	commands  *membership.Commands
	twoFactor *auth.TwoFactorService
	sweep     *scheduler.ComplianceSweep
	hub       *push.Hub
	publisher events.Publisher
	handler   http.Handler
}

// New creates a new instance with the given configuration.
// Returns an error if required database tables don't exist.
func New(cfg Config) (*OrgAdmin, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	db := cfg.DB

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	orgsRepo := repository.NewOrganizationsRepository(db)
	orgUsersRepo := repository.NewOrganizationUsersRepository(db)
	providerUsersRepo := repository.NewProviderUsersRepository(db)
	policiesRepo := repository.NewPoliciesRepository(db)
	eventsRepo := repository.NewEventsRepository(db)
	devicesRepo := repository.NewDevicesRepository(db)
	secretsRepo := repository.NewTwoFactorSecretsRepository(db)

	tokens := auth.NewAccessTokenService(auth.AccessTokenConfig{
		JWTSecret: []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
		TTL:       cfg.AccessTokenTTL,
	})
	inviteTokens, err := auth.NewInviteTokenService(auth.InviteTokenConfig{
		Secret:       []byte(cfg.InviteTokenSecret),
		LegacySecret: []byte(cfg.LegacyInviteTokenSecret),
		TTL:          cfg.InviteTokenTTL,
		Issuer:       cfg.JWTIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("orgadmin: %w", err)
	}
	twoFactor := auth.NewTwoFactorService(auth.TwoFactorConfig{
		Issuer:        cfg.JWTIssuer,
		EncryptionKey: cfg.TwoFactorEncryptionKey,
	}, secretsRepo, usersRepo)

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic)
		logger.Info("event streaming enabled", "topic", cfg.KafkaEventsTopic)
	}

	var sender notification.Sender = notification.NewLogSender(logger)
	if cfg.Mail != nil {
		sender = cfg.Mail
	}
	mail := notification.NewMailService(notification.MailConfig{
		WebVaultURL: cfg.WebVaultURL,
		InviteTTL:   humanDuration(cfg.InviteTokenTTL),
	}, sender, logger)

	emailPolicy := auth.EmailPolicy{
		Strict:          cfg.Validation.StrictEmailValidation,
		BlockDisposable: cfg.Validation.BlockDisposableEmail,
	}

	hub := push.NewHub(logger)
	devices := push.NewDeviceService(devicesRepo, logger)

	commands := membership.NewCommands(membership.Deps{
		OrganizationUsers:    orgUsersRepo,
		Users:                usersRepo,
		Organizations:        orgsRepo,
		ProviderUsers:        providerUsersRepo,
		Policies:             policy.NewService(policiesRepo),
		TwoFactorRequirement: policy.NewTwoFactorRequirementQuery(policiesRepo, cfg.UsePolicyRequirements),
		TwoFactor:            twoFactor,
		Cache:                cache.NewApplicationCache(cfg.Redis, orgsRepo, cfg.AbilityCacheTTL, logger),
		Events:               events.NewService(eventsRepo, publisher, logger),
		ReferenceEvents:      events.NewReferenceService(publisher, logger),
		Mail:                 mail,
		Push:                 hub,
		Devices:              devices,
		Billing:              billing.NewService(billing.DefaultPlanCatalog(), cfg.PaymentGateway, orgsRepo, orgUsersRepo, logger),
		Tx:                   repository.NewTxManager(db),
		InviteTokenIssuer:    inviteTokens,
		InviteTokenValidator: inviteTokens,
		EmailPolicy:          &emailPolicy,
		Logger:               logger,
	})

	sweep := scheduler.NewComplianceSweep(
		policiesRepo,
		orgUsersRepo,
		policy.NewTwoFactorRequirementQuery(policiesRepo, cfg.UsePolicyRequirements),
		commands.RevokeNonCompliant,
		logger,
	)

	routerCfg := httpserver.RouterConfig{
		Logger:            logger,
		Tokens:            tokens,
		Commands:          commands,
		OrganizationUsers: orgUsersRepo,
		ProviderUsers:     providerUsersRepo,
		Users:             usersRepo,
		TwoFactorEnforcer: sweep,
		Devices:           devices,
		PushHub:           hub,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitConfig:   cfg.RateLimit,
		SecurityHeaders:   cfg.SecurityHeaders,
		Validation:        cfg.Validation,
	}
	if len(cfg.TwoFactorEncryptionKey) > 0 {
		routerCfg.TwoFactor = twoFactor
	}

	return &OrgAdmin{
		config:    cfg,
		tokens:    tokens,
		commands:  commands,
		twoFactor: twoFactor,
		sweep:     sweep,
		hub:       hub,
		publisher: publisher,
		handler:   httpserver.NewRouter(routerCfg),
	}, nil
}

// Handler returns the HTTP handler serving every route.
func (o *OrgAdmin) Handler() http.Handler {
	return o.handler
}

// Commands returns the membership commands for direct use.
func (o *OrgAdmin) Commands() *membership.Commands {
	return o.commands
}

// Tokens returns the access token service. Hosts that authenticate users
// themselves issue tokens with it.
func (o *OrgAdmin) Tokens() *auth.AccessTokenService {
	return o.tokens
}

// ComplianceSweep returns the two-step login policy sweep, for scheduling.
func (o *OrgAdmin) ComplianceSweep() *scheduler.ComplianceSweep {
	return o.sweep
}

// AuthMiddleware returns middleware that validates access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(admin.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (o *OrgAdmin) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(o.tokens)
}

// GetUserIDFromContext extracts the user ID from a context.
// Use after AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

// Close disconnects push clients and flushes the event stream.
func (o *OrgAdmin) Close() error {
	o.hub.Close()
	if o.publisher != nil {
		return o.publisher.Close()
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	return repository.Migrate(db, logger)
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("orgadmin: DB is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("orgadmin: JWTSecret must be at least 32 characters")
	}
	if len(cfg.InviteTokenSecret) < 32 {
		return errors.New("orgadmin: InviteTokenSecret must be at least 32 characters")
	}
	if n := len(cfg.TwoFactorEncryptionKey); n != 0 && n != 32 {
		return errors.New("orgadmin: TwoFactorEncryptionKey must be 32 bytes")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaEventsTopic == "" {
		return errors.New("orgadmin: KafkaEventsTopic is required when KafkaBrokers is set")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.InviteTokenTTL == 0 {
		cfg.InviteTokenTTL = 5 * 24 * time.Hour
	}
	if cfg.AbilityCacheTTL == 0 {
		cfg.AbilityCacheTTL = 5 * time.Minute
	}
	if cfg.Validation.MaxRequestBodySize == 0 {
		cfg.Validation.MaxRequestBodySize = 1 << 20
	}
	if cfg.Validation.MaxBulkItems == 0 {
		cfg.Validation.MaxBulkItems = 500
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.PaymentGateway == nil {
		cfg.PaymentGateway = billing.NewLoggingGateway(cfg.Logger)
	}
}

// humanDuration renders invite lifetimes for email copy.
func humanDuration(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	switch {
	case days == 1:
		return "1 day"
	case days > 1:
		return fmt.Sprintf("%d days", days)
	default:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"users", "organizations", "organization_users", "policies", "events", "two_factor_secrets"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("orgadmin: missing table '%s' - run migrations first", table)
		}
		if err != nil {
			return fmt.Errorf("orgadmin: failed to check schema: %w", err)
		}
	}

	return nil
}
