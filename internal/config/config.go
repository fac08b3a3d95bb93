package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBMaxIdleConns int
	RunMigrations  bool

	// JWT
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	// Organization invites
	InviteTokenSecret       string
	LegacyInviteTokenSecret string
	InviteTokenTTL          time.Duration
	WebVaultURL             string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// SendGrid
	SendGridAPIKey string

	// Redis
	RedisURL        string
	AbilityCacheTTL time.Duration

	// Kafka
	KafkaBrokers     []string
	KafkaEventsTopic string

	// Two-step login
	TwoFactorEncryptionKey string

	// Compliance sweep, cron syntax; "off" disables it
	ComplianceSweepSchedule string

	// Feature flags
	UsePolicyRequirements bool

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
}

// RateLimitConfig holds per-route-group request limits.
type RateLimitConfig struct {
	Enabled                  bool
	AdminRequestsPerMinute   int
	AdminWindowMinutes       int
	AcceptRequestsPerWindow  int
	AcceptWindowMinutes      int
	ProfileRequestsPerMinute int
	ProfileWindowMinutes     int
}

// SecurityHeadersConfig holds response security header values.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// ValidationConfig holds request validation settings.
type ValidationConfig struct {
	MaxRequestBodySize    int64
	MaxBulkItems          int
	StrictEmailValidation bool
	BlockDisposableEmail  bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database defaults (matches podman setup: make postgres-start)
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnvInt("DB_PORT", 25432),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "simple_org_admin"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		RunMigrations:  getEnvBool("RUN_MIGRATIONS", true),

		// JWT defaults
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "simple-org-admin"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),

		InviteTokenSecret:       getEnv("INVITE_TOKEN_SECRET", ""),
		LegacyInviteTokenSecret: getEnv("LEGACY_INVITE_TOKEN_SECRET", ""),
		InviteTokenTTL:          getEnvDuration("INVITE_TOKEN_TTL", 5*24*time.Hour),
		WebVaultURL:             getEnv("WEB_VAULT_URL", "http://localhost:8080"),

		// SMTP (optional)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Organization Admin"),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		RedisURL:        getEnv("REDIS_URL", ""),
		AbilityCacheTTL: getEnvDuration("ABILITY_CACHE_TTL", 10*time.Minute),

		KafkaBrokers:     getEnvList("KAFKA_BROKERS"),
		KafkaEventsTopic: getEnv("KAFKA_EVENTS_TOPIC", "organization-user-events"),

		TwoFactorEncryptionKey: getEnv("TWO_FACTOR_ENCRYPTION_KEY", ""),

		ComplianceSweepSchedule: getEnv("COMPLIANCE_SWEEP_SCHEDULE", "@every 1h"),

		UsePolicyRequirements: getEnvBool("FEATURE_POLICY_REQUIREMENTS", false),

		RateLimit: RateLimitConfig{
			Enabled:                  getEnvBool("RATE_LIMIT_ENABLED", true),
			AdminRequestsPerMinute:   getEnvInt("RATE_LIMIT_ADMIN_REQUESTS", 60),
			AdminWindowMinutes:       getEnvInt("RATE_LIMIT_ADMIN_WINDOW_MINUTES", 1),
			AcceptRequestsPerWindow:  getEnvInt("RATE_LIMIT_ACCEPT_REQUESTS", 10),
			AcceptWindowMinutes:      getEnvInt("RATE_LIMIT_ACCEPT_WINDOW_MINUTES", 15),
			ProfileRequestsPerMinute: getEnvInt("RATE_LIMIT_PROFILE_REQUESTS", 30),
			ProfileWindowMinutes:     getEnvInt("RATE_LIMIT_PROFILE_WINDOW_MINUTES", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", ""),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize:    int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
			MaxBulkItems:          getEnvInt("MAX_BULK_ITEMS", 500),
			StrictEmailValidation: getEnvBool("STRICT_EMAIL_VALIDATION", true),
			BlockDisposableEmail:  getEnvBool("BLOCK_DISPOSABLE_EMAIL", false),
		},
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.InviteTokenSecret == "" {
		return nil, fmt.Errorf("INVITE_TOKEN_SECRET is required")
	}

	return cfg, nil
}

// DatabaseURL returns the Postgres connection string.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// HasSMTP returns true if SMTP is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// HasSendGrid returns true if SendGrid is configured. It takes precedence over SMTP.
func (c *Config) HasSendGrid() bool {
	return c.SendGridAPIKey != "" && c.SMTPFrom != ""
}

// HasRedis returns true if the ability cache should use Redis.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// HasKafka returns true if events should also be published to Kafka.
func (c *Config) HasKafka() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaEventsTopic != ""
}

// HasTwoFactor returns true if two-step login enrollment is configured.
func (c *Config) HasTwoFactor() bool {
	return c.TwoFactorEncryptionKey != ""
}

// HasComplianceSweep returns true if the scheduled two-step login sweep is enabled.
func (c *Config) HasComplianceSweep() bool {
	return c.ComplianceSweepSchedule != "" && c.ComplianceSweepSchedule != "off"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
