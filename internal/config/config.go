package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Billing      BillingConfig
	Storage      StorageConfig
	Kafka        KafkaConfig
	Cron         CronConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowOrigins      string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// DashboardCacheSeconds caches dashboard stats; zero disables it.
	DashboardCacheSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret                  string
	AccessTokenTTLMinutes      int
	RefreshTokenTTLHours       int
	PasswordResetTTLMinutes    int
	EmailVerificationTTLHours  int
	BcryptCost                 int
	LoginMaxAttempts           int
	LoginWindowMinutes         int
	BootstrapAdminEmail        string
	BootstrapAdminPassword     string
	BootstrapAdminFullName     string
	BootstrapAdminEmployeeCode string
}

// BillingConfig holds invoice defaults. VAT is in basis points.
type BillingConfig struct {
	VATBasisPoints int
	Currency       string
	DefaultDueDays int
}

// StorageConfig describes the document blob store. An empty bucket keeps
// documents in memory.
type StorageConfig struct {
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3UsePathStyle   bool
	S3AccessKey      string
	S3SecretKey      string
	MaxUploadBytes   int64
	AllowedMimeTypes []string
}

// KafkaConfig configures the optional domain event export.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// CronConfig holds schedules for background jobs.
type CronConfig struct {
	TokenCleanupSchedule   string
	OverdueInvoiceSchedule string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "request-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSAllowOrigins:      getEnv("HTTP_CORS_ALLOW_ORIGINS", "*"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,

			DashboardCacheSeconds: getEnvAsInt("REDIS_DASHBOARD_CACHE_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Auth: AuthConfig{
			JWTSecret:                  getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:      getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			RefreshTokenTTLHours:       getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 24*7),
			PasswordResetTTLMinutes:    getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 30),
			EmailVerificationTTLHours:  getEnvAsInt("AUTH_EMAIL_VERIFICATION_TTL_HOURS", 48),
			BcryptCost:                 getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LoginMaxAttempts:           getEnvAsInt("AUTH_LOGIN_MAX_ATTEMPTS", 5),
			LoginWindowMinutes:         getEnvAsInt("AUTH_LOGIN_WINDOW_MINUTES", 15),
			BootstrapAdminEmail:        os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPassword:     os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
			BootstrapAdminFullName:     getEnv("AUTH_BOOTSTRAP_ADMIN_NAME", "System Administrator"),
			BootstrapAdminEmployeeCode: getEnv("AUTH_BOOTSTRAP_ADMIN_CODE", "EMP-0001"),
		},
		Billing: BillingConfig{
			VATBasisPoints: getEnvAsInt("BILLING_VAT_BASIS_POINTS", 1500),
			Currency:       getEnv("BILLING_CURRENCY", "SAR"),
			DefaultDueDays: getEnvAsInt("BILLING_DEFAULT_DUE_DAYS", 30),
		},
		Storage: StorageConfig{
			S3Bucket:         os.Getenv("STORAGE_S3_BUCKET"),
			S3Region:         getEnv("STORAGE_S3_REGION", "us-east-1"),
			S3Endpoint:       os.Getenv("STORAGE_S3_ENDPOINT"),
			S3UsePathStyle:   getEnvAsBool("STORAGE_S3_USE_PATH_STYLE", false),
			S3AccessKey:      os.Getenv("STORAGE_S3_ACCESS_KEY"),
			S3SecretKey:      os.Getenv("STORAGE_S3_SECRET_KEY"),
			MaxUploadBytes:   int64(getEnvAsInt("STORAGE_MAX_UPLOAD_BYTES", 10<<20)),
			AllowedMimeTypes: getEnvAsList("STORAGE_ALLOWED_MIME_TYPES", []string{"application/pdf", "image/png", "image/jpeg", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"}),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "request-service.events"),
		},
		Cron: CronConfig{
			TokenCleanupSchedule:   getEnv("CRON_TOKEN_CLEANUP", "@every 1h"),
			OverdueInvoiceSchedule: getEnv("CRON_OVERDUE_INVOICES", "0 2 * * *"),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if cfg.App.Env == "production" && cfg.Auth.JWTSecret == "dev-secret" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DashboardCacheTTL returns the dashboard cache lifetime.
func (r RedisConfig) DashboardCacheTTL() time.Duration {
	return time.Duration(r.DashboardCacheSeconds) * time.Second
}

// LoginWindow returns the failed-login counting window.
func (a AuthConfig) LoginWindow() time.Duration {
	return time.Duration(a.LoginWindowMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
