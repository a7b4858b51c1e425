package config

import (
	"fmt"
	"os"
	"strconv"
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
	OTP          OTPConfig
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
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	SessionTTLMinutes      int
	BcryptCost             int
	AllowAdminSignup       bool
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// OTPConfig tunes password-recovery challenges.
type OTPConfig struct {
	Length               int
	TTLMinutes           int
	MaxAttempts          int
	MaxRequests          int
	RequestWindowMinutes int
	ResetWindowMinutes   int
}

// NotificationConfig holds delivery endpoints for OTP codes and verification notices.
type NotificationConfig struct {
	EmailFrom     string
	WebhookURL    string
	WebhookSecret string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	Workers       int
	QueueSize     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "healthcare-identity-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			SessionTTLMinutes:      getEnvAsInt("AUTH_SESSION_TTL_MINUTES", 60*24),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			AllowAdminSignup:       getEnvAsBool("AUTH_ALLOW_ADMIN_SIGNUP", false),
			BootstrapAdminEmail:    os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPassword: os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		OTP: OTPConfig{
			Length:               getEnvAsInt("OTP_LENGTH", 6),
			TTLMinutes:           getEnvAsInt("OTP_TTL_MINUTES", 10),
			MaxAttempts:          getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			MaxRequests:          getEnvAsInt("OTP_MAX_REQUESTS", 5),
			RequestWindowMinutes: getEnvAsInt("OTP_REQUEST_WINDOW_MINUTES", 60),
			ResetWindowMinutes:   getEnvAsInt("OTP_RESET_WINDOW_MINUTES", 10),
		},
		Notification: NotificationConfig{
			EmailFrom:     getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("NOTIFY_WEBHOOK_SECRET", ""),
			SMTPHost:      os.Getenv("SMTP_HOST"),
			SMTPPort:      getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:      os.Getenv("SMTP_USER"),
			SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
			TwilioSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioFrom:    os.Getenv("TWILIO_FROM_NUMBER"),
			Workers:       getEnvAsInt("NOTIFY_WORKERS", 2),
			QueueSize:     getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("invalid OTP_LENGTH %d: must be between 4 and 10", c.OTP.Length)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("invalid AUTH_BCRYPT_COST %d", c.Auth.BcryptCost)
	}
	if (c.Auth.BootstrapAdminEmail == "") != (c.Auth.BootstrapAdminPassword == "") {
		return fmt.Errorf("AUTH_BOOTSTRAP_ADMIN_EMAIL and AUTH_BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	return nil
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

// SessionTTL returns how long an issued session stays valid.
func (a AuthConfig) SessionTTL() time.Duration {
	return minutesOr(a.SessionTTLMinutes, 60*24)
}

// TTL returns the challenge lifetime.
func (o OTPConfig) TTL() time.Duration {
	return minutesOr(o.TTLMinutes, 10)
}

// RequestWindow returns the rate-limit window for OTP requests.
func (o OTPConfig) RequestWindow() time.Duration {
	return minutesOr(o.RequestWindowMinutes, 60)
}

// ResetWindow returns how long a verified OTP authorizes a password reset.
func (o OTPConfig) ResetWindow() time.Duration {
	return minutesOr(o.ResetWindowMinutes, 10)
}

func minutesOr(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Minute
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
