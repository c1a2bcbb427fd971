package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultPageSize is used when a list request does not set a limit.
	DefaultPageSize = 10

	// MaxPageSize caps the limit accepted by list endpoints.
	MaxPageSize = 100
)

// TerminalPolicy decides what happens when a chamado in a terminal
// situation receives another lifecycle operation.
type TerminalPolicy string

const (
	// TerminalPolicyReject fails the operation with a conflict.
	TerminalPolicyReject TerminalPolicy = "reject"
	// TerminalPolicyAllow accepts the operation; repeated cancellation is a no-op.
	TerminalPolicyAllow TerminalPolicy = "allow"
)

// ParseTerminalPolicy converts a string to TerminalPolicy.
// Unrecognized values default to reject.
func ParseTerminalPolicy(s string) TerminalPolicy {
	if TerminalPolicy(strings.ToLower(strings.TrimSpace(s))) == TerminalPolicyAllow {
		return TerminalPolicyAllow
	}
	return TerminalPolicyReject
}

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Auth      AuthConfig
	Lifecycle LifecycleConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Asynq     AsynqConfig
	SMTP      SMTPConfig
	Notify    NotifyConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name     string
	Env      string
	Port     string
	LogLevel string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// AuthConfig defines staff authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// AccessTokenTTL returns the token lifetime as a duration.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// LifecycleConfig holds chamado state machine settings.
type LifecycleConfig struct {
	TerminalPolicy  TerminalPolicy
	DefaultPageSize int
}

// RedisConfig holds Redis connection values. Empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// KafkaConfig holds producer settings. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Enabled reports whether Kafka is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// AsynqConfig holds background queue settings. Asynq shares the Redis server.
type AsynqConfig struct {
	Queue       string
	Concurrency int
}

// SMTPConfig holds outgoing email settings.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
	FromName string
}

// NotifyConfig sizes the asynchronous notification dispatcher.
type NotifyConfig struct {
	Workers   int
	QueueSize int
}

// Load reads configuration from environment variables, applying defaults where possible.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "helpdesk"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnv("PORT", DefaultPort),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Postgres: PostgresConfig{
			DSN:      getEnv("DATABASE_URL", DefaultDatabaseURL),
			MaxConns: int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns: int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Lifecycle: LifecycleConfig{
			TerminalPolicy:  ParseTerminalPolicy(getEnv("CHAMADO_TERMINAL_POLICY", string(TerminalPolicyReject))),
			DefaultPageSize: getEnvAsInt("CHAMADO_PAGE_SIZE", DefaultPageSize),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Channel:  getEnv("REDIS_CHAMADO_CHANNEL", "helpdesk:chamados"),
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvAsList("KAFKA_BROKERS"),
			Topic:    getEnv("KAFKA_CHAMADO_TOPIC", "helpdesk.chamados"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "helpdesk"),
		},
		Asynq: AsynqConfig{
			Queue:       getEnv("ASYNQ_QUEUE", "chamado"),
			Concurrency: getEnvAsInt("ASYNQ_CONCURRENCY", 5),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnv("SMTP_PORT", "587"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "noreply@helpdesk.local"),
			FromName: getEnv("SMTP_FROM_NAME", "Helpdesk"),
		},
		Notify: NotifyConfig{
			Workers:   getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize: getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		},
	}

	if cfg.Lifecycle.DefaultPageSize <= 0 || cfg.Lifecycle.DefaultPageSize > MaxPageSize {
		cfg.Lifecycle.DefaultPageSize = DefaultPageSize
	}

	return cfg, nil
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

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
