package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	// "postgres" or "memory"
	Store       string
	AutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// "redis" or "memory"
	SessionStore      string
	SessionSecret     string
	SessionTTLHours   int
	SessionCookieName string

	BcryptCost           int
	ResetTokenTTLMinutes int

	// "log" or "sendgrid"
	Notifier string
	// "sync" or "queue"
	NotifyDelivery  string
	SendGridAPIKey  string
	MailFromAddress string
	MailFromName    string

	OTelEnabled  bool
	OTelEndpoint string

	// Scheme and host used in emailed links; empty means the request's own.
	PublicBaseURL string

	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	SeedEmail    string
	SeedPassword string
	SeedName     string

	WorkerConcurrency  int
	WorkerPollMS       int
	WorkerHealthPort   int
	WorkerMaxAttempts  int
	WorkerStaleLockSec int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")

	return Config{
		Env:   env,
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		Store:       strings.ToLower(getEnv("STORE", "postgres")),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", env == "dev"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SessionStore:      strings.ToLower(getEnv("SESSION_STORE", "redis")),
		SessionSecret:     getEnv("SESSION_SECRET", "dev-session-secret-change-me"),
		SessionTTLHours:   getEnvInt("SESSION_TTL_HOURS", 24),
		SessionCookieName: getEnv("SESSION_COOKIE", "memberhub_session"),

		BcryptCost:           getEnvInt("BCRYPT_COST", 10),
		ResetTokenTTLMinutes: getEnvInt("RESET_TOKEN_TTL_MINUTES", 60),

		Notifier:        strings.ToLower(getEnv("NOTIFIER", "log")),
		NotifyDelivery:  strings.ToLower(getEnv("NOTIFY_DELIVERY", "sync")),
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		MailFromAddress: getEnv("MAIL_FROM_ADDRESS", "no-reply@memberhub.local"),
		MailFromName:    getEnv("MAIL_FROM_NAME", "Memberhub"),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		SeedEmail:    getEnv("SEED_EMAIL", ""),
		SeedPassword: getEnv("SEED_PASSWORD", ""),
		SeedName:     getEnv("SEED_NAME", "Seed Member"),

		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerPollMS:       getEnvInt("WORKER_POLL_MS", 250),
		WorkerHealthPort:   getEnvInt("WORKER_HEALTH_PORT", 8081),
		WorkerMaxAttempts:  getEnvInt("WORKER_MAX_ATTEMPTS", 8),
		WorkerStaleLockSec: getEnvInt("WORKER_STALE_LOCK_SECONDS", 60),
	}
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenTTLMinutes) * time.Minute
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "memberhub")
	pass := getEnv("DB_PASSWORD", "memberhub")
	name := getEnv("DB_NAME", "memberhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not an integer, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not a boolean, using %t\n", key, v, fallback)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
