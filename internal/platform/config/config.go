// Package config loads process configuration from the environment so main
// stays lean. A .env file is honored in development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  Server
	DB      DB
	Redis   Redis
	Kafka   Kafka
	Mailer  Mailer
	Token   Token
	Lockout Lockout
}

type Server struct {
	Addr         string
	Environment  string
	ErrorCatalog string
}

type DB struct {
	URL string
}

type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	Brokers    []string
	AuditTopic string
}

type Mailer struct {
	APIKey    string
	FromName  string
	FromEmail string
}

type Token struct {
	SigningKey string
	Issuer     string
	Audience   string
	TTL        time.Duration
}

type Lockout struct {
	MaxAttempts int
	Window      time.Duration
}

// FromEnv builds the full configuration, reading .env first when present.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr:         getEnv("MONEDERO_ADDR", ":8080"),
			Environment:  getEnv("MONEDERO_ENV", "development"),
			ErrorCatalog: os.Getenv("ERROR_CATALOG_FILE"),
		},
		DB: DB{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "monedero.audit"),
		},
		Mailer: Mailer{
			APIKey:    os.Getenv("MAILERSEND_API_KEY"),
			FromName:  getEnv("MAILER_FROM_NAME", "Monedero"),
			FromEmail: os.Getenv("MAILER_FROM_EMAIL"),
		},
		Token: Token{
			SigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     getEnv("JWT_ISSUER", "monedero"),
			Audience:   getEnv("JWT_AUDIENCE", "wallet-app"),
			TTL:        getDuration("JWT_TTL", 15*time.Minute),
		},
		Lockout: Lockout{
			MaxAttempts: getInt("LOCKOUT_MAX_ATTEMPTS", 5),
			Window:      getDuration("LOCKOUT_WINDOW", 15*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
