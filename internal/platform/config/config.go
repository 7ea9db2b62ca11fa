// Package config builds runtime configuration from the environment so main
// stays lean. Absent optional backends (Redis, Kafka) disable the feature
// rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Publisher PublisherConfig
}

// PostgresConfig locates the history database. An empty DSN selects the
// in-memory stores.
type PostgresConfig struct {
	DSN string
}

// RedisConfig tunes the optional photo-hash cache connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig locates the optional history event stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// PublisherConfig tunes the in-process event fan-out.
type PublisherConfig struct {
	Buffer int
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("ROSTERTRAIL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default, must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_HISTORY_TOPIC")
	if topic == "" {
		topic = "rostertrail.history"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   topic,
		},
		Publisher: PublisherConfig{
			Buffer: envInt("HISTORY_PUBLISH_BUFFER", 256),
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
