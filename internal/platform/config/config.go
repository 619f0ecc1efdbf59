package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
	// JWTSigningKey guards the reporting surface. Empty disables auth, which
	// is the expected mode for local development.
	JWTSigningKey string
}

// PostgresConfig selects the durable stores. An empty DSN selects the
// in-memory implementations.
type PostgresConfig struct {
	DSN string
}

// RedisConfig selects the shared idempotency and dedup stores. An empty URL
// selects the in-memory implementations.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig selects the durable event stream. Empty brokers select the
// in-process bus, which keeps single-binary deployments and tests free of
// broker plumbing.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Group      string
	Partitions int
}

// Attendance tunes the state machine and aggregation pipeline.
type Attendance struct {
	// IdempotencyTTL bounds retention of command outcomes. A replay after
	// eviction is treated as a new command.
	IdempotencyTTL time.Duration
	// DerivedKeyBucket collapses back-to-back duplicate submissions that
	// arrive without a caller-supplied idempotency key.
	DerivedKeyBucket time.Duration
	// OutboxPollInterval paces the relay between ledger commits and the
	// event stream.
	OutboxPollInterval time.Duration
	// SubscriberBuffer bounds each realtime subscriber's queue. A subscriber
	// that falls behind is dropped and must resynchronize via the snapshot
	// endpoints.
	SubscriberBuffer int
}

// Config is the root configuration for the service.
type Config struct {
	Server     Server
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Attendance Attendance
	// RegistryFile seeds the room and person registry from a JSON snapshot
	// exported by the upstream management system.
	RegistryFile string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          getEnv("PRESENCE_ADDR", ":8080"),
			JWTSigningKey: os.Getenv("PRESENCE_JWT_SIGNING_KEY"),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("PRESENCE_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("PRESENCE_REDIS_URL"),
			PoolSize:     getEnvInt("PRESENCE_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("PRESENCE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("PRESENCE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("PRESENCE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("PRESENCE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("PRESENCE_KAFKA_BROKERS")),
			Topic:      getEnv("PRESENCE_KAFKA_TOPIC", "presence.attendance"),
			Group:      getEnv("PRESENCE_KAFKA_GROUP", "presence-occupancy"),
			Partitions: getEnvInt("PRESENCE_KAFKA_PARTITIONS", 12),
		},
		RegistryFile: os.Getenv("PRESENCE_REGISTRY_FILE"),
		Attendance: Attendance{
			IdempotencyTTL:     getEnvDuration("PRESENCE_IDEMPOTENCY_TTL", 24*time.Hour),
			DerivedKeyBucket:   getEnvDuration("PRESENCE_DERIVED_KEY_BUCKET", 90*time.Second),
			OutboxPollInterval: getEnvDuration("PRESENCE_OUTBOX_POLL_INTERVAL", 250*time.Millisecond),
			SubscriberBuffer:   getEnvInt("PRESENCE_SUBSCRIBER_BUFFER", 16),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
