package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	AutoMigrate     bool
}

// Logging selects the slog handler.
type Logging struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// Database configures the PostgreSQL stores. An empty URL selects the
// in-memory stores.
type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the shared Redis client. An empty URL disables the
// directory cache and the redis notification sink.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the franz-go client used by the kafka notification sink.
type Kafka struct {
	Brokers           []string
	NotificationTopic string
	Partitions        int32
	ReplicationFactor int16
}

// Notifications selects and tunes the notification sink chain.
type Notifications struct {
	Sink             string // log, redis or kafka
	RedisChannel     string
	Buffer           int
	DeliveryTimeout  time.Duration
	FailureThreshold int
	SuccessThreshold int
}

// Pipeline tunes the lifecycle service.
type Pipeline struct {
	BulkConcurrency       int
	TransitionMaxAttempts int
	DirectoryCacheTTL     time.Duration
	// DirectorySeedFile preloads the in-memory directory from JSON.
	DirectorySeedFile string
}

// Config is the full process configuration.
type Config struct {
	Server        Server
	Logging       Logging
	Database      Database
	Redis         RedisConfig
	Kafka         Kafka
	Notifications Notifications
	Pipeline      Pipeline
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envString("MATCHFLOW_ADDR", ":8080"),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AutoMigrate:     envBool("AUTO_MIGRATE", true),
		},
		Logging: Logging{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Database: Database{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:           envList("KAFKA_BROKERS"),
			NotificationTopic: envString("KAFKA_NOTIFICATION_TOPIC", "matchflow.notifications"),
			Partitions:        int32(envInt("KAFKA_PARTITIONS", 3)),
			ReplicationFactor: int16(envInt("KAFKA_REPLICATION_FACTOR", 1)),
		},
		Notifications: Notifications{
			Sink:             strings.ToLower(envString("NOTIFICATION_SINK", "log")),
			RedisChannel:     envString("NOTIFICATION_REDIS_CHANNEL", "matchflow:notifications"),
			Buffer:           envInt("NOTIFICATION_BUFFER", 1024),
			DeliveryTimeout:  envDuration("NOTIFICATION_DELIVERY_TIMEOUT", 5*time.Second),
			FailureThreshold: envInt("NOTIFICATION_BREAKER_FAILURES", 5),
			SuccessThreshold: envInt("NOTIFICATION_BREAKER_SUCCESSES", 3),
		},
		Pipeline: Pipeline{
			BulkConcurrency:       envInt("BULK_CONCURRENCY", 8),
			TransitionMaxAttempts: envInt("TRANSITION_MAX_ATTEMPTS", 3),
			DirectoryCacheTTL:     envDuration("DIRECTORY_CACHE_TTL", 5*time.Minute),
			DirectorySeedFile:     os.Getenv("DIRECTORY_SEED_FILE"),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
