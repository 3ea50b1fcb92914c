package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"MATCHFLOW_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS",
		"NOTIFICATION_SINK", "BULK_CONCURRENCY", "TRANSITION_MAX_ATTEMPTS", "DIRECTORY_CACHE_TTL"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "log", cfg.Notifications.Sink)
	assert.Equal(t, 8, cfg.Pipeline.BulkConcurrency)
	assert.Equal(t, 3, cfg.Pipeline.TransitionMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.DirectoryCacheTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MATCHFLOW_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("NOTIFICATION_SINK", "Kafka")
	t.Setenv("BULK_CONCURRENCY", "16")
	t.Setenv("TRANSITION_MAX_ATTEMPTS", "-2")
	t.Setenv("DIRECTORY_CACHE_TTL", "30s")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("DIRECTORY_SEED_FILE", "/etc/matchflow/directory.json")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "kafka", cfg.Notifications.Sink)
	assert.Equal(t, 16, cfg.Pipeline.BulkConcurrency)
	assert.Equal(t, 3, cfg.Pipeline.TransitionMaxAttempts, "non-positive values fall back")
	assert.Equal(t, 30*time.Second, cfg.Pipeline.DirectoryCacheTTL)
	assert.False(t, cfg.Server.AutoMigrate)
	assert.Equal(t, "/etc/matchflow/directory.json", cfg.Pipeline.DirectorySeedFile)
}
