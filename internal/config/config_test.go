package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3001, cfg.HTTP.Port)
	assert.Equal(t, time.Hour, cfg.Redis.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Redis.StatusTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Redis.StatsTTL)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Len(t, cfg.Kafka.Topics, 6)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"read timeout not above ping interval", func(c *Config) {
			c.WebSocket.ReadTimeout = c.WebSocket.PingInterval
		}},
		{"zero buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"zero session TTL", func(c *Config) { c.Redis.SessionTTL = 0 }},
		{"no kafka brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"empty kafka group", func(c *Config) { c.Kafka.GroupID = "" }},
		{"no kafka topics", func(c *Config) { c.Kafka.Topics = nil }},
		{"missing inventory URL", func(c *Config) { c.Inventory.BaseURL = "" }},
		{"empty auth token", func(c *Config) { c.Auth.Token = "" }},
		{"zero rate limit", func(c *Config) { c.RateLimit.Requests = 0 }},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WAREGATE_HTTP_PORT", "4001")
	t.Setenv("WAREGATE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("WAREGATE_REDIS_SESSION_TTL", "30m")
	t.Setenv("WAREGATE_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("WAREGATE_KAFKA_TOPICS", "inventory_events,system_alerts")
	t.Setenv("WAREGATE_AUTH_TOKEN", "secret-token")
	t.Setenv("WAREGATE_RATE_LIMIT_REQUESTS", "50")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4001, cfg.HTTP.Port)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Redis.SessionTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"inventory_events", "system_alerts"}, cfg.Kafka.Topics)
	assert.Equal(t, "secret-token", cfg.Auth.Token)
	assert.Equal(t, 50, cfg.RateLimit.Requests)
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("WAREGATE_HTTP_PORT", "not-a-number")
	t.Setenv("WAREGATE_REDIS_SESSION_TTL", "soon")

	cfg := LoadFromEnv()
	assert.Equal(t, 3001, cfg.HTTP.Port)
	assert.Equal(t, time.Hour, cfg.Redis.SessionTTL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waregate.json")
	content := `{
		"http": {"port": 9000, "read_timeout": "15s"},
		"redis": {"addr": "cache:6379", "status_ttl": "5m"},
		"kafka": {"group_id": "waregate-east"},
		"auth": {"token": "file-token"},
		"rate_limit": {"requests": 25, "window": "30s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Redis.StatusTTL)
	assert.Equal(t, "waregate-east", cfg.Kafka.GroupID)
	assert.Equal(t, "file-token", cfg.Auth.Token)
	assert.Equal(t, 25, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)

	// Unspecified sections keep their defaults.
	assert.Equal(t, time.Hour, cfg.Redis.SessionTTL)
	assert.Len(t, cfg.Kafka.Topics, 6)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/waregate.json")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("WAREGATE_HTTP_PORT", "4001")

	path := filepath.Join(t.TempDir(), "waregate.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http": {"port": 9000}}`), 0o644))

	// File wins over environment when present.
	cfg := LoadConfigWithPrecedence(path)
	assert.Equal(t, 9000, cfg.HTTP.Port)

	// Without a file, environment wins over defaults.
	cfg = LoadConfigWithPrecedence("")
	assert.Equal(t, 4001, cfg.HTTP.Port)

	// An unreadable file falls back to environment.
	cfg = LoadConfigWithPrecedence("/nonexistent/waregate.json")
	assert.Equal(t, 4001, cfg.HTTP.Port)
}
