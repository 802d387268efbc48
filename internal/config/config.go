package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the system-wide settings coordinator. Precedence is
// file > environment > defaults; everything is validated before any
// component starts.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Redis     *RedisConfig     `json:"redis"`
	Kafka     *KafkaConfig     `json:"kafka"`
	Inventory *InventoryConfig `json:"inventory"`
	Auth      *AuthConfig      `json:"auth"`
	RateLimit *RateLimitConfig `json:"rate_limit"`
}

// HTTPConfig covers the listening socket shared by the health endpoint and
// the WebSocket upgrade path.
type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// WebSocketConfig tunes the per-connection transport.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// RedisConfig covers the shared session/cache store and its TTLs.
type RedisConfig struct {
	Addr       string        `json:"addr"`
	Password   string        `json:"password"`
	DB         int           `json:"db"`
	SessionTTL time.Duration `json:"session_ttl"`
	StatusTTL  time.Duration `json:"status_ttl"`
	StatsTTL   time.Duration `json:"stats_ttl"`
}

// KafkaConfig identifies the durable event log.
type KafkaConfig struct {
	Brokers  []string `json:"brokers"`
	GroupID  string   `json:"group_id"`
	ClientID string   `json:"client_id"`
	Topics   []string `json:"topics"`
}

// InventoryConfig points at the system of record.
type InventoryConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// AuthConfig holds the shared connect-time bearer secret.
type AuthConfig struct {
	Token string `json:"token"`
}

// RateLimitConfig tunes the fixed-window connect limiter.
type RateLimitConfig struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// Topics consumed from the event log. The consumer subscribes to the fixed
// set; handler dispatch is by declared event type, not topic.
var defaultTopics = []string{
	"inventory_events",
	"shelf_events",
	"system_alerts",
	"audit_logs",
	"physical_placement_events",
	"physical_removal_events",
}

// DefaultConfig mirrors the original deployment's defaults: 1h sessions,
// 10m status cache, 7d stats, 100 connects per 60s window.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         3001,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Redis: &RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			SessionTTL: time.Hour,
			StatusTTL:  10 * time.Minute,
			StatsTTL:   7 * 24 * time.Hour,
		},
		Kafka: &KafkaConfig{
			Brokers:  []string{"localhost:9092"},
			GroupID:  "waregate-group",
			ClientID: "waregate",
			Topics:   append([]string(nil), defaultTopics...),
		},
		Inventory: &InventoryConfig{
			BaseURL: "http://localhost:8080/api/v1",
			Timeout: 10 * time.Second,
		},
		Auth: &AuthConfig{
			Token: "change-me",
		},
		RateLimit: &RateLimitConfig{
			Requests: 100,
			Window:   60 * time.Second,
		},
	}
}

// Validate rejects configurations that would fail at runtime. Called after
// loading, before component initialization.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket intervals must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout must exceed ping interval")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("websocket buffer size must be positive")
	}
	if c.Redis == nil || c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.Redis.SessionTTL <= 0 || c.Redis.StatusTTL <= 0 || c.Redis.StatsTTL <= 0 {
		return fmt.Errorf("redis TTLs must be positive")
	}
	if c.Kafka == nil || len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("kafka group id cannot be empty")
	}
	if len(c.Kafka.Topics) == 0 {
		return fmt.Errorf("kafka topic set cannot be empty")
	}
	if c.Inventory == nil || c.Inventory.BaseURL == "" {
		return fmt.Errorf("inventory base URL is required")
	}
	if c.Inventory.Timeout <= 0 {
		return fmt.Errorf("inventory timeout must be positive")
	}
	if c.Auth == nil || c.Auth.Token == "" {
		return fmt.Errorf("auth token is required")
	}
	if c.RateLimit == nil || c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	return nil
}

// LoadFromEnv overlays WAREGATE_* environment variables on the defaults.
// Malformed values fall back silently to keep container startup forgiving.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("WAREGATE_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("WAREGATE_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	setDuration(&config.HTTP.ReadTimeout, "WAREGATE_HTTP_READ_TIMEOUT")
	setDuration(&config.HTTP.WriteTimeout, "WAREGATE_HTTP_WRITE_TIMEOUT")

	setDuration(&config.WebSocket.PingInterval, "WAREGATE_WEBSOCKET_PING_INTERVAL")
	setDuration(&config.WebSocket.ReadTimeout, "WAREGATE_WEBSOCKET_READ_TIMEOUT")
	setDuration(&config.WebSocket.WriteTimeout, "WAREGATE_WEBSOCKET_WRITE_TIMEOUT")
	if size := os.Getenv("WAREGATE_WEBSOCKET_BUFFER_SIZE"); size != "" {
		if s, err := strconv.Atoi(size); err == nil {
			config.WebSocket.BufferSize = s
		}
	}

	if addr := os.Getenv("WAREGATE_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if password := os.Getenv("WAREGATE_REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if db := os.Getenv("WAREGATE_REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			config.Redis.DB = d
		}
	}
	setDuration(&config.Redis.SessionTTL, "WAREGATE_REDIS_SESSION_TTL")
	setDuration(&config.Redis.StatusTTL, "WAREGATE_REDIS_STATUS_TTL")
	setDuration(&config.Redis.StatsTTL, "WAREGATE_REDIS_STATS_TTL")

	if brokers := os.Getenv("WAREGATE_KAFKA_BROKERS"); brokers != "" {
		config.Kafka.Brokers = splitAndTrim(brokers)
	}
	if groupID := os.Getenv("WAREGATE_KAFKA_GROUP_ID"); groupID != "" {
		config.Kafka.GroupID = groupID
	}
	if clientID := os.Getenv("WAREGATE_KAFKA_CLIENT_ID"); clientID != "" {
		config.Kafka.ClientID = clientID
	}
	if topics := os.Getenv("WAREGATE_KAFKA_TOPICS"); topics != "" {
		config.Kafka.Topics = splitAndTrim(topics)
	}

	if baseURL := os.Getenv("WAREGATE_INVENTORY_URL"); baseURL != "" {
		config.Inventory.BaseURL = baseURL
	}
	setDuration(&config.Inventory.Timeout, "WAREGATE_INVENTORY_TIMEOUT")

	if token := os.Getenv("WAREGATE_AUTH_TOKEN"); token != "" {
		config.Auth.Token = token
	}

	if requests := os.Getenv("WAREGATE_RATE_LIMIT_REQUESTS"); requests != "" {
		if r, err := strconv.Atoi(requests); err == nil {
			config.RateLimit.Requests = r
		}
	}
	setDuration(&config.RateLimit.Window, "WAREGATE_RATE_LIMIT_WINDOW")

	return config
}

func setDuration(dst *time.Duration, envKey string) {
	if raw := os.Getenv(envKey); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			*dst = d
		}
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ConfigFile is the JSON file shape; durations are strings so files can say
// "10m" instead of nanosecond counts.
type ConfigFile struct {
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		BufferSize   int    `json:"buffer_size"`
	} `json:"websocket"`
	Redis *struct {
		Addr       string `json:"addr"`
		Password   string `json:"password"`
		DB         int    `json:"db"`
		SessionTTL string `json:"session_ttl"`
		StatusTTL  string `json:"status_ttl"`
		StatsTTL   string `json:"stats_ttl"`
	} `json:"redis"`
	Kafka *struct {
		Brokers  []string `json:"brokers"`
		GroupID  string   `json:"group_id"`
		ClientID string   `json:"client_id"`
		Topics   []string `json:"topics"`
	} `json:"kafka"`
	Inventory *struct {
		BaseURL string `json:"base_url"`
		Timeout string `json:"timeout"`
	} `json:"inventory"`
	Auth *struct {
		Token string `json:"token"`
	} `json:"auth"`
	RateLimit *struct {
		Requests int    `json:"requests"`
		Window   string `json:"window"`
	} `json:"rate_limit"`
}

// LoadFromFile reads a JSON configuration file over the defaults and
// validates the result.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		parseDuration(&config.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		parseDuration(&config.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}
	if file.WebSocket != nil {
		parseDuration(&config.WebSocket.PingInterval, file.WebSocket.PingInterval)
		parseDuration(&config.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		parseDuration(&config.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
		if file.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
	}
	if file.Redis != nil {
		if file.Redis.Addr != "" {
			config.Redis.Addr = file.Redis.Addr
		}
		if file.Redis.Password != "" {
			config.Redis.Password = file.Redis.Password
		}
		config.Redis.DB = file.Redis.DB
		parseDuration(&config.Redis.SessionTTL, file.Redis.SessionTTL)
		parseDuration(&config.Redis.StatusTTL, file.Redis.StatusTTL)
		parseDuration(&config.Redis.StatsTTL, file.Redis.StatsTTL)
	}
	if file.Kafka != nil {
		if len(file.Kafka.Brokers) > 0 {
			config.Kafka.Brokers = file.Kafka.Brokers
		}
		if file.Kafka.GroupID != "" {
			config.Kafka.GroupID = file.Kafka.GroupID
		}
		if file.Kafka.ClientID != "" {
			config.Kafka.ClientID = file.Kafka.ClientID
		}
		if len(file.Kafka.Topics) > 0 {
			config.Kafka.Topics = file.Kafka.Topics
		}
	}
	if file.Inventory != nil {
		if file.Inventory.BaseURL != "" {
			config.Inventory.BaseURL = file.Inventory.BaseURL
		}
		parseDuration(&config.Inventory.Timeout, file.Inventory.Timeout)
	}
	if file.Auth != nil && file.Auth.Token != "" {
		config.Auth.Token = file.Auth.Token
	}
	if file.RateLimit != nil {
		if file.RateLimit.Requests > 0 {
			config.RateLimit.Requests = file.RateLimit.Requests
		}
		parseDuration(&config.RateLimit.Window, file.RateLimit.Window)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

func parseDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// LoadConfigWithPrecedence resolves the final configuration: file when
// present and parseable, otherwise environment over defaults.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
		// File errors are non-fatal; environment/defaults still apply.
	}

	return config
}
