package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. POLLCAST_HTTP_PORT
const EnvPrefix = "POLLCAST"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	HTTP      *HTTPConfig      `mapstructure:"http" json:"http"`
	WebSocket *WebSocketConfig `mapstructure:"websocket" json:"websocket"`
	Archive   *ArchiveConfig   `mapstructure:"archive" json:"archive"`
	Redis     *RedisConfig     `mapstructure:"redis" json:"redis"`
	Log       *LogConfig       `mapstructure:"log" json:"log"`
}

type HTTPConfig struct {
	Host            string        `mapstructure:"host" json:"host"`
	Port            int           `mapstructure:"port" json:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

// FUNCTIONAL DISCOVERY: WebSocket configuration optimized for classroom scenarios
type WebSocketConfig struct {
	PingInterval    time.Duration `mapstructure:"ping_interval" json:"ping_interval"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	BufferSize      int           `mapstructure:"buffer_size" json:"buffer_size"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" json:"max_message_bytes"`
	RateLimit       int           `mapstructure:"rate_limit" json:"rate_limit"` // frames per minute per connection, 0 disables
	QueueSize       int           `mapstructure:"queue_size" json:"queue_size"`
}

// ArchiveConfig controls the sqlite history of ended polls
type ArchiveConfig struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled"`
	Path    string        `mapstructure:"path" json:"path"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// RedisConfig controls the optional results feed
type RedisConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	Addr       string `mapstructure:"addr" json:"addr"`
	Password   string `mapstructure:"password" json:"-"`
	DB         int    `mapstructure:"db" json:"db"`
	Channel    string `mapstructure:"channel" json:"channel"`
	ListKey    string `mapstructure:"list_key" json:"list_key"`
	MaxEntries int64  `mapstructure:"max_entries" json:"max_entries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// FUNCTIONAL DISCOVERY: Production-ready defaults based on classroom requirements
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:    30 * time.Second,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			BufferSize:      100,
			MaxMessageBytes: 64 * 1024,
			RateLimit:       100,
			QueueSize:       1000,
		},
		Archive: &ArchiveConfig{
			Enabled: true,
			Path:    "./data/pollcast.db",
			Timeout: 10 * time.Second,
		},
		Redis: &RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			Channel:    "pollcast:results",
			ListKey:    "pollcast:history",
			MaxEntries: 100,
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system configurations
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return errors.New("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return errors.New("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return errors.New("HTTP write timeout must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("HTTP shutdown timeout must be positive")
	}

	if c.WebSocket == nil {
		return errors.New("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return errors.New("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return errors.New("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return errors.New("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return errors.New("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return errors.New("WebSocket max message bytes must be positive")
	}
	if c.WebSocket.RateLimit < 0 {
		return errors.New("WebSocket rate limit cannot be negative")
	}
	if c.WebSocket.QueueSize <= 0 {
		return errors.New("WebSocket queue size must be positive")
	}

	if c.Archive == nil {
		return errors.New("archive configuration is required")
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return errors.New("archive path cannot be empty when the archive is enabled")
	}
	if c.Archive.Timeout <= 0 {
		return errors.New("archive timeout must be positive")
	}

	if c.Redis == nil {
		return errors.New("redis configuration is required")
	}
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return errors.New("redis address cannot be empty when the feed is enabled")
		}
		if c.Redis.Channel == "" || c.Redis.ListKey == "" {
			return errors.New("redis channel and list key are required")
		}
		if c.Redis.MaxEntries <= 0 {
			return errors.New("redis max entries must be positive")
		}
	}

	if c.Log == nil {
		return errors.New("log configuration is required")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// Address returns host:port for the HTTP listener
func (c *Config) Address() string {
	return net.JoinHostPort(c.HTTP.Host, strconv.Itoa(c.HTTP.Port))
}

// LogLevel returns the configured slog level
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// setDefaults registers every key so env overrides resolve during Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("http.host", d.HTTP.Host)
	v.SetDefault("http.port", d.HTTP.Port)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("websocket.ping_interval", d.WebSocket.PingInterval)
	v.SetDefault("websocket.read_timeout", d.WebSocket.ReadTimeout)
	v.SetDefault("websocket.write_timeout", d.WebSocket.WriteTimeout)
	v.SetDefault("websocket.buffer_size", d.WebSocket.BufferSize)
	v.SetDefault("websocket.max_message_bytes", d.WebSocket.MaxMessageBytes)
	v.SetDefault("websocket.rate_limit", d.WebSocket.RateLimit)
	v.SetDefault("websocket.queue_size", d.WebSocket.QueueSize)

	v.SetDefault("archive.enabled", d.Archive.Enabled)
	v.SetDefault("archive.path", d.Archive.Path)
	v.SetDefault("archive.timeout", d.Archive.Timeout)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.channel", d.Redis.Channel)
	v.SetDefault("redis.list_key", d.Redis.ListKey)
	v.SetDefault("redis.max_entries", d.Redis.MaxEntries)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load resolves configuration with precedence defaults < file < environment.
// An empty path falls back to POLLCAST_CONFIG_FILE; no file at all is fine.
// The bare PORT variable is honoured for the listen port.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("http.port", EnvPrefix+"_HTTP_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind PORT: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// ARCHITECTURAL DISCOVERY: Validate configuration after loading to catch errors early
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
