package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// FUNCTIONAL VALIDATION TEST: Default configuration provides production-ready settings
func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.HTTP.Port != 3001 {
		t.Errorf("Expected default port 3001, got %d", config.HTTP.Port)
	}
	if !config.Archive.Enabled || config.Archive.Path == "" {
		t.Error("Archive should be enabled with a default path")
	}
	if config.Redis.Enabled {
		t.Error("Redis feed should be disabled by default")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
	if config.Address() != "0.0.0.0:3001" {
		t.Errorf("Unexpected address %s", config.Address())
	}
	if config.LogLevel() != slog.LevelInfo {
		t.Errorf("Expected info level, got %v", config.LogLevel())
	}
}

// FUNCTIONAL VALIDATION TEST: Configuration validation prevents invalid settings
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errSub string
	}{
		{"port too low", func(c *Config) { c.HTTP.Port = 0 }, "port"},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }, "port"},
		{"zero read timeout", func(c *Config) { c.HTTP.ReadTimeout = 0 }, "read timeout"},
		{"read timeout below ping", func(c *Config) { c.WebSocket.ReadTimeout = c.WebSocket.PingInterval }, "ping interval"},
		{"zero buffer", func(c *Config) { c.WebSocket.BufferSize = 0 }, "buffer size"},
		{"negative rate limit", func(c *Config) { c.WebSocket.RateLimit = -1 }, "rate limit"},
		{"archive without path", func(c *Config) { c.Archive.Path = "" }, "archive path"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis address"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"missing http", func(c *Config) { c.HTTP = nil }, "HTTP configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if err == nil {
				t.Fatalf("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Expected error containing %q, got %v", tt.errSub, err)
			}
		})
	}

	// Disabled archive needs no path
	config := DefaultConfig()
	config.Archive.Enabled = false
	config.Archive.Path = ""
	if err := config.Validate(); err != nil {
		t.Errorf("Disabled archive should not require a path: %v", err)
	}
}

func TestConfig_LoadDefaults(t *testing.T) {
	t.Setenv("POLLCAST_CONFIG_FILE", "")
	t.Setenv("PORT", "")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.HTTP.Port != 3001 {
		t.Errorf("Expected default port, got %d", config.HTTP.Port)
	}
	if config.WebSocket.PingInterval != 30*time.Second {
		t.Errorf("Expected default ping interval, got %v", config.WebSocket.PingInterval)
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("POLLCAST_HTTP_HOST", "127.0.0.1")
	t.Setenv("POLLCAST_WEBSOCKET_PING_INTERVAL", "15s")
	t.Setenv("POLLCAST_WEBSOCKET_RATE_LIMIT", "0")
	t.Setenv("POLLCAST_ARCHIVE_ENABLED", "false")
	t.Setenv("POLLCAST_REDIS_MAX_ENTRIES", "5")
	t.Setenv("POLLCAST_LOG_LEVEL", "debug")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.HTTP.Host != "127.0.0.1" {
		t.Errorf("Expected env host, got %s", config.HTTP.Host)
	}
	if config.WebSocket.PingInterval != 15*time.Second {
		t.Errorf("Expected 15s ping interval, got %v", config.WebSocket.PingInterval)
	}
	if config.WebSocket.RateLimit != 0 {
		t.Errorf("Expected rate limiting disabled, got %d", config.WebSocket.RateLimit)
	}
	if config.Archive.Enabled {
		t.Error("Expected archive disabled from env")
	}
	if config.Redis.MaxEntries != 5 {
		t.Errorf("Expected 5 max entries, got %d", config.Redis.MaxEntries)
	}
	if config.LogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", config.LogLevel())
	}
}

func TestConfig_BarePortVariable(t *testing.T) {
	t.Setenv("PORT", "4000")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.HTTP.Port != 4000 {
		t.Errorf("Expected PORT to set the listen port, got %d", config.HTTP.Port)
	}

	t.Setenv("POLLCAST_HTTP_PORT", "5000")
	config, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.HTTP.Port != 5000 {
		t.Errorf("Expected POLLCAST_HTTP_PORT to win over PORT, got %d", config.HTTP.Port)
	}
}

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := writeConfigFile(t, "pollcast.yaml", `
http:
  port: 9090
  read_timeout: 45s
websocket:
  buffer_size: 256
archive:
  path: /tmp/polls.db
redis:
  enabled: true
  addr: redis:6379
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", config.HTTP.Port)
	}
	if config.HTTP.ReadTimeout != 45*time.Second {
		t.Errorf("Expected 45s read timeout, got %v", config.HTTP.ReadTimeout)
	}
	if config.HTTP.WriteTimeout != 30*time.Second {
		t.Errorf("Unset keys keep defaults, got %v", config.HTTP.WriteTimeout)
	}
	if config.WebSocket.BufferSize != 256 {
		t.Errorf("Expected buffer 256, got %d", config.WebSocket.BufferSize)
	}
	if !config.Redis.Enabled || config.Redis.Addr != "redis:6379" {
		t.Errorf("Expected redis from file, got %+v", config.Redis)
	}
}

// FUNCTIONAL VALIDATION TEST: Configuration precedence defaults < file < environment
func TestConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "pollcast.json", `{"http": {"port": 9090, "host": "10.0.0.1"}}`)
	t.Setenv("POLLCAST_HTTP_PORT", "7070")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.HTTP.Port != 7070 {
		t.Errorf("Expected env port 7070, got %d", config.HTTP.Port)
	}
	if config.HTTP.Host != "10.0.0.1" {
		t.Errorf("Expected file host, got %s", config.HTTP.Host)
	}
}

func TestConfig_ConfigFileFromEnv(t *testing.T) {
	path := writeConfigFile(t, "pollcast.toml", "[log]\nformat = \"json\"\n")
	t.Setenv("POLLCAST_CONFIG_FILE", path)

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Log.Format != "json" {
		t.Errorf("Expected json format from POLLCAST_CONFIG_FILE, got %s", config.Log.Format)
	}
}

func TestConfig_LoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Missing explicit config file should fail")
	}

	invalid := writeConfigFile(t, "bad.json", `{"http": {"port": `)
	if _, err := Load(invalid); err == nil {
		t.Error("Malformed config file should fail")
	}

	outOfRange := writeConfigFile(t, "range.yaml", "http:\n  port: 99999\n")
	if _, err := Load(outOfRange); err == nil {
		t.Error("Invalid values should fail validation")
	}
}
