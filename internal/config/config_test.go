package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.ReadTimeout)
	assert.Equal(t, 100, cfg.Chat.HistoryLimit)
	assert.Equal(t, "info", cfg.LogLevel)

	// Defaults alone are not runnable; the JWT secret must be supplied.
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "test-secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.Auth.JWTSecret = "test-secret"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"read timeout below ping interval", func(c *Config) { c.WebSocket.ReadTimeout = 10 * time.Second }},
		{"zero buffer", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"zero history limit", func(c *Config) { c.Chat.HistoryLimit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLASSSYNC_HTTP_PORT", "9090")
	t.Setenv("CLASSSYNC_DATABASE_PATH", "/tmp/test.db")
	t.Setenv("CLASSSYNC_WEBSOCKET_PING_INTERVAL", "15s")
	t.Setenv("CLASSSYNC_JWT_SECRET", "env-secret")
	t.Setenv("CLASSSYNC_CHAT_HISTORY_LIMIT", "50")
	t.Setenv("CLASSSYNC_LOG_LEVEL", "debug")

	cfg := LoadFromEnv()

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 15*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 50, cfg.Chat.HistoryLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFromEnv_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("CLASSSYNC_HTTP_PORT", "not-a-number")
	t.Setenv("CLASSSYNC_WEBSOCKET_READ_TIMEOUT", "eventually")

	cfg := LoadFromEnv()

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.ReadTimeout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"http": {"port": 3000, "read_timeout": "45s"},
		"websocket": {"ping_interval": "20s"},
		"auth": {"jwt_secret": "file-secret"},
		"chat": {"history_limit": 200}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, 45*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 20*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 200, cfg.Chat.HistoryLimit)

	// Fields the file omits keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.json"), DefaultConfig())
	assert.Error(t, err)
}

func TestLoadFromFile_InvalidResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http": {"host": "x"}}`), 0o644))

	// No JWT secret from any layer fails validation.
	_, err := LoadFromFile(path, DefaultConfig())
	assert.Error(t, err)
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	t.Setenv("CLASSSYNC_HTTP_PORT", "9090")
	t.Setenv("CLASSSYNC_JWT_SECRET", "env-secret")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http": {"port": 3000}}`), 0o644))

	cfg := Load(path)

	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}
