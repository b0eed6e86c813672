package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the system-wide settings coordinator. Precedence is
// defaults -> environment -> config file.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Auth      *AuthConfig      `json:"auth"`
	Chat      *ChatConfig      `json:"chat"`
	LogLevel  string           `json:"log_level"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

type ChatConfig struct {
	HistoryLimit int `json:"history_limit"`
}

// DefaultConfig returns production-ready defaults. The 30s ping interval and
// 60s read deadline pair with the WebSocket handler's pong handling.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./data/classsync.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Auth: &AuthConfig{
			JWTSecret: "",
		},
		Chat: &ChatConfig{
			HistoryLimit: 100,
		},
		LogLevel: "info",
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed ping interval")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Auth == nil || c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret cannot be empty")
	}
	if c.Chat == nil || c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("chat history limit must be positive")
	}
	return nil
}

// LoadFromEnv reads CLASSSYNC_* environment variables over the defaults.
// A .env file in the working directory is honored first when present.
func LoadFromEnv() *Config {
	_ = godotenv.Load()

	config := DefaultConfig()

	if v := os.Getenv("CLASSSYNC_HTTP_HOST"); v != "" {
		config.HTTP.Host = v
	}
	if v := os.Getenv("CLASSSYNC_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.HTTP.Port = port
		}
	}
	if v := os.Getenv("CLASSSYNC_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("CLASSSYNC_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.WriteTimeout = d
		}
	}
	if v := os.Getenv("CLASSSYNC_DATABASE_PATH"); v != "" {
		config.Database.Path = v
	}
	if v := os.Getenv("CLASSSYNC_DATABASE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Database.Timeout = d
		}
	}
	if v := os.Getenv("CLASSSYNC_WEBSOCKET_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.PingInterval = d
		}
	}
	if v := os.Getenv("CLASSSYNC_WEBSOCKET_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.ReadTimeout = d
		}
	}
	if v := os.Getenv("CLASSSYNC_WEBSOCKET_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.WriteTimeout = d
		}
	}
	if v := os.Getenv("CLASSSYNC_WEBSOCKET_BUFFER_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			config.WebSocket.BufferSize = size
		}
	}
	if v := os.Getenv("CLASSSYNC_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("CLASSSYNC_CHAT_HISTORY_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			config.Chat.HistoryLimit = limit
		}
	}
	if v := os.Getenv("CLASSSYNC_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}

	return config
}

// configFile mirrors Config for JSON parsing, with durations as strings.
type configFile struct {
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
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
	Auth *struct {
		JWTSecret string `json:"jwt_secret"`
	} `json:"auth"`
	Chat *struct {
		HistoryLimit int `json:"history_limit"`
	} `json:"chat"`
	LogLevel string `json:"log_level"`
}

// LoadFromFile overlays a JSON config file on top of base and validates the
// result.
func LoadFromFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := base
	if config == nil {
		config = DefaultConfig()
	}

	if file.Database != nil {
		if file.Database.Path != "" {
			config.Database.Path = file.Database.Path
		}
		if file.Database.Timeout != "" {
			if d, err := time.ParseDuration(file.Database.Timeout); err == nil {
				config.Database.Timeout = d
			}
		}
	}
	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		if file.HTTP.ReadTimeout != "" {
			if d, err := time.ParseDuration(file.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = d
			}
		}
		if file.HTTP.WriteTimeout != "" {
			if d, err := time.ParseDuration(file.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = d
			}
		}
	}
	if file.WebSocket != nil {
		if file.WebSocket.PingInterval != "" {
			if d, err := time.ParseDuration(file.WebSocket.PingInterval); err == nil {
				config.WebSocket.PingInterval = d
			}
		}
		if file.WebSocket.ReadTimeout != "" {
			if d, err := time.ParseDuration(file.WebSocket.ReadTimeout); err == nil {
				config.WebSocket.ReadTimeout = d
			}
		}
		if file.WebSocket.WriteTimeout != "" {
			if d, err := time.ParseDuration(file.WebSocket.WriteTimeout); err == nil {
				config.WebSocket.WriteTimeout = d
			}
		}
		if file.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
	}
	if file.Auth != nil && file.Auth.JWTSecret != "" {
		config.Auth.JWTSecret = file.Auth.JWTSecret
	}
	if file.Chat != nil && file.Chat.HistoryLimit > 0 {
		config.Chat.HistoryLimit = file.Chat.HistoryLimit
	}
	if file.LogLevel != "" {
		config.LogLevel = file.LogLevel
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// Load resolves the effective configuration: defaults, then environment,
// then the optional JSON file named by CLASSSYNC_CONFIG_FILE or path.
func Load(path string) *Config {
	config := LoadFromEnv()

	if path == "" {
		path = os.Getenv("CLASSSYNC_CONFIG_FILE")
	}
	if path != "" {
		if fileConfig, err := LoadFromFile(path, config); err == nil {
			config = fileConfig
		}
		// File errors are non-fatal; environment and defaults still apply.
	}

	return config
}
