package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings. Precedence is file > environment >
// defaults; see Load.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Session   *SessionConfig   `json:"session"`
	Database  *DatabaseConfig  `json:"database"`
}

type HTTPConfig struct {
	Host         string        `json:"host" env:"PONGRELAY_HTTP_HOST"`
	Port         int           `json:"port" env:"PONGRELAY_HTTP_PORT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"PONGRELAY_HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"PONGRELAY_HTTP_WRITE_TIMEOUT"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval" env:"PONGRELAY_WEBSOCKET_PING_INTERVAL"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"PONGRELAY_WEBSOCKET_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"PONGRELAY_WEBSOCKET_WRITE_TIMEOUT"`
	BufferSize   int           `json:"buffer_size" env:"PONGRELAY_WEBSOCKET_BUFFER_SIZE"`
}

// SessionConfig carries the idle-reaping and liveness policy. The sweep is
// advisory housekeeping; transport-level disconnect remains the authoritative
// removal signal.
type SessionConfig struct {
	SweepInterval     time.Duration `json:"sweep_interval" env:"PONGRELAY_SESSION_SWEEP_INTERVAL"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"PONGRELAY_SESSION_IDLE_TIMEOUT"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval" env:"PONGRELAY_SESSION_HEARTBEAT_INTERVAL"`
}

type DatabaseConfig struct {
	Path    string        `json:"path" env:"PONGRELAY_DATABASE_PATH"`
	Timeout time.Duration `json:"timeout" env:"PONGRELAY_DATABASE_TIMEOUT"`
}

// DefaultConfig returns the stock settings: 60-second sweep cadence with a
// 5-minute idle threshold and a 30-second application-level heartbeat.
func DefaultConfig() *Config {
	return &Config{
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
		Session: &SessionConfig{
			SweepInterval:     60 * time.Second,
			IdleTimeout:       5 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
		},
		Database: &DatabaseConfig{
			Path:    "./pongrelay.db",
			Timeout: 30 * time.Second,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP == nil || c.WebSocket == nil || c.Session == nil || c.Database == nil {
		return fmt.Errorf("all configuration sections are required")
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

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session sweep interval must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session idle timeout must be positive")
	}
	if c.Session.HeartbeatInterval <= 0 {
		return fmt.Errorf("session heartbeat interval must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	return nil
}

// LoadFromEnv returns the defaults overridden by PONGRELAY_* environment
// variables.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
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
	Session *struct {
		SweepInterval     string `json:"sweep_interval"`
		IdleTimeout       string `json:"idle_timeout"`
		HeartbeatInterval string `json:"heartbeat_interval"`
	} `json:"session"`
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
}

// LoadFromFile overlays a JSON config file onto the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			cfg.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			cfg.HTTP.Port = file.HTTP.Port
		}
		setDuration(&cfg.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		setDuration(&cfg.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}
	if file.WebSocket != nil {
		setDuration(&cfg.WebSocket.PingInterval, file.WebSocket.PingInterval)
		setDuration(&cfg.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		setDuration(&cfg.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
		if file.WebSocket.BufferSize > 0 {
			cfg.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
	}
	if file.Session != nil {
		setDuration(&cfg.Session.SweepInterval, file.Session.SweepInterval)
		setDuration(&cfg.Session.IdleTimeout, file.Session.IdleTimeout)
		setDuration(&cfg.Session.HeartbeatInterval, file.Session.HeartbeatInterval)
	}
	if file.Database != nil {
		if file.Database.Path != "" {
			cfg.Database.Path = file.Database.Path
		}
		setDuration(&cfg.Database.Timeout, file.Database.Timeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves the effective configuration: file > environment > defaults.
// File errors are ignored so environment and defaults still apply.
func Load(path string) *Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		cfg = DefaultConfig()
	}

	if path != "" {
		if fileCfg, err := LoadFromFile(path); err == nil {
			cfg = fileCfg
		}
	}

	return cfg
}

func setDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}
