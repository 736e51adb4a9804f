package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	envConfigPath = "VNCHAT_CONFIG"
	envServerHost = "VNCHAT_SERVER_HOST"
	envServerPort = "VNCHAT_SERVER_PORT"
	envUserID     = "VNCHAT_USER_ID"
)

// Defaults applied when config.json is absent or leaves fields unset. The
// client must come up with zero configuration.
const (
	DefaultUserID              = "web"
	DefaultPollIntervalSeconds = 2
	DefaultEchoTTLSeconds      = 10
	DefaultRequestTimeoutSecs  = 10
	DefaultPushRetrySeconds    = 3
	DefaultPushMaxRetries      = 5
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Client  ClientConfig  `json:"client"`
	Logging LoggingConfig `json:"logging,omitempty"`
}

// ServerConfig controls how the backend address is discovered. Host/Port,
// when both set, win over the server config document.
type ServerConfig struct {
	ConfigPath string `json:"config_path,omitempty"`
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
}

// ClientConfig carries the sync engine and transport tunables.
type ClientConfig struct {
	UserID                string     `json:"user_id,omitempty"`
	Nickname              string     `json:"nickname,omitempty"`
	SessionID             string     `json:"session_id,omitempty"`
	PollIntervalSeconds   int        `json:"poll_interval_seconds,omitempty"`
	EchoTTLSeconds        int        `json:"echo_ttl_seconds,omitempty"`
	RequestTimeoutSeconds int        `json:"request_timeout_seconds,omitempty"`
	Push                  PushConfig `json:"push"`
}

// PushConfig configures the live-update websocket channel. Push is an
// optimization over polling, so it defaults to enabled but the client
// stays correct with it off.
type PushConfig struct {
	Disabled             bool `json:"disabled,omitempty"`
	MaxRetries           int  `json:"max_retries,omitempty"`
	RetryIntervalSeconds int  `json:"retry_interval_seconds,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// LoadConfig resolves config.json, unmarshals it, applies environment
// overrides, and fills defaults. A missing file is not an error: the
// defaults alone describe a working client.
func LoadConfig() (*Config, error) {
	var cfg Config

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if host := strings.TrimSpace(os.Getenv(envServerHost)); host != "" {
		cfg.Server.Host = host
	}
	if rawPort := strings.TrimSpace(os.Getenv(envServerPort)); rawPort != "" {
		if port, err := strconv.Atoi(rawPort); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if userID := strings.TrimSpace(os.Getenv(envUserID)); userID != "" {
		cfg.Client.UserID = userID
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Client.UserID) == "" {
		cfg.Client.UserID = DefaultUserID
	}
	if strings.TrimSpace(cfg.Client.SessionID) == "" {
		cfg.Client.SessionID = "default"
	}
	if cfg.Client.PollIntervalSeconds <= 0 {
		cfg.Client.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if cfg.Client.EchoTTLSeconds <= 0 {
		cfg.Client.EchoTTLSeconds = DefaultEchoTTLSeconds
	}
	if cfg.Client.RequestTimeoutSeconds <= 0 {
		cfg.Client.RequestTimeoutSeconds = DefaultRequestTimeoutSecs
	}
	if cfg.Client.Push.MaxRetries <= 0 {
		cfg.Client.Push.MaxRetries = DefaultPushMaxRetries
	}
	if cfg.Client.Push.RetryIntervalSeconds <= 0 {
		cfg.Client.Push.RetryIntervalSeconds = DefaultPushRetrySeconds
	}
}

// findConfigPath resolves the active config file location.
//
// Precedence is VNCHAT_CONFIG first, then cwd-local fallback paths. An
// empty path with nil error means no config file exists and defaults apply.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
