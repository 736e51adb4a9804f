package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "server": {"host": "chat.internal", "port": 9000},
	  "client": {
	    "user_id": "alice",
	    "nickname": "Alice",
	    "session_id": "work",
	    "poll_interval_seconds": 5,
	    "push": {"disabled": true}
	  },
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("VNCHAT_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Server.Host != "chat.internal" || cfg.Server.Port != 9000 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Client.UserID != "alice" {
		t.Fatalf("user_id = %q, want %q", cfg.Client.UserID, "alice")
	}
	if cfg.Client.SessionID != "work" {
		t.Fatalf("session_id = %q, want %q", cfg.Client.SessionID, "work")
	}
	if cfg.Client.PollIntervalSeconds != 5 {
		t.Fatalf("poll_interval_seconds = %d, want 5", cfg.Client.PollIntervalSeconds)
	}
	if !cfg.Client.Push.Disabled {
		t.Fatal("push.disabled = false, want true")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv("VNCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("VNCHAT_CONFIG", "")
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Client.UserID != DefaultUserID {
		t.Fatalf("user_id = %q, want %q", cfg.Client.UserID, DefaultUserID)
	}
	if cfg.Client.SessionID != "default" {
		t.Fatalf("session_id = %q, want %q", cfg.Client.SessionID, "default")
	}
	if cfg.Client.PollIntervalSeconds != DefaultPollIntervalSeconds {
		t.Fatalf("poll_interval_seconds = %d, want %d", cfg.Client.PollIntervalSeconds, DefaultPollIntervalSeconds)
	}
	if cfg.Client.EchoTTLSeconds != DefaultEchoTTLSeconds {
		t.Fatalf("echo_ttl_seconds = %d, want %d", cfg.Client.EchoTTLSeconds, DefaultEchoTTLSeconds)
	}
	if cfg.Client.Push.Disabled {
		t.Fatal("push should be enabled by default")
	}
	if cfg.Client.Push.MaxRetries != DefaultPushMaxRetries {
		t.Fatalf("push.max_retries = %d, want %d", cfg.Client.Push.MaxRetries, DefaultPushMaxRetries)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VNCHAT_CONFIG", "")
	t.Chdir(t.TempDir())
	t.Setenv("VNCHAT_SERVER_HOST", "10.0.0.5")
	t.Setenv("VNCHAT_SERVER_PORT", "8123")
	t.Setenv("VNCHAT_USER_ID", "bob")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Server.Host != "10.0.0.5" || cfg.Server.Port != 8123 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Client.UserID != "bob" {
		t.Fatalf("user_id = %q, want %q", cfg.Client.UserID, "bob")
	}
}

func TestEnvOverrideIgnoresBadPort(t *testing.T) {
	t.Setenv("VNCHAT_CONFIG", "")
	t.Chdir(t.TempDir())
	t.Setenv("VNCHAT_SERVER_PORT", "not-a-port")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Server.Port != 0 {
		t.Fatalf("port = %d, want 0", cfg.Server.Port)
	}
}
