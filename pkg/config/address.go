package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Fallback backend address used when no server config document is found.
const (
	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8050

	defaultServerConfigPath = "server_config.json"
)

// Address is the immutable backend location resolved once at startup.
// Nothing re-derives it afterwards.
type Address struct {
	Host string
	Port int
}

type serverConfigDoc struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// BaseURL returns the HTTP root for the pull and send endpoints.
func (a Address) BaseURL() string {
	return "http://" + a.Host + ":" + strconv.Itoa(a.Port)
}

// PushURL returns the websocket endpoint for one session's live channel.
func (a Address) PushURL(sessionID string) string {
	return fmt.Sprintf("ws://%s:%d/ws/%s", a.Host, a.Port, sessionID)
}

// ResolveAddress discovers the backend address: an explicit host/port in
// config wins, then the server config document, then the hardcoded
// default. Absence or malformed content never fails: the fallback
// address is always usable.
func ResolveAddress(cfg *Config, log *slog.Logger) Address {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "config.address")

	if cfg != nil && strings.TrimSpace(cfg.Server.Host) != "" && cfg.Server.Port > 0 {
		return Address{Host: strings.TrimSpace(cfg.Server.Host), Port: cfg.Server.Port}
	}

	path := defaultServerConfigPath
	if cfg != nil && strings.TrimSpace(cfg.Server.ConfigPath) != "" {
		path = strings.TrimSpace(cfg.Server.ConfigPath)
	}

	fallback := Address{Host: DefaultServerHost, Port: DefaultServerPort}

	content, err := os.ReadFile(path)
	if err != nil {
		log.Debug("server config document unavailable, using default address", "path", path, "error", err)
		return fallback
	}

	var doc serverConfigDoc
	if err := json.Unmarshal(content, &doc); err != nil {
		log.Warn("server config document malformed, using default address", "path", path, "error", err)
		return fallback
	}

	if strings.TrimSpace(doc.Host) == "" || doc.Port <= 0 {
		log.Warn("server config document incomplete, using default address", "path", path)
		return fallback
	}

	return Address{Host: strings.TrimSpace(doc.Host), Port: doc.Port}
}
