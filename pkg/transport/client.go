package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"vnchat/pkg/config"
	"vnchat/pkg/message"
)

// Client talks to the visual-novel backend's HTTP API. The message
// endpoints feed the sync core; the scene, avatar, theme, api-key, and
// database endpoints are plain boundary passthroughs.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
}

type standardResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type urlDoc struct {
	URL string `json:"url"`
}

// Persona is one side's display identity in the avatar configuration.
type Persona struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// AvatarConfig pairs the user and bot personas.
type AvatarConfig struct {
	User Persona `json:"user"`
	Bot  Persona `json:"bot"`
}

func NewClient(addr config.Address, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL:        addr.BaseURL(),
		httpClient:     &http.Client{},
		requestTimeout: requestTimeout,
	}
}

// Messages fetches the full history of one session, oldest first.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]message.Envelope, error) {
	log := clientLogger().With("operation", "messages", "session_id", sessionID)
	startedAt := time.Now()
	log.Debug("backend request started")

	var envelopes []message.Envelope
	if err := c.getJSON(ctx, "/messages", sessionID, &envelopes); err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "count", len(envelopes))
	return envelopes, nil
}

// Send posts one outbound envelope. Delivery is at-least-once: callers
// keep the optimistic copy on screen whatever happens here.
func (c *Client) Send(ctx context.Context, sessionID string, env message.Envelope) error {
	log := clientLogger().With("operation", "send", "session_id", sessionID)
	startedAt := time.Now()
	log.Debug("backend request started", "kind", env.Type)

	var ack standardResponse
	if err := c.postJSON(ctx, "/send_message", sessionID, env, &ack); err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Errorf("send message: %w", err)
	}
	if !ack.Success {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", ack.Message)
		return fmt.Errorf("send message rejected: %s", ack.Message)
	}

	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds())
	return nil
}

// Background returns the configured backdrop URL for a session.
func (c *Client) Background(ctx context.Context, sessionID string) (string, error) {
	var doc urlDoc
	if err := c.getJSON(ctx, "/background", sessionID, &doc); err != nil {
		return "", fmt.Errorf("fetch background: %w", err)
	}
	return doc.URL, nil
}

func (c *Client) SetBackground(ctx context.Context, sessionID string, backgroundURL string) error {
	return c.postAck(ctx, "/background", sessionID, urlDoc{URL: backgroundURL})
}

// Sprite returns the configured character sprite URL for a session.
func (c *Client) Sprite(ctx context.Context, sessionID string) (string, error) {
	var doc urlDoc
	if err := c.getJSON(ctx, "/sprite", sessionID, &doc); err != nil {
		return "", fmt.Errorf("fetch sprite: %w", err)
	}
	return doc.URL, nil
}

func (c *Client) SetSprite(ctx context.Context, sessionID string, spriteURL string) error {
	return c.postAck(ctx, "/sprite", sessionID, urlDoc{URL: spriteURL})
}

func (c *Client) AvatarConfig(ctx context.Context, sessionID string) (AvatarConfig, error) {
	var cfg AvatarConfig
	if err := c.getJSON(ctx, "/avatar_config", sessionID, &cfg); err != nil {
		return AvatarConfig{}, fmt.Errorf("fetch avatar config: %w", err)
	}
	return cfg, nil
}

func (c *Client) SetAvatarConfig(ctx context.Context, sessionID string, cfg AvatarConfig) error {
	return c.postAck(ctx, "/avatar_config", sessionID, cfg)
}

func (c *Client) Theme(ctx context.Context) (string, error) {
	var doc struct {
		Theme string `json:"theme"`
	}
	if err := c.getJSON(ctx, "/theme", "", &doc); err != nil {
		return "", fmt.Errorf("fetch theme: %w", err)
	}
	return doc.Theme, nil
}

func (c *Client) SetTheme(ctx context.Context, theme string) error {
	return c.postAck(ctx, "/theme", "", map[string]string{"theme": theme})
}

func (c *Client) APIKeys(ctx context.Context) (map[string]string, error) {
	var keys map[string]string
	if err := c.getJSON(ctx, "/api_keys", "", &keys); err != nil {
		return nil, fmt.Errorf("fetch api keys: %w", err)
	}
	return keys, nil
}

func (c *Client) SetAPIKey(ctx context.Context, key string, value string) error {
	return c.postAck(ctx, "/api_key", "", map[string]string{"key": key, "value": value})
}

// ClearData asks the backend to wipe stored conversation data.
func (c *Client) ClearData(ctx context.Context) error {
	return c.postAck(ctx, "/database/clear", "", nil)
}

// DropDatabase asks the backend to delete its database outright.
func (c *Client) DropDatabase(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/database", "", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, sessionID string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, sessionID, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, sessionID string, body any, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, sessionID, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postAck(ctx context.Context, path string, sessionID string, body any) error {
	var ack standardResponse
	if err := c.postJSON(ctx, path, sessionID, body, &ack); err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	if !ack.Success {
		return fmt.Errorf("post %s rejected: %s", path, ack.Message)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method string, path string, sessionID string, body any) (*http.Request, error) {
	endpoint := c.baseURL + path
	if sessionID != "" {
		endpoint += "?session_id=" + url.QueryEscape(sessionID)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	ctx, cancel := c.withTimeout(req.Context())
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func clientLogger() *slog.Logger {
	return slog.Default().With("component", "transport.client")
}
