package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"vnchat/pkg/config"
	"vnchat/pkg/message"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	parsed, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}

	return NewClient(config.Address{Host: parsed.Hostname(), Port: port}, 2*time.Second)
}

func TestMessages(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q, want /messages", r.URL.Path)
		}
		if got := r.URL.Query().Get("session_id"); got != "default" {
			t.Errorf("session_id = %q, want %q", got, "default")
		}
		_ = json.NewEncoder(w).Encode([]message.Envelope{
			{FromUser: "web", Type: "text", Text: "hi"},
			{FromUser: "bot", Type: "text", Text: "hello!"},
		})
	}))

	envelopes, err := client.Messages(context.Background(), "default")
	if err != nil {
		t.Fatalf("Messages error: %v", err)
	}
	if len(envelopes) != 2 {
		t.Fatalf("envelopes = %d, want 2", len(envelopes))
	}
	if envelopes[1].FromUser != "bot" || envelopes[1].Text != "hello!" {
		t.Fatalf("envelope[1] = %+v", envelopes[1])
	}
}

func TestMessagesServerError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	if _, err := client.Messages(context.Background(), "default"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestSend(t *testing.T) {
	var received message.Envelope
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/send_message" {
			t.Errorf("request = %s %s, want POST /send_message", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("session_id"); got != "work" {
			t.Errorf("session_id = %q, want %q", got, "work")
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))

	env := message.Envelope{FromUser: "web", Type: "text", Text: "hi"}
	if err := client.Send(context.Background(), "work", env); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if received != env {
		t.Fatalf("received = %+v, want %+v", received, env)
	}
}

func TestSendRejected(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "session missing"})
	}))

	err := client.Send(context.Background(), "default", message.Envelope{FromUser: "web", Text: "hi"})
	if err == nil {
		t.Fatal("expected error for rejected send")
	}
}

func TestSceneEndpoints(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/background":
			_ = json.NewEncoder(w).Encode(map[string]string{"url": "http://cdn/bg.png"})
		case "/sprite":
			_ = json.NewEncoder(w).Encode(map[string]string{"url": "http://cdn/sprite.png"})
		case "/theme":
			_ = json.NewEncoder(w).Encode(map[string]string{"theme": "sakura"})
		case "/avatar_config":
			_ = json.NewEncoder(w).Encode(AvatarConfig{
				User: Persona{Name: "Alice"},
				Bot:  Persona{Name: "Yuki"},
			})
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()

	background, err := client.Background(ctx, "default")
	if err != nil || background != "http://cdn/bg.png" {
		t.Fatalf("Background = %q, %v", background, err)
	}

	sprite, err := client.Sprite(ctx, "default")
	if err != nil || sprite != "http://cdn/sprite.png" {
		t.Fatalf("Sprite = %q, %v", sprite, err)
	}

	theme, err := client.Theme(ctx)
	if err != nil || theme != "sakura" {
		t.Fatalf("Theme = %q, %v", theme, err)
	}

	avatars, err := client.AvatarConfig(ctx, "default")
	if err != nil {
		t.Fatalf("AvatarConfig error: %v", err)
	}
	if avatars.User.Name != "Alice" || avatars.Bot.Name != "Yuki" {
		t.Fatalf("avatars = %+v", avatars)
	}
}

func TestSetBackgroundPostsAck(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/background" {
			t.Errorf("request = %s %s, want POST /background", r.Method, r.URL.Path)
		}
		var doc map[string]string
		_ = json.NewDecoder(r.Body).Decode(&doc)
		if doc["url"] != "http://cdn/new.png" {
			t.Errorf("url = %q", doc["url"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))

	if err := client.SetBackground(context.Background(), "default", "http://cdn/new.png"); err != nil {
		t.Fatalf("SetBackground error: %v", err)
	}
}

func TestAPIKeys(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api_keys" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]string{"openai": "sk-123"})
		case r.URL.Path == "/api_key" && r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			http.NotFound(w, r)
		}
	}))

	keys, err := client.APIKeys(context.Background())
	if err != nil {
		t.Fatalf("APIKeys error: %v", err)
	}
	if keys["openai"] != "sk-123" {
		t.Fatalf("keys = %v", keys)
	}

	if err := client.SetAPIKey(context.Background(), "openai", "sk-456"); err != nil {
		t.Fatalf("SetAPIKey error: %v", err)
	}
}

func TestDatabaseOperations(t *testing.T) {
	var clearCalled, dropCalled bool
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/database/clear" && r.Method == http.MethodPost:
			clearCalled = true
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		case r.URL.Path == "/database" && r.Method == http.MethodDelete:
			dropCalled = true
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))

	if err := client.ClearData(context.Background()); err != nil {
		t.Fatalf("ClearData error: %v", err)
	}
	if err := client.DropDatabase(context.Background()); err != nil {
		t.Fatalf("DropDatabase error: %v", err)
	}
	if !clearCalled || !dropCalled {
		t.Fatalf("clear = %v, drop = %v, want both", clearCalled, dropCalled)
	}
}

func TestRequestTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	parsed, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(parsed.Port())
	client := NewClient(config.Address{Host: parsed.Hostname(), Port: port}, 50*time.Millisecond)

	start := time.Now()
	_, err := client.Messages(context.Background(), "default")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("request took %v, timeout not applied", elapsed)
	}
}
