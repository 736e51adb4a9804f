package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vnchat/pkg/bus"
	"vnchat/pkg/config"
	"vnchat/pkg/message"
)

func pushTestServer(t *testing.T, handler func(sessionID string, conn *websocket.Conn)) config.Address {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ws/") {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(strings.TrimPrefix(r.URL.Path, "/ws/"), conn)
	}))
	t.Cleanup(srv.Close)

	parsed, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}

	return config.Address{Host: parsed.Hostname(), Port: port}
}

func TestPusherDeliversFramesWithScope(t *testing.T) {
	addr := pushTestServer(t, func(sessionID string, conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(message.Envelope{FromUser: "bot", Type: "text", Text: "pushed"})
		// Keep the connection open so the pusher does not reconnect.
		_, _, _ = conn.ReadMessage()
	})

	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	pusher := NewPusher(addr, mb, config.PushConfig{MaxRetries: 2, RetryIntervalSeconds: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	scope := bus.Scope{SessionID: "default", Generation: 4}
	go func() { _ = pusher.Run(ctx, scope) }()

	deadline := time.After(5 * time.Second)
	for {
		consumeCtx, consumeCancel := context.WithTimeout(ctx, 5*time.Second)
		event, ok := mb.ConsumeSync(consumeCtx)
		consumeCancel()
		if !ok {
			t.Fatal("no push event arrived")
		}

		if event.Source != bus.SourcePush {
			t.Fatalf("source = %q, want push", event.Source)
		}
		if event.Scope != scope {
			t.Fatalf("scope = %+v, want %+v", event.Scope, scope)
		}
		if len(event.Envelopes) == 1 && event.Envelopes[0].Text == "pushed" {
			return
		}

		select {
		case <-deadline:
			t.Fatalf("unexpected event %+v", event)
		default:
		}
	}
}

func TestPusherSwitchesSessions(t *testing.T) {
	sessions := make(chan string, 4)
	addr := pushTestServer(t, func(sessionID string, conn *websocket.Conn) {
		sessions <- sessionID
		_, _, _ = conn.ReadMessage()
		conn.Close()
	})

	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	pusher := NewPusher(addr, mb, config.PushConfig{MaxRetries: 2, RetryIntervalSeconds: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = pusher.Run(ctx, bus.Scope{SessionID: "default"}) }()

	select {
	case got := <-sessions:
		if got != "default" {
			t.Fatalf("first session = %q, want %q", got, "default")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pusher never connected")
	}

	pusher.SetSession(bus.Scope{SessionID: "work", Generation: 1})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-sessions:
			if got == "work" {
				return
			}
		case <-deadline:
			t.Fatal("pusher never redialed the new session")
		}
	}
}

func TestPusherGivesUpAfterRetryBudget(t *testing.T) {
	// No server listening: every dial fails.
	addr := config.Address{Host: "127.0.0.1", Port: 1}

	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	pusher := NewPusher(addr, mb, config.PushConfig{MaxRetries: 1, RetryIntervalSeconds: 1}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pusher.runSession(ctx, bus.Scope{SessionID: "default"})
	}()

	select {
	case <-done:
		if ctx.Err() != nil {
			t.Fatal("runSession should give up before the context deadline")
		}
	case <-time.After(9 * time.Second):
		t.Fatal("runSession did not stop after exhausting retries")
	}
}

func TestSetSessionReplacesQueuedSwitch(t *testing.T) {
	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	pusher := NewPusher(config.Address{Host: "127.0.0.1", Port: 1}, mb, config.PushConfig{MaxRetries: 1, RetryIntervalSeconds: 1}, nil)

	pusher.SetSession(bus.Scope{SessionID: "a"})
	pusher.SetSession(bus.Scope{SessionID: "b"})
	pusher.SetSession(bus.Scope{SessionID: "c"})

	select {
	case scope := <-pusher.scopeCh:
		if scope.SessionID != "c" {
			t.Fatalf("queued scope = %q, want the newest target", scope.SessionID)
		}
	default:
		t.Fatal("expected a queued scope")
	}
}
