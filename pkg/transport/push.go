package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"vnchat/pkg/bus"
	"vnchat/pkg/config"
	"vnchat/pkg/message"
)

const dialHandshakeTimeout = 10 * time.Second

// Pusher runs the live-update channel: one websocket connection scoped to
// the active session, delivering the same envelope shape as the pull
// endpoint, one message per frame.
//
// Push is an optimization, not a dependency. When the connection cannot be
// (re)established within the bounded retry budget the pusher goes quiet
// and the poller remains the sole source of truth.
type Pusher struct {
	addr          config.Address
	bus           *bus.MessageBus
	maxRetries    int
	retryInterval time.Duration
	scopeCh       chan bus.Scope
	log           *slog.Logger
}

func NewPusher(addr config.Address, messageBus *bus.MessageBus, cfg config.PushConfig, log *slog.Logger) *Pusher {
	if log == nil {
		log = slog.Default()
	}

	return &Pusher{
		addr:          addr,
		bus:           messageBus,
		maxRetries:    cfg.MaxRetries,
		retryInterval: time.Duration(cfg.RetryIntervalSeconds) * time.Second,
		scopeCh:       make(chan bus.Scope, 1),
		log:           log.With("component", "transport.pusher"),
	}
}

// SetSession redirects the live channel to another session view. The
// previous connection is torn down; frames still in flight for it carry
// the old scope and are discarded downstream.
func (p *Pusher) SetSession(scope bus.Scope) {
	for {
		select {
		case p.scopeCh <- scope:
			return
		default:
			// Replace a queued, never-applied switch with the newest target.
			select {
			case <-p.scopeCh:
			default:
			}
		}
	}
}

// Run maintains the connection for the current session until the context
// ends, re-dialing across session switches.
func (p *Pusher) Run(ctx context.Context, initial bus.Scope) error {
	scope := initial

	for {
		sessCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			p.runSession(sessCtx, scope)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		case next := <-p.scopeCh:
			cancel()
			<-done
			scope = next
		}
	}
}

// runSession dials and reads frames for one session, reconnecting with a
// fixed delay until maxRetries consecutive failures.
func (p *Pusher) runSession(ctx context.Context, scope bus.Scope) {
	sessionID := scope.SessionID
	failures := 0

	for failures <= p.maxRetries {
		if ctx.Err() != nil {
			return
		}

		dialer := websocket.Dialer{HandshakeTimeout: dialHandshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, p.addr.PushURL(sessionID), nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			p.log.Debug("live channel dial failed", "session_id", sessionID, "attempt", failures, "error", err)
			if !sleepCtx(ctx, p.retryInterval) {
				return
			}
			continue
		}

		failures = 0
		p.log.Info("live channel connected", "session_id", sessionID)
		p.publishState(ctx, sessionID, true)

		p.readFrames(ctx, conn, scope)

		p.publishState(ctx, sessionID, false)
		if ctx.Err() != nil {
			return
		}

		failures++
		p.log.Warn("live channel disconnected, reconnecting", "session_id", sessionID)
		if !sleepCtx(ctx, p.retryInterval) {
			return
		}
	}

	p.log.Warn("live channel unavailable, degrading to polling", "session_id", sessionID)
}

func (p *Pusher) readFrames(ctx context.Context, conn *websocket.Conn, scope bus.Scope) {
	defer conn.Close()

	// Unblock the pending read when the session context is cancelled.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var env message.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Debug("live channel read failed", "session_id", scope.SessionID, "error", err)
			}
			return
		}

		p.bus.PublishSync(ctx, bus.SyncEvent{
			Source:     bus.SourcePush,
			Scope:      scope,
			Envelopes:  []message.Envelope{env},
			ReceivedAt: time.Now().UTC(),
		})
	}
}

func (p *Pusher) publishState(ctx context.Context, sessionID string, connected bool) {
	state := "disconnected"
	if connected {
		state = "connected"
	}

	p.bus.PublishEvent(ctx, bus.Event{
		Type:      bus.EventPushState,
		SessionID: sessionID,
		Payload:   map[string]string{"state": state},
	})
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
