package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"vnchat/pkg/bus"
	"vnchat/pkg/config"
)

// Adapter owns the delivery mechanisms for the active session: the pull
// poller, the optional push connection, and the outbound sender. It
// exposes them as one unit with start/stop and session redirection; the
// unified inbound stream is the bus's sync queue.
type Adapter struct {
	client *Client
	poller *Poller
	pusher *Pusher
	sender *Sender
	active atomic.Value
	log    *slog.Logger
}

func NewAdapter(addr config.Address, messageBus *bus.MessageBus, clientCfg config.ClientConfig, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}

	a := &Adapter{
		client: NewClient(addr, time.Duration(clientCfg.RequestTimeoutSeconds)*time.Second),
		log:    log.With("component", "transport.adapter"),
	}
	a.active.Store(bus.Scope{SessionID: clientCfg.SessionID})

	a.poller = NewPoller(a.client, messageBus, time.Duration(clientCfg.PollIntervalSeconds)*time.Second, a.ActiveScope, log)
	a.sender = NewSender(a.client, messageBus, log)
	if !clientCfg.Push.Disabled {
		a.pusher = NewPusher(addr, messageBus, clientCfg.Push, log)
	}

	return a
}

// Client exposes the underlying HTTP client for boundary operations.
func (a *Adapter) Client() *Client {
	return a.client
}

// ActiveScope returns the session view the transports currently serve.
func (a *Adapter) ActiveScope() bus.Scope {
	scope, _ := a.active.Load().(bus.Scope)
	return scope
}

// SetSession redirects pull and push to another session view and triggers
// an immediate fresh load. In-flight work for the previous view is not
// cancelled at the network level; its results arrive tagged with the old
// scope and are discarded by the engine.
func (a *Adapter) SetSession(scope bus.Scope) {
	a.active.Store(scope)
	if a.pusher != nil {
		a.pusher.SetSession(scope)
	}
	a.poller.Refresh()
}

// Refresh requests an immediate pull for the active session.
func (a *Adapter) Refresh() {
	a.poller.Refresh()
}

// Run starts the transport workers and blocks until the context ends or
// one of them fails unexpectedly.
func (a *Adapter) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	workers := 2
	if a.pusher != nil {
		workers = 3
	}
	errCh := make(chan error, workers)

	go func() {
		if err := a.poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("run poller: %w", err)
		}
	}()
	go func() {
		if err := a.sender.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("run sender: %w", err)
		}
	}()
	if a.pusher != nil {
		go func() {
			if err := a.pusher.Run(ctx, a.ActiveScope()); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run pusher: %w", err)
			}
		}()
	}

	a.log.Info("Transport adapter started", "session_id", a.ActiveScope().SessionID, "push_enabled", a.pusher != nil)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
