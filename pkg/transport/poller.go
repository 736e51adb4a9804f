package transport

import (
	"context"
	"log/slog"
	"time"

	"vnchat/pkg/bus"
)

// Poller runs the pull channel: a fixed-interval history fetch for the
// active session, plus on-demand kicks after a switch or at startup. Each
// response is published as one SyncEvent tagged with the scope it was
// fetched for, so the engine can drop it if the session changed while the
// request was in flight.
type Poller struct {
	client   *Client
	bus      *bus.MessageBus
	interval time.Duration
	active   func() bus.Scope
	kick     chan struct{}
	log      *slog.Logger
}

func NewPoller(client *Client, messageBus *bus.MessageBus, interval time.Duration, active func() bus.Scope, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}

	return &Poller{
		client:   client,
		bus:      messageBus,
		interval: interval,
		active:   active,
		kick:     make(chan struct{}, 1),
		log:      log.With("component", "transport.poller"),
	}
}

// Refresh requests an immediate pull outside the regular cadence. Safe to
// call from any goroutine; coalesces when one is already queued.
func (p *Poller) Refresh() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run polls until the context ends. A failed fetch is absorbed: the next
// tick retries at the fixed interval, no backoff.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.kick:
			p.pollOnce(ctx)
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	scope := p.active()
	if scope.SessionID == "" {
		return
	}

	envelopes, err := p.client.Messages(ctx, scope.SessionID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.Warn("history fetch failed, retrying on next tick", "session_id", scope.SessionID, "error", err)
		return
	}

	p.bus.PublishSync(ctx, bus.SyncEvent{
		Source:     bus.SourcePull,
		Scope:      scope,
		Envelopes:  envelopes,
		ReceivedAt: time.Now().UTC(),
	})
}
