package transport

import (
	"context"
	"log/slog"

	"vnchat/pkg/bus"
)

// Sender drains the outbound queue and posts each message to the backend.
//
// A failed send is reported as a notification and nothing else: the
// optimistic copy already on screen is never retracted.
type Sender struct {
	client *Client
	bus    *bus.MessageBus
	log    *slog.Logger
}

func NewSender(client *Client, messageBus *bus.MessageBus, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}

	return &Sender{
		client: client,
		bus:    messageBus,
		log:    log.With("component", "transport.sender"),
	}
}

func (s *Sender) Run(ctx context.Context) error {
	for {
		send, ok := s.bus.ConsumeOutbound(ctx)
		if !ok {
			return nil
		}

		if err := s.client.Send(ctx, send.SessionID, send.Envelope); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("send failed, optimistic message left in place", "session_id", send.SessionID, "error", err)
			s.bus.PublishEvent(ctx, bus.Event{
				Type:      bus.EventSendFailed,
				SessionID: send.SessionID,
				Error:     err.Error(),
			})
		}
	}
}
