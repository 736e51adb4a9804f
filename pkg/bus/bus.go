package bus

import (
	"context"
	"sync"
)

const defaultBufferSize = 100

// MessageBus carries the two work queues of the sync pipeline plus a
// fan-out notification stream.
//
// Transports publish SyncEvents which the sync engine drains in arrival
// order; the engine publishes OutboundSends which the transport sender
// drains. Notifications go to every subscriber and are dropped rather than
// blocking a publisher.
type MessageBus struct {
	sync     chan SyncEvent
	outbound chan OutboundSend

	eventSubscribers      map[uint64]chan Event
	nextEventSubscriberID uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		sync:             make(chan SyncEvent, defaultBufferSize),
		outbound:         make(chan OutboundSend, defaultBufferSize),
		eventSubscribers: make(map[uint64]chan Event),
		done:             make(chan struct{}),
	}
}

func (mb *MessageBus) PublishSync(ctx context.Context, event SyncEvent) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	case mb.sync <- event:
		return true
	}
}

func (mb *MessageBus) ConsumeSync(ctx context.Context) (SyncEvent, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return SyncEvent{}, false
	case <-mb.done:
		return SyncEvent{}, false
	case event := <-mb.sync:
		return event, true
	}
}

func (mb *MessageBus) PublishOutbound(ctx context.Context, send OutboundSend) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	case mb.outbound <- send:
		return true
	}
}

func (mb *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundSend, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return OutboundSend{}, false
	case <-mb.done:
		return OutboundSend{}, false
	case send := <-mb.outbound:
		return send, true
	}
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)

		mb.mu.Lock()
		for id, ch := range mb.eventSubscribers {
			close(ch)
			delete(mb.eventSubscribers, id)
		}
		mb.mu.Unlock()
	})
}
