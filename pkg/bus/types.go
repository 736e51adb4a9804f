package bus

import (
	"time"

	"vnchat/pkg/message"
)

// Source names the transport mechanism that produced a sync event.
type Source string

const (
	SourcePull Source = "pull"
	SourcePush Source = "push"
)

// Scope identifies the session view a piece of transport work was issued
// for. The generation bumps on every switch, so a response scoped to an
// older generation is stale even when the session id matches again.
type Scope struct {
	SessionID  string
	Generation uint64
}

// SyncEvent is one inbound delivery from a transport channel. A pull event
// carries the full history batch fetched for the session; a push event
// carries exactly one envelope. The scope records which session view the
// request was issued for, so late arrivals after a switch can be discarded.
type SyncEvent struct {
	Source     Source
	Scope      Scope
	Envelopes  []message.Envelope
	ReceivedAt time.Time
}

// OutboundSend is one message queued for delivery to the backend. The
// optimistic copy is already on screen by the time this is published.
type OutboundSend struct {
	SessionID string
	Envelope  message.Envelope
}
