// Package syncengine reconciles the three sources of conversation truth,
// optimistic local echo, polled history, and pushed live updates, into
// the session store's single ordered view.
package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vnchat/pkg/bus"
	"vnchat/pkg/echo"
	"vnchat/pkg/message"
	"vnchat/pkg/session"
)

// State is the per-session sync lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateLive          State = "live"
)

// Transport is the slice of the transport adapter the engine drives.
type Transport interface {
	SetSession(scope bus.Scope)
	Refresh()
}

// sessionSync is the engine's merge bookkeeping for one session.
type sessionSync struct {
	state State

	// historyCount is the number of leading history positions already
	// merged; only envelopes beyond it are considered on a pull.
	historyCount int

	// pushSeen queues the fingerprints of history positions filled via
	// push (appended, or held by a suppressed self echo's optimistic
	// copy) that have not yet shown up in a pull, oldest first. Matching
	// the next unseen history position against the head is the
	// content+position equality that makes cross-source redelivery a
	// no-op.
	pushSeen []string

	// pullSeen mirrors pushSeen for the opposite race: fingerprints of
	// history positions filled from a pull whose push frame has not
	// arrived yet. A frame matching an entry is redelivery of a message
	// already on screen, not a new message.
	pullSeen []string
}

// pullSeenLimit bounds the redelivery window. Push frames for pulled
// messages never arrive while push is disconnected, so the queue is
// trimmed instead of growing with the conversation.
const pullSeenLimit = 32

func (ss *sessionSync) rememberPulled(fingerprint string) {
	ss.pullSeen = append(ss.pullSeen, fingerprint)
	if len(ss.pullSeen) > pullSeenLimit {
		ss.pullSeen = ss.pullSeen[len(ss.pullSeen)-pullSeenLimit:]
	}
}

// consumePulled reports whether a push frame matches a position already
// merged from a pull. Push delivers in order, so entries older than the
// match can never be matched later and are dropped with it.
func (ss *sessionSync) consumePulled(fingerprint string) bool {
	for i, fp := range ss.pullSeen {
		if fp == fingerprint {
			ss.pullSeen = ss.pullSeen[i+1:]
			return true
		}
	}

	return false
}

// Engine is the only mutator of the session store. Every mutation path
// (draining transport events in Run, user sends, session switches) runs
// under one mutex, which is the single-writer discipline that makes the
// displayed order deterministic in event-processing order.
type Engine struct {
	store     *session.Store
	filter    *echo.Filter
	bus       *bus.MessageBus
	transport Transport
	localUser string
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionSync
}

func New(store *session.Store, filter *echo.Filter, messageBus *bus.MessageBus, transport Transport, localUser string, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		store:     store,
		filter:    filter,
		bus:       messageBus,
		transport: transport,
		localUser: localUser,
		log:       log.With("component", "syncengine"),
		sessions:  make(map[string]*sessionSync),
	}
}

// Run marks the active session as loading, asks for an initial pull, and
// then drains sync events in arrival order until the context ends.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.ensureLocked(e.store.ActiveID()).state = StateLoading
	e.mu.Unlock()
	e.transport.Refresh()

	for {
		event, ok := e.bus.ConsumeSync(ctx)
		if !ok {
			return nil
		}
		e.Apply(ctx, event)
	}
}

// Apply merges one inbound sync event. Exported so one-shot flows and
// tests can drive the engine without the Run loop.
func (e *Engine) Apply(ctx context.Context, event bus.SyncEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if event.Scope.SessionID != e.store.ActiveID() || event.Scope.Generation != e.store.Generation() {
		e.log.Debug("stale result discarded",
			"source", string(event.Source),
			"session_id", event.Scope.SessionID,
			"generation", event.Scope.Generation,
		)
		return
	}

	switch event.Source {
	case bus.SourcePull:
		e.mergePullLocked(ctx, event)
	case bus.SourcePush:
		e.mergePushLocked(ctx, event)
	}
}

// SendText appends an optimistic text message to the active session and
// queues delivery. The append happens before any network activity and is
// never rolled back.
func (e *Engine) SendText(ctx context.Context, text string) {
	e.send(ctx, message.Message{Kind: message.KindText, Text: text})
}

// SendImage appends an optimistic image message and queues delivery.
func (e *Engine) SendImage(ctx context.Context, image []byte) {
	e.send(ctx, message.Message{Kind: message.KindImage, Image: image})
}

func (e *Engine) send(ctx context.Context, msg message.Message) {
	e.mu.Lock()

	sessionID := e.store.ActiveID()
	msg.ID = "local-" + uuid.NewString()
	msg.SessionID = sessionID
	msg.Origin = message.OriginSelf
	msg.SentAt = time.Now().UTC()

	e.store.Append(sessionID, msg)
	e.filter.RecordPending(sessionID, msg)
	e.mu.Unlock()

	e.notifyUpdated(ctx, sessionID)

	e.bus.PublishOutbound(ctx, bus.OutboundSend{
		SessionID: sessionID,
		Envelope:  message.ToEnvelope(msg, e.localUser),
	})
}

// SwitchSession swaps the visible session, invalidates in-flight work for
// the previous one, and starts loading the new one fresh.
func (e *Engine) SwitchSession(ctx context.Context, id string) error {
	e.mu.Lock()

	previous, err := e.store.Switch(id)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	// The optimistic copies went away with the discarded view; their
	// reflections must come back as ordinary history on the next load.
	e.filter.DropSession(previous)
	delete(e.sessions, previous)
	delete(e.sessions, id)
	e.ensureLocked(id).state = StateLoading

	scope := bus.Scope{SessionID: id, Generation: e.store.Generation()}
	e.mu.Unlock()

	e.transport.SetSession(scope)
	e.bus.PublishEvent(ctx, bus.Event{Type: bus.EventSessionSwitched, SessionID: id})

	return nil
}

// CreateSession adds a session to the catalog without switching.
func (e *Engine) CreateSession(id string, displayName string) error {
	return e.store.Create(id, displayName)
}

// DeleteSession removes a session. Deleting the active one falls back to
// the lowest-ordinal remaining session and behaves like a switch to it.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	e.mu.Lock()

	switchedTo, err := e.store.Delete(id)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	e.filter.DropSession(id)
	delete(e.sessions, id)

	if switchedTo == "" {
		e.mu.Unlock()
		return nil
	}

	delete(e.sessions, switchedTo)
	e.ensureLocked(switchedTo).state = StateLoading
	scope := bus.Scope{SessionID: switchedTo, Generation: e.store.Generation()}
	e.mu.Unlock()

	e.transport.SetSession(scope)
	e.bus.PublishEvent(ctx, bus.Event{Type: bus.EventSessionSwitched, SessionID: switchedTo})

	return nil
}

// State reports the sync lifecycle of a session.
func (e *Engine) State(id string) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ss, ok := e.sessions[id]; ok {
		return ss.state
	}

	return StateUninitialized
}

// Snapshot exposes the store's read-only view for presentation layers.
func (e *Engine) Snapshot() session.Snapshot {
	return e.store.Snapshot()
}

// Sessions lists the catalog in creation order.
func (e *Engine) Sessions() []session.Info {
	return e.store.Sessions()
}

// mergePullLocked folds a full-history batch into the store. Only
// positions beyond the per-session cursor are considered, which makes
// redelivering the same batch a no-op.
func (e *Engine) mergePullLocked(ctx context.Context, event bus.SyncEvent) {
	sessionID := event.Scope.SessionID
	ss := e.ensureLocked(sessionID)

	changed := false

	if len(event.Envelopes) < ss.historyCount {
		// The backend history regressed (cleared or trimmed). Replay it
		// from scratch rather than guessing at an alignment.
		e.log.Warn("history regressed, replaying session",
			"session_id", sessionID,
			"have", ss.historyCount,
			"got", len(event.Envelopes),
		)
		e.store.Reset(sessionID)
		e.filter.DropSession(sessionID)
		ss.historyCount = 0
		ss.pushSeen = nil
		ss.pullSeen = nil
		changed = true
	}

	for _, env := range event.Envelopes[ss.historyCount:] {
		msg := message.Normalize(env, sessionID, e.localUser, event.ReceivedAt)
		fp := msg.Fingerprint()

		if len(ss.pushSeen) > 0 && ss.pushSeen[0] == fp {
			// Already on screen via push; this position just confirms it.
			ss.pushSeen = ss.pushSeen[1:]
			continue
		}

		if msg.Origin == message.OriginSelf && e.filter.ShouldSuppress(sessionID, msg) {
			// The optimistic copy is authoritative for our own sends. It
			// still holds this history position, so a push frame carrying
			// the same reflection later must be treated as seen too.
			ss.rememberPulled(fp)
			continue
		}

		e.store.Append(sessionID, msg)
		ss.rememberPulled(fp)
		changed = true
	}
	ss.historyCount = len(event.Envelopes)

	if ss.state != StateLive {
		ss.state = StateLive
		e.bus.PublishEvent(ctx, bus.Event{Type: bus.EventSessionLive, SessionID: sessionID})
	}

	if changed {
		e.notifyUpdatedLocked(ctx, sessionID)
	}
}

// mergePushLocked folds one live frame into the store.
func (e *Engine) mergePushLocked(ctx context.Context, event bus.SyncEvent) {
	sessionID := event.Scope.SessionID
	ss := e.ensureLocked(sessionID)

	for _, env := range event.Envelopes {
		msg := message.Normalize(env, sessionID, e.localUser, event.ReceivedAt)
		fp := msg.Fingerprint()

		if msg.Origin == message.OriginSelf && e.filter.ShouldSuppress(sessionID, msg) {
			e.log.Debug("self echo suppressed", "session_id", sessionID)
			// The optimistic copy still holds this history position. The
			// next pull includes the reflection past the cursor, and must
			// confirm the position instead of appending a second copy.
			ss.pushSeen = append(ss.pushSeen, fp)
			continue
		}

		if ss.consumePulled(fp) {
			// A poll already merged this message; the frame is redelivery.
			continue
		}

		if e.store.Append(sessionID, msg) {
			ss.pushSeen = append(ss.pushSeen, fp)
			e.notifyUpdatedLocked(ctx, sessionID)
		}
	}
}

func (e *Engine) ensureLocked(sessionID string) *sessionSync {
	ss, ok := e.sessions[sessionID]
	if !ok {
		ss = &sessionSync{state: StateUninitialized}
		e.sessions[sessionID] = ss
	}

	return ss
}

func (e *Engine) notifyUpdated(ctx context.Context, sessionID string) {
	e.bus.PublishEvent(ctx, bus.Event{Type: bus.EventMessagesUpdated, SessionID: sessionID})
}

func (e *Engine) notifyUpdatedLocked(ctx context.Context, sessionID string) {
	// Event fan-out never blocks, so publishing under the mutex is fine.
	e.bus.PublishEvent(ctx, bus.Event{Type: bus.EventMessagesUpdated, SessionID: sessionID})
}
