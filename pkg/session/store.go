// Package session holds the catalog of known chat sessions and the message
// list of the one currently on screen.
package session

import (
	"errors"
	"strconv"
	"sync"

	"vnchat/pkg/message"
)

// DefaultSessionID is the session every fresh client starts in.
const DefaultSessionID = "default"

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrSessionExists  = errors.New("session already exists")
	ErrLastSession    = errors.New("cannot delete the last session")
)

// Info describes one catalog entry.
type Info struct {
	ID          string
	DisplayName string
	ordinal     int
}

// Snapshot is a read-only copy of the visible conversation handed to
// presentation layers.
type Snapshot struct {
	ActiveID   string
	Generation uint64
	Messages   []message.Message
}

// Store is the single piece of mutable shared conversation state. Only the
// sync engine writes to it; everything else reads snapshots.
//
// Inactive sessions keep no message list: switching discards the view and
// the new session is reloaded fresh from the pull channel. The generation
// counter bumps on every switch and tags stale in-flight work.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]Info
	order       []string
	activeID    string
	generation  uint64
	messages    []message.Message
	nextSeq     uint64
	nextOrdinal int
}

// NewStore creates a store with the default session active.
func NewStore() *Store {
	s := &Store{
		sessions: make(map[string]Info),
	}
	s.sessions[DefaultSessionID] = Info{ID: DefaultSessionID, DisplayName: DefaultSessionID, ordinal: 0}
	s.order = []string{DefaultSessionID}
	s.activeID = DefaultSessionID
	s.nextOrdinal = 1

	return s
}

// ActiveID returns the id of the session currently on screen.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeID
}

// Generation returns the current staleness tag. Results produced for an
// older generation must be discarded, never merged.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.generation
}

// Switch atomically swaps the active session and discards the displayed
// message list. It reports the previous active id so callers can
// invalidate transports scoped to it.
func (s *Store) Switch(id string) (previous string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return "", ErrUnknownSession
	}

	previous = s.activeID
	s.activeID = id
	s.generation++
	s.messages = nil
	s.nextSeq = 0

	return previous, nil
}

// Append adds a message to the visible list iff it belongs to the session
// that is active at the time of the call. Stale appends are silent no-ops,
// not errors and not queued.
func (s *Store) Append(sessionID string, msg message.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != s.activeID {
		return false
	}

	if msg.ID == "" {
		// Remote envelopes carry no native id; the append sequence stands in.
		msg.ID = "seq-" + strconv.FormatUint(s.nextSeq, 10)
	}
	s.nextSeq++

	msg.SessionID = sessionID
	s.messages = append(s.messages, msg)

	return true
}

// Reset drops the visible list of the active session without switching.
// Used when the backend history regresses and has to be replayed.
func (s *Store) Reset(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != s.activeID {
		return false
	}

	s.messages = nil
	s.nextSeq = 0

	return true
}

// Create adds a session to the catalog without switching to it.
func (s *Store) Create(id string, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		return ErrUnknownSession
	}
	if _, ok := s.sessions[id]; ok {
		return ErrSessionExists
	}
	if displayName == "" {
		displayName = id
	}

	s.sessions[id] = Info{ID: id, DisplayName: displayName, ordinal: s.nextOrdinal}
	s.nextOrdinal++
	s.order = append(s.order, id)

	return nil
}

// Delete removes a session from the catalog. Deleting the active session
// switches to the lowest-ordinal remaining one and reports its id.
func (s *Store) Delete(id string) (switchedTo string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return "", ErrUnknownSession
	}
	if len(s.sessions) == 1 {
		return "", ErrLastSession
	}

	delete(s.sessions, id)
	for i, known := range s.order {
		if known == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if s.activeID != id {
		return "", nil
	}

	fallback := s.lowestOrdinalLocked()
	s.activeID = fallback
	s.generation++
	s.messages = nil
	s.nextSeq = 0

	return fallback, nil
}

// Sessions lists the catalog in creation order.
func (s *Store) Sessions() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Info, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id])
	}

	return out
}

// Snapshot copies the visible conversation for a reader.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]message.Message, len(s.messages))
	copy(msgs, s.messages)

	return Snapshot{
		ActiveID:   s.activeID,
		Generation: s.generation,
		Messages:   msgs,
	}
}

// MessageCount returns the number of visible messages.
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}

func (s *Store) lowestOrdinalLocked() string {
	best := ""
	bestOrdinal := -1
	for id, info := range s.sessions {
		if bestOrdinal == -1 || info.ordinal < bestOrdinal {
			best = id
			bestOrdinal = info.ordinal
		}
	}

	return best
}
