// Package echo suppresses backend reflections of messages this client has
// already rendered through an optimistic append.
package echo

import (
	"sync"
	"time"

	"vnchat/pkg/message"
)

// DefaultTTL bounds how long a pending echo stays eligible for matching.
const DefaultTTL = 10 * time.Second

type pending struct {
	fingerprint string
	createdAt   time.Time
}

// Filter tracks one pending entry per optimistic send, keyed by session and
// content fingerprint. Matching consumes the entry, so two identical sends
// need two reflections before anything shows up twice.
//
// The fingerprint match is heuristic: there is no server-assigned id to
// correlate on, only kind plus payload equality. An unexpired entry can
// swallow a legitimately identical remote message inside the TTL window.
type Filter struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string][]pending
}

func NewFilter(ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Filter{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string][]pending),
	}
}

// RecordPending registers the expectation of a backend reflection for a
// message just appended optimistically. Call it before the network send
// resolves so a fast push cannot slip past the filter.
func (f *Filter) RecordPending(sessionID string, msg message.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[sessionID] = append(f.entries[sessionID], pending{
		fingerprint: msg.Fingerprint(),
		createdAt:   f.now(),
	})
}

// ShouldSuppress reports whether an inbound message is the reflection of a
// pending optimistic send, consuming the matching entry when it is.
// Expired entries never match; they are pruned lazily on each call.
func (f *Filter) ShouldSuppress(sessionID string, msg message.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	live := f.pruneLocked(sessionID)
	if len(live) == 0 {
		return false
	}

	fingerprint := msg.Fingerprint()
	for i, entry := range live {
		if entry.fingerprint == fingerprint {
			f.entries[sessionID] = append(live[:i], live[i+1:]...)
			return true
		}
	}

	return false
}

// DropSession discards every pending entry for a session. Used on session
// switch: the optimistic copies are gone with the discarded view, so their
// reflections must come back as ordinary history.
func (f *Filter) DropSession(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, sessionID)
}

// PendingCount returns the number of unexpired entries for a session.
func (f *Filter) PendingCount(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.pruneLocked(sessionID))
}

func (f *Filter) pruneLocked(sessionID string) []pending {
	entries := f.entries[sessionID]
	if len(entries) == 0 {
		return nil
	}

	cutoff := f.now().Add(-f.ttl)
	live := entries[:0]
	for _, entry := range entries {
		if entry.createdAt.After(cutoff) {
			live = append(live, entry)
		}
	}

	if len(live) == 0 {
		delete(f.entries, sessionID)
		return nil
	}

	f.entries[sessionID] = live
	return live
}

// SetNowFunc overrides the clock. Tests only.
func (f *Filter) SetNowFunc(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}
