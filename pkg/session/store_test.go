package session

import (
	"errors"
	"testing"

	"vnchat/pkg/message"
)

func textMsg(text string) message.Message {
	return message.Message{Kind: message.KindText, Text: text}
}

func TestNewStoreStartsInDefaultSession(t *testing.T) {
	store := NewStore()

	if store.ActiveID() != DefaultSessionID {
		t.Fatalf("active = %q, want %q", store.ActiveID(), DefaultSessionID)
	}
	if store.Generation() != 0 {
		t.Fatalf("generation = %d, want 0", store.Generation())
	}
	if store.MessageCount() != 0 {
		t.Fatalf("messages = %d, want 0", store.MessageCount())
	}
}

func TestAppendOnlyToActiveSession(t *testing.T) {
	store := NewStore()
	if err := store.Create("other", ""); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if !store.Append(DefaultSessionID, textMsg("hi")) {
		t.Fatal("append to active session should succeed")
	}
	if store.Append("other", textMsg("stray")) {
		t.Fatal("append to inactive session must be a no-op")
	}
	if store.Append("nonexistent", textMsg("stray")) {
		t.Fatal("append to unknown session must be a no-op")
	}
	if store.MessageCount() != 1 {
		t.Fatalf("messages = %d, want 1", store.MessageCount())
	}
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	store := NewStore()
	store.Append(DefaultSessionID, textMsg("one"))
	store.Append(DefaultSessionID, message.Message{ID: "local-abc", Kind: message.KindText, Text: "two"})
	store.Append(DefaultSessionID, textMsg("three"))

	snap := store.Snapshot()
	if len(snap.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(snap.Messages))
	}
	if snap.Messages[0].ID != "seq-0" {
		t.Fatalf("id[0] = %q, want %q", snap.Messages[0].ID, "seq-0")
	}
	if snap.Messages[1].ID != "local-abc" {
		t.Fatalf("id[1] = %q, want %q", snap.Messages[1].ID, "local-abc")
	}
	if snap.Messages[2].ID != "seq-2" {
		t.Fatalf("id[2] = %q, want %q", snap.Messages[2].ID, "seq-2")
	}
}

func TestSwitchDiscardsMessagesAndBumpsGeneration(t *testing.T) {
	store := NewStore()
	if err := store.Create("work", "Work"); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	store.Append(DefaultSessionID, textMsg("hi"))

	previous, err := store.Switch("work")
	if err != nil {
		t.Fatalf("Switch error: %v", err)
	}
	if previous != DefaultSessionID {
		t.Fatalf("previous = %q, want %q", previous, DefaultSessionID)
	}
	if store.ActiveID() != "work" {
		t.Fatalf("active = %q, want %q", store.ActiveID(), "work")
	}
	if store.Generation() != 1 {
		t.Fatalf("generation = %d, want 1", store.Generation())
	}
	if store.MessageCount() != 0 {
		t.Fatalf("messages = %d, want 0 after switch", store.MessageCount())
	}
}

func TestSwitchBackDoesNotRestoreMessages(t *testing.T) {
	store := NewStore()
	if err := store.Create("work", ""); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	store.Append(DefaultSessionID, textMsg("hi"))

	if _, err := store.Switch("work"); err != nil {
		t.Fatalf("Switch error: %v", err)
	}
	if _, err := store.Switch(DefaultSessionID); err != nil {
		t.Fatalf("Switch back error: %v", err)
	}

	if store.MessageCount() != 0 {
		t.Fatal("a re-activated session must start empty and be reloaded")
	}
	if store.Generation() != 2 {
		t.Fatalf("generation = %d, want 2", store.Generation())
	}
}

func TestSwitchToUnknownSession(t *testing.T) {
	store := NewStore()
	store.Append(DefaultSessionID, textMsg("hi"))

	if _, err := store.Switch("nonexistent"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("error = %v, want ErrUnknownSession", err)
	}
	if store.MessageCount() != 1 {
		t.Fatal("failed switch must not discard messages")
	}
	if store.Generation() != 0 {
		t.Fatal("failed switch must not bump the generation")
	}
}

func TestReset(t *testing.T) {
	store := NewStore()
	store.Append(DefaultSessionID, textMsg("hi"))

	if store.Reset("other") {
		t.Fatal("reset of an inactive session must be a no-op")
	}
	if !store.Reset(DefaultSessionID) {
		t.Fatal("reset of the active session should succeed")
	}
	if store.MessageCount() != 0 {
		t.Fatalf("messages = %d, want 0 after reset", store.MessageCount())
	}

	store.Append(DefaultSessionID, textMsg("again"))
	if got := store.Snapshot().Messages[0].ID; got != "seq-0" {
		t.Fatalf("id = %q, want sequence restarted at seq-0", got)
	}
}

func TestCreate(t *testing.T) {
	store := NewStore()

	if err := store.Create("work", "Work"); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := store.Create("work", ""); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("duplicate create error = %v, want ErrSessionExists", err)
	}
	if err := store.Create("", ""); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("empty id create error = %v, want ErrUnknownSession", err)
	}

	if store.ActiveID() != DefaultSessionID {
		t.Fatal("create must not switch the active session")
	}

	sessions := store.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].ID != DefaultSessionID || sessions[1].ID != "work" {
		t.Fatalf("order = %v, want creation order", sessions)
	}
	if sessions[1].DisplayName != "Work" {
		t.Fatalf("display name = %q, want %q", sessions[1].DisplayName, "Work")
	}
}

func TestDeleteInactiveSession(t *testing.T) {
	store := NewStore()
	if err := store.Create("work", ""); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	store.Append(DefaultSessionID, textMsg("hi"))

	switchedTo, err := store.Delete("work")
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if switchedTo != "" {
		t.Fatalf("switchedTo = %q, want empty for inactive delete", switchedTo)
	}
	if store.MessageCount() != 1 {
		t.Fatal("deleting an inactive session must not touch the view")
	}
}

func TestDeleteActiveSessionFallsBack(t *testing.T) {
	store := NewStore()
	if err := store.Create("work", ""); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := store.Create("play", ""); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := store.Switch("play"); err != nil {
		t.Fatalf("Switch error: %v", err)
	}
	store.Append("play", textMsg("hi"))

	switchedTo, err := store.Delete("play")
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if switchedTo != DefaultSessionID {
		t.Fatalf("switchedTo = %q, want lowest-ordinal fallback %q", switchedTo, DefaultSessionID)
	}
	if store.ActiveID() != DefaultSessionID {
		t.Fatalf("active = %q, want %q", store.ActiveID(), DefaultSessionID)
	}
	if store.MessageCount() != 0 {
		t.Fatal("fallback session must start empty")
	}
	if store.Generation() != 2 {
		t.Fatalf("generation = %d, want 2", store.Generation())
	}
}

func TestDeleteLastSession(t *testing.T) {
	store := NewStore()
	if _, err := store.Delete(DefaultSessionID); !errors.Is(err, ErrLastSession) {
		t.Fatalf("error = %v, want ErrLastSession", err)
	}
}

func TestDeleteUnknownSession(t *testing.T) {
	store := NewStore()
	if _, err := store.Delete("nonexistent"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("error = %v, want ErrUnknownSession", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore()
	store.Append(DefaultSessionID, textMsg("hi"))

	snap := store.Snapshot()
	snap.Messages[0].Text = "mutated"

	if store.Snapshot().Messages[0].Text != "hi" {
		t.Fatal("snapshot mutation must not reach the store")
	}
}
