package types

import (
	"testing"
)

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	if id == "" {
		t.Error("expected non-empty SessionID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}

func TestNewEntryID(t *testing.T) {
	a := NewEntryID()
	b := NewEntryID()
	if a == "" || b == "" {
		t.Error("expected non-empty EntryIDs")
	}
	if a == b {
		t.Errorf("expected unique IDs, got %s twice", a)
	}
}

func TestFailedStatus(t *testing.T) {
	s := Failed("invalid filename")
	if s != Status("failed: invalid filename") {
		t.Errorf("unexpected status %q", s)
	}
	if !s.IsFailure() {
		t.Error("failed status must report as failure")
	}
	if StatusSuccess.IsFailure() || StatusChat.IsFailure() {
		t.Error("success and chat statuses must not report as failures")
	}
}
