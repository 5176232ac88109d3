package pipeline

import (
	"testing"
	"time"
)

func TestRegisterLookupUnregister(t *testing.T) {
	c := NewController()

	if _, ok := c.Lookup("a1"); ok {
		t.Fatal("expected no ticket before Register")
	}

	ticket := c.Register("a1", "/spool/a1", "/out/a1")
	if ticket.ArtifactID != "a1" {
		t.Errorf("ArtifactID = %q, want a1", ticket.ArtifactID)
	}

	got, ok := c.Lookup("a1")
	if !ok || got != ticket {
		t.Fatal("Lookup did not return the registered ticket")
	}

	c.Unregister("a1")
	if _, ok := c.Lookup("a1"); ok {
		t.Fatal("expected ticket to be gone after Unregister")
	}
}

func TestCancelReturnsWhetherJobFound(t *testing.T) {
	c := NewController()

	if c.Cancel("missing") {
		t.Error("Cancel on unknown artifact should return false")
	}

	ticket := c.Register("a1", "", "")
	terminated := false
	ticket.SetCanceller(func() { terminated = true })

	if !c.Cancel("a1") {
		t.Error("Cancel on registered artifact should return true")
	}
	if !terminated {
		t.Error("expected canceller to be invoked")
	}
	if !ticket.Cancelled() {
		t.Error("expected ticket to report Cancelled() = true")
	}

	// Calling cancel again must not panic or double-invoke badly.
	c.Cancel("a1")
}

func TestSetCancellerAfterCancelInvokesImmediately(t *testing.T) {
	ticket := &JobTicket{ArtifactID: "a1"}
	ticket.Cancel()

	called := false
	ticket.SetCanceller(func() { called = true })
	if !called {
		t.Error("expected canceller registered after Cancel to fire immediately")
	}
}

func TestShouldCommitProgressThrottles(t *testing.T) {
	c := NewController()

	if !c.ShouldCommitProgress("a1", 5, false) {
		t.Error("first progress update should always commit")
	}
	if c.ShouldCommitProgress("a1", 6, false) {
		t.Error("update within 3 points and 1s should be throttled")
	}
	if !c.ShouldCommitProgress("a1", 10, false) {
		t.Error("update of >=3 points should commit")
	}
	if !c.ShouldCommitProgress("a1", 11, true) {
		t.Error("status-changing update should never be throttled")
	}
}

func TestRecordAndQuerySpeed(t *testing.T) {
	c := NewController()

	if got := c.Speed("a1"); got != 0 {
		t.Errorf("Speed() on unknown artifact = %v, want 0", got)
	}

	c.RecordBytes("a1", 2*1024*1024, time.Second)
	if got := c.Speed("a1"); got < 1.9 || got > 2.1 {
		t.Errorf("Speed() = %v, want ~2.0 MiB/s", got)
	}

	c.ResetSpeed("a1")
	if got := c.Speed("a1"); got != 0 {
		t.Errorf("Speed() after reset = %v, want 0", got)
	}
}

func TestBatchSpeed(t *testing.T) {
	c := NewController()
	c.RecordBytes("a1", 1024*1024, time.Second)

	got := c.BatchSpeed([]string{"a1", "a2"})
	if len(got) != 2 {
		t.Fatalf("BatchSpeed returned %d entries, want 2", len(got))
	}
	if got["a2"] != 0 {
		t.Errorf("BatchSpeed[a2] = %v, want 0", got["a2"])
	}
}
