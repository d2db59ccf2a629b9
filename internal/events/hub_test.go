package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.JobTriggered("beam-scan")

	select {
	case ev := <-ch:
		if ev.Type != TypeJobTriggered {
			t.Errorf("type = %s, want %s", ev.Type, TypeJobTriggered)
		}
		var p JobPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if p.Job != "beam-scan" {
			t.Errorf("job = %s, want beam-scan", p.Job)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestRingBufferKeepsLatest(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.JobCompleted("j", "ok", 0, 0)
	}

	got := h.SnapshotSince(0)
	if len(got) != 3 {
		t.Fatalf("snapshot = %d events, want 3", len(got))
	}
	if got[0].ID != 3 || got[2].ID != 5 {
		t.Errorf("snapshot ids = %d..%d, want 3..5", got[0].ID, got[2].ID)
	}
}

func TestSnapshotSinceFilters(t *testing.T) {
	h := NewHub(10)
	for i := 0; i < 4; i++ {
		h.JobTriggered("j")
	}

	got := h.SnapshotSince(2)
	if len(got) != 2 {
		t.Fatalf("snapshot = %d events, want 2", len(got))
	}
	if got[0].ID != 3 {
		t.Errorf("first id = %d, want 3", got[0].ID)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	defer cancel()

	// Overflow the subscriber buffer; Publish must not stall.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.JobTriggered("j")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	_ = ch
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
	// Publishing after cancel must not panic.
	h.JobTriggered("j")
}
