package progress

import (
	"testing"

	"github.com/procurematch/attestation-pipeline/internal/models"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe("job-1")
	defer unsubscribe()

	h.Publish("job-1", models.JobStatusProcessing, models.Progress{Current: 1, Total: 10, Stage: "ocr"})

	select {
	case e := <-ch:
		if e.Status != models.JobStatusProcessing || e.Progress.Stage != "ocr" {
			t.Fatalf("unexpected event: %+v", e)
		}
	default:
		t.Fatalf("expected an event to be delivered")
	}
}

func TestCoalescingKeepsOnlyNewestEvent(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe("job-1")
	defer unsubscribe()

	h.Publish("job-1", models.JobStatusProcessing, models.Progress{Current: 1, Total: 10, Stage: "ocr"})
	h.Publish("job-1", models.JobStatusProcessing, models.Progress{Current: 2, Total: 10, Stage: "ocr"})
	h.Publish("job-1", models.JobStatusProcessing, models.Progress{Current: 3, Total: 10, Stage: "merge"})

	e := <-ch
	if e.Progress.Current != 3 || e.Progress.Stage != "merge" {
		t.Fatalf("expected only the newest event to survive coalescing, got %+v", e)
	}

	select {
	case extra := <-ch:
		t.Fatalf("expected no further buffered events, got %+v", extra)
	default:
	}
}

func TestSnapshotReflectsLatestEventAfterReconnect(t *testing.T) {
	h := NewHub()
	h.Publish("job-1", models.JobStatusCompleted, models.Progress{Current: 10, Total: 10, Stage: "final"})

	snap, ok := h.Snapshot("job-1")
	if !ok {
		t.Fatalf("expected a snapshot to be available")
	}
	if snap.Status != models.JobStatusCompleted {
		t.Fatalf("expected completed snapshot, got %+v", snap)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	_, unsubscribe := h.Subscribe("job-1")
	unsubscribe()

	h.Publish("job-1", models.JobStatusProcessing, models.Progress{})
	if _, ok := h.subscribers["job-1"]; ok {
		t.Fatalf("expected subscriber map entry cleaned up after unsubscribe")
	}
}

func TestMultipleSubscribersEachGetEvents(t *testing.T) {
	h := NewHub()
	ch1, unsub1 := h.Subscribe("job-1")
	ch2, unsub2 := h.Subscribe("job-1")
	defer unsub1()
	defer unsub2()

	h.Publish("job-1", models.JobStatusProcessing, models.Progress{Stage: "ocr"})

	if (<-ch1).Progress.Stage != "ocr" {
		t.Fatalf("subscriber 1 did not receive event")
	}
	if (<-ch2).Progress.Stage != "ocr" {
		t.Fatalf("subscriber 2 did not receive event")
	}
}
