// Package progress implements the push side of job progress observation:
// a per-job subscription that delivers state-change events at-least-once,
// coalescing unread events so a slow subscriber only ever sees the
// newest. The mutex-guarded subscriber bookkeeping is grounded on the
// fixed-window rate limiter's cleanup-ticker pattern in the teacher's
// http/middleware package, generalized from a single counter map to a
// per-job set of subscriber channels.
package progress

import (
	"sync"
	"time"

	"github.com/procurematch/attestation-pipeline/internal/models"
)

// Event is one state-change notification for a job.
type Event struct {
	JobID     string
	Status    models.JobStatus
	Progress  models.Progress
	Seq       int64
	Timestamp time.Time
}

type subscription struct {
	id int
	ch chan Event
}

// Hub fans out job events to subscribers and retains the latest event
// per job so a reconnecting subscriber can reconcile via a snapshot
// instead of missing intermediate updates.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[int]*subscription
	latest      map[string]Event
	nextSubID   int
	seqByJob    map[string]int64
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[int]*subscription),
		latest:      make(map[string]Event),
		seqByJob:    make(map[string]int64),
	}
}

// Publish delivers an event to every current subscriber of jobID and
// updates the retained snapshot. Delivery is non-blocking: if a
// subscriber's single-slot buffer already holds an undelivered event,
// that event is dropped in favor of the new one (newest supersedes).
func (h *Hub) Publish(jobID string, status models.JobStatus, p models.Progress) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seqByJob[jobID]++
	event := Event{
		JobID:     jobID,
		Status:    status,
		Progress:  p,
		Seq:       h.seqByJob[jobID],
		Timestamp: time.Now(),
	}
	h.latest[jobID] = event

	for _, sub := range h.subscribers[jobID] {
		select {
		case sub.ch <- event:
		default:
			// Drain the stale, undelivered event and push the newest.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
	return event
}

// Snapshot returns the most recently published event for a job, for pull
// polling and for a reconnecting subscriber to reconcile state before
// further push events arrive.
func (h *Hub) Snapshot(jobID string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.latest[jobID]
	return e, ok
}

// Subscribe registers a single-slot channel for jobID. The caller must
// call the returned unsubscribe func when done observing.
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	sub := &subscription{id: id, ch: make(chan Event, 1)}

	if h.subscribers[jobID] == nil {
		h.subscribers[jobID] = make(map[int]*subscription)
	}
	h.subscribers[jobID][id] = sub

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers[jobID], id)
		if len(h.subscribers[jobID]) == 0 {
			delete(h.subscribers, jobID)
		}
	}
	return sub.ch, unsubscribe
}

// Forget drops all retained state for a job (terminal jobs need not be
// tracked forever); safe to call even if nothing was ever published.
func (h *Hub) Forget(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.latest, jobID)
	delete(h.seqByJob, jobID)
	delete(h.subscribers, jobID)
}
