package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/procurematch/attestation-pipeline/internal/models"
	"github.com/procurematch/attestation-pipeline/internal/pipelineerr"
	"github.com/procurematch/attestation-pipeline/internal/store"
)

func TestQueueCompletesSuccessfulJob(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Create(ctx, &models.Job{UserID: "u1", Type: models.JobTypeAttestation})

	attestID := "attest-1"
	q := New(s, func(ctx context.Context, job *models.Job) (*string, *string, error) {
		return &attestID, nil, nil
	}, 1, 5*time.Millisecond)

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	go q.Run(runCtx)

	waitForStatus(t, s, id, models.JobStatusCompleted)
}

func TestQueueFailsJobOnError(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Create(ctx, &models.Job{UserID: "u1", Type: models.JobTypeAttestation})

	q := New(s, func(ctx context.Context, job *models.Job) (*string, *string, error) {
		return nil, nil, errors.New("boom")
	}, 1, 5*time.Millisecond)

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	go q.Run(runCtx)

	waitForStatus(t, s, id, models.JobStatusFailed)
}

func TestQueueCancelsJobOnCancellationSignal(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Create(ctx, &models.Job{UserID: "u1", Type: models.JobTypeAttestation})

	started := make(chan struct{})
	q := New(s, func(ctx context.Context, job *models.Job) (*string, *string, error) {
		close(started)
		<-ctx.Done()
		return nil, nil, pipelineerr.ErrCancelled
	}, 1, 5*time.Millisecond)
	q.CancelCheckInterval = 5 * time.Millisecond

	runCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	go q.Run(runCtx)

	<-started
	if err := s.RequestCancel(ctx, id); err != nil {
		t.Fatalf("unexpected error requesting cancel: %v", err)
	}

	waitForStatus(t, s, id, models.JobStatusCancelled)
}

func waitForStatus(t *testing.T, s *store.MemoryStore, id string, want models.JobStatus) {
	t.Helper()
	deadline := time.After(1 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %s to reach status %s", id, want)
		case <-tick.C:
			job, err := s.Get(context.Background(), id)
			if err != nil {
				continue
			}
			if job.Status == want {
				return
			}
		}
	}
}
