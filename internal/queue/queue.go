// Package queue runs the bounded-concurrency worker pool that dispatches
// pending jobs to the cascade pipeline. The goroutine-per-worker,
// signal-driven shutdown shape is grounded on cmd/server/main.go's
// server lifecycle in the teacher repo, generalized from one HTTP
// listener to N claim-loop workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/procurematch/attestation-pipeline/internal/models"
	"github.com/procurematch/attestation-pipeline/internal/pipelineerr"
	"github.com/procurematch/attestation-pipeline/internal/store"
)

// ProcessFunc runs one job to completion (or failure). It must honor
// ctx cancellation at cooperative checkpoints and return
// pipelineerr.ErrCancelled (or a context.Canceled-wrapping error) when it
// observes cancellation, so the queue can route the job to the
// cancelled state instead of failed.
type ProcessFunc func(ctx context.Context, job *models.Job) (attestationID *string, analysisID *string, err error)

// Queue is a fixed-size worker pool draining a Store's pending jobs.
type Queue struct {
	Store         store.Store
	Process       ProcessFunc
	MaxConcurrent int
	PollInterval  time.Duration
	// CancelCheckInterval controls how often an in-flight job's
	// cancel_requested flag is polled. Defaults to 500ms.
	CancelCheckInterval time.Duration
}

// New builds a Queue with the given concurrency and poll interval.
// Concurrency and poll interval default to 4 and 1s respectively when
// zero, matching the teacher's conservative server defaults.
func New(s store.Store, process ProcessFunc, maxConcurrent int, pollInterval time.Duration) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Queue{
		Store:               s,
		Process:             process,
		MaxConcurrent:       maxConcurrent,
		PollInterval:        pollInterval,
		CancelCheckInterval: 500 * time.Millisecond,
	}
}

// Run starts MaxConcurrent workers and blocks until ctx is cancelled.
// Each worker is independent; the dispatch loop itself is single per
// worker but no two workers can claim the same job because ClaimNext is
// atomic at the store layer.
func (q *Queue) Run(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.MaxConcurrent; i++ {
		workerID := fmt.Sprintf("worker-%d-%s", i, uuid.NewString()[:8])
		g.Go(func() error {
			q.runWorker(gctx, workerID)
			return nil
		})
	}
	_ = g.Wait()
}

func (q *Queue) runWorker(ctx context.Context, workerID string) {
	ticker := time.NewTicker(q.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := q.Store.ClaimNext(ctx, time.Now(), workerID)
		if err != nil {
			slog.Error("queue_claim_failed", "worker", workerID, "error", err)
			q.waitOrDone(ctx, ticker)
			continue
		}
		if job == nil {
			q.waitOrDone(ctx, ticker)
			continue
		}

		q.runJob(ctx, job, workerID)
	}
}

func (q *Queue) waitOrDone(ctx context.Context, ticker *time.Ticker) {
	select {
	case <-ctx.Done():
	case <-ticker.C:
	}
}

func (q *Queue) runJob(ctx context.Context, job *models.Job, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopWatch := q.watchCancellation(jobCtx, cancel, job.ID)
	defer stopWatch()

	slog.Info("queue_job_started", "job_id", job.ID, "worker", workerID, "attempt", job.Attempts)

	attestationID, analysisID, err := q.Process(jobCtx, job)
	if err != nil {
		if errors.Is(err, pipelineerr.ErrCancelled) || errors.Is(jobCtx.Err(), context.Canceled) {
			if cerr := q.Store.Cancel(context.WithoutCancel(ctx), job.ID); cerr != nil && !errors.Is(cerr, models.ErrIllegalTransition) {
				slog.Error("queue_cancel_ack_failed", "job_id", job.ID, "error", cerr)
			}
			slog.Info("queue_job_cancelled", "job_id", job.ID)
			return
		}

		classified := pipelineerr.Classify(0, err)
		if ferr := q.Store.Fail(context.WithoutCancel(ctx), job.ID, err.Error(), string(classified.Category)); ferr != nil {
			slog.Error("queue_fail_record_failed", "job_id", job.ID, "error", ferr)
		}
		slog.Warn("queue_job_failed", "job_id", job.ID, "category", classified.Category, "error", err)
		return
	}

	if cerr := q.Store.Complete(context.WithoutCancel(ctx), job.ID, attestationID, analysisID); cerr != nil {
		slog.Error("queue_complete_record_failed", "job_id", job.ID, "error", cerr)
		return
	}
	slog.Info("queue_job_completed", "job_id", job.ID)
}

// watchCancellation polls the store for cancel_requested and cancels the
// job's context the moment it is observed, giving the worker a single
// stage boundary to acknowledge before the job is marked cancelled.
func (q *Queue) watchCancellation(ctx context.Context, cancel context.CancelFunc, jobID string) func() {
	stop := make(chan struct{})
	go func() {
		interval := q.CancelCheckInterval
		if interval <= 0 {
			interval = 500 * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				job, err := q.Store.Get(context.WithoutCancel(ctx), jobID)
				if err != nil {
					continue
				}
				if job.CancelRequested {
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(stop) }
}
