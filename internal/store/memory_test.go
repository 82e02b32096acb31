package store

import (
	"context"
	"testing"
	"time"

	"github.com/procurematch/attestation-pipeline/internal/models"
)

func TestClaimNextIsFIFOByCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &models.Job{UserID: "u1", Type: models.JobTypeAttestation}
	firstID, _ := s.Create(ctx, first)
	time.Sleep(time.Millisecond)
	second := &models.Job{UserID: "u1", Type: models.JobTypeAttestation}
	s.Create(ctx, second)

	claimed, err := s.ClaimNext(ctx, time.Now(), "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed.ID != firstID {
		t.Fatalf("expected FIFO claim of first job, got %s", claimed.ID)
	}
	if claimed.Status != models.JobStatusProcessing {
		t.Fatalf("expected processing status, got %s", claimed.Status)
	}
}

func TestClaimNextReturnsNilWhenEmpty(t *testing.T) {
	s := NewMemoryStore()
	claimed, err := s.ClaimNext(context.Background(), time.Now(), "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected nil claim on empty queue, got %+v", claimed)
	}
}

func TestNoDoubleClaim(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job := &models.Job{UserID: "u1", Type: models.JobTypeAttestation}
	s.Create(ctx, job)

	s.ClaimNext(ctx, time.Now(), "worker-1")
	second, err := s.ClaimNext(ctx, time.Now(), "worker-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != nil {
		t.Fatalf("expected no second claim, got %+v", second)
	}
}

func TestCompleteRequiresProcessingStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job := &models.Job{UserID: "u1", Type: models.JobTypeAttestation}
	id, _ := s.Create(ctx, job)

	if err := s.Complete(ctx, id, nil, nil); err != models.ErrIllegalTransition {
		t.Fatalf("expected illegal transition completing a pending job, got %v", err)
	}
}

func TestRequestCancelOnPendingCancelsImmediately(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job := &models.Job{UserID: "u1", Type: models.JobTypeAttestation}
	id, _ := s.Create(ctx, job)

	if err := s.RequestCancel(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := s.Get(ctx, id)
	if got.Status != models.JobStatusCancelled {
		t.Fatalf("expected immediate cancellation of pending job, got %s", got.Status)
	}
}

func TestRequestCancelOnProcessingSetsFlag(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job := &models.Job{UserID: "u1", Type: models.JobTypeAttestation}
	id, _ := s.Create(ctx, job)
	s.ClaimNext(ctx, time.Now(), "worker-1")

	if err := s.RequestCancel(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := s.Get(ctx, id)
	if got.Status != models.JobStatusProcessing {
		t.Fatalf("expected status unchanged until worker acknowledges, got %s", got.Status)
	}
	if !got.CancelRequested {
		t.Fatalf("expected cancel_requested flag set")
	}
}

func TestRetryResetsProgressAndPreservesID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job := &models.Job{UserID: "u1", Type: models.JobTypeAttestation}
	id, _ := s.Create(ctx, job)
	s.ClaimNext(ctx, time.Now(), "worker-1")
	s.Fail(ctx, id, "boom", "extractor_unavailable")

	if err := s.Retry(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := s.Get(ctx, id)
	if got.ID != id {
		t.Fatalf("expected retry to preserve job id")
	}
	if got.Status != models.JobStatusPending {
		t.Fatalf("expected pending after retry, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("expected attempts preserved at 1, got %d", got.Attempts)
	}
}

func TestRetryRejectsWhenAttemptsExhausted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job := &models.Job{UserID: "u1", Type: models.JobTypeAttestation, MaxAttempts: 1}
	id, _ := s.Create(ctx, job)
	s.ClaimNext(ctx, time.Now(), "worker-1")
	s.Fail(ctx, id, "boom", "code")

	if err := s.Retry(ctx, id); err != models.ErrIllegalTransition {
		t.Fatalf("expected illegal transition when attempts exhausted, got %v", err)
	}
}

func TestDeleteRejectsNonTerminalJob(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job := &models.Job{UserID: "u1", Type: models.JobTypeAttestation}
	id, _ := s.Create(ctx, job)

	if err := s.Delete(ctx, id); err == nil {
		t.Fatalf("expected delete to reject a pending (non-terminal) job")
	}
}
