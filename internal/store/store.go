// Package store persists Jobs durably and enforces the job lifecycle
// state machine server-side. The interface and Postgres implementation
// are grounded on repositories.SpecRepository in the teacher repo; the
// atomic claim uses SELECT ... FOR UPDATE SKIP LOCKED the way a
// multi-worker queue must to avoid double-dispatch.
package store

import (
	"context"
	"time"

	"github.com/procurematch/attestation-pipeline/internal/models"
)

// ListFilter narrows a List call.
type ListFilter struct {
	Status *models.JobStatus
	Type   *models.JobType
}

// Store is the durable Job persistence contract. Every status transition
// must be validated against models.CanTransition before being applied;
// an illegal transition returns models.ErrIllegalTransition and leaves
// the stored job untouched.
type Store interface {
	Create(ctx context.Context, job *models.Job) (string, error)
	// ClaimNext atomically moves one pending, retry-eligible job to
	// processing, FIFO by created_at with id as a tie-break. Returns
	// (nil, nil) when no job is claimable.
	ClaimNext(ctx context.Context, now time.Time, workerID string) (*models.Job, error)
	UpdateProgress(ctx context.Context, id string, progress models.Progress) error
	Complete(ctx context.Context, id string, attestationID, analysisID *string) error
	Fail(ctx context.Context, id string, errMsg, errCode string) error
	Cancel(ctx context.Context, id string) error
	RequestCancel(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, ownerID string, filter ListFilter, limit int) ([]*models.Job, error)
	Delete(ctx context.Context, id string) error
}

// AttestationStore persists Attestation records (and their Services) once
// a job of type attestation completes. Services are stored alongside the
// attestation as a unit; there is no separate service-level API.
type AttestationStore interface {
	CreateAttestation(ctx context.Context, a *models.Attestation) (string, error)
	GetAttestation(ctx context.Context, id string) (*models.Attestation, error)
	ListAttestations(ctx context.Context, ownerID string, limit int) ([]*models.Attestation, error)
	UpdateAttestationServices(ctx context.Context, id string, services []models.Service) error
	DeleteAttestation(ctx context.Context, id string) error
}

// AnalysisStore persists Analysis records: the parsed Requirements from a
// tender notice job, and (once /match has run) the AnalysisResult.
type AnalysisStore interface {
	CreateAnalysis(ctx context.Context, a *models.Analysis) (string, error)
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, ownerID string, limit int) ([]*models.Analysis, error)
	SaveAnalysisResult(ctx context.Context, id string, result *models.AnalysisResult) error
	DeleteAnalysis(ctx context.Context, id string) error
}
