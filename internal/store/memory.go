package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/procurematch/attestation-pipeline/internal/models"
)

// MemoryStore is an in-process Store used by tests and by the queue's own
// unit tests; it implements the same transition invariants the Postgres
// store enforces. It also backs AttestationStore/AnalysisStore so handler
// tests can run against a single fake.
type MemoryStore struct {
	mu          sync.Mutex
	jobs        map[string]*models.Job
	attestations map[string]*models.Attestation
	analyses    map[string]*models.Analysis
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:         make(map[string]*models.Job),
		attestations: make(map[string]*models.Attestation),
		analyses:     make(map[string]*models.Analysis),
	}
}

func (m *MemoryStore) Create(ctx context.Context, job *models.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = models.JobStatusPending
	job.Attempts = 0
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 3
	}
	job.CreatedAt = time.Now()

	cp := *job
	m.jobs[job.ID] = &cp
	return job.ID, nil
}

func (m *MemoryStore) ClaimNext(ctx context.Context, now time.Time, workerID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*models.Job
	for _, j := range m.jobs {
		if j.Status == models.JobStatusPending && j.Attempts < j.MaxAttempts {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].CreatedAt.Equal(candidates[k].CreatedAt) {
			return candidates[i].ID < candidates[k].ID
		}
		return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
	})

	job := candidates[0]
	if !models.CanTransition(job.Status, models.JobStatusProcessing) {
		return nil, models.ErrIllegalTransition
	}
	job.Status = models.JobStatusProcessing
	job.WorkerID = workerID
	started := now
	job.StartedAt = &started
	job.Attempts++

	cp := *job
	return &cp, nil
}

func (m *MemoryStore) UpdateProgress(ctx context.Context, id string, progress models.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.Progress = progress
	return nil
}

func (m *MemoryStore) Complete(ctx context.Context, id string, attestationID, analysisID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if !models.CanTransition(job.Status, models.JobStatusCompleted) {
		return models.ErrIllegalTransition
	}
	job.Status = models.JobStatusCompleted
	now := time.Now()
	job.CompletedAt = &now
	job.ResultAttestID = attestationID
	job.ResultAnalysisID = analysisID
	return nil
}

func (m *MemoryStore) Fail(ctx context.Context, id string, errMsg, errCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if !models.CanTransition(job.Status, models.JobStatusFailed) {
		return models.ErrIllegalTransition
	}
	job.Status = models.JobStatusFailed
	job.Error = errMsg
	job.ErrorCode = errCode
	now := time.Now()
	job.CompletedAt = &now
	return nil
}

func (m *MemoryStore) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if !models.CanTransition(job.Status, models.JobStatusCancelled) {
		return models.ErrIllegalTransition
	}
	job.Status = models.JobStatusCancelled
	now := time.Now()
	job.CancelledAt = &now
	return nil
}

func (m *MemoryStore) RequestCancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if job.Status == models.JobStatusPending {
		job.Status = models.JobStatusCancelled
		now := time.Now()
		job.CancelledAt = &now
		return nil
	}
	job.CancelRequested = true
	return nil
}

func (m *MemoryStore) Retry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if !job.CanRetry() {
		return models.ErrIllegalTransition
	}
	if !models.CanTransition(job.Status, models.JobStatusPending) {
		return models.ErrIllegalTransition
	}
	job.Status = models.JobStatusPending
	job.Progress = models.Progress{}
	job.StartedAt = nil
	job.CompletedAt = nil
	job.CancelledAt = nil
	job.CancelRequested = false
	job.Error = ""
	job.ErrorCode = ""
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, ownerID string, filter ListFilter, limit int) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Job
	for _, j := range m.jobs {
		if ownerID != "" && j.UserID != ownerID {
			continue
		}
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && j.Type != *filter.Type {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("cannot delete job in non-terminal status %s", job.Status)
	}
	delete(m.jobs, id)
	return nil
}

func (m *MemoryStore) CreateAttestation(ctx context.Context, a *models.Attestation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	cp.Services = append([]models.Service(nil), a.Services...)
	m.attestations[a.ID] = &cp
	return a.ID, nil
}

func (m *MemoryStore) GetAttestation(ctx context.Context, id string) (*models.Attestation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attestations[id]
	if !ok {
		return nil, fmt.Errorf("attestation %s not found", id)
	}
	cp := *a
	cp.Services = append([]models.Service(nil), a.Services...)
	return &cp, nil
}

func (m *MemoryStore) ListAttestations(ctx context.Context, ownerID string, limit int) ([]*models.Attestation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Attestation
	for _, a := range m.attestations {
		if ownerID != "" && a.UserID != ownerID {
			continue
		}
		cp := *a
		cp.Services = append([]models.Service(nil), a.Services...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateAttestationServices(ctx context.Context, id string, services []models.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attestations[id]
	if !ok {
		return fmt.Errorf("attestation %s not found", id)
	}
	a.Services = append([]models.Service(nil), services...)
	a.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) DeleteAttestation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attestations[id]; !ok {
		return fmt.Errorf("attestation %s not found", id)
	}
	delete(m.attestations, id)
	return nil
}

func (m *MemoryStore) CreateAnalysis(ctx context.Context, a *models.Analysis) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now()
	cp := *a
	cp.Requirements = append([]models.Requirement(nil), a.Requirements...)
	m.analyses[a.ID] = &cp
	return a.ID, nil
}

func (m *MemoryStore) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s not found", id)
	}
	cp := *a
	cp.Requirements = append([]models.Requirement(nil), a.Requirements...)
	return &cp, nil
}

func (m *MemoryStore) ListAnalyses(ctx context.Context, ownerID string, limit int) ([]*models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Analysis
	for _, a := range m.analyses {
		if ownerID != "" && a.UserID != ownerID {
			continue
		}
		cp := *a
		cp.Requirements = append([]models.Requirement(nil), a.Requirements...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SaveAnalysisResult(ctx context.Context, id string, result *models.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return fmt.Errorf("analysis %s not found", id)
	}
	a.Result = result
	return nil
}

func (m *MemoryStore) DeleteAnalysis(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.analyses[id]; !ok {
		return fmt.Errorf("analysis %s not found", id)
	}
	delete(m.analyses, id)
	return nil
}
