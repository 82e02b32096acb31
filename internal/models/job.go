package models

import (
	"errors"
	"time"
)

// JobType distinguishes the two document-upload flows that share the
// pipeline: extracting an attestation's services, or parsing a tender
// notice into requirements for an analysis.
type JobType string

const (
	JobTypeAttestation    JobType = "attestation"
	JobTypeTenderAnalysis JobType = "tender_analysis"
)

// JobStatus is a node in the job lifecycle state machine.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// ErrIllegalTransition is returned by the store when a caller requests a
// status change that is not reachable from the job's current status.
var ErrIllegalTransition = errors.New("illegal job status transition")

// legalTransitions enumerates the declared state machine from spec.md §3:
// pending -> processing -> (completed | failed | cancelled); failed may
// transition back to pending on retry if attempts < max. Cancellation may
// be requested from pending (direct) or processing (flagged, then
// acknowledged by the worker).
var legalTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing, JobStatusCancelled},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
	JobStatusFailed:     {JobStatusPending},
	JobStatusCancelled:  {JobStatusPending},
	JobStatusCompleted:  {},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// in the job state machine.
func CanTransition(from, to JobStatus) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a job in this status will not process further
// without an explicit retry.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Progress is the current staged-progress snapshot of a job, updated at
// every cascade stage boundary.
type Progress struct {
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
	Pipeline string `json:"pipeline"`
}

// Job is a unit of asynchronous work: one uploaded document driven through
// the cascade pipeline.
type Job struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"user_id"`
	Type             JobType    `db:"type" json:"type"`
	FilePath         string     `db:"file_path" json:"-"`
	OriginalFilename string     `db:"original_filename" json:"original_filename"`
	Status           JobStatus  `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	StartedAt        *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt      *time.Time `db:"canceled_at" json:"cancelled_at,omitempty"`
	ResultAttestID   *string    `db:"result_attestation_id" json:"result_attestation_id,omitempty"`
	ResultAnalysisID *string    `db:"result_analysis_id" json:"result_analysis_id,omitempty"`
	Error            string     `db:"error" json:"error,omitempty"`
	ErrorCode        string     `db:"error_code" json:"error_code,omitempty"`
	Attempts         int        `db:"attempts" json:"attempts"`
	MaxAttempts      int        `db:"max_attempts" json:"max_attempts"`
	Progress         Progress   `db:"-" json:"progress"`
	CancelRequested  bool       `db:"cancel_requested" json:"-"`
	WorkerID         string     `db:"worker_id" json:"-"`
}

// CanRetry reports whether the job is eligible for a retry: it must be in
// a terminal, non-completed state and have attempts remaining.
func (j Job) CanRetry() bool {
	return (j.Status == JobStatusFailed || j.Status == JobStatusCancelled) && j.Attempts < j.MaxAttempts
}
