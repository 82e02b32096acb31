package models

import "time"

// Decision is the per-requirement coverage verdict produced by the matcher.
type Decision string

const (
	DecisionMeets   Decision = "meets"
	DecisionPartial Decision = "partial"
	DecisionUnmet   Decision = "unmet"
)

// Contribution records one attestation service's accepted contribution
// toward a requirement.
type Contribution struct {
	AttestationID string  `json:"attestation_id"`
	ServiceIndex  int     `json:"service_index"`
	Contributed   float64 `json:"contributed_quantity"`
	Similarity    float64 `json:"similarity"`
}

// RejectionReason classifies why a candidate service did not qualify for a
// requirement, for the audit trace.
type RejectionReason string

const (
	RejectUnitMismatch     RejectionReason = "unit"
	RejectActivityGate     RejectionReason = "activity"
	RejectMandatoryTerm    RejectionReason = "mandatory_term"
	RejectBelowThreshold   RejectionReason = "below_threshold"
)

// CandidateTrace records the scoring outcome for one candidate service
// against one requirement, whether accepted or rejected.
type CandidateTrace struct {
	AttestationID string          `json:"attestation_id"`
	ServiceIndex  int             `json:"service_index"`
	Similarity    float64         `json:"similarity"`
	CommonWords   int             `json:"common_words"`
	Accepted      bool            `json:"accepted"`
	Rejected      RejectionReason `json:"rejected_reason,omitempty"`
}

// RequirementResult is the outcome of matching a single Requirement.
type RequirementResult struct {
	Requirement   Requirement       `json:"requirement"`
	Decision      Decision          `json:"decision"`
	CoveragePct   float64           `json:"coverage_percent"`
	RunningSum    float64           `json:"running_sum"`
	Contributions []Contribution    `json:"contributions"`
	Trace         []CandidateTrace  `json:"trace"`
}

// AnalysisResult is the full output of matching a set of requirements
// against a user's attestations.
type AnalysisResult struct {
	Requirements []RequirementResult `json:"requirements"`
}

// Analysis is a tender-notice document together with its parsed
// requirements and, once run, its matching result.
type Analysis struct {
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	Name         string          `db:"name" json:"name"`
	FilePath     string          `db:"file_path" json:"-"`
	Requirements []Requirement   `db:"-" json:"requirements"`
	Result       *AnalysisResult `db:"-" json:"result,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
