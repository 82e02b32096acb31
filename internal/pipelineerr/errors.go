// Package pipelineerr classifies extraction and matching errors into
// categories that drive retry/escalation decisions across the cascade and
// the job queue. It is adapted from the teacher's internal/ai error
// taxonomy (transient/permanent/content), extended with the cancelled and
// invariant categories the pipeline needs.
package pipelineerr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrExtractorUnavailable covers network failures, 5xx responses, and
	// timeouts talking to a remote extraction or vision provider.
	ErrExtractorUnavailable = errors.New("extractor_unavailable")
	// ErrExtractorRateLimited is a 429-class response from a remote
	// provider.
	ErrExtractorRateLimited = errors.New("extractor_rate_limited")
	// ErrExtractorLowConfidence signals a tier completed but its mean
	// confidence fell below the escalation threshold.
	ErrExtractorLowConfidence = errors.New("extractor_low_confidence")
	// ErrInvalidOutput is returned when a structured-output pass produces
	// a payload that fails schema validation.
	ErrInvalidOutput = errors.New("extractor_invalid_output")
	// ErrContentFiltered means an upstream model refused or filtered the
	// request.
	ErrContentFiltered = errors.New("extractor_content_filtered")
	// ErrCancelled is returned when a worker observes cancel_requested at
	// a checkpoint.
	ErrCancelled = errors.New("job_cancelled")
	// ErrIllegalTransition is returned by the job store when an illegal
	// status transition is attempted.
	ErrIllegalTransition = errors.New("illegal_status_transition")
	// ErrInvariantViolation is returned when normalization produces a
	// result that cannot legally become part of a completed job, such as
	// a unit that normalizes to empty despite the source having one.
	ErrInvariantViolation = errors.New("invariant_violation")
)

// Category classifies an error for retry/escalation decisions.
type Category string

const (
	CategoryTransient Category = "transient" // retry with backoff, same tier
	CategoryPermanent Category = "permanent" // escalate to next tier
	CategoryContent   Category = "content"   // provider-specific content issue
	CategoryCancelled Category = "cancelled" // cooperative cancellation observed
	CategoryInvariant Category = "invariant" // domain invariant violated; never retry or escalate
)

// Classified wraps an error with classification metadata used by the
// cascade orchestrator and the job queue to decide whether to retry in
// place, escalate to the next tier, or fail the job outright.
type Classified struct {
	Original    error
	Category    Category
	ShouldRetry bool
	StatusCode  int
	Message     string
}

func (e *Classified) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Message, e.Original)
}

func (e *Classified) Unwrap() error {
	return e.Original
}

// Classify categorizes an extractor/matcher error into transient,
// permanent, content, cancelled, or invariant, mirroring the priority
// cascade the teacher uses for AI provider errors.
func Classify(statusCode int, err error) *Classified {
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return &Classified{Original: err, Category: CategoryCancelled, ShouldRetry: false, StatusCode: statusCode, Message: "cancellation observed at checkpoint"}
	case errors.Is(err, ErrIllegalTransition):
		return &Classified{Original: err, Category: CategoryInvariant, ShouldRetry: false, StatusCode: statusCode, Message: "illegal job state transition"}
	case errors.Is(err, ErrInvariantViolation):
		return &Classified{Original: err, Category: CategoryInvariant, ShouldRetry: false, StatusCode: statusCode, Message: "domain invariant violated"}
	}

	switch {
	case errors.Is(err, ErrContentFiltered):
		return &Classified{Original: err, Category: CategoryContent, ShouldRetry: false, StatusCode: statusCode, Message: "content filtered"}
	case errors.Is(err, ErrInvalidOutput):
		return &Classified{Original: err, Category: CategoryPermanent, ShouldRetry: false, StatusCode: statusCode, Message: "invalid structured output"}
	case errors.Is(err, ErrExtractorLowConfidence):
		return &Classified{Original: err, Category: CategoryPermanent, ShouldRetry: false, StatusCode: statusCode, Message: "confidence below tier threshold, escalate"}
	}

	switch {
	case errors.Is(err, ErrExtractorRateLimited):
		return &Classified{Original: err, Category: CategoryTransient, ShouldRetry: true, StatusCode: 429, Message: "rate limited"}
	case errors.Is(err, ErrExtractorUnavailable):
		return &Classified{Original: err, Category: CategoryTransient, ShouldRetry: true, StatusCode: statusCode, Message: "extractor unavailable"}
	}

	switch {
	case statusCode == 429:
		return &Classified{Original: err, Category: CategoryTransient, ShouldRetry: true, StatusCode: statusCode, Message: "rate limited"}
	case statusCode >= 500:
		return &Classified{Original: err, Category: CategoryTransient, ShouldRetry: true, StatusCode: statusCode, Message: "server error"}
	case statusCode == 408 || statusCode == 504:
		return &Classified{Original: err, Category: CategoryTransient, ShouldRetry: true, StatusCode: statusCode, Message: "timeout"}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Classified{Original: err, Category: CategoryTransient, ShouldRetry: true, StatusCode: 0, Message: "deadline exceeded"}
	}

	if statusCode >= 400 && statusCode < 500 && statusCode != 429 {
		return &Classified{Original: err, Category: CategoryPermanent, ShouldRetry: false, StatusCode: statusCode, Message: "client error"}
	}

	return &Classified{Original: err, Category: CategoryTransient, ShouldRetry: true, StatusCode: statusCode, Message: "unknown error"}
}
