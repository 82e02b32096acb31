package pipelineerr

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyCancelledTakesPriority(t *testing.T) {
	c := Classify(0, ErrCancelled)
	if c.Category != CategoryCancelled {
		t.Fatalf("Category = %v, want cancelled", c.Category)
	}
	if c.ShouldRetry {
		t.Fatalf("cancelled errors must not be retried")
	}
}

func TestClassifyIllegalTransitionIsInvariant(t *testing.T) {
	c := Classify(0, ErrIllegalTransition)
	if c.Category != CategoryInvariant {
		t.Fatalf("Category = %v, want invariant", c.Category)
	}
}

func TestClassifyLowConfidenceEscalates(t *testing.T) {
	c := Classify(0, ErrExtractorLowConfidence)
	if c.Category != CategoryPermanent {
		t.Fatalf("Category = %v, want permanent (escalate)", c.Category)
	}
	if c.ShouldRetry {
		t.Fatalf("low confidence should escalate, not retry in place")
	}
}

func TestClassifyRateLimitIsTransient(t *testing.T) {
	c := Classify(0, ErrExtractorRateLimited)
	if c.Category != CategoryTransient || !c.ShouldRetry {
		t.Fatalf("got %+v, want transient+retry", c)
	}
}

func TestClassifyServerErrorByStatusCode(t *testing.T) {
	c := Classify(503, context.DeadlineExceeded)
	if c.Category != CategoryTransient {
		t.Fatalf("Category = %v, want transient", c.Category)
	}
}

func TestClassifyClientErrorIsPermanent(t *testing.T) {
	c := Classify(404, errUnexpected)
	if c.Category != CategoryPermanent {
		t.Fatalf("Category = %v, want permanent", c.Category)
	}
}

var errUnexpected = errors.New("not found")
