package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/procurematch/attestation-pipeline/internal/pipelineerr"
)

type stubProvider struct {
	name string
	err  error
	resp *Response
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) ModelID() string { return "stub-model" }
func (s *stubProvider) CallStructured(ctx context.Context, req Request) (*Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestFallbackChainTriesNextOnTransientError(t *testing.T) {
	transient := &pipelineerr.Classified{Category: pipelineerr.CategoryTransient, Original: errors.New("timeout")}
	primary := &stubProvider{name: "primary", err: transient}
	secondary := &stubProvider{name: "secondary", resp: &Response{Content: "ok"}}

	chain := NewFallbackChain(primary, secondary)
	resp, err := chain.Call(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.FallbackUsed || resp.Attempts != 2 {
		t.Fatalf("expected fallback used on attempt 2, got %+v", resp)
	}
}

func TestFallbackChainFailsFastOnPermanentError(t *testing.T) {
	permanent := &pipelineerr.Classified{Category: pipelineerr.CategoryPermanent, Original: errors.New("bad schema")}
	primary := &stubProvider{name: "primary", err: permanent}
	secondary := &stubProvider{name: "secondary", resp: &Response{Content: "ok"}}

	chain := NewFallbackChain(primary, secondary)
	_, err := chain.Call(context.Background(), Request{})
	if err == nil {
		t.Fatalf("expected permanent error to fail fast")
	}
	if !errors.Is(err, permanent) {
		t.Fatalf("expected original permanent error to surface, got %v", err)
	}
}

func TestFallbackChainExhaustsAllProviders(t *testing.T) {
	transient := &pipelineerr.Classified{Category: pipelineerr.CategoryTransient, Original: errors.New("unavailable")}
	chain := NewFallbackChain(&stubProvider{name: "a", err: transient}, &stubProvider{name: "b", err: transient})

	_, err := chain.Call(context.Background(), Request{})
	if !errors.Is(err, ErrProvidersExhausted) {
		t.Fatalf("expected ErrProvidersExhausted, got %v", err)
	}
}
