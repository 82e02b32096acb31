package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/procurematch/attestation-pipeline/internal/pipelineerr"
)

// ErrProvidersExhausted is returned when every provider in a FallbackChain
// fails.
var ErrProvidersExhausted = errors.New("llm_providers_exhausted")

// FallbackChain tries providers in order, falling back on transient
// failures and failing fast on permanent ones. Safe for concurrent use.
type FallbackChain struct {
	providers []Provider
}

// NewFallbackChain builds a chain; the first provider is primary.
func NewFallbackChain(providers ...Provider) *FallbackChain {
	return &FallbackChain{providers: providers}
}

// Call tries each provider in order until one succeeds or a permanent
// error occurs.
func (c *FallbackChain) Call(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for i, provider := range c.providers {
		attempt := i + 1

		resp, err := provider.CallStructured(ctx, req)
		if err == nil {
			resp.Attempts = attempt
			resp.FallbackUsed = i > 0
			return resp, nil
		}

		lastErr = err

		var classified *pipelineerr.Classified
		if errors.As(err, &classified) && (classified.Category == pipelineerr.CategoryPermanent || classified.Category == pipelineerr.CategoryCancelled) {
			slog.Warn("fallback_chain_fail_fast",
				"provider", provider.Name(),
				"model", provider.ModelID(),
				"category", classified.Category,
				"error", err,
			)
			return nil, err
		}

		slog.Warn("fallback_chain_provider_failed",
			"provider", provider.Name(),
			"model", provider.ModelID(),
			"attempt", attempt,
			"error", err,
		)
	}

	return nil, fmt.Errorf("%w: all %d providers failed, last error: %v",
		ErrProvidersExhausted, len(c.providers), lastErr)
}
