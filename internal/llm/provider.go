// Package llm provides the structured-output provider abstraction used by
// the vision AI extractor tier and the structured-extraction pass (the
// cloud OCR tier has its own client interface), plus the supporting circuit
// breaker, fallback chain, and cost ledger. It is adapted from the
// teacher's internal/ai package (LLMProvider, FallbackChain,
// CircuitBreaker, CostCalculator), generalized from column-mapping calls
// to services-table extraction calls.
package llm

import "context"

// Request is a structured call to an LLM-backed provider: a vision model
// asked to return a services table, or a cloud OCR service asked to
// transcribe a page into text and tables.
type Request struct {
	SystemPrompt string
	UserContent  string
	ImageData    []byte // set for vision tier calls; nil for text-only calls
	Schema       any    // JSON schema the response must conform to
	MaxTokens    int
	Temperature  float64
	Model        string // optional override
}

// Response is a provider's structured reply.
type Response struct {
	Content          string // raw JSON response matching Schema
	Model            string
	FinishReason     string // "stop", "length", "content_filter"
	Refusal          string // non-empty if the model refused
	TokensUsed       int
	PromptTokens     int
	CompletionTokens int
	Attempts         int  // providers tried (1 = primary succeeded)
	FallbackUsed     bool // true if a non-primary provider answered
}

// Provider abstracts a structured-output backend: an OpenAI-style vision
// model, or a dedicated cloud OCR API exposed the same way.
type Provider interface {
	CallStructured(ctx context.Context, req Request) (*Response, error)
	Name() string
	ModelID() string
}
