package llm

import (
	"sync"
	"time"
)

// Pricing holds per-million-token USD prices for a model.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var modelPricing = map[string]Pricing{
	"gpt-4o-mini":            {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4o-mini-2024-07-18": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4o":                 {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-2024-11-20":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-2024-08-06":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"claude-3-5-sonnet":      {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"gemini-1.5-pro":         {InputPerMillion: 1.25, OutputPerMillion: 5.00},
}

var fallbackPricing = Pricing{InputPerMillion: 0.15, OutputPerMillion: 0.60}

// CostResult is the outcome of a single cost calculation.
type CostResult struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	InputCost    float64
	OutputCost   float64
	TotalCost    float64
}

// CostCalculator computes USD cost from token usage.
type CostCalculator struct{}

// NewCostCalculator builds a CostCalculator.
func NewCostCalculator() *CostCalculator { return &CostCalculator{} }

// CalculateCost prices a call, falling back to gpt-4o-mini rates for
// unrecognized models.
func (c *CostCalculator) CalculateCost(model string, inputTokens, outputTokens int64) CostResult {
	pricing, ok := modelPricing[model]
	if !ok {
		pricing = fallbackPricing
	}

	inputCost := float64(inputTokens) * pricing.InputPerMillion / 1_000_000
	outputCost := float64(outputTokens) * pricing.OutputPerMillion / 1_000_000

	return CostResult{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    inputCost + outputCost,
	}
}

// GetPricing returns the pricing row used for a model.
func (c *CostCalculator) GetPricing(model string) Pricing {
	if p, ok := modelPricing[model]; ok {
		return p
	}
	return fallbackPricing
}

// JobCostSummary is the cumulative cost of one job's LLM calls.
type JobCostSummary struct {
	JobID         string
	TotalCost     float64
	TotalRequests int
	TotalInput    int64
	TotalOutput   int64
	Since         time.Time
}

// BudgetExceededError describes a call that would push a job's cumulative
// cost past its ceiling. Neither Charge nor WouldExceed returns it; the
// cascade consults WouldExceed before escalating to the vision tier and,
// when the ceiling would be passed, stops escalating and keeps the pages
// it already has.
type BudgetExceededError struct {
	JobID     string
	Ceiling   float64
	Would     float64
}

func (e *BudgetExceededError) Error() string {
	return "job cost ceiling exceeded"
}

// Ledger tracks cumulative USD spend per job and enforces a per-job
// ceiling. It is the cost-aware gate the cascade orchestrator consults
// before escalating to a costlier tier.
type Ledger struct {
	mu      sync.Mutex
	calc    *CostCalculator
	spent   map[string]float64
	reqs    map[string]int
	ceiling float64
}

// NewLedger builds a Ledger enforcing ceilingUSD per job. A ceiling of 0
// disables enforcement.
func NewLedger(ceilingUSD float64) *Ledger {
	return &Ledger{
		calc:    NewCostCalculator(),
		spent:   make(map[string]float64),
		reqs:    make(map[string]int),
		ceiling: ceilingUSD,
	}
}

// WouldExceed reports whether charging the given call would exceed the
// job's ceiling, without recording it. The cascade orchestrator uses this
// to decide whether to escalate to a pricier tier before paying for it.
func (l *Ledger) WouldExceed(jobID, model string, inputTokens, outputTokens int64) bool {
	if l.ceiling <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cost := l.calc.CalculateCost(model, inputTokens, outputTokens)
	return l.spent[jobID]+cost.TotalCost > l.ceiling
}

// Charge records a completed call's cost against a job's running total.
func (l *Ledger) Charge(jobID, model string, inputTokens, outputTokens int64) CostResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	cost := l.calc.CalculateCost(model, inputTokens, outputTokens)
	l.spent[jobID] += cost.TotalCost
	l.reqs[jobID]++
	return cost
}

// Summary returns the cumulative spend for a job.
func (l *Ledger) Summary(jobID string) JobCostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return JobCostSummary{
		JobID:         jobID,
		TotalCost:     l.spent[jobID],
		TotalRequests: l.reqs[jobID],
	}
}
