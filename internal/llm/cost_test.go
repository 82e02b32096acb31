package llm

import "testing"

func TestCalculateCostKnownModel(t *testing.T) {
	c := NewCostCalculator()
	result := c.CalculateCost("gpt-4o-mini", 1_000_000, 1_000_000)
	if result.InputCost != 0.15 || result.OutputCost != 0.60 {
		t.Fatalf("got %+v", result)
	}
}

func TestCalculateCostUnknownModelFallsBack(t *testing.T) {
	c := NewCostCalculator()
	result := c.CalculateCost("some-unlisted-model", 1_000_000, 0)
	if result.InputCost != fallbackPricing.InputPerMillion {
		t.Fatalf("expected fallback pricing, got %+v", result)
	}
}

func TestLedgerWouldExceedCeiling(t *testing.T) {
	ledger := NewLedger(1.00)
	if ledger.WouldExceed("job-1", "gpt-4o", 1_000_000, 0) == false {
		t.Fatalf("expected a $2.50 call to exceed a $1.00 ceiling")
	}
}

func TestLedgerChargeAccumulates(t *testing.T) {
	ledger := NewLedger(0) // disabled ceiling
	ledger.Charge("job-1", "gpt-4o-mini", 1_000_000, 0)
	ledger.Charge("job-1", "gpt-4o-mini", 1_000_000, 0)

	summary := ledger.Summary("job-1")
	if summary.TotalRequests != 2 {
		t.Fatalf("expected 2 requests, got %d", summary.TotalRequests)
	}
	if summary.TotalCost <= 0.29 || summary.TotalCost >= 0.31 {
		t.Fatalf("expected ~0.30 total cost, got %v", summary.TotalCost)
	}
}

func TestLedgerDisabledCeilingNeverExceeds(t *testing.T) {
	ledger := NewLedger(0)
	if ledger.WouldExceed("job-1", "gpt-4o", 100_000_000, 100_000_000) {
		t.Fatalf("expected disabled ceiling (0) to never report exceeded")
	}
}
