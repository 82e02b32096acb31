package normalizer

import (
	"testing"

	"github.com/procurematch/attestation-pipeline/internal/models"
)

func qty(f float64) *float64 { return &f }
func code(s string) *string  { return &s }

func TestDedupeMergesByDescriptionAndUnit(t *testing.T) {
	services := []models.Service{
		{ItemCode: code("1.1"), Description: "Paving asphalt", Quantity: qty(100), Unit: "m2"},
		{ItemCode: code("1.1.a"), Description: "Paving, asphalt.", Quantity: qty(50), Unit: "M2"},
		{ItemCode: code("2.1"), Description: "Concrete curb", Quantity: qty(30), Unit: "m"},
	}

	out := Dedupe(services)
	if len(out) != 2 {
		t.Fatalf("expected 2 merged services, got %d", len(out))
	}

	merged := out[0]
	if *merged.Quantity != 150 {
		t.Fatalf("expected summed quantity 150, got %v", *merged.Quantity)
	}
	if merged.Description != "Paving, asphalt." {
		t.Fatalf("expected longest description preserved, got %q", merged.Description)
	}
	if *merged.ItemCode != "1.1" {
		t.Fatalf("expected first-seen item code preserved, got %v", *merged.ItemCode)
	}
}
