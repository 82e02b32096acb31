package normalizer

import "testing"

func TestExtractItemCode(t *testing.T) {
	code, desc := ExtractItemCode("1.1 Paving asphalt layer")
	if code == nil || *code != "1.1" {
		t.Fatalf("code = %v, want 1.1", code)
	}
	if desc != "Paving asphalt layer" {
		t.Fatalf("desc = %q", desc)
	}

	code, desc = ExtractItemCode("S1-1.2.3 Concrete curb")
	if code == nil || *code != "S1-1.2.3" {
		t.Fatalf("code = %v, want S1-1.2.3", code)
	}
	if desc != "Concrete curb" {
		t.Fatalf("desc = %q", desc)
	}

	code, desc = ExtractItemCode("1 1 Drainage box")
	if code == nil || *code != "1.1" {
		t.Fatalf("code = %v, want 1.1 (space rewritten to dot)", code)
	}
	_ = desc

	code, desc = ExtractItemCode("No leading code here")
	if code != nil {
		t.Fatalf("expected no code, got %v", *code)
	}
	if desc != "No leading code here" {
		t.Fatalf("desc = %q", desc)
	}
}

func TestExtractItemCodeRoundTrip(t *testing.T) {
	original := "1.1 Paving asphalt layer"
	code, desc := ExtractItemCode(original)
	reconstructed := *code + " " + desc
	if collapseWhitespace(reconstructed) != collapseWhitespace(original) {
		t.Fatalf("round trip failed: got %q, want %q", reconstructed, original)
	}
}
