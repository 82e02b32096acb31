package normalizer

import "testing"

func TestSimilarityAsymmetricToLargerBag(t *testing.T) {
	short := Keywords(NormalizeDescription("paving asphalt"))
	long := Keywords(NormalizeDescription("paving asphalt layer with compaction and sealing"))

	// short is a keyword subset of long; similarity must be penalized by the
	// larger bag's size, not just the smaller one's.
	sim := Similarity(short, long)
	if sim >= 1.0 {
		t.Fatalf("expected similarity < 1.0 for subset match against a larger bag, got %v", sim)
	}
	if sim <= 0 {
		t.Fatalf("expected positive similarity, got %v", sim)
	}
}

func TestSimilarityEmptySets(t *testing.T) {
	if got := Similarity(map[string]bool{}, map[string]bool{"X": true}); got != 0 {
		t.Fatalf("expected 0 for empty set, got %v", got)
	}
}

func TestSimilarityIdentical(t *testing.T) {
	a := Keywords(NormalizeDescription("porcelain laminated paving"))
	b := Keywords(NormalizeDescription("porcelain laminated paving"))
	if got := Similarity(a, b); got != 1.0 {
		t.Fatalf("expected 1.0 for identical sets, got %v", got)
	}
}
