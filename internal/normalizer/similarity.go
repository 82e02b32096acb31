package normalizer

// Similarity scores two keyword sets by the cardinality of their
// intersection divided by the greater of the two set sizes. This is
// deliberately asymmetric toward the larger bag (denominator = max, not
// min) so a short description cannot falsely cover a long one by being a
// keyword subset of it. Undefined (empty) sets yield 0.
func Similarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := CommonWords(a, b)
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(common) / float64(denom)
}

// CommonWords returns the size of the intersection of two keyword sets.
func CommonWords(a, b map[string]bool) int {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	count := 0
	for k := range small {
		if big[k] {
			count++
		}
	}
	return count
}
