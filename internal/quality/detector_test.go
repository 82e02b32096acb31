package quality

import "testing"

func TestClassifyNativeWhenFullySelectable(t *testing.T) {
	c := Classify(Signals{SelectableTextRatio: 1.0})
	if c.Tier != TierNative {
		t.Fatalf("Tier = %v, want native", c.Tier)
	}
}

func TestClassifyEasyWhenPartiallySelectable(t *testing.T) {
	c := Classify(Signals{SelectableTextRatio: 0.6})
	if c.Tier != TierEasy {
		t.Fatalf("Tier = %v, want easy", c.Tier)
	}
}

func TestClassifyEasyOnCleanScan(t *testing.T) {
	c := Classify(Signals{MeanOCRConfidence: 0.9, SkewDegrees: 1, BinarizationContrast: 0.8})
	if c.Tier != TierEasy {
		t.Fatalf("Tier = %v, want easy", c.Tier)
	}
}

func TestClassifyMediumOnModerateScan(t *testing.T) {
	c := Classify(Signals{MeanOCRConfidence: 0.75, SkewDegrees: 3, BinarizationContrast: 0.5})
	if c.Tier != TierMedium {
		t.Fatalf("Tier = %v, want medium", c.Tier)
	}
}

func TestClassifyHardOnDegradedScan(t *testing.T) {
	c := Classify(Signals{MeanOCRConfidence: 0.5, BinarizationContrast: 0.3})
	if c.Tier != TierHard {
		t.Fatalf("Tier = %v, want hard", c.Tier)
	}
}

func TestClassifyVeryHardOnPoorScan(t *testing.T) {
	c := Classify(Signals{MeanOCRConfidence: 0.1, BinarizationContrast: 0.05})
	if c.Tier != TierVeryHard {
		t.Fatalf("Tier = %v, want very_hard", c.Tier)
	}
}

func TestPreferredExtractorTierCoversAllTiers(t *testing.T) {
	for _, tier := range []Tier{TierNative, TierEasy, TierMedium, TierHard, TierVeryHard} {
		if _, ok := PreferredExtractorTier[tier]; !ok {
			t.Errorf("missing preferred extractor for tier %v", tier)
		}
	}
}
