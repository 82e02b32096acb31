package normalizer

import "testing"

func TestKeywordsDropsStopwordsAndShortTokens(t *testing.T) {
	set := Keywords("PAVIMENTACAO DE CONCRETO COM A ARMADURA E UM M2")
	want := map[string]bool{"PAVIMENTACAO": true, "CONCRETO": true, "ARMADURA": true}

	if len(set) != len(want) {
		t.Fatalf("Keywords() = %v, want %v", set, want)
	}
	for k := range want {
		if !set[k] {
			t.Errorf("expected keyword %q to survive, set = %v", k, set)
		}
	}
	for _, dropped := range []string{"DE", "COM", "A", "E", "UM", "M2"} {
		if set[dropped] {
			t.Errorf("expected %q to be dropped as stopword/short token", dropped)
		}
	}
}

func TestKeywordsEmptyInput(t *testing.T) {
	set := Keywords("")
	if len(set) != 0 {
		t.Fatalf("expected empty keyword set, got %v", set)
	}
}
