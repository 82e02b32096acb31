package normalizer

import "testing"

func TestNormalizeDescription(t *testing.T) {
	cases := map[string]string{
		"Pavimentação asfáltica; camada de rolamento": "PAVIMENTACAO ASFALTICA CAMADA DE ROLAMENTO",
		"Meio-fio de concreto":                         "MEIO FIO DE CONCRETO",
		"  muitos   espaços  ":                         "MUITOS ESPACOS",
	}
	for in, want := range cases {
		if got := NormalizeDescription(in); got != want {
			t.Errorf("NormalizeDescription(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeDescriptionFixesDigitLetterConfusion(t *testing.T) {
	got := NormalizeDescription("lote I0O")
	want := "LOTE 100"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
