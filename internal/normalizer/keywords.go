package normalizer

import "strings"

// stopwords is the fixed set of Portuguese prepositions/articles and
// unit-like tokens dropped from keyword sets, per spec.md §4.1.
var stopwords = map[string]bool{
	"DE": true, "DA": true, "DO": true, "DAS": true, "DOS": true,
	"EM": true, "NA": true, "NO": true, "NAS": true, "NOS": true,
	"PARA": true, "POR": true, "COM": true, "SEM": true, "SOB": true,
	"A": true, "O": true, "AS": true, "OS": true, "E": true, "OU": true,
	"UM": true, "UMA": true, "UNS": true, "UMAS": true,
	"M": true, "M2": true, "M3": true, "UN": true, "KG": true, "L": true,
	"T": true, "PC": true, "CX": true, "KM": true, "CM": true, "MM": true,
}

// Keywords tokenizes a canonical description and returns the set of
// significant keywords: the stopword list and single-character tokens are
// dropped.
func Keywords(canonicalDescription string) map[string]bool {
	tokens := strings.Fields(canonicalDescription)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if len(t) <= 1 {
			continue
		}
		if stopwords[t] {
			continue
		}
		set[t] = true
	}
	return set
}
