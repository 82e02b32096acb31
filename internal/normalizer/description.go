package normalizer

import (
	"regexp"
	"strings"
)

var separatorPunct = regexp.MustCompile(`[;:]+`)
var nonWord = regexp.MustCompile(`[^A-Z0-9 ]`)

// digitRunConfusion matches a run that mixes digits with the letters OCR
// commonly confuses with digits (I, l, O), so the confusion is only
// corrected inside what is clearly meant to be a number.
var digitRunConfusion = regexp.MustCompile(`[0-9OIl]{2,}`)

func fixDigitLetterConfusion(run string) string {
	if !strings.ContainsAny(run, "0123456789") {
		return run
	}
	replacer := strings.NewReplacer("I", "1", "l", "1", "O", "0")
	return replacer.Replace(run)
}

// NormalizeDescription canonicalizes a raw description into its uppercase,
// punctuation-free comparison form, per spec.md §4.1.
func NormalizeDescription(raw string) string {
	s := stripDiacritics(raw)
	s = strings.ToUpper(s)
	s = separatorPunct.ReplaceAllString(s, ",")
	s = nonWord.ReplaceAllString(s, " ")
	s = digitRunConfusion.ReplaceAllStringFunc(s, fixDigitLetterConfusion)
	s = collapseWhitespace(s)
	return s
}
