// Package normalizer canonicalizes units, descriptions, and numbers across
// noisy OCR and native-text input. It is grounded on the fixed
// lookup-table correction pattern already used by the teacher's column
// header mapper (internal/converter/column_map.go) and header detector
// (internal/converter/header_detect.go), generalized from "map a
// spreadsheet header to a canonical field" to "map a noisy unit/description
// token to its canonical form".
package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics removes combining marks after NFD decomposition, e.g.
// "É" -> "E", "ç" -> "c". Grounded on the NFKC normalization already used by
// converter.NormalizeUnicode, generalized to full diacritic removal.
var diacriticsStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func stripDiacritics(s string) string {
	out, _, err := transform.String(diacriticsStripper, s)
	if err != nil {
		return s
	}
	return out
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// superSubScripts maps Unicode super/subscript digits to their ASCII digit.
var superSubScripts = map[rune]rune{
	'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4', '⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9',
	'₀': '0', '₁': '1', '₂': '2', '₃': '3', '₄': '4', '₅': '5', '₆': '6', '₇': '7', '₈': '8', '₉': '9',
}

func translateScripts(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if ascii, ok := superSubScripts[r]; ok {
			b.WriteRune(ascii)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// areaUnitVariants rewrites common OCR mangles of "square meter" notation to
// the canonical M2 token: M^2, M², M?, M° (the '?' and '°' are typical OCR
// substitutions for a garbled superscript 2).
var areaUnitVariants = regexp.MustCompile(`^M(\^2|2|\?|°)$`)

// unitCorrections is the fixed correction table from spec.md §4.1. Applied
// after diacritics/case/whitespace normalization, before the final
// character-class restriction. Keys and values are already uppercase.
var unitCorrections = map[string]string{
	"UNI":     "UN",
	"UND":     "UN",
	"UNIDADE": "UN",
	"METRO":   "M",
	"METROS":  "M",
	"KGS":     "KG",
	"LT":      "L",
	"TON":     "T",
	"M23":     "M2",
	"M22":     "M2",
	"M32":     "M3",
	"M33":     "M3",
	"MOS":     "MES",
}

var nonAlphaNum = regexp.MustCompile(`[^A-Z0-9]`)

// collapseRepeatedLetters fixes OCR doubling artifacts: NN->N (unless the
// token is exactly "UN", where the N is legitimate), MM->M, UU->U.
func collapseRepeatedLetters(token string) string {
	if token == "UN" {
		return token
	}
	token = strings.ReplaceAll(token, "NN", "N")
	token = strings.ReplaceAll(token, "MM", "M")
	token = strings.ReplaceAll(token, "UU", "U")
	return token
}

// NormalizeUnit canonicalizes a raw unit token into its uppercase, stable
// form, per spec.md §4.1.
func NormalizeUnit(raw string) string {
	s := stripDiacritics(raw)
	s = strings.ToUpper(s)
	s = collapseWhitespace(s)
	s = translateScripts(s)
	s = strings.ReplaceAll(s, " ", "")

	if areaUnitVariants.MatchString(s) {
		s = "M2"
	}

	s = collapseRepeatedLetters(s)

	if corrected, ok := unitCorrections[s]; ok {
		s = corrected
	}

	s = nonAlphaNum.ReplaceAllString(s, "")
	return s
}

// validUnits is the fixed list of recognized canonical unit tokens.
var validUnits = map[string]bool{
	"UN": true, "UND": true, "PC": true, "PCT": true, "M": true, "M2": true, "M3": true,
	"KG": true, "T": true, "L": true, "ML": true, "CX": true, "KM": true, "CM": true,
	"MM": true, "H": true, "HR": true, "MES": true, "DIA": true, "VB": true, "GL": true,
	"SC": true, "RL": true, "PAR": true, "JG": true, "KIT": true,
}

// ValidUnit reports whether a (normalized) token is an acceptable unit: it
// is in the fixed valid-unit list, or short enough to plausibly be a
// legitimate abbreviation/code (length <= 3). Tokens longer than 5 are
// rejected outright; tokens of length 4-5 not in the list are rejected too,
// since a real unit abbreviation that long would already be in the table.
func ValidUnit(token string) bool {
	if validUnits[token] {
		return true
	}
	if len(token) <= 3 {
		return true
	}
	if len(token) > 5 {
		return false
	}
	return false
}
