package normalizer

import (
	"regexp"
	"strings"
)

// ItemCodeTokenSrc is the regex source for a bare hierarchical item-code
// token, optionally prefixed with a "S<n>-" (supplementary) or "AD<n>-"
// (additive) marker, per spec.md §3/§4.1. The dotted and space-separated
// forms are both recognized. Exported so other packages that need to
// recognize an item-code-shaped token (rather than extract one from a
// full description) can anchor their own pattern on the same definition.
const ItemCodeTokenSrc = `(?:S\d+-|AD\d*-)?(?:\d{1,3}(?:\.\d{1,3}){1,3}|\d{1,3}(?: \d{1,2}){1,3})`

// itemCodePattern matches a leading item-code token at the start of a
// string, followed by its trailing separator.
var itemCodePattern = regexp.MustCompile(`^(` + ItemCodeTokenSrc + `)\s*`)

// ExtractItemCode detects a leading item-code token in a raw service
// description and returns the rewritten code (spaces turned to dots) plus
// the remaining description with the code stripped. If no code is found,
// code is nil and description is returned trimmed and whitespace-collapsed.
func ExtractItemCode(raw string) (code *string, description string) {
	trimmed := strings.TrimSpace(raw)
	m := itemCodePattern.FindStringSubmatchIndex(trimmed)
	if m == nil {
		return nil, collapseWhitespace(trimmed)
	}

	rawCode := trimmed[m[2]:m[3]]
	rest := trimmed[m[1]:]

	canonical := strings.ReplaceAll(rawCode, " ", ".")
	return &canonical, collapseWhitespace(rest)
}
