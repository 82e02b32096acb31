// Package extract holds the four extractor tiers (native text, local OCR,
// cloud OCR, vision AI) the cascade orchestrator escalates across. All four
// share the Extractor contract so the orchestrator can treat them
// uniformly. The page-oriented shape and cancellation-at-page-boundaries
// discipline are grounded on converter.Converter and its parsers in the
// teacher repo; the structured-output tiers reuse internal/llm.
package extract

import "context"

// FileRef identifies the document being extracted.
type FileRef struct {
	Path string
}

// PageRange is an inclusive, 1-indexed page window. Zero values mean "the
// whole document".
type PageRange struct {
	Start int
	End   int
}

// Row is one row of a detected table, cell by cell.
type Row []string

// Page is one page's extraction output.
type Page struct {
	Number     int
	Text       string
	Tables     []Row
	Confidence float64 // [0,1]; 1.0 for tiers with no native confidence notion
}

// Result is the full output of running one extractor over a page range.
type Result struct {
	Pages      []Page
	MeanConf   float64
	InputUSD   float64 // cost charged to the job's ledger by this call, if any
	TokensUsed int
}

// Tier names the four extractor tiers, in cost-ascending order.
type Tier string

const (
	TierNative   Tier = "native"
	TierLocalOCR Tier = "local_ocr"
	TierCloudOCR Tier = "cloud_ocr"
	TierVision   Tier = "vision"
)

// Order is the fixed cost-ascending escalation order the cascade walks.
var Order = []Tier{TierNative, TierLocalOCR, TierCloudOCR, TierVision}

// MinConfidence is the per-tier confidence floor below which the cascade
// escalates to the next tier. Vision is terminal and is never compared
// against a threshold.
var MinConfidence = map[Tier]float64{
	TierNative:   0.98,
	TierLocalOCR: 0.70,
	TierCloudOCR: 0.85,
}

// Extractor is the contract every tier implements.
type Extractor interface {
	Tier() Tier
	// Extract must check ctx at each page boundary and return promptly
	// with ctx.Err() when cancelled, returning whatever pages were
	// already produced.
	Extract(ctx context.Context, file FileRef, pages PageRange) (*Result, error)
}

func meanConfidence(pages []Page) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pages {
		sum += p.Confidence
	}
	return sum / float64(len(pages))
}
