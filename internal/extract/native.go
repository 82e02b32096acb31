package extract

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// TextLayerReader reads the embedded, selectable text layer of a document,
// one page per element, reporting ok=false when the document has no such
// layer (a pure scan). Document formats that expose a text layer (PDF,
// DOCX) are expected to be wired in via this seam; the default reader
// below handles the plain-text case directly so the tier is exercisable
// without an external dependency.
type TextLayerReader func(path string) (pages []string, ok bool, err error)

// NativeText is the zero-cost, highest-priority tier: it only ever
// succeeds when the source document carries a selectable text layer.
type NativeText struct {
	ReadLayer TextLayerReader
}

// NewNativeText builds a NativeText extractor. A nil reader falls back to
// DefaultTextLayerReader.
func NewNativeText(reader TextLayerReader) *NativeText {
	if reader == nil {
		reader = DefaultTextLayerReader
	}
	return &NativeText{ReadLayer: reader}
}

func (n *NativeText) Tier() Tier { return TierNative }

func (n *NativeText) Extract(ctx context.Context, file FileRef, pr PageRange) (*Result, error) {
	pages, ok, err := n.ReadLayer(file.Path)
	if err != nil {
		return nil, fmt.Errorf("native text layer read: %w", err)
	}
	if !ok {
		return &Result{Pages: nil, MeanConf: 0}, nil
	}

	pages = sliceByRange(pages, pr)

	result := make([]Page, 0, len(pages))
	for i, text := range pages {
		if err := ctx.Err(); err != nil {
			return &Result{Pages: result, MeanConf: meanConfidenceOf(result)}, err
		}
		result = append(result, Page{
			Number:     i + 1,
			Text:       text,
			Confidence: 1.0,
		})
	}

	return &Result{Pages: result, MeanConf: meanConfidenceOf(result)}, nil
}

func meanConfidenceOf(pages []Page) float64 { return meanConfidence(pages) }

func sliceByRange(pages []string, pr PageRange) []string {
	if pr.Start == 0 && pr.End == 0 {
		return pages
	}
	start := pr.Start - 1
	if start < 0 {
		start = 0
	}
	end := pr.End
	if end > len(pages) || end == 0 {
		end = len(pages)
	}
	if start >= end {
		return nil
	}
	return pages[start:end]
}

// DefaultTextLayerReader treats plain-text files (.txt, .md) as fully
// native, splitting on form-feed page breaks; any other extension is
// reported as having no embedded layer, forcing escalation to OCR.
func DefaultTextLayerReader(path string) ([]string, bool, error) {
	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".txt") && !strings.HasSuffix(lower, ".md") {
		return nil, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return nil, false, nil
	}

	pages := strings.Split(content, "\f")
	return pages, true, nil
}
