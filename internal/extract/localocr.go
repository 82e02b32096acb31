package extract

import (
	"context"
	"fmt"
	"sync"
)

// Recognizer is a local OCR engine: given preprocessed page image bytes it
// returns recognized text and a confidence score. Real engines (Tesseract,
// PaddleOCR bindings) are wired in behind this port; no concrete binding
// ships in this module since none is available to import.
type Recognizer interface {
	Recognize(ctx context.Context, pageImage []byte) (text string, confidence float64, err error)
	Name() string
}

// Preprocessor runs deskew/contrast-stretch/denoise over a raw page image
// before recognition.
type Preprocessor func(pageImage []byte) ([]byte, error)

// PageSource yields raw page images for a file and page range so the
// extractor stays decoupled from any particular rasterizer.
type PageSource func(path string, pr PageRange) ([][]byte, error)

// LocalOCR is the second cascade tier: preprocessing followed by a
// primary local recognizer, falling back to a secondary recognizer when
// the primary's confidence is low on a given page.
type LocalOCR struct {
	Preprocess       Preprocessor
	Primary          Recognizer
	Secondary        Recognizer // optional; nil disables the per-page fallback
	FallbackConfGate float64    // primary confidence below this triggers the secondary recognizer
	Pages            PageSource

	enginePool sync.Pool // leases decoder scratch buffers across concurrent workers
}

// NewLocalOCR builds a LocalOCR tier. fallbackConfGate defaults to 0.5
// when zero.
func NewLocalOCR(pages PageSource, pre Preprocessor, primary, secondary Recognizer, fallbackConfGate float64) *LocalOCR {
	if fallbackConfGate <= 0 {
		fallbackConfGate = 0.5
	}
	return &LocalOCR{
		Preprocess:       pre,
		Primary:          primary,
		Secondary:        secondary,
		FallbackConfGate: fallbackConfGate,
		Pages:            pages,
		enginePool: sync.Pool{
			New: func() any { return make([]byte, 0, 1<<20) },
		},
	}
}

func (l *LocalOCR) Tier() Tier { return TierLocalOCR }

func (l *LocalOCR) Extract(ctx context.Context, file FileRef, pr PageRange) (*Result, error) {
	if l.Primary == nil {
		return nil, fmt.Errorf("local ocr: no primary recognizer configured")
	}

	images, err := l.Pages(file.Path, pr)
	if err != nil {
		return nil, fmt.Errorf("local ocr: page rasterization: %w", err)
	}

	pages := make([]Page, 0, len(images))
	for i, raw := range images {
		if err := ctx.Err(); err != nil {
			return &Result{Pages: pages, MeanConf: meanConfidence(pages)}, err
		}

		scratch := l.enginePool.Get().([]byte)
		img, perr := l.preprocess(raw)
		l.enginePool.Put(scratch[:0])
		if perr != nil {
			return nil, fmt.Errorf("local ocr: preprocessing page %d: %w", i+1, perr)
		}

		text, conf, rerr := l.Primary.Recognize(ctx, img)
		if rerr != nil {
			return nil, fmt.Errorf("local ocr: primary recognizer page %d: %w", i+1, rerr)
		}

		if conf < l.FallbackConfGate && l.Secondary != nil {
			secText, secConf, secErr := l.Secondary.Recognize(ctx, img)
			if secErr == nil && secConf > conf {
				text, conf = secText, secConf
			}
		}

		pages = append(pages, Page{Number: i + 1, Text: text, Confidence: conf})
	}

	return &Result{Pages: pages, MeanConf: meanConfidence(pages)}, nil
}

func (l *LocalOCR) preprocess(raw []byte) ([]byte, error) {
	if l.Preprocess == nil {
		return raw, nil
	}
	return l.Preprocess(raw)
}
