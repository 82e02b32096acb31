package extract

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/procurematch/attestation-pipeline/internal/pipelineerr"
)

// CloudOCRClient calls a remote recognition service for one page image.
// StatusCode is 0 when the failure has no HTTP-style status (e.g. a
// network error), otherwise the upstream's response status.
type CloudOCRClient interface {
	Recognize(ctx context.Context, pageImage []byte) (text string, tables []Row, confidence float64, statusCode int, err error)
}

// CloudOCR is the third cascade tier: a remote OCR API retried with
// exponential backoff on transient failures.
type CloudOCR struct {
	Client     CloudOCRClient
	Pages      PageSource
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
	Sleep      func(time.Duration) // overridable for tests
}

// NewCloudOCR builds a CloudOCR tier with the default retry policy: base
// 500ms, factor 2, capped at 8s, at least 3 attempts.
func NewCloudOCR(client CloudOCRClient, pages PageSource) *CloudOCR {
	return &CloudOCR{
		Client:     client,
		Pages:      pages,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		MaxRetries: 3,
		Sleep:      time.Sleep,
	}
}

func (c *CloudOCR) Tier() Tier { return TierCloudOCR }

func (c *CloudOCR) Extract(ctx context.Context, file FileRef, pr PageRange) (*Result, error) {
	images, err := c.Pages(file.Path, pr)
	if err != nil {
		return nil, fmt.Errorf("cloud ocr: page rasterization: %w", err)
	}

	pages := make([]Page, 0, len(images))
	for i, raw := range images {
		if err := ctx.Err(); err != nil {
			return &Result{Pages: pages, MeanConf: meanConfidence(pages)}, err
		}

		text, tables, conf, rerr := c.recognizeWithRetry(ctx, raw)
		if rerr != nil {
			return nil, fmt.Errorf("cloud ocr: page %d: %w", i+1, rerr)
		}
		pages = append(pages, Page{Number: i + 1, Text: text, Tables: tables, Confidence: conf})
	}

	return &Result{Pages: pages, MeanConf: meanConfidence(pages)}, nil
}

func (c *CloudOCR) recognizeWithRetry(ctx context.Context, img []byte) (string, []Row, float64, error) {
	var lastErr error

	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		text, tables, conf, status, err := c.Client.Recognize(ctx, img)
		if err == nil {
			return text, tables, conf, nil
		}
		lastErr = err

		classified := pipelineerr.Classify(status, err)
		if classified.Category != pipelineerr.CategoryTransient {
			return "", nil, 0, err
		}

		if attempt == c.MaxRetries-1 {
			break
		}

		delay := c.backoff(attempt)
		select {
		case <-ctx.Done():
			return "", nil, 0, ctx.Err()
		default:
		}
		c.Sleep(delay)
	}

	return "", nil, 0, fmt.Errorf("%w: exhausted %d attempts: %v", pipelineerr.ErrExtractorUnavailable, c.MaxRetries, lastErr)
}

func (c *CloudOCR) backoff(attempt int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(2, float64(attempt)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}
