// Package cascade runs the tier-escalation algorithm that turns a
// document into a deduplicated services list: pick a starting tier, run
// it, escalate on low confidence, merge page outputs, normalize, and
// backfill missing quantities. The pipe-staged shape (parse -> detect ->
// map -> build) is grounded on converter.Converter in the teacher repo;
// tier selection and escalation are grounded on ai.FallbackChain and
// ai.ModelRouter.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/procurematch/attestation-pipeline/internal/extract"
	"github.com/procurematch/attestation-pipeline/internal/llm"
	"github.com/procurematch/attestation-pipeline/internal/models"
	"github.com/procurematch/attestation-pipeline/internal/normalizer"
	"github.com/procurematch/attestation-pipeline/internal/pipelineerr"
	"github.com/procurematch/attestation-pipeline/internal/quality"
)

// Stage names match the progress events emitted at each boundary.
const (
	StageText  = "texto"
	StageOCR   = "ocr"
	StageVisn  = "vision"
	StageIA    = "ia"
	StageMerge = "merge"
	StageFinal = "final"
	StageSave  = "save"
)

// ProgressFunc receives a progress update at every stage boundary. Only
// the merge stage reports page counts (total is the number of pages being
// merged); the tier, ia and final stages report a single step, 0 of 1 on
// entry and 1 of 1 on exit.
type ProgressFunc func(stage string, current, total int, message string)

// StructuredExtractor runs a structured-output pass over concatenated
// page text when no tier produced usable tabular data.
type StructuredExtractor interface {
	ExtractServices(ctx context.Context, text string) ([]models.Service, error)
}

// Metadata describes how a job was processed, independent of its
// resulting services.
type Metadata struct {
	PipelineUsed   extract.Tier
	PagesProcessed int
	MeanConfidence float64
	EscalatedFrom  []extract.Tier
}

// Orchestrator runs the cascade algorithm across the four extractor
// tiers for a single job.
type Orchestrator struct {
	Native   extract.Extractor
	LocalOCR extract.Extractor
	CloudOCR extract.Extractor
	Vision   extract.Extractor

	Structured StructuredExtractor
	Ledger     *llm.Ledger // nil disables cost-aware escalation gating
	Progress   ProgressFunc
}

func (o *Orchestrator) extractorFor(tier extract.Tier) extract.Extractor {
	switch tier {
	case extract.TierNative:
		return o.Native
	case extract.TierLocalOCR:
		return o.LocalOCR
	case extract.TierCloudOCR:
		return o.CloudOCR
	case extract.TierVision:
		return o.Vision
	}
	return nil
}

func (o *Orchestrator) emit(stage string, current, total int, message string) {
	if o.Progress != nil {
		o.Progress(stage, current, total, message)
	}
}

// Process runs the full cascade for one job: tier selection, escalation,
// merge, normalization, and quantity backfill.
func (o *Orchestrator) Process(ctx context.Context, jobID string, file extract.FileRef, detected quality.Classification, tierHint extract.Tier) ([]models.Service, Metadata, error) {
	startTier := quality.PreferredExtractorTier[detected.Tier]
	tier := extract.Tier(startTier)
	if tierHint != "" {
		tier = tierHint
	}

	var escalatedFrom []extract.Tier
	var result *extract.Result
	var err error

	for {
		if ctx.Err() != nil {
			return nil, Metadata{}, fmt.Errorf("%w", pipelineerr.ErrCancelled)
		}

		stage := stageForTier(tier)
		o.emit(stage, 0, 1, fmt.Sprintf("running %s tier", tier))

		ex := o.extractorFor(tier)
		if ex == nil {
			return nil, Metadata{}, fmt.Errorf("cascade: no extractor configured for tier %s", tier)
		}

		result, err = ex.Extract(ctx, file, extract.PageRange{})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, Metadata{}, fmt.Errorf("%w", pipelineerr.ErrCancelled)
			}
			classified := pipelineerr.Classify(0, err)
			if classified.Category == pipelineerr.CategoryTransient {
				// retried in place by the extractor itself; surface if still failing
				return nil, Metadata{}, err
			}
			// permanent error: escalate
			next, ok := nextTier(tier)
			if !ok {
				return nil, Metadata{}, fmt.Errorf("vision tier failed, cascade exhausted: %w", err)
			}
			escalatedFrom = append(escalatedFrom, tier)
			tier = next
			continue
		}

		o.emit(stage, 1, 1, fmt.Sprintf("%s tier produced %d pages, mean confidence %.2f", tier, len(result.Pages), result.MeanConf))

		threshold, hasThreshold := extract.MinConfidence[tier]
		if hasThreshold && result.MeanConf < threshold {
			next, ok := nextTier(tier)
			if !ok {
				return nil, Metadata{}, fmt.Errorf("%w", pipelineerr.ErrExtractorLowConfidence)
			}
			if o.Ledger != nil && o.Ledger.WouldExceed(jobID, "gpt-4o", 100_000, 10_000) && next == extract.TierVision {
				// cost ceiling reached: keep this tier's output instead of escalating
				break
			}
			escalatedFrom = append(escalatedFrom, tier)
			tier = next
			continue
		}

		break
	}

	o.emit(StageMerge, 0, len(result.Pages), "merging page outputs")
	services, err := o.merge(ctx, result)
	if err != nil {
		return nil, Metadata{}, err
	}
	o.emit(StageMerge, len(result.Pages), len(result.Pages), "merge complete")

	o.emit(StageFinal, 0, 1, "normalizing and deduplicating")
	services, err = o.postProcess(services, result)
	if err != nil {
		return nil, Metadata{}, err
	}
	o.emit(StageFinal, 1, 1, "normalization complete")

	meta := Metadata{
		PipelineUsed:   tier,
		PagesProcessed: len(result.Pages),
		MeanConfidence: result.MeanConf,
		EscalatedFrom:  escalatedFrom,
	}
	return services, meta, nil
}

// merge prefers tabular rows from any page; falls back to a structured
// LLM extraction pass over concatenated text when no tier produced
// tables.
func (o *Orchestrator) merge(ctx context.Context, result *extract.Result) ([]models.Service, error) {
	var hasTables bool
	for _, p := range result.Pages {
		if len(p.Tables) > 0 {
			hasTables = true
			break
		}
	}

	if hasTables {
		var services []models.Service
		for _, p := range result.Pages {
			for _, row := range p.Tables {
				services = append(services, serviceFromRow(row))
			}
		}
		return services, nil
	}

	if o.Structured == nil {
		return nil, fmt.Errorf("cascade: no tabular data and no structured extractor configured")
	}

	var sb strings.Builder
	for _, p := range result.Pages {
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}

	o.emit(StageIA, 0, 1, "invoking structured extraction over concatenated text")
	services, err := o.Structured.ExtractServices(ctx, sb.String())
	if err != nil {
		return nil, fmt.Errorf("cascade: structured extraction: %w", err)
	}
	o.emit(StageIA, 1, 1, "structured extraction complete")
	return services, nil
}

func serviceFromRow(row extract.Row) models.Service {
	var s models.Service
	if len(row) > 0 && row[0] != "" {
		code := row[0]
		s.ItemCode = &code
	}
	if len(row) > 1 {
		s.Description = row[1]
	}
	if len(row) > 2 && row[2] != "" {
		if q, err := strconv.ParseFloat(strings.ReplaceAll(row[2], ",", "."), 64); err == nil {
			s.Quantity = &q
		}
	}
	if len(row) > 3 {
		s.Unit = row[3]
	}
	return s
}

// postProcess runs every service through the normalizer, deduplicates,
// backfills missing quantities from raw page text, and then drops any
// service that still can't satisfy the completed-job invariant (§3/§8:
// every service in a completed job has a positive quantity and a
// non-empty unit). Normalization turning a present unit into an empty
// one is a different failure: that's not a gap in the source document,
// it's the normalizer contradicting itself, so it fails the job instead
// of silently dropping data.
func (o *Orchestrator) postProcess(services []models.Service, result *extract.Result) ([]models.Service, error) {
	normalized := make([]models.Service, 0, len(services))
	for _, s := range services {
		code, desc := normalizer.ExtractItemCode(s.Description)
		if s.ItemCode == nil {
			s.ItemCode = code
		}
		s.Description = desc

		rawUnit := s.Unit
		s.Unit = normalizer.NormalizeUnit(s.Unit)
		if strings.TrimSpace(rawUnit) != "" && s.Unit == "" {
			return nil, fmt.Errorf("%w: normalization emptied unit %q for service %q", pipelineerr.ErrInvariantViolation, rawUnit, s.Description)
		}

		normalized = append(normalized, s)
	}

	normalized = normalizer.Dedupe(normalized)

	var rawText strings.Builder
	for _, p := range result.Pages {
		rawText.WriteString(p.Text)
		rawText.WriteString("\n")
	}
	backfillQuantities(normalized, rawText.String())

	complete := make([]models.Service, 0, len(normalized))
	for _, s := range normalized {
		if s.IsComplete() {
			complete = append(complete, s)
		}
	}

	return complete, nil
}

// quantityAdjacentCode matches an item-code token (reusing
// normalizer.ItemCodeTokenSrc's shape, so only things that actually look
// like an item code can land in the code group) immediately preceded by
// either the start of the text or a non-code character. Without that
// boundary, a preceding word like "Item" greedily absorbs into the code
// group and the real code never matches.
var quantityAdjacentCode = regexp.MustCompile(`(?:^|[^A-Za-z0-9.\-])(` + normalizer.ItemCodeTokenSrc + `)\s*[-:]?\s*(\d+(?:[.,]\d+)?)`)

// backfillQuantities assigns a quantity to services that have a
// description and unit but no quantity, when the raw text contains an
// unambiguous quantity token adjacent to the item code.
func backfillQuantities(services []models.Service, rawText string) {
	for i := range services {
		s := &services[i]
		if s.Quantity != nil || s.ItemCode == nil || s.Unit == "" {
			continue
		}

		var matches [][]string
		for _, m := range quantityAdjacentCode.FindAllStringSubmatch(rawText, -1) {
			if m[1] == *s.ItemCode {
				matches = append(matches, m)
			}
		}
		if len(matches) != 1 {
			continue // ambiguous or absent; leave unset
		}

		q, err := strconv.ParseFloat(strings.ReplaceAll(matches[0][2], ",", "."), 64)
		if err != nil {
			continue
		}
		s.Quantity = &q
	}
}

func stageForTier(tier extract.Tier) string {
	switch tier {
	case extract.TierNative:
		return StageText
	case extract.TierLocalOCR, extract.TierCloudOCR:
		return StageOCR
	case extract.TierVision:
		return StageVisn
	}
	return StageText
}

func nextTier(tier extract.Tier) (extract.Tier, bool) {
	for i, t := range extract.Order {
		if t == tier && i+1 < len(extract.Order) {
			return extract.Order[i+1], true
		}
	}
	return "", false
}
