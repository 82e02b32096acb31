package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/procurematch/attestation-pipeline/internal/llm"
)

// visionServicesSchema is the JSON schema a vision call's structured
// output must conform to: a flat services table per page.
var visionServicesSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"rows": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"item_code":   map[string]any{"type": []string{"string", "null"}},
					"description": map[string]any{"type": "string"},
					"quantity":    map[string]any{"type": []string{"number", "null"}},
					"unit":        map[string]any{"type": "string"},
				},
				"required": []string{"description", "unit"},
			},
		},
	},
	"required": []string{"rows"},
}

type visionRow struct {
	ItemCode    *string  `json:"item_code"`
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	Unit        string   `json:"unit"`
}

type visionPayload struct {
	Rows []visionRow `json:"rows"`
}

// Vision is the terminal cascade tier: a multimodal model is asked to
// read a services table directly out of page images. It never escalates
// further; if it fails, the whole job fails.
type Vision struct {
	Chain *llm.FallbackChain
	Pages PageSource
}

// NewVision builds a Vision tier backed by a provider fallback chain.
func NewVision(chain *llm.FallbackChain, pages PageSource) *Vision {
	return &Vision{Chain: chain, Pages: pages}
}

func (v *Vision) Tier() Tier { return TierVision }

func (v *Vision) Extract(ctx context.Context, file FileRef, pr PageRange) (*Result, error) {
	images, err := v.Pages(file.Path, pr)
	if err != nil {
		return nil, fmt.Errorf("vision: page rasterization: %w", err)
	}

	pages := make([]Page, 0, len(images))
	totalTokens := 0

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return &Result{Pages: pages, MeanConf: meanConfidence(pages), TokensUsed: totalTokens}, err
		}

		resp, err := v.Chain.Call(ctx, llm.Request{
			SystemPrompt: "Extract every line item from this page into a structured services table. Return only rows you can read with confidence.",
			ImageData:    img,
			Schema:       visionServicesSchema,
		})
		if err != nil {
			return nil, fmt.Errorf("vision: page %d: %w", i+1, err)
		}

		var payload visionPayload
		if jerr := json.Unmarshal([]byte(resp.Content), &payload); jerr != nil {
			return nil, fmt.Errorf("vision: page %d: invalid structured output: %w", i+1, jerr)
		}

		totalTokens += resp.TokensUsed
		pages = append(pages, Page{
			Number:     i + 1,
			Tables:     rowsFromVisionPayload(payload),
			Confidence: 1.0, // vision is terminal; it is never compared against a tier threshold
		})
	}

	return &Result{Pages: pages, MeanConf: meanConfidence(pages), TokensUsed: totalTokens}, nil
}

func rowsFromVisionPayload(p visionPayload) []Row {
	rows := make([]Row, 0, len(p.Rows))
	for _, r := range p.Rows {
		code := ""
		if r.ItemCode != nil {
			code = *r.ItemCode
		}
		qty := ""
		if r.Quantity != nil {
			qty = fmt.Sprintf("%v", *r.Quantity)
		}
		rows = append(rows, Row{code, r.Description, qty, r.Unit})
	}
	return rows
}
