package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/procurematch/attestation-pipeline/internal/models"
)

// servicesTableSchema constrains a structured-extraction pass to the same
// flat services table shape the vision tier uses, so both paths merge
// identically in the cascade orchestrator.
var servicesTableSchema = map[string]any{
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

type servicesRow struct {
	ItemCode    *string  `json:"item_code"`
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	Unit        string   `json:"unit"`
}

type servicesPayload struct {
	Rows []servicesRow `json:"rows"`
}

// StructuredExtractor runs a text-only structured-output pass over
// concatenated page text, for documents where no tier produced a usable
// table directly. It satisfies cascade.StructuredExtractor.
type StructuredExtractor struct {
	Chain *FallbackChain
}

// NewStructuredExtractor builds a StructuredExtractor backed by a provider
// fallback chain.
func NewStructuredExtractor(chain *FallbackChain) *StructuredExtractor {
	return &StructuredExtractor{Chain: chain}
}

// ExtractServices asks the chain to pull a services table out of raw text.
func (s *StructuredExtractor) ExtractServices(ctx context.Context, text string) ([]models.Service, error) {
	if s.Chain == nil {
		return nil, fmt.Errorf("structured extraction: no llm provider configured")
	}

	resp, err := s.Chain.Call(ctx, Request{
		SystemPrompt: "Extract every line item from this procurement document into a structured services table. Return only rows you can identify with confidence.",
		UserContent:  text,
		Schema:       servicesTableSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("structured extraction: %w", err)
	}

	var payload servicesPayload
	if jerr := json.Unmarshal([]byte(resp.Content), &payload); jerr != nil {
		return nil, fmt.Errorf("structured extraction: invalid structured output: %w", jerr)
	}

	services := make([]models.Service, 0, len(payload.Rows))
	for _, r := range payload.Rows {
		services = append(services, models.Service{
			ItemCode:    r.ItemCode,
			Description: r.Description,
			Quantity:    r.Quantity,
			Unit:        r.Unit,
		})
	}
	return services, nil
}
