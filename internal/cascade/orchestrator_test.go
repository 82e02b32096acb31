package cascade

import (
	"context"
	"testing"

	"github.com/procurematch/attestation-pipeline/internal/extract"
	"github.com/procurematch/attestation-pipeline/internal/models"
	"github.com/procurematch/attestation-pipeline/internal/quality"
)

type stubExtractor struct {
	tier   extract.Tier
	result *extract.Result
	err    error
}

func (s *stubExtractor) Tier() extract.Tier { return s.tier }
func (s *stubExtractor) Extract(ctx context.Context, file extract.FileRef, pr extract.PageRange) (*extract.Result, error) {
	return s.result, s.err
}

func tableResult(conf float64) *extract.Result {
	return &extract.Result{
		Pages: []extract.Page{
			{Number: 1, Tables: []extract.Row{{"1.1", "Paving asphalt", "100", "M2"}}, Confidence: conf},
		},
		MeanConf: conf,
	}
}

func TestProcessUsesNativeTierWhenConfident(t *testing.T) {
	o := &Orchestrator{
		Native: &stubExtractor{tier: extract.TierNative, result: tableResult(0.99)},
	}

	services, meta, err := o.Process(context.Background(), "job-1", extract.FileRef{Path: "x"}, quality.Classification{Tier: quality.TierNative}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.PipelineUsed != extract.TierNative {
		t.Fatalf("expected native pipeline used, got %v", meta.PipelineUsed)
	}
	if len(services) != 1 || services[0].Description != "Paving asphalt" {
		t.Fatalf("unexpected services: %+v", services)
	}
	if services[0].Unit != "M2" {
		t.Fatalf("expected normalized unit M2, got %q", services[0].Unit)
	}
}

func TestProcessEscalatesOnLowConfidence(t *testing.T) {
	o := &Orchestrator{
		Native:   &stubExtractor{tier: extract.TierNative, result: tableResult(0.10)},
		LocalOCR: &stubExtractor{tier: extract.TierLocalOCR, result: tableResult(0.99)},
	}

	_, meta, err := o.Process(context.Background(), "job-1", extract.FileRef{Path: "x"}, quality.Classification{Tier: quality.TierNative}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.PipelineUsed != extract.TierLocalOCR {
		t.Fatalf("expected escalation to local_ocr, got %v", meta.PipelineUsed)
	}
	if len(meta.EscalatedFrom) != 1 || meta.EscalatedFrom[0] != extract.TierNative {
		t.Fatalf("expected escalation trail from native, got %+v", meta.EscalatedFrom)
	}
}

func TestProcessFailsWhenVisionExhausted(t *testing.T) {
	o := &Orchestrator{
		Vision: &stubExtractor{tier: extract.TierVision, result: &extract.Result{}, err: errPermanent},
	}

	_, _, err := o.Process(context.Background(), "job-1", extract.FileRef{Path: "x"}, quality.Classification{Tier: quality.TierVeryHard}, "")
	if err == nil {
		t.Fatalf("expected terminal failure when vision tier errors")
	}
}

func TestBackfillQuantitiesAssignsUnambiguousMatch(t *testing.T) {
	code := "1.1"
	services := []models.Service{
		{ItemCode: &code, Description: "Paving asphalt", Unit: "M2"},
	}
	backfillQuantities(services, "Item 1.1 - 150 square meters of paving")
	if services[0].Quantity == nil || *services[0].Quantity != 150 {
		t.Fatalf("expected quantity backfilled to 150, got %v", services[0].Quantity)
	}
}

func TestBackfillQuantitiesSkipsAmbiguousMatch(t *testing.T) {
	code := "1.1"
	services := []models.Service{
		{ItemCode: &code, Description: "Paving asphalt", Unit: "M2"},
	}
	backfillQuantities(services, "Item 1.1 - 150 meters, then later 1.1 - 200 meters again")
	if services[0].Quantity != nil {
		t.Fatalf("expected no backfill on ambiguous match, got %v", *services[0].Quantity)
	}
}

var errPermanent = &permanentErr{}

type permanentErr struct{}

func (e *permanentErr) Error() string { return "bad request" }
