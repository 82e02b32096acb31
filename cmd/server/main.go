package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/procurematch/attestation-pipeline/internal/cascade"
	"github.com/procurematch/attestation-pipeline/internal/config"
	"github.com/procurematch/attestation-pipeline/internal/database"
	"github.com/procurematch/attestation-pipeline/internal/extract"
	httphandler "github.com/procurematch/attestation-pipeline/internal/http"
	"github.com/procurematch/attestation-pipeline/internal/llm"
	"github.com/procurematch/attestation-pipeline/internal/models"
	"github.com/procurematch/attestation-pipeline/internal/progress"
	"github.com/procurematch/attestation-pipeline/internal/quality"
	"github.com/procurematch/attestation-pipeline/internal/queue"
	"github.com/procurematch/attestation-pipeline/internal/store"
)

func main() {
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	cfg := config.LoadConfig()
	if err := config.ValidateConfig(cfg); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("starting server", "host", cfg.Host, "port", cfg.Port, "llm_enabled", cfg.LLMEnabled)

	pool, err := database.New(cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(pool); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	pgStore := store.NewPostgresStore(pool)
	hub := progress.NewHub()

	orchestrator := buildOrchestrator(cfg)

	processFunc := buildProcessFunc(pgStore, hub, orchestrator)
	q := queue.New(pgStore, processFunc, cfg.QueueMaxConcurrent, cfg.QueuePollInterval)
	q.CancelCheckInterval = cfg.CancelCheckInterval

	rootCtx, stopQueue := context.WithCancel(context.Background())
	go q.Run(rootCtx)

	deps := httphandler.NewDeps(cfg, pgStore, hub)
	router := httphandler.SetupRouter(cfg, deps)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr: addr,
		Handler: router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout intentionally left at zero: /api/v1/jobs/:id/events
		// holds its response open for the life of the subscription.
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		slog.Info("http server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")
	stopQueue()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server shutdown complete")
}

// buildOrchestrator wires the four cascade tiers. Native text needs no
// external dependency. The OCR and vision tiers need a page rasterizer to
// turn a PDF/image into per-page bytes; no such library is available to
// import here, so they are wired with a rasterizer stub that fails
// loudly rather than silently producing empty pages. Vision and the
// structured-extraction pass additionally need an LLM fallback chain,
// wired only when LLM use is enabled and an OpenAI API key is configured.
func buildOrchestrator(cfg *config.Config) *cascade.Orchestrator {
	pages := unavailablePageSource

	var visionChain, textChain *llm.FallbackChain
	var structured *llm.StructuredExtractor
	if cfg.LLMEnabled && cfg.OpenAIAPIKey != "" {
		visionChain = llm.NewFallbackChain(llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.VisionModel, "openai-vision"))
		textChain = llm.NewFallbackChain(llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.LLMModel, "openai-structured"))
		structured = llm.NewStructuredExtractor(textChain)
	}

	var ledger *llm.Ledger
	if cfg.JobCostCeilingUSD > 0 {
		ledger = llm.NewLedger(cfg.JobCostCeilingUSD)
	}

	o := &cascade.Orchestrator{
		Native:     extract.NewNativeText(nil),
		LocalOCR:   extract.NewLocalOCR(pages, nil, noopRecognizer{}, nil, 0),
		CloudOCR:   extract.NewCloudOCR(unavailableCloudOCRClient{}, pages),
		Vision:     extract.NewVision(visionChain, pages),
		Structured: structured,
		Ledger:     ledger,
	}
	return o
}

func unavailablePageSource(path string, pr extract.PageRange) ([][]byte, error) {
	return nil, fmt.Errorf("page rasterization unavailable: no PDF/image rendering library wired for %s", path)
}

type noopRecognizer struct{}

func (noopRecognizer) Name() string { return "unavailable" }
func (noopRecognizer) Recognize(ctx context.Context, pageImage []byte) (string, float64, error) {
	return "", 0, fmt.Errorf("local ocr recognizer unavailable")
}

type unavailableCloudOCRClient struct{}

func (unavailableCloudOCRClient) Recognize(ctx context.Context, pageImage []byte) (string, []extract.Row, float64, int, error) {
	return "", nil, 0, 0, fmt.Errorf("cloud ocr client unavailable")
}

// buildProcessFunc closes over the store, hub, and orchestrator template to
// run one job end to end: classify, extract, persist the attestation or
// analysis the job produces. Workers run concurrently, so each call takes a
// shallow copy of the orchestrator with its own Progress closure rather
// than mutating the shared template's field.
func buildProcessFunc(st *store.PostgresStore, hub *progress.Hub, template *cascade.Orchestrator) queue.ProcessFunc {
	return func(ctx context.Context, job *models.Job) (*string, *string, error) {
		jobOrchestrator := *template
		jobOrchestrator.Progress = func(stage string, current, total int, message string) {
			p := models.Progress{Current: current, Total: total, Stage: stage, Message: message, Pipeline: stage}
			if uerr := st.UpdateProgress(ctx, job.ID, p); uerr != nil {
				slog.Warn("progress update failed", "job_id", job.ID, "error", uerr)
			}
			hub.Publish(job.ID, models.JobStatusProcessing, p)
		}

		classification := quality.Classify(signalsForFile(job.FilePath))

		services, _, err := jobOrchestrator.Process(ctx, job.ID, extract.FileRef{Path: job.FilePath}, classification, "")
		if err != nil {
			return nil, nil, err
		}

		switch job.Type {
		case models.JobTypeAttestation:
			a := &models.Attestation{
				UserID:   job.UserID,
				Issuer:   strings.TrimSuffix(job.OriginalFilename, filepathExt(job.OriginalFilename)),
				FilePath: job.FilePath,
				Services: services,
			}
			id, cerr := st.CreateAttestation(ctx, a)
			if cerr != nil {
				return nil, nil, fmt.Errorf("persist attestation: %w", cerr)
			}
			return &id, nil, nil

		case models.JobTypeTenderAnalysis:
			analysis := &models.Analysis{
				UserID:       job.UserID,
				Name:         job.OriginalFilename,
				FilePath:     job.FilePath,
				Requirements: requirementsFromServices(services),
			}
			id, cerr := st.CreateAnalysis(ctx, analysis)
			if cerr != nil {
				return nil, nil, fmt.Errorf("persist analysis: %w", cerr)
			}
			return nil, &id, nil

		default:
			return nil, nil, fmt.Errorf("unknown job type %q", job.Type)
		}
	}
}

func requirementsFromServices(services []models.Service) []models.Requirement {
	reqs := make([]models.Requirement, 0, len(services))
	for _, s := range services {
		code := ""
		if s.ItemCode != nil {
			code = *s.ItemCode
		}
		qty := 0.0
		if s.Quantity != nil {
			qty = *s.Quantity
		}
		reqs = append(reqs, models.Requirement{
			Code:        code,
			Description: s.Description,
			RequiredQty: qty,
			Unit:        s.Unit,
		})
	}
	return reqs
}

// signalsForFile gives the quality detector a coarse starting signal when
// no content-based probe (OCR confidence sampling, skew estimation) is
// available: plain-text documents are treated as fully native, everything
// else starts at the medium tier so the cascade's own confidence checks
// drive further escalation instead of jumping straight to vision.
func signalsForFile(path string) quality.Signals {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".md") {
		return quality.Signals{SelectableTextRatio: 1.0}
	}
	return quality.Signals{MeanOCRConfidence: 0.75, SkewDegrees: 3, BinarizationContrast: 0.5}
}

func filepathExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx:]
	}
	return ""
}
