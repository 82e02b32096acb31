package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/procurematch/attestation-pipeline/internal/config"
	"github.com/procurematch/attestation-pipeline/internal/http/handlers"
	"github.com/procurematch/attestation-pipeline/internal/http/middleware"
	"github.com/procurematch/attestation-pipeline/internal/matcher"
	"github.com/procurematch/attestation-pipeline/internal/progress"
)

// SetupRouter wires every middleware and route the service exposes. Deps
// carries the store, upload directory, progress hub, and match policies
// assembled by the caller (normally cmd/server/main.go).
func SetupRouter(cfg *config.Config, deps *handlers.Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		slog.Error("failed to set trusted proxies", "error", err)
	}
	router.MaxMultipartMemory = 8 << 20 // 8MB buffer; larger uploads spill to disk

	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.HealthHandler)

	uploadRateLimit := middleware.RateLimit(cfg.UploadRateLimit, cfg.RateLimitWindow)
	jsonBodyLimit := middleware.JSONBodyValidator(1 << 20) // 1MB, service-correction payloads are small

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireUser())
	{
		v1.POST("/attestations", uploadRateLimit, handlers.UploadAttestation(deps))
		v1.GET("/attestations", handlers.ListAttestationsHandler(deps))
		v1.GET("/attestations/:id", handlers.GetAttestation(deps))
		v1.PUT("/attestations/:id/services", jsonBodyLimit, handlers.UpdateAttestationServicesHandler(deps))
		v1.DELETE("/attestations/:id", handlers.DeleteAttestationHandler(deps))

		v1.POST("/analyses", uploadRateLimit, handlers.UploadAnalysis(deps))
		v1.GET("/analyses", handlers.ListAnalysesHandler(deps))
		v1.GET("/analyses/:id", handlers.GetAnalysis(deps))
		v1.POST("/analyses/:id/match", handlers.RunMatch(deps))
		v1.DELETE("/analyses/:id", handlers.DeleteAnalysisHandler(deps))

		v1.GET("/jobs", handlers.ListJobs(deps))
		v1.GET("/jobs/:id", handlers.GetJob(deps))
		v1.POST("/jobs/:id/cancel", handlers.CancelJob(deps))
		v1.POST("/jobs/:id/retry", handlers.RetryJob(deps))
		v1.DELETE("/jobs/:id", handlers.DeleteJob(deps))
		v1.GET("/jobs/:id/events", handlers.JobEvents(deps))
	}

	return router
}

// NewDeps assembles handler dependencies from config and the running
// service's store and progress hub.
func NewDeps(cfg *config.Config, store handlers.Store, hub *progress.Hub) *handlers.Deps {
	return &handlers.Deps{
		Store:          store,
		StorageDir:     cfg.StorageDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Hub:            hub,
		MatchPolicies: matcher.Policies{
			MinSimilarity:       cfg.MatchMinSimilarity,
			MinCommonWords:      cfg.MatchMinCommonWords,
			MinCommonWordsShort: cfg.MatchMinCommonWordsShort,
		},
	}
}
