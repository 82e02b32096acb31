package handlers

import (
	"github.com/procurematch/attestation-pipeline/internal/matcher"
	"github.com/procurematch/attestation-pipeline/internal/progress"
	"github.com/procurematch/attestation-pipeline/internal/store"
)

// Store is the full persistence surface the HTTP layer needs: job
// lifecycle plus the attestation and analysis records a completed job
// produces.
type Store interface {
	store.Store
	store.AttestationStore
	store.AnalysisStore
}

// Deps bundles everything a handler needs beyond the incoming request,
// following the teacher's pattern of passing a small dependency struct
// into route closures rather than reaching for globals.
type Deps struct {
	Store          Store
	StorageDir     string
	MaxUploadBytes int64
	Hub            *progress.Hub
	MatchPolicies  matcher.Policies
}
