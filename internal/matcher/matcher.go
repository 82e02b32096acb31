// Package matcher scores attestation services against tender requirements
// and produces a coverage decision per requirement, with a full audit
// trace of accepted and rejected candidates. The gate-then-score shape is
// grounded on converter.ColumnMapper's fixed-table matching approach in
// the teacher repo; similarity itself is internal/normalizer's.
package matcher

import (
	"sort"
	"strings"

	"github.com/procurematch/attestation-pipeline/internal/models"
	"github.com/procurematch/attestation-pipeline/internal/normalizer"
)

// DefaultMinSimilarity is the similarity floor a candidate must clear to
// be considered at all.
const DefaultMinSimilarity = 0.35

// DefaultMinCommonWords is the minimum shared-keyword count normally
// required; DefaultMinCommonWordsShort applies when the requirement's own
// keyword set is very small.
const (
	DefaultMinCommonWords      = 2
	DefaultMinCommonWordsShort = 1
	shortKeywordSetThreshold   = 3
)

// activityKeywords is a fixed table of mandatory description keywords per
// activity tag, in the style of converter.HeaderSynonyms's fixed
// correction table.
var activityKeywords = map[string][]string{
	"paving":     {"PAVIMENT", "ASFALT", "CONCRET", "CALCAMENTO", "MEIOFIO"},
	"earthworks": {"TERRAPLEN", "ESCAVACAO", "ATERRO", "COMPACTACAO"},
	"drainage":   {"DRENAGEM", "GALERIA", "BUEIRO", "CANALETA"},
	"electrical": {"ELETRIC", "LUMINARIA", "CABEAMENTO", "POSTE"},
}

// Policies bundles the tunable gate thresholds.
type Policies struct {
	MinSimilarity       float64
	MinCommonWords      int
	MinCommonWordsShort int
}

// DefaultPolicies returns the spec-mandated defaults.
func DefaultPolicies() Policies {
	return Policies{
		MinSimilarity:       DefaultMinSimilarity,
		MinCommonWords:      DefaultMinCommonWords,
		MinCommonWordsShort: DefaultMinCommonWordsShort,
	}
}

type candidate struct {
	attestationID string
	serviceIndex  int
	service       models.Service
	createdAt     int64 // unix nanos, for deterministic ascending tie-break
	similarity    float64
	commonWords   int
}

// Match applies every Requirement against the full set of Attestations
// and returns a per-requirement coverage decision with an audit trace.
func Match(requirements []models.Requirement, attestations []models.Attestation, policies Policies) models.AnalysisResult {
	if policies.MinSimilarity == 0 {
		policies = DefaultPolicies()
	}

	result := models.AnalysisResult{Requirements: make([]models.RequirementResult, 0, len(requirements))}
	for _, req := range requirements {
		result.Requirements = append(result.Requirements, matchOne(req, attestations, policies))
	}
	return result
}

func matchOne(req models.Requirement, attestations []models.Attestation, policies Policies) models.RequirementResult {
	reqUnit := normalizer.NormalizeUnit(req.Unit)
	reqCanonical := normalizer.NormalizeDescription(req.Description)
	reqKeywords := normalizer.Keywords(reqCanonical)

	minCommon := policies.MinCommonWords
	if len(reqKeywords) <= shortKeywordSetThreshold {
		minCommon = policies.MinCommonWordsShort
	}

	var trace []models.CandidateTrace
	var survivors []candidate

	for _, att := range attestations {
		for idx, svc := range att.Services {
			t := models.CandidateTrace{AttestationID: att.ID, ServiceIndex: idx}

			if normalizer.NormalizeUnit(svc.Unit) != reqUnit {
				t.Rejected = models.RejectUnitMismatch
				trace = append(trace, t)
				continue
			}

			svcCanonical := normalizer.NormalizeDescription(svc.Description)

			if req.ActivityTag != "" && !hasAnyKeyword(svcCanonical, activityKeywords[strings.ToLower(req.ActivityTag)]) {
				t.Rejected = models.RejectActivityGate
				trace = append(trace, t)
				continue
			}

			if len(req.MandatoryTerms) > 0 && !hasAnyKeyword(svcCanonical, req.MandatoryTerms) {
				t.Rejected = models.RejectMandatoryTerm
				trace = append(trace, t)
				continue
			}

			svcKeywords := normalizer.Keywords(svcCanonical)
			sim := normalizer.Similarity(reqKeywords, svcKeywords)
			common := normalizer.CommonWords(reqKeywords, svcKeywords)

			t.Similarity = sim
			t.CommonWords = common

			if sim < policies.MinSimilarity || common < minCommon {
				t.Rejected = models.RejectBelowThreshold
				trace = append(trace, t)
				continue
			}

			t.Accepted = true
			trace = append(trace, t)
			survivors = append(survivors, candidate{
				attestationID: att.ID,
				serviceIndex:  idx,
				service:       svc,
				createdAt:     att.CreatedAt.UnixNano(),
				similarity:    sim,
				commonWords:   common,
			})
		}
	}

	if !req.SumAllowed() && len(survivors) > 1 {
		survivors = []candidate{bestSingle(survivors, req.RequiredQty)}
	}

	sort.SliceStable(survivors, func(i, k int) bool {
		ci := potentialContribution(survivors[i].service, req.RequiredQty)
		ck := potentialContribution(survivors[k].service, req.RequiredQty)
		if ci != ck {
			return ci > ck
		}
		if survivors[i].similarity != survivors[k].similarity {
			return survivors[i].similarity > survivors[k].similarity
		}
		return survivors[i].createdAt < survivors[k].createdAt
	})

	var contributions []models.Contribution
	runningSum := 0.0
	for _, c := range survivors {
		if runningSum >= req.RequiredQty {
			break
		}
		qty := 0.0
		if c.service.Quantity != nil {
			qty = *c.service.Quantity
		}
		contributed := qty
		if remaining := req.RequiredQty - runningSum; contributed > remaining {
			contributed = remaining
		}
		if contributed <= 0 {
			continue
		}
		runningSum += contributed
		contributions = append(contributions, models.Contribution{
			AttestationID: c.attestationID,
			ServiceIndex:  c.serviceIndex,
			Contributed:   contributed,
			Similarity:    c.similarity,
		})
	}

	decision := models.DecisionUnmet
	switch {
	case runningSum >= req.RequiredQty && req.RequiredQty > 0:
		decision = models.DecisionMeets
	case runningSum > 0:
		decision = models.DecisionPartial
	}

	coverage := 0.0
	if req.RequiredQty > 0 {
		coverage = 100 * runningSum / req.RequiredQty
		if coverage > 100 {
			coverage = 100
		}
	}

	return models.RequirementResult{
		Requirement:   req,
		Decision:      decision,
		CoveragePct:   coverage,
		RunningSum:    runningSum,
		Contributions: contributions,
		Trace:         trace,
	}
}

func hasAnyKeyword(canonical string, terms []string) bool {
	for _, t := range terms {
		if t == "" {
			continue
		}
		if strings.Contains(canonical, strings.ToUpper(t)) {
			return true
		}
	}
	return false
}

func potentialContribution(svc models.Service, required float64) float64 {
	if svc.Quantity == nil {
		return 0
	}
	if *svc.Quantity < required {
		return *svc.Quantity
	}
	return required
}

// bestSingle picks the single best candidate per the same ordering used
// for greedy selection, for requirements where allow_sum is false.
func bestSingle(candidates []candidate, required float64) candidate {
	best := candidates[0]
	bestScore := potentialContribution(best.service, required)
	for _, c := range candidates[1:] {
		score := potentialContribution(c.service, required)
		switch {
		case score > bestScore:
			best, bestScore = c, score
		case score == bestScore && c.similarity > best.similarity:
			best = c
		case score == bestScore && c.similarity == best.similarity && c.createdAt < best.createdAt:
			best = c
		}
	}
	return best
}
