package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/procurematch/attestation-pipeline/internal/http/middleware"
	"github.com/procurematch/attestation-pipeline/internal/matcher"
	"github.com/procurematch/attestation-pipeline/internal/models"
	"github.com/procurematch/attestation-pipeline/internal/requirementsimport"
)

// xlsxContentTypes are the content types saveUpload accepts for the bulk
// requirement spreadsheet path; they overlap with, but are distinct from,
// the scanned-document allowlist used by the cascade upload path.
var xlsxContentTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/zip":         true, // xlsx is a zip container; some sniffers report this
	"application/octet-stream": true,
}

// UploadAnalysis handles POST /api/v1/analyses. An .xlsx upload is parsed
// synchronously into Requirements (no extraction cascade needed for a
// structured spreadsheet); any other supported document type is enqueued
// as a tender_analysis job that runs the same cascade pipeline used for
// attestations.
func UploadAnalysis(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		name := c.PostForm("name")

		fh, err := c.FormFile("file")
		if err != nil {
			c.Error(&middleware.ErrBadRequest{Err: fmt.Errorf("missing file field: %w", err)})
			return
		}

		if strings.HasSuffix(strings.ToLower(fh.Filename), ".xlsx") {
			saved, err := saveUpload(fh, deps.StorageDir, deps.MaxUploadBytes, xlsxContentTypes)
			if err != nil {
				c.Error(err)
				return
			}

			parsed, err := requirementsimport.ParseXLSX(saved.Path)
			if err != nil {
				c.Error(&middleware.ErrBadRequest{Err: fmt.Errorf("parse requirement spreadsheet: %w", err)})
				return
			}

			analysis := &models.Analysis{
				UserID:       userID,
				Name:         name,
				FilePath:     saved.Path,
				Requirements: parsed.Requirements,
			}
			id, err := deps.Store.CreateAnalysis(c.Request.Context(), analysis)
			if err != nil {
				c.Error(fmt.Errorf("create analysis: %w", err))
				return
			}
			c.JSON(http.StatusCreated, gin.H{
				"analysis_id": id,
				"requirements_mapped": len(parsed.Requirements),
				"unmapped_columns":     parsed.Unmapped,
			})
			return
		}

		saved, err := saveUpload(fh, deps.StorageDir, deps.MaxUploadBytes, middleware.AllowedDocumentMimeTypes)
		if err != nil {
			c.Error(err)
			return
		}

		job := &models.Job{
			UserID:           userID,
			Type:             models.JobTypeTenderAnalysis,
			FilePath:         saved.Path,
			OriginalFilename: fh.Filename,
		}
		id, err := deps.Store.Create(c.Request.Context(), job)
		if err != nil {
			c.Error(fmt.Errorf("create tender analysis job: %w", err))
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": job.Status})
	}
}

// GetAnalysis handles GET /api/v1/analyses/:id.
func GetAnalysis(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := deps.Store.GetAnalysis(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(&middleware.ErrNotFound{Err: err})
			return
		}
		if a.UserID != middleware.UserID(c) {
			c.Error(&middleware.ErrForbidden{Err: fmt.Errorf("analysis not owned by caller")})
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// ListAnalysesHandler handles GET /api/v1/analyses.
func ListAnalysesHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := deps.Store.ListAnalyses(c.Request.Context(), middleware.UserID(c), 0)
		if err != nil {
			c.Error(fmt.Errorf("list analyses: %w", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"analyses": list})
	}
}

// RunMatch handles POST /api/v1/analyses/:id/match: it matches the
// analysis's requirements against every attestation the caller owns and
// persists the result.
func RunMatch(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		id := c.Param("id")

		analysis, err := deps.Store.GetAnalysis(c.Request.Context(), id)
		if err != nil {
			c.Error(&middleware.ErrNotFound{Err: err})
			return
		}
		if analysis.UserID != userID {
			c.Error(&middleware.ErrForbidden{Err: fmt.Errorf("analysis not owned by caller")})
			return
		}
		if len(analysis.Requirements) == 0 {
			c.Error(&middleware.ErrBadRequest{Err: fmt.Errorf("analysis has no parsed requirements to match")})
			return
		}

		attestationPtrs, err := deps.Store.ListAttestations(c.Request.Context(), userID, 0)
		if err != nil {
			c.Error(fmt.Errorf("list attestations for match: %w", err))
			return
		}
		attestations := make([]models.Attestation, 0, len(attestationPtrs))
		for _, a := range attestationPtrs {
			attestations = append(attestations, *a)
		}

		result := matcher.Match(analysis.Requirements, attestations, deps.MatchPolicies)
		if err := deps.Store.SaveAnalysisResult(c.Request.Context(), id, &result); err != nil {
			c.Error(fmt.Errorf("save analysis result: %w", err))
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// DeleteAnalysisHandler handles DELETE /api/v1/analyses/:id.
func DeleteAnalysisHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		existing, err := deps.Store.GetAnalysis(c.Request.Context(), id)
		if err != nil {
			c.Error(&middleware.ErrNotFound{Err: err})
			return
		}
		if existing.UserID != middleware.UserID(c) {
			c.Error(&middleware.ErrForbidden{Err: fmt.Errorf("analysis not owned by caller")})
			return
		}
		if err := deps.Store.DeleteAnalysis(c.Request.Context(), id); err != nil {
			c.Error(fmt.Errorf("delete analysis: %w", err))
			return
		}
		c.Status(http.StatusNoContent)
	}
}
