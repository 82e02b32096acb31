package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/procurematch/attestation-pipeline/internal/http/middleware"
	"github.com/procurematch/attestation-pipeline/internal/models"
)

// UploadAttestation handles POST /api/v1/attestations: it persists the
// uploaded document and enqueues an attestation job. The cascade pipeline
// runs asynchronously; the client polls or subscribes to the returned
// job's progress.
func UploadAttestation(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		fh, err := c.FormFile("file")
		if err != nil {
			c.Error(&middleware.ErrBadRequest{Err: fmt.Errorf("missing file field: %w", err)})
			return
		}

		saved, err := saveUpload(fh, deps.StorageDir, deps.MaxUploadBytes, middleware.AllowedDocumentMimeTypes)
		if err != nil {
			c.Error(err)
			return
		}

		job := &models.Job{
			UserID:           userID,
			Type:             models.JobTypeAttestation,
			FilePath:         saved.Path,
			OriginalFilename: fh.Filename,
		}
		id, err := deps.Store.Create(c.Request.Context(), job)
		if err != nil {
			c.Error(fmt.Errorf("create attestation job: %w", err))
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": job.Status})
	}
}

// GetAttestation handles GET /api/v1/attestations/:id.
func GetAttestation(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := deps.Store.GetAttestation(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(&middleware.ErrNotFound{Err: err})
			return
		}
		if a.UserID != middleware.UserID(c) {
			c.Error(&middleware.ErrForbidden{Err: fmt.Errorf("attestation not owned by caller")})
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// ListAttestationsHandler handles GET /api/v1/attestations.
func ListAttestationsHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := deps.Store.ListAttestations(c.Request.Context(), middleware.UserID(c), 0)
		if err != nil {
			c.Error(fmt.Errorf("list attestations: %w", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"attestations": list})
	}
}

// UpdateAttestationServicesHandler handles PUT /api/v1/attestations/:id/services,
// letting a user correct extraction mistakes before running a match.
func UpdateAttestationServicesHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		existing, err := deps.Store.GetAttestation(c.Request.Context(), id)
		if err != nil {
			c.Error(&middleware.ErrNotFound{Err: err})
			return
		}
		if existing.UserID != middleware.UserID(c) {
			c.Error(&middleware.ErrForbidden{Err: fmt.Errorf("attestation not owned by caller")})
			return
		}

		var body struct {
			Services []models.Service `json:"services"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Error(&middleware.ErrBadRequest{Err: err})
			return
		}

		if err := deps.Store.UpdateAttestationServices(c.Request.Context(), id, body.Services); err != nil {
			c.Error(fmt.Errorf("update attestation services: %w", err))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DeleteAttestationHandler handles DELETE /api/v1/attestations/:id.
func DeleteAttestationHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		existing, err := deps.Store.GetAttestation(c.Request.Context(), id)
		if err != nil {
			c.Error(&middleware.ErrNotFound{Err: err})
			return
		}
		if existing.UserID != middleware.UserID(c) {
			c.Error(&middleware.ErrForbidden{Err: fmt.Errorf("attestation not owned by caller")})
			return
		}
		if err := deps.Store.DeleteAttestation(c.Request.Context(), id); err != nil {
			c.Error(fmt.Errorf("delete attestation: %w", err))
			return
		}
		c.Status(http.StatusNoContent)
	}
}
