package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/procurematch/attestation-pipeline/internal/http/middleware"
	"github.com/procurematch/attestation-pipeline/internal/models"
	"github.com/procurematch/attestation-pipeline/internal/store"
)

// ListJobs handles GET /api/v1/jobs, scoped to the caller and optionally
// filtered by status/type query parameters.
func ListJobs(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter store.ListFilter
		if raw := c.Query("status"); raw != "" {
			s := models.JobStatus(raw)
			filter.Status = &s
		}
		if raw := c.Query("type"); raw != "" {
			t := models.JobType(raw)
			filter.Type = &t
		}

		jobs, err := deps.Store.List(c.Request.Context(), middleware.UserID(c), filter, 0)
		if err != nil {
			c.Error(fmt.Errorf("list jobs: %w", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": jobs})
	}
}

// GetJob handles GET /api/v1/jobs/:id.
func GetJob(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := fetchOwnedJob(c, deps)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// CancelJob handles POST /api/v1/jobs/:id/cancel.
func CancelJob(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := fetchOwnedJob(c, deps)
		if !ok {
			return
		}
		if err := deps.Store.RequestCancel(c.Request.Context(), job.ID); err != nil {
			mapJobStoreError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// RetryJob handles POST /api/v1/jobs/:id/retry.
func RetryJob(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := fetchOwnedJob(c, deps)
		if !ok {
			return
		}
		if err := deps.Store.Retry(c.Request.Context(), job.ID); err != nil {
			mapJobStoreError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// DeleteJob handles DELETE /api/v1/jobs/:id.
func DeleteJob(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := fetchOwnedJob(c, deps)
		if !ok {
			return
		}
		if err := deps.Store.Delete(c.Request.Context(), job.ID); err != nil {
			c.Error(&middleware.ErrConflict{Err: err})
			return
		}
		if deps.Hub != nil {
			deps.Hub.Forget(job.ID)
		}
		c.Status(http.StatusNoContent)
	}
}

func fetchOwnedJob(c *gin.Context, deps *Deps) (*models.Job, bool) {
	job, err := deps.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(&middleware.ErrNotFound{Err: err})
		return nil, false
	}
	if job.UserID != middleware.UserID(c) {
		c.Error(&middleware.ErrForbidden{Err: fmt.Errorf("job not owned by caller")})
		return nil, false
	}
	return job, true
}

func mapJobStoreError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrIllegalTransition) {
		c.Error(&middleware.ErrConflict{Err: err})
		return
	}
	c.Error(fmt.Errorf("job state change: %w", err))
}
