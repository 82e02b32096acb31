package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// JobEvents handles GET /api/v1/jobs/:id/events, the push side of job
// progress observation. A reconnecting client first receives the
// retained snapshot (if any), then every subsequent event until the job
// reaches a terminal status or the client disconnects.
func JobEvents(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := fetchOwnedJob(c, deps)
		if !ok {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		events, unsubscribe := deps.Hub.Subscribe(job.ID)
		defer unsubscribe()

		if snapshot, ok := deps.Hub.Snapshot(job.ID); ok {
			c.SSEvent("progress", snapshot)
			c.Writer.Flush()
		}

		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case ev, open := <-events:
				if !open {
					return
				}
				c.SSEvent("progress", ev)
				c.Writer.Flush()
				if ev.Status.IsTerminal() {
					c.SSEvent("done", gin.H{"job_id": job.ID, "status": ev.Status})
					c.Writer.Flush()
					return
				}
			case <-heartbeat.C:
				fmt.Fprint(c.Writer, ": keepalive\n\n")
				c.Writer.Flush()
			}
		}
	}
}
