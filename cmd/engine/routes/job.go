package routes

import (
	"github.com/docuflow/engine/cmd/engine/handlers"
	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/labstack/echo/v4"
)

// RegisterJobRoutes registers the job lifecycle routes
func RegisterJobRoutes(e *echo.Echo, eng *engine.Engine, log *logger.Logger) {
	h := handlers.NewJobHandler(eng, log)

	j := e.Group("/api/v1/jobs")
	{
		j.GET("", h.ListJobs)              // GET /api/v1/jobs?status=RUNNING
		j.GET("/stats", h.GetStats)        // GET /api/v1/jobs/stats
		j.GET("/:id", h.GetJob)            // GET /api/v1/jobs/{uuid}
		j.POST("/:id/cancel", h.CancelJob) // POST /api/v1/jobs/{uuid}/cancel
		j.DELETE("/:id", h.DeleteJob)      // DELETE /api/v1/jobs/{uuid}
	}
}
