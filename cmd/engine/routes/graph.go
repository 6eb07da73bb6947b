package routes

import (
	"github.com/docuflow/engine/cmd/engine/handlers"
	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/labstack/echo/v4"
)

// RegisterGraphRoutes registers the graph registry and resume routes
func RegisterGraphRoutes(e *echo.Echo, eng *engine.Engine, log *logger.Logger) {
	h := handlers.NewGraphHandler(eng, log)
	exec := handlers.NewExecuteHandler(eng, log)

	g := e.Group("/api/v1/graphs")
	{
		g.POST("", h.RegisterGraph)              // POST /api/v1/graphs
		g.GET("", h.ListGraphs)                  // GET /api/v1/graphs
		g.POST("/validate", h.ValidateGraph)     // POST /api/v1/graphs/validate
		g.GET("/:id", h.GetGraph)                // GET /api/v1/graphs/approval-flow
		g.GET("/:id/summary", h.GetGraphSummary) // GET /api/v1/graphs/approval-flow/summary
		g.DELETE("/:id", h.DeleteGraph)          // DELETE /api/v1/graphs/approval-flow
		g.POST("/:id/resume", exec.ResumeGraph)  // POST /api/v1/graphs/approval-flow/resume
	}
}
