// Package routes binds the HTTP surface to the engine facade, one file per
// resource group.
package routes

import (
	"github.com/docuflow/engine/cmd/engine/handlers"
	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/labstack/echo/v4"
)

// RegisterWorkflowRoutes registers the custom workflow registry routes
func RegisterWorkflowRoutes(e *echo.Echo, eng *engine.Engine, log *logger.Logger) {
	h := handlers.NewWorkflowHandler(eng, log)

	wf := e.Group("/api/v1/workflows")
	{
		wf.POST("", h.RegisterWorkflow)          // POST /api/v1/workflows
		wf.GET("", h.ListWorkflows)              // GET /api/v1/workflows
		wf.POST("/validate", h.ValidateWorkflow) // POST /api/v1/workflows/validate
		wf.GET("/:id", h.GetWorkflow)            // GET /api/v1/workflows/pdf-pipeline
		wf.DELETE("/:id", h.DeleteWorkflow)      // DELETE /api/v1/workflows/pdf-pipeline
	}
}
