package routes

import (
	"github.com/docuflow/engine/cmd/engine/handlers"
	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/labstack/echo/v4"
)

// RegisterExecuteRoutes registers the execution entry points
func RegisterExecuteRoutes(e *echo.Echo, eng *engine.Engine, log *logger.Logger) {
	h := handlers.NewExecuteHandler(eng, log)

	e.POST("/api/v1/execute", h.Execute)            // synchronous
	e.POST("/api/v1/execute/async", h.ExecuteAsync) // background job
}
