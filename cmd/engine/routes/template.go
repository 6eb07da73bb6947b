package routes

import (
	"github.com/docuflow/engine/cmd/engine/handlers"
	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/labstack/echo/v4"
)

// RegisterTemplateRoutes registers the template registry routes
func RegisterTemplateRoutes(e *echo.Echo, eng *engine.Engine, log *logger.Logger) {
	h := handlers.NewTemplateHandler(eng, log)

	t := e.Group("/api/v1/templates")
	{
		t.GET("", h.ListTemplates)                        // GET /api/v1/templates?category=document
		t.GET("/categories", h.GetCategories)             // GET /api/v1/templates/categories
		t.GET("/:id", h.GetTemplate)                      // GET /api/v1/templates/pdf-pipeline
		t.POST("/:id/instantiate", h.InstantiateTemplate) // POST /api/v1/templates/pdf-pipeline/instantiate
	}
}
