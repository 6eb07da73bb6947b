package handlers

import (
	"net/http"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/labstack/echo/v4"
)

// TemplateHandler handles template registry requests
type TemplateHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(eng *engine.Engine, log *logger.Logger) *TemplateHandler {
	return &TemplateHandler{
		engine: eng,
		log:    log,
	}
}

type instantiateRequest struct {
	Parameters   map[string]interface{} `json:"parameters"`
	AutoRegister bool                   `json:"auto_register"`
	WorkflowID   string                 `json:"workflow_id,omitempty"`
}

// ListTemplates lists templates, optionally filtered by category
// GET /api/v1/templates?category=document
func (h *TemplateHandler) ListTemplates(c echo.Context) error {
	category := c.QueryParam("category")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"templates": h.engine.ListTemplates(category),
	})
}

// GetTemplate returns a template's metadata and parameter schema
// GET /api/v1/templates/:id
func (h *TemplateHandler) GetTemplate(c echo.Context) error {
	tmpl, err := h.engine.GetTemplate(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"template_id": tmpl.TemplateID,
		"name":        tmpl.Name,
		"category":    tmpl.Category,
		"version":     tmpl.Version,
		"parameters":  tmpl.Parameters,
	})
}

// GetCategories returns the distinct template categories
// GET /api/v1/templates/categories
func (h *TemplateHandler) GetCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"categories": h.engine.GetTemplateCategories(),
	})
}

// InstantiateTemplate renders a template into a concrete definition
// POST /api/v1/templates/:id/instantiate
func (h *TemplateHandler) InstantiateTemplate(c echo.Context) error {
	templateID := c.Param("id")

	var req instantiateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	def, err := h.engine.InstantiateTemplate(templateID, req.Parameters, req.AutoRegister, req.WorkflowID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, def)
}
