package handlers

import (
	"net/http"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/docuflow/engine/engine/workflow"
	"github.com/labstack/echo/v4"
)

// WorkflowHandler handles custom workflow registry requests
type WorkflowHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(eng *engine.Engine, log *logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		engine: eng,
		log:    log,
	}
}

type registerWorkflowRequest struct {
	WorkflowID string               `json:"workflow_id"`
	Definition *workflow.Definition `json:"definition"`
}

// RegisterWorkflow validates and stores a custom workflow definition
// POST /api/v1/workflows
func (h *WorkflowHandler) RegisterWorkflow(c echo.Context) error {
	var req registerWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	if req.Definition == nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "definition is required",
		})
	}

	if err := h.engine.RegisterWorkflow(req.WorkflowID, req.Definition); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"workflow_id": req.WorkflowID,
	})
}

// GetWorkflow returns a registered custom workflow
// GET /api/v1/workflows/:id
func (h *WorkflowHandler) GetWorkflow(c echo.Context) error {
	def, err := h.engine.GetWorkflow(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, def)
}

// ListWorkflows lists all registered custom workflows
// GET /api/v1/workflows
func (h *WorkflowHandler) ListWorkflows(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"workflows": h.engine.ListWorkflows(),
	})
}

// DeleteWorkflow removes a custom workflow
// DELETE /api/v1/workflows/:id
func (h *WorkflowHandler) DeleteWorkflow(c echo.Context) error {
	if err := h.engine.DeleteWorkflow(c.Param("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"deleted": c.Param("id"),
	})
}

// ValidateWorkflow checks a definition without registering it
// POST /api/v1/workflows/validate
func (h *WorkflowHandler) ValidateWorkflow(c echo.Context) error {
	var def workflow.Definition
	if err := c.Bind(&def); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	res := h.engine.ValidateWorkflow(&def)
	return c.JSON(http.StatusOK, res)
}
