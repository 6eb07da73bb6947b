package handlers

import (
	"net/http"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/docuflow/engine/engine/workflow"
	"github.com/labstack/echo/v4"
)

// GraphHandler handles graph registry requests
type GraphHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(eng *engine.Engine, log *logger.Logger) *GraphHandler {
	return &GraphHandler{
		engine: eng,
		log:    log,
	}
}

type registerGraphRequest struct {
	GraphID    string                    `json:"graph_id"`
	Definition *workflow.GraphDefinition `json:"definition"`
}

// RegisterGraph validates and stores a graph definition
// POST /api/v1/graphs
func (h *GraphHandler) RegisterGraph(c echo.Context) error {
	var req registerGraphRequest
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

	if err := h.engine.RegisterGraph(req.GraphID, req.Definition); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"graph_id": req.GraphID,
	})
}

// GetGraph returns a registered graph definition
// GET /api/v1/graphs/:id
func (h *GraphHandler) GetGraph(c echo.Context) error {
	def, err := h.engine.GetGraph(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, def)
}

// GetGraphSummary returns a compact description of a graph's shape
// GET /api/v1/graphs/:id/summary
func (h *GraphHandler) GetGraphSummary(c echo.Context) error {
	summary, err := h.engine.GetGraphSummary(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// ListGraphs lists all registered graphs
// GET /api/v1/graphs
func (h *GraphHandler) ListGraphs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"graphs": h.engine.ListGraphs(),
	})
}

// DeleteGraph removes a graph
// DELETE /api/v1/graphs/:id
func (h *GraphHandler) DeleteGraph(c echo.Context) error {
	if err := h.engine.DeleteGraph(c.Param("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"deleted": c.Param("id"),
	})
}

// ValidateGraph checks a graph definition without registering it
// POST /api/v1/graphs/validate
func (h *GraphHandler) ValidateGraph(c echo.Context) error {
	var def workflow.GraphDefinition
	if err := c.Bind(&def); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	res := h.engine.ValidateGraph(&def)
	return c.JSON(http.StatusOK, res)
}
