package handlers

import (
	"net/http"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/docuflow/engine/engine/job"
	"github.com/docuflow/engine/engine/workflow"
	"github.com/labstack/echo/v4"
)

// ExecuteHandler handles synchronous and asynchronous execution requests
type ExecuteHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewExecuteHandler creates a new execute handler
func NewExecuteHandler(eng *engine.Engine, log *logger.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		engine: eng,
		log:    log,
	}
}

type executeRequest struct {
	WorkflowID string                 `json:"workflow_id"`
	Inputs     map[string]interface{} `json:"inputs"`
}

type executeAsyncRequest struct {
	WorkflowID string                 `json:"workflow_id"`
	Definition *workflow.Definition   `json:"definition,omitempty"`
	Inputs     map[string]interface{} `json:"inputs"`
	Priority   string                 `json:"priority,omitempty"`
	Webhook    *job.WebhookSpec       `json:"webhook,omitempty"`
}

type resumeRequest struct {
	CheckpointID string                 `json:"checkpoint_id"`
	HumanInput   map[string]interface{} `json:"human_input"`
}

// Execute runs a workflow synchronously and returns its output
// POST /api/v1/execute
func (h *ExecuteHandler) Execute(c echo.Context) error {
	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	if req.WorkflowID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "workflow_id is required",
		})
	}

	res, err := h.engine.Execute(c.Request().Context(), req.WorkflowID, req.Inputs)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ExecuteAsync submits a workflow for background execution. The body may
// name a registered workflow or carry an inline definition.
// POST /api/v1/execute/async
func (h *ExecuteHandler) ExecuteAsync(c echo.Context) error {
	var req executeAsyncRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	priority := job.Priority(req.Priority)
	if req.Priority == "" {
		priority = job.PriorityNormal
	}

	var (
		j   *job.Job
		err error
	)
	switch {
	case req.Definition != nil:
		j, err = h.engine.SubmitDefinition(req.Definition, req.Inputs, priority, req.Webhook)
	case req.WorkflowID != "":
		j, err = h.engine.ExecuteAsync(req.WorkflowID, req.Inputs, priority, req.Webhook)
	default:
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "workflow_id or definition is required",
		})
	}
	if err != nil {
		return errorJSON(c, err)
	}

	h.log.Info("job submitted", "job_id", j.ID, "workflow_id", j.WorkflowID, "priority", j.Priority)
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// ResumeGraph continues a paused graph execution with human input
// POST /api/v1/graphs/:id/resume
func (h *ExecuteHandler) ResumeGraph(c echo.Context) error {
	graphID := c.Param("id")

	var req resumeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	if req.CheckpointID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "checkpoint_id is required",
		})
	}

	res, err := h.engine.ResumeGraph(c.Request().Context(), graphID, req.CheckpointID, req.HumanInput)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
