package handlers

import (
	"net/http"
	"strconv"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/docuflow/engine/engine/job"
	"github.com/labstack/echo/v4"
)

// JobHandler handles job lifecycle requests
type JobHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(eng *engine.Engine, log *logger.Logger) *JobHandler {
	return &JobHandler{
		engine: eng,
		log:    log,
	}
}

// GetJob returns a job's status, progress and terminal details
// GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c echo.Context) error {
	j, err := h.engine.GetJobStatus(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, j)
}

// ListJobs lists jobs with optional filters
// GET /api/v1/jobs?status=RUNNING&workflow_id=pdf-pipeline&limit=20
func (h *JobHandler) ListJobs(c echo.Context) error {
	filter := job.ListFilter{
		Status:       job.Status(c.QueryParam("status")),
		WorkflowID:   c.QueryParam("workflow_id"),
		WorkflowType: job.WorkflowType(c.QueryParam("workflow_type")),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "limit must be a non-negative integer",
			})
		}
		filter.Limit = limit
	}

	jobs := h.engine.ListJobs(filter)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// CancelJob cancels a job; cancelling a terminal job is a no-op
// POST /api/v1/jobs/:id/cancel
func (h *JobHandler) CancelJob(c echo.Context) error {
	if err := h.engine.CancelJob(c.Param("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"job_id":    c.Param("id"),
		"cancelled": true,
	})
}

// DeleteJob removes a non-running job from the manager
// DELETE /api/v1/jobs/:id
func (h *JobHandler) DeleteJob(c echo.Context) error {
	if err := h.engine.DeleteJob(c.Param("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"deleted": c.Param("id"),
	})
}

// GetStats returns queue and job statistics
// GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.GetJobStats())
}
