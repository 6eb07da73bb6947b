package handlers

import (
	"errors"
	"net/http"

	"github.com/docuflow/engine/engine/workflow"
	"github.com/labstack/echo/v4"
)

// errorJSON maps engine error kinds onto HTTP status codes and writes the
// standard error envelope
func errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	var (
		queueFull *workflow.QueueFullError
		resumeErr *workflow.ResumeError
	)
	switch {
	case workflow.IsValidation(err):
		status = http.StatusBadRequest
	case workflow.IsNotFound(err):
		status = http.StatusNotFound
	case workflow.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case errors.As(err, &queueFull):
		status = http.StatusTooManyRequests
	case errors.As(err, &resumeErr):
		status = http.StatusConflict
	}

	return c.JSON(status, map[string]interface{}{
		"error": err.Error(),
	})
}
