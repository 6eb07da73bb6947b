// Package tasks provides the service's task executor: a thin HTTP client
// that forwards task invocations to the external task-runner service. The
// engine holds no knowledge of what any task type does.
package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docuflow/engine/common/logger"
)

// HTTPExecutor invokes tasks over HTTP against the task-runner service
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewHTTPExecutor creates an HTTP-backed task executor
func NewHTTPExecutor(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type taskRequest struct {
	Type   string                 `json:"type"`
	Inputs map[string]interface{} `json:"inputs"`
}

type taskResponse struct {
	Success bool                   `json:"success"`
	Output  map[string]interface{} `json:"output,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// ExecuteTask forwards a single task invocation and returns its output
func (e *HTTPExecutor) ExecuteTask(ctx context.Context, taskType string, inputs map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(taskRequest{Type: taskType, Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal task request: %w", err)
	}

	url := e.baseURL + "/tasks/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build task request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("task runner unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read task response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("task runner returned %d: %s", resp.StatusCode, payload)
	}

	var out taskResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode task response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("task %s failed: %s", taskType, out.Error)
	}

	e.log.Debug("task executed", "type", taskType)
	return out.Output, nil
}
