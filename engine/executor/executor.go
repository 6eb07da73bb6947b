// Package executor runs validated workflow and graph definitions. Concrete
// task implementations (PDF extraction, OCR, LLM calls, ...) live behind the
// TaskExecutor interface; the engine holds no domain knowledge about them.
package executor

import (
	"context"
)

// AgentTaskType is the reserved task type used to invoke the LLM for agent
// graph nodes. Tool nodes are invoked under their registered function name.
const AgentTaskType = "agent"

// TaskExecutor runs a single task. It owns the task type catalogue; the
// engine passes the type through opaquely and stores whatever the executor
// returns verbatim.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, taskType string, inputs map[string]interface{}) (map[string]interface{}, error)
}

// ProgressFunc receives progress updates during an execution. Implementations
// must be safe for concurrent use when the workflow runs parallel layers.
type ProgressFunc func(current, total int, message string)

// NopProgress discards progress updates
func NopProgress(current, total int, message string) {}

// DAGResult is the outcome of a successful DAG execution
type DAGResult struct {
	// Output is the definition's output map resolved against task results
	Output map[string]interface{} `json:"output"`

	// Results holds every task's raw output keyed by task id
	Results map[string]interface{} `json:"results"`
}

// GraphResult is the outcome of a graph execution or resume
type GraphResult struct {
	// State is the final (or last observed) graph state
	State map[string]interface{} `json:"state"`

	// RequiresHumanInput is set when execution paused at a human node
	RequiresHumanInput bool `json:"requires_human_input,omitempty"`

	// HumanPrompt carries the paused node's prompt message
	HumanPrompt string `json:"human_prompt,omitempty"`

	// CheckpointID keys the saved state for resume
	CheckpointID string `json:"checkpoint_id,omitempty"`

	// Iterations counts executed nodes, for diagnostics
	Iterations int `json:"iterations"`
}
