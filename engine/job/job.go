// Package job owns asynchronous execution: the priority queue, the worker
// pool, the job lifecycle state machine, webhook delivery and statistics.
package job

import (
	"time"
)

// Status is a job lifecycle state. Transitions only advance along the state
// machine; the single backward edge is PAUSED -> RUNNING via explicit resume.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusTimeout   Status = "TIMEOUT"
	StatusPaused    Status = "PAUSED"
)

// Terminal reports whether a status admits no further transitions
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// validTransitions is the authoritative state machine
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout, StatusPaused},
	// Cancelling a paused job is permitted so that abandoned human-input
	// jobs are not unkillable
	StatusPaused: {StatusRunning, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal transition
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority orders queue admission: high > normal > low, FIFO within a class
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Weight returns the numeric ordering of a priority. Unknown values rank as
// normal.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// WorkflowType classifies what a job executes
type WorkflowType string

const (
	TypeBuiltin WorkflowType = "builtin"
	TypeCustom  WorkflowType = "custom"
	TypeInline  WorkflowType = "inline"
	TypeGraph   WorkflowType = "graph"
)

// Progress tracks how far an execution has advanced
type Progress struct {
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// WebhookSpec configures the callback delivered on terminal transitions
type WebhookSpec struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"` // POST or PUT
	Headers map[string]string `json:"headers,omitempty"`
}

// Job is a scheduled execution of a workflow or graph. Jobs are exclusively
// owned by the Manager; callers receive copies.
type Job struct {
	ID           string       `json:"job_id"`
	WorkflowID   string       `json:"workflow_id"`
	WorkflowType WorkflowType `json:"workflow_type"`

	Inputs   map[string]interface{} `json:"inputs,omitempty"`
	Priority Priority               `json:"priority"`
	Webhook  *WebhookSpec           `json:"webhook,omitempty"`

	// Owner is an opaque tag; the engine does no multi-tenant isolation
	Owner string `json:"owner,omitempty"`

	Status   Status   `json:"status"`
	Progress Progress `json:"progress"`

	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ExecutionTimeMS int64      `json:"execution_time_ms,omitempty"`

	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`

	// CheckpointID is set while a graph job is paused for human input
	CheckpointID string `json:"checkpoint_id,omitempty"`

	// TimeoutMS is the effective timeout copied from the definition at
	// submission; 0 falls back to the manager default
	TimeoutMS int64 `json:"-"`
}

// Clone returns a copy safe to hand to callers
func (j *Job) Clone() *Job {
	copied := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		copied.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		copied.CompletedAt = &t
	}
	return &copied
}
