package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine/condition"
	"github.com/docuflow/engine/engine/workflow"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
)

// State keys managed by the executor around human-in-the-loop pauses
const (
	stateRequiresHuman = "requires_human_input"
	stateHumanPrompt   = "human_prompt"
	stateAwaitingHuman = "awaiting_human"
	stateMessages      = "messages"
	stateLastResponse  = "last_response"
	stateToolResults   = "tool_results"
)

// GraphExecutor runs stateful, possibly cyclic graph workflows
type GraphExecutor struct {
	tasks         TaskExecutor
	conditions    *condition.Evaluator
	checkpoints   CheckpointStore
	log           *logger.Logger
	maxIterations int
}

// NewGraphExecutor creates a graph executor. maxIterations bounds every
// execution; graphs may cycle, so the bound is mandatory.
func NewGraphExecutor(tasks TaskExecutor, conditions *condition.Evaluator, checkpoints CheckpointStore, log *logger.Logger, maxIterations int) *GraphExecutor {
	if maxIterations <= 0 {
		maxIterations = 50
	}
	return &GraphExecutor{
		tasks:         tasks,
		conditions:    conditions,
		checkpoints:   checkpoints,
		log:           log,
		maxIterations: maxIterations,
	}
}

// Execute runs a validated graph from its entry point. threadID keys the
// checkpoint written on a human pause; when empty a fresh id is assigned.
func (e *GraphExecutor) Execute(ctx context.Context, def *workflow.GraphDefinition, initialState map[string]interface{}, threadID string) (*GraphResult, error) {
	if threadID == "" {
		threadID = uuid.New().String()
	}

	state := applyStateDefaults(def.StateSchema, initialState)

	var deadline time.Time
	if def.TimeoutMS > 0 {
		deadline = time.Now().Add(time.Duration(def.TimeoutMS) * time.Millisecond)
	}

	return e.run(ctx, def, state, def.EntryPoint, threadID, 0, deadline)
}

// Resume continues a paused execution. humanInput fields are merged into the
// saved state via JSON merge patch, the awaiting flags are cleared, and the
// loop continues from the human node's outgoing edge.
func (e *GraphExecutor) Resume(ctx context.Context, def *workflow.GraphDefinition, checkpointID string, humanInput map[string]interface{}) (*GraphResult, error) {
	cp, err := e.checkpoints.Load(ctx, checkpointID)
	if err != nil {
		if workflow.IsNotFound(err) {
			return nil, &workflow.ResumeError{Reason: fmt.Sprintf("checkpoint not found: %s", checkpointID)}
		}
		return nil, err
	}

	state, err := mergeHumanInput(cp.State, humanInput)
	if err != nil {
		return nil, &workflow.ResumeError{Reason: err.Error()}
	}

	delete(state, stateRequiresHuman)
	delete(state, stateHumanPrompt)
	delete(state, stateAwaitingHuman)

	pausedNode := def.NodeByID(cp.PausedNode)
	if pausedNode == nil {
		return nil, &workflow.ResumeError{Reason: fmt.Sprintf("paused node %s no longer exists in graph", cp.PausedNode)}
	}

	next, err := e.nextNode(def, pausedNode, state)
	if err != nil {
		return nil, err
	}
	if next == workflow.End {
		_ = e.checkpoints.Delete(ctx, checkpointID)
		return &GraphResult{State: state, Iterations: cp.Iterations}, nil
	}

	var deadline time.Time
	if def.TimeoutMS > 0 {
		deadline = time.Now().Add(time.Duration(def.TimeoutMS) * time.Millisecond)
	}

	return e.run(ctx, def, state, next, checkpointID, cp.Iterations, deadline)
}

// run is the node execution loop
func (e *GraphExecutor) run(ctx context.Context, def *workflow.GraphDefinition, state map[string]interface{}, startNode, threadID string, iterations int, deadline time.Time) (*GraphResult, error) {
	current := startNode

	for {
		if ctx.Err() != nil {
			return nil, &workflow.CancelledError{Partial: state}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, &workflow.TimeoutError{Detail: fmt.Sprintf("graph %s exceeded its timeout", def.Name)}
		}

		iterations++
		if iterations > e.maxIterations {
			return nil, &workflow.ExecutionError{Err: fmt.Errorf("iteration limit exceeded (%d)", e.maxIterations)}
		}

		node := def.NodeByID(current)
		if node == nil {
			return nil, &workflow.ExecutionError{Err: fmt.Errorf("routing reached unknown node: %s", current)}
		}

		// State is passed by value at node boundaries
		state = copyState(state)

		e.log.Debug("executing graph node", "node_id", node.ID, "type", node.Type, "iteration", iterations)

		switch node.Type {
		case workflow.NodeAgent:
			if err := e.runAgent(ctx, node, state); err != nil {
				return nil, err
			}
		case workflow.NodeTool:
			if err := e.runTool(ctx, node, state); err != nil {
				return nil, err
			}
		case workflow.NodeHuman:
			return e.pause(ctx, def, node, state, threadID, iterations)
		case workflow.NodeConditional, workflow.NodePassthrough:
			// Conditionals route in nextNode; passthrough is a no-op
		}

		next, err := e.nextNode(def, node, state)
		if err != nil {
			return nil, err
		}
		if next == workflow.End {
			_ = e.checkpoints.Delete(ctx, threadID)
			return &GraphResult{State: state, Iterations: iterations}, nil
		}
		current = next
	}
}

// runAgent invokes the LLM through the task executor, appends the response
// to state.messages and runs any requested tool calls
func (e *GraphExecutor) runAgent(ctx context.Context, node *workflow.GraphNode, state map[string]interface{}) error {
	inputs := map[string]interface{}{
		"model":         node.Model,
		"system_prompt": node.SystemPrompt,
		"messages":      messagesFromState(state),
	}
	if len(node.Tools) > 0 {
		inputs["tools"] = node.Tools
	}

	output, err := e.tasks.ExecuteTask(ctx, AgentTaskType, inputs)
	if err != nil {
		return &workflow.ExecutionError{TaskID: node.ID, Err: err}
	}

	content, _ := output["content"].(string)
	state[stateLastResponse] = content
	state[stateMessages] = append(messagesFromState(state), map[string]interface{}{
		"role":    "assistant",
		"content": content,
	})

	// Run requested tool calls and aggregate their results
	toolCalls, _ := output["tool_calls"].([]interface{})
	if len(toolCalls) > 0 {
		toolResults := make(map[string]interface{}, len(toolCalls))
		for _, raw := range toolCalls {
			call, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := call["name"].(string)
			args, _ := call["arguments"].(map[string]interface{})

			result, err := e.tasks.ExecuteTask(ctx, name, args)
			if err != nil {
				return &workflow.ExecutionError{TaskID: node.ID, Err: fmt.Errorf("tool %s: %w", name, err)}
			}
			toolResults[name] = result
		}
		state[stateToolResults] = toolResults
	}

	return nil
}

// runTool invokes the node's registered function with the current state and
// stores the result under state.<node_id>_result
func (e *GraphExecutor) runTool(ctx context.Context, node *workflow.GraphNode, state map[string]interface{}) error {
	output, err := e.tasks.ExecuteTask(ctx, node.FunctionName, state)
	if err != nil {
		return &workflow.ExecutionError{TaskID: node.ID, Err: err}
	}
	state[node.ID+"_result"] = output
	return nil
}

// pause persists a checkpoint and returns the requires_human_input sentinel
func (e *GraphExecutor) pause(ctx context.Context, def *workflow.GraphDefinition, node *workflow.GraphNode, state map[string]interface{}, threadID string, iterations int) (*GraphResult, error) {
	state[stateRequiresHuman] = true
	state[stateHumanPrompt] = node.PromptMessage
	state[stateAwaitingHuman] = node.ID

	now := time.Now().UTC()
	cp := &Checkpoint{
		ID:         threadID,
		GraphID:    def.GraphID,
		State:      state,
		PausedNode: node.ID,
		Iterations: iterations,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.checkpoints.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	e.log.Info("graph execution paused for human input", "node_id", node.ID, "checkpoint_id", threadID)

	return &GraphResult{
		State:              state,
		RequiresHumanInput: true,
		HumanPrompt:        node.PromptMessage,
		CheckpointID:       threadID,
		Iterations:         iterations,
	}, nil
}

// nextNode consults the node's outgoing edges. Conditional sources route
// through their branch map; other nodes take their single outgoing edge.
// Nodes without outgoing edges terminate.
func (e *GraphExecutor) nextNode(def *workflow.GraphDefinition, node *workflow.GraphNode, state map[string]interface{}) (string, error) {
	edges := def.EdgesFrom(node.ID)

	if node.Type == workflow.NodeConditional {
		route, err := e.conditions.Route(node.Condition, state)
		if err != nil {
			return "", &workflow.ExecutionError{TaskID: node.ID, Err: err}
		}
		for _, edge := range edges {
			if len(edge.Branches) > 0 {
				if target, ok := edge.Branches[route]; ok {
					return target, nil
				}
			}
		}
		// No branch label matched; the route itself must be a node id or END
		if route == workflow.End || def.NodeByID(route) != nil {
			return route, nil
		}
		return "", &workflow.ExecutionError{TaskID: node.ID, Err: fmt.Errorf("condition routed to unknown node: %s", route)}
	}

	if len(edges) == 0 {
		return workflow.End, nil
	}
	if edges[0].To == "" {
		return "", &workflow.ExecutionError{TaskID: node.ID, Err: errors.New("edge has no target")}
	}
	return edges[0].To, nil
}

// applyStateDefaults fills schema defaults for fields absent from the
// initial state
func applyStateDefaults(schema map[string]workflow.StateField, initial map[string]interface{}) map[string]interface{} {
	state := make(map[string]interface{}, len(initial)+len(schema))
	for k, v := range initial {
		state[k] = v
	}
	for field, spec := range schema {
		if _, present := state[field]; !present && spec.Default != nil {
			state[field] = spec.Default
		}
	}
	return state
}

// copyState deep-copies the state via a JSON round trip so nodes never share
// mutable structures
func copyState(state map[string]interface{}) map[string]interface{} {
	payload, err := json.Marshal(state)
	if err != nil {
		// State came from JSON in the first place; failure here is a
		// programmer error
		panic(fmt.Sprintf("graph state not serializable: %v", err))
	}

	var copied map[string]interface{}
	if err := json.Unmarshal(payload, &copied); err != nil {
		panic(fmt.Sprintf("graph state not round-trippable: %v", err))
	}
	return copied
}

// mergeHumanInput merges resume input into the saved state using RFC 7386
// JSON merge patch semantics
func mergeHumanInput(state, humanInput map[string]interface{}) (map[string]interface{}, error) {
	if len(humanInput) == 0 {
		return copyState(state), nil
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	inputJSON, err := json.Marshal(humanInput)
	if err != nil {
		return nil, fmt.Errorf("marshal human input: %w", err)
	}

	mergedJSON, err := jsonpatch.MergePatch(stateJSON, inputJSON)
	if err != nil {
		return nil, fmt.Errorf("merge human input: %w", err)
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, fmt.Errorf("unmarshal merged state: %w", err)
	}
	return merged, nil
}

func messagesFromState(state map[string]interface{}) []interface{} {
	msgs, _ := state[stateMessages].([]interface{})
	return msgs
}
