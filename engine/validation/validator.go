// Package validation is the single authority on definition well-formedness.
// It returns structured results instead of errors so that callers can relay
// them across the API boundary unchanged.
package validation

import (
	"fmt"
	"strings"

	"github.com/docuflow/engine/engine/workflow"
)

// Result is the outcome of a validation pass
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func ok() Result {
	return Result{Valid: true}
}

func invalid(format string, args ...interface{}) Result {
	return Result{Valid: false, Error: fmt.Sprintf(format, args...)}
}

// Err converts a failed result into a ValidationError; nil when valid
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &workflow.ValidationError{Reason: r.Error}
}

// ValidateWorkflow checks a DAG workflow definition. Checks run in order:
// required fields, unique task ids, dependency resolution, acyclicity,
// reference well-formedness. Task types are not checked here; the task
// executor owns the type catalogue.
func ValidateWorkflow(def *workflow.Definition) Result {
	if def == nil {
		return invalid("definition is required")
	}
	if def.Name == "" {
		return invalid("workflow name is required")
	}
	if len(def.Tasks) == 0 {
		return invalid("workflow must declare at least one task")
	}

	// Unique task ids
	taskIDs := make(map[string]bool, len(def.Tasks))
	for _, task := range def.Tasks {
		if task.ID == "" {
			return invalid("task id is required")
		}
		if taskIDs[task.ID] {
			return invalid("duplicate task id: %s", task.ID)
		}
		taskIDs[task.ID] = true
	}

	// Every dependency resolves to a task in the same definition
	for _, task := range def.Tasks {
		for _, dep := range task.DependsOn {
			if !taskIDs[dep] {
				return invalid("task %s depends on unknown task: %s", task.ID, dep)
			}
		}
	}

	// Dependency relation is acyclic
	if cycle := findCycle(def); cycle != "" {
		return invalid("dependency cycle detected involving task: %s", cycle)
	}

	// Reference strings name valid sources
	for _, task := range def.Tasks {
		for name, value := range task.Inputs {
			if res := checkReferences(value, taskIDs); !res.Valid {
				return invalid("task %s input %s: %s", task.ID, name, res.Error)
			}
		}
	}
	for name, ref := range def.Output {
		if res := checkReferences(ref, taskIDs); !res.Valid {
			return invalid("output %s: %s", name, res.Error)
		}
	}

	return ok()
}

// checkReferences walks a value recursively and validates every reference
// string it contains. workflow.input.* references are accepted blindly;
// they resolve against actual inputs at run time.
func checkReferences(value interface{}, taskIDs map[string]bool) Result {
	switch v := value.(type) {
	case string:
		if !workflow.IsReference(v) {
			return ok()
		}
		inner := workflow.TrimReference(v)
		if strings.HasPrefix(inner, workflow.InputPrefix) {
			return ok()
		}
		parts := workflow.SplitReference(inner)
		if len(parts) < 2 {
			return invalid("malformed reference: %s", v)
		}
		if !taskIDs[parts[0]] {
			return invalid("reference to unknown task: %s", parts[0])
		}
		return ok()
	case map[string]interface{}:
		for _, item := range v {
			if res := checkReferences(item, taskIDs); !res.Valid {
				return res
			}
		}
		return ok()
	case []interface{}:
		for _, item := range v {
			if res := checkReferences(item, taskIDs); !res.Valid {
				return res
			}
		}
		return ok()
	default:
		return ok()
	}
}

type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS path
	black              // fully explored
)

// findCycle runs a three-color DFS over the dependency relation and returns
// the id of a task on a cycle, or "" when the graph is acyclic
func findCycle(def *workflow.Definition) string {
	colors := make(map[string]color, len(def.Tasks))

	var visit func(id string) string
	visit = func(id string) string {
		colors[id] = gray
		task := def.TaskByID(id)
		for _, dep := range task.DependsOn {
			switch colors[dep] {
			case gray:
				return dep
			case white:
				if hit := visit(dep); hit != "" {
					return hit
				}
			}
		}
		colors[id] = black
		return ""
	}

	for _, task := range def.Tasks {
		if colors[task.ID] == white {
			if hit := visit(task.ID); hit != "" {
				return hit
			}
		}
	}
	return ""
}

// ValidateGraph checks a stateful graph definition: unique node ids,
// type-specific required fields, entry/finish points, edge endpoints and
// conditional routing maps.
func ValidateGraph(def *workflow.GraphDefinition) Result {
	if def == nil {
		return invalid("definition is required")
	}
	if def.Name == "" {
		return invalid("graph name is required")
	}
	if len(def.Nodes) == 0 {
		return invalid("graph must declare at least one node")
	}

	nodeIDs := make(map[string]bool, len(def.Nodes))
	for _, node := range def.Nodes {
		if node.ID == "" {
			return invalid("node id is required")
		}
		if nodeIDs[node.ID] {
			return invalid("duplicate node id: %s", node.ID)
		}
		nodeIDs[node.ID] = true

		if res := checkNodeFields(&node); !res.Valid {
			return res
		}
	}

	if def.EntryPoint == "" {
		return invalid("entry_point is required")
	}
	if !nodeIDs[def.EntryPoint] {
		return invalid("entry_point references unknown node: %s", def.EntryPoint)
	}
	for _, fp := range def.FinishPoints {
		if !nodeIDs[fp] {
			return invalid("finish_point references unknown node: %s", fp)
		}
	}

	for _, edge := range def.Edges {
		if !nodeIDs[edge.From] {
			return invalid("edge from unknown node: %s", edge.From)
		}
		source := def.NodeByID(edge.From)
		if source.Type == workflow.NodeConditional {
			if len(edge.Branches) == 0 {
				return invalid("conditional node %s requires at least one branch", edge.From)
			}
			for label, target := range edge.Branches {
				if target != workflow.End && !nodeIDs[target] {
					return invalid("branch %s of node %s targets unknown node: %s", label, edge.From, target)
				}
			}
			continue
		}
		if edge.To == "" {
			return invalid("edge from node %s has no target", edge.From)
		}
		if edge.To != workflow.End && !nodeIDs[edge.To] {
			return invalid("edge targets unknown node: %s", edge.To)
		}
	}

	return ok()
}

// checkNodeFields enforces the per-type contract of graph nodes
func checkNodeFields(node *workflow.GraphNode) Result {
	switch node.Type {
	case workflow.NodeAgent:
		if node.Model == "" {
			return invalid("agent node %s requires model", node.ID)
		}
		if node.SystemPrompt == "" {
			return invalid("agent node %s requires system_prompt", node.ID)
		}
	case workflow.NodeTool:
		if node.FunctionName == "" {
			return invalid("tool node %s requires function_name", node.ID)
		}
	case workflow.NodeConditional:
		if node.Condition == "" {
			return invalid("conditional node %s requires condition", node.ID)
		}
	case workflow.NodeHuman:
		if node.PromptMessage == "" {
			return invalid("human node %s requires prompt_message", node.ID)
		}
	case workflow.NodePassthrough:
		// No required fields
	default:
		return invalid("node %s has unknown type: %s", node.ID, node.Type)
	}
	return ok()
}
