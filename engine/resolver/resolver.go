// Package resolver substitutes {{...}} references in task inputs at launch
// time, against the workflow input map and previously completed task results.
package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docuflow/engine/engine/workflow"
	"github.com/tidwall/gjson"
)

// Resolver handles reference substitution in task inputs and output maps
type Resolver struct {
	// strict makes missing keys an error instead of resolving to nil
	strict bool
}

// New creates a resolver. Strict resolution fails fast on missing keys;
// the default (lenient) mode resolves them to nil and lets the downstream
// task validate its own inputs.
func New(strict bool) *Resolver {
	return &Resolver{strict: strict}
}

// ResolveInputs resolves every value of an input map
func (r *Resolver) ResolveInputs(inputs map[string]interface{}, workflowInputs map[string]interface{}, results map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(inputs))
	for key, value := range inputs {
		v, err := r.ResolveValue(value, workflowInputs, results)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve input %s: %w", key, err)
		}
		resolved[key] = v
	}
	return resolved, nil
}

// ResolveOutput resolves a workflow's output map against final task results
func (r *Resolver) ResolveOutput(output map[string]string, workflowInputs map[string]interface{}, results map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(output))
	for key, ref := range output {
		v, err := r.ResolveValue(ref, workflowInputs, results)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve output %s: %w", key, err)
		}
		resolved[key] = v
	}
	return resolved, nil
}

// ResolveValue resolves a single value. Non-reference values pass through
// unchanged; maps and arrays are resolved recursively, which lets callers
// mix literals and references in one input map.
func (r *Resolver) ResolveValue(value interface{}, workflowInputs map[string]interface{}, results map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if !workflow.IsReference(v) {
			return v, nil
		}
		return r.resolveReference(v, workflowInputs, results)
	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(v))
		for key, item := range v {
			rv, err := r.ResolveValue(item, workflowInputs, results)
			if err != nil {
				return nil, err
			}
			resolved[key] = rv
		}
		return resolved, nil
	case []interface{}:
		resolved := make([]interface{}, len(v))
		for i, item := range v {
			rv, err := r.ResolveValue(item, workflowInputs, results)
			if err != nil {
				return nil, err
			}
			resolved[i] = rv
		}
		return resolved, nil
	default:
		// Primitives pass through
		return value, nil
	}
}

// resolveReference resolves "{{workflow.input.k}}" or "{{task_id.field...}}"
func (r *Resolver) resolveReference(ref string, workflowInputs map[string]interface{}, results map[string]interface{}) (interface{}, error) {
	inner := workflow.TrimReference(ref)

	if strings.HasPrefix(inner, workflow.InputPrefix) {
		key := strings.TrimPrefix(inner, workflow.InputPrefix)
		value, exists := workflowInputs[key]
		if !exists {
			if r.strict {
				return nil, fmt.Errorf("workflow input not found: %s", key)
			}
			return nil, nil
		}
		return value, nil
	}

	parts := workflow.SplitReference(inner)
	if len(parts) < 2 {
		if r.strict {
			return nil, fmt.Errorf("malformed reference: %s", ref)
		}
		return nil, nil
	}

	taskID := parts[0]
	output, exists := results[taskID]
	if !exists {
		if r.strict {
			return nil, fmt.Errorf("task result not found: %s", taskID)
		}
		return nil, nil
	}

	// Deep paths traverse successive field accesses via gjson
	fieldPath := strings.Join(parts[1:], ".")
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result of task %s: %w", taskID, err)
	}

	result := gjson.GetBytes(outputJSON, fieldPath)
	if !result.Exists() {
		if r.strict {
			return nil, fmt.Errorf("field %s not found in result of task %s", fieldPath, taskID)
		}
		return nil, nil
	}

	return result.Value(), nil
}
