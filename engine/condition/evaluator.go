// Package condition evaluates routing expressions for graph nodes using CEL
// (Common Expression Language). CEL gives conditional nodes a sandboxed
// expression language over the current state instead of arbitrary code.
package condition

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Evaluator compiles and evaluates CEL expressions with caching
type Evaluator struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewEvaluator creates a new condition evaluator with caching
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]cel.Program),
	}
}

// Route evaluates a routing expression against the current graph state and
// returns the next node id (or the END sentinel)
func (e *Evaluator) Route(expr string, state map[string]interface{}) (string, error) {
	out, err := e.eval(expr, state)
	if err != nil {
		return "", err
	}

	route, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("routing expression did not return a node id, got %T", out)
	}
	return route, nil
}

// Bool evaluates a predicate expression against the current graph state
func (e *Evaluator) Bool(expr string, state map[string]interface{}) (bool, error) {
	out, err := e.eval(expr, state)
	if err != nil {
		return false, err
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return boolean, got %T", out)
	}
	return result, nil
}

func (e *Evaluator) eval(expr string, state map[string]interface{}) (interface{}, error) {
	// Check cache first
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()

	if !exists {
		var err error
		prg, err = e.compile(expr)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		e.cache[expr] = prg
		e.mu.Unlock()
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"state": state,
	})
	if err != nil {
		return nil, fmt.Errorf("CEL evaluation error: %w", err)
	}

	return out.Value(), nil
}

// compile compiles a CEL expression with `state` bound as a dynamic variable
func (e *Evaluator) compile(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("state", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return prg, nil
}

// ClearCache clears the compiled expression cache
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

// CacheSize returns the number of cached expressions
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
