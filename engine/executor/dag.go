package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/common/metrics"
	"github.com/docuflow/engine/engine/resolver"
	"github.com/docuflow/engine/engine/workflow"
	"golang.org/x/sync/errgroup"
)

// DAGExecutor runs acyclic workflows layer by layer in topological order
type DAGExecutor struct {
	resolver *resolver.Resolver
	tasks    TaskExecutor
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewDAGExecutor creates a DAG executor
func NewDAGExecutor(res *resolver.Resolver, tasks TaskExecutor, log *logger.Logger, m *metrics.Metrics) *DAGExecutor {
	return &DAGExecutor{
		resolver: res,
		tasks:    tasks,
		log:      log,
		metrics:  m,
	}
}

// Execute runs a validated definition to completion. Cancellation is
// cooperative: the context is consulted between layers and between tasks of
// a sequential layer, never in the middle of a task. On cancellation the
// partial results map travels inside the returned CancelledError.
func (e *DAGExecutor) Execute(ctx context.Context, def *workflow.Definition, inputs map[string]interface{}, progress ProgressFunc) (*DAGResult, error) {
	if progress == nil {
		progress = NopProgress
	}

	layers := topologicalLayers(def)
	total := len(def.Tasks)

	results := make(map[string]interface{}, total)
	var mu sync.Mutex
	completed := 0

	for _, layer := range layers {
		if ctx.Err() != nil {
			return nil, &workflow.CancelledError{Partial: snapshot(results)}
		}

		if def.Options.Parallel && len(layer) > 1 {
			if err := e.runLayerParallel(ctx, def, layer, inputs, results, &mu, &completed, total, progress); err != nil {
				return nil, err
			}
		} else {
			if err := e.runLayerSequential(ctx, def, layer, inputs, results, &mu, &completed, total, progress); err != nil {
				return nil, err
			}
		}
	}

	output, err := e.resolver.ResolveOutput(def.Output, inputs, results)
	if err != nil {
		return nil, &workflow.ExecutionError{Err: err}
	}

	return &DAGResult{
		Output:  output,
		Results: results,
	}, nil
}

// runLayerSequential runs a layer's tasks one at a time in declared order
func (e *DAGExecutor) runLayerSequential(ctx context.Context, def *workflow.Definition, layer []*workflow.TaskDefinition, inputs map[string]interface{}, results map[string]interface{}, mu *sync.Mutex, completed *int, total int, progress ProgressFunc) error {
	for _, task := range layer {
		if ctx.Err() != nil {
			return &workflow.CancelledError{Partial: snapshot(results)}
		}
		if err := e.runTask(ctx, def, task, inputs, results, mu); err != nil {
			if ctx.Err() != nil {
				return &workflow.CancelledError{Partial: snapshot(results)}
			}
			return err
		}
		mu.Lock()
		*completed++
		current := *completed
		mu.Unlock()
		progress(current, total, fmt.Sprintf("completed task %s", task.ID))
	}
	return nil
}

// runLayerParallel launches every task of a layer concurrently and awaits
// them. Within a layer there are no ordering guarantees.
func (e *DAGExecutor) runLayerParallel(ctx context.Context, def *workflow.Definition, layer []*workflow.TaskDefinition, inputs map[string]interface{}, results map[string]interface{}, mu *sync.Mutex, completed *int, total int, progress ProgressFunc) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, task := range layer {
		task := task
		g.Go(func() error {
			if err := e.runTask(gctx, def, task, inputs, results, mu); err != nil {
				return err
			}
			mu.Lock()
			*completed++
			current := *completed
			mu.Unlock()
			progress(current, total, fmt.Sprintf("completed task %s", task.ID))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return &workflow.CancelledError{Partial: snapshot(results)}
		}
		return err
	}
	return nil
}

// runTask resolves a task's inputs and invokes the task executor, retrying
// failed attempts immediately up to the task's retry budget. Backoff for
// higher-level retries belongs to the job manager, not here.
func (e *DAGExecutor) runTask(ctx context.Context, def *workflow.Definition, task *workflow.TaskDefinition, inputs map[string]interface{}, results map[string]interface{}, mu *sync.Mutex) error {
	mu.Lock()
	resolved, err := e.resolver.ResolveInputs(task.Inputs, inputs, results)
	mu.Unlock()
	if err != nil {
		return &workflow.ExecutionError{TaskID: task.ID, Err: err}
	}

	attempts := task.Retry
	if attempts == 0 && def.Options.MaxRetries > 0 {
		attempts = def.Options.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			e.metrics.TaskExecutions.WithLabelValues("retried").Inc()
			e.log.Warn("retrying task", "task_id", task.ID, "attempt", attempt, "error", lastErr)
		}

		output, execErr := e.invoke(ctx, task, resolved)
		if execErr == nil {
			mu.Lock()
			results[task.ID] = output
			mu.Unlock()
			e.metrics.TaskExecutions.WithLabelValues("completed").Inc()
			return nil
		}
		lastErr = execErr

		if ctx.Err() != nil {
			break
		}
	}

	e.metrics.TaskExecutions.WithLabelValues("failed").Inc()
	return &workflow.ExecutionError{TaskID: task.ID, Err: lastErr}
}

// invoke runs one attempt, honoring the task-level timeout when declared
func (e *DAGExecutor) invoke(ctx context.Context, task *workflow.TaskDefinition, inputs map[string]interface{}) (map[string]interface{}, error) {
	if task.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	return e.tasks.ExecuteTask(ctx, task.Type, inputs)
}

// topologicalLayers groups tasks into layers via Kahn's algorithm. Every
// task in a layer has all dependencies satisfied by earlier layers. Declared
// order is preserved within a layer.
func topologicalLayers(def *workflow.Definition) [][]*workflow.TaskDefinition {
	indegree := make(map[string]int, len(def.Tasks))
	for _, task := range def.Tasks {
		indegree[task.ID] = len(task.DependsOn)
	}

	done := make(map[string]bool, len(def.Tasks))
	var layers [][]*workflow.TaskDefinition

	for len(done) < len(def.Tasks) {
		var layer []*workflow.TaskDefinition
		for i := range def.Tasks {
			task := &def.Tasks[i]
			if done[task.ID] {
				continue
			}
			ready := true
			for _, dep := range task.DependsOn {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, task)
			}
		}

		// Validation guarantees acyclicity; an empty layer here would be
		// a programmer error
		if len(layer) == 0 {
			panic("topological layering stalled on a validated definition")
		}

		for _, task := range layer {
			done[task.ID] = true
		}
		layers = append(layers, layer)
	}

	return layers
}

func snapshot(results map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(results))
	for k, v := range results {
		copied[k] = v
	}
	return copied
}
