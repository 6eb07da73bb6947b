package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/common/metrics"
	"github.com/docuflow/engine/engine/resolver"
	"github.com/docuflow/engine/engine/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// stubTaskExecutor scripts task outputs and failures per task type
type stubTaskExecutor struct {
	mu        sync.Mutex
	outputs   map[string]map[string]interface{}
	failures  map[string]int // remaining failures per task type
	delay     time.Duration
	calls     []string
	active    int
	maxActive int
}

func newStubTaskExecutor() *stubTaskExecutor {
	return &stubTaskExecutor{
		outputs:  make(map[string]map[string]interface{}),
		failures: make(map[string]int),
	}
}

func (s *stubTaskExecutor) ExecuteTask(ctx context.Context, taskType string, inputs map[string]interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	s.calls = append(s.calls, taskType)
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	remaining := s.failures[taskType]
	if remaining > 0 {
		s.failures[taskType] = remaining - 1
	}
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	s.active--
	out := s.outputs[taskType]
	s.mu.Unlock()

	if remaining > 0 {
		return nil, fmt.Errorf("scripted failure for %s", taskType)
	}
	if out == nil {
		out = map[string]interface{}{"ok": true}
	}
	return out, nil
}

func newDAGExecutor(tasks TaskExecutor) *DAGExecutor {
	return NewDAGExecutor(resolver.New(false), tasks, logger.New("error", "text"), metrics.New(prometheus.NewRegistry()))
}

func TestExecute_SequentialPipeline(t *testing.T) {
	tasks := newStubTaskExecutor()
	tasks.outputs["pdf_extract"] = map[string]interface{}{"text": "hello world"}
	tasks.outputs["chunk"] = map[string]interface{}{"chunks": []interface{}{"hello", "world"}}

	def := &workflow.Definition{
		Name: "extract-chunk",
		Tasks: []workflow.TaskDefinition{
			{ID: "extract", Type: "pdf_extract", Inputs: map[string]interface{}{
				"source": "{{workflow.input.source}}",
			}},
			{ID: "chunk", Type: "chunk", DependsOn: []string{"extract"}, Inputs: map[string]interface{}{
				"content": "{{extract.text}}",
			}},
		},
		Output: map[string]string{
			"chunks": "{{chunk.chunks}}",
		},
	}

	res, err := newDAGExecutor(tasks).Execute(context.Background(), def, map[string]interface{}{
		"source": "doc.pdf",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tasks.calls) != 2 || tasks.calls[0] != "pdf_extract" || tasks.calls[1] != "chunk" {
		t.Errorf("unexpected call order: %v", tasks.calls)
	}

	chunks, ok := res.Output["chunks"].([]interface{})
	if !ok || len(chunks) != 2 {
		t.Errorf("unexpected output: %v", res.Output)
	}
	if _, ok := res.Results["extract"]; !ok {
		t.Error("missing raw result for extract")
	}
}

func TestExecute_ParallelLayerRunsConcurrently(t *testing.T) {
	tasks := newStubTaskExecutor()
	tasks.delay = 30 * time.Millisecond

	def := &workflow.Definition{
		Name: "fanout",
		Tasks: []workflow.TaskDefinition{
			{ID: "a", Type: "noop_a"},
			{ID: "b", Type: "noop_b"},
			{ID: "c", Type: "noop_c"},
		},
		Options: workflow.Options{Parallel: true},
	}

	_, err := newDAGExecutor(tasks).Execute(context.Background(), def, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks.maxActive < 2 {
		t.Errorf("expected overlapping execution, max concurrent was %d", tasks.maxActive)
	}
}

func TestExecute_SequentialWithoutParallelOption(t *testing.T) {
	tasks := newStubTaskExecutor()
	tasks.delay = 10 * time.Millisecond

	def := &workflow.Definition{
		Name: "no-parallel",
		Tasks: []workflow.TaskDefinition{
			{ID: "a", Type: "noop_a"},
			{ID: "b", Type: "noop_b"},
		},
	}

	_, err := newDAGExecutor(tasks).Execute(context.Background(), def, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks.maxActive != 1 {
		t.Errorf("expected strictly sequential execution, max concurrent was %d", tasks.maxActive)
	}
}

func TestExecute_RetrySucceedsWithinBudget(t *testing.T) {
	tasks := newStubTaskExecutor()
	tasks.failures["ocr"] = 2

	def := &workflow.Definition{
		Name: "retrying",
		Tasks: []workflow.TaskDefinition{
			{ID: "ocr", Type: "ocr", Retry: 2},
		},
	}

	_, err := newDAGExecutor(tasks).Execute(context.Background(), def, nil, nil)
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if len(tasks.calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(tasks.calls))
	}
}

func TestExecute_RetryExhausted(t *testing.T) {
	tasks := newStubTaskExecutor()
	tasks.failures["ocr"] = 5

	def := &workflow.Definition{
		Name: "failing",
		Tasks: []workflow.TaskDefinition{
			{ID: "ocr", Type: "ocr", Retry: 1},
		},
	}

	_, err := newDAGExecutor(tasks).Execute(context.Background(), def, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var execErr *workflow.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %T", err)
	}
	if execErr.TaskID != "ocr" {
		t.Errorf("expected failing task ocr, got %s", execErr.TaskID)
	}
	if len(tasks.calls) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(tasks.calls))
	}
}

func TestExecute_WorkflowMaxRetriesAppliesWhenTaskHasNone(t *testing.T) {
	tasks := newStubTaskExecutor()
	tasks.failures["flaky"] = 1

	def := &workflow.Definition{
		Name: "workflow-retries",
		Tasks: []workflow.TaskDefinition{
			{ID: "t", Type: "flaky"},
		},
		Options: workflow.Options{MaxRetries: 1},
	}

	_, err := newDAGExecutor(tasks).Execute(context.Background(), def, nil, nil)
	if err != nil {
		t.Fatalf("expected workflow-level retry to save the task, got: %v", err)
	}
}

func TestExecute_TaskExecutionMetrics(t *testing.T) {
	tasks := newStubTaskExecutor()
	tasks.failures["ocr"] = 1
	tasks.failures["broken"] = 5

	m := metrics.New(prometheus.NewRegistry())
	exec := NewDAGExecutor(resolver.New(false), tasks, logger.New("error", "text"), m)

	def := &workflow.Definition{
		Name: "metered",
		Tasks: []workflow.TaskDefinition{
			{ID: "extract", Type: "pdf_extract"},
			{ID: "ocr", Type: "ocr", Retry: 1, DependsOn: []string{"extract"}},
			{ID: "broken", Type: "broken", DependsOn: []string{"ocr"}},
		},
	}

	if _, err := exec.Execute(context.Background(), def, nil, nil); err == nil {
		t.Fatal("expected the final task to fail")
	}

	if got := testutil.ToFloat64(m.TaskExecutions.WithLabelValues("completed")); got != 2 {
		t.Errorf("expected 2 completed executions, got %v", got)
	}
	if got := testutil.ToFloat64(m.TaskExecutions.WithLabelValues("retried")); got != 1 {
		t.Errorf("expected 1 retried execution, got %v", got)
	}
	if got := testutil.ToFloat64(m.TaskExecutions.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected 1 failed execution, got %v", got)
	}
}

func TestExecute_CancellationCarriesPartialResults(t *testing.T) {
	tasks := newStubTaskExecutor()
	tasks.outputs["first"] = map[string]interface{}{"done": true}

	ctx, cancel := context.WithCancel(context.Background())

	// Cancel after the first task completes
	progress := func(current, total int, message string) {
		if current == 1 {
			cancel()
		}
	}

	def := &workflow.Definition{
		Name: "cancellable",
		Tasks: []workflow.TaskDefinition{
			{ID: "a", Type: "first"},
			{ID: "b", Type: "second", DependsOn: []string{"a"}},
			{ID: "c", Type: "third", DependsOn: []string{"b"}},
		},
	}

	_, err := newDAGExecutor(tasks).Execute(ctx, def, nil, progress)
	if err == nil {
		t.Fatal("expected cancellation error")
	}

	var cancelled *workflow.CancelledError
	if !errors.As(err, &cancelled) {
		t.Fatalf("expected CancelledError, got %T: %v", err, err)
	}
	if _, ok := cancelled.Partial["a"]; !ok {
		t.Error("expected partial results to include the completed task")
	}
	if _, ok := cancelled.Partial["b"]; ok {
		t.Error("partial results should not include tasks after the cancel")
	}
}

// An empty input map resolves missing references to nil and the task still runs
func TestExecute_LenientResolutionPassesNil(t *testing.T) {
	var seen map[string]interface{}
	tasks := &captureExecutor{onCall: func(inputs map[string]interface{}) {
		seen = inputs
	}}

	def := &workflow.Definition{
		Name: "lenient",
		Tasks: []workflow.TaskDefinition{
			{ID: "t", Type: "noop", Inputs: map[string]interface{}{
				"missing": "{{workflow.input.absent}}",
			}},
		},
	}

	_, err := newDAGExecutor(tasks).Execute(context.Background(), def, map[string]interface{}{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := seen["missing"]; !ok || v != nil {
		t.Errorf("expected nil for missing input, got %v", seen)
	}
}

func TestExecute_ProgressReachesTotal(t *testing.T) {
	tasks := newStubTaskExecutor()

	var mu sync.Mutex
	var last int
	progress := func(current, total int, message string) {
		mu.Lock()
		if current > last {
			last = current
		}
		mu.Unlock()
	}

	def := &workflow.Definition{
		Name: "progress",
		Tasks: []workflow.TaskDefinition{
			{ID: "a", Type: "x"},
			{ID: "b", Type: "y", DependsOn: []string{"a"}},
			{ID: "c", Type: "z", DependsOn: []string{"b"}},
		},
	}

	if _, err := newDAGExecutor(tasks).Execute(context.Background(), def, nil, progress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last != 3 {
		t.Errorf("expected progress to reach 3, got %d", last)
	}
}

func TestTopologicalLayers_DiamondShape(t *testing.T) {
	def := &workflow.Definition{
		Name: "diamond",
		Tasks: []workflow.TaskDefinition{
			{ID: "a", Type: "noop"},
			{ID: "b", Type: "noop", DependsOn: []string{"a"}},
			{ID: "c", Type: "noop", DependsOn: []string{"a"}},
			{ID: "d", Type: "noop", DependsOn: []string{"b", "c"}},
		},
	}

	layers := topologicalLayers(def)
	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(layers))
	}
	if len(layers[0]) != 1 || layers[0][0].ID != "a" {
		t.Errorf("unexpected first layer: %v", layerIDs(layers[0]))
	}
	if len(layers[1]) != 2 {
		t.Errorf("expected middle layer of 2, got %v", layerIDs(layers[1]))
	}
	if len(layers[2]) != 1 || layers[2][0].ID != "d" {
		t.Errorf("unexpected final layer: %v", layerIDs(layers[2]))
	}
}

func layerIDs(layer []*workflow.TaskDefinition) []string {
	ids := make([]string, len(layer))
	for i, task := range layer {
		ids[i] = task.ID
	}
	return ids
}

// captureExecutor records the inputs of its single call
type captureExecutor struct {
	onCall func(inputs map[string]interface{})
}

func (c *captureExecutor) ExecuteTask(ctx context.Context, taskType string, inputs map[string]interface{}) (map[string]interface{}, error) {
	if c.onCall != nil {
		c.onCall(inputs)
	}
	return map[string]interface{}{"ok": true}, nil
}
