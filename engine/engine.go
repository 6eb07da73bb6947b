// Package engine wires the validator, resolver, executors, registries and
// job manager into the single facade exposed to the HTTP service and CLI.
package engine

import (
	"context"
	"time"

	"github.com/docuflow/engine/common/config"
	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/common/metrics"
	"github.com/docuflow/engine/engine/condition"
	"github.com/docuflow/engine/engine/executor"
	"github.com/docuflow/engine/engine/job"
	"github.com/docuflow/engine/engine/registry"
	"github.com/docuflow/engine/engine/resolver"
	"github.com/docuflow/engine/engine/template"
	"github.com/docuflow/engine/engine/validation"
	"github.com/docuflow/engine/engine/workflow"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is the workflow execution engine facade
type Engine struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics

	templates *template.Registry
	workflows *registry.WorkflowRegistry
	graphs    *registry.GraphRegistry

	resolver    *resolver.Resolver
	dagExec     *executor.DAGExecutor
	graphExec   *executor.GraphExecutor
	checkpoints executor.CheckpointStore

	// set only when the engine created the default in-memory store and
	// therefore owns its sweeper
	ownedCheckpoints *executor.MemoryCheckpointStore

	manager *job.Manager
	tasks   executor.TaskExecutor
}

// Option customizes engine construction
type Option func(*options)

type options struct {
	checkpoints executor.CheckpointStore
	archive     job.Archive
	registerer  prometheus.Registerer
}

// WithCheckpointStore replaces the default in-memory checkpoint store
func WithCheckpointStore(store executor.CheckpointStore) Option {
	return func(o *options) { o.checkpoints = store }
}

// WithArchive enables write-through persistence of terminal jobs
func WithArchive(archive job.Archive) Option {
	return func(o *options) { o.archive = archive }
}

// WithRegisterer sets the Prometheus registerer for engine metrics
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New creates an engine. The task executor is the only mandatory external
// collaborator; everything the engine knows about concrete tasks goes
// through it.
func New(cfg *config.Config, tasks executor.TaskExecutor, log *logger.Logger, opts ...Option) *Engine {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var ownedCheckpoints *executor.MemoryCheckpointStore
	if o.checkpoints == nil {
		ownedCheckpoints = executor.NewMemoryCheckpointStore(cfg.Redis.CheckpointTTL)
		o.checkpoints = ownedCheckpoints
	}

	m := metrics.New(o.registerer)
	res := resolver.New(cfg.Engine.StrictResolution)
	conditions := condition.NewEvaluator()

	e := &Engine{
		cfg:         cfg,
		log:         log,
		metrics:     m,
		templates:   template.NewRegistryWithBuiltins(),
		workflows:   registry.NewWorkflowRegistry(),
		graphs:      registry.NewGraphRegistry(),
		resolver:    res,
		dagExec:     executor.NewDAGExecutor(res, tasks, log, m),
		graphExec:   executor.NewGraphExecutor(tasks, conditions, o.checkpoints, log, cfg.Engine.GraphMaxIterations),
		checkpoints: o.checkpoints,
		tasks:       tasks,

		ownedCheckpoints: ownedCheckpoints,
	}

	webhooks := job.NewWebhookDispatcher(
		cfg.Webhook.Timeout,
		cfg.Webhook.MaxAttempts,
		cfg.Webhook.RetryDelays,
		log,
		m,
	)

	e.manager = job.NewManager(
		job.Config{
			MaxConcurrent:  cfg.Engine.MaxConcurrent,
			DefaultTimeout: cfg.Engine.DefaultJobTimeout,
			MaxQueueLength: cfg.Engine.MaxQueueLength,
		},
		e.runJob,
		e.resumeJob,
		webhooks,
		o.archive,
		log,
		m,
	)

	return e
}

// Start launches the job manager
func (e *Engine) Start(ctx context.Context) {
	e.manager.Start(ctx)
}

// Close shuts the engine down, cancelling running jobs and stopping the
// default checkpoint store's sweeper
func (e *Engine) Close() {
	e.manager.Close()
	if e.ownedCheckpoints != nil {
		e.ownedCheckpoints.Close()
	}
}

// ExecuteResult is the synchronous execution envelope
type ExecuteResult struct {
	Success bool                   `json:"success"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Execute runs a workflow synchronously and blocks until terminal. The
// workflow id may name a custom workflow, a built-in template or a graph.
func (e *Engine) Execute(ctx context.Context, workflowID string, inputs map[string]interface{}) (*ExecuteResult, error) {
	ref, err := e.resolveRef(workflowID)
	if err != nil {
		return nil, err
	}

	if ref.graph != nil {
		res, execErr := e.graphExec.Execute(ctx, ref.graph, inputs, "")
		if execErr != nil {
			return &ExecuteResult{Success: false, Error: execErr.Error()}, nil
		}
		if res.RequiresHumanInput {
			return &ExecuteResult{
				Success: false,
				Result: map[string]interface{}{
					"requires_human_input": true,
					"human_prompt":         res.HumanPrompt,
					"checkpoint_id":        res.CheckpointID,
					"state":                res.State,
				},
			}, nil
		}
		return &ExecuteResult{Success: true, Result: res.State}, nil
	}

	runCtx := ctx
	if ref.def.Options.TimeoutMS > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(ref.def.Options.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	res, execErr := e.dagExec.Execute(runCtx, ref.def, inputs, nil)
	if execErr != nil {
		return &ExecuteResult{Success: false, Error: execErr.Error()}, nil
	}
	return &ExecuteResult{Success: true, Result: res.Output}, nil
}

// ExecuteAsync submits a workflow for asynchronous execution and returns
// immediately with a PENDING job
func (e *Engine) ExecuteAsync(workflowID string, inputs map[string]interface{}, priority job.Priority, webhook *job.WebhookSpec) (*job.Job, error) {
	ref, err := e.resolveRef(workflowID)
	if err != nil {
		return nil, err
	}

	return e.manager.Submit(job.SubmitRequest{
		WorkflowID:   workflowID,
		WorkflowType: ref.kind,
		Inputs:       inputs,
		Priority:     priority,
		Webhook:      webhook,
		TimeoutMS:    ref.timeoutMS(),
	})
}

// SubmitDefinition registers an inline definition and submits it in one
// step. The definition is validated and stored under its workflow id.
func (e *Engine) SubmitDefinition(def *workflow.Definition, inputs map[string]interface{}, priority job.Priority, webhook *job.WebhookSpec) (*job.Job, error) {
	if def == nil || def.WorkflowID == "" {
		return nil, workflow.NewValidationError("inline definition requires a workflow_id")
	}
	if res := validation.ValidateWorkflow(def); !res.Valid {
		return nil, res.Err()
	}
	e.workflows.Register(def.WorkflowID, def)

	return e.manager.Submit(job.SubmitRequest{
		WorkflowID:   def.WorkflowID,
		WorkflowType: job.TypeInline,
		Inputs:       inputs,
		Priority:     priority,
		Webhook:      webhook,
		TimeoutMS:    def.Options.TimeoutMS,
	})
}

// ResumeGraph continues a paused graph execution. When a job owns the
// checkpoint the job lifecycle is updated; otherwise the checkpoint is
// resumed directly (synchronous executions pause too).
func (e *Engine) ResumeGraph(ctx context.Context, graphID, checkpointID string, humanInput map[string]interface{}) (*ExecuteResult, error) {
	j, err := e.manager.Resume(checkpointID, humanInput)
	if err == nil {
		result := &ExecuteResult{
			Success: j.Status == job.StatusCompleted,
			Result:  j.Result,
			Error:   j.Error,
		}
		if j.Status == job.StatusPaused {
			result.Result = map[string]interface{}{
				"requires_human_input": true,
				"checkpoint_id":        j.CheckpointID,
			}
		}
		return result, nil
	}
	if !workflow.IsNotFound(err) {
		return nil, err
	}

	// No job owns the checkpoint; the pause came from a synchronous
	// execution, so resume the checkpoint directly.

	def, err := e.graphs.Get(graphID)
	if err != nil {
		return nil, err
	}

	res, err := e.graphExec.Resume(ctx, def, checkpointID, humanInput)
	if err != nil {
		return nil, err
	}
	if res.RequiresHumanInput {
		return &ExecuteResult{
			Success: false,
			Result: map[string]interface{}{
				"requires_human_input": true,
				"human_prompt":         res.HumanPrompt,
				"checkpoint_id":        res.CheckpointID,
				"state":                res.State,
			},
		}, nil
	}
	return &ExecuteResult{Success: true, Result: res.State}, nil
}

// workflowRef is a resolved workflow reference
type workflowRef struct {
	kind  job.WorkflowType
	def   *workflow.Definition
	graph *workflow.GraphDefinition
}

func (r *workflowRef) timeoutMS() int64 {
	if r.def != nil {
		return r.def.Options.TimeoutMS
	}
	if r.graph != nil {
		return r.graph.TimeoutMS
	}
	return 0
}

// resolveRef looks a workflow id up across the custom registry, the template
// registry (instantiated with defaults) and the graph registry, in that
// order
func (e *Engine) resolveRef(workflowID string) (*workflowRef, error) {
	if def, err := e.workflows.Get(workflowID); err == nil {
		return &workflowRef{kind: job.TypeCustom, def: def}, nil
	}

	if _, err := e.templates.Get(workflowID); err == nil {
		def, instErr := e.templates.Instantiate(workflowID, nil)
		if instErr != nil {
			return nil, instErr
		}
		return &workflowRef{kind: job.TypeBuiltin, def: def}, nil
	}

	if graph, err := e.graphs.Get(workflowID); err == nil {
		return &workflowRef{kind: job.TypeGraph, graph: graph}, nil
	}

	return nil, &workflow.NotFoundError{Kind: "workflow", ID: workflowID}
}

// runJob is the Manager's RunFunc: it re-resolves the job's workflow and
// dispatches to the right executor
func (e *Engine) runJob(ctx context.Context, j *job.Job, progress executor.ProgressFunc) (*job.RunOutcome, error) {
	ref, err := e.resolveRef(j.WorkflowID)
	if err != nil {
		return nil, err
	}

	if ref.graph != nil {
		res, execErr := e.graphExec.Execute(ctx, ref.graph, j.Inputs, j.ID)
		if execErr != nil {
			return nil, execErr
		}
		if res.RequiresHumanInput {
			return &job.RunOutcome{
				Paused:       true,
				CheckpointID: res.CheckpointID,
				HumanPrompt:  res.HumanPrompt,
			}, nil
		}
		return &job.RunOutcome{Result: res.State}, nil
	}

	res, execErr := e.dagExec.Execute(ctx, ref.def, j.Inputs, progress)
	if execErr != nil {
		return nil, execErr
	}
	return &job.RunOutcome{Result: res.Output}, nil
}

// resumeJob is the Manager's ResumeFunc
func (e *Engine) resumeJob(ctx context.Context, j *job.Job, humanInput map[string]interface{}) (*job.RunOutcome, error) {
	def, err := e.graphs.Get(j.WorkflowID)
	if err != nil {
		return nil, err
	}

	res, execErr := e.graphExec.Resume(ctx, def, j.CheckpointID, humanInput)
	if execErr != nil {
		return nil, execErr
	}
	if res.RequiresHumanInput {
		return &job.RunOutcome{
			Paused:       true,
			CheckpointID: res.CheckpointID,
			HumanPrompt:  res.HumanPrompt,
		}, nil
	}
	return &job.RunOutcome{Result: res.State}, nil
}

// --- Custom workflow registry operations ---

// RegisterWorkflow validates and registers a custom workflow definition
func (e *Engine) RegisterWorkflow(workflowID string, def *workflow.Definition) error {
	if workflowID == "" {
		return workflow.NewValidationError("workflow_id is required")
	}
	if res := validation.ValidateWorkflow(def); !res.Valid {
		return res.Err()
	}
	e.workflows.Register(workflowID, def)
	e.log.Info("custom workflow registered", "workflow_id", workflowID, "tasks", len(def.Tasks))
	return nil
}

// GetWorkflow returns a registered custom workflow
func (e *Engine) GetWorkflow(workflowID string) (*workflow.Definition, error) {
	return e.workflows.Get(workflowID)
}

// ListWorkflows returns all custom workflows
func (e *Engine) ListWorkflows() []*workflow.Definition {
	return e.workflows.List()
}

// DeleteWorkflow removes a custom workflow
func (e *Engine) DeleteWorkflow(workflowID string) error {
	return e.workflows.Delete(workflowID)
}

// ValidateWorkflow checks a definition without registering it
func (e *Engine) ValidateWorkflow(def *workflow.Definition) validation.Result {
	return validation.ValidateWorkflow(def)
}

// --- Graph registry operations ---

// RegisterGraph validates and registers a graph definition
func (e *Engine) RegisterGraph(graphID string, def *workflow.GraphDefinition) error {
	if graphID == "" {
		return workflow.NewValidationError("graph_id is required")
	}
	if res := validation.ValidateGraph(def); !res.Valid {
		return res.Err()
	}
	e.graphs.Register(graphID, def)
	e.log.Info("graph registered", "graph_id", graphID, "nodes", len(def.Nodes))
	return nil
}

// GetGraph returns a registered graph
func (e *Engine) GetGraph(graphID string) (*workflow.GraphDefinition, error) {
	return e.graphs.Get(graphID)
}

// ListGraphs returns all registered graphs
func (e *Engine) ListGraphs() []*workflow.GraphDefinition {
	return e.graphs.List()
}

// DeleteGraph removes a graph
func (e *Engine) DeleteGraph(graphID string) error {
	return e.graphs.Delete(graphID)
}

// ValidateGraph checks a graph definition without registering it
func (e *Engine) ValidateGraph(def *workflow.GraphDefinition) validation.Result {
	return validation.ValidateGraph(def)
}

// GraphSummary is a compact description of a registered graph
type GraphSummary struct {
	GraphID      string         `json:"graph_id"`
	Name         string         `json:"name"`
	NodeCount    int            `json:"node_count"`
	EdgeCount    int            `json:"edge_count"`
	EntryPoint   string         `json:"entry_point"`
	FinishPoints []string       `json:"finish_points,omitempty"`
	NodeTypes    map[string]int `json:"node_types"`
}

// GetGraphSummary describes a graph's shape without its full definition
func (e *Engine) GetGraphSummary(graphID string) (*GraphSummary, error) {
	def, err := e.graphs.Get(graphID)
	if err != nil {
		return nil, err
	}

	nodeTypes := make(map[string]int)
	for _, node := range def.Nodes {
		nodeTypes[string(node.Type)]++
	}

	return &GraphSummary{
		GraphID:      def.GraphID,
		Name:         def.Name,
		NodeCount:    len(def.Nodes),
		EdgeCount:    len(def.Edges),
		EntryPoint:   def.EntryPoint,
		FinishPoints: def.FinishPoints,
		NodeTypes:    nodeTypes,
	}, nil
}

// --- Template operations ---

// ListTemplates returns template infos, optionally filtered by category
func (e *Engine) ListTemplates(category string) []workflow.TemplateInfo {
	return e.templates.List(category)
}

// GetTemplate returns a template by id
func (e *Engine) GetTemplate(templateID string) (*workflow.Template, error) {
	return e.templates.Get(templateID)
}

// GetTemplateCategories returns the distinct template categories
func (e *Engine) GetTemplateCategories() []string {
	return e.templates.Categories()
}

// InstantiateTemplate renders a template with parameters. With autoRegister
// the rendered definition is stored in the custom workflow registry under
// workflowID (or the template id when empty).
func (e *Engine) InstantiateTemplate(templateID string, params map[string]interface{}, autoRegister bool, workflowID string) (*workflow.Definition, error) {
	def, err := e.templates.Instantiate(templateID, params)
	if err != nil {
		return nil, err
	}

	if autoRegister {
		id := workflowID
		if id == "" {
			id = templateID
		}
		e.workflows.Register(id, def)
		e.log.Info("template instantiated and registered", "template_id", templateID, "workflow_id", id)
	}

	return def, nil
}

// --- Job admin operations ---

// GetJobStatus returns a job copy including progress and terminal details
func (e *Engine) GetJobStatus(jobID string) (*job.Job, error) {
	return e.manager.GetStatus(jobID)
}

// ListJobs returns job copies matching the filter
func (e *Engine) ListJobs(filter job.ListFilter) []*job.Job {
	return e.manager.List(filter)
}

// CancelJob cancels a job; idempotent
func (e *Engine) CancelJob(jobID string) error {
	return e.manager.Cancel(jobID)
}

// DeleteJob removes a non-running job
func (e *Engine) DeleteJob(jobID string) error {
	return e.manager.Delete(jobID)
}

// GetJobStats aggregates queue and job statistics
func (e *Engine) GetJobStats() job.Stats {
	return e.manager.GetStats()
}
