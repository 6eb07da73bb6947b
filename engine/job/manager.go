package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/common/metrics"
	"github.com/docuflow/engine/engine/executor"
	"github.com/docuflow/engine/engine/workflow"
	"github.com/google/uuid"
)

// Cancellation causes distinguish a fired timeout from an explicit cancel
// when the executor observes the context
var (
	errJobTimeout   = errors.New("job timeout")
	errJobCancelled = errors.New("job cancelled")
)

// RunOutcome is what an execution returns to the Manager
type RunOutcome struct {
	Result       map[string]interface{}
	Paused       bool
	CheckpointID string
	HumanPrompt  string
}

// RunFunc executes a job. The engine facade supplies it; the Manager stays
// ignorant of DAG-vs-graph dispatch.
type RunFunc func(ctx context.Context, j *Job, progress executor.ProgressFunc) (*RunOutcome, error)

// ResumeFunc continues a paused graph job with human input
type ResumeFunc func(ctx context.Context, j *Job, humanInput map[string]interface{}) (*RunOutcome, error)

// Archive receives terminal jobs for write-through persistence. The
// in-memory job table stays authoritative.
type Archive interface {
	ArchiveJob(ctx context.Context, j *Job) error
}

// Config holds Manager tuning knobs
type Config struct {
	MaxConcurrent  int
	DefaultTimeout time.Duration
	MaxQueueLength int // 0 = unbounded
}

// Manager owns the priority queue, the worker pool and every job's
// lifecycle. All status transitions happen under the per-job lock; the
// manager-wide lock only guards enqueue/dequeue and the entries table.
type Manager struct {
	cfg      Config
	run      RunFunc
	resumeFn ResumeFunc
	webhooks *WebhookDispatcher
	archive  Archive
	log      *logger.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	queue   *priorityQueue
	entries map[string]*entry
	running int
	wake    chan struct{}

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

// entry pairs a job with its runtime handles
type entry struct {
	mu     sync.Mutex
	job    *Job
	cancel context.CancelCauseFunc
}

// NewManager creates a job manager. Call Start before submitting.
func NewManager(cfg Config, run RunFunc, resume ResumeFunc, webhooks *WebhookDispatcher, archive Archive, log *logger.Logger, m *metrics.Metrics) *Manager {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 4
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
	return &Manager{
		cfg:      cfg,
		run:      run,
		resumeFn: resume,
		webhooks: webhooks,
		archive:  archive,
		log:      log,
		metrics:  m,
		queue:    newPriorityQueue(),
		entries:  make(map[string]*entry),
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the scheduler loop
func (m *Manager) Start(ctx context.Context) {
	m.baseCtx, m.cancelBase = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.schedule()
	m.log.Info("job manager started", "max_concurrent", m.cfg.MaxConcurrent)
}

// Close stops the scheduler and cancels running jobs
func (m *Manager) Close() {
	if m.cancelBase != nil {
		m.cancelBase()
	}
	m.wg.Wait()
	m.log.Info("job manager stopped")
}

// SubmitRequest describes a new job
type SubmitRequest struct {
	WorkflowID   string
	WorkflowType WorkflowType
	Inputs       map[string]interface{}
	Priority     Priority
	Webhook      *WebhookSpec
	Owner        string
	TimeoutMS    int64
}

// Submit creates a PENDING job and enqueues it by priority. It fails with
// QueueFullError when the admission limit is configured and reached.
func (m *Manager) Submit(req SubmitRequest) (*Job, error) {
	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	j := &Job{
		ID:           uuid.New().String(),
		WorkflowID:   req.WorkflowID,
		WorkflowType: req.WorkflowType,
		Inputs:       req.Inputs,
		Priority:     priority,
		Webhook:      req.Webhook,
		Owner:        req.Owner,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
		TimeoutMS:    req.TimeoutMS,
	}

	m.mu.Lock()
	if m.cfg.MaxQueueLength > 0 && m.queue.Len() >= m.cfg.MaxQueueLength {
		m.mu.Unlock()
		return nil, &workflow.QueueFullError{Limit: m.cfg.MaxQueueLength}
	}
	m.entries[j.ID] = &entry{job: j}
	m.queue.Push(j)
	m.metrics.QueueLength.Set(float64(m.queue.Len()))
	m.mu.Unlock()

	m.metrics.JobsSubmitted.Inc()
	m.log.Info("job submitted", "job_id", j.ID, "workflow_id", j.WorkflowID, "priority", priority)

	m.signal()
	return j.Clone(), nil
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// schedule dispatches queued jobs whenever a worker slot opens
func (m *Manager) schedule() {
	defer m.wg.Done()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case <-m.wake:
			m.dispatchReady()
		}
	}
}

// dispatchReady moves jobs from the queue onto worker slots
func (m *Manager) dispatchReady() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.running < m.cfg.MaxConcurrent {
		j := m.queue.Pop()
		if j == nil {
			break
		}
		e := m.entries[j.ID]
		if e == nil {
			continue
		}

		e.mu.Lock()
		if e.job.Status != StatusPending {
			e.mu.Unlock()
			continue
		}
		ctx, cancel, timer := m.armJobLocked(e)
		e.job.Status = StatusRunning
		now := time.Now().UTC()
		e.job.StartedAt = &now
		e.mu.Unlock()

		m.running++
		m.metrics.RunningJobs.Set(float64(m.running))
		m.metrics.QueueLength.Set(float64(m.queue.Len()))

		m.wg.Add(1)
		go m.execute(e, ctx, cancel, timer)
	}
}

// execute runs one job on a worker slot
func (m *Manager) execute(e *entry, ctx context.Context, cancel context.CancelCauseFunc, timer *time.Timer) {
	defer m.wg.Done()
	defer timer.Stop()

	e.mu.Lock()
	snapshot := e.job.Clone()
	e.mu.Unlock()

	m.log.Info("job started", "job_id", snapshot.ID, "workflow_id", snapshot.WorkflowID)

	outcome, err := m.run(ctx, snapshot, m.progressFunc(e))
	cancel(nil)

	m.finish(e, ctx, outcome, err, true)
}

// armJobLocked prepares the cancellable context and timeout timer for a run.
// The caller must hold e.mu and store the RUNNING status in the same critical
// section, so that any job observed as RUNNING already carries its cancel
// handle.
func (m *Manager) armJobLocked(e *entry) (context.Context, context.CancelCauseFunc, *time.Timer) {
	timeout := m.cfg.DefaultTimeout
	if e.job.TimeoutMS > 0 {
		timeout = time.Duration(e.job.TimeoutMS) * time.Millisecond
	}

	ctx, cancel := context.WithCancelCause(m.baseCtx)
	timer := time.AfterFunc(timeout, func() {
		cancel(errJobTimeout)
	})
	e.cancel = cancel

	return ctx, cancel, timer
}

// progressFunc returns a callback that updates the job's progress record
func (m *Manager) progressFunc(e *entry) executor.ProgressFunc {
	return func(current, total int, message string) {
		percent := 0.0
		if total > 0 {
			percent = float64(current) / float64(total) * 100
		}
		e.mu.Lock()
		e.job.Progress = Progress{
			Current: current,
			Total:   total,
			Percent: percent,
			Message: message,
		}
		e.mu.Unlock()
	}
}

// finish applies the execution outcome to the job and releases the slot
func (m *Manager) finish(e *entry, ctx context.Context, outcome *RunOutcome, err error, releaseSlot bool) {
	status, result, errDetail, checkpointID := m.classify(ctx, outcome, err)

	now := time.Now().UTC()
	e.mu.Lock()
	if CanTransition(e.job.Status, status) {
		e.job.Status = status
		e.job.Result = result
		e.job.Error = errDetail
		e.job.CheckpointID = checkpointID
		if status.Terminal() {
			e.job.CompletedAt = &now
			if e.job.StartedAt != nil {
				e.job.ExecutionTimeMS = now.Sub(*e.job.StartedAt).Milliseconds()
			}
		}
		if status == StatusCompleted {
			e.job.Progress.Percent = 100
			e.job.Progress.Message = "completed"
		}
	} else {
		m.log.Warn("suppressed illegal job transition", "job_id", e.job.ID, "from", e.job.Status, "to", status)
	}
	snapshot := e.job.Clone()
	e.cancel = nil
	e.mu.Unlock()

	if releaseSlot {
		m.mu.Lock()
		m.running--
		m.metrics.RunningJobs.Set(float64(m.running))
		m.mu.Unlock()
		m.signal()
	}

	m.log.Info("job finished", "job_id", snapshot.ID, "status", snapshot.Status, "execution_time_ms", snapshot.ExecutionTimeMS)

	if snapshot.Status.Terminal() {
		m.onTerminal(snapshot)
	}
}

// classify maps an execution outcome onto a job status
func (m *Manager) classify(ctx context.Context, outcome *RunOutcome, err error) (Status, map[string]interface{}, string, string) {
	if err == nil && outcome != nil && outcome.Paused {
		return StatusPaused, nil, "", outcome.CheckpointID
	}
	if err == nil {
		var result map[string]interface{}
		if outcome != nil {
			result = outcome.Result
		}
		return StatusCompleted, result, "", ""
	}

	cause := context.Cause(ctx)

	var cancelled *workflow.CancelledError
	isCancelled := errors.As(err, &cancelled)

	switch {
	case errors.Is(cause, errJobTimeout) || workflow.IsTimeout(err):
		return StatusTimeout, nil, err.Error(), ""
	case isCancelled || errors.Is(cause, errJobCancelled):
		detail := "cancelled"
		if cancelled != nil && len(cancelled.Partial) > 0 {
			if partial, marshalErr := json.Marshal(cancelled.Partial); marshalErr == nil {
				detail = fmt.Sprintf("cancelled; partial results: %s", partial)
			}
		}
		return StatusCancelled, nil, detail, ""
	default:
		return StatusFailed, nil, err.Error(), ""
	}
}

// onTerminal fires webhook delivery and the archive write-through
func (m *Manager) onTerminal(snapshot *Job) {
	m.metrics.JobsCompleted.WithLabelValues(string(snapshot.Status)).Inc()

	if snapshot.Webhook != nil {
		go m.webhooks.Deliver(m.baseCtx, snapshot)
	}

	if m.archive != nil {
		go func() {
			ctx, cancelArchive := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelArchive()
			if err := m.archive.ArchiveJob(ctx, snapshot); err != nil {
				m.log.Error("failed to archive job", "job_id", snapshot.ID, "error", err)
			}
		}()
	}
}

// Cancel cancels a job. It is idempotent: terminal jobs are a no-op success.
// PENDING jobs leave the queue immediately; RUNNING jobs transition when the
// executor observes the signal at its next suspension point.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	e, ok := m.entries[jobID]
	if !ok {
		m.mu.Unlock()
		return &workflow.NotFoundError{Kind: "job", ID: jobID}
	}

	e.mu.Lock()
	switch {
	case e.job.Status.Terminal():
		e.mu.Unlock()
		m.mu.Unlock()
		return nil

	case e.job.Status == StatusPending:
		m.queue.Remove(jobID)
		m.metrics.QueueLength.Set(float64(m.queue.Len()))
		now := time.Now().UTC()
		e.job.Status = StatusCancelled
		e.job.CompletedAt = &now
		e.job.Error = "cancelled before start"
		snapshot := e.job.Clone()
		e.mu.Unlock()
		m.mu.Unlock()
		m.log.Info("pending job cancelled", "job_id", jobID)
		m.onTerminal(snapshot)
		return nil

	case e.job.Status == StatusPaused:
		now := time.Now().UTC()
		e.job.Status = StatusCancelled
		e.job.CompletedAt = &now
		e.job.Error = "cancelled while paused"
		snapshot := e.job.Clone()
		e.mu.Unlock()
		m.mu.Unlock()
		m.log.Info("paused job cancelled", "job_id", jobID)
		m.onTerminal(snapshot)
		return nil

	default: // RUNNING
		// armJobLocked stored the handle in the same critical section as
		// the transition to RUNNING, so it is always present here
		cancel := e.cancel
		e.mu.Unlock()
		m.mu.Unlock()
		cancel(errJobCancelled)
		m.log.Info("cancellation signalled", "job_id", jobID)
		return nil
	}
}

// Resume continues a PAUSED graph job identified by its checkpoint id. The
// execution runs on the caller's goroutine and does not occupy a worker
// slot.
func (m *Manager) Resume(checkpointID string, humanInput map[string]interface{}) (*Job, error) {
	e := m.findByCheckpoint(checkpointID)
	if e == nil {
		return nil, &workflow.NotFoundError{Kind: "job for checkpoint", ID: checkpointID}
	}

	e.mu.Lock()
	if e.job.Status != StatusPaused {
		status := e.job.Status
		e.mu.Unlock()
		return nil, &workflow.ResumeError{Reason: fmt.Sprintf("job is %s, not PAUSED", status)}
	}
	ctx, cancel, timer := m.armJobLocked(e)
	e.job.Status = StatusRunning
	snapshot := e.job.Clone()
	e.mu.Unlock()
	defer timer.Stop()

	m.log.Info("job resumed", "job_id", snapshot.ID, "checkpoint_id", checkpointID)

	outcome, err := m.resumeFn(ctx, snapshot, humanInput)
	cancel(nil)

	m.finish(e, ctx, outcome, err, false)

	return m.GetStatus(snapshot.ID)
}

func (m *Manager) findByCheckpoint(checkpointID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		e.mu.Lock()
		match := e.job.CheckpointID == checkpointID
		e.mu.Unlock()
		if match {
			return e
		}
	}
	return nil
}

// GetStatus returns a copy of a job
func (m *Manager) GetStatus(jobID string) (*Job, error) {
	m.mu.Lock()
	e, ok := m.entries[jobID]
	m.mu.Unlock()
	if !ok {
		return nil, &workflow.NotFoundError{Kind: "job", ID: jobID}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

// ListFilter narrows List results; zero values match everything
type ListFilter struct {
	Status       Status
	WorkflowID   string
	WorkflowType WorkflowType
	Limit        int
}

// List returns job copies matching the filter, newest first
func (m *Manager) List(filter ListFilter) []*Job {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.entries))
	for _, e := range m.entries {
		e.mu.Lock()
		jobs = append(jobs, e.job.Clone())
		e.mu.Unlock()
	}
	m.mu.Unlock()

	filtered := jobs[:0]
	for _, j := range jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.WorkflowID != "" && j.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.WorkflowType != "" && j.WorkflowType != filter.WorkflowType {
			continue
		}
		filtered = append(filtered, j)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if filter.Limit > 0 && len(filtered) > filter.Limit {
		filtered = filtered[:filter.Limit]
	}
	return filtered
}

// Delete removes a job from the table. RUNNING jobs are rejected; PENDING
// jobs leave the queue as well.
func (m *Manager) Delete(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[jobID]
	if !ok {
		return &workflow.NotFoundError{Kind: "job", ID: jobID}
	}

	e.mu.Lock()
	status := e.job.Status
	e.mu.Unlock()

	if status == StatusRunning {
		return workflow.NewValidationError("cannot delete a running job: %s", jobID)
	}

	if status == StatusPending {
		m.queue.Remove(jobID)
		m.metrics.QueueLength.Set(float64(m.queue.Len()))
	}
	delete(m.entries, jobID)
	return nil
}

// QueueStats describes the scheduler's current occupancy
type QueueStats struct {
	Length        int `json:"length"`
	Running       int `json:"running"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Stats aggregates job counts and queue occupancy
type Stats struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	Queue          QueueStats     `json:"queue"`
	ByWorkflowType map[string]int `json:"by_workflow_type"`
}

// GetStats returns a consistent snapshot of job statistics
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		ByStatus:       make(map[string]int),
		ByWorkflowType: make(map[string]int),
		Queue: QueueStats{
			Length:        m.queue.Len(),
			Running:       m.running,
			MaxConcurrent: m.cfg.MaxConcurrent,
		},
	}

	for _, e := range m.entries {
		e.mu.Lock()
		stats.Total++
		stats.ByStatus[string(e.job.Status)]++
		stats.ByWorkflowType[string(e.job.WorkflowType)]++
		e.mu.Unlock()
	}

	return stats
}
