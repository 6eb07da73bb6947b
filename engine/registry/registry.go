// Package registry holds the process-global tables of custom workflow and
// graph definitions. Reads are snapshots; register/delete take a write lock.
package registry

import (
	"sort"
	"sync"

	"github.com/docuflow/engine/engine/workflow"
)

// WorkflowRegistry maps workflow ids to custom DAG definitions
type WorkflowRegistry struct {
	defs map[string]*workflow.Definition
	mu   sync.RWMutex
}

// NewWorkflowRegistry creates an empty workflow registry
func NewWorkflowRegistry() *WorkflowRegistry {
	return &WorkflowRegistry{
		defs: make(map[string]*workflow.Definition),
	}
}

// Register adds or replaces a definition under the given id
func (r *WorkflowRegistry) Register(workflowID string, def *workflow.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def.WorkflowID = workflowID
	r.defs[workflowID] = def
}

// Get returns a definition by id
func (r *WorkflowRegistry) Get(workflowID string) (*workflow.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.defs[workflowID]
	if !exists {
		return nil, &workflow.NotFoundError{Kind: "workflow", ID: workflowID}
	}
	return def, nil
}

// List returns all registered definitions sorted by id
func (r *WorkflowRegistry) List() []*workflow.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*workflow.Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].WorkflowID < defs[j].WorkflowID
	})
	return defs
}

// Delete removes a definition
func (r *WorkflowRegistry) Delete(workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[workflowID]; !exists {
		return &workflow.NotFoundError{Kind: "workflow", ID: workflowID}
	}
	delete(r.defs, workflowID)
	return nil
}

// GraphRegistry maps graph ids to graph definitions
type GraphRegistry struct {
	defs map[string]*workflow.GraphDefinition
	mu   sync.RWMutex
}

// NewGraphRegistry creates an empty graph registry
func NewGraphRegistry() *GraphRegistry {
	return &GraphRegistry{
		defs: make(map[string]*workflow.GraphDefinition),
	}
}

// Register adds or replaces a graph under the given id
func (r *GraphRegistry) Register(graphID string, def *workflow.GraphDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def.GraphID = graphID
	r.defs[graphID] = def
}

// Get returns a graph by id
func (r *GraphRegistry) Get(graphID string) (*workflow.GraphDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.defs[graphID]
	if !exists {
		return nil, &workflow.NotFoundError{Kind: "graph", ID: graphID}
	}
	return def, nil
}

// List returns all registered graphs sorted by id
func (r *GraphRegistry) List() []*workflow.GraphDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*workflow.GraphDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].GraphID < defs[j].GraphID
	})
	return defs
}

// Delete removes a graph
func (r *GraphRegistry) Delete(graphID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[graphID]; !exists {
		return &workflow.NotFoundError{Kind: "graph", ID: graphID}
	}
	delete(r.defs, graphID)
	return nil
}
