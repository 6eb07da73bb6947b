// Package template holds parameterized workflow templates and renders them
// into concrete, validated workflow definitions.
package template

import (
	"sort"
	"sync"

	"github.com/docuflow/engine/engine/validation"
	"github.com/docuflow/engine/engine/workflow"
)

// Registry maps template ids to templates. Reads take snapshots; writes are
// guarded by a write lock.
type Registry struct {
	templates map[string]*workflow.Template
	mu        sync.RWMutex
}

// NewRegistry creates an empty template registry
func NewRegistry() *Registry {
	return &Registry{
		templates: make(map[string]*workflow.Template),
	}
}

// NewRegistryWithBuiltins creates a registry pre-populated with the built-in
// document processing templates
func NewRegistryWithBuiltins() *Registry {
	r := NewRegistry()
	for _, tpl := range Builtins() {
		r.Register(tpl)
	}
	return r
}

// Register adds or replaces a template
func (r *Registry) Register(tpl *workflow.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tpl.TemplateID] = tpl
}

// Get returns a template by id
func (r *Registry) Get(templateID string) (*workflow.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, exists := r.templates[templateID]
	if !exists {
		return nil, &workflow.NotFoundError{Kind: "template", ID: templateID}
	}
	return tpl, nil
}

// List returns template infos, optionally filtered by category, sorted by id
func (r *Registry) List(category string) []workflow.TemplateInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]workflow.TemplateInfo, 0, len(r.templates))
	for _, tpl := range r.templates {
		if category != "" && tpl.Category != category {
			continue
		}
		infos = append(infos, workflow.TemplateInfo{
			TemplateID: tpl.TemplateID,
			Name:       tpl.Name,
			Category:   tpl.Category,
			Version:    tpl.Version,
			Parameters: tpl.Parameters,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].TemplateID < infos[j].TemplateID
	})
	return infos
}

// Categories returns the distinct categories across all templates, sorted
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, tpl := range r.templates {
		seen[tpl.Category] = true
	}

	categories := make([]string, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// Instantiate applies defaults, type-checks parameters, renders the template
// and validates the rendered definition before returning it
func (r *Registry) Instantiate(templateID string, params map[string]interface{}) (*workflow.Definition, error) {
	tpl, err := r.Get(templateID)
	if err != nil {
		return nil, err
	}

	merged, err := applyParameters(tpl, params)
	if err != nil {
		return nil, err
	}

	def := tpl.Render(merged)

	if res := validation.ValidateWorkflow(def); !res.Valid {
		return nil, workflow.NewValidationError("template %s rendered an invalid definition: %s", templateID, res.Error)
	}

	return def, nil
}

// applyParameters fills schema defaults and verifies required parameters
// and parameter types
func applyParameters(tpl *workflow.Template, params map[string]interface{}) (map[string]interface{}, error) {
	merged := make(map[string]interface{}, len(tpl.Parameters))

	for name, spec := range tpl.Parameters {
		value, provided := params[name]
		if !provided {
			if spec.Default != nil {
				merged[name] = spec.Default
				continue
			}
			if spec.Required {
				return nil, workflow.NewValidationError("missing required parameter: %s", name)
			}
			continue
		}

		if !typeMatches(spec.Type, value) {
			return nil, workflow.NewValidationError("parameter %s: expected %s, got %T", name, spec.Type, value)
		}
		merged[name] = value
	}

	// Unknown parameters pass through untouched; templates may accept
	// open-ended options
	for name, value := range params {
		if _, declared := tpl.Parameters[name]; !declared {
			merged[name] = value
		}
	}

	return merged, nil
}

func typeMatches(declared string, value interface{}) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "":
		return true
	default:
		// Unknown declared types are accepted rather than rejected
		return true
	}
}

// String formatting helper used by builtin renderers
func str(params map[string]interface{}, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func num(params map[string]interface{}, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

func boolean(params map[string]interface{}, key string, fallback bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}
