package template

import (
	"strings"
	"testing"

	"github.com/docuflow/engine/engine/workflow"
)

func TestBuiltins_AllRenderValid(t *testing.T) {
	r := NewRegistryWithBuiltins()

	for _, info := range r.List("") {
		params := map[string]interface{}{}
		// Satisfy required string parameters with placeholders
		for name, spec := range info.Parameters {
			if spec.Required {
				params[name] = "placeholder"
			}
		}

		def, err := r.Instantiate(info.TemplateID, params)
		if err != nil {
			t.Errorf("template %s failed to instantiate: %v", info.TemplateID, err)
			continue
		}
		if len(def.Tasks) == 0 {
			t.Errorf("template %s rendered no tasks", info.TemplateID)
		}
	}
}

func TestList_FilterByCategory(t *testing.T) {
	r := NewRegistryWithBuiltins()

	docs := r.List("document")
	if len(docs) != 2 {
		t.Fatalf("expected 2 document templates, got %d", len(docs))
	}
	for _, info := range docs {
		if info.Category != "document" {
			t.Errorf("template %s has category %s", info.TemplateID, info.Category)
		}
	}

	if got := r.List("nonexistent"); len(got) != 0 {
		t.Errorf("expected no templates for unknown category, got %d", len(got))
	}
}

func TestCategories(t *testing.T) {
	r := NewRegistryWithBuiltins()

	categories := r.Categories()
	want := []string{"document", "llm", "search"}
	if len(categories) != len(want) {
		t.Fatalf("expected %v, got %v", want, categories)
	}
	for i, c := range want {
		if categories[i] != c {
			t.Errorf("expected categories %v, got %v", want, categories)
			break
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	r := NewRegistryWithBuiltins()

	_, err := r.Get("no-such-template")
	if err == nil {
		t.Fatal("expected error")
	}
	if !workflow.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %T", err)
	}
}

func TestInstantiate_MissingRequiredParameter(t *testing.T) {
	r := NewRegistryWithBuiltins()

	_, err := r.Instantiate("pdf-pipeline", map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !workflow.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "missing required parameter: source") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInstantiate_TypeMismatch(t *testing.T) {
	r := NewRegistryWithBuiltins()

	_, err := r.Instantiate("pdf-pipeline", map[string]interface{}{
		"source":     "doc.pdf",
		"chunk_size": "big",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !workflow.IsValidation(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestInstantiate_DefaultsApplied(t *testing.T) {
	r := NewRegistryWithBuiltins()

	def, err := r.Instantiate("pdf-pipeline", map[string]interface{}{
		"source": "doc.pdf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunk := def.TaskByID("chunk")
	if chunk == nil {
		t.Fatal("rendered definition is missing the chunk task")
	}
	if chunk.Inputs["chunk_size"] != float64(1000) {
		t.Errorf("expected default chunk_size 1000, got %v", chunk.Inputs["chunk_size"])
	}
}

func TestInstantiate_ParameterOverride(t *testing.T) {
	r := NewRegistryWithBuiltins()

	def, err := r.Instantiate("pdf-pipeline", map[string]interface{}{
		"source":     "doc.pdf",
		"chunk_size": float64(500),
		"parallel":   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunk := def.TaskByID("chunk")
	if chunk.Inputs["chunk_size"] != float64(500) {
		t.Errorf("expected chunk_size 500, got %v", chunk.Inputs["chunk_size"])
	}
	if !def.Options.Parallel {
		t.Error("expected parallel option to be set")
	}
}

// Unknown parameters pass through to the renderer untouched
func TestInstantiate_UnknownParametersAccepted(t *testing.T) {
	r := NewRegistryWithBuiltins()

	_, err := r.Instantiate("pdf-pipeline", map[string]interface{}{
		"source": "doc.pdf",
		"extra":  "anything",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// A template whose renderer produces a broken definition is rejected at
// instantiation time
func TestInstantiate_InvalidRenderRejected(t *testing.T) {
	r := NewRegistry()
	r.Register(&workflow.Template{
		TemplateID: "broken",
		Name:       "Broken",
		Category:   "test",
		Version:    "1.0",
		Parameters: map[string]workflow.ParameterSpec{},
		Render: func(params map[string]interface{}) *workflow.Definition {
			return &workflow.Definition{
				Name: "broken",
				Tasks: []workflow.TaskDefinition{
					{ID: "a", Type: "noop", DependsOn: []string{"ghost"}},
				},
			}
		},
	})

	_, err := r.Instantiate("broken", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !workflow.IsValidation(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}
