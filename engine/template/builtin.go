package template

import (
	"github.com/docuflow/engine/engine/workflow"
)

// Builtins returns the templates shipped with the engine. They cover the
// document processing pipelines of the surrounding stack; the engine itself
// stays ignorant of what the task types do.
func Builtins() []*workflow.Template {
	return []*workflow.Template{
		pdfPipeline(),
		ocrPipeline(),
		semanticIndexing(),
		summarizationChain(),
	}
}

// pdfPipeline extracts text from a PDF, chunks it and exports the chunks
func pdfPipeline() *workflow.Template {
	return &workflow.Template{
		TemplateID: "pdf-pipeline",
		Name:       "PDF Processing Pipeline",
		Category:   "document",
		Version:    "1.0",
		Parameters: map[string]workflow.ParameterSpec{
			"source": {
				Type:        "string",
				Required:    true,
				Description: "Path or URL of the PDF to process",
			},
			"chunk_size": {
				Type:        "number",
				Default:     float64(1000),
				Description: "Target chunk size in tokens",
			},
			"parallel": {
				Type:    "boolean",
				Default: false,
			},
		},
		Render: func(params map[string]interface{}) *workflow.Definition {
			return &workflow.Definition{
				WorkflowID: "pdf-pipeline",
				Name:       "PDF Processing Pipeline",
				Version:    "1.0",
				Tasks: []workflow.TaskDefinition{
					{
						ID:   "extract",
						Type: "pdf_extract",
						Inputs: map[string]interface{}{
							"source": str(params, "source", ""),
						},
					},
					{
						ID:   "chunk",
						Type: "chunk",
						Inputs: map[string]interface{}{
							"content":    "{{extract.text}}",
							"chunk_size": num(params, "chunk_size", 1000),
						},
						DependsOn: []string{"extract"},
					},
					{
						ID:   "export",
						Type: "export",
						Inputs: map[string]interface{}{
							"chunks": "{{chunk.chunks}}",
							"format": "json",
						},
						DependsOn: []string{"chunk"},
					},
				},
				Output: map[string]string{
					"chunks":   "{{chunk.chunks}}",
					"exported": "{{export.location}}",
				},
				Options: workflow.Options{
					Parallel: boolean(params, "parallel", false),
				},
			}
		},
	}
}

// ocrPipeline runs OCR over a scanned document before chunking
func ocrPipeline() *workflow.Template {
	return &workflow.Template{
		TemplateID: "ocr-pipeline",
		Name:       "OCR Processing Pipeline",
		Category:   "document",
		Version:    "1.0",
		Parameters: map[string]workflow.ParameterSpec{
			"source": {
				Type:        "string",
				Required:    true,
				Description: "Path or URL of the scanned document",
			},
			"language": {
				Type:    "string",
				Default: "en",
			},
			"retry": {
				Type:        "number",
				Default:     float64(2),
				Description: "Retries for the OCR call",
			},
		},
		Render: func(params map[string]interface{}) *workflow.Definition {
			return &workflow.Definition{
				WorkflowID: "ocr-pipeline",
				Name:       "OCR Processing Pipeline",
				Version:    "1.0",
				Tasks: []workflow.TaskDefinition{
					{
						ID:   "ocr",
						Type: "ocr",
						Inputs: map[string]interface{}{
							"source":   str(params, "source", ""),
							"language": str(params, "language", "en"),
						},
						Retry: int(num(params, "retry", 2)),
					},
					{
						ID:   "chunk",
						Type: "chunk",
						Inputs: map[string]interface{}{
							"content": "{{ocr.text}}",
						},
						DependsOn: []string{"ocr"},
					},
				},
				Output: map[string]string{
					"text":   "{{ocr.text}}",
					"chunks": "{{chunk.chunks}}",
				},
			}
		},
	}
}

// semanticIndexing chunks a document and embeds the chunks for search
func semanticIndexing() *workflow.Template {
	return &workflow.Template{
		TemplateID: "semantic-indexing",
		Name:       "Semantic Search Indexing",
		Category:   "search",
		Version:    "1.0",
		Parameters: map[string]workflow.ParameterSpec{
			"document_id": {
				Type:     "string",
				Required: true,
			},
			"embedding_model": {
				Type:    "string",
				Default: "text-embedding-3-small",
			},
		},
		Render: func(params map[string]interface{}) *workflow.Definition {
			return &workflow.Definition{
				WorkflowID: "semantic-indexing",
				Name:       "Semantic Search Indexing",
				Version:    "1.0",
				Tasks: []workflow.TaskDefinition{
					{
						ID:   "load",
						Type: "load_document",
						Inputs: map[string]interface{}{
							"document_id": "{{workflow.input.document_id}}",
						},
					},
					{
						ID:   "chunk",
						Type: "chunk",
						Inputs: map[string]interface{}{
							"content": "{{load.text}}",
						},
						DependsOn: []string{"load"},
					},
					{
						ID:   "embed",
						Type: "embed",
						Inputs: map[string]interface{}{
							"chunks": "{{chunk.chunks}}",
							"model":  str(params, "embedding_model", "text-embedding-3-small"),
						},
						DependsOn: []string{"chunk"},
					},
					{
						ID:   "index",
						Type: "vector_upsert",
						Inputs: map[string]interface{}{
							"vectors":     "{{embed.vectors}}",
							"document_id": "{{workflow.input.document_id}}",
						},
						DependsOn: []string{"embed"},
					},
				},
				Output: map[string]string{
					"indexed_count": "{{index.count}}",
				},
			}
		},
	}
}

// summarizationChain extracts, summarizes per section in parallel, then
// merges the partial summaries
func summarizationChain() *workflow.Template {
	return &workflow.Template{
		TemplateID: "summarization-chain",
		Name:       "Document Summarization Chain",
		Category:   "llm",
		Version:    "1.0",
		Parameters: map[string]workflow.ParameterSpec{
			"source": {
				Type:     "string",
				Required: true,
			},
			"model": {
				Type:    "string",
				Default: "gpt-4o-mini",
			},
			"max_retries": {
				Type:    "number",
				Default: float64(1),
			},
		},
		Render: func(params map[string]interface{}) *workflow.Definition {
			model := str(params, "model", "gpt-4o-mini")
			return &workflow.Definition{
				WorkflowID: "summarization-chain",
				Name:       "Document Summarization Chain",
				Version:    "1.0",
				Tasks: []workflow.TaskDefinition{
					{
						ID:   "extract",
						Type: "pdf_extract",
						Inputs: map[string]interface{}{
							"source": str(params, "source", ""),
						},
					},
					{
						ID:   "split",
						Type: "section_split",
						Inputs: map[string]interface{}{
							"content": "{{extract.text}}",
						},
						DependsOn: []string{"extract"},
					},
					{
						ID:   "summarize",
						Type: "llm_summarize",
						Inputs: map[string]interface{}{
							"sections": "{{split.sections}}",
							"model":    model,
						},
						DependsOn: []string{"split"},
					},
					{
						ID:   "merge",
						Type: "llm_merge",
						Inputs: map[string]interface{}{
							"summaries": "{{summarize.summaries}}",
							"model":     model,
						},
						DependsOn: []string{"summarize"},
					},
				},
				Output: map[string]string{
					"summary": "{{merge.summary}}",
				},
				Options: workflow.Options{
					Parallel:   true,
					MaxRetries: int(num(params, "max_retries", 1)),
				},
			}
		},
	}
}
