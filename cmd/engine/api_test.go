package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/engine/common/config"
	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/engine"
	"github.com/labstack/echo/v4"
)

// apiEnv hosts an in-process API backed by a stub task executor
type apiEnv struct {
	echo *echo.Echo
	eng  *engine.Engine
}

// stubExecutor serves canned outputs by task type
type stubExecutor struct {
	outputs map[string]map[string]interface{}
}

func (s *stubExecutor) ExecuteTask(ctx context.Context, taskType string, inputs map[string]interface{}) (map[string]interface{}, error) {
	out, ok := s.outputs[taskType]
	if !ok {
		return nil, fmt.Errorf("unknown task type: %s", taskType)
	}
	return out, nil
}

func setupAPI(t *testing.T, outputs map[string]map[string]interface{}) *apiEnv {
	t.Helper()

	cfg := &config.Config{
		Engine: config.EngineConfig{
			MaxConcurrent:      2,
			DefaultJobTimeout:  5 * time.Second,
			GraphMaxIterations: 50,
		},
		Webhook: config.WebhookConfig{
			Timeout:     time.Second,
			MaxAttempts: 1,
			RetryDelays: []time.Duration{time.Millisecond},
		},
		Redis: config.RedisConfig{CheckpointTTL: time.Minute},
	}
	log := logger.New("error", "text")

	eng := engine.New(cfg, &stubExecutor{outputs: outputs}, log,
		engine.WithRegisterer(prometheus.NewRegistry()))
	eng.Start(context.Background())
	t.Cleanup(eng.Close)

	e := setupEcho()
	setupHealthCheck(e)
	registerRoutes(e, eng, log)

	return &apiEnv{echo: e, eng: eng}
}

// request performs an in-process API call and decodes the JSON response
func (env *apiEnv) request(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}

func pipelineBody() map[string]interface{} {
	return map[string]interface{}{
		"workflow_id": "pipeline",
		"definition": map[string]interface{}{
			"workflow_id": "pipeline",
			"name":        "extract then index",
			"tasks": []map[string]interface{}{
				{
					"id":     "extract",
					"type":   "pdf_extract",
					"inputs": map[string]interface{}{"source": "{{workflow.input.source}}"},
				},
				{
					"id":         "index",
					"type":       "index_chunks",
					"inputs":     map[string]interface{}{"text": "{{extract.text}}"},
					"depends_on": []string{"extract"},
				},
			},
			"output": map[string]string{"indexed": "{{index.count}}"},
		},
	}
}

func pipelineOutputs() map[string]map[string]interface{} {
	return map[string]map[string]interface{}{
		"pdf_extract":  {"text": "hello"},
		"index_chunks": {"count": float64(7)},
	}
}

func TestAPI_Health(t *testing.T) {
	env := setupAPI(t, nil)

	code, body := env.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_WorkflowRegistry(t *testing.T) {
	env := setupAPI(t, nil)

	code, body := env.request(t, http.MethodPost, "/api/v1/workflows", pipelineBody())
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "pipeline", body["workflow_id"])

	code, body = env.request(t, http.MethodGet, "/api/v1/workflows/pipeline", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "extract then index", body["name"])

	code, body = env.request(t, http.MethodGet, "/api/v1/workflows", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["workflows"], 1)

	code, _ = env.request(t, http.MethodGet, "/api/v1/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.request(t, http.MethodDelete, "/api/v1/workflows/pipeline", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = env.request(t, http.MethodGet, "/api/v1/workflows/pipeline", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_RegisterInvalidWorkflow(t *testing.T) {
	env := setupAPI(t, nil)

	body := pipelineBody()
	def := body["definition"].(map[string]interface{})
	tasks := def["tasks"].([]map[string]interface{})
	tasks[1]["depends_on"] = []string{"missing"}

	code, resp := env.request(t, http.MethodPost, "/api/v1/workflows", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp["error"], "missing")
}

func TestAPI_ValidateEndpoint(t *testing.T) {
	env := setupAPI(t, nil)

	def := pipelineBody()["definition"].(map[string]interface{})
	code, resp := env.request(t, http.MethodPost, "/api/v1/workflows/validate", def)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["valid"])

	def["tasks"] = []map[string]interface{}{}
	code, resp = env.request(t, http.MethodPost, "/api/v1/workflows/validate", def)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp["valid"])
	assert.NotEmpty(t, resp["error"])
}

func TestAPI_ExecuteSync(t *testing.T) {
	env := setupAPI(t, pipelineOutputs())

	code, _ := env.request(t, http.MethodPost, "/api/v1/workflows", pipelineBody())
	require.Equal(t, http.StatusCreated, code)

	code, resp := env.request(t, http.MethodPost, "/api/v1/execute", map[string]interface{}{
		"workflow_id": "pipeline",
		"inputs":      map[string]interface{}{"source": "a.pdf"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["success"])

	result := resp["result"].(map[string]interface{})
	assert.Equal(t, float64(7), result["indexed"])
}

func TestAPI_ExecuteUnknownWorkflow(t *testing.T) {
	env := setupAPI(t, nil)

	code, resp := env.request(t, http.MethodPost, "/api/v1/execute", map[string]interface{}{
		"workflow_id": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, resp["error"], "ghost")
}

func TestAPI_ExecuteAsyncAndPoll(t *testing.T) {
	env := setupAPI(t, pipelineOutputs())

	code, _ := env.request(t, http.MethodPost, "/api/v1/workflows", pipelineBody())
	require.Equal(t, http.StatusCreated, code)

	code, resp := env.request(t, http.MethodPost, "/api/v1/execute/async", map[string]interface{}{
		"workflow_id": "pipeline",
		"inputs":      map[string]interface{}{"source": "a.pdf"},
		"priority":    "high",
	})
	require.Equal(t, http.StatusAccepted, code)
	jobID, _ := resp["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "PENDING", resp["status"])

	j := env.awaitJob(t, jobID, "COMPLETED")
	result := j["result"].(map[string]interface{})
	assert.Equal(t, float64(7), result["indexed"])

	code, stats := env.request(t, http.MethodGet, "/api/v1/jobs/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), stats["total"])
}

func TestAPI_InlineDefinitionSubmission(t *testing.T) {
	env := setupAPI(t, pipelineOutputs())

	code, resp := env.request(t, http.MethodPost, "/api/v1/execute/async", map[string]interface{}{
		"definition": pipelineBody()["definition"],
		"inputs":     map[string]interface{}{"source": "a.pdf"},
	})
	require.Equal(t, http.StatusAccepted, code)

	jobID := resp["job_id"].(string)
	env.awaitJob(t, jobID, "COMPLETED")

	// Inline definitions are registered under their workflow id
	code, _ = env.request(t, http.MethodGet, "/api/v1/workflows/pipeline", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAPI_GraphPauseAndResume(t *testing.T) {
	env := setupAPI(t, map[string]map[string]interface{}{
		"publish_fn": {"published": true},
	})

	graph := map[string]interface{}{
		"graph_id": "approval",
		"definition": map[string]interface{}{
			"graph_id":    "approval",
			"name":        "human approval",
			"entry_point": "prepare",
			"nodes": []map[string]interface{}{
				{"id": "prepare", "type": "passthrough"},
				{"id": "review", "type": "human", "prompt_message": "Approve the draft?"},
				{"id": "route", "type": "conditional", "condition": `state.approved ? "publish" : "END"`},
				{"id": "publish", "type": "tool", "function_name": "publish_fn"},
			},
			"edges": []map[string]interface{}{
				{"from_node": "prepare", "to_node": "review"},
				{"from_node": "review", "to_node": "route"},
				{"from_node": "route", "branches": map[string]string{"publish": "publish", "END": "END"}},
				{"from_node": "publish", "to_node": "END"},
			},
		},
	}

	code, _ := env.request(t, http.MethodPost, "/api/v1/graphs", graph)
	require.Equal(t, http.StatusCreated, code)

	code, resp := env.request(t, http.MethodPost, "/api/v1/execute", map[string]interface{}{
		"workflow_id": "approval",
		"inputs":      map[string]interface{}{"draft": "v1"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp["success"])

	result := resp["result"].(map[string]interface{})
	require.Equal(t, true, result["requires_human_input"])
	assert.Equal(t, "Approve the draft?", result["human_prompt"])
	checkpointID := result["checkpoint_id"].(string)
	require.NotEmpty(t, checkpointID)

	code, resp = env.request(t, http.MethodPost, "/api/v1/graphs/approval/resume", map[string]interface{}{
		"checkpoint_id": checkpointID,
		"human_input":   map[string]interface{}{"approved": true},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["success"])

	resumed := resp["result"].(map[string]interface{})
	assert.Contains(t, resumed, "publish_result")
}

func TestAPI_ResumeUnknownCheckpoint(t *testing.T) {
	env := setupAPI(t, nil)

	code, _ := env.request(t, http.MethodPost, "/api/v1/graphs/ghost/resume", map[string]interface{}{
		"checkpoint_id": "nope",
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_Templates(t *testing.T) {
	env := setupAPI(t, nil)

	code, resp := env.request(t, http.MethodGet, "/api/v1/templates", nil)
	require.Equal(t, http.StatusOK, code)
	templates := resp["templates"].([]interface{})
	assert.GreaterOrEqual(t, len(templates), 4)

	code, resp = env.request(t, http.MethodGet, "/api/v1/templates/categories", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, resp["categories"], "document")

	code, resp = env.request(t, http.MethodGet, "/api/v1/templates/pdf-pipeline", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pdf-pipeline", resp["template_id"])

	code, resp = env.request(t, http.MethodPost, "/api/v1/templates/pdf-pipeline/instantiate", map[string]interface{}{
		"parameters": map[string]interface{}{"source": "a.pdf", "chunk_size": 500},
	})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp["tasks"])

	// Missing required parameter surfaces as a validation error
	code, resp = env.request(t, http.MethodPost, "/api/v1/templates/pdf-pipeline/instantiate", map[string]interface{}{
		"parameters": map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp["error"], "source")
}

func TestAPI_JobCancelAndDelete(t *testing.T) {
	env := setupAPI(t, pipelineOutputs())

	code, _ := env.request(t, http.MethodPost, "/api/v1/workflows", pipelineBody())
	require.Equal(t, http.StatusCreated, code)

	code, resp := env.request(t, http.MethodPost, "/api/v1/execute/async", map[string]interface{}{
		"workflow_id": "pipeline",
		"inputs":      map[string]interface{}{"source": "a.pdf"},
	})
	require.Equal(t, http.StatusAccepted, code)
	jobID := resp["job_id"].(string)

	env.awaitJob(t, jobID, "COMPLETED")

	// Cancelling a terminal job is an idempotent no-op
	code, _ = env.request(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.request(t, http.MethodDelete, "/api/v1/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = env.request(t, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_ListJobsBadLimit(t *testing.T) {
	env := setupAPI(t, nil)

	code, resp := env.request(t, http.MethodGet, "/api/v1/jobs?limit=banana", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp["error"], "limit")
}

// awaitJob polls the job endpoint until the wanted status appears
func (env *apiEnv) awaitJob(t *testing.T, jobID, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last map[string]interface{}
	for time.Now().Before(deadline) {
		code, j := env.request(t, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
		require.Equal(t, http.StatusOK, code)
		if j["status"] == want {
			return j
		}
		last = j
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s, last %v", jobID, want, last)
	return nil
}
