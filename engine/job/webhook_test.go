package job

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/common/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func testDispatcher(t *testing.T) *WebhookDispatcher {
	t.Helper()
	return NewWebhookDispatcher(
		2*time.Second,
		3,
		[]time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 15 * time.Millisecond},
		logger.New("error", "text"),
		metrics.New(prometheus.NewRegistry()),
	)
}

func terminalJob(status Status, webhookURL string) *Job {
	created := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Second)
	completed := started.Add(2 * time.Second)
	j := &Job{
		ID:              "job-123",
		WorkflowID:      "pdf-pipeline",
		Status:          status,
		CreatedAt:       created,
		StartedAt:       &started,
		CompletedAt:     &completed,
		ExecutionTimeMS: 2000,
		Webhook:         &WebhookSpec{URL: webhookURL},
	}
	if status == StatusCompleted {
		j.Result = map[string]interface{}{"chunks": float64(12)}
	} else {
		j.Error = "task extract failed: boom"
	}
	return j
}

func TestDeliver_SuccessPayload(t *testing.T) {
	var mu sync.Mutex
	var received map[string]interface{}
	var contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		contentType = r.Header.Get("Content-Type")
		json.Unmarshal(body, &received)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	j := terminalJob(StatusCompleted, srv.URL)
	testDispatcher(t).Deliver(context.Background(), j)

	mu.Lock()
	defer mu.Unlock()

	if received == nil {
		t.Fatal("webhook never arrived")
	}
	if contentType != "application/json" {
		t.Errorf("unexpected content type: %s", contentType)
	}
	if received["jobId"] != "job-123" {
		t.Errorf("unexpected jobId: %v", received["jobId"])
	}
	if received["workflowId"] != "pdf-pipeline" {
		t.Errorf("unexpected workflowId: %v", received["workflowId"])
	}
	if received["status"] != "COMPLETED" {
		t.Errorf("unexpected status: %v", received["status"])
	}
	if _, hasError := received["error"]; hasError {
		t.Error("successful payload must not carry an error field")
	}

	metadata, ok := received["metadata"].(map[string]interface{})
	if !ok {
		t.Fatal("missing metadata")
	}
	if metadata["createdAt"] != "2026-01-15T10:00:00Z" {
		t.Errorf("unexpected createdAt: %v", metadata["createdAt"])
	}
	if metadata["executionTime"] != float64(2000) {
		t.Errorf("unexpected executionTime: %v", metadata["executionTime"])
	}
}

func TestDeliver_FailurePayloadOmitsResult(t *testing.T) {
	var mu sync.Mutex
	var received map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		json.Unmarshal(body, &received)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	j := terminalJob(StatusFailed, srv.URL)
	testDispatcher(t).Deliver(context.Background(), j)

	mu.Lock()
	defer mu.Unlock()

	if received["status"] != "FAILED" {
		t.Errorf("unexpected status: %v", received["status"])
	}
	if received["error"] != "task extract failed: boom" {
		t.Errorf("unexpected error: %v", received["error"])
	}
	if _, hasResult := received["result"]; hasResult {
		t.Error("failure payload must not carry a result field")
	}
}

func TestDeliver_RetriesUntilSuccess(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	testDispatcher(t).Deliver(context.Background(), terminalJob(StatusCompleted, srv.URL))

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDeliver_PermanentRejectionStopsRetrying(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	testDispatcher(t).Deliver(context.Background(), terminalJob(StatusCompleted, srv.URL))

	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("4xx should stop delivery, got %d attempts", attempts)
	}
}

func TestDeliver_RateLimitIsRetried(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	testDispatcher(t).Deliver(context.Background(), terminalJob(StatusCompleted, srv.URL))

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("429 should be retried, got %d attempts", attempts)
	}
}

func TestDeliver_ExhaustsAttempts(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	testDispatcher(t).Deliver(context.Background(), terminalJob(StatusCompleted, srv.URL))

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("expected exactly maxAttempts deliveries, got %d", attempts)
	}
}

func TestDeliver_CustomHeadersAndMethod(t *testing.T) {
	var mu sync.Mutex
	var method, auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method = r.Method
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	j := terminalJob(StatusCompleted, srv.URL)
	j.Webhook.Method = http.MethodPut
	j.Webhook.Headers = map[string]string{"Authorization": "Bearer tok"}

	testDispatcher(t).Deliver(context.Background(), j)

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("expected PUT, got %s", method)
	}
	if auth != "Bearer tok" {
		t.Errorf("custom header not forwarded: %q", auth)
	}
}
