package job

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/docuflow/engine/common/logger"
	"github.com/docuflow/engine/common/metrics"
)

// webhookPayload is the wire format delivered on terminal transitions.
// result and error are mutually exclusive.
type webhookPayload struct {
	JobID      string                 `json:"jobId"`
	WorkflowID string                 `json:"workflowId"`
	Status     string                 `json:"status"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Metadata   webhookMetadata        `json:"metadata"`
}

type webhookMetadata struct {
	CreatedAt     string `json:"createdAt"`
	StartedAt     string `json:"startedAt,omitempty"`
	CompletedAt   string `json:"completedAt,omitempty"`
	ExecutionTime int64  `json:"executionTime"`
}

// WebhookDispatcher delivers terminal-state callbacks with bounded
// exponential retry. Delivery is at-least-once and fire-and-forget from the
// Manager's perspective; it never changes a job's status.
type WebhookDispatcher struct {
	client      *http.Client
	delays      []time.Duration
	maxAttempts int
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// NewWebhookDispatcher creates a dispatcher. delays[i] is the wait before
// retry i+1; the canonical schedule is {10s, 30s, 60s}.
func NewWebhookDispatcher(timeout time.Duration, maxAttempts int, delays []time.Duration, log *logger.Logger, m *metrics.Metrics) *WebhookDispatcher {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if len(delays) == 0 {
		delays = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}
	}
	return &WebhookDispatcher{
		client:      &http.Client{Timeout: timeout},
		delays:      delays,
		maxAttempts: maxAttempts,
		log:         log,
		metrics:     m,
	}
}

// Deliver sends the terminal payload for a job. It blocks through the retry
// schedule and is intended to run on its own goroutine.
func (d *WebhookDispatcher) Deliver(ctx context.Context, j *Job) {
	if j.Webhook == nil {
		return
	}

	payload := buildPayload(j)
	body, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("failed to marshal webhook payload", "job_id", j.ID, "error", err)
		return
	}

	method := j.Webhook.Method
	if method != http.MethodPut {
		method = http.MethodPost
	}

	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := d.delays[min(attempt-1, len(d.delays)-1)]
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		status, err := d.send(ctx, method, j.Webhook, body)
		if err == nil && status >= 200 && status < 300 {
			d.metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			d.log.Info("webhook delivered", "job_id", j.ID, "url", j.Webhook.URL, "attempt", attempt+1)
			return
		}

		// Client errors other than timeout/rate-limit are permanent
		if err == nil && status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
			d.metrics.WebhookDeliveries.WithLabelValues("rejected").Inc()
			d.log.Error("webhook rejected permanently", "job_id", j.ID, "url", j.Webhook.URL, "status", status)
			return
		}

		d.metrics.WebhookDeliveries.WithLabelValues("retried").Inc()
		d.log.Warn("webhook delivery failed", "job_id", j.ID, "url", j.Webhook.URL, "attempt", attempt+1, "status", status, "error", err)
	}

	d.metrics.WebhookDeliveries.WithLabelValues("exhausted").Inc()
	d.log.Error("webhook delivery exhausted retries", "job_id", j.ID, "url", j.Webhook.URL)
}

func (d *WebhookDispatcher) send(ctx context.Context, method string, spec *WebhookSpec, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, spec.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range spec.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

func buildPayload(j *Job) webhookPayload {
	payload := webhookPayload{
		JobID:      j.ID,
		WorkflowID: j.WorkflowID,
		Status:     string(j.Status),
		Result:     j.Result,
		Error:      j.Error,
		Metadata: webhookMetadata{
			CreatedAt:     j.CreatedAt.UTC().Format(time.RFC3339),
			ExecutionTime: j.ExecutionTimeMS,
		},
	}
	if j.StartedAt != nil {
		payload.Metadata.StartedAt = j.StartedAt.UTC().Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		payload.Metadata.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	return payload
}
