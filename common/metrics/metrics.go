package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors
type Metrics struct {
	JobsSubmitted     prometheus.Counter
	JobsCompleted     *prometheus.CounterVec
	QueueLength       prometheus.Gauge
	RunningJobs       prometheus.Gauge
	TaskExecutions    *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
}

// New registers engine collectors against the given registerer. Passing nil
// uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "docuflow_jobs_submitted_total",
			Help: "Total jobs submitted to the engine",
		}),
		JobsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docuflow_jobs_completed_total",
			Help: "Jobs that reached a terminal status",
		}, []string{"status"}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docuflow_queue_length",
			Help: "Jobs currently waiting in the priority queue",
		}),
		RunningJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docuflow_running_jobs",
			Help: "Jobs currently holding a worker slot",
		}),
		TaskExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docuflow_task_executions_total",
			Help: "Individual task executions by outcome",
		}, []string{"outcome"}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docuflow_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome",
		}, []string{"outcome"}),
	}
}
