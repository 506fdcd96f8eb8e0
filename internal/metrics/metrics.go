package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors exported on /metrics. A nil *Metrics is a no-op.
type Metrics struct {
	taskMutations *prometheus.CounterVec
	wsClients     prometheus.Gauge
	droppedEvents prometheus.Counter
	mailSent      *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
}

// New registers collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		taskMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_task_mutations_total",
			Help: "Task lifecycle operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "taskflow_ws_clients",
			Help: "Currently connected realtime subscribers.",
		}),
		droppedEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_ws_dropped_events_total",
			Help: "Realtime events dropped because the hub queue was full.",
		}),
		mailSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_mail_sent_total",
			Help: "Outbound report emails by outcome.",
		}, []string{"outcome"}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_job_runs_total",
			Help: "Scheduled job executions by job and outcome.",
		}, []string{"job", "outcome"}),
	}
}

func (m *Metrics) TaskMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.taskMutations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}

func (m *Metrics) MailSent(ok bool) {
	if m == nil {
		return
	}
	m.mailSent.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) JobRun(job string, ok bool) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
