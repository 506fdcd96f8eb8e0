package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTaskMutationCounts(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.TaskMutation("update", "success")
	m.TaskMutation("update", "success")
	m.TaskMutation("update", "rejected")

	if got := testutil.ToFloat64(m.taskMutations.WithLabelValues("update", "success")); got != 2 {
		t.Fatalf("expected 2 successful updates, got %v", got)
	}
	if got := testutil.ToFloat64(m.taskMutations.WithLabelValues("update", "rejected")); got != 1 {
		t.Fatalf("expected 1 rejected update, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.TaskMutation("create", "success")
	m.SetClients(3)
	m.EventDropped()
	m.MailSent(false)
	m.JobRun("weekly", true)
}
