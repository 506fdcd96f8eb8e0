package service

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"taskflow/internal/model"
)

// gatedDashboard blocks every snapshot until release is closed
type gatedDashboard struct {
	DashboardService
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (d *gatedDashboard) Snapshot(ctx context.Context) (*model.DashboardSnapshot, error) {
	d.calls.Add(1)
	select {
	case d.started <- struct{}{}:
	default:
	}
	<-d.release
	return &model.DashboardSnapshot{}, nil
}

func TestDashboardRefreshesCoalesce(t *testing.T) {
	pub := &fakePublisher{}
	dash := &gatedDashboard{started: make(chan struct{}, 1), release: make(chan struct{})}
	n := NewNotifier(pub, dash, fixedClock(), testLogger)

	n.TaskChanged("update", &TaskResponse{ID: 1})
	<-dash.started
	for i := 0; i < 10; i++ {
		n.TaskChanged("update", &TaskResponse{ID: 1})
	}
	close(dash.release)
	n.Wait()

	if got := dash.calls.Load(); got != 2 {
		t.Fatalf("expected the burst to collapse into 2 snapshots, got %d", got)
	}

	counts := map[string]int{}
	for _, raw := range pub.messages() {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		counts[ev.Type]++
	}
	if counts[EventTaskUpdated] != 11 || counts[EventDashboardUpdated] != 2 {
		t.Fatalf("unexpected event counts %v", counts)
	}

	n.TaskChanged("update", &TaskResponse{ID: 1})
	n.Wait()
	if got := dash.calls.Load(); got != 3 {
		t.Fatalf("a later change should refresh again, got %d snapshots", got)
	}
}
