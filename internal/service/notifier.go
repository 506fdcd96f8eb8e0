package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Realtime event types
const (
	EventTaskUpdated      = "task_updated"
	EventDashboardUpdated = "dashboard_updated"
	EventServiceUpdated   = "service_updated"
)

// Publisher hands an encoded event to connected subscribers. It must not
// block; false means the event was dropped.
type Publisher interface {
	Publish(msg []byte) bool
}

type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type TaskEventPayload struct {
	Action string        `json:"action"`
	Task   *TaskResponse `json:"task"`
}

type ServiceEventPayload struct {
	Action  string           `json:"action"`
	Service *ServiceResponse `json:"service"`
}

// Notifier fans lifecycle changes out to realtime subscribers. Dashboard
// snapshots are recomputed in the background so callers never wait on them.
// A nil *Notifier drops everything.
type Notifier struct {
	pub       Publisher
	dashboard DashboardService
	clock     Clock
	logger    *slog.Logger
	timeout   time.Duration

	mu         sync.Mutex
	refreshing bool
	pending    bool
	wg         sync.WaitGroup
}

func NewNotifier(pub Publisher, dashboard DashboardService, clock Clock, logger *slog.Logger) *Notifier {
	return &Notifier{
		pub:       pub,
		dashboard: dashboard,
		clock:     clock,
		logger:    logger,
		timeout:   10 * time.Second,
	}
}

// TaskChanged publishes task_updated and schedules a dashboard_updated refresh
func (n *Notifier) TaskChanged(action string, task *TaskResponse) {
	if n == nil {
		return
	}
	n.publish(EventTaskUpdated, TaskEventPayload{Action: action, Task: task})
	n.refreshDashboard()
}

// TasksChanged publishes one task_updated per task and a single dashboard refresh
func (n *Notifier) TasksChanged(action string, tasks []*TaskResponse) {
	if n == nil || len(tasks) == 0 {
		return
	}
	for _, t := range tasks {
		n.publish(EventTaskUpdated, TaskEventPayload{Action: action, Task: t})
	}
	n.refreshDashboard()
}

// ServiceChanged publishes service_updated
func (n *Notifier) ServiceChanged(action string, svc *ServiceResponse) {
	if n == nil {
		return
	}
	n.publish(EventServiceUpdated, ServiceEventPayload{Action: action, Service: svc})
}

// Wait blocks until background dashboard refreshes finish
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// refreshDashboard coalesces bursts: at most one snapshot runs at a time, and
// requests arriving meanwhile collapse into a single follow-up run.
func (n *Notifier) refreshDashboard() {
	if n.dashboard == nil {
		return
	}
	n.mu.Lock()
	if n.refreshing {
		n.pending = true
		n.mu.Unlock()
		return
	}
	n.refreshing = true
	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		for {
			n.publishSnapshot()

			n.mu.Lock()
			if !n.pending {
				n.refreshing = false
				n.mu.Unlock()
				return
			}
			n.pending = false
			n.mu.Unlock()
		}
	}()
}

func (n *Notifier) publishSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	snapshot, err := n.dashboard.Snapshot(ctx)
	if err != nil {
		n.logger.Warn("dashboard snapshot failed", "error", err)
		return
	}
	n.publish(EventDashboardUpdated, snapshot)
}

func (n *Notifier) publish(eventType string, payload any) {
	if n.pub == nil {
		return
	}
	msg, err := json.Marshal(Event{Type: eventType, Payload: payload, Timestamp: n.clock.Now()})
	if err != nil {
		n.logger.Error("encode event", "type", eventType, "error", err)
		return
	}
	if !n.pub.Publish(msg) {
		n.logger.Warn("realtime event dropped", "type", eventType)
	}
}
