package service

import (
	"context"
	"testing"
	"time"

	"taskflow/internal/model"
)

func TestComputeStats(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{Status: model.TaskStatusCompleted, PaidAmount: dec("150"), TaskDate: dateOf("2024-03-15"), CreatedAt: now.Add(-2 * time.Hour)},
		{Status: model.TaskStatusPending, PaidAmount: dec("20.50"), TaskDate: dateOf("2024-03-13"), CreatedAt: now.Add(-48 * time.Hour)},
		{Status: model.TaskStatusHold, TaskDate: dateOf("2024-03-15"), CreatedAt: now.Add(-time.Hour)},
		{Status: model.TaskStatusCancelled, PaidAmount: dec("5"), TaskDate: dateOf("2024-03-10"), CreatedAt: now.Add(-120 * time.Hour)},
	}

	stats := ComputeStats(tasks, now, "2024-03-15")

	if stats.TotalTasks != 4 || stats.TasksToday != 2 || stats.CompletedTasks != 1 || stats.OverdueTasks != 1 {
		t.Fatalf("unexpected counters %+v", stats)
	}
	if !stats.TotalRevenue.Equal(dec("175.50")) {
		t.Fatalf("expected revenue 175.50, got %s", stats.TotalRevenue)
	}

	sum := 0
	for _, status := range model.TaskStatuses {
		n, ok := stats.ByStatus[status]
		if !ok {
			t.Fatalf("missing status %s in breakdown", status)
		}
		sum += n
	}
	if sum != stats.TotalTasks {
		t.Fatalf("status breakdown %d does not add up to total %d", sum, stats.TotalTasks)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil, time.Now(), "2024-03-15")
	if stats.TotalTasks != 0 || !stats.TotalRevenue.IsZero() || len(stats.ByStatus) != len(model.TaskStatuses) {
		t.Fatalf("unexpected empty stats %+v", stats)
	}
}

func TestRankPerformers(t *testing.T) {
	tasks := []model.Task{
		{AssignedTo: "staff1", Status: model.TaskStatusCompleted, PaidAmount: dec("100")},
		{AssignedTo: "staff1", Status: model.TaskStatusPending, PaidAmount: dec("300")},
		{AssignedTo: "staff2", Status: model.TaskStatusCompleted, PaidAmount: dec("50")},
		{AssignedTo: "staff2", Status: model.TaskStatusCompleted, PaidAmount: dec("50")},
		{AssignedTo: "ghost", Status: model.TaskStatusCompleted, PaidAmount: dec("10000")},
	}

	top := RankPerformers(tasks, []string{"staff1", "staff2", "staff3", "staff4"}, TopPerformerLimit)

	if len(top) != TopPerformerLimit {
		t.Fatalf("expected %d performers, got %d", TopPerformerLimit, len(top))
	}
	// staff2: 2*10 + 100/100 = 21, staff1: 1*10 + 400/100 = 14
	if top[0].Name != "staff2" || !top[0].Score.Equal(dec("21")) {
		t.Fatalf("unexpected leader %+v", top[0])
	}
	if top[1].Name != "staff1" || !top[1].Score.Equal(dec("14")) || !top[1].TotalRevenue.Equal(dec("400")) {
		t.Fatalf("unexpected runner-up %+v", top[1])
	}
	// zero scores keep staff order
	if top[2].Name != "staff3" || !top[2].Score.IsZero() {
		t.Fatalf("unexpected third place %+v", top[2])
	}
}

func TestListOverdue(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: 1, OrderNo: "TF-001", Status: model.TaskStatusPending, CreatedAt: now.Add(-30 * time.Hour)},
		{ID: 2, OrderNo: "TF-002", Status: model.TaskStatusInProgress, CreatedAt: now.Add(-72*time.Hour - 20*time.Minute)},
		{ID: 3, OrderNo: "TF-003", Status: model.TaskStatusCompleted, CreatedAt: now.Add(-100 * time.Hour)},
		{ID: 4, OrderNo: "TF-004", Status: model.TaskStatusHold, CreatedAt: now.Add(-23 * time.Hour)},
	}

	overdue := ListOverdue(tasks, now)

	if len(overdue) != 2 {
		t.Fatalf("expected 2 overdue tasks, got %+v", overdue)
	}
	if overdue[0].OrderNo != "TF-002" || overdue[0].HoursOverdue != 72 {
		t.Fatalf("unexpected first entry %+v", overdue[0])
	}
	if overdue[1].OrderNo != "TF-001" || overdue[1].HoursOverdue != 30 {
		t.Fatalf("unexpected second entry %+v", overdue[1])
	}
}

func TestDashboardMatchesTaskStore(t *testing.T) {
	env := newTaskEnv()
	seedStaff(env, "staff1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.svc.Create(ctx, managerActor, newTaskRequest("Customer")); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	env.notifier.Wait()

	dashboard := NewDashboardService(env.tasks, env.users, env.clock, testLogger)
	stats, err := dashboard.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 3 || stats.TasksToday != 3 || stats.ByStatus[model.TaskStatusReceived] != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.TotalRevenue.Equal(dec("300")) {
		t.Fatalf("expected revenue 300, got %s", stats.TotalRevenue)
	}

	summary, err := dashboard.PeriodSummary(ctx, env.clock.Now().AddDate(0, 0, -1), env.clock.Now())
	if err != nil {
		t.Fatalf("period summary: %v", err)
	}
	if summary.PeriodStart != "2024-03-14" || summary.PeriodEnd != "2024-03-15" || summary.Stats.TotalTasks != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
