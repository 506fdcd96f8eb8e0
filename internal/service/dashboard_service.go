package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// TopPerformerLimit is how many staff the leaderboard shows
const TopPerformerLimit = 3

var (
	completedWeight = decimal.NewFromInt(10)
	revenueDivisor  = decimal.NewFromInt(100)
)

type DashboardService interface {
	Stats(ctx context.Context) (*model.DashboardStats, error)
	TopPerformers(ctx context.Context) ([]model.TopPerformer, error)
	OverdueTasks(ctx context.Context) ([]model.OverdueTask, error)
	Snapshot(ctx context.Context) (*model.DashboardSnapshot, error)
	// PeriodSummary aggregates tasks whose task_date lies in [start, end]
	PeriodSummary(ctx context.Context, start, end time.Time) (*model.PeriodSummary, error)
}

type dashboardService struct {
	taskRepo repository.TaskRepository
	userRepo repository.UserRepository
	clock    Clock
	logger   *slog.Logger
}

func NewDashboardService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, clock Clock, logger *slog.Logger) DashboardService {
	return &dashboardService{taskRepo: taskRepo, userRepo: userRepo, clock: clock, logger: logger}
}

func (s *dashboardService) Stats(ctx context.Context) (*model.DashboardStats, error) {
	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return nil, storageFailure(s.logger, "dashboard stats", err, "")
	}
	stats := ComputeStats(tasks, s.clock.Now(), s.clock.Today())
	return &stats, nil
}

func (s *dashboardService) TopPerformers(ctx context.Context) ([]model.TopPerformer, error) {
	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return nil, storageFailure(s.logger, "top performers", err, "")
	}
	staff, err := s.staffNames(ctx)
	if err != nil {
		return nil, err
	}
	return RankPerformers(tasks, staff, TopPerformerLimit), nil
}

func (s *dashboardService) OverdueTasks(ctx context.Context) ([]model.OverdueTask, error) {
	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return nil, storageFailure(s.logger, "overdue tasks", err, "")
	}
	return ListOverdue(tasks, s.clock.Now()), nil
}

func (s *dashboardService) Snapshot(ctx context.Context) (*model.DashboardSnapshot, error) {
	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return nil, storageFailure(s.logger, "dashboard snapshot", err, "")
	}
	staff, err := s.staffNames(ctx)
	if err != nil {
		return nil, err
	}
	return &model.DashboardSnapshot{
		Stats:         ComputeStats(tasks, s.clock.Now(), s.clock.Today()),
		TopPerformers: RankPerformers(tasks, staff, TopPerformerLimit),
	}, nil
}

func (s *dashboardService) PeriodSummary(ctx context.Context, start, end time.Time) (*model.PeriodSummary, error) {
	from, to := start.Format(model.DateLayout), end.Format(model.DateLayout)
	tasks, err := s.taskRepo.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, storageFailure(s.logger, "period summary", err, "")
	}
	staff, err := s.staffNames(ctx)
	if err != nil {
		return nil, err
	}
	return &model.PeriodSummary{
		PeriodStart:   from,
		PeriodEnd:     to,
		Stats:         ComputeStats(tasks, s.clock.Now(), s.clock.Today()),
		TopPerformers: RankPerformers(tasks, staff, TopPerformerLimit),
	}, nil
}

func (s *dashboardService) staffNames(ctx context.Context) ([]string, error) {
	users, err := s.userRepo.ListByRole(ctx, model.RoleStaff)
	if err != nil {
		return nil, storageFailure(s.logger, "list staff", err, "")
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names, nil
}

// ComputeStats aggregates tasks. today is the business date as YYYY-MM-DD.
func ComputeStats(tasks []model.Task, now time.Time, today string) model.DashboardStats {
	stats := model.DashboardStats{
		TotalRevenue: decimal.Zero,
		ByStatus:     make(map[string]int, len(model.TaskStatuses)),
	}
	for _, status := range model.TaskStatuses {
		stats.ByStatus[status] = 0
	}

	for i := range tasks {
		t := &tasks[i]
		stats.TotalTasks++
		stats.ByStatus[t.Status]++
		stats.TotalRevenue = stats.TotalRevenue.Add(t.PaidAmount)
		if t.BusinessDate() == today {
			stats.TasksToday++
		}
		if t.IsCompleted() {
			stats.CompletedTasks++
		}
		if t.IsOverdue(now) {
			stats.OverdueTasks++
		}
	}
	return stats
}

// RankPerformers scores each staff member over the tasks assigned to them.
// Revenue counts paid_amount of every assigned task regardless of status.
// Ties keep the order of staff.
func RankPerformers(tasks []model.Task, staff []string, limit int) []model.TopPerformer {
	byName := make(map[string]*model.TopPerformer, len(staff))
	performers := make([]*model.TopPerformer, 0, len(staff))
	for _, name := range staff {
		if _, dup := byName[name]; dup {
			continue
		}
		p := &model.TopPerformer{Name: name, TotalRevenue: decimal.Zero}
		byName[name] = p
		performers = append(performers, p)
	}

	for i := range tasks {
		p, ok := byName[tasks[i].AssignedTo]
		if !ok {
			continue
		}
		if tasks[i].IsCompleted() {
			p.CompletedTasks++
		}
		p.TotalRevenue = p.TotalRevenue.Add(tasks[i].PaidAmount)
	}

	for _, p := range performers {
		p.Score = decimal.NewFromInt(int64(p.CompletedTasks)).Mul(completedWeight).
			Add(p.TotalRevenue.Div(revenueDivisor))
	}

	sort.SliceStable(performers, func(i, j int) bool {
		return performers[i].Score.GreaterThan(performers[j].Score)
	})

	if limit > 0 && len(performers) > limit {
		performers = performers[:limit]
	}
	out := make([]model.TopPerformer, 0, len(performers))
	for _, p := range performers {
		out = append(out, *p)
	}
	return out
}

// ListOverdue returns overdue tasks, most overdue first
func ListOverdue(tasks []model.Task, now time.Time) []model.OverdueTask {
	out := make([]model.OverdueTask, 0)
	for i := range tasks {
		t := &tasks[i]
		if !t.IsOverdue(now) {
			continue
		}
		out = append(out, model.OverdueTask{
			ID:           t.ID,
			OrderNo:      t.OrderNo,
			CustomerName: t.CustomerName,
			ServiceType:  t.ServiceType,
			Status:       t.Status,
			AssignedTo:   t.AssignedTo,
			TaskDate:     t.BusinessDate(),
			HoursOverdue: int(now.Sub(t.CreatedAt).Hours()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HoursOverdue > out[j].HoursOverdue
	})
	return out
}
