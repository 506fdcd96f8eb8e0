package model

import "github.com/shopspring/decimal"

// DashboardStats aggregates counts and revenue over a task set
type DashboardStats struct {
	TotalTasks     int             `json:"total_tasks"`
	TasksToday     int             `json:"tasks_today"`
	CompletedTasks int             `json:"completed_tasks"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	OverdueTasks   int             `json:"overdue_tasks"`
	ByStatus       map[string]int  `json:"by_status"`
}

// TopPerformer ranks a staff member by completed work and collected revenue
type TopPerformer struct {
	Name           string          `json:"name"`
	CompletedTasks int             `json:"completed_tasks"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	Score          decimal.Decimal `json:"score"`
}

// OverdueTask is a row of the overdue listing
type OverdueTask struct {
	ID           uint   `json:"id"`
	OrderNo      string `json:"order_no"`
	CustomerName string `json:"customer_name"`
	ServiceType  string `json:"service_type"`
	Status       string `json:"status"`
	AssignedTo   string `json:"assigned_to"`
	TaskDate     string `json:"task_date"`
	HoursOverdue int    `json:"hours_overdue"`
}

// DashboardSnapshot is pushed to realtime subscribers after every task mutation
type DashboardSnapshot struct {
	Stats         DashboardStats `json:"stats"`
	TopPerformers []TopPerformer `json:"top_performers"`
}

// PeriodSummary is the payload of weekly and monthly reports
type PeriodSummary struct {
	PeriodStart   string         `json:"period_start"`
	PeriodEnd     string         `json:"period_end"`
	Stats         DashboardStats `json:"stats"`
	TopPerformers []TopPerformer `json:"top_performers"`
}
