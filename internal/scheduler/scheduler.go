package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"taskflow/internal/model"
	"taskflow/internal/service"
)

// ReportGenerator produces one report per call
type ReportGenerator interface {
	Generate(ctx context.Context, reportType string) (*service.ReportResponse, error)
}

// Job binds a cron expression to a report type
type Job struct {
	Name       string
	Spec       string
	ReportType string
}

// DefaultJobs are evaluated in the scheduler's time zone
var DefaultJobs = []Job{
	{Name: "weekly_summary", Spec: "0 8 * * 1", ReportType: model.ReportWeekly},
	{Name: "monthly_summary", Spec: "0 8 1 * *", ReportType: model.ReportMonthly},
	{Name: "daily_reminder", Spec: "0 9 * * *", ReportType: model.ReportDailyReminder},
	{Name: "overdue_alert", Spec: "0 18 * * *", ReportType: model.ReportOverdueAlert},
}

// Scheduler runs report jobs on cron schedules. A job still running when its
// next tick arrives is skipped.
type Scheduler struct {
	cron      *cron.Cron
	generator ReportGenerator
	logger    *slog.Logger
	timeout   time.Duration
	entries   map[string]cron.EntryID
}

func New(generator ReportGenerator, loc *time.Location, logger *slog.Logger, jobs []Job) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		generator: generator,
		logger:    logger,
		timeout:   5 * time.Minute,
		entries:   make(map[string]cron.EntryID, len(jobs)),
	}

	for _, job := range jobs {
		job := job
		id, err := s.cron.AddFunc(job.Spec, func() { s.run(job) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.Name, err)
		}
		s.entries[job.Name] = id
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Stop prevents new runs and waits for running jobs until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next run time of the named job
func (s *Scheduler) Next(name string) (time.Time, bool) {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	report, err := s.generator.Generate(ctx, job.ReportType)
	if err != nil {
		s.logger.Error("scheduled job failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Info("scheduled job finished",
		"job", job.Name,
		"report", report.ID,
		"delivered", report.Delivered,
		"took", time.Since(start),
	)
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
