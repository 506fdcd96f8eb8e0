package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"taskflow/internal/mailer"
	"taskflow/internal/metrics"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

type ReportResponse struct {
	ID          uuid.UUID       `json:"id"`
	ReportType  string          `json:"report_type"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Content     json.RawMessage `json:"content"`
	Recipients  []string        `json:"recipients"`
	Delivered   bool            `json:"delivered"`
	GeneratedAt string          `json:"generated_at"`
}

// StaffReminder lists the open tasks of one staff member
type StaffReminder struct {
	Staff string         `json:"staff"`
	Email string         `json:"email,omitempty"`
	Tasks []TaskResponse `json:"tasks"`
}

type ReportService interface {
	// Generate builds, mails and stores one report. Mail failures are logged
	// and recorded as undelivered; they never fail the run.
	Generate(ctx context.Context, reportType string) (*ReportResponse, error)
	// Run is Generate on behalf of a caller
	Run(ctx context.Context, actor Actor, reportType string) (*ReportResponse, error)
	List(ctx context.Context, actor Actor, reportType string, page, limit int) ([]ReportResponse, int64, error)
}

type reportService struct {
	reportRepo repository.ReportRepository
	taskRepo   repository.TaskRepository
	userRepo   repository.UserRepository
	dashboard  DashboardService
	mail       mailer.Mailer
	recipients []string
	metrics    *metrics.Metrics
	clock      Clock
	logger     *slog.Logger
}

func NewReportService(
	reportRepo repository.ReportRepository,
	taskRepo repository.TaskRepository,
	userRepo repository.UserRepository,
	dashboard DashboardService,
	mail mailer.Mailer,
	recipients []string,
	m *metrics.Metrics,
	clock Clock,
	logger *slog.Logger,
) ReportService {
	return &reportService{
		reportRepo: reportRepo,
		taskRepo:   taskRepo,
		userRepo:   userRepo,
		dashboard:  dashboard,
		mail:       mail,
		recipients: recipients,
		metrics:    m,
		clock:      clock,
		logger:     logger,
	}
}

func mapReportToResponse(r *model.Report) *ReportResponse {
	var recipients []string
	if r.Recipients != "" {
		recipients = strings.Split(r.Recipients, ",")
	}
	return &ReportResponse{
		ID:          r.ID,
		ReportType:  r.ReportType,
		PeriodStart: time.Time(r.PeriodStart).Format(model.DateLayout),
		PeriodEnd:   time.Time(r.PeriodEnd).Format(model.DateLayout),
		Content:     json.RawMessage(r.Content),
		Recipients:  recipients,
		Delivered:   r.Delivered,
		GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
	}
}

func validReportType(reportType string) bool {
	for _, t := range model.ReportTypes {
		if t == reportType {
			return true
		}
	}
	return false
}

func (s *reportService) Run(ctx context.Context, actor Actor, reportType string) (*ReportResponse, error) {
	if !actor.Can(model.CapViewReports) {
		return nil, AuthorizationError("Only a manager or admin can run reports")
	}
	return s.Generate(ctx, reportType)
}

func (s *reportService) List(ctx context.Context, actor Actor, reportType string, page, limit int) ([]ReportResponse, int64, error) {
	if !actor.Can(model.CapViewReports) {
		return nil, 0, AuthorizationError("Only a manager or admin can view reports")
	}
	if reportType != "" && !validReportType(reportType) {
		return nil, 0, ValidationError("Unknown report type: " + reportType)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	reports, total, err := s.reportRepo.List(ctx, reportType, page, limit)
	if err != nil {
		return nil, 0, storageFailure(s.logger, "list reports", err, "")
	}
	res := make([]ReportResponse, 0, len(reports))
	for i := range reports {
		res = append(res, *mapReportToResponse(&reports[i]))
	}
	return res, total, nil
}

// outgoing is a report ready to be mailed and stored
type outgoing struct {
	start, end time.Time
	content    any
	mails      []mailer.Message
}

func (s *reportService) Generate(ctx context.Context, reportType string) (*ReportResponse, error) {
	if !validReportType(reportType) {
		return nil, ValidationError("Unknown report type: " + reportType)
	}

	var (
		out *outgoing
		err error
	)
	switch reportType {
	case model.ReportWeekly:
		out, err = s.buildWeekly(ctx)
	case model.ReportMonthly:
		out, err = s.buildMonthly(ctx)
	case model.ReportDailyReminder:
		out, err = s.buildDailyReminder(ctx)
	case model.ReportOverdueAlert:
		out, err = s.buildOverdueAlert(ctx)
	}
	if err != nil {
		s.metrics.JobRun(reportType, false)
		return nil, storageFailure(s.logger, "build "+reportType+" report", err, "")
	}

	delivered, sentTo := s.deliver(ctx, reportType, out.mails)

	raw, err := json.Marshal(out.content)
	if err != nil {
		s.metrics.JobRun(reportType, false)
		return nil, storageFailure(s.logger, "encode report", err, "")
	}
	report := &model.Report{
		ReportType:  reportType,
		PeriodStart: datatypes.Date(out.start),
		PeriodEnd:   datatypes.Date(out.end),
		Content:     datatypes.JSON(raw),
		Recipients:  strings.Join(sentTo, ","),
		Delivered:   delivered,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		s.metrics.JobRun(reportType, false)
		return nil, storageFailure(s.logger, "store report", err, "")
	}

	s.metrics.JobRun(reportType, true)
	s.logger.Info("report generated", "type", reportType, "delivered", delivered, "recipients", len(sentTo))
	return mapReportToResponse(report), nil
}

// deliver sends every message once. delivered is true only if all sends succeed.
func (s *reportService) deliver(ctx context.Context, reportType string, mails []mailer.Message) (bool, []string) {
	if len(mails) == 0 {
		return false, nil
	}
	delivered := true
	var sentTo []string
	for _, msg := range mails {
		if err := s.mail.Send(ctx, msg); err != nil {
			delivered = false
			s.metrics.MailSent(false)
			s.logger.Error("report mail failed", "type", reportType, "to", msg.To, "error", err)
			continue
		}
		s.metrics.MailSent(true)
		sentTo = append(sentTo, msg.To...)
	}
	return delivered, sentTo
}

// managerRecipients returns the configured report recipients, falling back to
// the emails of managers and admins.
func (s *reportService) managerRecipients(ctx context.Context) ([]string, error) {
	if len(s.recipients) > 0 {
		return s.recipients, nil
	}
	users, err := s.userRepo.ListByRoles(ctx, model.RoleAdmin, model.RoleManager)
	if err != nil {
		return nil, err
	}
	var emails []string
	for _, u := range users {
		if u.Email != "" {
			emails = append(emails, u.Email)
		}
	}
	return emails, nil
}

func (s *reportService) buildWeekly(ctx context.Context) (*outgoing, error) {
	today := s.clock.Date(s.clock.Now())
	return s.buildSummary(ctx, "Weekly", today.AddDate(0, 0, -7), today.AddDate(0, 0, -1))
}

func (s *reportService) buildMonthly(ctx context.Context) (*outgoing, error) {
	today := s.clock.Date(s.clock.Now())
	firstOfMonth := today.AddDate(0, 0, 1-today.Day())
	return s.buildSummary(ctx, "Monthly", firstOfMonth.AddDate(0, -1, 0), firstOfMonth.AddDate(0, 0, -1))
}

func (s *reportService) buildSummary(ctx context.Context, label string, start, end time.Time) (*outgoing, error) {
	summary, err := s.dashboard.PeriodSummary(ctx, start, end)
	if err != nil {
		return nil, err
	}
	to, err := s.managerRecipients(ctx)
	if err != nil {
		return nil, err
	}

	out := &outgoing{start: start, end: end, content: summary}
	if len(to) > 0 {
		out.mails = []mailer.Message{{
			To:      to,
			Subject: fmt.Sprintf("%s summary %s to %s", label, summary.PeriodStart, summary.PeriodEnd),
			Body:    renderSummary(label, summary),
		}}
	}
	return out, nil
}

func (s *reportService) buildDailyReminder(ctx context.Context) (*outgoing, error) {
	today := s.clock.Date(s.clock.Now())

	staff, err := s.userRepo.ListByRole(ctx, model.RoleStaff)
	if err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	open := make(map[string][]TaskResponse)
	for i := range tasks {
		if tasks[i].IsActive() && tasks[i].AssignedTo != "" {
			open[tasks[i].AssignedTo] = append(open[tasks[i].AssignedTo], *mapTaskToResponse(&tasks[i]))
		}
	}

	reminders := make([]StaffReminder, 0, len(staff))
	var mails []mailer.Message
	for _, u := range staff {
		list := open[u.Username]
		if len(list) == 0 {
			continue
		}
		reminders = append(reminders, StaffReminder{Staff: u.Username, Email: u.Email, Tasks: list})
		if u.Email != "" {
			mails = append(mails, mailer.Message{
				To:      []string{u.Email},
				Subject: fmt.Sprintf("You have %d open task(s)", len(list)),
				Body:    renderReminder(u.Username, list),
			})
		}
	}
	return &outgoing{start: today, end: today, content: reminders, mails: mails}, nil
}

func (s *reportService) buildOverdueAlert(ctx context.Context) (*outgoing, error) {
	today := s.clock.Date(s.clock.Now())

	overdue, err := s.dashboard.OverdueTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := &outgoing{start: today, end: today, content: overdue}
	if len(overdue) == 0 {
		return out, nil
	}

	to, err := s.managerRecipients(ctx)
	if err != nil {
		return nil, err
	}
	if len(to) > 0 {
		out.mails = []mailer.Message{{
			To:      to,
			Subject: fmt.Sprintf("%d overdue task(s)", len(overdue)),
			Body:    renderOverdue(overdue),
		}}
	}
	return out, nil
}

func renderSummary(label string, summary *model.PeriodSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s summary for %s to %s\n\n", label, summary.PeriodStart, summary.PeriodEnd)
	fmt.Fprintf(&b, "Total tasks:     %d\n", summary.Stats.TotalTasks)
	fmt.Fprintf(&b, "Completed tasks: %d\n", summary.Stats.CompletedTasks)
	fmt.Fprintf(&b, "Overdue tasks:   %d\n", summary.Stats.OverdueTasks)
	fmt.Fprintf(&b, "Total revenue:   %s\n", summary.Stats.TotalRevenue.StringFixed(2))
	if len(summary.TopPerformers) > 0 {
		b.WriteString("\nTop performers:\n")
		for i, p := range summary.TopPerformers {
			fmt.Fprintf(&b, "%d. %s - %d completed, revenue %s\n", i+1, p.Name, p.CompletedTasks, p.TotalRevenue.StringFixed(2))
		}
	}
	return b.String()
}

func renderReminder(staff string, tasks []TaskResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nThese tasks are still open:\n\n", staff)
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s %s (%s) - %s\n", t.OrderNo, t.CustomerName, t.ServiceType, t.Status)
	}
	return b.String()
}

func renderOverdue(tasks []model.OverdueTask) string {
	var b strings.Builder
	b.WriteString("The following tasks have been open for more than 24 hours:\n\n")
	for _, t := range tasks {
		assignee := t.AssignedTo
		if assignee == "" {
			assignee = "unassigned"
		}
		fmt.Fprintf(&b, "- %s %s (%s) - %s, %s, %dh overdue\n", t.OrderNo, t.CustomerName, t.ServiceType, t.Status, assignee, t.HoursOverdue)
	}
	return b.String()
}
