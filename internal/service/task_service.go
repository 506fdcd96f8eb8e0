package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"taskflow/internal/metrics"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

const (
	// maxOrderNoAttempts bounds retries when an order number collides on insert
	maxOrderNoAttempts = 3
	// DefaultExportLimit is the number of newest tasks included in exports
	DefaultExportLimit = 500
)

// Date filter values accepted by List
const (
	DateFilterAll       = "all"
	DateFilterToday     = "today"
	DateFilterYesterday = "yesterday"
	DateFilterTomorrow  = "tomorrow"
	DateFilterLast30    = "last30"
)

type CreateTaskRequest struct {
	CustomerName  string          `json:"customer_name" binding:"required"`
	ContactNumber string          `json:"contact_number" binding:"required"`
	ServiceType   string          `json:"service_type" binding:"required"`
	Description   string          `json:"description"`
	AssignedTo    string          `json:"assigned_to"`
	BranchCode    string          `json:"branch_code"`
	Paymode       string          `json:"paymode"`
	Status        string          `json:"status"`
	ServicePrice  decimal.Decimal `json:"service_price"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
}

// UpdateTaskRequest carries only the fields present in the request body
type UpdateTaskRequest struct {
	CustomerName  *string          `json:"customer_name"`
	ContactNumber *string          `json:"contact_number"`
	ServiceType   *string          `json:"service_type"`
	Description   *string          `json:"description"`
	AssignedTo    *string          `json:"assigned_to"`
	BranchCode    *string          `json:"branch_code"`
	Paymode       *string          `json:"paymode"`
	Status        *string          `json:"status"`
	ServicePrice  *decimal.Decimal `json:"service_price"`
	PaidAmount    *decimal.Decimal `json:"paid_amount"`
	ServiceCharge *decimal.Decimal `json:"service_charge"`
	EditReason    string           `json:"edit_reason"`
}

// ShareTaskRequest names the share target. staff_name is the documented key;
// staff is still accepted.
type ShareTaskRequest struct {
	StaffName string `json:"staff_name"`
	Staff     string `json:"staff"`
}

// Target returns the requested username, preferring staff_name
func (r ShareTaskRequest) Target() string {
	if strings.TrimSpace(r.StaffName) != "" {
		return r.StaffName
	}
	return r.Staff
}

// TaskListQuery mirrors the list filters. "all" and empty disable a filter.
type TaskListQuery struct {
	Date    string `form:"date"`
	Branch  string `form:"branch"`
	Staff   string `form:"staff"`
	Status  string `form:"status"`
	Service string `form:"service"`
	Search  string `form:"search"`
}

type TaskResponse struct {
	ID            uint            `json:"id"`
	OrderNo       string          `json:"order_no"`
	CustomerName  string          `json:"customer_name"`
	ContactNumber string          `json:"contact_number"`
	ServiceType   string          `json:"service_type"`
	Description   string          `json:"description"`
	BranchCode    string          `json:"branch_code"`
	Paymode       string          `json:"paymode"`
	Status        string          `json:"status"`
	AssignedTo    string          `json:"assigned_to"`
	SharedWith    []string        `json:"shared_with"`
	Edited        bool            `json:"edited"`
	EditReason    string          `json:"edit_reason"`
	ServicePrice  decimal.Decimal `json:"service_price"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	TaskDate      string          `json:"task_date"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// TaskResult is the outcome of a lifecycle operation. Changed is false when
// the call was a no-op such as sharing with someone who already has access.
type TaskResult struct {
	Task    *TaskResponse `json:"task"`
	Changed bool          `json:"changed"`
	Message string        `json:"message"`
}

// ExportRow is one line of the task export
type ExportRow struct {
	OrderNo      string
	ServiceType  string
	CustomerName string
	AssignedTo   string
	Status       string
	TaskDate     string
	PaidAmount   decimal.Decimal
}

type TaskService interface {
	Create(ctx context.Context, actor Actor, req CreateTaskRequest) (*TaskResult, error)
	Get(ctx context.Context, actor Actor, id uint) (*TaskResponse, error)
	List(ctx context.Context, actor Actor, query TaskListQuery) ([]TaskResponse, error)
	Update(ctx context.Context, actor Actor, id uint, req UpdateTaskRequest) (*TaskResult, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	Cancel(ctx context.Context, actor Actor, id uint) (*TaskResult, error)
	Reopen(ctx context.Context, actor Actor, id uint) (*TaskResult, error)
	Takeover(ctx context.Context, actor Actor, id uint) (*TaskResult, error)
	Share(ctx context.Context, actor Actor, id uint, target string) (*TaskResult, error)
	ExportRows(ctx context.Context, actor Actor, limit int) ([]ExportRow, error)
}

type taskService struct {
	taskRepo  repository.TaskRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	notifier  *Notifier
	metrics   *metrics.Metrics
	clock     Clock
	logger    *slog.Logger
}

func NewTaskService(
	taskRepo repository.TaskRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier *Notifier,
	m *metrics.Metrics,
	clock Clock,
	logger *slog.Logger,
) TaskService {
	return &taskService{
		taskRepo:  taskRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		notifier:  notifier,
		metrics:   m,
		clock:     clock,
		logger:    logger,
	}
}

func mapTaskToResponse(t *model.Task) *TaskResponse {
	return &TaskResponse{
		ID:            t.ID,
		OrderNo:       t.OrderNo,
		CustomerName:  t.CustomerName,
		ContactNumber: t.ContactNumber,
		ServiceType:   t.ServiceType,
		Description:   t.Description,
		BranchCode:    t.BranchCode,
		Paymode:       t.Paymode,
		Status:        t.Status,
		AssignedTo:    t.AssignedTo,
		SharedWith:    t.SharedWith(),
		Edited:        t.Edited,
		EditReason:    t.EditReason,
		ServicePrice:  t.ServicePrice,
		PaidAmount:    t.PaidAmount,
		ServiceCharge: t.ServiceCharge,
		TaskDate:      t.BusinessDate(),
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     t.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *taskService) Create(ctx context.Context, actor Actor, req CreateTaskRequest) (*TaskResult, error) {
	customer := strings.TrimSpace(req.CustomerName)
	contact := strings.TrimSpace(req.ContactNumber)
	serviceType := strings.TrimSpace(req.ServiceType)
	switch {
	case customer == "":
		return nil, s.reject("create", ValidationError("Customer name is required"))
	case contact == "":
		return nil, s.reject("create", ValidationError("Contact number is required"))
	case serviceType == "":
		return nil, s.reject("create", ValidationError("Service type is required"))
	}

	status := model.TaskStatusReceived
	if req.Status != "" {
		if !model.ValidTaskStatus(req.Status) {
			return nil, s.reject("create", ValidationError("Invalid status: "+req.Status))
		}
		status = req.Status
	}

	paymode := strings.TrimSpace(req.Paymode)
	if paymode == "" {
		paymode = model.DefaultPaymode
	}

	var task *model.Task
	var err error
	for attempt := 1; attempt <= maxOrderNoAttempts; attempt++ {
		task = &model.Task{
			CustomerName:  customer,
			ContactNumber: contact,
			ServiceType:   serviceType,
			Description:   req.Description,
			AssignedTo:    strings.TrimSpace(req.AssignedTo),
			BranchCode:    strings.TrimSpace(req.BranchCode),
			Paymode:       paymode,
			Status:        status,
			Shared:        model.SharedWith{},
			ServicePrice:  req.ServicePrice,
			PaidAmount:    req.PaidAmount,
			ServiceCharge: req.ServiceCharge,
			TaskDate:      datatypes.Date(s.clock.Date(s.clock.Now())),
		}

		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			n, err := s.taskRepo.NextOrderNumber(txCtx)
			if err != nil {
				return err
			}
			task.OrderNo = model.FormatOrderNo(n)

			if err := s.taskRepo.Create(txCtx, task); err != nil {
				return err
			}
			return s.audit(txCtx, actor, model.ActionCreateTask, task, map[string]interface{}{
				"order_no":     task.OrderNo,
				"status":       task.Status,
				"assigned_to":  task.AssignedTo,
				"service_type": task.ServiceType,
			})
		})
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		s.logger.Warn("order number collision, retrying", "order_no", task.OrderNo, "attempt", attempt)
	}

	if errors.Is(err, repository.ErrDuplicate) {
		return nil, s.reject("create", ConflictError("Could not allocate a unique order number, please retry"))
	}
	if err != nil {
		return nil, s.reject("create", storageFailure(s.logger, "create task", err, ""))
	}

	s.metrics.TaskMutation("create", "success")
	res := &TaskResult{Task: mapTaskToResponse(task), Changed: true, Message: "Task created successfully"}
	s.notifier.TaskChanged("created", res.Task)
	return res, nil
}

func (s *taskService) Get(ctx context.Context, actor Actor, id uint) (*TaskResponse, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageFailure(s.logger, "get task", err, "Task not found")
	}
	if !actor.Can(model.CapViewAllTasks) && !task.HasAccess(actor.Username) {
		return nil, AuthorizationError("You can only view tasks assigned to you or shared with you")
	}
	return mapTaskToResponse(task), nil
}

func (s *taskService) List(ctx context.Context, actor Actor, query TaskListQuery) ([]TaskResponse, error) {
	filter := repository.TaskFilter{
		Branch:      filterValue(query.Branch),
		AssignedTo:  filterValue(query.Staff),
		Status:      filterValue(query.Status),
		ServiceType: filterValue(query.Service),
		Search:      strings.TrimSpace(query.Search),
	}
	if err := s.applyDateFilter(&filter, query.Date); err != nil {
		return nil, err
	}
	if !actor.Can(model.CapViewAllTasks) {
		filter.VisibleTo = actor.Username
	}

	tasks, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, storageFailure(s.logger, "list tasks", err, "")
	}

	res := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		res = append(res, *mapTaskToResponse(&tasks[i]))
	}
	return res, nil
}

func (s *taskService) applyDateFilter(filter *repository.TaskFilter, value string) error {
	today := s.clock.Date(s.clock.Now())
	switch filterValue(value) {
	case "":
	case DateFilterToday:
		filter.Date = today.Format(model.DateLayout)
	case DateFilterYesterday:
		filter.Date = today.AddDate(0, 0, -1).Format(model.DateLayout)
	case DateFilterTomorrow:
		filter.Date = today.AddDate(0, 0, 1).Format(model.DateLayout)
	case DateFilterLast30:
		filter.DateFrom = today.AddDate(0, 0, -30).Format(model.DateLayout)
	default:
		return ValidationError("Invalid date filter: " + value)
	}
	return nil
}

func filterValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, DateFilterAll) {
		return ""
	}
	return v
}

func (s *taskService) Update(ctx context.Context, actor Actor, id uint, req UpdateTaskRequest) (*TaskResult, error) {
	return s.mutate(ctx, actor, "update", model.ActionUpdateTask, id, func(task *model.Task) (string, error) {
		if actor.Can(model.CapEditAllFields) {
			return "Task updated successfully", applyFullUpdate(task, req)
		}
		return "Task updated successfully", applyStaffUpdate(task, actor, req)
	})
}

// applyFullUpdate applies every provided field. Completed tasks are editable
// here; only the status value itself is checked.
func applyFullUpdate(task *model.Task, req UpdateTaskRequest) error {
	if req.Status != nil && !model.ValidTaskStatus(*req.Status) {
		return ValidationError("Invalid status: " + *req.Status)
	}

	setString(&task.CustomerName, req.CustomerName)
	setString(&task.ContactNumber, req.ContactNumber)
	setString(&task.ServiceType, req.ServiceType)
	setString(&task.Description, req.Description)
	setString(&task.AssignedTo, req.AssignedTo)
	setString(&task.BranchCode, req.BranchCode)
	setString(&task.Paymode, req.Paymode)
	setString(&task.Status, req.Status)
	setDecimal(&task.ServicePrice, req.ServicePrice)
	setDecimal(&task.PaidAmount, req.PaidAmount)
	setDecimal(&task.ServiceCharge, req.ServiceCharge)

	task.Edited = true
	task.EditReason = strings.TrimSpace(req.EditReason)
	return nil
}

// applyStaffUpdate compares the staff-editable fields in a fixed order and
// records each difference. Other fields in req are ignored.
func applyStaffUpdate(task *model.Task, actor Actor, req UpdateTaskRequest) error {
	if !task.HasAccess(actor.Username) {
		return AuthorizationError("You can only edit tasks assigned to you or shared with you")
	}
	if task.IsCompleted() {
		return AuthorizationError("Completed tasks can only be changed by a manager or admin")
	}

	var changes []string
	if req.Status != nil && *req.Status != task.Status {
		if !model.CanTransition(task.Status, *req.Status) {
			return ValidationError(fmt.Sprintf("Cannot change status from %s to %s", task.Status, *req.Status))
		}
		changes = append(changes, describeChange("status", task.Status, *req.Status))
		task.Status = *req.Status
	}
	if req.Description != nil && *req.Description != task.Description {
		changes = append(changes, describeChange("description", task.Description, *req.Description))
		task.Description = *req.Description
	}
	if req.PaidAmount != nil && !req.PaidAmount.Equal(task.PaidAmount) {
		changes = append(changes, describeChange("paid_amount", task.PaidAmount.String(), req.PaidAmount.String()))
		task.PaidAmount = *req.PaidAmount
	}
	if req.ServiceCharge != nil && !req.ServiceCharge.Equal(task.ServiceCharge) {
		changes = append(changes, describeChange("service_charge", task.ServiceCharge.String(), req.ServiceCharge.String()))
		task.ServiceCharge = *req.ServiceCharge
	}

	if len(changes) == 0 {
		return ValidationError("No allowed fields were modified")
	}

	task.Edited = true
	if reason := strings.TrimSpace(req.EditReason); reason != "" {
		task.EditReason = reason
	} else {
		task.EditReason = strings.Join(changes, "; ")
	}
	return nil
}

func describeChange(field, from, to string) string {
	return fmt.Sprintf("%s changed from %s to %s", field, from, to)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDecimal(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

func (s *taskService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.Can(model.CapDeleteTask) {
		return s.reject("delete", AuthorizationError("Staff cannot delete tasks; cancel the task instead"))
	}

	var deleted *model.Task
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		task, err := s.taskRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.taskRepo.Delete(txCtx, task.ID); err != nil {
			return err
		}
		deleted = task
		return s.audit(txCtx, actor, model.ActionDeleteTask, task, map[string]interface{}{
			"order_no": task.OrderNo,
			"status":   task.Status,
		})
	})
	if err != nil {
		return s.reject("delete", storageFailure(s.logger, "delete task", err, "Task not found"))
	}

	s.metrics.TaskMutation("delete", "success")
	s.notifier.TaskChanged("deleted", mapTaskToResponse(deleted))
	return nil
}

func (s *taskService) Cancel(ctx context.Context, actor Actor, id uint) (*TaskResult, error) {
	return s.mutate(ctx, actor, "cancel", model.ActionCancelTask, id, func(task *model.Task) (string, error) {
		if actor.IsStaff() {
			if !task.HasAccess(actor.Username) {
				return "", AuthorizationError("You can only cancel tasks assigned to you or shared with you")
			}
			if task.IsCompleted() {
				return "", AuthorizationError("Completed tasks can only be cancelled by a manager or admin")
			}
		}
		if task.Status == model.TaskStatusCancelled {
			return "", ValidationError("Task is already cancelled")
		}

		task.Status = model.TaskStatusCancelled
		task.Edited = true
		task.EditReason = fmt.Sprintf("Order cancelled by %s (%s)", actor.Username, actor.Role)
		return "Task cancelled successfully", nil
	})
}

func (s *taskService) Reopen(ctx context.Context, actor Actor, id uint) (*TaskResult, error) {
	if !actor.Can(model.CapReopenTask) {
		return nil, s.reject("reopen", AuthorizationError("Only a manager or admin can reopen a task"))
	}
	return s.mutate(ctx, actor, "reopen", model.ActionReopenTask, id, func(task *model.Task) (string, error) {
		if !task.IsCompleted() {
			return "", ValidationError("Only completed tasks can be reopened")
		}

		prior := task.Status
		task.Status = model.TaskStatusInProgress
		task.Edited = true
		task.EditReason = fmt.Sprintf("Reopened by %s (%s); status changed from %s to %s",
			actor.Username, actor.Role, prior, task.Status)
		return "Task reopened successfully", nil
	})
}

// Takeover adds the actor to the shared list, even when the actor is the
// assignee. Staff cannot take over completed tasks.
func (s *taskService) Takeover(ctx context.Context, actor Actor, id uint) (*TaskResult, error) {
	return s.mutate(ctx, actor, "takeover", model.ActionTakeoverTask, id, func(task *model.Task) (string, error) {
		if actor.IsStaff() && task.IsCompleted() {
			return "", AuthorizationError("Completed tasks cannot be taken over")
		}
		if task.Shared.Contains(actor.Username) {
			return "", errUnchanged("You already have access to this task")
		}

		task.SetSharedWith(append(task.SharedWith(), actor.Username))
		task.Edited = true
		task.EditReason = fmt.Sprintf("Taken over by %s", actor.Username)
		return "Task taken over successfully", nil
	})
}

func (s *taskService) Share(ctx context.Context, actor Actor, id uint, target string) (*TaskResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, s.reject("share", ValidationError("Staff name is required"))
	}

	return s.mutate(ctx, actor, "share", model.ActionShareTask, id, func(task *model.Task) (string, error) {
		if actor.IsStaff() {
			if !task.HasAccess(actor.Username) {
				return "", AuthorizationError("You can only share tasks assigned to you or shared with you")
			}
			if task.IsCompleted() {
				return "", AuthorizationError("Completed tasks can only be shared by a manager or admin")
			}
		}
		if task.Shared.Contains(target) {
			return "", errUnchanged("Task already shared with " + target)
		}

		task.SetSharedWith(append(task.SharedWith(), target))
		task.Edited = true
		task.EditReason = fmt.Sprintf("Shared with %s by %s", target, actor.Username)
		return "Task shared with " + target, nil
	})
}

func (s *taskService) ExportRows(ctx context.Context, actor Actor, limit int) ([]ExportRow, error) {
	if limit <= 0 {
		limit = DefaultExportLimit
	}
	filter := repository.TaskFilter{Limit: limit}
	if !actor.Can(model.CapViewAllTasks) {
		filter.VisibleTo = actor.Username
	}

	tasks, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, storageFailure(s.logger, "export tasks", err, "")
	}

	rows := make([]ExportRow, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		rows = append(rows, ExportRow{
			OrderNo:      t.OrderNo,
			ServiceType:  t.ServiceType,
			CustomerName: t.CustomerName,
			AssignedTo:   t.AssignedTo,
			Status:       t.Status,
			TaskDate:     t.BusinessDate(),
			PaidAmount:   t.PaidAmount,
		})
	}
	return rows, nil
}

// unchanged signals a successful no-op from inside a mutation
type unchanged struct{ message string }

func (u *unchanged) Error() string { return u.message }

func errUnchanged(msg string) error { return &unchanged{message: msg} }

// mutate loads the task under a row lock, applies fn and persists the result
// with an audit row in one transaction. Subscribers are notified after commit.
func (s *taskService) mutate(ctx context.Context, actor Actor, op, action string, id uint, fn func(task *model.Task) (string, error)) (*TaskResult, error) {
	var task *model.Task
	var message string
	var noop *unchanged

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		task, err = s.taskRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		message, err = fn(task)
		if err != nil {
			return err
		}

		if err := s.taskRepo.Update(txCtx, task); err != nil {
			return err
		}
		return s.audit(txCtx, actor, action, task, map[string]interface{}{
			"order_no":    task.OrderNo,
			"status":      task.Status,
			"edit_reason": task.EditReason,
		})
	})

	if errors.As(err, &noop) {
		s.metrics.TaskMutation(op, "unchanged")
		return &TaskResult{Task: mapTaskToResponse(task), Changed: false, Message: noop.message}, nil
	}
	if err != nil {
		return nil, s.reject(op, storageFailure(s.logger, op+" task", err, "Task not found"))
	}

	s.metrics.TaskMutation(op, "success")
	res := &TaskResult{Task: mapTaskToResponse(task), Changed: true, Message: message}
	s.notifier.TaskChanged(op, res.Task)
	return res, nil
}

func (s *taskService) reject(op string, err error) error {
	s.metrics.TaskMutation(op, KindOf(err).String())
	return err
}

func (s *taskService) audit(ctx context.Context, actor Actor, action string, task *model.Task, details map[string]interface{}) error {
	return logTaskAudit(ctx, s.auditRepo, actor, action, task, details)
}

func logTaskAudit(ctx context.Context, repo repository.AuditRepository, actor Actor, action string, task *model.Task, details map[string]interface{}) error {
	details["actor_role"] = actor.Role
	raw, _ := json.Marshal(details)
	return repo.Log(ctx, &model.AuditLog{
		UserID:     actor.userRef(),
		Username:   actor.Username,
		Action:     action,
		EntityID:   strconv.FormatUint(uint64(task.ID), 10),
		EntityName: task.OrderNo,
		Details:    string(raw),
	})
}
