package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"taskflow/internal/metrics"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// AutoAssignBatchSize caps how many pending tasks one run distributes
const AutoAssignBatchSize = 50

type Assignment struct {
	TaskID     uint   `json:"task_id"`
	OrderNo    string `json:"order_no"`
	AssignedTo string `json:"assigned_to"`
}

type AutoAssignResult struct {
	Assigned    int          `json:"assigned"`
	Assignments []Assignment `json:"assignments"`
	Message     string       `json:"message"`
}

type AssignService interface {
	// AutoAssign distributes the oldest Pending tasks, optionally limited to
	// one service type, across staff ordered by current workload.
	AutoAssign(ctx context.Context, actor Actor, serviceType string) (*AutoAssignResult, error)
}

type assignService struct {
	taskRepo  repository.TaskRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	notifier  *Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewAssignService(
	taskRepo repository.TaskRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier *Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) AssignService {
	return &assignService{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
	}
}

type staffLoad struct {
	username string
	active   int
}

// rankByWorkload orders staff by active task count, lightest first. Equal
// loads keep the order of staff.
func rankByWorkload(staff []model.User, counts map[string]int) []staffLoad {
	ranked := make([]staffLoad, 0, len(staff))
	for _, u := range staff {
		ranked = append(ranked, staffLoad{username: u.Username, active: counts[u.Username]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].active < ranked[j].active
	})
	return ranked
}

// AutoAssign walks the workload ranking round-robin. Loads are read once per
// run and not updated as tasks are handed out, so a batch larger than the
// staff count spreads evenly rather than filling the lightest member first.
func (s *assignService) AutoAssign(ctx context.Context, actor Actor, serviceType string) (*AutoAssignResult, error) {
	if !actor.Can(model.CapAutoAssign) {
		s.metrics.TaskMutation("auto_assign", KindAuthorization.String())
		return nil, AuthorizationError("Only a manager or admin can auto-assign tasks")
	}
	serviceType = filterValue(serviceType)

	var assigned []*model.Task
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		staff, err := s.userRepo.ListByRole(txCtx, model.RoleStaff)
		if err != nil {
			return err
		}
		if len(staff) == 0 {
			return ValidationError("No staff available for assignment")
		}

		counts, err := s.taskRepo.CountActiveByAssignee(txCtx)
		if err != nil {
			return err
		}
		ranked := rankByWorkload(staff, counts)

		pending, err := s.taskRepo.ListOldestByStatus(txCtx, model.TaskStatusPending, serviceType, AutoAssignBatchSize)
		if err != nil {
			return err
		}

		for i := range pending {
			task := &pending[i]
			to := ranked[i%len(ranked)].username

			task.AssignedTo = to
			task.Status = model.TaskStatusInProgress
			task.Edited = true
			task.EditReason = "Auto-assigned to " + to

			if err := s.taskRepo.Update(txCtx, task); err != nil {
				return err
			}
			if err := s.logAssignment(txCtx, actor, task); err != nil {
				return err
			}
			assigned = append(assigned, task)
		}
		return nil
	})
	if err != nil {
		err = storageFailure(s.logger, "auto assign", err, "")
		s.metrics.TaskMutation("auto_assign", KindOf(err).String())
		return nil, err
	}

	s.metrics.TaskMutation("auto_assign", "success")

	res := &AutoAssignResult{Assigned: len(assigned), Assignments: make([]Assignment, 0, len(assigned))}
	updates := make([]*TaskResponse, 0, len(assigned))
	for _, t := range assigned {
		res.Assignments = append(res.Assignments, Assignment{TaskID: t.ID, OrderNo: t.OrderNo, AssignedTo: t.AssignedTo})
		updates = append(updates, mapTaskToResponse(t))
	}

	if len(assigned) == 0 {
		res.Message = "No pending tasks to assign"
		return res, nil
	}
	res.Message = fmt.Sprintf("Assigned %d task(s)", len(assigned))
	s.notifier.TasksChanged("auto_assign", updates)
	return res, nil
}

func (s *assignService) logAssignment(ctx context.Context, actor Actor, task *model.Task) error {
	return logTaskAudit(ctx, s.auditRepo, actor, model.ActionAutoAssignTask, task, map[string]interface{}{
		"order_no":     task.OrderNo,
		"assigned_to":  task.AssignedTo,
		"service_type": task.ServiceType,
	})
}
