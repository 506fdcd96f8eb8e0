package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

func strPtr(s string) *string { return &s }

func newTaskRequest(customer string) CreateTaskRequest {
	return CreateTaskRequest{
		CustomerName:  customer,
		ContactNumber: "0400000000",
		ServiceType:   "Repair",
		PaidAmount:    dec("100"),
	}
}

func TestCreateAllocatesContiguousOrderNumbersUnderConcurrency(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	orderNos := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.svc.Create(ctx, staffActor("staff1"), newTaskRequest(fmt.Sprintf("Customer %d", i)))
			if err != nil {
				errs[i] = err
				return
			}
			orderNos[i] = res.Task.OrderNo
		}(i)
	}
	wg.Wait()
	env.notifier.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	sort.Strings(orderNos)
	for i, orderNo := range orderNos {
		if want := model.FormatOrderNo(i + 1); orderNo != want {
			t.Fatalf("expected %s at position %d, got %s", want, i, orderNo)
		}
	}
}

func TestCreateContinuesAfterHighestExistingOrder(t *testing.T) {
	env := newTaskEnv()
	env.tasks.seed(model.Task{OrderNo: "TF-007", CustomerName: "Old", Status: model.TaskStatusCompleted})

	res, err := env.svc.Create(context.Background(), managerActor, newTaskRequest("New"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	env.notifier.Wait()

	if res.Task.OrderNo != "TF-008" {
		t.Fatalf("expected TF-008, got %s", res.Task.OrderNo)
	}
	if res.Task.Status != model.TaskStatusReceived {
		t.Fatalf("expected default status Received, got %s", res.Task.Status)
	}
	if res.Task.Paymode != model.DefaultPaymode {
		t.Fatalf("expected default paymode, got %s", res.Task.Paymode)
	}
	if res.Task.TaskDate != "2024-03-15" {
		t.Fatalf("expected business date 2024-03-15, got %s", res.Task.TaskDate)
	}
	if env.audit.count(model.ActionCreateTask) != 1 {
		t.Fatalf("expected one create audit entry")
	}
}

func TestCreateAcceptsUnknownAssigneeAndService(t *testing.T) {
	env := newTaskEnv()
	req := newTaskRequest("Walk-in")
	req.AssignedTo = "ghost"
	req.ServiceType = "Not In Catalog"

	res, err := env.svc.Create(context.Background(), managerActor, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	env.notifier.Wait()
	if res.Task.AssignedTo != "ghost" || res.Task.ServiceType != "Not In Catalog" {
		t.Fatalf("expected free-text references to be stored, got %+v", res.Task)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()

	req := newTaskRequest("")
	if _, err := env.svc.Create(ctx, managerActor, req); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error for missing customer, got %v", err)
	}

	req = newTaskRequest("Bob")
	req.Status = "Shipped"
	if _, err := env.svc.Create(ctx, managerActor, req); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	env := newTaskEnv()
	env.tasks.failCreate = fmt.Errorf("insert: %w", repository.ErrDuplicate)

	_, err := env.svc.Create(context.Background(), managerActor, newTaskRequest("Bob"))
	if !IsKind(err, KindConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestStaffStatusEditRecordsReason(t *testing.T) {
	env := newTaskEnv()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusPending, AssignedTo: "staff1"})

	res, err := env.svc.Update(context.Background(), staffActor("staff1"), task.ID, UpdateTaskRequest{
		Status: strPtr(model.TaskStatusInProgress),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	env.notifier.Wait()

	want := "status changed from Pending to In Progress"
	if res.Task.EditReason != want {
		t.Fatalf("expected reason %q, got %q", want, res.Task.EditReason)
	}
	stored := env.tasks.get(task.ID)
	if stored.Status != model.TaskStatusInProgress || !stored.Edited {
		t.Fatalf("expected stored task to be edited and In Progress, got %+v", stored)
	}
}

func TestStaffEditJoinsChangesInFieldOrder(t *testing.T) {
	env := newTaskEnv()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusPending, AssignedTo: "staff1", PaidAmount: dec("10")})

	paid := dec("25")
	res, err := env.svc.Update(context.Background(), staffActor("staff1"), task.ID, UpdateTaskRequest{
		PaidAmount:   &paid,
		Description:  strPtr("screen replaced"),
		CustomerName: strPtr("ignored"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	env.notifier.Wait()

	want := "description changed from  to screen replaced; paid_amount changed from 10 to 25"
	if res.Task.EditReason != want {
		t.Fatalf("expected reason %q, got %q", want, res.Task.EditReason)
	}
	if res.Task.CustomerName != "" {
		t.Fatalf("staff must not change customer_name")
	}
}

func TestStaffEditWithoutAllowedChangesIsRejected(t *testing.T) {
	env := newTaskEnv()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusPending, AssignedTo: "staff1"})

	_, err := env.svc.Update(context.Background(), staffActor("staff1"), task.ID, UpdateTaskRequest{
		CustomerName: strPtr("Someone else"),
	})
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if env.tasks.get(task.ID).Edited {
		t.Fatalf("rejected update must not mark the task edited")
	}
}

func TestStaffCannotTouchOthersTasks(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusPending, AssignedTo: "staff1"})
	outsider := staffActor("staff2")

	if _, err := env.svc.Get(ctx, outsider, task.ID); !IsKind(err, KindAuthorization) {
		t.Fatalf("get: expected authorization error, got %v", err)
	}
	if _, err := env.svc.Update(ctx, outsider, task.ID, UpdateTaskRequest{Status: strPtr(model.TaskStatusHold)}); !IsKind(err, KindAuthorization) {
		t.Fatalf("update: expected authorization error, got %v", err)
	}
	if _, err := env.svc.Cancel(ctx, outsider, task.ID); !IsKind(err, KindAuthorization) {
		t.Fatalf("cancel: expected authorization error, got %v", err)
	}
	if _, err := env.svc.Share(ctx, outsider, task.ID, "staff3"); !IsKind(err, KindAuthorization) {
		t.Fatalf("share: expected authorization error, got %v", err)
	}
	if err := env.svc.Delete(ctx, staffActor("staff1"), task.ID); !IsKind(err, KindAuthorization) {
		t.Fatalf("delete: expected authorization error, got %v", err)
	}
	if _, err := env.svc.Reopen(ctx, staffActor("staff1"), task.ID); !IsKind(err, KindAuthorization) {
		t.Fatalf("reopen: expected authorization error, got %v", err)
	}

	if stored := env.tasks.get(task.ID); stored.Status != model.TaskStatusPending || stored.Edited {
		t.Fatalf("rejected operations must leave the task untouched, got %+v", stored)
	}
}

func TestSharedStaffMayEdit(t *testing.T) {
	env := newTaskEnv()
	task := env.tasks.seed(model.Task{
		OrderNo:    "TF-001",
		Status:     model.TaskStatusPending,
		AssignedTo: "staff1",
		Shared:     model.SharedWith{"staff2"},
	})

	if _, err := env.svc.Update(context.Background(), staffActor("staff2"), task.ID, UpdateTaskRequest{
		Status: strPtr(model.TaskStatusHold),
	}); err != nil {
		t.Fatalf("shared staff update: %v", err)
	}
	env.notifier.Wait()
}

func TestCompletedTasksAreImmutableForStaff(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusCompleted, AssignedTo: "staff1"})
	owner := staffActor("staff1")

	if _, err := env.svc.Update(ctx, owner, task.ID, UpdateTaskRequest{Status: strPtr(model.TaskStatusInProgress)}); !IsKind(err, KindAuthorization) {
		t.Fatalf("update: expected authorization error, got %v", err)
	}
	if _, err := env.svc.Cancel(ctx, owner, task.ID); !IsKind(err, KindAuthorization) {
		t.Fatalf("cancel: expected authorization error, got %v", err)
	}
	if _, err := env.svc.Share(ctx, owner, task.ID, "staff2"); !IsKind(err, KindAuthorization) {
		t.Fatalf("share: expected authorization error, got %v", err)
	}
	if _, err := env.svc.Takeover(ctx, staffActor("staff3"), task.ID); !IsKind(err, KindAuthorization) {
		t.Fatalf("takeover: expected authorization error, got %v", err)
	}

	stored := env.tasks.get(task.ID)
	if stored.Status != model.TaskStatusCompleted || stored.Edited || len(stored.Shared) != 0 {
		t.Fatalf("completed task changed: %+v", stored)
	}
}

func TestManagerMayEditCompletedTask(t *testing.T) {
	env := newTaskEnv()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusCompleted, AssignedTo: "staff1"})

	res, err := env.svc.Update(context.Background(), managerActor, task.ID, UpdateTaskRequest{
		CustomerName: strPtr("Corrected Name"),
		EditReason:   "typo",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	env.notifier.Wait()
	if res.Task.CustomerName != "Corrected Name" || res.Task.EditReason != "typo" || !res.Task.Edited {
		t.Fatalf("unexpected result %+v", res.Task)
	}
}

func TestManagerReopenMovesCompletedToInProgress(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusCompleted, AssignedTo: "staff1"})

	res, err := env.svc.Reopen(ctx, managerActor, task.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	env.notifier.Wait()

	if res.Task.Status != model.TaskStatusInProgress || !res.Task.Edited {
		t.Fatalf("expected edited In Progress task, got %+v", res.Task)
	}
	if !strings.Contains(res.Task.EditReason, model.TaskStatusCompleted) {
		t.Fatalf("reason should mention prior status, got %q", res.Task.EditReason)
	}

	if _, err := env.svc.Reopen(ctx, managerActor, task.ID); !IsKind(err, KindValidation) {
		t.Fatalf("reopening an open task: expected validation error, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusPending, AssignedTo: "staff1"})

	res, err := env.svc.Cancel(ctx, staffActor("staff1"), task.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	env.notifier.Wait()

	if res.Task.Status != model.TaskStatusCancelled {
		t.Fatalf("expected Cancelled, got %s", res.Task.Status)
	}
	if want := "Order cancelled by staff1 (staff)"; res.Task.EditReason != want {
		t.Fatalf("expected reason %q, got %q", want, res.Task.EditReason)
	}

	if _, err := env.svc.Cancel(ctx, managerActor, task.ID); !IsKind(err, KindValidation) {
		t.Fatalf("second cancel: expected validation error, got %v", err)
	}
}

func TestShareIsIdempotent(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusPending, AssignedTo: "staff1"})
	owner := staffActor("staff1")

	first, err := env.svc.Share(ctx, owner, task.ID, "staff2")
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	second, err := env.svc.Share(ctx, owner, task.ID, " staff2 ")
	if err != nil {
		t.Fatalf("second share: %v", err)
	}
	env.notifier.Wait()

	if !first.Changed || second.Changed {
		t.Fatalf("expected only the first share to change the task")
	}
	if second.Message != "Task already shared with staff2" {
		t.Fatalf("unexpected message %q", second.Message)
	}
	if got := env.tasks.get(task.ID).SharedWith(); len(got) != 1 || got[0] != "staff2" {
		t.Fatalf("expected shared_with [staff2], got %v", got)
	}
	if env.audit.count(model.ActionShareTask) != 1 {
		t.Fatalf("no-op share must not be audited")
	}

	if _, err := env.svc.Share(ctx, owner, task.ID, "  "); !IsKind(err, KindValidation) {
		t.Fatalf("blank target: expected validation error, got %v", err)
	}
}

func TestTakeoverIsIdempotent(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusPending, AssignedTo: "staff1"})

	res, err := env.svc.Takeover(ctx, staffActor("staff1"), task.ID)
	if err != nil {
		t.Fatalf("takeover by assignee: %v", err)
	}
	if !res.Changed || len(res.Task.SharedWith) != 1 || res.Task.SharedWith[0] != "staff1" {
		t.Fatalf("assignee takeover should add the assignee to shared_with, got %+v", res)
	}
	if res, err = env.svc.Takeover(ctx, staffActor("staff1"), task.ID); err != nil || res.Changed {
		t.Fatalf("second assignee takeover should be a no-op, got %+v, %v", res, err)
	}

	res, err = env.svc.Takeover(ctx, staffActor("staff2"), task.ID)
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected takeover to change the task")
	}

	res, err = env.svc.Takeover(ctx, staffActor("staff2"), task.ID)
	if err != nil {
		t.Fatalf("repeat takeover: %v", err)
	}
	env.notifier.Wait()
	if res.Changed || res.Message != "You already have access to this task" {
		t.Fatalf("expected unchanged repeat, got %+v", res)
	}
	if got := env.tasks.get(task.ID).SharedWith(); len(got) != 2 || got[0] != "staff1" || got[1] != "staff2" {
		t.Fatalf("expected [staff1 staff2], got %v", got)
	}
}

func TestEditedNeverResets(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusPending, AssignedTo: "staff1"})
	owner := staffActor("staff1")

	steps := []func() error{
		func() error {
			_, err := env.svc.Update(ctx, owner, task.ID, UpdateTaskRequest{Status: strPtr(model.TaskStatusInProgress)})
			return err
		},
		func() error { _, err := env.svc.Share(ctx, owner, task.ID, "staff2"); return err },
		func() error { _, err := env.svc.Share(ctx, owner, task.ID, "staff2"); return err },
		func() error { _, err := env.svc.Takeover(ctx, owner, task.ID); return err },
		func() error {
			_, err := env.svc.Update(ctx, managerActor, task.ID, UpdateTaskRequest{Status: strPtr(model.TaskStatusCompleted)})
			return err
		},
		func() error { _, err := env.svc.Reopen(ctx, managerActor, task.ID); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !env.tasks.get(task.ID).Edited {
			t.Fatalf("edited flag reset after step %d", i)
		}
	}
	env.notifier.Wait()
}

func TestDelete(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", Status: model.TaskStatusPending})

	if err := env.svc.Delete(ctx, managerActor, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	env.notifier.Wait()
	if env.tasks.get(task.ID) != nil {
		t.Fatalf("task still stored after delete")
	}
	if err := env.svc.Delete(ctx, adminActor, task.ID); !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListScopesStaffToOwnAndShared(t *testing.T) {
	env := newTaskEnv()
	ctx := context.Background()
	env.tasks.seed(model.Task{OrderNo: "TF-001", AssignedTo: "staff1", Status: model.TaskStatusPending, TaskDate: dateOf("2024-03-15")})
	env.tasks.seed(model.Task{OrderNo: "TF-002", AssignedTo: "staff2", Status: model.TaskStatusPending, TaskDate: dateOf("2024-03-14")})
	env.tasks.seed(model.Task{OrderNo: "TF-003", AssignedTo: "staff2", Shared: model.SharedWith{"staff1"}, Status: model.TaskStatusHold, TaskDate: dateOf("2024-03-15")})

	mine, err := env.svc.List(ctx, staffActor("staff1"), TaskListQuery{Date: "all"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 || mine[0].OrderNo != "TF-003" || mine[1].OrderNo != "TF-001" {
		t.Fatalf("expected TF-003, TF-001 newest first, got %+v", mine)
	}

	all, err := env.svc.List(ctx, managerActor, TaskListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("manager should see every task, got %d", len(all))
	}

	yesterday, err := env.svc.List(ctx, managerActor, TaskListQuery{Date: "yesterday"})
	if err != nil {
		t.Fatalf("list yesterday: %v", err)
	}
	if len(yesterday) != 1 || yesterday[0].OrderNo != "TF-002" {
		t.Fatalf("expected only TF-002 yesterday, got %+v", yesterday)
	}

	if _, err := env.svc.List(ctx, managerActor, TaskListQuery{Date: "next-week"}); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error for unknown date filter, got %v", err)
	}
}

func TestExportRowsFollowVisibility(t *testing.T) {
	env := newTaskEnv()
	env.tasks.seed(model.Task{OrderNo: "TF-001", AssignedTo: "staff1", PaidAmount: dec("12.5"), TaskDate: dateOf("2024-03-15")})
	env.tasks.seed(model.Task{OrderNo: "TF-002", AssignedTo: "staff2", TaskDate: dateOf("2024-03-15")})

	rows, err := env.svc.ExportRows(context.Background(), staffActor("staff1"), 0)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 1 || rows[0].OrderNo != "TF-001" || !rows[0].PaidAmount.Equal(dec("12.5")) {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestMutationsNotifySubscribers(t *testing.T) {
	env := newTaskEnv()

	if _, err := env.svc.Create(context.Background(), managerActor, newTaskRequest("Ann")); err != nil {
		t.Fatalf("create: %v", err)
	}
	env.notifier.Wait()

	msgs := env.pub.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected task and dashboard events, got %d", len(msgs))
	}
	var first, second Event
	if err := json.Unmarshal(msgs[0], &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal(msgs[1], &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Type != EventTaskUpdated || second.Type != EventDashboardUpdated {
		t.Fatalf("unexpected event order %s, %s", first.Type, second.Type)
	}
	if !first.Timestamp.Equal(env.clock.Now()) {
		t.Fatalf("expected clock timestamp, got %v", first.Timestamp)
	}
}

func TestNoopDoesNotNotify(t *testing.T) {
	env := newTaskEnv()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", AssignedTo: "staff1", Shared: model.SharedWith{"staff1"}, Status: model.TaskStatusPending})

	if _, err := env.svc.Takeover(context.Background(), staffActor("staff1"), task.ID); err != nil {
		t.Fatalf("takeover: %v", err)
	}
	env.notifier.Wait()
	if n := len(env.pub.messages()); n != 0 {
		t.Fatalf("expected no events for a no-op, got %d", n)
	}
}

func TestTaskUpdatedAtAdvances(t *testing.T) {
	env := newTaskEnv()
	task := env.tasks.seed(model.Task{OrderNo: "TF-001", AssignedTo: "staff1", Status: model.TaskStatusPending, CreatedAt: env.clock.Now().Add(-time.Hour)})

	res, err := env.svc.Update(context.Background(), managerActor, task.ID, UpdateTaskRequest{Status: strPtr(model.TaskStatusHold)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	env.notifier.Wait()
	if res.Task.UpdatedAt != env.clock.Now().Format(time.RFC3339) {
		t.Fatalf("expected updated_at to be set on save, got %s", res.Task.UpdatedAt)
	}
}
