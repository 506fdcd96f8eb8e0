package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taskflow/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskFilter narrows task listings. Empty fields are ignored.
type TaskFilter struct {
	Date        string // exact task_date, YYYY-MM-DD
	DateFrom    string // task_date on or after, YYYY-MM-DD
	Branch      string
	AssignedTo  string
	Status      string
	ServiceType string
	Search      string // order_no, customer_name or contact_number substring
	VisibleTo   string // only tasks assigned to or shared with this username
	Limit       int
}

type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id uint) (*model.Task, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	ListAll(ctx context.Context) ([]model.Task, error)
	ListByDateRange(ctx context.Context, from, to string) ([]model.Task, error)
	ListOldestByStatus(ctx context.Context, status, serviceType string, limit int) ([]model.Task, error)
	CountActiveByAssignee(ctx context.Context) (map[string]int, error)
	NextOrderNumber(ctx context.Context) (int, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return translate("create task", GetDB(ctx, r.db).Create(task).Error)
}

func (r *taskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := GetDB(ctx, r.db).First(&task, "id = ?", id).Error; err != nil {
		return nil, translate("find task", err)
	}
	return &task, nil
}

// FindByIDForUpdate row-locks the task until the surrounding transaction ends
func (r *taskRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := GetLockingDB(ctx, r.db).First(&task, "id = ?", id).Error; err != nil {
		return nil, translate("lock task", err)
	}
	return &task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task) error {
	return translate("update task", GetDB(ctx, r.db).Save(task).Error)
}

func (r *taskRepository) Delete(ctx context.Context, id uint) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Task{})
	if res.Error != nil {
		return translate("delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete task: %w", ErrNotFound)
	}
	return nil
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query := GetDB(ctx, r.db).Model(&model.Task{})

	if filter.Date != "" {
		query = query.Where("task_date = ?", filter.Date)
	}
	if filter.DateFrom != "" {
		query = query.Where("task_date >= ?", filter.DateFrom)
	}
	if filter.Branch != "" {
		query = query.Where("branch_code = ?", filter.Branch)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ServiceType != "" {
		query = query.Where("service_type = ?", filter.ServiceType)
	}
	if filter.Search != "" {
		like := "%" + escapeLike(filter.Search) + "%"
		query = query.Where("order_no ILIKE ? OR customer_name ILIKE ? OR contact_number ILIKE ?", like, like, like)
	}
	if filter.VisibleTo != "" {
		query = query.Where("assigned_to = ? OR shared_with LIKE ?", filter.VisibleTo, sharedMemberPattern(filter.VisibleTo))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var tasks []model.Task
	if err := query.Order("created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, translate("list tasks", err)
	}
	return tasks, nil
}

func (r *taskRepository) ListAll(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := GetDB(ctx, r.db).Order("created_at ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, translate("list all tasks", err)
	}
	return tasks, nil
}

// ListByDateRange returns tasks whose business date lies in [from, to]
func (r *taskRepository) ListByDateRange(ctx context.Context, from, to string) ([]model.Task, error) {
	var tasks []model.Task
	if err := GetDB(ctx, r.db).
		Where("task_date >= ? AND task_date <= ?", from, to).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, translate("list tasks by date", err)
	}
	return tasks, nil
}

// ListOldestByStatus locks and returns up to limit tasks with status, oldest first
func (r *taskRepository) ListOldestByStatus(ctx context.Context, status, serviceType string, limit int) ([]model.Task, error) {
	query := GetLockingDB(ctx, r.db).Where("status = ?", status)
	if serviceType != "" {
		query = query.Where("service_type = ?", serviceType)
	}

	var tasks []model.Task
	if err := query.Order("created_at ASC, id ASC").Limit(limit).Find(&tasks).Error; err != nil {
		return nil, translate("list tasks by status", err)
	}
	return tasks, nil
}

// CountActiveByAssignee counts Pending, In Progress and Hold tasks per assignee
func (r *taskRepository) CountActiveByAssignee(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		AssignedTo string
		Total      int
	}
	if err := GetDB(ctx, r.db).Model(&model.Task{}).
		Select("assigned_to, COUNT(*) AS total").
		Where("status IN ?", model.ActiveStatuses).
		Group("assigned_to").
		Scan(&rows).Error; err != nil {
		return nil, translate("count workload", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.AssignedTo] = row.Total
	}
	return counts, nil
}

// NextOrderNumber allocates the next order suffix. The sequence row stays
// locked until the caller's transaction commits, so concurrent creates queue
// up behind it instead of reading the same maximum.
func (r *taskRepository) NextOrderNumber(ctx context.Context) (int, error) {
	db := GetDB(ctx, r.db)

	seq, err := r.lockSequence(db)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.OrderSequence{Name: model.TaskOrderSequence}).Error; err != nil {
			return 0, translate("create order sequence", err)
		}
		seq, err = r.lockSequence(db)
	}
	if err != nil {
		return 0, translate("lock order sequence", err)
	}

	var orderNos []string
	if err := db.Model(&model.Task{}).
		Where("order_no LIKE ?", model.OrderNoPrefix+"%").
		Pluck("order_no", &orderNos).Error; err != nil {
		return 0, translate("read order numbers", err)
	}

	next := model.NextOrderNumber(seq.Value, orderNos)
	if err := db.Model(&model.OrderSequence{}).
		Where("name = ?", seq.Name).
		Update("value", next).Error; err != nil {
		return 0, translate("advance order sequence", err)
	}
	return next, nil
}

func (r *taskRepository) lockSequence(db *gorm.DB) (*model.OrderSequence, error) {
	var seq model.OrderSequence
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&seq, "name = ?", model.TaskOrderSequence).Error; err != nil {
		return nil, err
	}
	return &seq, nil
}

// sharedMemberPattern matches a username inside the JSON-encoded shared_with
// column. The name is encoded the same way the column is written, so HTML
// escapes such as \u003c line up.
func sharedMemberPattern(username string) string {
	encoded, err := json.Marshal(username)
	if err != nil {
		encoded = []byte(`"` + username + `"`)
	}
	return "%" + escapeLike(string(encoded)) + "%"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
