package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"taskflow/internal/mailer"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type txKey struct{}

// fakeTxManager serializes units of work the way row locks do in Postgres
type fakeTxManager struct {
	mu sync.Mutex
}

func (f *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func copyTask(t *model.Task) *model.Task {
	c := *t
	c.Shared = append(model.SharedWith{}, t.Shared...)
	return &c
}

type fakeTaskRepo struct {
	mu     sync.Mutex
	tasks  map[uint]*model.Task
	nextID uint
	seq    int
	now    func() time.Time

	failCreate error
}

func newFakeTaskRepo(now func() time.Time) *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[uint]*model.Task), now: now}
}

// seed stores t as-is, keeping the given ID and timestamps when set
func (r *fakeTaskRepo) seed(t model.Task) *model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		r.nextID++
		t.ID = r.nextID
	} else if t.ID > r.nextID {
		r.nextID = t.ID
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}
	if t.Shared == nil {
		t.Shared = model.SharedWith{}
	}
	r.tasks[t.ID] = copyTask(&t)
	return copyTask(&t)
}

func (r *fakeTaskRepo) get(id uint) *model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		return copyTask(t)
	}
	return nil
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	for _, t := range r.tasks {
		if t.OrderNo == task.OrderNo {
			return fmt.Errorf("create task: %w", repository.ErrDuplicate)
		}
	}
	r.nextID++
	task.ID = r.nextID
	task.CreatedAt = r.now()
	task.UpdatedAt = task.CreatedAt
	r.tasks[task.ID] = copyTask(task)
	return nil
}

func (r *fakeTaskRepo) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	if t := r.get(id); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("find task: %w", repository.ErrNotFound)
}

func (r *fakeTaskRepo) FindByIDForUpdate(ctx context.Context, id uint) (*model.Task, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return fmt.Errorf("update task: %w", repository.ErrNotFound)
	}
	task.UpdatedAt = r.now()
	r.tasks[task.ID] = copyTask(task)
	return nil
}

func (r *fakeTaskRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return fmt.Errorf("delete task: %w", repository.ErrNotFound)
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) all() []model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *copyTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeTaskRepo) List(ctx context.Context, f repository.TaskFilter) ([]model.Task, error) {
	var out []model.Task
	for _, t := range r.all() {
		switch {
		case f.Date != "" && t.BusinessDate() != f.Date:
		case f.DateFrom != "" && t.BusinessDate() < f.DateFrom:
		case f.Branch != "" && t.BranchCode != f.Branch:
		case f.AssignedTo != "" && t.AssignedTo != f.AssignedTo:
		case f.Status != "" && t.Status != f.Status:
		case f.ServiceType != "" && t.ServiceType != f.ServiceType:
		case f.VisibleTo != "" && !t.HasAccess(f.VisibleTo):
		case f.Search != "" && !strings.Contains(strings.ToLower(t.OrderNo+" "+t.CustomerName+" "+t.ContactNumber), strings.ToLower(f.Search)):
		default:
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeTaskRepo) ListAll(ctx context.Context) ([]model.Task, error) {
	return r.all(), nil
}

func (r *fakeTaskRepo) ListByDateRange(ctx context.Context, from, to string) ([]model.Task, error) {
	var out []model.Task
	for _, t := range r.all() {
		if d := t.BusinessDate(); d >= from && d <= to {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListOldestByStatus(ctx context.Context, status, serviceType string, limit int) ([]model.Task, error) {
	var out []model.Task
	for _, t := range r.all() {
		if t.Status == status && (serviceType == "" || t.ServiceType == serviceType) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTaskRepo) CountActiveByAssignee(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, t := range r.all() {
		if t.AssignedTo != "" && t.IsActive() {
			counts[t.AssignedTo]++
		}
	}
	return counts, nil
}

func (r *fakeTaskRepo) NextOrderNumber(ctx context.Context) (int, error) {
	existing := make([]string, 0)
	for _, t := range r.all() {
		existing = append(existing, t.OrderNo)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = model.NextOrderNumber(r.seq, existing)
	return r.seq, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users []model.User
}

func newFakeUserRepo(users ...model.User) *fakeUserRepo {
	r := &fakeUserRepo{}
	for _, u := range users {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		r.users = append(r.users, u)
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return fmt.Errorf("create user: %w", repository.ErrDuplicate)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users = append(r.users, *user)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID.String() == id {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", repository.ErrNotFound)
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", repository.ErrNotFound)
}

func (r *fakeUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := (page - 1) * limit
	if start > len(r.users) {
		start = len(r.users)
	}
	end := start + limit
	if end > len(r.users) {
		end = len(r.users)
	}
	return append([]model.User(nil), r.users[start:end]...), int64(len(r.users)), nil
}

func (r *fakeUserRepo) ListByRole(ctx context.Context, role string) ([]model.User, error) {
	return r.ListByRoles(ctx, role)
}

func (r *fakeUserRepo) ListByRoles(ctx context.Context, roles ...string) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *fakeAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if entityID == "" || r.entries[i].EntityID == entityID {
			out = append(out, r.entries[i])
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeAuditRepo) count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (p *fakePublisher) Publish(msg []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return true
}

func (p *fakePublisher) messages() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.msgs...)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail error
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

var (
	adminActor   = Actor{UserID: uuid.New(), Username: "admin", Role: model.RoleAdmin}
	managerActor = Actor{UserID: uuid.New(), Username: "manager", Role: model.RoleManager}
)

func staffActor(name string) Actor {
	return Actor{UserID: uuid.New(), Username: name, Role: model.RoleStaff}
}

// fixedClock returns a UTC clock stopped at 2024-03-15 10:00
func fixedClock() Clock {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	return Clock{Location: time.UTC, NowFunc: func() time.Time { return now }}
}

func dateOf(s string) datatypes.Date {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return datatypes.Date(t)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type taskEnv struct {
	clock    Clock
	tasks    *fakeTaskRepo
	users    *fakeUserRepo
	audit    *fakeAuditRepo
	pub      *fakePublisher
	notifier *Notifier
	svc      TaskService
	assign   AssignService
}

func newTaskEnv() *taskEnv {
	clock := fixedClock()
	env := &taskEnv{
		clock: clock,
		tasks: newFakeTaskRepo(clock.Now),
		users: newFakeUserRepo(),
		audit: &fakeAuditRepo{},
		pub:   &fakePublisher{},
	}
	tx := &fakeTxManager{}
	dashboard := NewDashboardService(env.tasks, env.users, clock, testLogger)
	env.notifier = NewNotifier(env.pub, dashboard, clock, testLogger)
	env.svc = NewTaskService(env.tasks, env.audit, tx, env.notifier, nil, clock, testLogger)
	env.assign = NewAssignService(env.tasks, env.users, env.audit, tx, env.notifier, nil, testLogger)
	return env
}
