package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

type fakeCatalogRepo struct {
	mu       sync.Mutex
	services map[uuid.UUID]model.Service
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{services: make(map[uuid.UUID]model.Service)}
}

func (r *fakeCatalogRepo) Create(ctx context.Context, svc *model.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc.ID = uuid.New()
	r.services[svc.ID] = *svc
	return nil
}

func (r *fakeCatalogRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[id]
	if !ok {
		return nil, fmt.Errorf("find service: %w", repository.ErrNotFound)
	}
	return &svc, nil
}

func (r *fakeCatalogRepo) Update(ctx context.Context, svc *model.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[svc.ID] = *svc
	return nil
}

func (r *fakeCatalogRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[id]; !ok {
		return fmt.Errorf("delete service: %w", repository.ErrNotFound)
	}
	delete(r.services, id)
	return nil
}

func (r *fakeCatalogRepo) List(ctx context.Context) ([]model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Service, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	return out, nil
}

func newCatalogEnv() (CatalogService, *fakeCatalogRepo, *fakeAuditRepo, *fakePublisher) {
	repo := newFakeCatalogRepo()
	audit := &fakeAuditRepo{}
	pub := &fakePublisher{}
	notifier := NewNotifier(pub, nil, fixedClock(), testLogger)
	return NewCatalogService(repo, audit, &fakeTxManager{}, notifier, testLogger), repo, audit, pub
}

func TestCatalogLifecycle(t *testing.T) {
	svc, repo, audit, pub := newCatalogEnv()
	ctx := context.Background()

	created, err := svc.Create(ctx, managerActor, ServiceRequest{Name: " Repair ", Price: dec("50"), Fee: dec("5")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "Repair" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}

	updated, err := svc.Update(ctx, managerActor, created.ID.String(), ServiceRequest{Name: "Repair Plus", Price: dec("75")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Price.Equal(dec("75")) || updated.Name != "Repair Plus" {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if err := svc.Delete(ctx, adminActor, created.ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.services) != 0 {
		t.Fatalf("service still stored after delete")
	}

	for _, action := range []string{model.ActionCreateService, model.ActionUpdateService, model.ActionDeleteService} {
		if audit.count(action) != 1 {
			t.Fatalf("expected one %s audit entry", action)
		}
	}

	msgs := pub.messages()
	if len(msgs) != 3 {
		t.Fatalf("expected three service events, got %d", len(msgs))
	}
	var ev Event
	if err := json.Unmarshal(msgs[0], &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != EventServiceUpdated {
		t.Fatalf("unexpected event type %s", ev.Type)
	}
}

func TestCatalogPermissions(t *testing.T) {
	svc, _, _, _ := newCatalogEnv()
	ctx := context.Background()

	if _, err := svc.Create(ctx, staffActor("staff1"), ServiceRequest{Name: "Sales"}); !IsKind(err, KindAuthorization) {
		t.Fatalf("staff create: expected authorization error, got %v", err)
	}
	created, err := svc.Create(ctx, managerActor, ServiceRequest{Name: "Sales"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, managerActor, created.ID.String()); !IsKind(err, KindAuthorization) {
		t.Fatalf("manager delete: expected authorization error, got %v", err)
	}
}

func TestCatalogValidation(t *testing.T) {
	svc, _, _, _ := newCatalogEnv()
	ctx := context.Background()

	if _, err := svc.Create(ctx, managerActor, ServiceRequest{Name: "  "}); !IsKind(err, KindValidation) {
		t.Fatalf("blank name: expected validation error, got %v", err)
	}
	if _, err := svc.Update(ctx, managerActor, "not-a-uuid", ServiceRequest{Name: "X"}); !IsKind(err, KindValidation) {
		t.Fatalf("bad id: expected validation error, got %v", err)
	}
	if _, err := svc.Update(ctx, managerActor, uuid.NewString(), ServiceRequest{Name: "X"}); !IsKind(err, KindNotFound) {
		t.Fatalf("missing service: expected not found, got %v", err)
	}
}

func TestDeletingServiceKeepsTasks(t *testing.T) {
	env := newTaskEnv()
	catalog, _, _, _ := newCatalogEnv()
	ctx := context.Background()

	created, err := catalog.Create(ctx, adminActor, ServiceRequest{Name: "Support"})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	req := newTaskRequest("Dana")
	req.ServiceType = "Support"
	task, err := env.svc.Create(ctx, adminActor, req)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	env.notifier.Wait()

	if err := catalog.Delete(ctx, adminActor, created.ID.String()); err != nil {
		t.Fatalf("delete service: %v", err)
	}
	got, err := env.svc.Get(ctx, adminActor, task.Task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.ServiceType != "Support" {
		t.Fatalf("task lost its service name: %+v", got)
	}
}
