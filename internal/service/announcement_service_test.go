package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"taskflow/internal/model"
)

type fakeAnnouncementRepo struct {
	mu    sync.Mutex
	items []model.Announcement
}

func (r *fakeAnnouncementRepo) Create(ctx context.Context, a *model.Announcement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.New()
	r.items = append(r.items, *a)
	return nil
}

// ListActive returns everything so the service's own expiry check is exercised
func (r *fakeAnnouncementRepo) ListActive(ctx context.Context, today string) ([]model.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Announcement(nil), r.items...), nil
}

func TestAnnouncements(t *testing.T) {
	repo := &fakeAnnouncementRepo{}
	svc := NewAnnouncementService(repo, fixedClock(), testLogger)
	ctx := context.Background()

	if _, err := svc.Create(ctx, staffActor("staff1"), CreateAnnouncementRequest{Title: "Hi", Message: "There"}); !IsKind(err, KindAuthorization) {
		t.Fatalf("staff post: expected authorization error, got %v", err)
	}
	if _, err := svc.Create(ctx, managerActor, CreateAnnouncementRequest{Title: "Hi", Message: "There", ExpiryDate: "15/03/2024"}); !IsKind(err, KindValidation) {
		t.Fatalf("bad date: expected validation error, got %v", err)
	}
	if _, err := svc.Create(ctx, managerActor, CreateAnnouncementRequest{Title: "Hi", Message: "There", Audience: "everyone"}); !IsKind(err, KindValidation) {
		t.Fatalf("bad audience: expected validation error, got %v", err)
	}

	posts := []CreateAnnouncementRequest{
		{Title: "Holiday", Message: "Closed Monday"},
		{Title: "Targets", Message: "Managers only", Audience: model.AudienceManager},
		{Title: "Old", Message: "Expired", ExpiryDate: "2024-03-14"},
		{Title: "Today", Message: "Last day", ExpiryDate: "2024-03-15"},
	}
	for _, p := range posts {
		a, err := svc.Create(ctx, adminActor, p)
		if err != nil {
			t.Fatalf("create %s: %v", p.Title, err)
		}
		if a.CreatedBy != "admin" {
			t.Fatalf("expected created_by admin, got %s", a.CreatedBy)
		}
	}

	staffView, err := svc.List(ctx, staffActor("staff1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(staffView) != 2 || staffView[0].Title != "Holiday" || staffView[1].Title != "Today" {
		t.Fatalf("unexpected staff view %+v", staffView)
	}

	managerView, err := svc.List(ctx, managerActor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(managerView) != 3 {
		t.Fatalf("expected 3 announcements for managers, got %d", len(managerView))
	}
}
