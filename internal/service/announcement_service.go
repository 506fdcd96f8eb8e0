package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

type CreateAnnouncementRequest struct {
	Title      string `json:"title" binding:"required"`
	Message    string `json:"message" binding:"required"`
	Audience   string `json:"audience"`
	ExpiryDate string `json:"expiry_date"` // YYYY-MM-DD, optional
}

type AnnouncementResponse struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Audience   string    `json:"audience"`
	CreatedBy  string    `json:"created_by"`
	ExpiryDate *string   `json:"expiry_date"`
	CreatedAt  string    `json:"created_at"`
}

type AnnouncementService interface {
	Create(ctx context.Context, actor Actor, req CreateAnnouncementRequest) (*AnnouncementResponse, error)
	// List returns unexpired announcements addressed to the actor's role
	List(ctx context.Context, actor Actor) ([]AnnouncementResponse, error)
}

type announcementService struct {
	repo   repository.AnnouncementRepository
	clock  Clock
	logger *slog.Logger
}

func NewAnnouncementService(repo repository.AnnouncementRepository, clock Clock, logger *slog.Logger) AnnouncementService {
	return &announcementService{repo: repo, clock: clock, logger: logger}
}

func mapAnnouncementToResponse(a *model.Announcement) *AnnouncementResponse {
	res := &AnnouncementResponse{
		ID:        a.ID,
		Title:     a.Title,
		Message:   a.Message,
		Audience:  a.Audience,
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.ExpiryDate != nil {
		d := time.Time(*a.ExpiryDate).Format(model.DateLayout)
		res.ExpiryDate = &d
	}
	return res
}

func validAudience(audience string) bool {
	switch audience {
	case model.AudienceAll, model.AudienceStaff, model.AudienceManager:
		return true
	}
	return false
}

func (s *announcementService) Create(ctx context.Context, actor Actor, req CreateAnnouncementRequest) (*AnnouncementResponse, error) {
	if !actor.Can(model.CapCreateAnnouncement) {
		return nil, AuthorizationError("Only a manager or admin can post announcements")
	}

	title := strings.TrimSpace(req.Title)
	message := strings.TrimSpace(req.Message)
	if title == "" || message == "" {
		return nil, ValidationError("Title and message are required")
	}

	audience := strings.TrimSpace(req.Audience)
	if audience == "" {
		audience = model.AudienceAll
	}
	if !validAudience(audience) {
		return nil, ValidationError("Invalid audience: must be all, staff, or manager")
	}

	a := &model.Announcement{
		Title:     title,
		Message:   message,
		Audience:  audience,
		CreatedBy: actor.Username,
	}
	if req.ExpiryDate != "" {
		expiry, err := time.ParseInLocation(model.DateLayout, req.ExpiryDate, s.clock.Zone())
		if err != nil {
			return nil, ValidationError("Invalid expiry_date: expected YYYY-MM-DD")
		}
		d := datatypes.Date(expiry)
		a.ExpiryDate = &d
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, storageFailure(s.logger, "create announcement", err, "")
	}
	return mapAnnouncementToResponse(a), nil
}

func (s *announcementService) List(ctx context.Context, actor Actor) ([]AnnouncementResponse, error) {
	today := s.clock.Today()
	list, err := s.repo.ListActive(ctx, today)
	if err != nil {
		return nil, storageFailure(s.logger, "list announcements", err, "")
	}

	res := make([]AnnouncementResponse, 0, len(list))
	for i := range list {
		a := &list[i]
		if a.Expired(today) || !a.VisibleTo(actor.Role) {
			continue
		}
		res = append(res, *mapAnnouncementToResponse(a))
	}
	return res, nil
}
