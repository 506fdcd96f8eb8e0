package service

import (
	"context"
	"log/slog"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

// AuditService exposes the history written alongside task and catalog mutations
type AuditService interface {
	List(ctx context.Context, actor Actor, entityID string, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

func NewAuditService(repo repository.AuditRepository, logger *slog.Logger) AuditService {
	return &auditService{repo: repo, logger: logger}
}

func mapAuditLogToResponse(l model.AuditLog) AuditLogResponse {
	res := AuditLogResponse{
		ID:         l.ID.String(),
		Username:   l.Username,
		Action:     l.Action,
		EntityID:   l.EntityID,
		EntityName: l.EntityName,
		Details:    l.Details,
		CreatedAt:  l.CreatedAt.Format(time.RFC3339),
	}
	if res.Username == "" {
		res.Username = SystemActor.Username
	}
	if l.UserID != nil {
		res.UserID = l.UserID.String()
	}
	return res
}

func (s *auditService) List(ctx context.Context, actor Actor, entityID string, page, limit int) ([]AuditLogResponse, int64, error) {
	if !actor.Can(model.CapViewAuditLog) {
		return nil, 0, AuthorizationError("Only a manager or admin can view the audit log")
	}

	logs, total, err := s.repo.List(ctx, entityID, page, limit)
	if err != nil {
		return nil, 0, storageFailure(s.logger, "list audit logs", err, "")
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		res = append(res, mapAuditLogToResponse(l))
	}
	return res, total, nil
}
