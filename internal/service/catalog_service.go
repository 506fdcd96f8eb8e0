package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

type ServiceRequest struct {
	Name   string          `json:"name" binding:"required"`
	Price  decimal.Decimal `json:"price"`
	Fee    decimal.Decimal `json:"fee"`
	Charge decimal.Decimal `json:"charge"`
	Link   string          `json:"link"`
	Note   string          `json:"note"`
}

type ServiceResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
	Charge    decimal.Decimal `json:"charge"`
	Link      string          `json:"link"`
	Note      string          `json:"note"`
	CreatedAt string          `json:"created_at"`
}

// CatalogService manages the service catalog. Tasks refer to entries by
// name only, so deleting an entry never touches existing tasks.
type CatalogService interface {
	List(ctx context.Context) ([]ServiceResponse, error)
	Create(ctx context.Context, actor Actor, req ServiceRequest) (*ServiceResponse, error)
	Update(ctx context.Context, actor Actor, id string, req ServiceRequest) (*ServiceResponse, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

type catalogService struct {
	repo      repository.CatalogRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	notifier  *Notifier
	logger    *slog.Logger
}

func NewCatalogService(
	repo repository.CatalogRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier *Notifier,
	logger *slog.Logger,
) CatalogService {
	return &catalogService{repo: repo, auditRepo: auditRepo, txManager: txManager, notifier: notifier, logger: logger}
}

func mapServiceToResponse(svc *model.Service) *ServiceResponse {
	return &ServiceResponse{
		ID:        svc.ID,
		Name:      svc.Name,
		Price:     svc.Price,
		Fee:       svc.Fee,
		Charge:    svc.Charge,
		Link:      svc.Link,
		Note:      svc.Note,
		CreatedAt: svc.CreatedAt.Format(time.RFC3339),
	}
}

func (s *catalogService) List(ctx context.Context) ([]ServiceResponse, error) {
	services, err := s.repo.List(ctx)
	if err != nil {
		return nil, storageFailure(s.logger, "list services", err, "")
	}
	res := make([]ServiceResponse, 0, len(services))
	for i := range services {
		res = append(res, *mapServiceToResponse(&services[i]))
	}
	return res, nil
}

func (s *catalogService) Create(ctx context.Context, actor Actor, req ServiceRequest) (*ServiceResponse, error) {
	if !actor.Can(model.CapWriteService) {
		return nil, AuthorizationError("Only a manager or admin can add services")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ValidationError("Service name is required")
	}

	svc := &model.Service{
		Name:   name,
		Price:  req.Price,
		Fee:    req.Fee,
		Charge: req.Charge,
		Link:   req.Link,
		Note:   req.Note,
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, svc); err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionCreateService, svc, req)
	})
	if err != nil {
		return nil, storageFailure(s.logger, "create service", err, "")
	}

	res := mapServiceToResponse(svc)
	s.notifier.ServiceChanged("created", res)
	return res, nil
}

func (s *catalogService) Update(ctx context.Context, actor Actor, id string, req ServiceRequest) (*ServiceResponse, error) {
	if !actor.Can(model.CapWriteService) {
		return nil, AuthorizationError("Only a manager or admin can edit services")
	}
	serviceID, err := uuid.Parse(id)
	if err != nil {
		return nil, ValidationError("Invalid service id")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ValidationError("Service name is required")
	}

	var svc *model.Service
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		svc, err = s.repo.FindByID(txCtx, serviceID)
		if err != nil {
			return err
		}
		svc.Name = name
		svc.Price = req.Price
		svc.Fee = req.Fee
		svc.Charge = req.Charge
		svc.Link = req.Link
		svc.Note = req.Note

		if err := s.repo.Update(txCtx, svc); err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionUpdateService, svc, req)
	})
	if err != nil {
		return nil, storageFailure(s.logger, "update service", err, "Service not found")
	}

	res := mapServiceToResponse(svc)
	s.notifier.ServiceChanged("updated", res)
	return res, nil
}

func (s *catalogService) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.Can(model.CapDeleteService) {
		return AuthorizationError("Only an admin can delete services")
	}
	serviceID, err := uuid.Parse(id)
	if err != nil {
		return ValidationError("Invalid service id")
	}

	var svc *model.Service
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		svc, err = s.repo.FindByID(txCtx, serviceID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, serviceID); err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionDeleteService, svc, map[string]bool{"deleted": true})
	})
	if err != nil {
		return storageFailure(s.logger, "delete service", err, "Service not found")
	}

	s.notifier.ServiceChanged("deleted", mapServiceToResponse(svc))
	return nil
}

func (s *catalogService) audit(ctx context.Context, actor Actor, action string, svc *model.Service, details any) error {
	raw, _ := json.Marshal(details)
	return s.auditRepo.Log(ctx, &model.AuditLog{
		UserID:     actor.userRef(),
		Username:   actor.Username,
		Action:     action,
		EntityID:   svc.ID.String(),
		EntityName: svc.Name,
		Details:    string(raw),
	})
}
