package repository

import (
	"context"

	"taskflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepository stores the service catalog
type CatalogRepository interface {
	Create(ctx context.Context, svc *model.Service) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Service, error)
	Update(ctx context.Context, svc *model.Service) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]model.Service, error)
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) Create(ctx context.Context, svc *model.Service) error {
	return translate("create service", GetDB(ctx, r.db).Create(svc).Error)
}

func (r *catalogRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var svc model.Service
	if err := GetDB(ctx, r.db).First(&svc, "id = ?", id).Error; err != nil {
		return nil, translate("find service", err)
	}
	return &svc, nil
}

func (r *catalogRepository) Update(ctx context.Context, svc *model.Service) error {
	return translate("update service", GetDB(ctx, r.db).Save(svc).Error)
}

func (r *catalogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return translate("delete service", GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Service{}).Error)
}

func (r *catalogRepository) List(ctx context.Context) ([]model.Service, error) {
	var services []model.Service
	if err := GetDB(ctx, r.db).Order("name ASC").Find(&services).Error; err != nil {
		return nil, translate("list services", err)
	}
	return services, nil
}
