package repository

import (
	"context"

	"taskflow/internal/model"
	"taskflow/pkg/pagination"

	"gorm.io/gorm"
)

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	// List returns audit rows newest first; entityID narrows to one task or service
	List(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return translate("write audit log", GetDB(ctx, r.db).Create(entry).Error)
}

func (r *auditRepository) List(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error) {
	db := GetDB(ctx, r.db)
	byEntity := func(q *gorm.DB) *gorm.DB {
		if entityID != "" {
			return q.Where("entity_id = ?", entityID)
		}
		return q
	}

	var total int64
	if err := db.Model(&model.AuditLog{}).Scopes(byEntity).Count(&total).Error; err != nil {
		return nil, 0, translate("count audit logs", err)
	}

	var logs []model.AuditLog
	if err := db.Scopes(byEntity, pagination.Scope(page, limit)).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, translate("list audit logs", err)
	}
	return logs, total, nil
}
