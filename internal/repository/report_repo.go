package repository

import (
	"context"

	"taskflow/internal/model"
	"taskflow/pkg/pagination"

	"gorm.io/gorm"
)

// ReportRepository is append-only; reports are never updated or deleted
type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	List(ctx context.Context, reportType string, page, limit int) ([]model.Report, int64, error)
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *model.Report) error {
	return translate("create report", GetDB(ctx, r.db).Create(report).Error)
}

func (r *reportRepository) List(ctx context.Context, reportType string, page, limit int) ([]model.Report, int64, error) {
	db := GetDB(ctx, r.db)
	byType := func(q *gorm.DB) *gorm.DB {
		if reportType != "" {
			return q.Where("report_type = ?", reportType)
		}
		return q
	}

	var total int64
	if err := db.Model(&model.Report{}).Scopes(byType).Count(&total).Error; err != nil {
		return nil, 0, translate("count reports", err)
	}

	var reports []model.Report
	if err := db.Scopes(byType).Order("generated_at DESC").Scopes(pagination.Scope(page, limit)).Find(&reports).Error; err != nil {
		return nil, 0, translate("list reports", err)
	}
	return reports, total, nil
}
