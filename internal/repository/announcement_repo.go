package repository

import (
	"context"

	"taskflow/internal/model"

	"gorm.io/gorm"
)

type AnnouncementRepository interface {
	Create(ctx context.Context, a *model.Announcement) error
	// ListActive returns announcements without expiry or expiring on or after today
	ListActive(ctx context.Context, today string) ([]model.Announcement, error)
}

type announcementRepository struct {
	db *gorm.DB
}

func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

func (r *announcementRepository) Create(ctx context.Context, a *model.Announcement) error {
	return translate("create announcement", GetDB(ctx, r.db).Create(a).Error)
}

func (r *announcementRepository) ListActive(ctx context.Context, today string) ([]model.Announcement, error) {
	var list []model.Announcement
	if err := GetDB(ctx, r.db).
		Where("expiry_date IS NULL OR expiry_date >= ?", today).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, translate("list announcements", err)
	}
	return list, nil
}
