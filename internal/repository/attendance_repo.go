package repository

import (
	"context"

	"taskflow/internal/model"

	"gorm.io/gorm"
)

type AttendanceRepository interface {
	Create(ctx context.Context, entry *model.Attendance) error
	Update(ctx context.Context, entry *model.Attendance) error
	// FindOpenForUpdate locks the open entry of username on date
	FindOpenForUpdate(ctx context.Context, username, date string) (*model.Attendance, error)
	List(ctx context.Context, username string, limit int) ([]model.Attendance, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Create(ctx context.Context, entry *model.Attendance) error {
	return translate("create attendance", GetDB(ctx, r.db).Create(entry).Error)
}

func (r *attendanceRepository) Update(ctx context.Context, entry *model.Attendance) error {
	return translate("update attendance", GetDB(ctx, r.db).Save(entry).Error)
}

func (r *attendanceRepository) FindOpenForUpdate(ctx context.Context, username, date string) (*model.Attendance, error) {
	var entry model.Attendance
	err := GetLockingDB(ctx, r.db).
		Where("username = ? AND date = ? AND check_out_time IS NULL", username, date).
		Order("check_in_time DESC").
		First(&entry).Error
	if err != nil {
		return nil, translate("find open attendance", err)
	}
	return &entry, nil
}

// List returns entries newest first. An empty username lists everyone.
func (r *attendanceRepository) List(ctx context.Context, username string, limit int) ([]model.Attendance, error) {
	query := GetDB(ctx, r.db).Model(&model.Attendance{})
	if username != "" {
		query = query.Where("username = ?", username)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []model.Attendance
	if err := query.Order("date DESC, check_in_time DESC").Find(&entries).Error; err != nil {
		return nil, translate("list attendance", err)
	}
	return entries, nil
}
