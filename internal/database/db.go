package database

import (
	"context"
	"fmt"
	"log/slog"

	"taskflow/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewConnection opens the pool, migrates the schema and makes sure the order
// number sequence row exists.
func NewConnection(dsn string, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Service{},
		&model.Task{},
		&model.OrderSequence{},
		&model.Attendance{},
		&model.Report{},
		&model.Announcement{},
		&model.AuditLog{},
	)
	if err != nil {
		logger.Warn("failed to auto-migrate models", "error", err)
	}

	if err := ensureOrderSequence(db); err != nil {
		return nil, fmt.Errorf("order sequence: %w", err)
	}

	return db, nil
}

func ensureOrderSequence(db *gorm.DB) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.OrderSequence{Name: model.TaskOrderSequence}).Error
}

// HealthChecker probes the database connection
type HealthChecker struct {
	DB *gorm.DB
}

func (h HealthChecker) Health(ctx context.Context) error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
