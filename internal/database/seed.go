package database

import (
	"context"
	"log/slog"
	"time"

	"taskflow/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type seedUser struct {
	username, role, password string
}

var defaultUsers = []seedUser{
	{"admin", model.RoleAdmin, "admin123"},
	{"manager", model.RoleManager, "password123"},
	{"staff1", model.RoleStaff, "password123"},
	{"staff2", model.RoleStaff, "password123"},
	{"staff3", model.RoleStaff, "password123"},
	{"staff4", model.RoleStaff, "password123"},
	{"staff5", model.RoleStaff, "password123"},
	{"staff6", model.RoleStaff, "password123"},
	{"staff7", model.RoleStaff, "password123"},
	{"staff8", model.RoleStaff, "password123"},
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var defaultServices = []model.Service{
	{Name: "Consultation", Price: dec(1500), Fee: dec(100), Charge: dec(100), Link: "https://example.com/consultation", Note: "Initial consultation for new clients"},
	{Name: "Repair", Price: dec(2000), Fee: dec(150), Charge: dec(150), Link: "https://example.com/repair", Note: "Device repair service with 30-day warranty"},
	{Name: "Sales", Price: dec(500), Fee: dec(50), Charge: dec(50), Link: "https://example.com/sales", Note: "Product sales and inquiry service"},
	{Name: "Support", Price: dec(800), Fee: dec(80), Charge: dec(80), Link: "https://example.com/support", Note: "Technical support and troubleshooting"},
}

// Seed fills an empty database with default users, catalog entries and two
// sample tasks. It does nothing once any user exists.
func Seed(ctx context.Context, db *gorm.DB, loc *time.Location, logger *slog.Logger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("database already contains data, skipping seed")
		return nil
	}

	now := time.Now().In(loc)
	today := datatypes.Date(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc))

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range defaultUsers {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user := model.User{
				Username: u.username,
				Email:    u.username + "@taskflow.com",
				Password: string(hash),
				Role:     u.role,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		}

		services := make([]model.Service, len(defaultServices))
		copy(services, defaultServices)
		if err := tx.Create(&services).Error; err != nil {
			return err
		}

		tasks := []model.Task{
			{
				OrderNo:       model.FormatOrderNo(1),
				CustomerName:  "Michael Brown",
				ContactNumber: "555-1234",
				ServiceType:   "Consultation",
				Status:        model.TaskStatusCompleted,
				AssignedTo:    "staff1",
				BranchCode:    "SHOP-A",
				Paymode:       "Credit Card",
				ServicePrice:  dec(1500),
				PaidAmount:    dec(1500),
				ServiceCharge: dec(100),
				Description:   "Initial business consultation",
				Shared:        model.SharedWith{},
				TaskDate:      today,
			},
			{
				OrderNo:       model.FormatOrderNo(2),
				CustomerName:  "Sarah Johnson",
				ContactNumber: "555-5678",
				ServiceType:   "Repair",
				Status:        model.TaskStatusInProgress,
				AssignedTo:    "staff2",
				BranchCode:    "SHOP-B",
				Paymode:       model.DefaultPaymode,
				ServicePrice:  dec(2000),
				PaidAmount:    dec(1000),
				ServiceCharge: dec(150),
				Description:   "Device repair service",
				Shared:        model.SharedWith{},
				TaskDate:      today,
			},
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return err
		}

		return tx.Model(&model.OrderSequence{}).
			Where("name = ?", model.TaskOrderSequence).
			Update("value", len(tasks)).Error
	})
	if err != nil {
		return err
	}

	logger.Info("database initialized with default data")
	return nil
}
