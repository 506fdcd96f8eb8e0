package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ReportWeekly        = "weekly"
	ReportMonthly       = "monthly"
	ReportDailyReminder = "daily_reminder"
	ReportOverdueAlert  = "overdue_alert"
)

// ReportTypes lists every report kind the scheduler produces
var ReportTypes = []string{ReportWeekly, ReportMonthly, ReportDailyReminder, ReportOverdueAlert}

// Report is a write-once snapshot of a generated summary
type Report struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReportType  string         `gorm:"type:varchar(20);not null;index" json:"report_type"`
	PeriodStart datatypes.Date `gorm:"not null" json:"period_start"`
	PeriodEnd   datatypes.Date `gorm:"not null" json:"period_end"`
	Content     datatypes.JSON `gorm:"type:jsonb" json:"content"`
	Recipients  string         `gorm:"type:text" json:"recipients"` // comma-separated emails
	Delivered   bool           `gorm:"not null;default:false" json:"delivered"`
	GeneratedAt time.Time      `gorm:"autoCreateTime;index" json:"generated_at"`
}
