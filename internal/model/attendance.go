package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AttendancePresent = "Present"
	AttendanceAbsent  = "Absent"
	AttendanceLeave   = "Leave"
)

// Attendance is one check-in event. CheckOutTime stays nil until checkout;
// a user has at most one open entry per date.
type Attendance struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username     string         `gorm:"type:varchar(80);not null;index:idx_attendance_user_date;uniqueIndex:idx_attendance_open,where:check_out_time IS NULL" json:"username"`
	Date         datatypes.Date `gorm:"not null;index:idx_attendance_user_date;uniqueIndex:idx_attendance_open" json:"date"`
	CheckInTime  time.Time      `gorm:"not null" json:"check_in_time"`
	CheckOutTime *time.Time     `json:"check_out_time"`
	Status       string         `gorm:"type:varchar(20);not null;default:'Present'" json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (a *Attendance) IsOpen() bool {
	return a.CheckOutTime == nil
}
