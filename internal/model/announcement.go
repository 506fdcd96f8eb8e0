package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Announcement audiences
const (
	AudienceAll     = "all"
	AudienceStaff   = "staff"
	AudienceManager = "manager"
)

type Announcement struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title      string          `gorm:"type:varchar(200);not null" json:"title"`
	Message    string          `gorm:"type:text;not null" json:"message"`
	Audience   string          `gorm:"type:varchar(20);not null;default:'all';index" json:"audience"`
	CreatedBy  string          `gorm:"type:varchar(80);not null" json:"created_by"`
	ExpiryDate *datatypes.Date `json:"expiry_date"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
}

// VisibleTo reports whether a user with role should see the announcement
func (a *Announcement) VisibleTo(role string) bool {
	switch a.Audience {
	case "", AudienceAll, AudienceStaff:
		return true
	case AudienceManager:
		return role == RoleManager || role == RoleAdmin
	}
	return false
}

// Expired reports whether the expiry date lies strictly before today
func (a *Announcement) Expired(today string) bool {
	if a.ExpiryDate == nil {
		return false
	}
	return time.Time(*a.ExpiryDate).Format(DateLayout) < today
}
