package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a staff identity. Role never changes after creation.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"type:varchar(120)" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`   // bcrypt hash, never serialized
	Role      string    `gorm:"type:varchar(20);not null;index" json:"role"` // admin, manager, staff
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
