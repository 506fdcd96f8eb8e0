package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is a catalog entry. Tasks reference it by name only.
type Service struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(100);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Fee       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"fee"`
	Charge    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"charge"`
	Link      string          `gorm:"type:varchar(200)" json:"link"`
	Note      string          `gorm:"type:text" json:"note"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
