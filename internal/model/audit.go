package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateTask     = "CREATE_TASK"
	ActionUpdateTask     = "UPDATE_TASK"
	ActionDeleteTask     = "DELETE_TASK"
	ActionCancelTask     = "CANCEL_TASK"
	ActionReopenTask     = "REOPEN_TASK"
	ActionTakeoverTask   = "TAKEOVER_TASK"
	ActionShareTask      = "SHARE_TASK"
	ActionAutoAssignTask = "AUTO_ASSIGN_TASK"

	ActionCreateService = "CREATE_SERVICE"
	ActionUpdateService = "UPDATE_SERVICE"
	ActionDeleteService = "DELETE_SERVICE"
)

// AuditLog tracks Who, What, and When for every task and catalog mutation
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for scheduled jobs
	Username   string     `gorm:"type:varchar(80);index" json:"username"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
