package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Task status values
const (
	TaskStatusReceived   = "Received"
	TaskStatusPending    = "Pending"
	TaskStatusInProgress = "In Progress"
	TaskStatusCompleted  = "Completed"
	TaskStatusHold       = "Hold"
	TaskStatusCancelled  = "Cancelled"
)

const (
	OrderNoPrefix     = "TF-"
	TaskOrderSequence = "task_order_no"
	DefaultPaymode    = "Cash"
	DateLayout        = "2006-01-02"

	// OverdueAfter is how long an active task may exist before it counts as overdue
	OverdueAfter = 24 * time.Hour
)

// TaskStatuses lists every valid status
var TaskStatuses = []string{
	TaskStatusReceived,
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusHold,
	TaskStatusCancelled,
}

// ActiveStatuses count toward staff workload and overdue detection
var ActiveStatuses = []string{TaskStatusPending, TaskStatusInProgress, TaskStatusHold}

// taskTransitions is the status state machine. Completed -> In Progress is
// only reachable through reopen, so it is not listed here.
var taskTransitions = map[string][]string{
	TaskStatusReceived:   {TaskStatusPending, TaskStatusInProgress, TaskStatusHold, TaskStatusCancelled},
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusHold, TaskStatusCompleted, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusPending, TaskStatusHold, TaskStatusCompleted, TaskStatusCancelled},
	TaskStatusHold:       {TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled},
	TaskStatusCompleted:  {},
	TaskStatusCancelled:  {},
}

func ValidTaskStatus(status string) bool {
	_, ok := taskTransitions[status]
	return ok
}

// CanTransition reports whether a regular status change from -> to is allowed
func CanTransition(from, to string) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func isActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// SharedWith is an ordered set of usernames stored as a JSON array in a text column
type SharedWith []string

// NewSharedWith removes duplicates and blanks, keeping first-seen order
func NewSharedWith(names []string) SharedWith {
	out := make(SharedWith, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (s SharedWith) Contains(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer
func (s SharedWith) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Blank or malformed values decode to an empty set.
func (s *SharedWith) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = SharedWith{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported shared_with type %T", src)
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		*s = SharedWith{}
		return nil
	}
	*s = NewSharedWith(names)
	return nil
}

// Task is a service order tracked through the status lifecycle
type Task struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	OrderNo       string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"order_no"`
	CustomerName  string          `gorm:"type:varchar(100);not null" json:"customer_name"`
	ContactNumber string          `gorm:"type:varchar(20);not null" json:"contact_number"`
	ServiceType   string          `gorm:"type:varchar(100);not null;index" json:"service_type"` // free text, not a foreign key
	Description   string          `gorm:"type:text" json:"description"`
	BranchCode    string          `gorm:"type:varchar(50);index" json:"branch_code"`
	Paymode       string          `gorm:"type:varchar(20);default:'Cash'" json:"paymode"`
	Status        string          `gorm:"type:varchar(20);not null;default:'Received';index" json:"status"`
	AssignedTo    string          `gorm:"type:varchar(100);index" json:"assigned_to"`
	Shared        SharedWith      `gorm:"column:shared_with;type:text;not null;default:'[]'" json:"shared_with"`
	Edited        bool            `gorm:"not null;default:false" json:"edited"`
	EditReason    string          `gorm:"type:text" json:"edit_reason"`
	ServicePrice  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"service_price"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"paid_amount"`
	ServiceCharge decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"service_charge"`
	TaskDate      datatypes.Date  `gorm:"not null;index" json:"task_date"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// IsActive reports whether the task counts toward workload
func (t *Task) IsActive() bool {
	return isActiveStatus(t.Status)
}

// IsOverdue reports whether an active task is older than OverdueAfter at now
func (t *Task) IsOverdue(now time.Time) bool {
	return t.IsActive() && now.Sub(t.CreatedAt) > OverdueAfter
}

// SharedWith returns a copy of the shared-access list
func (t *Task) SharedWith() []string {
	out := make([]string, len(t.Shared))
	copy(out, t.Shared)
	return out
}

func (t *Task) SetSharedWith(names []string) {
	t.Shared = NewSharedWith(names)
}

// HasAccess reports whether username is the assignee or on the shared list
func (t *Task) HasAccess(username string) bool {
	return username != "" && (t.AssignedTo == username || t.Shared.Contains(username))
}

// BusinessDate returns task_date as YYYY-MM-DD
func (t *Task) BusinessDate() string {
	d := time.Time(t.TaskDate)
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// OrderSequence is the row locked while allocating order numbers
type OrderSequence struct {
	Name      string    `gorm:"type:varchar(50);primaryKey" json:"name"`
	Value     int       `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FormatOrderNo renders n as TF-NNN
func FormatOrderNo(n int) string {
	return fmt.Sprintf("%s%03d", OrderNoPrefix, n)
}

// ParseOrderNo extracts the numeric suffix of a TF-NNN order number
func ParseOrderNo(orderNo string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(orderNo), OrderNoPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextOrderNumber returns one past the highest of lastIssued and every parsable
// existing order number, so a deleted top order never gets its number reused.
func NextOrderNumber(lastIssued int, existing []string) int {
	highest := lastIssued
	for _, orderNo := range existing {
		if n, ok := ParseOrderNo(orderNo); ok && n > highest {
			highest = n
		}
	}
	return highest + 1
}
