package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusOpen     = "open"
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusClosed   = "closed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	SourceWeb         = "web"
	SourceSelfService = "self_service"
)

type Ticket struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	TenantID    snowflake.ID      `gorm:"index:idx_tickets_tenant_status;not null" json:"tenant_id,string"`
	RequesterID snowflake.ID      `gorm:"not null" json:"requester_id,string"`
	AssigneeID  *snowflake.ID     `gorm:"index:idx_tickets_assignee" json:"assignee_id,string,omitempty"`
	Subject     string            `gorm:"size:512;not null" json:"subject"`
	Description string            `gorm:"type:text" json:"description,omitempty"`
	Status      string            `gorm:"size:32;not null;default:open;index:idx_tickets_tenant_status" json:"status"`
	Priority    string            `gorm:"size:16;not null;default:medium" json:"priority"`
	Source      string            `gorm:"size:32;not null;default:web" json:"source"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time        `json:"closed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TableName sets the database table name.
func (Ticket) TableName() string { return "tickets" }

func ValidStatus(status string) bool {
	switch status {
	case StatusOpen, StatusPending, StatusResolved, StatusClosed:
		return true
	}
	return false
}

func ValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
