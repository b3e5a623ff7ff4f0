package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActorTypeSystem = "system"
	ActorTypeUser   = "user"
)

// AuditLog is an append-only record of a platform or tenant action.
// TenantID is nil for platform-level events.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	TenantID   *snowflake.ID     `gorm:"index:idx_audit_logs_tenant" json:"tenant_id,string,omitempty"`
	ActorType  string            `gorm:"size:32;not null" json:"actor_type"`
	ActorID    *string           `gorm:"size:64" json:"actor_id,omitempty"`
	Action     string            `gorm:"size:128;not null;index:idx_audit_logs_action" json:"action"`
	TargetType string            `gorm:"size:64" json:"target_type,omitempty"`
	TargetID   *string           `gorm:"size:64" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditCursor is the keyset position for paging audit entries,
// ordered by (created_at, id) descending.
type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	TenantID   *snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
