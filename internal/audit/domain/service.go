package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/stackdesk/stackdesk/pkg/db/pagination"
)

var (
	ErrInvalidTenant    = errors.New("invalid tenant")
	ErrInvalidAction    = errors.New("invalid audit action")
	ErrInvalidPageToken = errors.New("invalid page token")
	ErrInvalidTimeRange = errors.New("invalid time range")
)

type ListAuditLogRequest struct {
	pagination.Pagination

	TenantID   *snowflake.ID `form:"-"`
	Action     string        `form:"action"`
	TargetType string        `form:"target_type"`
	TargetID   string        `form:"target_id"`
	ActorType  string        `form:"actor_type"`
	StartAt    *time.Time    `form:"start_at" time_format:"2006-01-02T15:04:05Z07:00"`
	EndAt      *time.Time    `form:"end_at" time_format:"2006-01-02T15:04:05Z07:00"`
}

type ListAuditLogResponse struct {
	Data     []*AuditLog          `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

// Service records and queries the audit trail. AuditLog never fails a
// caller's business operation: implementations log internal failures
// and callers are free to ignore the returned error.
type Service interface {
	AuditLog(ctx context.Context, tenantID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (*ListAuditLogResponse, error)
}
