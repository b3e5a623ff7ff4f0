package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrInvalidSubject   = errors.New("ticket subject is required")
	ErrInvalidStatus    = errors.New("invalid ticket status")
	ErrInvalidPriority  = errors.New("invalid ticket priority")
	ErrTicketClosed     = errors.New("ticket is closed")
	ErrInvalidRequester = errors.New("invalid ticket requester")
)

type ListTicketsRequest struct {
	TenantID   snowflake.ID `form:"-"`
	Status     string       `form:"status"`
	Priority   string       `form:"priority"`
	AssigneeID string       `form:"assignee_id"`
	Requester  string       `form:"requester_id"`
	Limit      int          `form:"limit,default=50"`
}

type CreateTicketRequest struct {
	TenantID    snowflake.ID   `json:"-"`
	RequesterID snowflake.ID   `json:"-"`
	Subject     string         `json:"subject" binding:"required"`
	Description string         `json:"description"`
	Priority    string         `json:"priority"`
	Source      string         `json:"source"`
	Metadata    map[string]any `json:"metadata"`
}

type UpdateTicketRequest struct {
	Subject     *string       `json:"subject"`
	Description *string       `json:"description"`
	Status      *string       `json:"status"`
	Priority    *string       `json:"priority"`
	AssigneeID  *snowflake.ID `json:"assignee_id,string"`
}

type Repository interface {
	Create(ctx context.Context, ticket *Ticket) error
	FindByID(ctx context.Context, tenantID, id snowflake.ID) (*Ticket, error)
	List(ctx context.Context, req ListTicketsRequest) ([]*Ticket, error)
	UpdateFields(ctx context.Context, tenantID, id snowflake.ID, fields map[string]any) error
}

type Service interface {
	Create(ctx context.Context, req CreateTicketRequest) (*Ticket, error)
	Get(ctx context.Context, tenantID, id snowflake.ID) (*Ticket, error)
	List(ctx context.Context, req ListTicketsRequest) ([]*Ticket, error)
	Update(ctx context.Context, tenantID, id snowflake.ID, req UpdateTicketRequest) (*Ticket, error)
	Assign(ctx context.Context, tenantID, id, assigneeID snowflake.ID) (*Ticket, error)
	Close(ctx context.Context, tenantID, id snowflake.ID) (*Ticket, error)
}
