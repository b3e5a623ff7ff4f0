package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	"github.com/stackdesk/stackdesk/internal/ticket/domain"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	GenID    *snowflake.Node
	AuditSvc auditdomain.Service `optional:"true"`
}

type service struct {
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		log:      p.Log,
		repo:     p.Repo,
		genID:    p.GenID,
		auditSvc: p.AuditSvc,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateTicketRequest) (*domain.Ticket, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, domain.ErrInvalidSubject
	}
	if req.RequesterID == 0 {
		return nil, domain.ErrInvalidRequester
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, domain.ErrInvalidPriority
	}

	source := req.Source
	if source == "" {
		source = domain.SourceWeb
	}

	ticket := &domain.Ticket{
		ID:          s.genID.Generate(),
		TenantID:    req.TenantID,
		RequesterID: req.RequesterID,
		Subject:     subject,
		Description: req.Description,
		Status:      domain.StatusOpen,
		Priority:    priority,
		Source:      source,
		Metadata:    datatypes.JSONMap(req.Metadata),
	}

	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.audit(ctx, ticket, "ticket.create", map[string]any{
		"priority": ticket.Priority,
		"source":   ticket.Source,
	})
	return ticket, nil
}

func (s *service) Get(ctx context.Context, tenantID, id snowflake.ID) (*domain.Ticket, error) {
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) List(ctx context.Context, req domain.ListTicketsRequest) ([]*domain.Ticket, error) {
	if req.Status != "" && !domain.ValidStatus(req.Status) {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.List(ctx, req)
}

func (s *service) Update(ctx context.Context, tenantID, id snowflake.ID, req domain.UpdateTicketRequest) (*domain.Ticket, error) {
	ticket, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.StatusClosed {
		return nil, domain.ErrTicketClosed
	}

	fields := map[string]any{}
	if req.Subject != nil {
		subject := strings.TrimSpace(*req.Subject)
		if subject == "" {
			return nil, domain.ErrInvalidSubject
		}
		fields["subject"] = subject
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Priority != nil {
		if !domain.ValidPriority(*req.Priority) {
			return nil, domain.ErrInvalidPriority
		}
		fields["priority"] = *req.Priority
	}
	if req.AssigneeID != nil {
		fields["assignee_id"] = *req.AssigneeID
	}
	if req.Status != nil {
		if !domain.ValidStatus(*req.Status) {
			return nil, domain.ErrInvalidStatus
		}
		fields["status"] = *req.Status
		switch *req.Status {
		case domain.StatusResolved:
			fields["resolved_at"] = time.Now().UTC()
		case domain.StatusClosed:
			fields["closed_at"] = time.Now().UTC()
		}
	}

	if len(fields) == 0 {
		return ticket, nil
	}

	if err := s.repo.UpdateFields(ctx, tenantID, id, fields); err != nil {
		return nil, err
	}

	s.audit(ctx, ticket, "ticket.update", map[string]any{"fields": fieldNames(fields)})
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) Assign(ctx context.Context, tenantID, id, assigneeID snowflake.ID) (*domain.Ticket, error) {
	ticket, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.StatusClosed {
		return nil, domain.ErrTicketClosed
	}

	fields := map[string]any{
		"assignee_id": assigneeID,
		"status":      domain.StatusPending,
	}
	if err := s.repo.UpdateFields(ctx, tenantID, id, fields); err != nil {
		return nil, err
	}

	s.audit(ctx, ticket, "ticket.assign", map[string]any{"assignee_id": assigneeID.String()})
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) Close(ctx context.Context, tenantID, id snowflake.ID) (*domain.Ticket, error) {
	ticket, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.StatusClosed {
		return ticket, nil
	}

	fields := map[string]any{
		"status":    domain.StatusClosed,
		"closed_at": time.Now().UTC(),
	}
	if err := s.repo.UpdateFields(ctx, tenantID, id, fields); err != nil {
		return nil, err
	}

	s.audit(ctx, ticket, "ticket.close", nil)
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) audit(ctx context.Context, ticket *domain.Ticket, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := ticket.ID.String()
	if err := s.auditSvc.AuditLog(ctx, &ticket.TenantID, "", nil, action, "ticket", &targetID, metadata); err != nil {
		s.log.Warn("ticket audit entry failed", zap.String("action", action), zap.Error(err))
	}
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names
}
