package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/stackdesk/stackdesk/internal/ticket/domain"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *repo) FindByID(ctx context.Context, tenantID, id snowflake.ID) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *repo) List(ctx context.Context, req domain.ListTicketsRequest) ([]*domain.Ticket, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("tenant_id = ?", req.TenantID)

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Priority != "" {
		query = query.Where("priority = ?", req.Priority)
	}
	if req.AssigneeID != "" {
		query = query.Where("assignee_id = ?", req.AssigneeID)
	}
	if req.Requester != "" {
		query = query.Where("requester_id = ?", req.Requester)
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var tickets []*domain.Ticket
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repo) UpdateFields(ctx context.Context, tenantID, id snowflake.ID, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}
