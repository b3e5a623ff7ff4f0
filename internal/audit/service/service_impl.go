package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stackdesk/stackdesk/internal/audit/domain"
	"github.com/stackdesk/stackdesk/internal/audit/masking"
	"github.com/stackdesk/stackdesk/internal/auditcontext"
	"github.com/stackdesk/stackdesk/pkg/db/pagination"
	"github.com/stackdesk/stackdesk/pkg/tenantctx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 250
)

type Params struct {
	fx.In

	Log   *zap.Logger
	DB    *gorm.DB
	GenID *snowflake.Node
	Repo  domain.Repository
}

type service struct {
	log   *zap.Logger
	db    *gorm.DB
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &service{
		log:   p.Log,
		db:    p.DB,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *service) AuditLog(ctx context.Context, tenantID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return domain.ErrInvalidAction
	}

	entry := &domain.AuditLog{
		ID:         s.genID.Generate(),
		TenantID:   s.resolveTenantID(ctx, tenantID),
		Action:     action,
		TargetType: strings.TrimSpace(targetType),
		TargetID:   targetID,
		Metadata:   masking.MaskSensitive(s.enrichMetadata(ctx, metadata)),
		CreatedAt:  time.Now().UTC(),
	}
	entry.ActorType, entry.ActorID = s.resolveActor(ctx, actorType, actorID)

	if ip, ok := auditcontext.IPAddressFromContext(ctx); ok {
		entry.IPAddress = &ip
	}
	if ua, ok := auditcontext.UserAgentFromContext(ctx); ok {
		entry.UserAgent = &ua
	}

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Error("failed to write audit log",
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func (s *service) List(ctx context.Context, req domain.ListAuditLogRequest) (*domain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.EndAt.Before(*req.StartAt) {
		return nil, domain.ErrInvalidTimeRange
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := domain.ListFilter{
		TenantID:   req.TenantID,
		Action:     strings.TrimSpace(req.Action),
		TargetType: strings.TrimSpace(req.TargetType),
		TargetID:   strings.TrimSpace(req.TargetID),
		ActorType:  strings.TrimSpace(req.ActorType),
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Limit:      pageSize + 1,
	}

	if req.PageToken != "" {
		cursor, err := decodeAuditCursor(req.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		filter.Cursor = cursor
	}

	entries, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(entries, int32(pageSize), encodeAuditCursor)
	if len(entries) > pageSize {
		entries = entries[:pageSize]
	}

	return &domain.ListAuditLogResponse{
		Data:     entries,
		PageInfo: pageInfo,
	}, nil
}

func (s *service) resolveTenantID(ctx context.Context, tenantID *snowflake.ID) *snowflake.ID {
	if tenantID != nil {
		return tenantID
	}
	if id, ok := tenantctx.TenantID(ctx); ok {
		sid := snowflake.ID(id)
		return &sid
	}
	return nil
}

func (s *service) resolveActor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	if actorType != "" {
		return actorType, actorID
	}
	if actor, ok := auditcontext.ActorFromContext(ctx); ok {
		if actor.ID == "" {
			return actor.Type, nil
		}
		id := actor.ID
		return actor.Type, &id
	}
	return domain.ActorTypeSystem, nil
}

func (s *service) enrichMetadata(ctx context.Context, metadata map[string]any) map[string]any {
	requestID, ok := auditcontext.RequestIDFromContext(ctx)
	if !ok {
		return metadata
	}

	enriched := make(map[string]any, len(metadata)+1)
	for key, value := range metadata {
		enriched[key] = value
	}
	enriched["request_id"] = requestID
	return enriched
}

func encodeAuditCursor(entry *domain.AuditLog) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        entry.ID.String(),
		CreatedAt: entry.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeAuditCursor(token string) (*domain.AuditCursor, error) {
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, err
	}

	id, err := snowflake.ParseString(cursor.ID)
	if err != nil {
		return nil, err
	}

	createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &domain.AuditCursor{ID: id, CreatedAt: createdAt}, nil
}
