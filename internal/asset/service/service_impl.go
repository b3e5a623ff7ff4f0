package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/stackdesk/stackdesk/internal/asset/domain"
	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	"github.com/stackdesk/stackdesk/pkg/db"
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

func (s *service) Create(ctx context.Context, req domain.CreateAssetRequest) (*domain.Asset, error) {
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		return nil, domain.ErrInvalidTag
	}

	asset := &domain.Asset{
		ID:          s.genID.Generate(),
		TenantID:    req.TenantID,
		Tag:         tag,
		Name:        strings.TrimSpace(req.Name),
		Category:    strings.TrimSpace(req.Category),
		Status:      domain.StatusInStock,
		PurchasedAt: req.PurchasedAt,
		Metadata:    datatypes.JSONMap(req.Metadata),
	}

	if err := s.repo.Create(ctx, asset); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrTagTaken
		}
		return nil, err
	}

	s.audit(ctx, asset, "asset.create", map[string]any{"tag": asset.Tag})
	return asset, nil
}

func (s *service) Get(ctx context.Context, tenantID, id snowflake.ID) (*domain.Asset, error) {
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) List(ctx context.Context, req domain.ListAssetsRequest) ([]*domain.Asset, error) {
	if req.Status != "" && !domain.ValidStatus(req.Status) {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.List(ctx, req)
}

func (s *service) Update(ctx context.Context, tenantID, id snowflake.ID, req domain.UpdateAssetRequest) (*domain.Asset, error) {
	asset, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		fields["category"] = strings.TrimSpace(*req.Category)
	}
	if req.Status != nil {
		if !domain.ValidStatus(*req.Status) {
			return nil, domain.ErrInvalidStatus
		}
		fields["status"] = *req.Status
	}
	if req.AssignedToID != nil {
		fields["assigned_to_id"] = *req.AssignedToID
	}

	if len(fields) == 0 {
		return asset, nil
	}

	if err := s.repo.UpdateFields(ctx, tenantID, id, fields); err != nil {
		return nil, err
	}

	s.audit(ctx, asset, "asset.update", map[string]any{"tag": asset.Tag})
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) Assign(ctx context.Context, tenantID, id, userID snowflake.ID) (*domain.Asset, error) {
	asset, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if asset.Status == domain.StatusRetired {
		return nil, domain.ErrAssetRetired
	}

	fields := map[string]any{
		"assigned_to_id": userID,
		"status":         domain.StatusInUse,
	}
	if err := s.repo.UpdateFields(ctx, tenantID, id, fields); err != nil {
		return nil, err
	}

	s.audit(ctx, asset, "asset.assign", map[string]any{
		"tag":            asset.Tag,
		"assigned_to_id": userID.String(),
	})
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) Retire(ctx context.Context, tenantID, id snowflake.ID) (*domain.Asset, error) {
	asset, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if asset.Status == domain.StatusRetired {
		return asset, nil
	}

	fields := map[string]any{
		"status":         domain.StatusRetired,
		"assigned_to_id": nil,
	}
	if err := s.repo.UpdateFields(ctx, tenantID, id, fields); err != nil {
		return nil, err
	}

	s.audit(ctx, asset, "asset.retire", map[string]any{"tag": asset.Tag})
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) Delete(ctx context.Context, tenantID, id snowflake.ID) error {
	asset, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.audit(ctx, asset, "asset.delete", map[string]any{"tag": asset.Tag})
	return nil
}

func (s *service) audit(ctx context.Context, asset *domain.Asset, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := asset.ID.String()
	if err := s.auditSvc.AuditLog(ctx, &asset.TenantID, "", nil, action, "asset", &targetID, metadata); err != nil {
		s.log.Warn("asset audit entry failed", zap.String("action", action), zap.Error(err))
	}
}
