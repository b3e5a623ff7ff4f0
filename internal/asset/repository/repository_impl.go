package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/stackdesk/stackdesk/internal/asset/domain"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, asset *domain.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

func (r *repo) FindByID(ctx context.Context, tenantID, id snowflake.ID) (*domain.Asset, error) {
	var asset domain.Asset
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAssetNotFound
		}
		return nil, err
	}
	return &asset, nil
}

func (r *repo) FindByTag(ctx context.Context, tenantID snowflake.ID, tag string) (*domain.Asset, error) {
	var asset domain.Asset
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND tag = ?", tenantID, tag).
		First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAssetNotFound
		}
		return nil, err
	}
	return &asset, nil
}

func (r *repo) List(ctx context.Context, req domain.ListAssetsRequest) ([]*domain.Asset, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.Asset{}).
		Where("tenant_id = ?", req.TenantID)

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.AssignedTo != "" {
		query = query.Where("assigned_to_id = ?", req.AssignedTo)
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var assets []*domain.Asset
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *repo) UpdateFields(ctx context.Context, tenantID, id snowflake.ID, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Asset{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAssetNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, tenantID, id snowflake.ID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&domain.Asset{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAssetNotFound
	}
	return nil
}
