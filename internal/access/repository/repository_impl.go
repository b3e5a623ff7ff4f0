package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stackdesk/stackdesk/internal/access/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) ListRoleGrants(ctx context.Context, tenantID snowflake.ID, role string) ([]domain.RoleGrant, error) {
	var grants []domain.RoleGrant
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND role = ? AND allowed = ?", tenantID, role, true).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *repo) ListUserOverrides(ctx context.Context, tenantID, userID snowflake.ID) ([]domain.UserOverride, error) {
	var overrides []domain.UserOverride
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Find(&overrides).Error
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

func (r *repo) UpsertRoleGrant(ctx context.Context, grant *domain.RoleGrant) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "role"}, {Name: "module"}},
		DoUpdates: clause.AssignmentColumns([]string{"allowed", "updated_at"}),
	}).Create(grant).Error
}

func (r *repo) ListAllRoleGrants(ctx context.Context, tenantID snowflake.ID) ([]domain.RoleGrant, error) {
	var grants []domain.RoleGrant
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("role ASC, module ASC").
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *repo) UpsertUserOverride(ctx context.Context, override *domain.UserOverride) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}, {Name: "module"}},
		DoUpdates: clause.AssignmentColumns([]string{"allowed", "effect", "updated_at"}),
	}).Create(override).Error
}

func (r *repo) ListAllUserOverrides(ctx context.Context, tenantID snowflake.ID) ([]domain.UserOverride, error) {
	var overrides []domain.UserOverride
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("user_id ASC, module ASC").
		Find(&overrides).Error
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

func (r *repo) DeleteUserOverride(ctx context.Context, tenantID snowflake.ID, id snowflake.ID) error {
	tx := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&domain.UserOverride{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrOverrideNotFound
	}
	return nil
}
