package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/stackdesk/stackdesk/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (domain.Repository, domain.ProfileRepository) {
	r := &repo{db: db}
	return r, r
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{db: tx}
}

func (r *repo) CreateTenant(ctx context.Context, tenant *domain.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

func (r *repo) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	var tenants []domain.Tenant
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repo) UpdateTenant(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.Tenant{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *repo) GetSettings(ctx context.Context, tenantID snowflake.ID) (*domain.TenantSettings, error) {
	var settings domain.TenantSettings
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *repo) CreateSettings(ctx context.Context, settings *domain.TenantSettings) error {
	return r.db.WithContext(ctx).Create(settings).Error
}

func (r *repo) UpdateSettings(ctx context.Context, tenantID snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.TenantSettings{}).Where("tenant_id = ?", tenantID).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *repo) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repo) GetProfile(ctx context.Context, tenantID, userID snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repo) GetProfileByUser(ctx context.Context, userID snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repo) ListProfiles(ctx context.Context, tenantID snowflake.ID) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repo) UpdateProfile(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.Profile{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
