package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTenant(ctx context.Context, tenant *Tenant) error
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	UpdateTenant(ctx context.Context, id snowflake.ID, fields map[string]any) error

	GetSettings(ctx context.Context, tenantID snowflake.ID) (*TenantSettings, error)
	CreateSettings(ctx context.Context, settings *TenantSettings) error
	UpdateSettings(ctx context.Context, tenantID snowflake.ID, fields map[string]any) error
}

type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *Profile) error
	GetProfile(ctx context.Context, tenantID, userID snowflake.ID) (*Profile, error)
	GetProfileByUser(ctx context.Context, userID snowflake.ID) (*Profile, error)
	ListProfiles(ctx context.Context, tenantID snowflake.ID) ([]Profile, error)
	UpdateProfile(ctx context.Context, id snowflake.ID, fields map[string]any) error
}
