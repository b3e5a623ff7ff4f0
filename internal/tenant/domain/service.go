package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateTenantRequest) (*Tenant, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateTenantRequest) (*Tenant, error)

	// Resolve maps a request hostname onto a tenant. Marketing hosts
	// return a resolution with a nil Tenant and no error; an unknown
	// slug returns ErrTenantNotFound; anything else is a dependency
	// failure.
	Resolve(ctx context.Context, host string) (*Resolution, error)

	Settings(ctx context.Context, tenantID snowflake.ID) (*TenantSettings, error)
	UpdateSettings(ctx context.Context, tenantID snowflake.ID, req UpdateSettingsRequest) (*TenantSettings, error)

	ProfileFor(ctx context.Context, tenantID, userID snowflake.ID) (*Profile, error)
	// ProfileByUser finds a user's profile regardless of tenant, for
	// data predating per-tenant membership rows.
	ProfileByUser(ctx context.Context, userID snowflake.ID) (*Profile, error)
	ListProfiles(ctx context.Context, tenantID snowflake.ID) ([]Profile, error)
	CreateProfile(ctx context.Context, req CreateProfileRequest) (*Profile, error)
	UpdateProfileRole(ctx context.Context, tenantID, profileID snowflake.ID, role string) error
}

// Resolution is the outcome of a hostname lookup.
type Resolution struct {
	App    App
	Slug   string
	Tenant *Tenant
}

type CreateTenantRequest struct {
	Name string
	// Slug is optional; derived from Name when empty.
	Slug string
}

type UpdateTenantRequest struct {
	Name string
}

type UpdateSettingsRequest struct {
	Timezone           *string
	SupportEmail       *string
	LogoPath           *string
	OnboardingComplete *bool
}

type CreateProfileRequest struct {
	TenantID snowflake.ID
	UserID   snowflake.ID
	Role     string
	FullName string
	Email    string
}
