// Package domain contains core types for the tenant service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Tenant represents one customer organization, routed by subdomain slug.
type Tenant struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Slug      string            `gorm:"type:text;not null;uniqueIndex:ux_tenants_slug" json:"slug"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

// TenantSettings is one-to-one with Tenant, created lazily with
// defaults on first read.
type TenantSettings struct {
	TenantID           snowflake.ID `gorm:"primaryKey" json:"tenant_id"`
	Timezone           string       `gorm:"type:text;not null;default:'UTC'" json:"timezone"`
	SupportEmail       string       `gorm:"column:support_email;type:text" json:"support_email"`
	LogoPath           string       `gorm:"column:logo_path;type:text" json:"-"`
	LogoURL            string       `gorm:"-" json:"logo_url"`
	OnboardingComplete bool         `gorm:"column:onboarding_complete;not null;default:false" json:"onboarding_complete"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TenantSettings) TableName() string { return "tenant_settings" }

// Profile is a user's membership in a tenant, carrying the role used
// for module grants.
type Profile struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_profiles_tenant_user,priority:2" json:"user_id"`
	TenantID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_profiles_tenant_user,priority:1" json:"tenant_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	FullName  string       `gorm:"column:full_name;type:text" json:"full_name"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }

const (
	RoleAdmin       = "admin"
	RoleUser        = "user"
	RoleSelfService = "selfservice"
)
