// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User represents a platform-level account. Tenant membership and role
// live on the profile, not here.
type User struct {
	ID                  snowflake.ID      `gorm:"primaryKey"`
	ExternalID          string            `gorm:"column:external_id;type:text;not null;uniqueIndex"`
	Email               string            `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash        *string           `gorm:"type:text"`
	DisplayName         string            `gorm:"column:display_name;type:text"`
	AvatarURL           string            `gorm:"column:avatar_url;type:text"`
	EmailConfirmedAt    *time.Time        `gorm:"column:email_confirmed_at"`
	LastPasswordChanged *time.Time        `gorm:"column:last_password_changed"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session. The raw token is never
// stored, only its hash.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// Identity is a login method linked to a user. Every user has at least
// one; the last identity cannot be unlinked.
type Identity struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     snowflake.ID `gorm:"column:user_id;not null;index:idx_identities_user_provider,unique"`
	Provider   string       `gorm:"column:provider;type:text;not null;index:idx_identities_user_provider,unique"`
	ProviderID string       `gorm:"column:provider_id;type:text;not null"`
	Email      string       `gorm:"column:email;type:text"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Identity) TableName() string { return "identities" }
