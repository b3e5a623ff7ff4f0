// Package domain contains core types for module access resolution.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Module is a portal a user may enter.
type Module string

const (
	ModuleITSM        Module = "itsm"
	ModuleControl     Module = "control"
	ModuleSelfService Module = "self_service"
)

// DefaultRole is the role a user without a profile resolves under.
const DefaultRole = "user"

// moduleOrder fixes the order of resolved module sets.
var moduleOrder = map[Module]int{
	ModuleITSM:        0,
	ModuleControl:     1,
	ModuleSelfService: 2,
}

// NormalizeModule maps stored module names, including legacy synonyms,
// onto the canonical identifiers. The second return is false for
// unknown names.
func NormalizeModule(raw string) (Module, bool) {
	switch Module(normalize(raw)) {
	case ModuleITSM:
		return ModuleITSM, true
	case ModuleControl:
		return ModuleControl, true
	case ModuleSelfService, "self", "selfservice":
		return ModuleSelfService, true
	default:
		return "", false
	}
}

// RoleGrant allows a role to enter a module within one tenant.
type RoleGrant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_role_grants,priority:1" json:"tenant_id"`
	Role      string       `gorm:"type:text;not null;uniqueIndex:ux_role_grants,priority:2" json:"role"`
	Module    string       `gorm:"type:text;not null;uniqueIndex:ux_role_grants,priority:3" json:"module"`
	Allowed   bool         `gorm:"not null;default:false" json:"allowed"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (RoleGrant) TableName() string { return "module_role_grants" }

// UserOverride adds or removes a single module for one user. Two
// schema generations coexist: older rows carry the boolean Allowed,
// newer rows the string Effect. Effect wins when both are present.
type UserOverride struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_user_overrides,priority:1" json:"tenant_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_user_overrides,priority:2" json:"user_id"`
	Module    string       `gorm:"type:text;not null;uniqueIndex:ux_user_overrides,priority:3" json:"module"`
	Allowed   *bool        `gorm:"column:allowed" json:"allowed,omitempty"`
	Effect    string       `gorm:"type:text" json:"effect,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UserOverride) TableName() string { return "module_user_overrides" }

// Effect is a normalized override decision.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// NormalizedEffect reduces the row's two schema shapes to one
// decision. grant is a legacy synonym for allow, block for deny.
func (o UserOverride) NormalizedEffect() (Effect, bool) {
	switch normalize(o.Effect) {
	case "allow", "grant":
		return EffectAllow, true
	case "deny", "block":
		return EffectDeny, true
	}
	if o.Allowed != nil {
		if *o.Allowed {
			return EffectAllow, true
		}
		return EffectDeny, true
	}
	return "", false
}
