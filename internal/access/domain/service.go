package domain

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	ListRoleGrants(ctx context.Context, tenantID snowflake.ID, role string) ([]RoleGrant, error)
	ListUserOverrides(ctx context.Context, tenantID, userID snowflake.ID) ([]UserOverride, error)

	UpsertRoleGrant(ctx context.Context, grant *RoleGrant) error
	ListAllRoleGrants(ctx context.Context, tenantID snowflake.ID) ([]RoleGrant, error)
	UpsertUserOverride(ctx context.Context, override *UserOverride) error
	ListAllUserOverrides(ctx context.Context, tenantID snowflake.ID) ([]UserOverride, error)
	DeleteUserOverride(ctx context.Context, tenantID snowflake.ID, id snowflake.ID) error
}

type Service interface {
	// ResolveModules computes the ordered set of modules a user may
	// enter on a tenant: role grants seed the set, deny overrides are
	// subtracted, allow overrides added last so allow always wins.
	ResolveModules(ctx context.Context, tenantID, userID snowflake.ID, role string) ([]Module, error)

	SetRoleGrant(ctx context.Context, req SetRoleGrantRequest) (*RoleGrant, error)
	ListRoleGrants(ctx context.Context, tenantID snowflake.ID) ([]RoleGrant, error)
	SetUserOverride(ctx context.Context, req SetUserOverrideRequest) (*UserOverride, error)
	ListUserOverrides(ctx context.Context, tenantID snowflake.ID) ([]UserOverride, error)
	RemoveUserOverride(ctx context.Context, tenantID, id snowflake.ID) error
}

type SetRoleGrantRequest struct {
	TenantID snowflake.ID
	Role     string
	Module   string
	Allowed  bool
}

type SetUserOverrideRequest struct {
	TenantID snowflake.ID
	UserID   snowflake.ID
	Module   string
	Effect   string
}

// SortModules orders a module set as itsm, control, self_service.
func SortModules(modules []Module) {
	sort.Slice(modules, func(i, j int) bool {
		return moduleOrder[modules[i]] < moduleOrder[modules[j]]
	})
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
