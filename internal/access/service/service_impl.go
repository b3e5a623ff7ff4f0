package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stackdesk/stackdesk/internal/access/domain"
	"go.uber.org/zap"
)

type service struct {
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func NewService(log *zap.Logger, repo domain.Repository, genID *snowflake.Node) domain.Service {
	return &service{
		log:   log.Named("access.service"),
		repo:  repo,
		genID: genID,
	}
}

func (s *service) ResolveModules(ctx context.Context, tenantID, userID snowflake.ID, role string) ([]domain.Module, error) {
	allowed := map[domain.Module]bool{}

	// Callers without a profile still resolve against the baseline role.
	role = strings.TrimSpace(role)
	if role == "" {
		role = domain.DefaultRole
	}

	grants, err := s.repo.ListRoleGrants(ctx, tenantID, role)
	if err != nil {
		return nil, err
	}
	for _, grant := range grants {
		module, ok := domain.NormalizeModule(grant.Module)
		if !ok {
			s.log.Warn("skipping grant with unknown module",
				zap.String("tenant_id", tenantID.String()),
				zap.String("module", grant.Module),
			)
			continue
		}
		allowed[module] = true
	}

	overrides, err := s.repo.ListUserOverrides(ctx, tenantID, userID)
	if err != nil {
		// Overrides are a refinement; the role set still stands.
		s.log.Warn("override lookup failed, using role grants only",
			zap.String("tenant_id", tenantID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return sortedSet(allowed), nil
	}

	// Deny first, allow second, so an allow row can never be clobbered
	// by a deny row for the same module.
	for _, override := range overrides {
		module, ok := domain.NormalizeModule(override.Module)
		if !ok {
			continue
		}
		if effect, ok := override.NormalizedEffect(); ok && effect == domain.EffectDeny {
			delete(allowed, module)
		}
	}
	for _, override := range overrides {
		module, ok := domain.NormalizeModule(override.Module)
		if !ok {
			continue
		}
		if effect, ok := override.NormalizedEffect(); ok && effect == domain.EffectAllow {
			allowed[module] = true
		}
	}

	return sortedSet(allowed), nil
}

func (s *service) SetRoleGrant(ctx context.Context, req domain.SetRoleGrantRequest) (*domain.RoleGrant, error) {
	module, ok := domain.NormalizeModule(req.Module)
	if !ok {
		return nil, domain.ErrUnknownModule
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		return nil, domain.ErrUnknownModule
	}

	now := time.Now().UTC()
	grant := &domain.RoleGrant{
		ID:        s.genID.Generate(),
		TenantID:  req.TenantID,
		Role:      role,
		Module:    string(module),
		Allowed:   req.Allowed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.UpsertRoleGrant(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

func (s *service) ListRoleGrants(ctx context.Context, tenantID snowflake.ID) ([]domain.RoleGrant, error) {
	return s.repo.ListAllRoleGrants(ctx, tenantID)
}

func (s *service) SetUserOverride(ctx context.Context, req domain.SetUserOverrideRequest) (*domain.UserOverride, error) {
	module, ok := domain.NormalizeModule(req.Module)
	if !ok {
		return nil, domain.ErrUnknownModule
	}

	now := time.Now().UTC()
	override := &domain.UserOverride{
		ID:        s.genID.Generate(),
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		Module:    string(module),
		Effect:    strings.ToLower(strings.TrimSpace(req.Effect)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, ok := override.NormalizedEffect(); !ok {
		return nil, domain.ErrUnknownEffect
	}

	if err := s.repo.UpsertUserOverride(ctx, override); err != nil {
		return nil, err
	}
	return override, nil
}

func (s *service) ListUserOverrides(ctx context.Context, tenantID snowflake.ID) ([]domain.UserOverride, error) {
	return s.repo.ListAllUserOverrides(ctx, tenantID)
}

func (s *service) RemoveUserOverride(ctx context.Context, tenantID, id snowflake.ID) error {
	return s.repo.DeleteUserOverride(ctx, tenantID, id)
}

func sortedSet(allowed map[domain.Module]bool) []domain.Module {
	modules := make([]domain.Module, 0, len(allowed))
	for module := range allowed {
		modules = append(modules, module)
	}
	domain.SortModules(modules)
	return modules
}
