package seed

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	"github.com/stackdesk/stackdesk/internal/config"
	"github.com/stackdesk/stackdesk/internal/ratelimit"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
)

const (
	defaultTenantName   = "Demo Workspace"
	defaultAdminEmail   = "admin@stackdesk.io"
	defaultAdminDisplay = "StackDesk Admin"

	// Must satisfy the auth service's minimum password length.
	defaultAdminPassword = "stackdesk-admin"

	seedLockKey = "seed:default-tenant"
	seedLockTTL = 30 * time.Second
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	TenantSvc  tenantdomain.Service
	TenantRepo tenantdomain.Repository
	AuthSvc    authdomain.Service
	AuthRepo   authdomain.Repository
	AccessSvc  accessdomain.Service
	Locker     *ratelimit.Locker `optional:"true"`
}

// Ensure seeds the default tenant, admin user and module grants so a
// fresh install is usable out of the box. Safe to run on every boot.
func Ensure(p Params) error {
	ctx := context.Background()

	if p.Locker != nil {
		token, ok, err := p.Locker.TryLock(ctx, seedLockKey, seedLockTTL)
		if err != nil {
			return err
		}
		if !ok {
			p.Log.Info("seed lock held elsewhere, skipping")
			return nil
		}
		defer p.Locker.Release(ctx, seedLockKey, token)
	}

	tenant, err := ensureTenant(ctx, p)
	if err != nil {
		return err
	}

	admin, err := ensureAdmin(ctx, p)
	if err != nil {
		return err
	}

	if err := ensureProfile(ctx, p, tenant, admin); err != nil {
		return err
	}

	return ensureRoleGrants(ctx, p, tenant)
}

func ensureTenant(ctx context.Context, p Params) (*tenantdomain.Tenant, error) {
	tenant, err := p.TenantRepo.FindBySlug(ctx, p.Cfg.DevTenantSlug)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, tenantdomain.ErrTenantNotFound) {
		return nil, err
	}

	tenant, err = p.TenantSvc.Create(ctx, tenantdomain.CreateTenantRequest{
		Name: defaultTenantName,
		Slug: p.Cfg.DevTenantSlug,
	})
	if err != nil {
		return nil, err
	}
	p.Log.Info("seeded default tenant", zap.String("slug", tenant.Slug))
	return tenant, nil
}

func ensureAdmin(ctx context.Context, p Params) (*authdomain.User, error) {
	user, err := p.AuthRepo.FindOne(ctx, authdomain.User{Email: defaultAdminEmail})
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, err
	}

	password := p.Cfg.SeedAdminPassword
	if password == "" {
		password = defaultAdminPassword
	}
	user, err = p.AuthSvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       defaultAdminEmail,
		Password:    password,
		DisplayName: defaultAdminDisplay,
		Confirmed:   true,
	})
	if err != nil {
		return nil, err
	}
	p.Log.Info("seeded default admin", zap.String("email", defaultAdminEmail))
	return user, nil
}

func ensureProfile(ctx context.Context, p Params, tenant *tenantdomain.Tenant, admin *authdomain.User) error {
	_, err := p.TenantSvc.ProfileFor(ctx, tenant.ID, admin.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, tenantdomain.ErrProfileNotFound) {
		return err
	}

	_, err = p.TenantSvc.CreateProfile(ctx, tenantdomain.CreateProfileRequest{
		TenantID: tenant.ID,
		UserID:   admin.ID,
		Role:     tenantdomain.RoleAdmin,
		FullName: defaultAdminDisplay,
		Email:    defaultAdminEmail,
	})
	return err
}

func ensureRoleGrants(ctx context.Context, p Params, tenant *tenantdomain.Tenant) error {
	grants := []accessdomain.SetRoleGrantRequest{
		{TenantID: tenant.ID, Role: tenantdomain.RoleAdmin, Module: string(accessdomain.ModuleITSM), Allowed: true},
		{TenantID: tenant.ID, Role: tenantdomain.RoleAdmin, Module: string(accessdomain.ModuleControl), Allowed: true},
		{TenantID: tenant.ID, Role: tenantdomain.RoleUser, Module: string(accessdomain.ModuleITSM), Allowed: true},
		{TenantID: tenant.ID, Role: tenantdomain.RoleSelfService, Module: string(accessdomain.ModuleSelfService), Allowed: true},
	}
	for _, grant := range grants {
		if _, err := p.AccessSvc.SetRoleGrant(ctx, grant); err != nil {
			return err
		}
	}
	return nil
}
