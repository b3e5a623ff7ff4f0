package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	accessrepo "github.com/stackdesk/stackdesk/internal/access/repository"
	accesssvc "github.com/stackdesk/stackdesk/internal/access/service"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	authrepo "github.com/stackdesk/stackdesk/internal/auth/repository"
	authsvc "github.com/stackdesk/stackdesk/internal/auth/service"
	"github.com/stackdesk/stackdesk/internal/config"
	"github.com/stackdesk/stackdesk/internal/migration"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	tenantrepo "github.com/stackdesk/stackdesk/internal/tenant/repository"
	tenantsvc "github.com/stackdesk/stackdesk/internal/tenant/service"
	"github.com/stackdesk/stackdesk/pkg/db"
)

func newParams(t *testing.T) (Params, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	cfg := config.Config{PlatformDomain: "stackdesk.io", DevTenantSlug: "demo"}
	userRepo, sessionRepo, identityRepo := authrepo.New(conn)
	tRepo, profileRepo := tenantrepo.NewRepository(conn)

	return Params{
		Log:        zap.NewNop(),
		Cfg:        cfg,
		TenantSvc:  tenantsvc.NewService(zap.NewNop(), conn, tRepo, profileRepo, node, nil, cfg),
		TenantRepo: tRepo,
		AuthSvc:    authsvc.New(zap.NewNop(), userRepo, sessionRepo, identityRepo, node),
		AuthRepo:   userRepo,
		AccessSvc:  accesssvc.NewService(zap.NewNop(), accessrepo.NewRepository(conn), node),
	}, conn
}

func TestEnsureFreshInstall(t *testing.T) {
	p, _ := newParams(t)
	ctx := context.Background()

	if err := Ensure(p); err != nil {
		t.Fatalf("seed failed on fresh install: %v", err)
	}

	tenant, err := p.TenantRepo.FindBySlug(ctx, "demo")
	if err != nil {
		t.Fatalf("expected seeded tenant: %v", err)
	}

	admin, err := p.AuthRepo.FindOne(ctx, authdomain.User{Email: defaultAdminEmail})
	if err != nil {
		t.Fatalf("expected seeded admin: %v", err)
	}

	// The seeded password must satisfy the auth policy, so a login
	// with it succeeds.
	if _, err := p.AuthSvc.Login(ctx, authdomain.LoginRequest{
		Email:    defaultAdminEmail,
		Password: defaultAdminPassword,
	}); err != nil {
		t.Fatalf("seeded admin cannot log in: %v", err)
	}

	profile, err := p.TenantSvc.ProfileFor(ctx, tenant.ID, admin.ID)
	if err != nil {
		t.Fatalf("expected admin profile: %v", err)
	}
	if profile.Role != tenantdomain.RoleAdmin {
		t.Fatalf("expected admin role, got %q", profile.Role)
	}

	grants, err := p.AccessSvc.ListRoleGrants(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("list grants failed: %v", err)
	}
	if len(grants) != 4 {
		t.Fatalf("expected 4 seeded grants, got %d", len(grants))
	}

	modules, err := p.AccessSvc.ResolveModules(ctx, tenant.ID, admin.ID, tenantdomain.RoleAdmin)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(modules) != 2 || modules[0] != accessdomain.ModuleITSM || modules[1] != accessdomain.ModuleControl {
		t.Fatalf("unexpected admin modules: %v", modules)
	}
}

func TestEnsureIdempotent(t *testing.T) {
	p, conn := newParams(t)

	if err := Ensure(p); err != nil {
		t.Fatalf("first seed failed: %v", err)
	}
	if err := Ensure(p); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}

	var users int64
	if err := conn.Model(&authdomain.User{}).Count(&users).Error; err != nil {
		t.Fatalf("count users failed: %v", err)
	}
	if users != 1 {
		t.Fatalf("expected a single admin user, got %d", users)
	}

	var tenants int64
	if err := conn.Model(&tenantdomain.Tenant{}).Count(&tenants).Error; err != nil {
		t.Fatalf("count tenants failed: %v", err)
	}
	if tenants != 1 {
		t.Fatalf("expected a single tenant, got %d", tenants)
	}
}

func TestEnsureUsesConfiguredPassword(t *testing.T) {
	p, _ := newParams(t)
	p.Cfg.SeedAdminPassword = "operator-chosen-secret"

	if err := Ensure(p); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := p.AuthSvc.Login(context.Background(), authdomain.LoginRequest{
		Email:    defaultAdminEmail,
		Password: "operator-chosen-secret",
	}); err != nil {
		t.Fatalf("configured password rejected: %v", err)
	}
}
