package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	"github.com/stackdesk/stackdesk/internal/access/repository"
	"github.com/stackdesk/stackdesk/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      accessdomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	tenantID snowflake.ID
	userID   snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&accessdomain.RoleGrant{}, &accessdomain.UserOverride{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	return &fixture{
		svc:      NewService(zap.NewNop(), repository.NewRepository(dbConn), node),
		db:       dbConn,
		node:     node,
		tenantID: node.Generate(),
		userID:   node.Generate(),
	}
}

func (f *fixture) grant(t *testing.T, role, module string, allowed bool) {
	t.Helper()
	_, err := f.svc.SetRoleGrant(context.Background(), accessdomain.SetRoleGrantRequest{
		TenantID: f.tenantID,
		Role:     role,
		Module:   module,
		Allowed:  allowed,
	})
	if err != nil {
		t.Fatalf("set role grant failed: %v", err)
	}
}

func (f *fixture) override(t *testing.T, module, effect string) {
	t.Helper()
	_, err := f.svc.SetUserOverride(context.Background(), accessdomain.SetUserOverrideRequest{
		TenantID: f.tenantID,
		UserID:   f.userID,
		Module:   module,
		Effect:   effect,
	})
	if err != nil {
		t.Fatalf("set user override failed: %v", err)
	}
}

func (f *fixture) resolve(t *testing.T, role string) []accessdomain.Module {
	t.Helper()
	modules, err := f.svc.ResolveModules(context.Background(), f.tenantID, f.userID, role)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	return modules
}

func assertModules(t *testing.T, got []accessdomain.Module, want ...accessdomain.Module) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestResolveRoleGrantsOnly(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "admin", "itsm", true)
	f.grant(t, "admin", "control", true)
	f.grant(t, "admin", "self_service", false)

	assertModules(t, f.resolve(t, "admin"), accessdomain.ModuleITSM, accessdomain.ModuleControl)
}

func TestResolveDenyOverrideRemoves(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "user", "itsm", true)
	f.grant(t, "user", "control", true)
	f.override(t, "control", "deny")

	assertModules(t, f.resolve(t, "user"), accessdomain.ModuleITSM)
}

func TestResolveAllowOverrideAdds(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "user", "itsm", true)
	f.override(t, "self", "allow")

	assertModules(t, f.resolve(t, "user"), accessdomain.ModuleITSM, accessdomain.ModuleSelfService)
}

func TestResolveEffectSynonyms(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "user", "itsm", true)
	f.grant(t, "user", "control", true)

	// grant and block are legacy synonyms for allow and deny.
	f.override(t, "self", "grant")
	f.override(t, "control", "block")

	assertModules(t, f.resolve(t, "user"), accessdomain.ModuleITSM, accessdomain.ModuleSelfService)
}

func TestResolveLegacyBooleanOverride(t *testing.T) {
	f := newFixture(t)
	allowed := true
	row := &accessdomain.UserOverride{
		ID:       f.node.Generate(),
		TenantID: f.tenantID,
		UserID:   f.userID,
		Module:   "selfservice",
		Allowed:  &allowed,
	}
	if err := f.db.Create(row).Error; err != nil {
		t.Fatalf("failed to insert override: %v", err)
	}

	assertModules(t, f.resolve(t, ""), accessdomain.ModuleSelfService)
}

func TestResolveEmptyRoleFallsBackToUser(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "admin", "control", true)
	f.grant(t, "user", "itsm", true)

	// An empty role resolves under the baseline "user" role, not as
	// a grant-less caller.
	assertModules(t, f.resolve(t, ""), accessdomain.ModuleITSM)
}

func TestResolveOrdering(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "admin", "self_service", true)
	f.grant(t, "admin", "control", true)
	f.grant(t, "admin", "itsm", true)

	assertModules(t, f.resolve(t, "admin"),
		accessdomain.ModuleITSM, accessdomain.ModuleControl, accessdomain.ModuleSelfService)
}

func TestSetUserOverrideRejectsUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SetUserOverride(context.Background(), accessdomain.SetUserOverrideRequest{
		TenantID: f.tenantID,
		UserID:   f.userID,
		Module:   "billing",
		Effect:   "allow",
	})
	if err != accessdomain.ErrUnknownModule {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}

	_, err = f.svc.SetUserOverride(context.Background(), accessdomain.SetUserOverrideRequest{
		TenantID: f.tenantID,
		UserID:   f.userID,
		Module:   "itsm",
		Effect:   "maybe",
	})
	if err != accessdomain.ErrUnknownEffect {
		t.Fatalf("expected ErrUnknownEffect, got %v", err)
	}
}
