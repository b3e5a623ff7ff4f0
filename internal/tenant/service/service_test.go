package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stackdesk/stackdesk/internal/config"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	"github.com/stackdesk/stackdesk/internal/tenant/repository"
	"github.com/stackdesk/stackdesk/pkg/db"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) tenantdomain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&tenantdomain.Tenant{}, &tenantdomain.TenantSettings{}, &tenantdomain.Profile{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo, profileRepo := repository.NewRepository(dbConn)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	cfg := config.Config{
		PlatformDomain: "example.com",
		DevTenantSlug:  "demo",
	}
	return NewService(zap.NewNop(), dbConn, repo, profileRepo, node, nil, cfg)
}

func TestResolveHostTable(t *testing.T) {
	cases := []struct {
		host string
		app  tenantdomain.App
		slug string
	}{
		{"acme-itsm.example.com", tenantdomain.AppITSM, "acme"},
		{"acme-control.example.com", tenantdomain.AppControl, "acme"},
		{"acme-self.example.com", tenantdomain.AppSelfService, "acme"},
		{"ACME-ITSM.Example.Com", tenantdomain.AppITSM, "acme"},
		{"acme-itsm.example.com:8443", tenantdomain.AppITSM, "acme"},
		{"example.com", tenantdomain.AppMarketing, ""},
		{"www.example.com", tenantdomain.AppMarketing, ""},
		{"localhost:3000", tenantdomain.AppITSM, "demo"},
		{"127.0.0.1", tenantdomain.AppITSM, "demo"},
		{"acme.example.com", tenantdomain.AppITSM, "acme"},
	}

	for _, tc := range cases {
		info := tenantdomain.ResolveHost(tc.host, "example.com", "demo")
		if info.App != tc.app || info.Slug != tc.slug {
			t.Errorf("ResolveHost(%q) = {%s %q}, want {%s %q}", tc.host, info.App, info.Slug, tc.app, tc.slug)
		}
	}
}

func TestResolveMarketingHost(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Resolve(context.Background(), "www.example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.App != tenantdomain.AppMarketing || res.Tenant != nil {
		t.Fatalf("expected marketing resolution, got %+v", res)
	}
}

func TestResolveUnknownSlug(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Resolve(context.Background(), "ghost-itsm.example.com")
	if !errors.Is(err, tenantdomain.ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestResolveKnownTenant(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.Create(context.Background(), tenantdomain.CreateTenantRequest{Name: "Acme Corp", Slug: "acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	res, err := svc.Resolve(context.Background(), "acme-control.example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Tenant == nil || res.Tenant.ID != created.ID {
		t.Fatalf("expected tenant %s, got %+v", created.ID, res.Tenant)
	}
	if res.App != tenantdomain.AppControl {
		t.Fatalf("expected control app, got %s", res.App)
	}
}

func TestCreateDuplicateSlug(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(context.Background(), tenantdomain.CreateTenantRequest{Name: "Acme"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	_, err := svc.Create(context.Background(), tenantdomain.CreateTenantRequest{Name: "acme"})
	if !errors.Is(err, tenantdomain.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestSettingsLazyCreate(t *testing.T) {
	svc := newTestService(t)
	node, _ := snowflake.NewNode(2)

	tenant, err := svc.Create(context.Background(), tenantdomain.CreateTenantRequest{Name: "Globex"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	settings, err := svc.Settings(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	if settings.Timezone != "UTC" {
		t.Fatalf("expected default timezone, got %q", settings.Timezone)
	}

	if _, err := svc.Settings(context.Background(), node.Generate()); !errors.Is(err, tenantdomain.ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound for unknown tenant, got %v", err)
	}
}

func TestSettingsLogoNormalization(t *testing.T) {
	svc := newTestService(t)

	tenant, err := svc.Create(context.Background(), tenantdomain.CreateTenantRequest{Name: "Initech"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	logo := "logos/initech.png"
	settings, err := svc.UpdateSettings(context.Background(), tenant.ID, tenantdomain.UpdateSettingsRequest{LogoPath: &logo})
	if err != nil {
		t.Fatalf("update settings failed: %v", err)
	}
	want := "https://assets.example.com/logos/initech.png"
	if settings.LogoURL != want {
		t.Fatalf("expected %q, got %q", want, settings.LogoURL)
	}

	absolute := "https://cdn.initech.com/logo.png"
	settings, err = svc.UpdateSettings(context.Background(), tenant.ID, tenantdomain.UpdateSettingsRequest{LogoPath: &absolute})
	if err != nil {
		t.Fatalf("update settings failed: %v", err)
	}
	if settings.LogoURL != absolute {
		t.Fatalf("expected absolute URL to pass through, got %q", settings.LogoURL)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	svc := newTestService(t)
	node, _ := snowflake.NewNode(3)

	tenant, err := svc.Create(context.Background(), tenantdomain.CreateTenantRequest{Name: "Umbrella"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	userID := node.Generate()
	profile, err := svc.CreateProfile(context.Background(), tenantdomain.CreateProfileRequest{
		TenantID: tenant.ID,
		UserID:   userID,
		Role:     "admin",
		FullName: "Ada Wong",
		Email:    "ada@umbrella.example",
	})
	if err != nil {
		t.Fatalf("create profile failed: %v", err)
	}

	got, err := svc.ProfileFor(context.Background(), tenant.ID, userID)
	if err != nil {
		t.Fatalf("profile lookup failed: %v", err)
	}
	if got.ID != profile.ID || got.Role != "admin" {
		t.Fatalf("unexpected profile %+v", got)
	}

	if err := svc.UpdateProfileRole(context.Background(), tenant.ID, profile.ID, "user"); err != nil {
		t.Fatalf("update role failed: %v", err)
	}
	got, err = svc.ProfileFor(context.Background(), tenant.ID, userID)
	if err != nil {
		t.Fatalf("profile lookup failed: %v", err)
	}
	if got.Role != "user" {
		t.Fatalf("expected updated role, got %q", got.Role)
	}
}
