package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/stackdesk/stackdesk/internal/asset/domain"
	"github.com/stackdesk/stackdesk/internal/asset/repository"
	"github.com/stackdesk/stackdesk/pkg/db"
)

type fixture struct {
	svc      domain.Service
	node     *snowflake.Node
	tenantID snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.Asset{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	svc := NewService(Params{
		Log:   zap.NewNop(),
		Repo:  repository.New(conn),
		GenID: node,
	})

	return &fixture{
		svc:      svc,
		node:     node,
		tenantID: node.Generate(),
	}
}

func (f *fixture) create(t *testing.T, tag string) *domain.Asset {
	t.Helper()
	asset, err := f.svc.Create(context.Background(), domain.CreateAssetRequest{
		TenantID: f.tenantID,
		Tag:      tag,
		Name:     "ThinkPad T14",
		Category: "laptop",
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return asset
}

func TestCreateStartsInStock(t *testing.T) {
	f := newFixture(t)

	asset := f.create(t, "IT-0001")
	if asset.Status != domain.StatusInStock {
		t.Fatalf("expected %s, got %s", domain.StatusInStock, asset.Status)
	}
}

func TestCreateDuplicateTag(t *testing.T) {
	f := newFixture(t)
	f.create(t, "IT-0001")

	_, err := f.svc.Create(context.Background(), domain.CreateAssetRequest{
		TenantID: f.tenantID,
		Tag:      "IT-0001",
		Name:     "ThinkPad T14",
	})
	if !errors.Is(err, domain.ErrTagTaken) {
		t.Fatalf("expected ErrTagTaken, got %v", err)
	}
}

func TestAssignMovesToInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.create(t, "IT-0001")
	userID := f.node.Generate()

	updated, err := f.svc.Assign(ctx, f.tenantID, asset.ID, userID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if updated.Status != domain.StatusInUse {
		t.Fatalf("expected %s, got %s", domain.StatusInUse, updated.Status)
	}
	if updated.AssignedToID == nil || *updated.AssignedToID != userID {
		t.Fatalf("expected assignee %s, got %v", userID, updated.AssignedToID)
	}
}

func TestRetireClearsAssigneeAndBlocksAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.create(t, "IT-0001")

	if _, err := f.svc.Assign(ctx, f.tenantID, asset.ID, f.node.Generate()); err != nil {
		t.Fatalf("assign: %v", err)
	}

	retired, err := f.svc.Retire(ctx, f.tenantID, asset.ID)
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if retired.Status != domain.StatusRetired {
		t.Fatalf("expected %s, got %s", domain.StatusRetired, retired.Status)
	}
	if retired.AssignedToID != nil {
		t.Fatalf("expected assignee cleared, got %v", retired.AssignedToID)
	}

	// Retire twice is a no-op.
	if _, err := f.svc.Retire(ctx, f.tenantID, asset.ID); err != nil {
		t.Fatalf("second retire: %v", err)
	}

	if _, err := f.svc.Assign(ctx, f.tenantID, asset.ID, f.node.Generate()); !errors.Is(err, domain.ErrAssetRetired) {
		t.Fatalf("expected ErrAssetRetired, got %v", err)
	}
}

func TestDeleteRemovesAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.create(t, "IT-0001")

	if err := f.svc.Delete(ctx, f.tenantID, asset.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.tenantID, asset.ID); !errors.Is(err, domain.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.create(t, "IT-0001")

	otherTenant := f.node.Generate()
	if _, err := f.svc.Get(ctx, otherTenant, asset.ID); !errors.Is(err, domain.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound across tenants, got %v", err)
	}
}
