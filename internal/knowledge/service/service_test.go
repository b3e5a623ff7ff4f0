package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/stackdesk/stackdesk/internal/knowledge/domain"
	"github.com/stackdesk/stackdesk/internal/knowledge/repository"
	"github.com/stackdesk/stackdesk/pkg/db"
)

func newTestService(t *testing.T) (domain.Service, snowflake.ID) {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.Article{}); err != nil {
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
	return svc, node.Generate()
}

func TestCreateSlugifiesTitle(t *testing.T) {
	svc, tenantID := newTestService(t)

	article, err := svc.Create(context.Background(), domain.CreateArticleRequest{
		TenantID: tenantID,
		Title:    "How To Reset Your VPN Password",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if article.Slug != "how-to-reset-your-vpn-password" {
		t.Fatalf("unexpected slug %q", article.Slug)
	}
	if article.Status != domain.StatusDraft {
		t.Fatalf("expected draft status, got %s", article.Status)
	}
}

func TestCreateDuplicateSlug(t *testing.T) {
	svc, tenantID := newTestService(t)

	if _, err := svc.Create(context.Background(), domain.CreateArticleRequest{
		TenantID: tenantID,
		Title:    "Onboarding Guide",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := svc.Create(context.Background(), domain.CreateArticleRequest{
		TenantID: tenantID,
		Title:    "Onboarding Guide",
	})
	if err != domain.ErrSlugTaken {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestGetBySlugRequiresPublished(t *testing.T) {
	svc, tenantID := newTestService(t)

	article, err := svc.Create(context.Background(), domain.CreateArticleRequest{
		TenantID: tenantID,
		Title:    "Printer Setup",
		Body:     "Plug it in.",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.GetBySlug(context.Background(), tenantID, article.Slug); err != domain.ErrNotPublished {
		t.Fatalf("expected ErrNotPublished for draft, got %v", err)
	}

	published, err := svc.Publish(context.Background(), tenantID, article.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.PublishedAt == nil {
		t.Fatal("published_at not set")
	}

	got, err := svc.GetBySlug(context.Background(), tenantID, article.Slug)
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if got.ID != article.ID {
		t.Fatalf("unexpected article %s", got.ID)
	}
}

func TestArchiveHidesFromSlugLookup(t *testing.T) {
	svc, tenantID := newTestService(t)

	article, err := svc.Create(context.Background(), domain.CreateArticleRequest{
		TenantID: tenantID,
		Title:    "Legacy Wiki Import",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Publish(context.Background(), tenantID, article.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := svc.Archive(context.Background(), tenantID, article.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if _, err := svc.GetBySlug(context.Background(), tenantID, article.Slug); err != domain.ErrNotPublished {
		t.Fatalf("expected ErrNotPublished for archived, got %v", err)
	}
}
