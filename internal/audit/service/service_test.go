package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/stackdesk/stackdesk/internal/audit/domain"
	"github.com/stackdesk/stackdesk/internal/audit/repository"
	"github.com/stackdesk/stackdesk/internal/auditcontext"
	"github.com/stackdesk/stackdesk/pkg/db"
	"github.com/stackdesk/stackdesk/pkg/tenantctx"
)

func newTestService(t *testing.T) (domain.Service, *snowflake.Node) {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	svc := NewService(Params{
		Log:   zap.NewNop(),
		DB:    conn,
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, node
}

func TestAuditLogMasksSensitiveMetadata(t *testing.T) {
	svc, node := newTestService(t)
	tenantID := node.Generate()

	ctx := auditcontext.WithRequestID(context.Background(), "req-123")
	err := svc.AuditLog(ctx, &tenantID, domain.ActorTypeUser, ptr("42"), "auth.login", "user", ptr("42"), map[string]any{
		"email":         "alice@example.com",
		"session_token": "tok_abcdef123456",
	})
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}

	res, err := svc.List(context.Background(), domain.ListAuditLogRequest{TenantID: &tenantID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Data) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(res.Data))
	}

	entry := res.Data[0]
	if entry.Metadata["email"] != "alice@example.com" {
		t.Fatalf("plain metadata altered: %v", entry.Metadata["email"])
	}
	if entry.Metadata["session_token"] != "tok_****3456" {
		t.Fatalf("token not masked: %v", entry.Metadata["session_token"])
	}
	if entry.Metadata["request_id"] != "req-123" {
		t.Fatalf("request id not recorded: %v", entry.Metadata["request_id"])
	}
}

func TestAuditLogResolvesActorAndTenantFromContext(t *testing.T) {
	svc, node := newTestService(t)
	tenantID := node.Generate()

	ctx := tenantctx.WithTenantID(context.Background(), int64(tenantID))
	ctx = auditcontext.WithActor(ctx, domain.ActorTypeUser, "7")
	if err := svc.AuditLog(ctx, nil, "", nil, "tenant.update", "tenant", nil, nil); err != nil {
		t.Fatalf("audit log: %v", err)
	}

	res, err := svc.List(context.Background(), domain.ListAuditLogRequest{TenantID: &tenantID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Data) != 1 {
		t.Fatalf("expected entry scoped to context tenant, got %d", len(res.Data))
	}
	entry := res.Data[0]
	if entry.ActorType != domain.ActorTypeUser || entry.ActorID == nil || *entry.ActorID != "7" {
		t.Fatalf("unexpected actor: %s %v", entry.ActorType, entry.ActorID)
	}
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.AuditLog(context.Background(), nil, "", nil, "  ", "", nil, nil); err != domain.ErrInvalidAction {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestListPagination(t *testing.T) {
	svc, node := newTestService(t)
	tenantID := node.Generate()

	for i := 0; i < 5; i++ {
		if err := svc.AuditLog(context.Background(), &tenantID, domain.ActorTypeSystem, nil, "grant.set", "module_grant", nil, nil); err != nil {
			t.Fatalf("audit log %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	req := domain.ListAuditLogRequest{TenantID: &tenantID}
	req.PageSize = 2
	page1, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Data) != 2 || !page1.PageInfo.HasMore {
		t.Fatalf("expected full first page with more, got %d entries has_more=%v", len(page1.Data), page1.PageInfo.HasMore)
	}

	seen := map[snowflake.ID]bool{}
	for _, e := range page1.Data {
		seen[e.ID] = true
	}

	req.PageToken = page1.PageInfo.NextPageToken
	page2, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Data) != 2 {
		t.Fatalf("expected 2 entries on page 2, got %d", len(page2.Data))
	}
	for _, e := range page2.Data {
		if seen[e.ID] {
			t.Fatalf("entry %s repeated across pages", e.ID)
		}
	}

	if !page1.Data[0].CreatedAt.After(page1.Data[1].CreatedAt) && page1.Data[0].ID <= page1.Data[1].ID {
		t.Fatal("entries not in descending order")
	}
}

func TestListInvalidPageToken(t *testing.T) {
	svc, _ := newTestService(t)
	req := domain.ListAuditLogRequest{}
	req.PageToken = "not-a-cursor"
	if _, err := svc.List(context.Background(), req); err != domain.ErrInvalidPageToken {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func ptr(s string) *string { return &s }
