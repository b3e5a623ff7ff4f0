package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	"github.com/stackdesk/stackdesk/internal/knowledge/domain"
	"github.com/stackdesk/stackdesk/pkg/db"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	GenID    *snowflake.Node
	AuditSvc auditdomain.Service `optional:"true"`
}

type service struct {
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		log:      p.Log,
		repo:     p.Repo,
		genID:    p.GenID,
		auditSvc: p.AuditSvc,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateArticleRequest) (*domain.Article, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}

	article := &domain.Article{
		ID:       s.genID.Generate(),
		TenantID: req.TenantID,
		Slug:     slug.Make(title),
		Title:    title,
		Body:     req.Body,
		Status:   domain.StatusDraft,
		AuthorID: req.AuthorID,
	}

	if err := s.repo.Create(ctx, article); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.audit(ctx, article, "kb_article.create")
	return article, nil
}

func (s *service) Get(ctx context.Context, tenantID, id snowflake.ID) (*domain.Article, error) {
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) GetBySlug(ctx context.Context, tenantID snowflake.ID, articleSlug string) (*domain.Article, error) {
	article, err := s.repo.FindBySlug(ctx, tenantID, articleSlug)
	if err != nil {
		return nil, err
	}
	if article.Status != domain.StatusPublished {
		return nil, domain.ErrNotPublished
	}
	return article, nil
}

func (s *service) List(ctx context.Context, req domain.ListArticlesRequest) ([]*domain.Article, error) {
	return s.repo.List(ctx, req)
}

func (s *service) Update(ctx context.Context, tenantID, id snowflake.ID, req domain.UpdateArticleRequest) (*domain.Article, error) {
	article, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domain.ErrInvalidTitle
		}
		fields["title"] = title
	}
	if req.Body != nil {
		fields["body"] = *req.Body
	}

	if len(fields) == 0 {
		return article, nil
	}

	if err := s.repo.UpdateFields(ctx, tenantID, id, fields); err != nil {
		return nil, err
	}

	s.audit(ctx, article, "kb_article.update")
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) Publish(ctx context.Context, tenantID, id snowflake.ID) (*domain.Article, error) {
	article, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if article.Status == domain.StatusPublished {
		return article, nil
	}

	fields := map[string]any{
		"status":       domain.StatusPublished,
		"published_at": time.Now().UTC(),
	}
	if err := s.repo.UpdateFields(ctx, tenantID, id, fields); err != nil {
		return nil, err
	}

	s.audit(ctx, article, "kb_article.publish")
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) Archive(ctx context.Context, tenantID, id snowflake.ID) (*domain.Article, error) {
	article, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if article.Status == domain.StatusArchived {
		return article, nil
	}

	if err := s.repo.UpdateFields(ctx, tenantID, id, map[string]any{
		"status": domain.StatusArchived,
	}); err != nil {
		return nil, err
	}

	s.audit(ctx, article, "kb_article.archive")
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *service) audit(ctx context.Context, article *domain.Article, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := article.ID.String()
	metadata := map[string]any{"slug": article.Slug}
	if err := s.auditSvc.AuditLog(ctx, &article.TenantID, "", nil, action, "kb_article", &targetID, metadata); err != nil {
		s.log.Warn("article audit entry failed", zap.String("action", action), zap.Error(err))
	}
}
