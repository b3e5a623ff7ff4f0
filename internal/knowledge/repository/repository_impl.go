package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/stackdesk/stackdesk/internal/knowledge/domain"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, article *domain.Article) error {
	return r.db.WithContext(ctx).Create(article).Error
}

func (r *repo) FindByID(ctx context.Context, tenantID, id snowflake.ID) (*domain.Article, error) {
	var article domain.Article
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&article).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrArticleNotFound
		}
		return nil, err
	}
	return &article, nil
}

func (r *repo) FindBySlug(ctx context.Context, tenantID snowflake.ID, slug string) (*domain.Article, error) {
	var article domain.Article
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND slug = ?", tenantID, slug).
		First(&article).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrArticleNotFound
		}
		return nil, err
	}
	return &article, nil
}

func (r *repo) List(ctx context.Context, req domain.ListArticlesRequest) ([]*domain.Article, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.Article{}).
		Where("tenant_id = ?", req.TenantID)

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Query != "" {
		pattern := "%" + req.Query + "%"
		query = query.Where("title LIKE ? OR body LIKE ?", pattern, pattern)
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var articles []*domain.Article
	if err := query.
		Order("updated_at DESC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *repo) UpdateFields(ctx context.Context, tenantID, id snowflake.ID, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Article{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrArticleNotFound
	}
	return nil
}
