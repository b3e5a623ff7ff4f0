package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrInvalidTitle    = errors.New("article title is required")
	ErrSlugTaken       = errors.New("article slug already in use")
	ErrNotPublished    = errors.New("article is not published")
)

type Article struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id,string"`
	TenantID    snowflake.ID  `gorm:"uniqueIndex:ux_kb_articles_tenant_slug;not null" json:"tenant_id,string"`
	Slug        string        `gorm:"size:128;uniqueIndex:ux_kb_articles_tenant_slug;not null" json:"slug"`
	Title       string        `gorm:"size:512;not null" json:"title"`
	Body        string        `gorm:"type:text" json:"body,omitempty"`
	Status      string        `gorm:"size:32;not null;default:draft" json:"status"`
	AuthorID    *snowflake.ID `json:"author_id,string,omitempty"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName sets the database table name.
func (Article) TableName() string { return "kb_articles" }

type ListArticlesRequest struct {
	TenantID snowflake.ID `form:"-"`
	Status   string       `form:"status"`
	Query    string       `form:"q"`
	Limit    int          `form:"limit,default=50"`
}

type CreateArticleRequest struct {
	TenantID snowflake.ID  `json:"-"`
	AuthorID *snowflake.ID `json:"-"`
	Title    string        `json:"title" binding:"required"`
	Body     string        `json:"body"`
}

type UpdateArticleRequest struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

type Repository interface {
	Create(ctx context.Context, article *Article) error
	FindByID(ctx context.Context, tenantID, id snowflake.ID) (*Article, error)
	FindBySlug(ctx context.Context, tenantID snowflake.ID, slug string) (*Article, error)
	List(ctx context.Context, req ListArticlesRequest) ([]*Article, error)
	UpdateFields(ctx context.Context, tenantID, id snowflake.ID, fields map[string]any) error
}

type Service interface {
	Create(ctx context.Context, req CreateArticleRequest) (*Article, error)
	Get(ctx context.Context, tenantID, id snowflake.ID) (*Article, error)
	GetBySlug(ctx context.Context, tenantID snowflake.ID, slug string) (*Article, error)
	List(ctx context.Context, req ListArticlesRequest) ([]*Article, error)
	Update(ctx context.Context, tenantID, id snowflake.ID, req UpdateArticleRequest) (*Article, error)
	Publish(ctx context.Context, tenantID, id snowflake.ID) (*Article, error)
	Archive(ctx context.Context, tenantID, id snowflake.ID) (*Article, error)
}
