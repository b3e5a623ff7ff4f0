package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusInStock = "in_stock"
	StatusInUse   = "in_use"
	StatusRepair  = "repair"
	StatusRetired = "retired"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrInvalidTag    = errors.New("asset tag is required")
	ErrTagTaken      = errors.New("asset tag already in use")
	ErrInvalidStatus = errors.New("invalid asset status")
	ErrAssetRetired  = errors.New("asset is retired")
)

type Asset struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	TenantID     snowflake.ID      `gorm:"uniqueIndex:ux_assets_tenant_tag;not null" json:"tenant_id,string"`
	Tag          string            `gorm:"size:64;uniqueIndex:ux_assets_tenant_tag;not null" json:"tag"`
	Name         string            `gorm:"size:255;not null" json:"name"`
	Category     string            `gorm:"size:64" json:"category,omitempty"`
	Status       string            `gorm:"size:32;not null;default:in_stock" json:"status"`
	AssignedToID *snowflake.ID     `json:"assigned_to_id,string,omitempty"`
	PurchasedAt  *time.Time        `json:"purchased_at,omitempty"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TableName sets the database table name.
func (Asset) TableName() string { return "assets" }

func ValidStatus(status string) bool {
	switch status {
	case StatusInStock, StatusInUse, StatusRepair, StatusRetired:
		return true
	}
	return false
}

type ListAssetsRequest struct {
	TenantID   snowflake.ID `form:"-"`
	Status     string       `form:"status"`
	Category   string       `form:"category"`
	AssignedTo string       `form:"assigned_to_id"`
	Limit      int          `form:"limit,default=50"`
}

type CreateAssetRequest struct {
	TenantID    snowflake.ID   `json:"-"`
	Tag         string         `json:"tag" binding:"required"`
	Name        string         `json:"name" binding:"required"`
	Category    string         `json:"category"`
	PurchasedAt *time.Time     `json:"purchased_at"`
	Metadata    map[string]any `json:"metadata"`
}

type UpdateAssetRequest struct {
	Name         *string       `json:"name"`
	Category     *string       `json:"category"`
	Status       *string       `json:"status"`
	AssignedToID *snowflake.ID `json:"assigned_to_id,string"`
}

type Repository interface {
	Create(ctx context.Context, asset *Asset) error
	FindByID(ctx context.Context, tenantID, id snowflake.ID) (*Asset, error)
	FindByTag(ctx context.Context, tenantID snowflake.ID, tag string) (*Asset, error)
	List(ctx context.Context, req ListAssetsRequest) ([]*Asset, error)
	UpdateFields(ctx context.Context, tenantID, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, tenantID, id snowflake.ID) error
}

type Service interface {
	Create(ctx context.Context, req CreateAssetRequest) (*Asset, error)
	Get(ctx context.Context, tenantID, id snowflake.ID) (*Asset, error)
	List(ctx context.Context, req ListAssetsRequest) ([]*Asset, error)
	Update(ctx context.Context, tenantID, id snowflake.ID, req UpdateAssetRequest) (*Asset, error)
	Assign(ctx context.Context, tenantID, id, userID snowflake.ID) (*Asset, error)
	Retire(ctx context.Context, tenantID, id snowflake.ID) (*Asset, error)
	Delete(ctx context.Context, tenantID, id snowflake.ID) error
}
