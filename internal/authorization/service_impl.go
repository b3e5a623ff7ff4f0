package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectTenant         = "tenant"
	ObjectTenantSettings = "tenant_settings"
	ObjectProfile        = "profile"
	ObjectModuleGrant    = "module_grant"
	ObjectTicket         = "ticket"
	ObjectAsset          = "asset"
	ObjectArticle        = "kb_article"
	ObjectAuditLog       = "audit_log"
)

const (
	ActionTenantView           = "tenant.view"
	ActionTenantCreate         = "tenant.create"
	ActionTenantUpdate         = "tenant.update"
	ActionTenantSettingsView   = "tenant_settings.view"
	ActionTenantSettingsUpdate = "tenant_settings.update"

	ActionProfileView   = "profile.view"
	ActionProfileCreate = "profile.create"
	ActionProfileUpdate = "profile.update"

	ActionModuleGrantView = "module_grant.view"
	ActionModuleGrantSet  = "module_grant.set"

	ActionTicketAssign = "ticket.assign"
	ActionTicketClose  = "ticket.close"

	ActionAssetDelete = "asset.delete"

	ActionArticlePublish = "kb_article.publish"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, tenantID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ErrInvalidTenant
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, tenantID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, tenantID, object, action)
		return err
	}

	domain := fmt.Sprintf("tenant:%s", tenantID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, tenantID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, tenantID string) (string, string, string, *string, error) {
	if actor == "system" {
		return actor, "role:system", "system", nil, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		userIDStr := userID.String()
		parsedTenantID, err := snowflake.ParseString(tenantID)
		if err != nil || parsedTenantID == 0 {
			return actor, "", "user", &userIDStr, ErrInvalidTenant
		}
		role, err := s.roleForUser(ctx, parsedTenantID, userID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		return actor, fmt.Sprintf("role:%s", strings.ToLower(role)), "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, tenantID snowflake.ID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM profiles
		 WHERE tenant_id = ? AND user_id = ?
		 LIMIT 1`,
		tenantID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, tenantID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedTenantID, err := snowflake.ParseString(tenantID)
	if err != nil || parsedTenantID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedTenantID, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":    object,
		"action":    action,
		"actor":     actorType,
		"tenant_id": tenantID,
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Tenant admins manage everything inside their tenant.
		{"role:admin", ObjectTenant, ActionTenantView},
		{"role:admin", ObjectTenant, ActionTenantUpdate},
		{"role:admin", ObjectTenantSettings, ActionTenantSettingsView},
		{"role:admin", ObjectTenantSettings, ActionTenantSettingsUpdate},
		{"role:admin", ObjectProfile, ActionProfileView},
		{"role:admin", ObjectProfile, ActionProfileCreate},
		{"role:admin", ObjectProfile, ActionProfileUpdate},
		{"role:admin", ObjectModuleGrant, ActionModuleGrantView},
		{"role:admin", ObjectModuleGrant, ActionModuleGrantSet},
		{"role:admin", ObjectTicket, ActionTicketAssign},
		{"role:admin", ObjectTicket, ActionTicketClose},
		{"role:admin", ObjectAsset, ActionAssetDelete},
		{"role:admin", ObjectArticle, ActionArticlePublish},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		// Agents work tickets and publish articles.
		{"role:user", ObjectTicket, ActionTicketAssign},
		{"role:user", ObjectTicket, ActionTicketClose},
		{"role:user", ObjectArticle, ActionArticlePublish},

		// Platform operator role for seeding and automation.
		{"role:system", ObjectTenant, ActionTenantView},
		{"role:system", ObjectTenant, ActionTenantCreate},
		{"role:system", ObjectTenant, ActionTenantUpdate},
		{"role:system", ObjectTenantSettings, ActionTenantSettingsUpdate},
		{"role:system", ObjectProfile, ActionProfileCreate},
		{"role:system", ObjectProfile, ActionProfileUpdate},
		{"role:system", ObjectModuleGrant, ActionModuleGrantSet},
		{"role:system", ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
