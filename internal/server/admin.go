package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	"github.com/stackdesk/stackdesk/pkg/db/pagination"
)

type createTenantRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug"`
}

func (s *Server) ListTenants(c *gin.Context) {
	tenants, err := s.tenantSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

func (s *Server) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenant, err := s.tenantSvc.Create(c.Request.Context(), tenantdomain.CreateTenantRequest{
		Name: req.Name,
		Slug: req.Slug,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := tenant.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), &tenant.ID, "", nil, "tenant.created", "tenant", &targetID, map[string]any{
			"slug": tenant.Slug,
		})
	}

	c.JSON(http.StatusCreated, tenant)
}

type updateTenantRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) UpdateTenant(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req updateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	updated, err := s.tenantSvc.Update(c.Request.Context(), tenant.ID, tenantdomain.UpdateTenantRequest{Name: req.Name})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) ListProfiles(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	profiles, err := s.tenantSvc.ListProfiles(c.Request.Context(), tenant.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

type createProfileRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Role     string `json:"role" binding:"required"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

func (s *Server) CreateProfile(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid", "invalid user id"))
		return
	}

	profile, err := s.tenantSvc.CreateProfile(c.Request.Context(), tenantdomain.CreateProfileRequest{
		TenantID: tenant.ID,
		UserID:   userID,
		Role:     req.Role,
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

type updateProfileRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (s *Server) UpdateProfileRole(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	profileID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req updateProfileRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.tenantSvc.UpdateProfileRole(c.Request.Context(), tenant.ID, profileID, req.Role); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) ListRoleGrants(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	grants, err := s.accessSvc.ListRoleGrants(c.Request.Context(), tenant.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grants": grants})
}

type setRoleGrantRequest struct {
	Role    string `json:"role" binding:"required"`
	Module  string `json:"module" binding:"required"`
	Allowed bool   `json:"allowed"`
}

func (s *Server) SetRoleGrant(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req setRoleGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	grant, err := s.accessSvc.SetRoleGrant(c.Request.Context(), accessdomain.SetRoleGrantRequest{
		TenantID: tenant.ID,
		Role:     req.Role,
		Module:   req.Module,
		Allowed:  req.Allowed,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := grant.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), &tenant.ID, "", nil, "module_grant.set", "module_grant", &targetID, map[string]any{
			"role":    req.Role,
			"module":  req.Module,
			"allowed": req.Allowed,
		})
	}

	c.JSON(http.StatusOK, grant)
}

func (s *Server) ListUserOverrides(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	overrides, err := s.accessSvc.ListUserOverrides(c.Request.Context(), tenant.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": overrides})
}

type setUserOverrideRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Module string `json:"module" binding:"required"`
	Effect string `json:"effect" binding:"required"`
}

func (s *Server) SetUserOverride(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req setUserOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid", "invalid user id"))
		return
	}

	override, err := s.accessSvc.SetUserOverride(c.Request.Context(), accessdomain.SetUserOverrideRequest{
		TenantID: tenant.ID,
		UserID:   userID,
		Module:   req.Module,
		Effect:   req.Effect,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := override.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), &tenant.ID, "", nil, "module_override.set", "module_grant", &targetID, map[string]any{
			"user_id": req.UserID,
			"module":  req.Module,
			"effect":  req.Effect,
		})
	}

	c.JSON(http.StatusOK, override)
}

func (s *Server) RemoveUserOverride(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	overrideID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.accessSvc.RemoveUserOverride(c.Request.Context(), tenant.ID, overrideID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type listAuditLogsQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	ActorType  string `form:"actor_type"`
	StartAt    string `form:"start_at"`
	EndAt      string `form:"end_at"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var startAt *time.Time
	if value := strings.TrimSpace(query.StartAt); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
			return
		}
		startAt = &parsed
	}

	var endAt *time.Time
	if value := strings.TrimSpace(query.EndAt); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
			return
		}
		endAt = &parsed
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		TenantID:   &tenant.ID,
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
		ActorType:  strings.TrimSpace(query.ActorType),
		StartAt:    startAt,
		EndAt:      endAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
