package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
)

// ResolveTenant reports which app and tenant the requesting hostname
// maps to. Marketing hosts resolve with a null tenant.
func (s *Server) ResolveTenant(c *gin.Context) {
	res, err := s.tenantSvc.Resolve(c.Request.Context(), c.Request.Host)
	if err != nil {
		if errors.Is(err, tenantdomain.ErrTenantNotFound) {
			AbortWithError(c, ErrNotFound)
			return
		}
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"app":    res.App,
		"slug":   res.Slug,
		"tenant": res.Tenant,
	})
}

func (s *Server) GetTenantSettings(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	settings, err := s.tenantSvc.Settings(c.Request.Context(), tenant.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateSettingsRequest struct {
	Timezone           *string `json:"timezone"`
	SupportEmail       *string `json:"support_email"`
	LogoPath           *string `json:"logo_path"`
	OnboardingComplete *bool   `json:"onboarding_complete"`
}

func (s *Server) UpdateTenantSettings(c *gin.Context) {
	tenant := currentTenant(c)
	if tenant == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settings, err := s.tenantSvc.UpdateSettings(c.Request.Context(), tenant.ID, tenantdomain.UpdateSettingsRequest{
		Timezone:           req.Timezone,
		SupportEmail:       req.SupportEmail,
		LogoPath:           req.LogoPath,
		OnboardingComplete: req.OnboardingComplete,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := tenant.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), &tenant.ID, "", nil, "tenant.settings_updated", "tenant_settings", &targetID, nil)
	}

	c.JSON(http.StatusOK, settings)
}

// MyProfile returns the caller's membership on the current tenant.
func (s *Server) MyProfile(c *gin.Context) {
	user, tenant, ok := s.principal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	profile, err := s.tenantSvc.ProfileFor(c.Request.Context(), tenant.ID, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
