package server

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	"github.com/stackdesk/stackdesk/internal/auditcontext"
	"github.com/stackdesk/stackdesk/internal/observability/obsctx"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	"github.com/stackdesk/stackdesk/pkg/tenantctx"
)

const (
	contextUserKey    = "auth_user"
	contextTenantKey  = "tenant"
	contextAppKey     = "tenant_app"
	contextProfileKey = "profile"
)

// RequestAttribution copies request identity onto the context so the
// audit trail can attribute entries without touching gin.
func RequestAttribution() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auditcontext.WithIPAddress(c.Request.Context(), c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		if requestID := obsctx.RequestIDFromContext(ctx); requestID != "" {
			ctx = auditcontext.WithRequestID(ctx, requestID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WebAuthRequired authenticates the chunked session cookie and loads
// the user onto the request.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		user, err := s.authSvc.UserByID(c.Request.Context(), session.UserID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserKey, user)

		ctx := tenantctx.WithUserID(c.Request.Context(), int64(user.ID))
		ctx = auditcontext.WithActor(ctx, auditdomain.ActorTypeUser, user.ID.String())
		ctx = obsctx.WithActor(ctx, auditdomain.ActorTypeUser, user.ID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// TenantRequired resolves the request hostname onto a tenant and
// rejects marketing or unknown hosts.
func (s *Server) TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.tenantSvc.Resolve(c.Request.Context(), c.Request.Host)
		if err != nil {
			if errors.Is(err, tenantdomain.ErrTenantNotFound) {
				AbortWithError(c, ErrNotFound)
				return
			}
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if res.Tenant == nil {
			AbortWithError(c, ErrNotFound)
			return
		}

		c.Set(contextTenantKey, res.Tenant)
		c.Set(contextAppKey, res.App)

		ctx := tenantctx.WithTenantID(c.Request.Context(), int64(res.Tenant.ID))
		ctx = obsctx.WithTenantID(ctx, res.Tenant.ID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireModule gates a route group on the caller's resolved module
// set for the current tenant.
func (s *Server) RequireModule(module accessdomain.Module) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, tenant, ok := s.principal(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		profile := s.loadProfile(c, tenant.ID, user.ID)
		role := accessdomain.DefaultRole
		if profile != nil {
			role = profile.Role
		}

		modules, err := s.accessSvc.ResolveModules(c.Request.Context(), tenant.ID, user.ID, role)
		if err != nil {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		for _, m := range modules {
			if m == module {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

// RequireRole gates a route group on the caller's tenant role.
func (s *Server) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, tenant, ok := s.principal(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		profile := s.loadProfile(c, tenant.ID, user.ID)
		if profile == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		for _, role := range roles {
			if profile.Role == role {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

// Authorize checks the policy engine for a specific object/action pair.
func (s *Server) Authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, tenant, ok := s.principal(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := "user:" + user.ID.String()
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, tenant.ID.String(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) principal(c *gin.Context) (*authdomain.User, *tenantdomain.Tenant, bool) {
	user := currentUser(c)
	tenant := currentTenant(c)
	if user == nil || tenant == nil {
		return nil, nil, false
	}
	return user, tenant, true
}

// loadProfile caches the profile on the gin context for the duration
// of the request. A missing profile is cached as nil.
func (s *Server) loadProfile(c *gin.Context, tenantID, userID snowflake.ID) *tenantdomain.Profile {
	if value, ok := c.Get(contextProfileKey); ok {
		profile, _ := value.(*tenantdomain.Profile)
		return profile
	}

	profile, err := s.tenantSvc.ProfileFor(c.Request.Context(), tenantID, userID)
	if err != nil {
		profile = nil
	}
	c.Set(contextProfileKey, profile)
	return profile
}

func currentUser(c *gin.Context) *authdomain.User {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*authdomain.User)
	return user
}

func currentTenant(c *gin.Context) *tenantdomain.Tenant {
	value, ok := c.Get(contextTenantKey)
	if !ok {
		return nil
	}
	tenant, _ := value.(*tenantdomain.Tenant)
	return tenant
}
