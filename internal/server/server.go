package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stackdesk/stackdesk/internal/access"
	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	"github.com/stackdesk/stackdesk/internal/asset"
	assetdomain "github.com/stackdesk/stackdesk/internal/asset/domain"
	"github.com/stackdesk/stackdesk/internal/audit"
	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	"github.com/stackdesk/stackdesk/internal/auth"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	"github.com/stackdesk/stackdesk/internal/auth/session"
	"github.com/stackdesk/stackdesk/internal/authorization"
	"github.com/stackdesk/stackdesk/internal/bootstrap"
	"github.com/stackdesk/stackdesk/internal/config"
	"github.com/stackdesk/stackdesk/internal/knowledge"
	kbdomain "github.com/stackdesk/stackdesk/internal/knowledge/domain"
	"github.com/stackdesk/stackdesk/internal/observability"
	obslogger "github.com/stackdesk/stackdesk/internal/observability/logger"
	obsmetrics "github.com/stackdesk/stackdesk/internal/observability/metrics"
	obstracing "github.com/stackdesk/stackdesk/internal/observability/tracing"
	"github.com/stackdesk/stackdesk/internal/ratelimit"
	"github.com/stackdesk/stackdesk/internal/tenant"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	"github.com/stackdesk/stackdesk/internal/ticket"
	ticketdomain "github.com/stackdesk/stackdesk/internal/ticket/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	session.Module,
	tenant.Module,
	access.Module,
	bootstrap.Module,
	ratelimit.Module,
	ticket.Module,
	asset.Module,
	knowledge.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(RequestAttribution())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	db     *gorm.DB
	genID  *snowflake.Node

	sessions     *session.Manager
	authSvc      authdomain.Service
	tenantSvc    tenantdomain.Service
	accessSvc    accessdomain.Service
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	ticketSvc    ticketdomain.Service
	assetSvc     assetdomain.Service
	kbSvc        kbdomain.Service
	bootstrapCtx *bootstrap.Context
	loginLimiter *ratelimit.LoginLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	GenID        *snowflake.Node
	Sessions     *session.Manager
	AuthSvc      authdomain.Service
	TenantSvc    tenantdomain.Service
	AccessSvc    accessdomain.Service
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	TicketSvc    ticketdomain.Service
	AssetSvc     assetdomain.Service
	KBSvc        kbdomain.Service
	BootstrapCtx *bootstrap.Context
	LoginLimiter *ratelimit.LoginLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("server"),
		db:           p.DB,
		genID:        p.GenID,
		sessions:     p.Sessions,
		authSvc:      p.AuthSvc,
		tenantSvc:    p.TenantSvc,
		accessSvc:    p.AccessSvc,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		ticketSvc:    p.TicketSvc,
		assetSvc:     p.AssetSvc,
		kbSvc:        p.KBSvc,
		bootstrapCtx: p.BootstrapCtx,
		loginLimiter: p.LoginLimiter,
		obsMetrics:   p.ObsMetrics,
	}

	s.registerSessionRoutes()
	s.registerPortalRoutes()
	s.registerAdminRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerSessionRoutes wires the endpoints the SPA shell calls before
// any module is known. None of them require an existing session.
func (s *Server) registerSessionRoutes() {
	api := s.engine.Group("/api")

	api.POST("/login", s.Login)
	api.GET("/session", s.Session)
	api.POST("/logout", s.Logout)
	api.GET("/bootstrap", s.Bootstrap)
	api.GET("/tenant", s.ResolveTenant)
}

// registerPortalRoutes wires the tenant-scoped product surface behind
// session auth, tenant resolution and module gates.
func (s *Server) registerPortalRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.WebAuthRequired())

	me := api.Group("/me")
	me.POST("/password", s.ChangePassword)
	me.GET("/identities", s.ListIdentities)
	me.POST("/identities", s.LinkIdentity)
	me.DELETE("/identities/:id", s.UnlinkIdentity)

	scoped := api.Group("")
	scoped.Use(s.TenantRequired())
	scoped.GET("/me/profile", s.MyProfile)
	scoped.GET("/tenant/settings", s.GetTenantSettings)

	itsm := scoped.Group("")
	itsm.Use(s.RequireModule(accessdomain.ModuleITSM))
	itsm.GET("/tickets", s.ListTickets)
	itsm.POST("/tickets", s.CreateTicket)
	itsm.GET("/tickets/:id", s.GetTicket)
	itsm.PATCH("/tickets/:id", s.UpdateTicket)
	itsm.POST("/tickets/:id/assign", s.Authorize(authorization.ObjectTicket, authorization.ActionTicketAssign), s.AssignTicket)
	itsm.POST("/tickets/:id/close", s.Authorize(authorization.ObjectTicket, authorization.ActionTicketClose), s.CloseTicket)
	itsm.GET("/kb/articles", s.ListArticles)
	itsm.POST("/kb/articles", s.CreateArticle)
	itsm.GET("/kb/articles/:id", s.GetArticle)
	itsm.PATCH("/kb/articles/:id", s.UpdateArticle)
	itsm.POST("/kb/articles/:id/publish", s.Authorize(authorization.ObjectArticle, authorization.ActionArticlePublish), s.PublishArticle)
	itsm.POST("/kb/articles/:id/archive", s.ArchiveArticle)

	control := scoped.Group("")
	control.Use(s.RequireModule(accessdomain.ModuleControl))
	control.GET("/assets", s.ListAssets)
	control.POST("/assets", s.CreateAsset)
	control.GET("/assets/:id", s.GetAsset)
	control.PATCH("/assets/:id", s.UpdateAsset)
	control.POST("/assets/:id/assign", s.AssignAsset)
	control.POST("/assets/:id/retire", s.RetireAsset)
	control.DELETE("/assets/:id", s.Authorize(authorization.ObjectAsset, authorization.ActionAssetDelete), s.DeleteAsset)

	portal := scoped.Group("/portal")
	portal.Use(s.RequireModule(accessdomain.ModuleSelfService))
	portal.GET("/tickets", s.MyTickets)
	portal.POST("/tickets", s.CreateTicket)
	portal.GET("/kb/:slug", s.PortalArticle)
}

// registerAdminRoutes wires the control-plane surface. Everything here
// requires the admin role plus a policy check per operation.
func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/api")
	admin.Use(s.WebAuthRequired())
	admin.Use(s.TenantRequired())
	admin.Use(s.RequireRole(tenantdomain.RoleAdmin))

	admin.GET("/tenants", s.Authorize(authorization.ObjectTenant, authorization.ActionTenantView), s.ListTenants)
	admin.POST("/tenants", s.Authorize(authorization.ObjectTenant, authorization.ActionTenantCreate), s.CreateTenant)
	admin.PATCH("/tenant", s.Authorize(authorization.ObjectTenant, authorization.ActionTenantUpdate), s.UpdateTenant)
	admin.PATCH("/tenant/settings", s.Authorize(authorization.ObjectTenantSettings, authorization.ActionTenantSettingsUpdate), s.UpdateTenantSettings)

	admin.GET("/profiles", s.Authorize(authorization.ObjectProfile, authorization.ActionProfileView), s.ListProfiles)
	admin.POST("/profiles", s.Authorize(authorization.ObjectProfile, authorization.ActionProfileCreate), s.CreateProfile)
	admin.PATCH("/profiles/:id/role", s.Authorize(authorization.ObjectProfile, authorization.ActionProfileUpdate), s.UpdateProfileRole)

	admin.GET("/grants", s.Authorize(authorization.ObjectModuleGrant, authorization.ActionModuleGrantView), s.ListRoleGrants)
	admin.POST("/grants", s.Authorize(authorization.ObjectModuleGrant, authorization.ActionModuleGrantSet), s.SetRoleGrant)
	admin.GET("/overrides", s.Authorize(authorization.ObjectModuleGrant, authorization.ActionModuleGrantView), s.ListUserOverrides)
	admin.POST("/overrides", s.Authorize(authorization.ObjectModuleGrant, authorization.ActionModuleGrantSet), s.SetUserOverride)
	admin.DELETE("/overrides/:id", s.Authorize(authorization.ObjectModuleGrant, authorization.ActionModuleGrantSet), s.RemoveUserOverride)

	admin.GET("/audit-logs", s.Authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
