package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	"github.com/stackdesk/stackdesk/internal/bootstrap"
)

// moduleHostLabel maps a module to its portal hostname suffix.
var moduleHostLabel = map[accessdomain.Module]string{
	accessdomain.ModuleITSM:        "-itsm",
	accessdomain.ModuleControl:     "-control",
	accessdomain.ModuleSelfService: "-self",
}

// Bootstrap runs a full tenant+session+access pass for the requesting
// host and returns the snapshot the SPA renders from. When the user
// has exactly one module the response carries the portal URL to land
// on directly; when the user is unauthenticated it carries the login
// URL with the requested page as return-to.
func (s *Server) Bootstrap(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	token, _ := s.sessions.ReadToken(c)
	snap := s.bootstrapCtx.Bootstrap(c.Request.Context(), c.Request.Host, token)

	response := gin.H{"snapshot": snap}
	if route := s.autoRouteURL(snap); route != "" {
		response["route"] = route
	}
	if snap.State == bootstrap.StateUnauthenticated {
		response["login_url"] = loginURL(c.Query("path"))
	}
	c.JSON(http.StatusOK, response)
}

// loginURL carries the page the user was trying to reach so login can
// send them back. Only local paths survive; anything else (absolute
// URLs, protocol-relative //host) is dropped to keep the redirect
// on-site.
func loginURL(returnTo string) string {
	if returnTo == "" || !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") {
		return "/login"
	}
	return "/login?return_to=" + url.QueryEscape(returnTo)
}

func (s *Server) autoRouteURL(snap bootstrap.Snapshot) string {
	if snap.State != bootstrap.StateAuthenticated || snap.Tenant == nil || len(snap.Modules) != 1 {
		return ""
	}

	label, ok := moduleHostLabel[snap.Modules[0]]
	if !ok {
		return ""
	}

	scheme := "https"
	if !s.cfg.AuthCookieSecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s.%s/", scheme, snap.Tenant.Slug, label, s.cfg.PlatformDomain)
}
