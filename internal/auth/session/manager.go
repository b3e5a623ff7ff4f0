// Package session manages the browser session cookie. The payload is
// larger than a single cookie allows, so it is sliced with cookiechunk
// and scoped to the platform parent domain so every tenant portal
// shares one login.
package session

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackdesk/stackdesk/internal/config"
	"github.com/stackdesk/stackdesk/pkg/cookiechunk"
)

// Envelope is the JSON value stored in the session cookie. User is a
// display cache for first paint; the server re-authenticates Token on
// every request and never trusts the cached user.
type Envelope struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      json.RawMessage `json:"user,omitempty"`
}

// Manager manages auth session cookies.
type Manager struct {
	cookieName   string
	secure       bool
	parentDomain string
	gate         *config.GateConfigHolder
}

func NewManager(cfg config.Config, gate *config.GateConfigHolder) *Manager {
	return &Manager{
		cookieName:   cfg.SessionCookieName,
		secure:       cfg.AuthCookieSecure,
		parentDomain: strings.TrimPrefix(cfg.PlatformDomain, "."),
		gate:         gate,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// ReadToken extracts the session token from the request cookie.
func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	env, ok := m.Read(c)
	if !ok {
		return "", false
	}
	token := strings.TrimSpace(env.Token)
	if token == "" {
		return "", false
	}
	return token, true
}

// Read reassembles and decodes the cookie envelope.
func (m *Manager) Read(c *gin.Context) (*Envelope, bool) {
	raw, ok := cookiechunk.Read(c.Request, m.cookieName)
	if !ok {
		return nil, false
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, false
	}
	return &env, true
}

// Write stores the envelope, slicing as needed and scoping to the
// parent domain so sibling portals see the same session.
func (m *Manager) Write(c *gin.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	template := m.template(c.Request)
	maxAge := int(time.Until(env.ExpiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	template.MaxAge = maxAge

	cookiechunk.Write(c.Writer, c.Request, template, m.cookieName, string(raw), m.chunkSize())
	return nil
}

// Clear expires every slice on both the parent domain and the exact
// request host. Cookies written before a domain migration would
// otherwise survive logout.
func (m *Manager) Clear(c *gin.Context) {
	parent := m.template(c.Request)
	cookiechunk.Remove(c.Writer, c.Request, parent, m.cookieName)

	if parent.Domain != "" {
		exact := parent
		exact.Domain = ""
		cookiechunk.Remove(c.Writer, c.Request, exact, m.cookieName)
	}
}

func (m *Manager) template(r *http.Request) http.Cookie {
	template := http.Cookie{
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	// Cross-subdomain portals need None, which browsers only honor on
	// secure cookies.
	if m.secure {
		template.SameSite = http.SameSiteNoneMode
	}
	if domain := m.cookieDomain(r); domain != "" {
		template.Domain = domain
	}
	return template
}

// cookieDomain returns the registrable parent when the request host is
// under it, and empty (host-only) otherwise, e.g. for localhost.
func (m *Manager) cookieDomain(r *http.Request) string {
	if m.parentDomain == "" || r == nil {
		return ""
	}
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == m.parentDomain || strings.HasSuffix(host, "."+m.parentDomain) {
		return m.parentDomain
	}
	return ""
}

func (m *Manager) chunkSize() int {
	if m.gate == nil {
		return cookiechunk.DefaultChunkSize
	}
	return m.gate.Current().CookieChunkSize
}
