package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	accessrepo "github.com/stackdesk/stackdesk/internal/access/repository"
	accessservice "github.com/stackdesk/stackdesk/internal/access/service"
	auditrepo "github.com/stackdesk/stackdesk/internal/audit/repository"
	auditservice "github.com/stackdesk/stackdesk/internal/audit/service"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	authrepo "github.com/stackdesk/stackdesk/internal/auth/repository"
	authservice "github.com/stackdesk/stackdesk/internal/auth/service"
	"github.com/stackdesk/stackdesk/internal/auth/session"
	"github.com/stackdesk/stackdesk/internal/authorization"
	"github.com/stackdesk/stackdesk/internal/bootstrap"
	"github.com/stackdesk/stackdesk/internal/config"
	"github.com/stackdesk/stackdesk/internal/migration"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	tenantrepo "github.com/stackdesk/stackdesk/internal/tenant/repository"
	tenantservice "github.com/stackdesk/stackdesk/internal/tenant/service"
	ticketrepo "github.com/stackdesk/stackdesk/internal/ticket/repository"
	ticketservice "github.com/stackdesk/stackdesk/internal/ticket/service"
	"github.com/stackdesk/stackdesk/pkg/db"
)

type fixture struct {
	srv       *Server
	authSvc   authdomain.Service
	tenantSvc tenantdomain.Service
	accessSvc accessdomain.Service
	tenant    *tenantdomain.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := zap.NewNop()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	cfg := config.Config{
		PlatformDomain:    "stackdesk.io",
		DevTenantSlug:     "demo",
		SessionCookieName: "sd_session",
	}
	gate := config.StaticGateConfigHolder(config.DefaultGateConfig())

	userRepo, sessionRepo, identityRepo := authrepo.New(conn)
	authSvc := authservice.New(log, userRepo, sessionRepo, identityRepo, node)

	tenRepo, profileRepo := tenantrepo.NewRepository(conn)
	tenantSvc := tenantservice.NewService(log, conn, tenRepo, profileRepo, node, nil, cfg)

	accessSvc := accessservice.NewService(log, accessrepo.NewRepository(conn), node)

	auditSvc := auditservice.NewService(auditservice.Params{
		Log:   log,
		DB:    conn,
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	ticketSvc := ticketservice.NewService(ticketservice.Params{
		Log:      log,
		Repo:     ticketrepo.New(conn),
		GenID:    node,
		AuditSvc: auditSvc,
	})

	enforcer, err := authorization.NewEnforcer(conn)
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	authzSvc := authorization.NewService(authorization.Params{
		DB:       conn,
		Log:      log,
		Enforcer: enforcer,
		AuditSvc: auditSvc,
	})

	sessions := session.NewManager(cfg, gate)
	bootstrapCtx := bootstrap.NewContext(log, authSvc, tenantSvc, accessSvc, gate, nil)

	engine := gin.New()
	engine.Use(RequestAttribution())
	engine.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:       engine,
		cfg:          cfg,
		log:          log,
		db:           conn,
		genID:        node,
		sessions:     sessions,
		authSvc:      authSvc,
		tenantSvc:    tenantSvc,
		accessSvc:    accessSvc,
		authzSvc:     authzSvc,
		auditSvc:     auditSvc,
		ticketSvc:    ticketSvc,
		bootstrapCtx: bootstrapCtx,
	}
	srv.registerSessionRoutes()
	srv.registerPortalRoutes()
	srv.registerAdminRoutes()

	ten, err := tenantSvc.Create(context.Background(), tenantdomain.CreateTenantRequest{Name: "Demo Workspace", Slug: "demo"})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	return &fixture{
		srv:       srv,
		authSvc:   authSvc,
		tenantSvc: tenantSvc,
		accessSvc: accessSvc,
		tenant:    ten,
	}
}

func (f *fixture) createUser(t *testing.T, email, password, role string) *authdomain.User {
	t.Helper()
	ctx := context.Background()

	user, err := f.authSvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       email,
		Password:    password,
		DisplayName: "Test User",
		Confirmed:   true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := f.tenantSvc.CreateProfile(ctx, tenantdomain.CreateProfileRequest{
		TenantID: f.tenant.ID,
		UserID:   user.ID,
		Role:     role,
		Email:    email,
	}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return user
}

func (f *fixture) grantModule(t *testing.T, role, module string) {
	t.Helper()
	if _, err := f.accessSvc.SetRoleGrant(context.Background(), accessdomain.SetRoleGrantRequest{
		TenantID: f.tenant.ID,
		Role:     role,
		Module:   module,
		Allowed:  true,
	}); err != nil {
		t.Fatalf("set grant: %v", err)
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	f.srv.engine.ServeHTTP(resp, req)
	return resp
}

func (f *fixture) login(t *testing.T, email, password string) []*http.Cookie {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := f.do(req)
	if resp.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	cookies := resp.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no cookies")
	}
	return cookies
}

func attachCookies(req *http.Request, cookies []*http.Cookie) {
	for _, c := range cookies {
		if c.MaxAge < 0 || c.Value == "" {
			continue
		}
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
}

func TestSessionWithoutCookieReturnsNullUser(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	resp := f.do(req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if cc := resp.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("expected no-store, got %q", cc)
	}

	var body struct {
		User *json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User != nil {
		t.Fatalf("expected null user, got %s", *body.User)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice@example.com", "correct-horse", tenantdomain.RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := f.do(req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Type != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %q", payload.Error.Type)
	}
}

func TestLoginSessionRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice@example.com", "correct-horse", tenantdomain.RoleUser)

	cookies := f.login(t, "alice@example.com", "correct-horse")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	attachCookies(req, cookies)
	resp := f.do(req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		User *struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User == nil || body.User.Email != "alice@example.com" {
		t.Fatalf("expected session user alice, got %+v", body.User)
	}
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
		resp := f.do(req)

		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		var body struct {
			OK bool `json:"ok"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !body.OK {
			t.Fatal("expected ok true")
		}
	}
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice@example.com", "correct-horse", tenantdomain.RoleUser)

	cookies := f.login(t, "alice@example.com", "correct-horse")

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	attachCookies(req, cookies)
	resp := f.do(req)
	if resp.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.Code)
	}
	for _, c := range resp.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Fatalf("expected expired cookie, got %s max-age %d", c.Name, c.MaxAge)
		}
	}

	// A cleared session token no longer authenticates.
	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	attachCookies(req, cookies)
	resp = f.do(req)
	var body struct {
		User *json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User != nil {
		t.Fatal("expected null user after logout")
	}
}

func TestResolveTenantHosts(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Host = "demo-itsm.stackdesk.io"
	resp := f.do(req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		App  string `json:"app"`
		Slug string `json:"slug"`
		Tenant *struct {
			Name string `json:"name"`
		} `json:"tenant"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Slug != "demo" || body.Tenant == nil {
		t.Fatalf("expected demo tenant, got %+v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Host = "www.stackdesk.io"
	resp = f.do(req)
	if resp.Code != http.StatusOK {
		t.Fatalf("marketing host: expected 200, got %d", resp.Code)
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tenant != nil {
		t.Fatalf("expected null tenant on marketing host, got %+v", body.Tenant)
	}
}

func TestBootstrapUnauthenticatedCarriesLoginURL(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/bootstrap?path=/tickets/42", nil)
	req.Host = "demo-itsm.stackdesk.io"
	resp := f.do(req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		LoginURL string `json:"login_url"`
		Snapshot struct {
			State string `json:"state"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Snapshot.State != "unauthenticated" {
		t.Fatalf("expected unauthenticated snapshot, got %q", body.Snapshot.State)
	}
	if want := "/login?return_to=%2Ftickets%2F42"; body.LoginURL != want {
		t.Fatalf("expected login url %q, got %q", want, body.LoginURL)
	}
}

func TestModuleGateBlocksUngrantedUser(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "bob@example.com", "correct-horse", tenantdomain.RoleUser)
	cookies := f.login(t, "bob@example.com", "correct-horse")

	req := httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
	req.Host = "demo-itsm.stackdesk.io"
	attachCookies(req, cookies)
	resp := f.do(req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without grant, got %d: %s", resp.Code, resp.Body.String())
	}

	f.grantModule(t, tenantdomain.RoleUser, "itsm")

	req = httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
	req.Host = "demo-itsm.stackdesk.io"
	attachCookies(req, cookies)
	resp = f.do(req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with grant, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestTicketCreateAndClose(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice@example.com", "correct-horse", tenantdomain.RoleAdmin)
	f.grantModule(t, tenantdomain.RoleAdmin, "itsm")
	cookies := f.login(t, "alice@example.com", "correct-horse")

	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewBufferString(`{"subject":"Laptop will not boot"}`))
	req.Host = "demo-itsm.stackdesk.io"
	req.Header.Set("Content-Type", "application/json")
	attachCookies(req, cookies)
	resp := f.do(req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != "open" {
		t.Fatalf("expected open, got %q", created.Status)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/tickets/"+created.ID+"/close", nil)
	req.Host = "demo-itsm.stackdesk.io"
	attachCookies(req, cookies)
	resp = f.do(req)
	if resp.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUnknownTenantHost(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice@example.com", "correct-horse", tenantdomain.RoleUser)
	cookies := f.login(t, "alice@example.com", "correct-horse")

	req := httptest.NewRequest(http.MethodGet, "/api/me/profile", nil)
	req.Host = "nosuch-itsm.stackdesk.io"
	attachCookies(req, cookies)
	resp := f.do(req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tenant, got %d: %s", resp.Code, resp.Body.String())
	}
}
