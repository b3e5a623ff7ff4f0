// Package bootstrap composes tenant resolution, session
// authentication, profile enrichment and module access into one
// startup pass. It owns the only auth-state subscription; everything
// else reads the published snapshot.
package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	"github.com/stackdesk/stackdesk/internal/config"
	"github.com/stackdesk/stackdesk/internal/observability/metrics"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	"go.uber.org/zap"
)

// State is the bootstrap state machine position.
type State string

const (
	StateUninitialized    State = "uninitialized"
	StateResolvingTenant  State = "resolving_tenant"
	StateResolvingSession State = "resolving_session"
	StateAuthenticated    State = "authenticated"
	StateUnauthenticated  State = "unauthenticated"
	StateTenantError      State = "tenant_error"
)

// User is the resolved identity exposed to the rest of the
// application. FullName and TenantID come from the profile; Role
// starts at the baseline "user" role and is replaced once a profile
// loads.
type User struct {
	ID            snowflake.ID `json:"id"`
	Email         string       `json:"email"`
	DisplayName   string       `json:"display_name"`
	FullName      string       `json:"full_name,omitempty"`
	Role          string       `json:"role,omitempty"`
	TenantID      snowflake.ID `json:"tenant_id,omitempty"`
	ProfileLoaded bool         `json:"profile_loaded"`
}

// Snapshot is the published auth/tenant state.
type Snapshot struct {
	State       State                 `json:"state"`
	AuthLoading bool                  `json:"auth_loading"`
	User        *User                 `json:"user"`
	Tenant      *tenantdomain.Tenant  `json:"tenant"`
	App         tenantdomain.App      `json:"app"`
	Modules     []accessdomain.Module `json:"modules"`
	// TenantErr distinguishes not-found from dependency failure when
	// State is StateTenantError.
	TenantErr string `json:"tenant_error,omitempty"`
}

// Context runs bootstrap passes and publishes snapshots. It models a
// single page load's state machine: each Bootstrap call returns the
// snapshot of its own pass, and that return value is what request
// handlers serve. The published snapshot (Snapshot, Subscribe) is a
// shared last-pass-wins view for observers such as the SPA dev
// harness; it is advisory and never consulted for authorization.
// Concurrent passes are serialized by a generation counter: only the
// newest pass may publish, older ones fall silent.
type Context struct {
	log     *zap.Logger
	auth    authdomain.Service
	tenants tenantdomain.Service
	access  accessdomain.Service
	gate    *config.GateConfigHolder
	metrics *metrics.Metrics

	mu         sync.Mutex
	generation uint64
	snapshot   Snapshot
	subscriber chan Snapshot
}

func NewContext(log *zap.Logger, auth authdomain.Service, tenants tenantdomain.Service, access accessdomain.Service, gate *config.GateConfigHolder, m *metrics.Metrics) *Context {
	return &Context{
		log:      log.Named("bootstrap"),
		auth:     auth,
		tenants:  tenants,
		access:   access,
		gate:     gate,
		metrics:  m,
		snapshot: Snapshot{State: StateUninitialized, AuthLoading: true},
	}
}

// Snapshot returns the last published state.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Subscribe registers the single snapshot listener. A second call
// replaces the first; duplicate listeners racing to apply state is
// exactly the failure mode this rules out. The returned cancel closes
// the channel.
func (c *Context) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscriber != nil {
		close(c.subscriber)
	}
	ch := make(chan Snapshot, 8)
	c.subscriber = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.subscriber == ch {
			close(c.subscriber)
			c.subscriber = nil
		}
	}
}

// Bootstrap runs one full pass for the given host and session token
// and returns the final snapshot. The pass is bounded by the
// configured hard timeout; on expiry the loading flag is forced off
// with whatever state was reached.
func (c *Context) Bootstrap(ctx context.Context, host, token string) Snapshot {
	gate := c.gate.Current()
	gen := c.nextGeneration()

	ctx, cancel := context.WithTimeout(ctx, gate.BootstrapTimeout)
	defer cancel()

	snap := c.runPass(ctx, gen, gate, host, token)

	// The timeout must never leave the caller stuck on a spinner.
	snap.AuthLoading = false
	c.publish(gen, snap)
	c.metrics.RecordSessionBootstrap(ctx, string(snap.State))
	return snap
}

// Logout clears published state back to unauthenticated. Session
// revocation happens in the auth service; this only resets the shared
// observer view. Other requests are unaffected: their Bootstrap passes
// return their own snapshots and never read the published one.
func (c *Context) Logout() Snapshot {
	gen := c.nextGeneration()
	snap := Snapshot{State: StateUnauthenticated, AuthLoading: false}
	c.publish(gen, snap)
	return snap
}

func (c *Context) runPass(ctx context.Context, gen uint64, gate config.GateConfig, host, token string) Snapshot {
	snap := Snapshot{State: StateResolvingTenant, AuthLoading: true}
	c.publish(gen, snap)

	resolution, err := c.tenants.Resolve(ctx, host)
	if err != nil {
		snap.State = StateTenantError
		if errors.Is(err, tenantdomain.ErrTenantNotFound) {
			snap.TenantErr = "not_found"
		} else {
			snap.TenantErr = "query_error"
		}
		// Terminal: no tenant-scoped queries may follow.
		return snap
	}
	snap.App = resolution.App
	snap.Tenant = resolution.Tenant

	snap.State = StateResolvingSession
	c.publish(gen, snap)

	session, err := c.authenticateWithRetry(ctx, gate, token)
	if err != nil {
		snap.State = StateUnauthenticated
		return snap
	}

	user, err := c.auth.UserByID(ctx, session.UserID)
	if err != nil {
		c.log.Error("user fetch failed after session authentication", zap.Error(err))
		snap.State = StateUnauthenticated
		return snap
	}

	// Base user is published before profile enrichment so the caller
	// is never held logged-out waiting on secondary data.
	snap.State = StateAuthenticated
	snap.User = &User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        accessdomain.DefaultRole,
	}
	c.publish(gen, snap)

	if resolution.Tenant != nil {
		c.enrich(ctx, gate, &snap, resolution.Tenant.ID, user.ID)
	}
	return snap
}

// enrich adds profile and module data to an authenticated snapshot.
// Failures here degrade, they never log the user out.
func (c *Context) enrich(ctx context.Context, gate config.GateConfig, snap *Snapshot, tenantID, userID snowflake.ID) {
	profile, err := c.tenants.ProfileFor(ctx, tenantID, userID)
	if errors.Is(err, tenantdomain.ErrProfileNotFound) {
		// Legacy single-profile data has no per-tenant row.
		profile, err = c.tenants.ProfileByUser(ctx, userID)
	}
	role := accessdomain.DefaultRole
	switch {
	case errors.Is(err, tenantdomain.ErrProfileNotFound):
		// No profile row: the user still resolves modules under the
		// baseline role.
	case err != nil:
		c.log.Warn("profile fetch failed, keeping base user",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return
	case gate.EnforceTenantMatch && profile.TenantID != tenantID:
		c.log.Warn("profile tenant mismatch, withholding modules",
			zap.String("user_id", userID.String()),
			zap.String("profile_tenant", profile.TenantID.String()),
			zap.String("host_tenant", tenantID.String()),
		)
		return
	default:
		role = profile.Role
		snap.User.FullName = profile.FullName
		snap.User.Role = profile.Role
		snap.User.TenantID = profile.TenantID
		snap.User.ProfileLoaded = true
	}

	modules, err := c.access.ResolveModules(ctx, tenantID, userID, role)
	if err != nil {
		c.log.Warn("module resolution failed, defaulting to none",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return
	}
	snap.Modules = modules
}

// authenticateWithRetry retries transient session-fetch failures with
// doubling backoff. Definitive rejections (missing, invalid, expired,
// revoked) fail immediately.
func (c *Context) authenticateWithRetry(ctx context.Context, gate config.GateConfig, token string) (*authdomain.Session, error) {
	delay := gate.SessionRetryInitial
	attempts := gate.SessionRetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		session, err := c.auth.Authenticate(ctx, token)
		if err == nil {
			return session, nil
		}
		if isAuthRejection(err) {
			return nil, err
		}
		lastErr = err

		if attempt+1 >= attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > gate.SessionRetryMax {
			delay = gate.SessionRetryMax
		}
	}

	c.log.Warn("session fetch failed after retries", zap.Error(lastErr))
	return nil, lastErr
}

func (c *Context) nextGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// publish applies the snapshot only if gen is still the newest pass.
func (c *Context) publish(gen uint64, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.snapshot = snap
	if c.subscriber != nil {
		select {
		case c.subscriber <- snap:
		default:
		}
	}
}

func isAuthRejection(err error) bool {
	return errors.Is(err, authdomain.ErrInvalidSession) ||
		errors.Is(err, authdomain.ErrSessionExpired) ||
		errors.Is(err, authdomain.ErrSessionRevoked) ||
		errors.Is(err, authdomain.ErrSessionNotFound)
}
