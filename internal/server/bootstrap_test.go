package server

import (
	"testing"

	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	"github.com/stackdesk/stackdesk/internal/bootstrap"
	"github.com/stackdesk/stackdesk/internal/config"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
)

func TestAutoRouteURL(t *testing.T) {
	srv := &Server{cfg: config.Config{PlatformDomain: "stackdesk.io", AuthCookieSecure: true}}
	tenant := &tenantdomain.Tenant{Slug: "acme"}

	tests := []struct {
		name string
		snap bootstrap.Snapshot
		want string
	}{
		{
			name: "single itsm module",
			snap: bootstrap.Snapshot{
				State:   bootstrap.StateAuthenticated,
				Tenant:  tenant,
				Modules: []accessdomain.Module{accessdomain.ModuleITSM},
			},
			want: "https://acme-itsm.stackdesk.io/",
		},
		{
			name: "single self service module",
			snap: bootstrap.Snapshot{
				State:   bootstrap.StateAuthenticated,
				Tenant:  tenant,
				Modules: []accessdomain.Module{accessdomain.ModuleSelfService},
			},
			want: "https://acme-self.stackdesk.io/",
		},
		{
			name: "two modules means the user picks",
			snap: bootstrap.Snapshot{
				State:   bootstrap.StateAuthenticated,
				Tenant:  tenant,
				Modules: []accessdomain.Module{accessdomain.ModuleITSM, accessdomain.ModuleControl},
			},
			want: "",
		},
		{
			name: "unauthenticated",
			snap: bootstrap.Snapshot{
				State:   bootstrap.StateUnauthenticated,
				Tenant:  tenant,
				Modules: []accessdomain.Module{accessdomain.ModuleITSM},
			},
			want: "",
		},
		{
			name: "no tenant",
			snap: bootstrap.Snapshot{
				State:   bootstrap.StateAuthenticated,
				Modules: []accessdomain.Module{accessdomain.ModuleITSM},
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := srv.autoRouteURL(tc.snap); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLoginURL(t *testing.T) {
	tests := []struct {
		name     string
		returnTo string
		want     string
	}{
		{name: "local path carries return_to", returnTo: "/tickets/42", want: "/login?return_to=%2Ftickets%2F42"},
		{name: "empty path", returnTo: "", want: "/login"},
		{name: "absolute url dropped", returnTo: "https://evil.example/phish", want: "/login"},
		{name: "protocol relative dropped", returnTo: "//evil.example", want: "/login"},
		{name: "relative path dropped", returnTo: "tickets", want: "/login"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := loginURL(tc.returnTo); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAutoRouteURLInsecureScheme(t *testing.T) {
	srv := &Server{cfg: config.Config{PlatformDomain: "stackdesk.local"}}

	snap := bootstrap.Snapshot{
		State:   bootstrap.StateAuthenticated,
		Tenant:  &tenantdomain.Tenant{Slug: "demo"},
		Modules: []accessdomain.Module{accessdomain.ModuleControl},
	}
	if got, want := srv.autoRouteURL(snap), "http://demo-control.stackdesk.local/"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
