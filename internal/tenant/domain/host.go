package domain

import (
	"net"
	"strings"
)

// App identifies which portal a hostname belongs to.
type App string

const (
	AppITSM        App = "itsm"
	AppControl     App = "control"
	AppSelfService App = "self_service"
	AppMarketing   App = "marketing"
)

// HostInfo is the result of resolving a request hostname. Slug is
// empty in marketing mode.
type HostInfo struct {
	App  App
	Slug string
}

// ResolveHost maps a hostname onto the {slug}-itsm / {slug}-control /
// {slug}-self naming convention. The bare platform domain and its www
// variant are marketing mode; localhost maps to devSlug for local
// development.
func ResolveHost(host, platformDomain, devSlug string) HostInfo {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	platformDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(platformDomain), "."))

	if host == "" {
		return HostInfo{App: AppMarketing}
	}
	if strings.Contains(host, "localhost") || host == "127.0.0.1" {
		return HostInfo{App: AppITSM, Slug: devSlug}
	}
	if host == platformDomain || host == "www."+platformDomain {
		return HostInfo{App: AppMarketing}
	}

	label, _, found := strings.Cut(host, ".")
	if !found {
		return HostInfo{App: AppMarketing}
	}
	if label == "www" || label == "" {
		return HostInfo{App: AppMarketing}
	}

	switch {
	case strings.HasSuffix(label, "-itsm"):
		return HostInfo{App: AppITSM, Slug: strings.TrimSuffix(label, "-itsm")}
	case strings.HasSuffix(label, "-control"):
		return HostInfo{App: AppControl, Slug: strings.TrimSuffix(label, "-control")}
	case strings.HasSuffix(label, "-self"):
		return HostInfo{App: AppSelfService, Slug: strings.TrimSuffix(label, "-self")}
	default:
		return HostInfo{App: AppITSM, Slug: label}
	}
}
