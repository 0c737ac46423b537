// internal/common/tenant/resolver.go
package tenant

import (
	"net"
	"net/http"
	"strings"

	"marketing-platform/internal/common/config"
)

// Resolver determines the active tenant for an incoming request. The public
// site historically pinned a single tenant; the resolver keeps that behavior
// as one implementation instead of a hardcoded constant.
type Resolver interface {
	Resolve(r *http.Request) string
}

// StaticResolver always returns the configured tenant.
type StaticResolver struct {
	TenantID string
}

func (s *StaticResolver) Resolve(_ *http.Request) string {
	return s.TenantID
}

// SubdomainResolver maps "<tenant>.<base-domain>" hosts to tenant ids, falling
// back to the default for apex or unrecognized hosts.
type SubdomainResolver struct {
	BaseDomain    string
	DefaultTenant string
}

func (s *SubdomainResolver) Resolve(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	suffix := "." + s.BaseDomain
	if !strings.HasSuffix(host, suffix) {
		return s.DefaultTenant
	}

	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || sub == "www" || strings.Contains(sub, ".") {
		return s.DefaultTenant
	}
	return sub
}

// HeaderResolver reads the tenant from a request header, set by an
// auth-aware proxy in front of the service.
type HeaderResolver struct {
	Header        string
	DefaultTenant string
}

func (h *HeaderResolver) Resolve(r *http.Request) string {
	if v := r.Header.Get(h.Header); v != "" {
		return v
	}
	return h.DefaultTenant
}

// FromConfig selects the resolver implementation at process start.
func FromConfig(cfg config.TenantConfig) Resolver {
	switch cfg.Mode {
	case "subdomain":
		return &SubdomainResolver{BaseDomain: cfg.BaseDomain, DefaultTenant: cfg.DefaultTenant}
	case "header":
		return &HeaderResolver{Header: cfg.Header, DefaultTenant: cfg.DefaultTenant}
	default:
		return &StaticResolver{TenantID: cfg.DefaultTenant}
	}
}
