// internal/common/tenant/resolver_test.go
package tenant

import (
	"net/http/httptest"
	"testing"

	"marketing-platform/internal/common/config"

	"github.com/stretchr/testify/assert"
)

func TestSubdomainResolver(t *testing.T) {
	resolver := &SubdomainResolver{BaseDomain: "example.com", DefaultTenant: "main"}

	tests := []struct {
		name string
		host string
		want string
	}{
		{"tenant subdomain", "acme.example.com", "acme"},
		{"subdomain with port", "acme.example.com:8080", "acme"},
		{"www falls back", "www.example.com", "main"},
		{"apex falls back", "example.com", "main"},
		{"nested subdomain falls back", "a.b.example.com", "main"},
		{"foreign host falls back", "evil.other.com", "main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.Host = tt.host
			assert.Equal(t, tt.want, resolver.Resolve(r))
		})
	}
}

func TestHeaderResolver(t *testing.T) {
	resolver := &HeaderResolver{Header: "X-Tenant-ID", DefaultTenant: "main"}

	r := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "main", resolver.Resolve(r))

	r.Header.Set("X-Tenant-ID", "acme")
	assert.Equal(t, "acme", resolver.Resolve(r))
}

func TestStaticResolver(t *testing.T) {
	resolver := &StaticResolver{TenantID: "main"}
	assert.Equal(t, "main", resolver.Resolve(httptest.NewRequest("GET", "/", nil)))
}

func TestFromConfig(t *testing.T) {
	assert.IsType(t, &StaticResolver{}, FromConfig(config.TenantConfig{Mode: "static"}))
	assert.IsType(t, &SubdomainResolver{}, FromConfig(config.TenantConfig{Mode: "subdomain"}))
	assert.IsType(t, &HeaderResolver{}, FromConfig(config.TenantConfig{Mode: "header"}))
	assert.IsType(t, &StaticResolver{}, FromConfig(config.TenantConfig{}))
}
