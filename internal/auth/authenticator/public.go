package authenticator

import "strings"

// PublicRoutes is the static allow-list of paths that skip authentication.
// It is matched before any header is read and is not a permission decision.
type PublicRoutes struct {
	Exact    []string
	Prefixes []string
}

// DefaultPublicRoutes returns the allow-list for the auth lifecycle
// endpoints, health probes, API docs and the metrics scrape.
func DefaultPublicRoutes() PublicRoutes {
	return PublicRoutes{
		Exact: []string{
			"/",
			"/health",
			"/api/v1/health",
			"/api/v1/auth/login",
			"/api/v1/auth/signup",
			"/api/v1/auth/refresh",
			"/api/v1/auth/sso/workos",
			"/api/v1/auth/sso/callback",
			"/docs",
			"/redoc",
			"/openapi.json",
			"/metrics",
		},
		Prefixes: []string{"/health", "/docs", "/redoc", "/openapi"},
	}
}

// Match reports whether path is public. Trailing slashes are ignored for
// exact entries.
func (p PublicRoutes) Match(path string) bool {
	trimmed := path
	if len(trimmed) > 1 {
		trimmed = strings.TrimRight(trimmed, "/")
	}
	for _, exact := range p.Exact {
		if trimmed == exact {
			return true
		}
	}
	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
