package rbac

import (
	"strings"
)

type publicRoute struct {
	method string // empty matches any method
	path   string
	prefix bool
}

// PublicRoutes is an allowlist of routes that need no authentication.
// Entries are "path", "METHOD path", or either form with a trailing "*"
// to match every path starting with the prefix.
type PublicRoutes struct {
	routes []publicRoute
}

// ParsePublicRoutes builds an allowlist. Blank entries are ignored.
func ParsePublicRoutes(entries []string) *PublicRoutes {
	p := &PublicRoutes{}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		var r publicRoute
		if method, path, ok := strings.Cut(entry, " "); ok {
			r.method = normalizeMethod(method)
			entry = strings.TrimSpace(path)
		}
		if strings.HasSuffix(entry, "*") {
			r.prefix = true
			entry = strings.TrimSuffix(entry, "*")
		}
		r.path = CanonicalRoute(entry)
		p.routes = append(p.routes, r)
	}
	return p
}

// Match reports whether (method, rawPath) is on the allowlist.
func (p *PublicRoutes) Match(method, rawPath string) bool {
	if p == nil || len(p.routes) == 0 {
		return false
	}
	method = normalizeMethod(method)
	path := NormalizePath(rawPath)
	for _, r := range p.routes {
		if r.method != "" && r.method != method {
			continue
		}
		if r.prefix {
			if r.path == "/" || strings.HasPrefix(path, r.path) {
				return true
			}
			continue
		}
		if r.path == path {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (p *PublicRoutes) Len() int {
	if p == nil {
		return 0
	}
	return len(p.routes)
}
