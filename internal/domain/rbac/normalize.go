package rbac

import (
	"strings"
)

// NormalizePath reduces a request path to its canonical matching key.
//
// Scheme and host are removed, repeated slashes collapse, the query string and
// fragment are dropped, every purely numeric segment is removed and a single
// trailing slash is stripped. The root path stays "/". The result is stable:
// NormalizePath(NormalizePath(p)) == NormalizePath(p).
func NormalizePath(raw string) string {
	p := strings.TrimSpace(raw)

	if i := strings.Index(p, "://"); i >= 0 && !strings.Contains(p[:i], "/") {
		p = p[i+1:]
	}
	// "//host/path" after scheme removal, or a protocol-relative URL.
	if strings.HasPrefix(p, "//") {
		rest := p[2:]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			p = rest[j:]
		} else {
			p = ""
		}
	}

	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	segments := strings.Split(p, "/")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" || isNumeric(seg) {
			continue
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		return "/"
	}
	return "/" + strings.Join(kept, "/")
}

// CanonicalRoute converts a route pattern into the key NormalizePath produces
// for matching requests. Parameter segments ({id}, :id, *path) are dropped, so
// "/api/roles/{id}/rights" and "/api/roles/:id/rights" both become "/api/roles/rights".
func CanonicalRoute(pattern string) string {
	p := pattern
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	segments := strings.Split(p, "/")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		if isParamSegment(seg) {
			continue
		}
		kept = append(kept, seg)
	}
	return NormalizePath(strings.Join(kept, "/"))
}

// RouteCacheKey is the matcher cache key of a request.
func RouteCacheKey(method, rawPath string) string {
	return normalizeMethod(method) + "|" + NormalizePath(rawPath)
}

func isNumeric(seg string) bool {
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return false
		}
	}
	return seg != ""
}

func isParamSegment(seg string) bool {
	if seg == "" {
		return false
	}
	switch seg[0] {
	case ':', '*':
		return true
	case '{':
		return strings.HasSuffix(seg, "}")
	}
	return false
}
