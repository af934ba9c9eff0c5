package v1

import (
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"backoffice/internal/domain/rbac"
)

// Routes lists the engine's routes under /api for catalog synchronization.
// Health probes are never authorized and stay out of the catalog.
func Routes(engine *gin.Engine) []rbac.Route {
	var routes []rbac.Route
	for _, r := range engine.Routes() {
		if !strings.HasPrefix(r.Path, rbac.SyncPrefix+"/") || strings.HasPrefix(r.Path, rbac.SyncPrefix+"/health/") {
			continue
		}
		routes = append(routes, rbac.Route{Method: r.Method, Path: r.Path})
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}
