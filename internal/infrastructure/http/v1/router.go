// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/rbac"
	"backoffice/internal/infrastructure/http/v1/handlers"
	"backoffice/internal/infrastructure/http/v1/middleware"
	"backoffice/pkg/logger"
)

// RouterConfig holds the services the API is built from.
type RouterConfig struct {
	Logger *logger.Logger

	AuthService   *auth.Service
	Authorizer    *rbac.Authorizer
	Catalog       *rbac.CatalogService
	Roles         *rbac.RoleService
	Editor        *rbac.Editor
	Trees         *rbac.TreeService
	RouteCache    handlers.RouteCache
	OperationLogs audit.Reader

	// HealthChecks are run by /health/ready.
	HealthChecks map[string]handlers.PingFunc
	HealthInfo   func() map[string]any

	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks, cfg.HealthInfo)
	for _, prefix := range []string{"/health", "/api/health"} {
		health := router.Group(prefix)
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(base, cfg.AuthService, cfg.Trees)
	api := router.Group("/api")

	// Auth tolerates missing tokens on public routes, so logout can still
	// see the caller when a token is sent.
	api.Use(middleware.Auth(cfg.AuthService, cfg.Authorizer))
	api.POST("/login", authHandler.Login)
	api.POST("/logout", authHandler.Logout)

	// Signed-in only: these answer about the caller and filter by its grants.
	api.GET("/me", authHandler.Me)
	api.GET("/permissions/menu", authHandler.Menu)

	protected := api.Group("")
	protected.Use(middleware.Authorize(cfg.Authorizer))

	registerPermissionRoutes(protected, base, cfg)
	registerRoleRoutes(protected, base, cfg)

	logs := handlers.NewOperationLogHandler(base, cfg.OperationLogs)
	protected.GET("/operation-logs", logs.List)

	return router
}

func registerPermissionRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewPermissionHandler(base, cfg.Catalog, cfg.Trees, cfg.RouteCache, cfg.Authorizer.FailClosed())

	permissions := rg.Group("/permissions")
	permissions.GET("", h.List)
	permissions.POST("", h.Create)
	permissions.GET("/tree", h.Tree)
	permissions.GET("/stats", h.Stats)
	permissions.GET("/deleted", h.Deleted)
	permissions.POST("/batch-delete", h.BatchDelete)
	permissions.GET("/cache/stats", h.CacheStats)
	permissions.POST("/cache/invalidate", h.CacheInvalidate)
	permissions.GET("/:id", h.Get)
	permissions.PUT("/:id", h.Update)
	permissions.DELETE("/:id", h.Delete)
	permissions.POST("/:id/restore", h.Restore)
	permissions.DELETE("/:id/purge", h.Purge)
}

func registerRoleRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewRoleHandler(base, cfg.Roles, cfg.Editor, cfg.Trees)

	roles := rg.Group("/roles")
	roles.GET("", h.List)
	roles.POST("", h.Create)
	roles.GET("/all-rights-tree", h.AllRightsTree)
	roles.GET("/:id", h.Get)
	roles.PUT("/:id", h.Update)
	roles.DELETE("/:id", h.Delete)
	roles.GET("/:id/rights", h.Rights)
	roles.POST("/:id/rights", h.SetRights)
	roles.GET("/:id/rights-tree", h.RightsTree)
}
