// Package app wires storage, services and the HTTP router from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"backoffice/internal/config"
	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/rbac"
	"backoffice/internal/infrastructure/cache"
	v1 "backoffice/internal/infrastructure/http/v1"
	"backoffice/internal/infrastructure/http/v1/handlers"
	"backoffice/internal/infrastructure/storage/postgres"
	"backoffice/internal/infrastructure/storage/postgres/auth_repo"
	"backoffice/internal/infrastructure/storage/postgres/rbac_repo"
	"backoffice/pkg/logger"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// App holds the wired dependencies of one process.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Redis     *redis.Client

	Admins        *auth_repo.AdminRepo
	RevokedTokens *auth_repo.RevocationRepo
	Permissions   *rbac_repo.PermissionRepo
	RoleRepo      *rbac_repo.RoleRepo
	Assignments   *rbac_repo.AssignmentRepo
	OperationLogs *postgres.OperationLogStore

	Recorder   *audit.Recorder
	Matcher    *rbac.PathMatcher
	Authorizer *rbac.Authorizer
	Catalog    *rbac.CatalogService
	Roles      *rbac.RoleService
	Editor     *rbac.Editor
	Trees      *rbac.TreeService
	Auth       *auth.Service
	Router     *gin.Engine

	listener *cache.CatalogListener
	bus      *cache.RedisBus
	started  time.Time
}

// New connects to the database (and Redis when configured) and builds
// every service. Call Close to release the connections.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.MaxConnLifetime = cfg.DBConnLifetime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &App{Config: cfg, Log: log, Pool: pool, started: time.Now()}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	a.TxManager = postgres.NewTxManager(a.Pool)

	opLogs, err := postgres.NewOperationLogStore(a.TxManager)
	if err != nil {
		return fmt.Errorf("create operation log store: %w", err)
	}
	a.OperationLogs = opLogs
	a.Recorder = audit.NewRecorder(opLogs)

	a.Admins = auth_repo.NewAdminRepo(a.TxManager)
	a.RevokedTokens = auth_repo.NewRevocationRepo(a.TxManager)
	a.Permissions = rbac_repo.NewPermissionRepo(a.TxManager)
	a.RoleRepo = rbac_repo.NewRoleRepo(a.TxManager)
	a.Assignments = rbac_repo.NewAssignmentRepo(a.TxManager)

	a.Matcher = rbac.NewPathMatcher(a.Permissions, rbac.MatcherConfig{
		Size: cfg.RBAC.CacheSize,
		TTL:  cfg.RBAC.CacheTTL,
	})
	a.Authorizer = rbac.NewAuthorizer(a.Matcher, a.RoleRepo, a.Assignments, rbac.AuthorizerConfig{
		FailClosed:   cfg.FailClosed(),
		PublicRoutes: cfg.RBAC.PublicRoutes,
	})
	a.Catalog = rbac.NewCatalogService(a.Permissions, a.Assignments, a.TxManager, a.Recorder, a.Matcher)
	a.Roles = rbac.NewRoleService(a.RoleRepo, a.Assignments, a.Permissions, a.Admins, a.TxManager, a.Recorder)
	a.Editor = rbac.NewEditor(a.Permissions, a.RoleRepo, a.Assignments, a.TxManager, a.Recorder)
	a.Trees = rbac.NewTreeService(a.Permissions, a.RoleRepo, a.Assignments)

	var revocations auth.RevocationStore = a.RevokedTokens
	if cfg.RBAC.Invalidation == config.InvalidationRedis {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		revocations = cache.NewRedisRevocations(a.Redis)
		a.bus = cache.NewRedisBus(a.Redis, cfg.RedisChannel, a.Matcher)
		a.Catalog.SetBroadcaster(a.bus)
	}

	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.Issuer = cfg.JWTIssuer
	jwtCfg.AccessTokenTTL = cfg.JWTTTL
	a.Auth = auth.NewService(a.Admins, revocations, auth.NewJWTService(jwtCfg), a.Recorder)

	checks := map[string]handlers.PingFunc{"database": a.Pool.Ping}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}

	a.Router = v1.NewRouter(v1.RouterConfig{
		Logger:        a.Log,
		AuthService:   a.Auth,
		Authorizer:    a.Authorizer,
		Catalog:       a.Catalog,
		Roles:         a.Roles,
		Editor:        a.Editor,
		Trees:         a.Trees,
		RouteCache:    a.Matcher,
		OperationLogs: opLogs,
		HealthChecks:  checks,
		HealthInfo:    a.info,
		Debug:         cfg.IsDevelopment(),
	})
	return nil
}

// StartInvalidation subscribes to catalog changes made by other processes.
func (a *App) StartInvalidation(ctx context.Context) error {
	switch a.Config.RBAC.Invalidation {
	case config.InvalidationPostgres:
		a.listener = cache.NewCatalogListener(a.Pool.Pool, a.Matcher)
		return a.listener.Start(ctx)
	case config.InvalidationRedis:
		return a.bus.Start(ctx)
	}
	logger.Warn(ctx, "cross-instance cache invalidation disabled")
	return nil
}

// NotifyCatalogChanged asks every running instance to drop its route cache.
func (a *App) NotifyCatalogChanged(ctx context.Context) error {
	switch a.Config.RBAC.Invalidation {
	case config.InvalidationPostgres:
		_, err := a.Pool.Exec(ctx, "SELECT pg_notify($1, 'manual')", cache.CatalogChannel)
		if err != nil {
			return fmt.Errorf("notify %s: %w", cache.CatalogChannel, err)
		}
		return nil
	case config.InvalidationRedis:
		return a.bus.Publish(ctx)
	}
	return fmt.Errorf("cache invalidation is disabled (RBAC_INVALIDATION=%s)", a.Config.RBAC.Invalidation)
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.listener != nil {
		a.listener.Stop()
	}
	if a.bus != nil {
		a.bus.Stop()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Pool.Close()
}

func (a *App) info() map[string]any {
	return map[string]any{
		"version":      Version,
		"env":          a.Config.AppEnv,
		"uptime":       time.Since(a.started).Round(time.Second).String(),
		"invalidation": a.Config.RBAC.Invalidation,
		"failClosed":   a.Config.FailClosed(),
		"pool":         a.Pool.Stats(),
		"matcher":      a.Matcher.Stats(),
	}
}
