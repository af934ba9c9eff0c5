package rbac

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"backoffice/pkg/logger"
)

var tracer = otel.Tracer("backoffice/rbac")

// RouteFinder looks up a catalog node by canonical route.
type RouteFinder interface {
	FindByRoute(ctx context.Context, method, path string) (*PermissionNode, error)
}

// MatcherConfig bounds the route cache. TTL <= 0 keeps entries until evicted or purged.
type MatcherConfig struct {
	Size int
	TTL  time.Duration
}

// DefaultMatcherConfig returns the cache bounds used when none are configured.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{Size: 4096}
}

// MatcherStats is a snapshot of the route cache counters.
type MatcherStats struct {
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Epoch    uint64 `json:"epoch"`
}

type matchEntry struct {
	node  *PermissionNode
	found bool
}

// PathMatcher resolves request routes to catalog nodes through a bounded LRU.
// Misses are cached too, so unmanaged routes do not hit storage on every request.
type PathMatcher struct {
	finder   RouteFinder
	cache    *expirable.LRU[string, matchEntry]
	capacity int
	group    singleflight.Group

	// mu orders cache fills against purges; epoch changes on every purge.
	mu    sync.Mutex
	epoch atomic.Uint64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPathMatcher creates a matcher over finder.
func NewPathMatcher(finder RouteFinder, cfg MatcherConfig) *PathMatcher {
	if cfg.Size <= 0 {
		cfg.Size = DefaultMatcherConfig().Size
	}
	return &PathMatcher{
		finder:   finder,
		cache:    expirable.NewLRU[string, matchEntry](cfg.Size, nil, cfg.TTL),
		capacity: cfg.Size,
	}
}

// Resolve returns the non-deleted node owning (method, rawPath).
// A route without a node yields (nil, false, nil).
func (m *PathMatcher) Resolve(ctx context.Context, rawPath, method string) (*PermissionNode, bool, error) {
	method = normalizeMethod(method)
	path := NormalizePath(rawPath)
	key := method + "|" + path

	if e, ok := m.cache.Get(key); ok {
		m.hits.Add(1)
		return e.node.Clone(), e.found, nil
	}
	m.misses.Add(1)

	epoch := m.epoch.Load()
	v, err, _ := m.group.Do(key+"#"+strconv.FormatUint(epoch, 10), func() (any, error) {
		return m.load(context.WithoutCancel(ctx), key, method, path, epoch)
	})
	if err != nil {
		return nil, false, err
	}
	e := v.(matchEntry)
	return e.node.Clone(), e.found, nil
}

func (m *PathMatcher) load(ctx context.Context, key, method, path string, epoch uint64) (matchEntry, error) {
	ctx, span := tracer.Start(ctx, "rbac.resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("rbac.path", path),
	)

	node, err := m.finder.FindByRoute(ctx, method, path)
	if err != nil {
		span.RecordError(err)
		return matchEntry{}, fmt.Errorf("resolve %s: %w", key, err)
	}
	e := matchEntry{node: node.Clone(), found: node != nil}
	span.SetAttributes(attribute.Bool("rbac.matched", e.found))

	m.mu.Lock()
	if m.epoch.Load() == epoch {
		m.cache.Add(key, e)
	}
	m.mu.Unlock()
	return e, nil
}

// InvalidateAll drops every cached resolution. Loads started before the call
// do not repopulate the cache.
func (m *PathMatcher) InvalidateAll(ctx context.Context) {
	m.mu.Lock()
	epoch := m.epoch.Add(1)
	m.cache.Purge()
	m.mu.Unlock()

	logger.Info(ctx, "route cache invalidated", "epoch", epoch)
}

// Stats returns the current cache counters.
func (m *PathMatcher) Stats() MatcherStats {
	return MatcherStats{
		Size:     m.cache.Len(),
		Capacity: m.capacity,
		Hits:     m.hits.Load(),
		Misses:   m.misses.Load(),
		Epoch:    m.epoch.Load(),
	}
}

var _ Invalidator = (*PathMatcher)(nil)
