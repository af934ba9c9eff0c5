package rbac_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/rbac"
	"backoffice/internal/domain/rbac/rbactest"
)

func TestPathMatcherResolve(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	node, found, err := f.matcher.Resolve(ctx, "/api/roles/5/rights", "post")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), node.ID)

	_, found, err = f.matcher.Resolve(ctx, "/api/roles/5/rights", "GET")
	require.NoError(t, err)
	assert.False(t, found)

	node, found, err = f.matcher.Resolve(ctx, "https://admin.local//admins/42/?tab=1", "GET")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(4), node.ID)
}

func TestPathMatcherCachesHitsAndMisses(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := f.matcher.Resolve(ctx, "/admins/"+string(rune('1'+i)), "GET")
		require.NoError(t, err)
		_, _, err = f.matcher.Resolve(ctx, "/totally/unknown", "GET")
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2), f.store.FindCalls.Load())
	st := f.matcher.Stats()
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, uint64(4), st.Hits)
	assert.Equal(t, uint64(2), st.Misses)
}

func TestPathMatcherReturnsCopies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	node, _, err := f.matcher.Resolve(ctx, "/admins", "GET")
	require.NoError(t, err)
	node.Name = "mutated"
	*node.RoutePath = "/elsewhere"

	again, _, err := f.matcher.Resolve(ctx, "/admins", "GET")
	require.NoError(t, err)
	assert.Equal(t, "GET /admins", again.Name)
	assert.Equal(t, "/admins", *again.RoutePath)
}

func TestPathMatcherInvalidateAll(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, found, err := f.matcher.Resolve(ctx, "/api/reports", "GET")
	require.NoError(t, err)
	assert.False(t, found)

	f.store.AddNode(rbac.PermissionNode{Name: "GET /api/reports", RouteMethod: str("GET"), RoutePath: str("/api/reports")})

	_, found, _ = f.matcher.Resolve(ctx, "/api/reports", "GET")
	assert.False(t, found, "cached miss survives until invalidation")

	f.matcher.InvalidateAll(ctx)
	assert.Equal(t, 0, f.matcher.Stats().Size)
	assert.Equal(t, uint64(1), f.matcher.Stats().Epoch)

	_, found, err = f.matcher.Resolve(ctx, "/api/reports", "GET")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestPathMatcherBounded(t *testing.T) {
	store := rbactest.New()
	m := rbac.NewPathMatcher(store.Catalog(), rbac.MatcherConfig{Size: 2})
	ctx := context.Background()

	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		_, _, err := m.Resolve(ctx, p, "GET")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, m.Stats().Size)
	assert.Equal(t, 2, m.Stats().Capacity)
}

func TestPathMatcherTTL(t *testing.T) {
	store := rbactest.New()
	m := rbac.NewPathMatcher(store.Catalog(), rbac.MatcherConfig{Size: 8, TTL: 20 * time.Millisecond})
	ctx := context.Background()

	_, _, err := m.Resolve(ctx, "/a", "GET")
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, _, err = m.Resolve(ctx, "/a", "GET")
	require.NoError(t, err)

	assert.Equal(t, int64(2), store.FindCalls.Load())
}

func TestPathMatcherDoesNotCacheErrors(t *testing.T) {
	store := rbactest.New()
	store.Err = errors.New("connection refused")
	m := rbac.NewPathMatcher(store.Catalog(), rbac.MatcherConfig{Size: 8})
	ctx := context.Background()

	_, _, err := m.Resolve(ctx, "/a", "GET")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.Err)

	store.Err = nil
	_, found, err := m.Resolve(ctx, "/a", "GET")
	require.NoError(t, err)
	assert.False(t, found)
}

// blockingFinder holds FindByRoute until release is closed.
type blockingFinder struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingFinder) FindByRoute(_ context.Context, method, path string) (*rbac.PermissionNode, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return &rbac.PermissionNode{ID: 9, RouteMethod: &method, RoutePath: &path}, nil
}

func TestPathMatcherLoadDuringPurgeIsNotCached(t *testing.T) {
	finder := &blockingFinder{started: make(chan struct{}), release: make(chan struct{})}
	m := rbac.NewPathMatcher(finder, rbac.MatcherConfig{Size: 8})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, found, err := m.Resolve(ctx, "/x", "GET")
		assert.NoError(t, err)
		assert.True(t, found)
	}()

	<-finder.started
	m.InvalidateAll(ctx)
	close(finder.release)
	<-done

	assert.Equal(t, 0, m.Stats().Size)
}

func TestPathMatcherCollapsesConcurrentMisses(t *testing.T) {
	finder := &blockingFinder{started: make(chan struct{}), release: make(chan struct{})}
	counting := &countingFinder{next: finder}
	m := rbac.NewPathMatcher(counting, rbac.MatcherConfig{Size: 8})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.Resolve(ctx, "/x", "GET")
			assert.NoError(t, err)
		}()
	}
	<-finder.started
	time.Sleep(20 * time.Millisecond)
	close(finder.release)
	wg.Wait()

	assert.Equal(t, 1, counting.calls())
	assert.Equal(t, 1, m.Stats().Size)
}

type countingFinder struct {
	mu   sync.Mutex
	n    int
	next rbac.RouteFinder
}

func (c *countingFinder) FindByRoute(ctx context.Context, method, path string) (*rbac.PermissionNode, error) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return c.next.FindByRoute(ctx, method, path)
}

func (c *countingFinder) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
