package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildEmptyCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Build(context.Background(), newMockSource(), testConfig())
	require.NoError(t, err)
	return cat
}

func TestNewCache_Validation(t *testing.T) {
	_, err := NewCache(0, func(ctx context.Context) (*Catalog, error) { return nil, nil })
	assert.Error(t, err)

	_, err = NewCache(time.Minute, nil)
	assert.Error(t, err)
}

func TestCache_FirstGetBuilds(t *testing.T) {
	built := buildEmptyCatalog(t)
	var builds atomic.Int64
	c, err := NewCache(time.Minute, func(ctx context.Context) (*Catalog, error) {
		builds.Add(1)
		return built, nil
	})
	require.NoError(t, err)

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, built, got)
	assert.Equal(t, int64(1), builds.Load())

	// Second call within TTL serves the snapshot without rebuilding.
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), builds.Load())
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestCache_SingleFlightUnderConcurrency(t *testing.T) {
	built := buildEmptyCatalog(t)
	var builds atomic.Int64
	release := make(chan struct{})

	c, err := NewCache(10*time.Millisecond, func(ctx context.Context) (*Catalog, error) {
		builds.Add(1)
		<-release
		return built, nil
	})
	require.NoError(t, err)

	// Seed a snapshot, then let it expire.
	go func() { release <- struct{}{} }()
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	// N concurrent gets immediately after expiry: exactly one rebuild; the
	// rest serve the stale snapshot without blocking.
	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Get(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, got)
		}()
	}

	// Give the non-rebuilder goroutines time to return on the stale path,
	// then release the single in-flight build.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(2), builds.Load()) // initial + one refresh
}

func TestCache_InvalidateForcesRebuild(t *testing.T) {
	built := buildEmptyCatalog(t)
	var builds atomic.Int64
	c, err := NewCache(time.Hour, func(ctx context.Context) (*Catalog, error) {
		builds.Add(1)
		return built, nil
	})
	require.NoError(t, err)

	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), builds.Load())

	c.Invalidate()
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), builds.Load())

	// Flag clears once the rebuild succeeds.
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), builds.Load())
}

func TestCache_ServesStaleWhenRebuildFails(t *testing.T) {
	built := buildEmptyCatalog(t)
	var builds atomic.Int64
	c, err := NewCache(5*time.Millisecond, func(ctx context.Context) (*Catalog, error) {
		if builds.Add(1) > 1 {
			return nil, eris.New("feature store timeout")
		}
		return built, nil
	})
	require.NoError(t, err)

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	// Rebuild fails; stale catalog is served, not an error.
	stale, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, got, stale)
	assert.Equal(t, int64(1), c.Stats().BuildErrors)

	// Next Get retries the build.
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), builds.Load())
}

func TestCache_InitialBuildFailurePropagates(t *testing.T) {
	c, err := NewCache(time.Minute, func(ctx context.Context) (*Catalog, error) {
		return nil, eris.New("no data")
	})
	require.NoError(t, err)

	_, err = c.Get(context.Background())
	assert.Error(t, err)
	assert.False(t, c.Stats().HasSnapshot)
}

func TestCache_EmptyStateWaitersShareFirstBuild(t *testing.T) {
	built := buildEmptyCatalog(t)
	var builds atomic.Int64
	release := make(chan struct{})
	c, err := NewCache(time.Minute, func(ctx context.Context) (*Catalog, error) {
		builds.Add(1)
		<-release
		return built, nil
	})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Get(context.Background())
			assert.NoError(t, err)
			assert.Same(t, built, got)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), builds.Load())
}
