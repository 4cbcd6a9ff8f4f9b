package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnreachable = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// fakeTier is an in-memory remote tier that can be switched off.
type fakeTier struct {
	mu      sync.Mutex
	entries map[string]Entry
	down    bool
	gets    int
	sets    int
}

func newFakeTier() *fakeTier { return &fakeTier{entries: make(map[string]Entry)} }

func (f *fakeTier) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeTier) Get(_ context.Context, key string) (Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.down {
		return Entry{}, false, errUnreachable
	}
	e, ok := f.entries[key]
	return e, ok, nil
}

func (f *fakeTier) Set(_ context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.down {
		return errUnreachable
	}
	if cur, ok := f.entries[e.Key]; ok && cur.StoredAt.After(e.StoredAt) {
		return nil
	}
	f.entries[e.Key] = e
	return nil
}

func (f *fakeTier) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errUnreachable
	}
	delete(f.entries, key)
	return nil
}

func (f *fakeTier) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errUnreachable
	}
	return nil
}

func (f *fakeTier) Close() error { return nil }

func newTestCache(remote Tier) (*Cache, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	local := NewLocalTier(100, clock)
	return New(remote, local, clock, observability.DiscardLogger(), observability.NewMetricsForTesting()), clock
}

func TestCache_SetGet(t *testing.T) {
	remote := newFakeTier()
	c, _ := newTestCache(remote)
	ctx := context.Background()

	c.Set(ctx, "earthquake:latest", []byte(`{"magnitude":5.4}`), time.Minute)

	v, ok := c.Get(ctx, "earthquake:latest")
	require.True(t, ok)
	assert.JSONEq(t, `{"magnitude":5.4}`, string(v))
	assert.Equal(t, 1, remote.sets)

	s := c.Status()
	assert.Equal(t, StateHealthy, s.Remote.State)
	assert.Equal(t, uint64(1), s.Hits)
	assert.InDelta(t, 1.0, s.HitRate, 1e-9)
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(newFakeTier())

	_, ok := c.Get(context.Background(), "weather:33.26.16.1001")
	assert.False(t, ok)

	s := c.Status()
	assert.Equal(t, uint64(1), s.Misses)
	assert.InDelta(t, 0.0, s.HitRate, 1e-9)
}

func TestCache_PeekDoesNotCount(t *testing.T) {
	remote := newFakeTier()
	c, _ := newTestCache(remote)
	ctx := context.Background()

	_, ok := c.Peek(ctx, "earthquake:latest")
	assert.False(t, ok)
	c.Set(ctx, "earthquake:latest", []byte("v"), time.Minute)
	v, ok := c.Peek(ctx, "earthquake:latest")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	s := c.Status()
	assert.Zero(t, s.Hits)
	assert.Zero(t, s.Misses)

	remote.mu.Lock()
	remote.down = true
	remote.mu.Unlock()
	_, ok = c.Peek(ctx, "earthquake:latest")
	assert.True(t, ok, "peek still falls back to the local tier")
	assert.Zero(t, c.Status().Fallbacks)
}

func TestCache_TTLExpiry(t *testing.T) {
	c, clock := newTestCache(newFakeTier())
	ctx := context.Background()

	c.Set(ctx, "earthquake:latest", []byte("v"), time.Minute)
	clock.Advance(59 * time.Second)
	_, ok := c.Get(ctx, "earthquake:latest")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get(ctx, "earthquake:latest")
	assert.False(t, ok, "entries past expires_at are never served")
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c, clock := newTestCache(newFakeTier())
	ctx := context.Background()

	c.Set(ctx, "region:dataset", []byte("v"), 0)
	clock.Advance(365 * 24 * time.Hour)

	_, ok := c.Get(ctx, "region:dataset")
	assert.True(t, ok)
}

func TestCache_FallbackWhenRemoteDown(t *testing.T) {
	remote := newFakeTier()
	c, clock := newTestCache(remote)
	ctx := context.Background()

	c.Set(ctx, "weather:33.26.16.1001", []byte("forecast"), 15*time.Minute)
	remote.setDown(true)

	v, ok := c.Get(ctx, "weather:33.26.16.1001")
	require.True(t, ok, "local tier answers while remote is down")
	assert.Equal(t, []byte("forecast"), v)

	s := c.Status()
	assert.Equal(t, StateDegraded, s.Remote.State)
	assert.Contains(t, s.Remote.LastError, "connection refused")
	require.NotNil(t, s.Remote.LastFailureAt)
	assert.Equal(t, clock.Now(), *s.Remote.LastFailureAt)
	assert.Equal(t, uint64(1), s.Fallbacks)

	clock.Advance(16 * time.Minute)
	_, ok = c.Get(ctx, "weather:33.26.16.1001")
	assert.False(t, ok, "fallback value lapses with its TTL")
}

func TestCache_SetWhileRemoteDownStillWritesLocal(t *testing.T) {
	remote := newFakeTier()
	remote.setDown(true)
	c, _ := newTestCache(remote)
	ctx := context.Background()

	c.Set(ctx, "earthquake:recent", []byte("list"), 5*time.Minute)

	v, ok := c.Get(ctx, "earthquake:recent")
	require.True(t, ok)
	assert.Equal(t, []byte("list"), v)
	assert.Equal(t, StateDegraded, c.Status().Remote.State)
}

func TestCache_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	remote := newFakeTier()
	remote.setDown(true)
	c, _ := newTestCache(remote)
	ctx := context.Background()

	for range 10 {
		c.Get(ctx, "earthquake:latest")
	}

	remote.mu.Lock()
	calls := remote.gets
	remote.mu.Unlock()
	assert.Equal(t, 3, calls, "open breaker stops probing the remote tier")
	assert.Equal(t, uint64(10), c.Status().Fallbacks)
}

func TestCache_RemoteHitRefreshesLocal(t *testing.T) {
	remote := newFakeTier()
	c, clock := newTestCache(remote)
	ctx := context.Background()

	// Another instance wrote the entry.
	now := clock.Now()
	require.NoError(t, remote.Set(ctx, Entry{Key: "nowcast:CBT", Value: []byte("warnings"), StoredAt: now, ExpiresAt: now.Add(2 * time.Minute)}))

	_, ok := c.Get(ctx, "nowcast:CBT")
	require.True(t, ok)

	remote.setDown(true)
	v, ok := c.Get(ctx, "nowcast:CBT")
	require.True(t, ok)
	assert.Equal(t, []byte("warnings"), v)
}

func TestCache_Recovers(t *testing.T) {
	remote := newFakeTier()
	c, _ := newTestCache(remote)
	ctx := context.Background()

	remote.setDown(true)
	require.Error(t, c.Ping(ctx))
	assert.Equal(t, StateDegraded, c.Status().Remote.State)

	remote.setDown(false)
	require.NoError(t, c.Ping(ctx))
	s := c.Status()
	assert.Equal(t, StateHealthy, s.Remote.State)
	assert.Equal(t, uint64(1), s.Remote.Failures, "failure history is kept")
}

func TestCache_CancelledCallerIsNotATierFailure(t *testing.T) {
	remote := newFakeTier()
	remote.setDown(true)
	c, _ := newTestCache(remote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Get(ctx, "earthquake:latest")

	assert.Equal(t, uint64(0), c.Status().Remote.Failures)
}

func TestCache_Invalidate(t *testing.T) {
	remote := newFakeTier()
	c, _ := newTestCache(remote)
	ctx := context.Background()

	c.Set(ctx, "earthquake:felt", []byte("v"), time.Minute)
	c.Invalidate(ctx, "earthquake:felt")

	_, ok := c.Get(ctx, "earthquake:felt")
	assert.False(t, ok)
	assert.Empty(t, remote.entries)
}

func TestCache_Disabled(t *testing.T) {
	c, _ := newTestCache(nil)
	ctx := context.Background()

	c.Set(ctx, "earthquake:latest", []byte("v"), time.Minute)
	v, ok := c.Get(ctx, "earthquake:latest")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, c.Ping(ctx))
	s := c.Status()
	assert.Equal(t, StateDisabled, s.Remote.State)
	assert.Equal(t, 1, s.Local.Entries)
	assert.Equal(t, 100, s.Local.Capacity)
	require.NoError(t, c.Close())
}

func TestCache_ConcurrentReaders(t *testing.T) {
	c, _ := newTestCache(newFakeTier())
	ctx := context.Background()
	c.Set(ctx, "earthquake:latest", []byte("v"), time.Minute)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok := c.Get(ctx, "earthquake:latest")
			assert.True(t, ok)
			assert.Equal(t, []byte("v"), v)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), c.Status().Hits)
}
