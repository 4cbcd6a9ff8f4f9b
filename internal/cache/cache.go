package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
)

// Remote tier states reported by Status.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
)

// Cache is the two-tier store. Remote-tier failures are absorbed: they are
// recorded for Status and the local tier answers instead.
type Cache struct {
	remote  Tier // nil when no remote tier is configured
	local   *LocalTier
	breaker *gobreaker.CircuitBreaker[Entry]
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	hits, misses, fallbacks atomic.Uint64

	mu            sync.Mutex
	degraded      bool
	lastError     string
	lastFailureAt time.Time
	failures      uint64
}

// Status summarises tier health and hit rate.
type Status struct {
	Remote    RemoteStatus `json:"remote"`
	Local     LocalStatus  `json:"local"`
	Hits      uint64       `json:"hits"`
	Misses    uint64       `json:"misses"`
	HitRate   float64      `json:"hit_rate"`
	Fallbacks uint64       `json:"fallbacks"`
}

// RemoteStatus describes the shared tier.
type RemoteStatus struct {
	State         string     `json:"state"`
	LastError     string     `json:"last_error,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	Failures      uint64     `json:"failures"`
}

// LocalStatus describes the in-process tier.
type LocalStatus struct {
	Entries  int `json:"entries"`
	Capacity int `json:"capacity"`
}

// New creates a Cache. remote may be nil to run on the local tier alone.
func New(remote Tier, local *LocalTier, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	c := &Cache{
		remote:  remote,
		local:   local,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
	if remote != nil {
		c.breaker = gobreaker.NewCircuitBreaker[Entry](gobreaker.Settings{
			Name:        "cache-remote",
			MaxRequests: 1,
			Timeout:     5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			// A caller giving up is not a tier fault.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("remote cache breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
		metrics.CacheRemoteUp.Set(1)
	}
	return c
}

// Get returns the live value for key. The remote tier is asked first; when
// it is unreachable, or does not hold the key, the local tier answers.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	return c.lookup(ctx, key, true)
}

// Peek is Get without touching the hit and miss counters, for callers
// re-checking a key they have already counted.
func (c *Cache) Peek(ctx context.Context, key string) ([]byte, bool) {
	return c.lookup(ctx, key, false)
}

func (c *Cache) lookup(ctx context.Context, key string, count bool) ([]byte, bool) {
	now := c.clock.Now()

	if c.remote != nil {
		e, err := c.breaker.Execute(func() (Entry, error) {
			e, ok, err := c.remote.Get(ctx, key)
			if err != nil {
				return Entry{}, err
			}
			if !ok {
				return Entry{}, nil
			}
			return e, nil
		})
		switch {
		case err != nil:
			c.remoteFailed(ctx, "get", key, err)
			if count {
				c.fallbacks.Add(1)
				c.metrics.CacheFallbacks.Inc()
			}
		case e.Key != "" && !e.Expired(now):
			c.remoteOK()
			_ = c.local.Set(ctx, e)
			if count {
				c.metrics.CacheRequests.WithLabelValues("remote", "hit").Inc()
				c.hits.Add(1)
			}
			return e.Value, true
		default:
			c.remoteOK()
			if count {
				c.metrics.CacheRequests.WithLabelValues("remote", "miss").Inc()
			}
		}
	}

	e, ok, _ := c.local.Get(ctx, key)
	if ok && !e.Expired(now) {
		if count {
			c.metrics.CacheRequests.WithLabelValues("local", "hit").Inc()
			c.hits.Add(1)
		}
		return e.Value, true
	}
	if count {
		c.metrics.CacheRequests.WithLabelValues("local", "miss").Inc()
		c.misses.Add(1)
	}
	return nil, false
}

// Set stores value under key for ttl; a ttl of zero never expires. The local
// tier is always written so a later remote outage still serves it.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	now := c.clock.Now()
	e := Entry{Key: key, Value: value, StoredAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}

	_ = c.local.Set(ctx, e)
	if c.remote == nil {
		return
	}
	_, err := c.breaker.Execute(func() (Entry, error) {
		return Entry{}, c.remote.Set(ctx, e)
	})
	if err != nil {
		c.remoteFailed(ctx, "set", key, err)
		return
	}
	c.remoteOK()
}

// Invalidate removes key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	_ = c.local.Delete(ctx, key)
	if c.remote == nil {
		return
	}
	_, err := c.breaker.Execute(func() (Entry, error) {
		return Entry{}, c.remote.Delete(ctx, key)
	})
	if err != nil {
		c.remoteFailed(ctx, "invalidate", key, err)
		return
	}
	c.remoteOK()
}

// Ping probes the remote tier and updates its health. It never fails when
// no remote tier is configured.
func (c *Cache) Ping(ctx context.Context) error {
	if c.remote == nil {
		return nil
	}
	if err := c.remote.Ping(ctx); err != nil {
		c.remoteFailed(ctx, "ping", "", err)
		return err
	}
	c.remoteOK()
	return nil
}

// Status reports tier health and hit/miss counters.
func (c *Cache) Status() Status {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Status{
		Local:     LocalStatus{Entries: c.local.Len(), Capacity: c.local.Capacity()},
		Hits:      hits,
		Misses:    misses,
		Fallbacks: c.fallbacks.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}

	if c.remote == nil {
		s.Remote.State = StateDisabled
		return s
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Remote.State = StateHealthy
	if c.degraded || c.breaker.State() != gobreaker.StateClosed {
		s.Remote.State = StateDegraded
	}
	s.Remote.LastError = c.lastError
	s.Remote.Failures = c.failures
	if !c.lastFailureAt.IsZero() {
		at := c.lastFailureAt
		s.Remote.LastFailureAt = &at
	}
	return s
}

// Close flushes the local tier and closes the remote connection.
func (c *Cache) Close() error {
	err := c.local.Close()
	if c.remote != nil {
		err = errors.Join(err, c.remote.Close())
	}
	return err
}

func (c *Cache) remoteFailed(ctx context.Context, op, key string, err error) {
	if ctx.Err() != nil {
		return
	}
	c.metrics.CacheRequests.WithLabelValues("remote", "error").Inc()
	c.metrics.CacheRemoteUp.Set(0)

	c.mu.Lock()
	first := !c.degraded
	c.degraded = true
	c.lastError = err.Error()
	c.lastFailureAt = c.clock.Now()
	c.failures++
	c.mu.Unlock()

	if first {
		c.logger.Warn("remote cache degraded, serving from local tier", "op", op, "key", key, "error", err)
	} else {
		c.logger.Debug("remote cache unavailable", "op", op, "key", key, "error", err)
	}
}

func (c *Cache) remoteOK() {
	c.mu.Lock()
	recovered := c.degraded
	c.degraded = false
	c.mu.Unlock()
	if recovered {
		c.metrics.CacheRemoteUp.Set(1)
		c.logger.Info("remote cache recovered")
	}
}
