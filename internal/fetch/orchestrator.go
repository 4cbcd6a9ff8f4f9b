package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// Store is the cache contract the orchestrator needs. *cache.Cache
// satisfies it. Peek must not count towards hit and miss statistics.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Peek(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// Update describes a freshly cached resource.
type Update struct {
	Key       string          `json:"key"`
	Category  Category        `json:"category"`
	Value     json.RawMessage `json:"value"`
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Publisher receives an Update after every successful upstream resolution.
type Publisher interface {
	Publish(ctx context.Context, u Update) error
}

// Orchestrator implements get-or-fetch over a Store.
type Orchestrator struct {
	store     Store
	policy    TTLPolicy
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	group     singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTTLPolicy overrides DefaultTTLPolicy.
func WithTTLPolicy(p TTLPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithPublisher sends an Update for every freshly cached resource.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithClock sets the clock used to stamp updates.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// New creates an Orchestrator over store.
func New(store Store, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		policy:  DefaultTTLPolicy(),
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TTL returns the freshness window applied to category.
func (o *Orchestrator) TTL(c Category) time.Duration { return o.policy.TTL(c) }

// Invalidate drops key from the cache so the next resolution refetches.
func (o *Orchestrator) Invalidate(ctx context.Context, key string) {
	o.store.Invalidate(ctx, key)
}

// Resolve returns the cached value for key, or fetches raw bytes upstream,
// parses them and caches the result under the category's TTL.
func Resolve[T any](ctx context.Context, o *Orchestrator, key string, cat Category,
	fetch func(context.Context) ([]byte, error), parse func([]byte) (T, error)) (T, error) {
	return resolve(ctx, o, key, cat, func(ctx context.Context) (T, error) {
		raw, err := fetch(ctx)
		if err != nil {
			return *new(T), err
		}
		return parse(raw)
	})
}

// ResolveDerived is Resolve for values computed from other resources rather
// than fetched directly, such as a nearby-earthquake query built on the
// recent and felt lists.
func ResolveDerived[T any](ctx context.Context, o *Orchestrator, key string, cat Category,
	compute func(context.Context) (T, error)) (T, error) {
	return resolve(ctx, o, key, cat, compute)
}

func resolve[T any](ctx context.Context, o *Orchestrator, key string, cat Category,
	produce func(context.Context) (T, error)) (T, error) {
	var zero T

	if v, ok := cached[T](ctx, o, key); ok {
		o.metrics.ResolveTotal.WithLabelValues(string(cat), "hit").Inc()
		return v, nil
	}

	ch := o.group.DoChan(key, func() (any, error) {
		// The flight outlives whichever caller started it.
		fctx := context.WithoutCancel(ctx)

		// A flight that finished just before this one started has already
		// filled the cache. The caller's miss is already counted.
		if b, ok := o.store.Peek(fctx, key); ok {
			return b, nil
		}

		v, err := produce(fctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		o.store.Set(fctx, key, b, o.policy.TTL(cat))
		o.publish(fctx, key, cat, b)
		return b, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			o.recordFailure(key, cat, res.Err)
			var fe *domain.FetchError
			if errors.As(res.Err, &fe) {
				return zero, res.Err
			}
			return zero, &domain.FetchError{Key: key, Err: res.Err}
		}
		result := "miss"
		if res.Shared {
			result = "coalesced"
		}
		o.metrics.ResolveTotal.WithLabelValues(string(cat), result).Inc()

		// Each caller decodes its own copy so no two callers share mutable state.
		var v T
		if err := json.Unmarshal(res.Val.([]byte), &v); err != nil {
			return zero, &domain.FetchError{Key: key, Err: fmt.Errorf("decode: %w", err)}
		}
		return v, nil
	}
}

func cached[T any](ctx context.Context, o *Orchestrator, key string) (T, bool) {
	var v T
	b, ok := o.store.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		o.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		o.store.Invalidate(ctx, key)
		return v, false
	}
	return v, true
}

func (o *Orchestrator) recordFailure(key string, cat Category, err error) {
	o.metrics.ResolveTotal.WithLabelValues(string(cat), "error").Inc()

	var pe *domain.ParseError
	if errors.As(err, &pe) {
		o.metrics.ParseErrors.WithLabelValues(pe.Format).Inc()
		o.logger.Warn("upstream payload rejected", "key", key, "format", pe.Format, "field", pe.Field, "error", err)
		return
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) {
		return
	}
	o.logger.Error("resolve failed", "key", key, "category", cat, "error", err)
}

func (o *Orchestrator) publish(ctx context.Context, key string, cat Category, b []byte) {
	if o.publisher == nil {
		return
	}
	now := o.clock.Now().UTC()
	u := Update{Key: key, Category: cat, Value: b, StoredAt: now}
	if ttl := o.policy.TTL(cat); ttl > 0 {
		exp := now.Add(ttl)
		u.ExpiresAt = &exp
	}
	if err := o.publisher.Publish(ctx, u); err != nil {
		o.metrics.PublishErrors.Inc()
		o.logger.Warn("publish update failed", "key", key, "error", err)
	}
}
