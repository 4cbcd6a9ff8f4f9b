package cache

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// evictionSamples is how many entries are inspected to pick an eviction
// victim. Map iteration order is random, so this approximates LRU.
const evictionSamples = 5

// LocalTier is a bounded in-process tier. Readers share a read lock and
// record recency with an atomic store; only writers take the exclusive lock.
type LocalTier struct {
	mu       sync.RWMutex
	items    map[string]*localItem
	capacity int
	clock    clockwork.Clock

	stopOnce sync.Once
	sweeping atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

type localItem struct {
	entry      Entry
	lastAccess atomic.Int64
}

// NewLocalTier creates a local tier holding at most capacity entries.
func NewLocalTier(capacity int, clock clockwork.Clock) *LocalTier {
	if capacity <= 0 {
		capacity = 1
	}
	return &LocalTier{
		items:    make(map[string]*localItem),
		capacity: capacity,
		clock:    clock,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// StartSweeper removes expired entries every interval until Close.
func (t *LocalTier) StartSweeper(interval time.Duration) {
	if !t.sweeping.CompareAndSwap(false, true) {
		return
	}
	ticker := t.clock.NewTicker(interval)
	go func() {
		defer close(t.done)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.Chan():
				t.sweep()
			}
		}
	}()
}

func (t *LocalTier) sweep() {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, it := range t.items {
		if it.entry.Expired(now) {
			delete(t.items, k)
		}
	}
}

func (t *LocalTier) Get(_ context.Context, key string) (Entry, bool, error) {
	now := t.clock.Now()
	t.mu.RLock()
	it, ok := t.items[key]
	t.mu.RUnlock()
	if !ok || it.entry.Expired(now) {
		return Entry{}, false, nil
	}
	it.lastAccess.Store(now.UnixNano())
	e := it.entry
	e.Value = bytes.Clone(e.Value)
	return e, true, nil
}

func (t *LocalTier) Set(_ context.Context, e Entry) error {
	e.Value = bytes.Clone(e.Value)
	it := &localItem{entry: e}
	it.lastAccess.Store(t.clock.Now().UnixNano())

	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.items[e.Key]; ok {
		if cur.entry.StoredAt.After(e.StoredAt) {
			return nil
		}
		t.items[e.Key] = it
		return nil
	}
	t.items[e.Key] = it
	for len(t.items) > t.capacity {
		t.evictOne(e.Key)
	}
	return nil
}

// evictOne removes an expired entry if a sample finds one, otherwise the
// least recently accessed entry in the sample. keep is never evicted.
func (t *LocalTier) evictOne(keep string) {
	now := t.clock.Now()
	var (
		victim string
		oldest int64
		seen   int
	)
	for k, it := range t.items {
		if k == keep {
			continue
		}
		if it.entry.Expired(now) {
			victim = k
			break
		}
		if at := it.lastAccess.Load(); victim == "" || at < oldest {
			victim, oldest = k, at
		}
		if seen++; seen >= evictionSamples {
			break
		}
	}
	if victim != "" {
		delete(t.items, victim)
	}
}

func (t *LocalTier) Delete(_ context.Context, key string) error {
	t.mu.Lock()
	delete(t.items, key)
	t.mu.Unlock()
	return nil
}

func (t *LocalTier) Ping(context.Context) error { return nil }

// Flush drops every entry.
func (t *LocalTier) Flush() {
	t.mu.Lock()
	t.items = make(map[string]*localItem)
	t.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until the
// next sweep.
func (t *LocalTier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Capacity returns the configured entry limit.
func (t *LocalTier) Capacity() int { return t.capacity }

// Close stops the sweeper, if running, and flushes the tier.
func (t *LocalTier) Close() error {
	t.stopOnce.Do(func() {
		close(t.stop)
		if t.sweeping.Load() {
			<-t.done
		}
	})
	t.Flush()
	return nil
}
