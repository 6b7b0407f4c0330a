// Package cache keeps the most recently loaded corpus in memory. It holds a
// single entry keyed by corpus key: asking for a different key, or forcing a
// reload, drops the entry before fetching the replacement. Concurrent
// requests for the same key share one fetch, a failed fetch leaves the cache
// empty, and when fetches overlap only the one started last is cached.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Stats are cumulative counters since the cache was created.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Loads    int64 `json:"loads"`
	Failures int64 `json:"failures"`
}

// CorpusCache is safe for concurrent use.
type CorpusCache struct {
	fetcher corpus.Fetcher
	metrics *metrics.Metrics
	logger  *slog.Logger
	group   singleflight.Group

	mu         sync.RWMutex
	current    *corpus.Corpus
	pending    string
	generation uint64

	inflight atomic.Int32
	hits     atomic.Int64
	misses   atomic.Int64
	loads    atomic.Int64
	failures atomic.Int64
}

// Option configures a CorpusCache.
type Option func(*CorpusCache)

// WithMetrics records hits, misses and loads on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *CorpusCache) { c.metrics = m }
}

func New(fetcher corpus.Fetcher, opts ...Option) *CorpusCache {
	c := &CorpusCache{
		fetcher: fetcher,
		logger:  slog.Default().With("component", "corpus-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad returns the cached corpus when it matches key and fetches it
// otherwise. The returned bool reports a cache hit.
func (c *CorpusCache) GetOrLoad(ctx context.Context, key string) (*corpus.Corpus, bool, error) {
	if cached := c.lookup(key); cached != nil {
		c.hits.Add(1)
		c.observe("hit")
		return cached, true, nil
	}
	c.misses.Add(1)
	c.observe("miss")
	loaded, err := c.load(ctx, key, false)
	return loaded, false, err
}

// Load fetches key even if it is already cached and replaces the entry.
func (c *CorpusCache) Load(ctx context.Context, key string) (*corpus.Corpus, error) {
	return c.load(ctx, key, true)
}

func (c *CorpusCache) lookup(key string) *corpus.Corpus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current != nil && c.current.Key == key {
		return c.current
	}
	return nil
}

// load dedupes concurrent fetches of the same key. The fetch itself is not
// tied to the first caller's cancellation; each caller stops waiting when
// its own ctx is done.
func (c *CorpusCache) load(ctx context.Context, key string, force bool) (*corpus.Corpus, error) {
	groupKey := key
	if force {
		groupKey = "reload:" + key
	}
	ch := c.group.DoChan(groupKey, func() (any, error) {
		if !force {
			if cached := c.lookup(key); cached != nil {
				return cached, nil
			}
		}
		return c.fetch(context.WithoutCancel(ctx), key, force)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*corpus.Corpus), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for corpus %s: %w", key, ctx.Err())
	}
}

// fetch loads key and stores it unless another fetch started, or the key
// was invalidated, in the meantime. Only the most recently started fetch may
// populate the cache.
func (c *CorpusCache) fetch(ctx context.Context, key string, force bool) (*corpus.Corpus, error) {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	c.mu.Lock()
	if c.current != nil && (force || c.current.Key != key) {
		c.current = nil
	}
	c.generation++
	gen := c.generation
	c.pending = key
	c.mu.Unlock()

	start := time.Now()
	raws, err := c.fetcher.Fetch(ctx, key)
	if err != nil {
		c.mu.Lock()
		latest := c.generation == gen
		if latest {
			c.pending = ""
		}
		c.mu.Unlock()
		if c.metrics != nil && latest {
			c.metrics.CorpusSentences.Set(0)
		}
		c.failures.Add(1)
		c.observeLoad("error", start)
		c.logger.Error("corpus fetch failed", "key", key, "error", err)
		return nil, fmt.Errorf("loading corpus %s: %w", key, err)
	}
	loaded := corpus.New(key, raws)

	c.mu.Lock()
	stored := c.generation == gen
	if stored {
		c.current = loaded
		c.pending = ""
	}
	c.mu.Unlock()
	if !stored {
		c.logger.Info("corpus superseded before it was cached", "key", key)
	}

	c.loads.Add(1)
	c.observeLoad("success", start)
	if c.metrics != nil && stored {
		c.metrics.CorpusSentences.Set(float64(loaded.Len()))
	}
	c.logger.Info("corpus loaded",
		"key", key,
		"sentences", loaded.Len(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return loaded, nil
}

// Invalidate drops the cached corpus. A fetch already in flight still
// returns its result to its callers but does not repopulate the cache.
func (c *CorpusCache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.pending = ""
	c.generation++
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.CorpusSentences.Set(0)
	}
	c.logger.Info("corpus cache invalidated")
}

// InvalidateKey drops the cached corpus if it is key, and stops a fetch of
// key that is in flight from caching what it read. It reports whether
// either happened.
func (c *CorpusCache) InvalidateKey(key string) bool {
	c.mu.Lock()
	cached := c.current != nil && c.current.Key == key
	if !cached && (key == "" || c.pending != key) {
		c.mu.Unlock()
		return false
	}
	c.current = nil
	c.pending = ""
	c.generation++
	c.mu.Unlock()
	if c.metrics != nil && cached {
		c.metrics.CorpusSentences.Set(0)
	}
	c.logger.Info("corpus cache invalidated", "key", key, "in_flight", !cached)
	return true
}

// Current returns the cached key, if any.
func (c *CorpusCache) Current() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return "", false
	}
	return c.current.Key, true
}

// Loading reports whether a fetch is outstanding.
func (c *CorpusCache) Loading() bool {
	return c.inflight.Load() > 0
}

func (c *CorpusCache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Loads:    c.loads.Load(),
		Failures: c.failures.Load(),
	}
}

func (c *CorpusCache) observe(outcome string) {
	if c.metrics == nil {
		return
	}
	if outcome == "hit" {
		c.metrics.CacheHitsTotal.WithLabelValues("corpus").Inc()
	} else {
		c.metrics.CacheMissesTotal.WithLabelValues("corpus").Inc()
	}
}

func (c *CorpusCache) observeLoad(status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.CorpusLoadsTotal.WithLabelValues(status).Inc()
	c.metrics.CorpusLoadDuration.Observe(time.Since(start).Seconds())
}
