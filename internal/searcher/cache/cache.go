// Package cache stores search results in Redis keyed by corpus key and a
// fingerprint of the query, so repeated searches skip both the corpus load
// and the scan.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/pattern"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "match:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// IsMiss reports whether a Store.Get error means the key is absent.
type IsMiss func(error) bool

type ResultCache struct {
	store   Store
	isMiss  IsMiss
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a ResultCache on top of a Redis client.
func New(client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	return NewWithStore(client, pkgredis.IsNilError, ttl, m)
}

// NewWithStore creates a ResultCache on any Store.
func NewWithStore(store Store, isMiss IsMiss, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		store:   store,
		isMiss:  isMiss,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

func (c *ResultCache) Get(ctx context.Context, corpusKey string, q pattern.Query) (*executor.MatchResult, bool) {
	key, err := buildKey(corpusKey, q)
	if err != nil {
		c.logger.Error("cache key failed", "error", err)
		return nil, false
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !c.isMiss(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var result executor.MatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("result").Inc()
	}
	c.logger.Debug("cache hit", "corpus", corpusKey, "key", key)
	return &result, true
}

func (c *ResultCache) Set(ctx context.Context, corpusKey string, q pattern.Query, result *executor.MatchResult) {
	key, err := buildKey(corpusKey, q)
	if err != nil {
		c.logger.Error("cache key failed", "error", err)
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or runs computeFn once for all
// concurrent callers asking the same question. The bool reports a hit.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	corpusKey string,
	q pattern.Query,
	computeFn func() (*executor.MatchResult, error),
) (*executor.MatchResult, bool, error) {
	if result, ok := c.Get(ctx, corpusKey, q); ok {
		return result, true, nil
	}
	key, err := buildKey(corpusKey, q)
	if err != nil {
		return nil, false, err
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, corpusKey, q, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.MatchResult), false, nil
}

// InvalidateCorpus drops every cached result for corpusKey.
func (c *ResultCache) InvalidateCorpus(ctx context.Context, corpusKey string) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+pkgredis.EscapePattern(corpusSegment(corpusKey))+":*")
	if err != nil {
		return fmt.Errorf("invalidating results for %s: %w", corpusKey, err)
	}
	c.logger.Info("cache invalidate", "corpus", corpusKey, "keys_deleted", deleted)
	return nil
}

// Invalidate drops every cached result.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("result").Inc()
	}
}

// buildKey hashes the canonical JSON form of q. Two queries that compile to
// the same slots share a key regardless of how the form was filled in.
func buildKey(corpusKey string, q pattern.Query) (string, error) {
	canonical, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encoding query: %w", err)
	}
	hash := sha256.Sum256(canonical)
	return fmt.Sprintf("%s%s:%x", keyPrefix, corpusSegment(corpusKey), hash[:16]), nil
}

// corpusSegment query-escapes corpusKey so it never contains the ':'
// separator and one corpus's pattern cannot match another's keys.
func corpusSegment(corpusKey string) string {
	return url.QueryEscape(corpusKey)
}
