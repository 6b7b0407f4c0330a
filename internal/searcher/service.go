// Package searcher ties the corpus cache, the search engine and the optional
// result cache and analytics collector into the operations the HTTP API and
// the CLI expose: list corpora, load a corpus, search it, and invalidate
// cached state.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus"
	corpuscache "github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/cache"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/pattern"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/middleware"
)

// Engine runs a validated query over a corpus.
type Engine interface {
	Execute(ctx context.Context, c *corpus.Corpus, q pattern.Query) (*executor.MatchResult, error)
}

// ResultCache remembers full match results per corpus and query.
type ResultCache interface {
	GetOrCompute(ctx context.Context, corpusKey string, q pattern.Query, computeFn func() (*executor.MatchResult, error)) (*executor.MatchResult, bool, error)
	InvalidateCorpus(ctx context.Context, corpusKey string) error
	Invalidate(ctx context.Context) error
	Stats() (hits, misses int64)
}

// Tracker receives analytics events.
type Tracker interface {
	Track(key string, event any)
}

// Result is a MatchResult truncated to the requested limit plus request
// bookkeeping.
type Result struct {
	*executor.MatchResult
	Returned     int   `json:"returned"`
	CacheHit     bool  `json:"cache_hit"`
	CorpusCached bool  `json:"corpus_cached"`
	LatencyMs    int64 `json:"latency_ms"`
}

// CorpusInfo describes a loaded corpus.
type CorpusInfo struct {
	corpus.Descriptor
	Sentences int `json:"sentences"`
}

// Status is the corpus cache state.
type Status struct {
	Key     string `json:"key"`
	Loaded  bool   `json:"loaded"`
	Loading bool   `json:"loading"`
}

// CacheStats summarises both cache layers.
type CacheStats struct {
	Corpus  corpuscache.Stats `json:"corpus"`
	Results *ResultStats      `json:"results,omitempty"`
}

type ResultStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type Option func(*Service)

// WithLister enables List.
func WithLister(l corpus.Lister) Option {
	return func(s *Service) { s.lister = l }
}

func WithResultCache(rc ResultCache) Option {
	return func(s *Service) { s.results = rc }
}

func WithTracker(t Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLimits sets the number of sentences returned when the caller gives no
// limit and the hard cap on any limit. Zero leaves a value unbounded.
func WithLimits(defaultLimit, maxResults int) Option {
	return func(s *Service) {
		s.defaultLimit = defaultLimit
		s.maxResults = maxResults
	}
}

type Service struct {
	corpora      *corpuscache.CorpusCache
	engine       Engine
	lister       corpus.Lister
	results      ResultCache
	tracker      Tracker
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(corpora *corpuscache.CorpusCache, engine Engine, opts ...Option) *Service {
	s := &Service{
		corpora: corpora,
		engine:  engine,
		logger:  slog.Default().With("component", "search-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every corpus the source can serve, with its key broken down
// where it follows the naming convention.
func (s *Service) List(ctx context.Context) ([]corpus.Descriptor, error) {
	if s.lister == nil {
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusNotImplemented, "corpus source cannot list corpora")
	}
	keys, err := s.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing corpora: %w", err)
	}
	out := make([]corpus.Descriptor, 0, len(keys))
	for _, key := range keys {
		d, _ := corpus.ParseKey(key)
		out = append(out, d)
	}
	return out, nil
}

// Load fetches key, replacing whatever corpus is cached, and drops cached
// results for it.
func (s *Service) Load(ctx context.Context, key string) (*CorpusInfo, error) {
	if key == "" {
		return nil, fmt.Errorf("corpus key is required: %w", apperrors.ErrInvalidInput)
	}
	start := time.Now()
	c, err := s.corpora.Load(ctx, key)
	s.trackLoad(key, c, start, err)
	if err != nil {
		return nil, err
	}
	if s.results != nil {
		if err := s.results.InvalidateCorpus(ctx, key); err != nil {
			logger.FromContext(ctx).Warn("result cache invalidation failed", "corpus", key, "error", err)
		}
	}
	d, _ := corpus.ParseKey(key)
	return &CorpusInfo{Descriptor: d, Sentences: c.Len()}, nil
}

// Search runs q against corpus key, loading the corpus first if it is not
// the cached one. An invalid query is rejected before anything is loaded.
// limit bounds the returned sentences; Total always counts every match.
func (s *Service) Search(ctx context.Context, key string, q pattern.Query, limit int) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	mode := q.Mode()

	if key == "" {
		return nil, fmt.Errorf("corpus key is required: %w", apperrors.ErrInvalidInput)
	}
	if err := q.Validate(); err != nil {
		s.observeSearch(mode, "error", 0, 0)
		return nil, err
	}

	var corpusCached bool
	compute := func() (*executor.MatchResult, error) {
		loadStart := time.Now()
		c, hit, err := s.corpora.GetOrLoad(ctx, key)
		if !hit {
			s.trackLoad(key, c, loadStart, err)
		}
		if err != nil {
			return nil, err
		}
		corpusCached = hit
		execStart := time.Now()
		result, err := s.engine.Execute(ctx, c, q)
		if err != nil {
			return nil, err
		}
		s.observeSearch(mode, outcome(result), time.Since(execStart), result.Total)
		return result, nil
	}

	var (
		full     *executor.MatchResult
		cacheHit bool
		err      error
	)
	if s.results != nil {
		full, cacheHit, err = s.results.GetOrCompute(ctx, key, q, compute)
	} else {
		full, err = compute()
	}
	latency := time.Since(start)
	if err != nil {
		s.observeSearch(mode, "error", 0, 0)
		s.trackSearch(ctx, key, q, nil, 0, false, latency, err)
		log.Error("search failed", "corpus", key, "mode", mode, "error", err)
		return nil, err
	}

	res := &Result{
		MatchResult:  full.Truncate(s.effectiveLimit(limit)),
		CacheHit:     cacheHit,
		CorpusCached: corpusCached || cacheHit,
		LatencyMs:    latency.Milliseconds(),
	}
	res.Returned = len(res.Indices)

	log.Info("search completed",
		"corpus", key,
		"mode", mode,
		"query", q.String(),
		"total_matches", res.Total,
		"returned", res.Returned,
		"cache_hit", cacheHit,
		"latency_ms", res.LatencyMs,
	)
	s.trackSearch(ctx, key, q, full, res.Returned, cacheHit, latency, nil)
	return res, nil
}

// Status reports which corpus is cached and whether a load is running.
func (s *Service) Status() Status {
	key, loaded := s.corpora.Current()
	return Status{Key: key, Loaded: loaded, Loading: s.corpora.Loading()}
}

// Invalidate drops cached state for key, or for everything when key is
// empty.
func (s *Service) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		s.corpora.Invalidate()
	} else {
		s.corpora.InvalidateKey(key)
	}
	if s.results == nil {
		return nil
	}
	if key == "" {
		return s.results.Invalidate(ctx)
	}
	return s.results.InvalidateCorpus(ctx, key)
}

func (s *Service) CacheStats() CacheStats {
	stats := CacheStats{Corpus: s.corpora.Stats()}
	if s.results != nil {
		hits, misses := s.results.Stats()
		rs := &ResultStats{Hits: hits, Misses: misses}
		if total := hits + misses; total > 0 {
			rs.HitRate = float64(hits) / float64(total)
		}
		stats.Results = rs
	}
	return stats
}

func (s *Service) effectiveLimit(limit int) int {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if s.maxResults > 0 && (limit <= 0 || limit > s.maxResults) {
		limit = s.maxResults
	}
	return limit
}

func outcome(r *executor.MatchResult) string {
	if r.Total == 0 {
		return "zero_result"
	}
	return "match"
}

func (s *Service) observeSearch(mode pattern.Mode, outcome string, elapsed time.Duration, matches int) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(string(mode), outcome).Inc()
	if outcome == "error" {
		return
	}
	s.metrics.SearchLatency.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
	s.metrics.SearchMatchesCount.WithLabelValues(string(mode)).Observe(float64(matches))
}

func (s *Service) trackSearch(ctx context.Context, key string, q pattern.Query, full *executor.MatchResult, returned int, cacheHit bool, latency time.Duration, err error) {
	if s.tracker == nil {
		return
	}
	event := analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Corpus:    key,
		Mode:      string(q.Mode()),
		Query:     q.String(),
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}
	if full != nil {
		event.TotalMatches = full.Total
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.tracker.Track(key, event)
}

func (s *Service) trackLoad(key string, c *corpus.Corpus, start time.Time, err error) {
	if s.tracker == nil {
		return
	}
	event := analytics.CorpusLoadEvent{
		Type:      analytics.EventCorpusLoad,
		Corpus:    key,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	} else if c != nil {
		event.Sentences = c.Len()
	}
	s.tracker.Track(key, event)
}
