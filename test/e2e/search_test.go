// Package e2e exercises the assembled search service over HTTP: sentence
// files on disk, the corpus cache, the sharded engine, the handler and the
// middleware chain, wired as cmd/searcher wires them.
//
// Run with:
//
//	go test -v ./test/e2e/...
package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	corpuscache "github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/cache"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/source"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/watcher"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	server *httptest.Server
	dir    string
	svc    *searcher.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "1-1-0.json"), []string{"the cat sat", "a dog ran fast", "cat"})
	writeJSON(t, filepath.Join(dir, "2-1-0.json"), []string{"the cat sat", "a big dog ran"})

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	src := source.NewFileSource(dir)
	engine, err := executor.NewSharded(2, 1)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	svc := searcher.New(
		corpuscache.New(src, corpuscache.WithMetrics(m)),
		engine,
		searcher.WithLister(src),
		searcher.WithMetrics(m),
		searcher.WithLimits(100, 1000),
	)
	mux := http.NewServeMux()
	handler.New(svc).Register(mux)

	var chain http.Handler = mux
	chain = middleware.Timeout(5 * time.Second)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return &stack{server: srv, dir: dir, svc: svc}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

type searchResponse struct {
	Corpus       string   `json:"corpus"`
	TotalMatches int      `json:"total_matches"`
	Indices      []int    `json:"indices"`
	Sentences    []string `json:"sentences"`
	CorpusCached bool     `json:"corpus_cached"`
}

func (s *stack) search(t *testing.T, body string) (int, searchResponse) {
	t.Helper()
	resp, err := http.Post(s.server.URL+"/api/v1/search", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out searchResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestBasicSearchExample(t *testing.T) {
	s := newStack(t)
	status, resp := s.search(t, `{"corpus":"1-1-0.json","mode":"basic","basic":{"phrase":"cat"}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []int{0, 2}, resp.Indices)
	assert.Equal(t, []string{"the cat sat", "cat"}, resp.Sentences)
}

func TestAdvancedSearchExample(t *testing.T) {
	s := newStack(t)
	body := `{
		"corpus": "2-1-0.json",
		"mode": "advanced",
		"advanced": {
			"words": [
				{"word": "", "length": 3},
				{"word": "cat", "length": ""},
				{"word": "", "length": "3"}
			],
			"minWords": 3,
			"avgWordLength": 0
		}
	}`
	status, resp := s.search(t, body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []int{0}, resp.Indices)
	assert.Equal(t, []string{"the cat sat"}, resp.Sentences)
}

func TestSwitchingCorpusReloads(t *testing.T) {
	s := newStack(t)

	_, first := s.search(t, `{"corpus":"1-1-0.json","basic":{"phrase":"dog"}}`)
	assert.False(t, first.CorpusCached)
	assert.Equal(t, []int{1}, first.Indices)

	_, again := s.search(t, `{"corpus":"1-1-0.json","basic":{"phrase":"dog"}}`)
	assert.True(t, again.CorpusCached)

	_, other := s.search(t, `{"corpus":"2-1-0.json","basic":{"phrase":"dog"}}`)
	assert.False(t, other.CorpusCached)
	assert.Equal(t, "2-1-0.json", other.Corpus)
	assert.Equal(t, []string{"a big dog ran"}, other.Sentences)
	assert.Equal(t, "2-1-0.json", s.svc.Status().Key)
}

func TestConcurrentSearchesShareOneLoad(t *testing.T) {
	s := newStack(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, resp := s.search(t, `{"corpus":"1-1-0.json","basic":{"phrase":"cat"}}`)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, []int{0, 2}, resp.Indices)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, s.svc.CacheStats().Corpus.Loads)
}

func TestErrorsLeaveCacheEmpty(t *testing.T) {
	s := newStack(t)

	status, _ := s.search(t, `{"corpus":"missing.json","basic":{"phrase":"cat"}}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, s.svc.Status().Loaded)

	status, _ = s.search(t, `{"corpus":"1-1-0.json","mode":"advanced","advanced":{"words":[{"word":"","length":""}]}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, s.svc.Status().Loaded)
}

func TestFileChangeInvalidatesCorpus(t *testing.T) {
	s := newStack(t)
	ctx := t.Context()

	w, err := watcher.New(s.dir, func(key string) { _ = s.svc.Invalidate(ctx, key) })
	require.NoError(t, err)
	go w.Run(ctx)

	_, before := s.search(t, `{"corpus":"1-1-0.json","basic":{"phrase":"bird"}}`)
	assert.Equal(t, 0, before.TotalMatches)

	writeJSON(t, filepath.Join(s.dir, "1-1-0.json"), []string{"a bird sang"})
	assert.Eventually(t, func() bool {
		_, after := s.search(t, `{"corpus":"1-1-0.json","basic":{"phrase":"bird"}}`)
		return after.TotalMatches == 1
	}, 2*time.Second, 20*time.Millisecond)
}
