package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	corpuscache "github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/cache"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource map[string][]string

func (s staticSource) Fetch(_ context.Context, key string) ([]string, error) {
	raws, ok := s[key]
	if !ok {
		return nil, fmt.Errorf("corpus %s: %w", key, apperrors.ErrCorpusNotFound)
	}
	return raws, nil
}

func (s staticSource) List(_ context.Context) ([]string, error) {
	return []string{"alice-en-0"}, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	src := staticSource{
		"alice-en-0": {
			"The quick brown fox jumps",
			"a cat",
			"The lazy dog sleeps",
		},
	}
	svc := searcher.New(corpuscache.New(src), executor.New(), searcher.WithLister(src))
	mux := http.NewServeMux()
	New(svc).Register(mux)
	return middleware.RequestID(mux)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

type searchResponse struct {
	Corpus       string   `json:"corpus"`
	Mode         string   `json:"mode"`
	TotalMatches int      `json:"total_matches"`
	Indices      []int    `json:"indices"`
	Sentences    []string `json:"sentences"`
	Returned     int      `json:"returned"`
}

func TestSearchBasic(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/v1/search",
		`{"corpus":"alice-en-0","mode":"basic","basic":{"phrase":"The"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	resp := decode[searchResponse](t, rec)
	assert.Equal(t, "alice-en-0", resp.Corpus)
	assert.Equal(t, "basic", resp.Mode)
	assert.Equal(t, 2, resp.TotalMatches)
	assert.Equal(t, []int{0, 2}, resp.Indices)
}

func TestSearchAdvancedWithStringLengths(t *testing.T) {
	srv := newTestServer(t)
	body := `{
		"corpus": "alice-en-0",
		"mode": "advanced",
		"advanced": {
			"words": [{"word": "The", "length": ""}, {"word": "", "length": "4"}],
			"minWords": 3,
			"avgWordLength": 4
		}
	}`
	rec := do(t, srv, http.MethodPost, "/api/v1/search", body)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[searchResponse](t, rec)
	assert.Equal(t, []string{"The lazy dog sleeps"}, resp.Sentences)
}

func TestSearchInferredModeAndLimit(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/v1/search",
		`{"corpus":"alice-en-0","basic":{"phrase":""},"limit":1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[searchResponse](t, rec)
	assert.Equal(t, 3, resp.TotalMatches)
	assert.Equal(t, 1, resp.Returned)
}

func TestSearchErrors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"corpus":`, http.StatusBadRequest},
		{"missing corpus", `{"mode":"basic","basic":{"phrase":"x"}}`, http.StatusBadRequest},
		{"unknown mode", `{"corpus":"alice-en-0","mode":"fuzzy"}`, http.StatusBadRequest},
		{"ambiguous mode", `{"corpus":"alice-en-0"}`, http.StatusBadRequest},
		{"degenerate slot", `{"corpus":"alice-en-0","mode":"advanced","advanced":{"words":[{"word":"","length":""}]}}`, http.StatusBadRequest},
		{"negative limit", `{"corpus":"alice-en-0","basic":{"phrase":"x"},"limit":-1}`, http.StatusBadRequest},
		{"unknown corpus", `{"corpus":"nope","basic":{"phrase":"x"}}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestCorpusEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/corpora", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lexicon":"en"`)

	status := decode[searcher.Status](t, do(t, srv, http.MethodGet, "/api/v1/corpora/current", ""))
	assert.False(t, status.Loaded)

	rec = do(t, srv, http.MethodPost, "/api/v1/corpora/alice-en-0/load", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[searcher.CorpusInfo](t, rec)
	assert.Equal(t, 3, info.Sentences)

	status = decode[searcher.Status](t, do(t, srv, http.MethodGet, "/api/v1/corpora/current", ""))
	assert.Equal(t, searcher.Status{Key: "alice-en-0", Loaded: true}, status)

	rec = do(t, srv, http.MethodPost, "/api/v1/corpora/missing/load", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/v1/corpora/alice-en-0/load", "")

	stats := decode[searcher.CacheStats](t, do(t, srv, http.MethodGet, "/api/v1/cache/stats", ""))
	assert.EqualValues(t, 1, stats.Corpus.Loads)
	assert.Nil(t, stats.Results)

	rec := do(t, srv, http.MethodPost, "/api/v1/cache/invalidate?corpus=alice-en-0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice-en-0", decode[map[string]string](t, rec)["corpus"])

	status := decode[searcher.Status](t, do(t, srv, http.MethodGet, "/api/v1/corpora/current", ""))
	assert.False(t, status.Loaded)
}
