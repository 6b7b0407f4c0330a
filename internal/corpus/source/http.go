package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/resilience"
)

// HTTPSource fetches corpora from a file server exposing
//
//	GET /files/sentences/names   -> {"fileNames": ["1-2-3.json", ...]}
//	GET /files/sentences/{name}  -> ["sentence", ...]
//
// Transient failures are retried with backoff behind a circuit breaker; a
// 404 is returned at once as ErrCorpusNotFound.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// HTTPSourceConfig configures an HTTPSource. Zero values take defaults.
type HTTPSourceConfig struct {
	BaseURL       string
	Client        *http.Client
	Timeout       time.Duration
	Retry         resilience.RetryConfig
	Breaker       resilience.CircuitBreakerConfig
	OnBreakerTrip func(name string, to resilience.State)
}

func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	breakerCfg := cfg.Breaker
	breakerCfg.IsFailure = func(err error) bool {
		return !errors.Is(err, apperrors.ErrCorpusNotFound)
	}
	if cfg.OnBreakerTrip != nil {
		breakerCfg.OnStateChange = cfg.OnBreakerTrip
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		retry:   cfg.Retry,
		breaker: resilience.NewCircuitBreaker("corpus-http", breakerCfg),
		timeout: cfg.Timeout,
		logger:  slog.Default().With("component", "corpus-http-source"),
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, key string) ([]string, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var sentences []string
	err := s.get(ctx, "fetch "+key, "/files/sentences/"+url.PathEscape(key), &sentences)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("corpus fetched", "key", key, "sentences", len(sentences))
	return sentences, nil
}

type namesResponse struct {
	FileNames []string `json:"fileNames"`
}

func (s *HTTPSource) List(ctx context.Context) ([]string, error) {
	var resp namesResponse
	if err := s.get(ctx, "list corpora", "/files/sentences/names", &resp); err != nil {
		return nil, err
	}
	if resp.FileNames == nil {
		return []string{}, nil
	}
	return resp.FileNames, nil
}

// Breaker exposes the circuit breaker for health checks.
func (s *HTTPSource) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}

// get decodes the body of the first successful attempt into out. Each
// attempt reads into its own buffer, so an attempt abandoned on timeout
// never touches out.
func (s *HTTPSource) get(ctx context.Context, op, path string, out any) error {
	var body []byte
	err := resilience.Retry(ctx, op, s.retry, func() error {
		var attempt []byte
		err := s.breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, s.timeout, op, func(ctx context.Context) error {
				data, err := s.do(ctx, path)
				attempt = data
				return err
			})
		})
		if err == nil {
			body = attempt
		}
		if errors.Is(err, apperrors.ErrCorpusNotFound) || errors.Is(err, resilience.ErrCircuitOpen) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil && !errors.Is(err, apperrors.ErrCorpusNotFound) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrFetchFailed, err)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: decoding %s: %w", op, apperrors.ErrFetchFailed, path, err)
	}
	return nil
}

// do returns the response body of a single GET, validated as JSON.
func (s *HTTPSource) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w", path, apperrors.ErrCorpusNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("decoding %s: invalid JSON", path)
	}
	return data, nil
}
