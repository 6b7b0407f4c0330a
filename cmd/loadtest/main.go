// Command loadtest drives POST /api/v1/search with a mix of basic and
// advanced queries against one corpus and reports throughput, latency
// percentiles, cache hit rate and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest -corpus 1-2-0.json [-url http://localhost:8080] [-concurrency 10] [-duration 30s]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/pattern"
)

type Config struct {
	BaseURL     string
	Corpus      string
	Concurrency int
	Duration    time.Duration
	Limit       int
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	matches       atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

// searchReply is the subset of the search response the report uses.
type searchReply struct {
	TotalMatches int  `json:"total_matches"`
	CacheHit     bool `json:"cache_hit"`
}

func (s *Stats) Record(duration time.Duration, statusCode int, reply *searchReply, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	if reply != nil {
		s.matches.Add(int64(reply.TotalMatches))
		if reply.CacheHit {
			s.cacheHits.Add(1)
		}
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	s.statusCodes[statusCode]++
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	corpusKey := flag.String("corpus", "", "corpus key to search (required)")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "sentences returned per search")
	flag.Parse()

	if *corpusKey == "" {
		fmt.Fprintln(os.Stderr, "-corpus is required")
		os.Exit(2)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Corpus:      *corpusKey,
		Concurrency: *concurrency,
		Duration:    *duration,
		Limit:       *limit,
	}
	bodies, err := requestBodies(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building requests: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Sentence Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Corpus:      %s\n", cfg.Corpus)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(bodies))
	fmt.Println()

	stats := runLoadTest(cfg, bodies)
	printReport(stats, cfg.Duration)
}

// requestBodies returns the encoded search requests the workers cycle
// through: a spread of phrases and word patterns.
func requestBodies(cfg Config) ([][]byte, error) {
	phrases := []string{"the", "and", "of the", "in a", "was", "he said", "she", "it is", ""}
	forms := []pattern.AdvancedForm{
		{Words: []pattern.SlotForm{{Word: "The"}}},
		{Words: []pattern.SlotForm{{Word: "The"}, {Length: pattern.Len(5)}}, MinWords: 4},
		{Words: []pattern.SlotForm{{Length: pattern.Len(1)}, {Length: pattern.Len(3)}}},
		{MinWords: 10, AvgWordLength: 4.5},
		{Words: []pattern.SlotForm{{Length: pattern.Len(2)}}, AvgWordLength: 5},
	}

	reqs := make([]handler.SearchRequest, 0, len(phrases)+len(forms))
	for _, p := range phrases {
		reqs = append(reqs, handler.SearchRequest{
			Corpus: cfg.Corpus,
			Mode:   pattern.ModeBasic,
			Basic:  &pattern.BasicQuery{Phrase: p},
			Limit:  cfg.Limit,
		})
	}
	for i := range forms {
		reqs = append(reqs, handler.SearchRequest{
			Corpus:   cfg.Corpus,
			Mode:     pattern.ModeAdvanced,
			Advanced: &forms[i],
			Limit:    cfg.Limit,
		})
	}

	bodies := make([][]byte, 0, len(reqs))
	for _, r := range reqs {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, b)
	}
	return bodies, nil
}

func runLoadTest(cfg Config, bodies [][]byte) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	searchURL := cfg.BaseURL + "/api/v1/search"

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				body := bodies[next%len(bodies)]
				next++

				start := time.Now()
				status, reply, err := search(ctx, client, searchURL, body)
				if ctx.Err() != nil {
					return
				}
				stats.Record(time.Since(start), status, reply, err)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func search(ctx context.Context, client *http.Client, url string, body []byte) (int, *searchReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}
	var reply searchReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, &reply, nil
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if success > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(success)*100)
		fmt.Printf("Avg Matches:     %.1f\n", float64(stats.matches.Load())/float64(success))
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
