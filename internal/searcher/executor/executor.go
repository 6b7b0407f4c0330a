package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/pattern"
)

// ctxCheckInterval is how many sentences are scanned between context checks.
const ctxCheckInterval = 4096

// MatchResult lists the matching sentences in corpus order. Indices[i] is the
// corpus position of Sentences[i]; identical sentences at different
// positions appear once each.
type MatchResult struct {
	CorpusKey string       `json:"corpus"`
	Mode      pattern.Mode `json:"mode"`
	Total     int          `json:"total_matches"`
	Indices   []int        `json:"indices"`
	Sentences []string     `json:"sentences"`
}

// Truncate returns a copy holding at most limit matches. Total is kept.
func (r *MatchResult) Truncate(limit int) *MatchResult {
	if limit <= 0 || limit >= len(r.Indices) {
		return r
	}
	out := *r
	out.Indices = r.Indices[:limit:limit]
	out.Sentences = r.Sentences[:limit:limit]
	return &out
}

// Executor scans a corpus sequentially.
type Executor struct {
	logger *slog.Logger
}

func New() *Executor {
	return &Executor{
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute validates q, then returns every sentence of c that matches it.
func (e *Executor) Execute(ctx context.Context, c *corpus.Corpus, q pattern.Query) (*MatchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	indices, err := scan(ctx, c, q, 0, c.Len())
	if err != nil {
		return nil, err
	}
	result := buildResult(c, q, indices)
	e.logger.Debug("query executed",
		"corpus", c.Key,
		"mode", q.Mode(),
		"sentences", c.Len(),
		"matches", result.Total,
	)
	return result, nil
}

// scan returns the matching positions in [from, to).
func scan(ctx context.Context, c *corpus.Corpus, q pattern.Query, from, to int) ([]int, error) {
	indices := make([]int, 0)
	for i := from; i < to; i++ {
		if (i-from)%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, fmt.Errorf("scanning corpus %s: %w", c.Key, ctx.Err())
		}
		if matcher.Matches(c.Sentences[i], q) {
			indices = append(indices, i)
		}
	}
	return indices, nil
}

func buildResult(c *corpus.Corpus, q pattern.Query, indices []int) *MatchResult {
	sentences := make([]string, len(indices))
	for i, idx := range indices {
		sentences[i] = c.Sentences[idx].Raw
	}
	return &MatchResult{
		CorpusKey: c.Key,
		Mode:      q.Mode(),
		Total:     len(indices),
		Indices:   indices,
		Sentences: sentences,
	}
}
