package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/pattern"
	"github.com/panjf2000/ants/v2"
)

// ShardedExecutor splits large corpora into contiguous shards and matches
// them in parallel on a worker pool. Shard results are concatenated in shard
// order, so the output is identical to Executor's.
type ShardedExecutor struct {
	pool      *ants.Pool
	shardSize int
	logger    *slog.Logger
}

// NewSharded creates a ShardedExecutor with the given number of workers.
// Corpora of at most shardSize sentences are scanned inline.
func NewSharded(workers, shardSize int) (*ShardedExecutor, error) {
	if workers < 1 {
		workers = 1
	}
	if shardSize < 1 {
		shardSize = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	return &ShardedExecutor{
		pool:      pool,
		shardSize: shardSize,
		logger:    slog.Default().With("component", "sharded-executor"),
	}, nil
}

// Execute validates q and returns every matching sentence in corpus order.
func (se *ShardedExecutor) Execute(ctx context.Context, c *corpus.Corpus, q pattern.Query) (*MatchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if c.Len() <= se.shardSize {
		indices, err := scan(ctx, c, q, 0, c.Len())
		if err != nil {
			return nil, err
		}
		return buildResult(c, q, indices), nil
	}

	indices, err := se.fanOut(ctx, c, q)
	if err != nil {
		return nil, err
	}
	result := buildResult(c, q, indices)
	se.logger.Debug("sharded query executed",
		"corpus", c.Key,
		"mode", q.Mode(),
		"shards", (c.Len()+se.shardSize-1)/se.shardSize,
		"matches", result.Total,
	)
	return result, nil
}

func (se *ShardedExecutor) fanOut(ctx context.Context, c *corpus.Corpus, q pattern.Query) ([]int, error) {
	type shardResult struct {
		indices []int
		err     error
	}
	numShards := (c.Len() + se.shardSize - 1) / se.shardSize
	results := make([]shardResult, numShards)
	var wg sync.WaitGroup
	for shard := 0; shard < numShards; shard++ {
		from := shard * se.shardSize
		to := min(from+se.shardSize, c.Len())
		task := func() {
			defer wg.Done()
			indices, err := scan(ctx, c, q, from, to)
			results[shard] = shardResult{indices: indices, err: err}
		}
		wg.Add(1)
		if err := se.pool.Submit(task); err != nil {
			if !errors.Is(err, ants.ErrPoolOverload) && !errors.Is(err, ants.ErrPoolClosed) {
				wg.Done()
				return nil, fmt.Errorf("submitting shard %d: %w", shard, err)
			}
			task()
		}
	}
	wg.Wait()

	total := 0
	for shard, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("shard %d: %w", shard, r.err)
		}
		total += len(r.indices)
	}
	merged := make([]int, 0, total)
	for _, r := range results {
		merged = append(merged, r.indices...)
	}
	return merged, nil
}

// Running reports the number of busy workers.
func (se *ShardedExecutor) Running() int {
	return se.pool.Running()
}

// Close releases the worker pool.
func (se *ShardedExecutor) Close() {
	se.pool.Release()
}
