package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	corpora map[string][]string
	calls   map[string]int
	gate    chan struct{}
	gates   map[string]chan struct{}
	err     error
	started atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		corpora: map[string][]string{
			"a-1-0": {"the cat sat", "a dog ran fast"},
			"b-1-0": {"cat"},
		},
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, key string) ([]string, error) {
	f.started.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	gate := f.gates[key]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.err != nil {
		return nil, f.err
	}
	raws, ok := f.corpora[key]
	if !ok {
		return nil, fmt.Errorf("corpus %s: %w", key, apperrors.ErrCorpusNotFound)
	}
	return raws, nil
}

func (f *fakeFetcher) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func TestGetOrLoadCachesByKey(t *testing.T) {
	f := newFakeFetcher()
	c := New(f)
	ctx := context.Background()

	first, hit, err := c.GetOrLoad(ctx, "a-1-0")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, first.Len())

	second, hit, err := c.GetOrLoad(ctx, "a-1-0")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, first, second)
	assert.Equal(t, 1, f.callCount("a-1-0"))

	key, ok := c.Current()
	assert.True(t, ok)
	assert.Equal(t, "a-1-0", key)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Loads: 1}, c.Stats())
}

func TestSwitchingKeyReplacesCorpus(t *testing.T) {
	f := newFakeFetcher()
	c := New(f)
	ctx := context.Background()

	_, _, err := c.GetOrLoad(ctx, "a-1-0")
	require.NoError(t, err)
	other, hit, err := c.GetOrLoad(ctx, "b-1-0")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "b-1-0", other.Key)
	assert.Equal(t, []string{"cat"}, []string{other.Sentences[0].Raw})

	key, _ := c.Current()
	assert.Equal(t, "b-1-0", key)

	_, hit, err = c.GetOrLoad(ctx, "a-1-0")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, f.callCount("a-1-0"))
}

func TestFailedFetchLeavesCacheEmpty(t *testing.T) {
	f := newFakeFetcher()
	c := New(f)
	ctx := context.Background()

	_, _, err := c.GetOrLoad(ctx, "a-1-0")
	require.NoError(t, err)

	_, _, err = c.GetOrLoad(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrCorpusNotFound)
	_, ok := c.Current()
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Failures)
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	c := New(f)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = c.GetOrLoad(context.Background(), "a-1-0")
		}()
	}
	require.Eventually(t, func() bool { return f.started.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, c.Loading())
	time.Sleep(10 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.callCount("a-1-0"))
	assert.False(t, c.Loading())
}

func TestWaiterCancellationDoesNotAbortFetch(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	c := New(f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrLoad(ctx, "a-1-0")
		done <- err
	}()
	require.Eventually(t, func() bool { return f.started.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(f.gate)
	require.Eventually(t, func() bool {
		_, ok := c.Current()
		return ok
	}, time.Second, time.Millisecond)
}

func TestInvalidateDuringFetchDoesNotRepopulate(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	c := New(f)

	done := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrLoad(context.Background(), "a-1-0")
		done <- err
	}()
	require.Eventually(t, func() bool { return f.started.Load() == 1 }, time.Second, time.Millisecond)
	c.Invalidate()
	close(f.gate)
	require.NoError(t, <-done)

	_, ok := c.Current()
	assert.False(t, ok)
}

func TestInvalidateKeyDuringFetchDoesNotRepopulate(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	c := New(f)

	done := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrLoad(context.Background(), "a-1-0")
		done <- err
	}()
	require.Eventually(t, func() bool { return f.started.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, c.InvalidateKey("b-1-0"))
	assert.True(t, c.InvalidateKey("a-1-0"))
	close(f.gate)
	require.NoError(t, <-done)

	_, ok := c.Current()
	assert.False(t, ok)

	_, hit, err := c.GetOrLoad(context.Background(), "a-1-0")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, f.callCount("a-1-0"))
}

func TestOverlappingSwitchCachesLastRequested(t *testing.T) {
	tests := []struct {
		name        string
		finishFirst string
	}{
		{"earlier fetch finishes first", "a-1-0"},
		{"later fetch finishes first", "b-1-0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			f.gates = map[string]chan struct{}{
				"a-1-0": make(chan struct{}),
				"b-1-0": make(chan struct{}),
			}
			c := New(f)

			done := map[string]chan error{
				"a-1-0": make(chan error, 1),
				"b-1-0": make(chan error, 1),
			}
			start := func(key string) {
				go func() {
					_, _, err := c.GetOrLoad(context.Background(), key)
					done[key] <- err
				}()
			}
			start("a-1-0")
			require.Eventually(t, func() bool { return f.started.Load() == 1 }, time.Second, time.Millisecond)
			start("b-1-0")
			require.Eventually(t, func() bool { return f.started.Load() == 2 }, time.Second, time.Millisecond)

			finishLast := "b-1-0"
			if tt.finishFirst == "b-1-0" {
				finishLast = "a-1-0"
			}
			close(f.gates[tt.finishFirst])
			require.NoError(t, <-done[tt.finishFirst])
			close(f.gates[finishLast])
			require.NoError(t, <-done[finishLast])

			key, ok := c.Current()
			assert.True(t, ok)
			assert.Equal(t, "b-1-0", key)
			_, hit, err := c.GetOrLoad(context.Background(), "b-1-0")
			require.NoError(t, err)
			assert.True(t, hit)
		})
	}
}

func TestInvalidateKey(t *testing.T) {
	c := New(newFakeFetcher())
	_, _, err := c.GetOrLoad(context.Background(), "a-1-0")
	require.NoError(t, err)

	assert.False(t, c.InvalidateKey("b-1-0"))
	assert.True(t, c.InvalidateKey("a-1-0"))
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestLoadForcesRefetch(t *testing.T) {
	f := newFakeFetcher()
	c := New(f)
	ctx := context.Background()

	_, _, err := c.GetOrLoad(ctx, "a-1-0")
	require.NoError(t, err)
	f.mu.Lock()
	f.corpora["a-1-0"] = []string{"updated"}
	f.mu.Unlock()

	reloaded, err := c.Load(ctx, "a-1-0")
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	assert.Equal(t, 2, f.callCount("a-1-0"))

	cached, hit, err := c.GetOrLoad(ctx, "a-1-0")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, reloaded, cached)
}

func TestFailedReloadEmptiesCache(t *testing.T) {
	f := newFakeFetcher()
	c := New(f)
	ctx := context.Background()

	_, _, err := c.GetOrLoad(ctx, "a-1-0")
	require.NoError(t, err)
	f.mu.Lock()
	f.err = errors.New("boom")
	f.mu.Unlock()

	_, err = c.Load(ctx, "a-1-0")
	assert.ErrorContains(t, err, "boom")
	_, ok := c.Current()
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Failures)
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(newFakeFetcher(), WithMetrics(m))
	ctx := context.Background()

	_, _, _ = c.GetOrLoad(ctx, "a-1-0")
	_, _, _ = c.GetOrLoad(ctx, "a-1-0")
	_, _, err := c.GetOrLoad(ctx, "nope")
	assert.True(t, errors.Is(err, apperrors.ErrCorpusNotFound))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("corpus")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("corpus")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorpusLoadsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorpusLoadsTotal.WithLabelValues("error")))
}
