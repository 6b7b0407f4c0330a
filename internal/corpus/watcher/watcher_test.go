package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsChangedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1-2-3.txt")
	require.NoError(t, os.WriteFile(path, []byte("the cat sat\n"), 0o644))

	changed := make(chan string, 16)
	w, err := New(dir, func(key string) { changed <- key })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte("a dog ran\n"), 0o644))
	select {
	case key := <-changed:
		assert.Equal(t, "1-2-3.txt", key)
	case <-time.After(2 * time.Second):
		t.Fatal("no change event received")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestNewFailsForMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), func(string) {})
	assert.Error(t, err)
}
