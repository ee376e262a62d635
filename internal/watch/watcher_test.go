package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flanksource/code-intel/internal/analysis"
	"github.com/flanksource/code-intel/internal/cache"
	"github.com/flanksource/code-intel/internal/index"
)

func TestNew_RequiresIndexer(t *testing.T) {
	_, err := New(t.TempDir(), nil, 0)
	assert.Error(t, err)
}

func TestWatcher_ReindexesChangedFile(t *testing.T) {
	dir := t.TempDir()

	astCache, err := cache.New(cache.Options{MaxEntries: 10, TTL: time.Hour})
	require.NoError(t, err)
	indexer := index.New(astCache, nil, analysis.NewGoExtractor(), index.Options{Workers: 1})

	watcher, err := New(dir, indexer, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(dir, "new.go")
	require.NoError(t, os.WriteFile(path, []byte("package watched\n"), 0644))

	assert.Eventually(t, func() bool {
		_, ok := astCache.Get([]byte("package watched\n"))
		return ok
	}, 5*time.Second, 50*time.Millisecond, "written file should be indexed")

	// Non-source files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, astCache.Len())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}
