package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/codemap/internal/discover"
)

const testDebounce = 100 * time.Millisecond

func startWatcher(t *testing.T, root string) (<-chan []string, context.CancelFunc, <-chan error) {
	t.Helper()

	f, err := discover.NewFilter(root, discover.Options{})
	require.NoError(t, err)
	w, err := New(root, f, testDebounce)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	batches := make(chan []string, 10)
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		done <- w.Run(ctx, func(paths []string) { batches <- paths })
	}()
	return batches, cancel, done
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func TestNewInvalidDirectory(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "nonexistent")
	f, err := discover.NewFilter(root, discover.Options{})
	require.NoError(t, err)

	w, err := New(root, f, testDebounce)
	assert.Error(t, err)
	assert.Nil(t, w)
}

func TestRunBatchesChanges(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	batches, _, _ := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.rs"), []byte("fn a() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.swift"), []byte("func b() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.rs"), []byte("fn a2() {}\n"), 0o644))

	got := waitBatch(t, batches)
	assert.Equal(t, []string{"a.rs", "b.swift"}, got)
}

func TestRunIgnoresUnmatchedFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	batches, _, _ := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib.rs"), []byte("fn f() {}\n"), 0o644))

	assert.Equal(t, []string{"lib.rs"}, waitBatch(t, batches))
}

func TestRunWatchesNewDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	batches, _, _ := startWatcher(t, root)

	sub := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(2 * testDebounce)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "main.rs"), []byte("fn main() {}\n"), 0o644))

	assert.Equal(t, []string{"src/main.rs"}, waitBatch(t, batches))
}

func TestRunReportsRemovals(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "gone.rs")
	require.NoError(t, os.WriteFile(path, []byte("fn g() {}\n"), 0o644))
	batches, _, _ := startWatcher(t, root)

	require.NoError(t, os.Remove(path))
	assert.Equal(t, []string{"gone.rs"}, waitBatch(t, batches))
}

func TestRunSkipsIgnoredDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target", "debug"), 0o755))
	batches, _, _ := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "target", "debug", "x.rs"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.rs"), []byte(""), 0o644))

	assert.Equal(t, []string{"keep.rs"}, waitBatch(t, batches))
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, cancel, done := startWatcher(t, root)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
