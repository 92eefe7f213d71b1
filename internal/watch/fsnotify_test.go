package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/phaserun/internal/testutil"
)

func nextEvent(t *testing.T, w *FSWatcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case err := <-w.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a watcher event")
	}
	return Event{}
}

func TestFSWatcher(t *testing.T) {
	// --- Arrange ---
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	testutil.WriteFiles(t, root, map[string]string{
		"src/a.ts":            "export const a = 1;",
		"node_modules/x/i.js": "module.exports = {};",
		".git/HEAD":           "ref: refs/heads/main",
	})

	w, err := NewFSWatcher(root, FSWatcherOptions{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	assert.Equal(t, []string{filepath.Join(root, "src", "a.ts")}, w.WatchedFiles())

	t.Run("change", func(t *testing.T) {
		path := filepath.Join(root, "src", "a.ts")
		require.NoError(t, os.WriteFile(path, []byte("export const a = 2;"), 0o644))

		ev := nextEvent(t, w)
		assert.Equal(t, EventChange, ev.Kind)
		assert.Equal(t, path, ev.Path)
		require.NotNil(t, ev.Stat)
		assert.EqualValues(t, len("export const a = 2;"), ev.Stat.Size)
	})

	t.Run("add in new directory", func(t *testing.T) {
		dir := filepath.Join(root, "src", "lib")
		require.NoError(t, os.Mkdir(dir, 0o755))
		// Give the watcher a moment to register the new directory.
		time.Sleep(50 * time.Millisecond)
		path := filepath.Join(dir, "b.ts")
		require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))

		ev := nextEvent(t, w)
		assert.Equal(t, EventAdd, ev.Kind)
		assert.Equal(t, path, ev.Path)
		assert.Contains(t, w.WatchedFiles(), path)
	})

	t.Run("remove", func(t *testing.T) {
		path := filepath.Join(root, "src", "a.ts")
		require.NoError(t, os.Remove(path))

		ev := nextEvent(t, w)
		assert.Equal(t, EventRemove, ev.Kind)
		assert.Equal(t, path, ev.Path)
		assert.Nil(t, ev.Stat)
		assert.NotContains(t, w.WatchedFiles(), path)
	})

	t.Run("ignored directories are silent", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x", "i.js"), []byte("changed"), 0o644))

		select {
		case ev := <-w.Events():
			t.Fatalf("unexpected event %s %s", ev.Kind, ev.Path)
		case <-time.After(150 * time.Millisecond):
		}
	})
}

func TestFSWatcher_CoalescesRapidWrites(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	testutil.WriteFiles(t, root, map[string]string{"a.ts": "0"})
	w, err := NewFSWatcher(root, FSWatcherOptions{Debounce: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	path := filepath.Join(root, "a.ts")
	for i := 1; i <= 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('0' + i)}, 0o644))
	}

	ev := nextEvent(t, w)
	assert.Equal(t, EventChange, ev.Kind)
	select {
	case extra := <-w.Events():
		t.Fatalf("expected a single coalesced event, got another %s", extra.Kind)
	case <-time.After(300 * time.Millisecond):
	}
}
