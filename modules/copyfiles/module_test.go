package copyfiles

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/phaserun/internal/cancellation"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/logging"
	"github.com/vk/phaserun/internal/model"
	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/testutil"
)

func newSession(root string, m *changes.Map, options map[string]string) *operations.TaskSession {
	loggers := logging.NewManager(slog.New(slog.NewTextHandler(&testutil.SafeBuffer{}, nil)))
	phase := &model.Phase{Name: "assets"}
	return &operations.TaskSession{
		Task:         &model.Task{Name: "copy", Phase: phase, Plugin: "copy-files", Options: options},
		Params:       operations.Parameters{BuildFolder: root},
		Token:        cancellation.NewToken(),
		ChangedFiles: m,
		Logger:       loggers.Scoped("assets.copy"),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestPlugin_FullCopy(t *testing.T) {
	// --- Arrange ---
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"static/index.html":   "<html>",
		"static/img/logo.svg": "<svg>",
		"static/notes.txt":    "skip me",
	})
	s := newSession(root, nil, map[string]string{"source": "static", "destination": "dist", "extensions": ".html,.svg"})

	// --- Act ---
	err := New().Run(context.Background(), s)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "<html>", readFile(t, filepath.Join(root, "dist", "index.html")))
	assert.Equal(t, "<svg>", readFile(t, filepath.Join(root, "dist", "img", "logo.svg")))
	assert.NoFileExists(t, filepath.Join(root, "dist", "notes.txt"))
}

func TestPlugin_IncrementalCopy(t *testing.T) {
	// --- Arrange ---
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"static/a.txt": "a1",
		"static/b.txt": "b1",
		"static/c.txt": "c1",
	})
	m := changes.NewMap()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		m.Set(filepath.Join(root, "static", name), changes.FileState{Version: changes.InitialVersion, IsSourceFile: true})
	}
	options := map[string]string{"source": "static", "destination": "dist"}
	plugin := New()
	require.NoError(t, plugin.Run(context.Background(), newSession(root, m, options)))

	// Change a.txt and b.txt on disk, but only record a.txt as changed, and
	// remove c.txt.
	testutil.WriteFiles(t, root, map[string]string{"static/a.txt": "a2", "static/b.txt": "b2"})
	require.NoError(t, os.Remove(filepath.Join(root, "static", "c.txt")))
	m.Set(filepath.Join(root, "static", "a.txt"), changes.FileState{
		Version:      changes.Fingerprint("a.txt", &changes.Stat{ModTime: time.Now()}),
		IsSourceFile: true,
	})
	m.Set(filepath.Join(root, "static", "c.txt"), changes.FileState{Version: changes.RemovedVersion, IsSourceFile: true})

	// --- Act ---
	err := plugin.Run(context.Background(), newSession(root, m, options))

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "a2", readFile(t, filepath.Join(root, "dist", "a.txt")))
	assert.Equal(t, "b1", readFile(t, filepath.Join(root, "dist", "b.txt")), "unrecorded changes are not copied")
	assert.NoFileExists(t, filepath.Join(root, "dist", "c.txt"))
}

func TestPlugin_Errors(t *testing.T) {
	t.Run("same source and destination", func(t *testing.T) {
		s := newSession(t.TempDir(), nil, map[string]string{"source": "x", "destination": "x"})

		assert.ErrorContains(t, New().Run(context.Background(), s), "source and destination")
	})

	t.Run("cancelled before copying", func(t *testing.T) {
		root := t.TempDir()
		testutil.WriteFiles(t, root, map[string]string{"static/a.txt": "a"})
		s := newSession(root, nil, map[string]string{"source": "static", "destination": "dist"})
		src := cancellation.NewSource()
		src.Cancel()
		s.Token = src.Token()

		assert.ErrorIs(t, New().Run(context.Background(), s), context.Canceled)
		assert.NoFileExists(t, filepath.Join(root, "dist", "a.txt"))
	})
}
