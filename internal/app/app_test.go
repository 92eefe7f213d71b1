package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/metrics"
	"github.com/vk/phaserun/internal/model"
	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/testutil"
)

type failingPlugin struct{}

func (failingPlugin) Run(context.Context, *operations.TaskSession) error {
	return errors.New("boom")
}

func TestApp_RunOnce(t *testing.T) {
	// --- Arrange ---
	root, path := writeProject(t, buildTestProject, nil)
	rec := testutil.NewRecorderPlugin(20 * time.Millisecond)
	params := map[string]string{"watch": "false", "to": ""}
	a, out := setupAppTest(t, Config{ConfigPath: path, MetricsDB: ".phaserun/metrics.db", Parameters: params},
		&pluginModule{name: "record", plugin: rec})

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"build.compile", "test.unit"}, rec.Order())
	testutil.AssertRanBefore(t, rec, "build.compile", "test.unit")
	assert.Contains(t, out.String(), "-------------------- Finished (")
	assert.NotContains(t, out.String(), "Encountered")
	assert.DirExists(t, filepath.Join(root, model.ToolFolderName), "the start hook prepares the tool folder")

	store, err := metrics.OpenSQLite(filepath.Join(root, ".phaserun", "metrics.db"))
	require.NoError(t, err)
	defer store.Close()
	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run", records[0].Action)
	assert.False(t, records[0].EncounteredError)
	assert.Equal(t, params, records[0].Parameters)
}

func TestApp_RunOnceFailure(t *testing.T) {
	// --- Arrange ---
	_, path := writeProject(t, `
phase "build" {
  task "compile" {
    plugin = "fail"
  }
}

phase "test" {
  depends_on = ["build"]

  task "unit" {
    plugin = "record"
  }
}
`, nil)
	rec := testutil.NewRecorderPlugin(0)
	a, out := setupAppTest(t, Config{ConfigPath: path},
		&pluginModule{name: "fail", plugin: failingPlugin{}},
		&pluginModule{name: "record", plugin: rec})

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	assert.ErrorIs(t, err, operations.ErrAlreadyReported)
	assert.Empty(t, rec.Order(), "dependents of a failed task are skipped")
	assert.Contains(t, out.String(), "-------------------- Failed (")
	assert.Contains(t, out.String(), "Encountered 1 error(s)\n  [build.compile] plugin 'fail' failed: boom\n")
}

func TestApp_Plan(t *testing.T) {
	_, path := writeProject(t, buildTestProject, nil)
	a, _ := setupAppTest(t, Config{ConfigPath: path, Only: []string{"test"}},
		&pluginModule{name: "record", plugin: testutil.NewRecorderPlugin(0)})

	var buf bytes.Buffer
	require.NoError(t, a.Plan(context.Background(), &buf))

	assert.Equal(t, strings.Join([]string{
		"lifecycle.start",
		"test (after: lifecycle.start)",
		"test.unit (after: lifecycle.start, test)",
		"lifecycle.finish (after: test, test.unit)",
		"",
	}, "\n"), buf.String())
}

func TestNewApp_Errors(t *testing.T) {
	t.Run("unregistered plugin", func(t *testing.T) {
		_, path := writeProject(t, buildTestProject, nil)
		cfg, err := NewConfig(Config{ConfigPath: path})
		require.NoError(t, err)

		_, err = NewApp(&testutil.SafeBuffer{}, cfg)

		assert.ErrorContains(t, err, "plugin 'record' is not registered")
	})

	t.Run("missing required option", func(t *testing.T) {
		_, path := writeProject(t, `
phase "build" {
  task "script" {
    plugin = "run-script"
  }
}
`, nil)
		cfg, err := NewConfig(Config{ConfigPath: path})
		require.NoError(t, err)

		_, err = NewApp(&testutil.SafeBuffer{}, cfg)

		assert.ErrorContains(t, err, "requires option 'command'")
	})

	t.Run("unknown phase selection", func(t *testing.T) {
		_, path := writeProject(t, buildTestProject, nil)
		cfg, err := NewConfig(Config{ConfigPath: path, To: []string{"deploy"}})
		require.NoError(t, err)

		_, err = NewApp(&testutil.SafeBuffer{}, cfg, &pluginModule{name: "record", plugin: testutil.NewRecorderPlugin(0)})

		assert.ErrorIs(t, err, model.ErrUnknownPhase)
	})
}

func TestApp_YAMLConfig(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(root, "phaserun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
phases:
  - name: build
    tasks:
      - name: compile
        plugin: record
`), 0o644))
	rec := testutil.NewRecorderPlugin(0)
	a, _ := setupAppTest(t, Config{ConfigPath: path}, &pluginModule{name: "record", plugin: rec})

	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, []string{"build.compile"}, rec.Order())
}

func TestApp_StatusRouter(t *testing.T) {
	_, path := writeProject(t, buildTestProject, nil)
	a, _ := setupAppTest(t, Config{ConfigPath: path}, &pluginModule{name: "record", plugin: testutil.NewRecorderPlugin(0)})
	changed := changes.NewMap()
	changed.Set("/proj/a.ts", changes.FileState{Version: "v1", IsSourceFile: true})
	changed.Set("/proj/b.ts", changes.FileState{Version: changes.InitialVersion, IsSourceFile: true})
	a.status.record(&operations.Result{Status: operations.Success, Duration: 1500 * time.Millisecond})
	srv := httptest.NewServer(a.statusRouter(changed))
	defer srv.Close()

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("status", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		var report statusReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Equal(t, statusReport{
			Attempts:       1,
			LastStatus:     operations.Success.String(),
			LastDurationMS: 1500,
			PendingChanges: 1,
		}, report)
	})
}

func TestApp_Watch(t *testing.T) {
	// --- Arrange ---
	root, path := writeProject(t, `
phase "build" {
  task "compile" {
    plugin = "record"
  }
}
`, map[string]string{"src/a.ts": "export const a = 1;"})
	rec := testutil.NewRecorderPlugin(0)
	a, out := setupAppTest(t, Config{ConfigPath: path, Watch: true}, &pluginModule{name: "record", plugin: rec})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// --- Act ---
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Waiting for changes. Press CTRL + C to exit...")
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.ts"), []byte("export const a = 2;"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "-------------------- Finished") == 2
	}, 10*time.Second, 10*time.Millisecond)
	cancel()

	// --- Assert ---
	select {
	case err := <-done:
		assert.NoError(t, err, "interrupting watch mode is a clean exit")
	case <-time.After(10 * time.Second):
		t.Fatal("watch mode did not stop")
	}
	assert.Contains(t, out.String(), "Starting incremental build...")
	assert.Equal(t, []string{"build.compile", "build.compile"}, rec.Order())
}
