package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/registry"
	"github.com/vk/phaserun/internal/testutil"
)

// pluginModule registers a single plugin under name.
type pluginModule struct {
	name   string
	plugin operations.TaskPlugin
}

func (m *pluginModule) Register(r *registry.Registry) {
	r.RegisterPlugin(m.name, m.plugin)
}

// writeProject creates a build folder holding phaserun.hcl and files, and
// returns the folder and the config path.
func writeProject(t *testing.T, hclSource string, files map[string]string) (string, string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	testutil.WriteFiles(t, root, files)
	path := filepath.Join(root, "phaserun.hcl")
	require.NoError(t, os.WriteFile(path, []byte(hclSource), 0o644))
	return root, path
}

// setupAppTest creates a new app instance for system testing.
func setupAppTest(t *testing.T, cfg Config, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	out := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	appConfig, err := NewConfig(cfg)
	require.NoError(t, err)
	a, err := NewApp(out, appConfig, modules...)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("PHASERUN_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), out.String())
		}
	})
	return a, out
}

const buildTestProject = `
phase "build" {
  task "compile" {
    plugin = "record"
  }
}

phase "test" {
  depends_on = ["build"]

  task "unit" {
    plugin = "record"
  }
}
`
