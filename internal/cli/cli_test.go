package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/registry"
	"github.com/vk/phaserun/internal/testutil"
)

type recordModule struct {
	plugin *testutil.RecorderPlugin
}

func (m *recordModule) Register(r *registry.Registry) {
	r.RegisterPlugin("record", m.plugin)
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"phaserun.hcl": `
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
`})
	return filepath.Join(dir, "phaserun.hcl")
}

func TestExecute_UsageErrors(t *testing.T) {
	path := writeConfig(t)

	testCases := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"run", "--bogus"}},
		{name: "invalid log level", args: []string{"--log-level", "loud", "run", "-c", path}},
		{name: "invalid log format", args: []string{"--log-format", "xml", "run", "-c", path}},
		{name: "clean in watch mode", args: []string{"run", "-c", path, "--watch", "--clean"}},
		{name: "too many arguments", args: []string{"run", path, path}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &testutil.SafeBuffer{}

			err := Execute(context.Background(), tc.args, Options{Out: out})

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, ExitUsage, exitErr.Code)
			assert.Equal(t, ExitUsage, ExitCode(err))
		})
	}
}

func TestExecute_Run(t *testing.T) {
	// --- Arrange ---
	path := writeConfig(t)
	rec := testutil.NewRecorderPlugin(0)
	out := &testutil.SafeBuffer{}

	// --- Act ---
	err := Execute(context.Background(), []string{"run", path, "--to", "build", "--metrics-db", ""},
		Options{Out: out, Modules: []registry.Module{&recordModule{plugin: rec}}})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"build.compile"}, rec.Order())
	assert.Contains(t, out.String(), "Finished")
}

func TestExecute_Plan(t *testing.T) {
	path := writeConfig(t)
	out := &testutil.SafeBuffer{}

	err := Execute(context.Background(), []string{"--log-level", "error", "plan", "-c", path, "--only", "build"},
		Options{Out: out, Modules: []registry.Module{&recordModule{plugin: testutil.NewRecorderPlugin(0)}}})

	require.NoError(t, err)
	assert.Equal(t, "lifecycle.start\n"+
		"build (after: lifecycle.start)\n"+
		"build.compile (after: build, lifecycle.start)\n"+
		"lifecycle.finish (after: build, build.compile)\n", out.String())
}

func TestExecute_StartupFailure(t *testing.T) {
	out := &testutil.SafeBuffer{}

	err := Execute(context.Background(), []string{"run", "-c", filepath.Join(t.TempDir(), "phaserun.hcl")}, Options{Out: out})

	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")
	path := writeConfig(t)

	err := Execute(context.Background(), []string{"plan", "-c", path}, Options{Out: &testutil.SafeBuffer{}})

	assert.Equal(t, ExitUsage, ExitCode(err), "PHASERUN_LOG_LEVEL provides the flag default")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{".env": "PHASERUN_TEST_DOTENV=from-file\nPHASERUN_TEST_KEEP=from-file\n"})
	t.Setenv("PHASERUN_TEST_KEEP", "from-shell")
	t.Cleanup(func() { os.Unsetenv("PHASERUN_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, ".env")))

	assert.Equal(t, "from-file", os.Getenv("PHASERUN_TEST_DOTENV"))
	assert.Equal(t, "from-shell", os.Getenv("PHASERUN_TEST_KEEP"))
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitFailure, ExitCode(operations.ErrAlreadyReported))
	assert.True(t, IsReported(operations.ErrAlreadyReported))
	assert.Equal(t, ExitUsage, ExitCode(&ExitError{Code: ExitUsage, Message: "bad"}))
}
