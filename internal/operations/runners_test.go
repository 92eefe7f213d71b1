package operations

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/phaserun/internal/cancellation"
	"github.com/vk/phaserun/internal/logging"
	"github.com/vk/phaserun/internal/model"
)

type pluginFunc func(ctx context.Context, s *TaskSession) error

func (f pluginFunc) Run(ctx context.Context, s *TaskSession) error { return f(ctx, s) }

func newRunContext(token *cancellation.Token) (*RunContext, *logging.Manager) {
	loggers := logging.NewManager(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	return &RunContext{Token: token, Sink: loggers.Scoped("test")}, loggers
}

func TestLifecycleRunner(t *testing.T) {
	t.Run("runs hooks in order", func(t *testing.T) {
		var calls []int
		r := &LifecycleRunner{Stage: LifecycleStart, Hooks: []LifecycleHook{
			func(context.Context, *RunContext) error { calls = append(calls, 1); return nil },
			func(context.Context, *RunContext) error { calls = append(calls, 2); return nil },
		}}
		rc, _ := newRunContext(cancellation.NewToken())

		assert.Equal(t, "lifecycle.start", r.Name())
		assert.Equal(t, Success, r.Execute(context.Background(), rc))
		assert.Equal(t, []int{1, 2}, calls)
	})

	t.Run("hook error fails", func(t *testing.T) {
		r := &LifecycleRunner{Stage: LifecycleFinish, Hooks: []LifecycleHook{
			func(context.Context, *RunContext) error { return errors.New("disk full") },
		}}
		rc, loggers := newRunContext(cancellation.NewToken())

		assert.Equal(t, Failure, r.Execute(context.Background(), rc))
		require.Len(t, loggers.Errors(), 1)
		assert.Contains(t, loggers.Errors()[0], "disk full")
	})
}

func TestPhaseRunner(t *testing.T) {
	setup := func(t *testing.T) (string, *model.Phase) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "out.js"), []byte("x"), 0o644))
		cache := model.CacheFolder(dir, "build")
		require.NoError(t, os.MkdirAll(cache, 0o755))
		return dir, &model.Phase{Name: "build", CleanFiles: []string{"lib"}}
	}

	t.Run("no clean leaves outputs", func(t *testing.T) {
		dir, phase := setup(t)
		r := &PhaseRunner{Phase: phase, Params: Parameters{BuildFolder: dir}}
		rc, _ := newRunContext(cancellation.NewToken())

		assert.Equal(t, Success, r.Execute(context.Background(), rc))
		assert.FileExists(t, filepath.Join(dir, "lib", "out.js"))
	})

	t.Run("clean removes outputs but keeps cache", func(t *testing.T) {
		dir, phase := setup(t)
		r := &PhaseRunner{Phase: phase, Params: Parameters{BuildFolder: dir, Clean: true}}
		rc, _ := newRunContext(cancellation.NewToken())

		assert.Equal(t, Success, r.Execute(context.Background(), rc))
		assert.NoDirExists(t, filepath.Join(dir, "lib"))
		assert.DirExists(t, model.CacheFolder(dir, "build"))
	})

	t.Run("clean cache removes the cache folder", func(t *testing.T) {
		dir, phase := setup(t)
		r := &PhaseRunner{Phase: phase, Params: Parameters{BuildFolder: dir, Clean: true, CleanCache: true}}
		rc, _ := newRunContext(cancellation.NewToken())

		assert.Equal(t, Success, r.Execute(context.Background(), rc))
		assert.NoDirExists(t, model.CacheFolder(dir, "build"))
	})
}

func TestTaskRunner(t *testing.T) {
	phase := &model.Phase{Name: "build"}
	task := &model.Task{Name: "compile", Phase: phase, Plugin: "fake", Options: map[string]string{"mode": "fast"}}

	t.Run("success passes the session", func(t *testing.T) {
		var got *TaskSession
		r := &TaskRunner{Task: task, Plugin: pluginFunc(func(_ context.Context, s *TaskSession) error {
			got = s
			return nil
		})}
		rc, _ := newRunContext(cancellation.NewToken())

		assert.Equal(t, "build.compile", r.Name())
		assert.Equal(t, Success, r.Execute(context.Background(), rc))
		require.NotNil(t, got)
		assert.Equal(t, "fast", got.Option("mode", "slow"))
		assert.Equal(t, "default", got.Option("missing", "default"))
	})

	t.Run("plugin error fails", func(t *testing.T) {
		r := &TaskRunner{Task: task, Plugin: pluginFunc(func(context.Context, *TaskSession) error {
			return errors.New("compile error")
		})}
		rc, loggers := newRunContext(cancellation.NewToken())

		assert.Equal(t, Failure, r.Execute(context.Background(), rc))
		assert.Len(t, loggers.Errors(), 1)
	})

	t.Run("emitted error fails", func(t *testing.T) {
		r := &TaskRunner{Task: task, Plugin: pluginFunc(func(_ context.Context, s *TaskSession) error {
			s.Logger.EmitError(errors.New("type error"))
			return nil
		})}
		rc, _ := newRunContext(cancellation.NewToken())

		assert.Equal(t, Failure, r.Execute(context.Background(), rc))
	})

	t.Run("cancelled token skips the plugin", func(t *testing.T) {
		src := cancellation.NewSource()
		src.Cancel()
		called := false
		r := &TaskRunner{Task: task, Plugin: pluginFunc(func(context.Context, *TaskSession) error {
			called = true
			return nil
		})}
		rc, _ := newRunContext(src.Token())

		assert.Equal(t, Cancelled, r.Execute(context.Background(), rc))
		assert.False(t, called)
	})

	t.Run("cancellation during run", func(t *testing.T) {
		src := cancellation.NewSource()
		r := &TaskRunner{Task: task, Plugin: pluginFunc(func(ctx context.Context, s *TaskSession) error {
			src.Cancel()
			return context.Canceled
		})}
		rc, loggers := newRunContext(src.Token())

		assert.Equal(t, Cancelled, r.Execute(context.Background(), rc))
		assert.Empty(t, loggers.Errors())
	})
}

func TestTaskSession_Helpers(t *testing.T) {
	phase := &model.Phase{Name: "build"}
	s := &TaskSession{
		Task:   &model.Task{Name: "copy", Phase: phase, Options: map[string]string{"extensions": " .ts, ,.tsx ,"}},
		Params: Parameters{BuildFolder: filepath.FromSlash("/work/app")},
	}

	assert.Equal(t, []string{".ts", ".tsx"}, s.OptionList("extensions"))
	assert.Nil(t, s.OptionList("missing"))
	assert.Equal(t, filepath.FromSlash("/work/app/src"), s.Path("src"))
	assert.Equal(t, filepath.FromSlash("/abs/out"), s.Path(filepath.FromSlash("/abs/out")))
}
