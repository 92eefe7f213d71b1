package runscript

import (
	"context"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/phaserun/internal/cancellation"
	"github.com/vk/phaserun/internal/logging"
	"github.com/vk/phaserun/internal/model"
	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/testutil"
)

func newSession(t *testing.T, token *cancellation.Token, command string) (*operations.TaskSession, *testutil.SafeBuffer) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
	buf := &testutil.SafeBuffer{}
	loggers := logging.NewManager(slog.New(slog.NewTextHandler(buf, nil)))
	phase := &model.Phase{Name: "build"}
	return &operations.TaskSession{
		Task:   &model.Task{Name: "script", Phase: phase, Plugin: "run-script", Options: map[string]string{"command": command}},
		Params: operations.Parameters{BuildFolder: t.TempDir(), Production: true, Locales: []string{"en", "de"}},
		Token:  token,
		Logger: loggers.Scoped("build.script"),
	}, buf
}

func TestPlugin_Run(t *testing.T) {
	t.Run("forwards output lines", func(t *testing.T) {
		s, logs := newSession(t, cancellation.NewToken(), "echo hello; echo oops 1>&2; printf tail")

		err := (&Plugin{}).Run(context.Background(), s)

		require.NoError(t, err)
		out := logs.String()
		assert.Contains(t, out, "msg=hello")
		assert.Contains(t, out, "msg=oops scope=build.script stream=stderr")
		assert.Contains(t, out, "msg=tail")
	})

	t.Run("exposes invocation parameters", func(t *testing.T) {
		s, logs := newSession(t, cancellation.NewToken(), `echo "$PHASERUN_TASK/$PHASERUN_PRODUCTION/$PHASERUN_LOCALES"`)

		require.NoError(t, (&Plugin{}).Run(context.Background(), s))

		assert.Contains(t, logs.String(), "build.script/true/en,de")
	})

	t.Run("non-zero exit fails", func(t *testing.T) {
		s, _ := newSession(t, cancellation.NewToken(), "exit 3")

		err := (&Plugin{}).Run(context.Background(), s)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "exit status 3")
	})

	t.Run("cancellation kills the process", func(t *testing.T) {
		src := cancellation.NewSource()
		s, _ := newSession(t, src.Token(), "sleep 10")
		time.AfterFunc(100*time.Millisecond, src.Cancel)

		start := time.Now()
		err := (&Plugin{}).Run(context.Background(), s)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestPlugin_RequiredOptions(t *testing.T) {
	assert.Equal(t, []string{"command"}, (&Plugin{}).RequiredOptions())
}
