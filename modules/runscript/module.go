// Package runscript provides the "run-script" task plugin, which runs a
// shell command in the build folder.
package runscript

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the "run-script" plugin.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlugin("run-script", &Plugin{})
}

// Plugin runs the task's `command` option with `sh -c`. The optional `dir`
// option changes the working directory, relative to the build folder.
type Plugin struct {
	// Shell defaults to "sh".
	Shell string
}

// RequiredOptions implements registry.OptionDescriber.
func (p *Plugin) RequiredOptions() []string {
	return []string{"command"}
}

// Run implements operations.TaskPlugin. The process is killed when the
// build is cancelled.
func (p *Plugin) Run(ctx context.Context, s *operations.TaskSession) error {
	command := s.Option("command", "")
	if command == "" {
		return fmt.Errorf("option 'command' is empty")
	}
	shell := p.Shell
	if shell == "" {
		shell = "sh"
	}

	runCtx, cancel := s.Token.Context(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, shell, "-c", command)
	cmd.Dir = s.Path(s.Option("dir", "."))
	cmd.Env = append(os.Environ(), Env(s)...)
	// Orphaned grandchildren may keep the pipes open after a kill.
	cmd.WaitDelay = 500 * time.Millisecond

	stdout := &lineWriter{emit: func(line string) { s.Logger.Info(line, "stream", "stdout") }}
	stderr := &lineWriter{emit: func(line string) { s.Logger.Info(line, "stream", "stderr") }}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	s.Logger.Debug("Running script.", "command", command, "dir", cmd.Dir)
	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()

	if s.Token.IsCancelled() {
		return context.Canceled
	}
	if err != nil {
		return fmt.Errorf("command %q failed: %w", command, err)
	}
	return nil
}

// Env returns the environment variables describing the invocation.
func Env(s *operations.TaskSession) []string {
	return []string{
		"PHASERUN_TASK=" + s.Task.Key(),
		"PHASERUN_BUILD_FOLDER=" + s.Params.BuildFolder,
		"PHASERUN_PRODUCTION=" + strconv.FormatBool(s.Params.Production),
		"PHASERUN_VERBOSE=" + strconv.FormatBool(s.Params.Verbose),
		"PHASERUN_WATCH=" + strconv.FormatBool(s.Params.Watch),
		"PHASERUN_LOCALES=" + strings.Join(s.Params.Locales, ","),
	}
}

// lineWriter forwards complete lines to emit.
type lineWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	emit func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf.Next(i+1)), "\r\n")
		w.emit(line)
	}
	return len(p), nil
}

// Flush emits a trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}
