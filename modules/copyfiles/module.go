// Package copyfiles provides the "copy-files" task plugin.
//
// The first run of a task copies every matching file from `source` to
// `destination`. In watch mode later runs only copy the files recorded as
// changed since the startup snapshot, and delete the copies of removed files.
package copyfiles

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vk/phaserun/internal/fsutil"
	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the "copy-files" plugin.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlugin("copy-files", New())
}

// Plugin copies files, remembering which tasks already completed a full
// copy.
type Plugin struct {
	mu     sync.Mutex
	primed map[string]bool
}

// New creates a copy-files plugin.
func New() *Plugin {
	return &Plugin{primed: make(map[string]bool)}
}

// RequiredOptions implements registry.OptionDescriber.
func (p *Plugin) RequiredOptions() []string {
	return []string{"source", "destination"}
}

// Run implements operations.TaskPlugin.
func (p *Plugin) Run(ctx context.Context, s *operations.TaskSession) error {
	src := s.Path(s.Option("source", ""))
	dst := s.Path(s.Option("destination", ""))
	if src == dst {
		return fmt.Errorf("source and destination are both %s", src)
	}
	c := &copier{src: src, dst: dst, extensions: s.OptionList("extensions"), session: s}

	key := s.Task.Key()
	p.mu.Lock()
	primed := p.primed[key]
	p.mu.Unlock()

	var err error
	if primed && s.ChangedFiles != nil {
		err = c.incremental()
	} else {
		err = c.full()
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.primed[key] = true
	p.mu.Unlock()
	return nil
}

type copier struct {
	src, dst   string
	extensions []string
	session    *operations.TaskSession
	copied     int
	removed    int
}

func (c *copier) full() error {
	var files []string
	var err error
	if len(c.extensions) > 0 {
		files, err = fsutil.FindFiles([]string{c.src}, c.extensions...)
	} else {
		err = fsutil.Walk(c.src, nil, func(path string, d fs.DirEntry) error {
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
	}
	if err != nil {
		return fmt.Errorf("listing %s: %w", c.src, err)
	}

	for _, f := range files {
		if c.session.Token.IsCancelled() {
			return context.Canceled
		}
		if err := c.copy(f); err != nil {
			return err
		}
	}
	c.session.Logger.Info("Copied files.", "count", c.copied, "from", c.src, "to", c.dst)
	return nil
}

func (c *copier) incremental() error {
	for _, path := range c.session.ChangedFiles.Changed() {
		if c.session.Token.IsCancelled() {
			return context.Canceled
		}
		if !c.matches(path) {
			continue
		}
		state, _ := c.session.ChangedFiles.Get(path)
		if state.IsRemoved() {
			if err := c.remove(path); err != nil {
				return err
			}
			continue
		}
		if err := c.copy(path); err != nil {
			return err
		}
	}
	c.session.Logger.Info("Copied changed files.", "copied", c.copied, "removed", c.removed)
	return nil
}

func (c *copier) matches(path string) bool {
	if !strings.HasPrefix(path, c.src+string(os.PathSeparator)) {
		return false
	}
	if len(c.extensions) == 0 {
		return true
	}
	for _, ext := range c.extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func (c *copier) target(path string) (string, error) {
	rel, err := filepath.Rel(c.src, path)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.dst, rel), nil
}

func (c *copier) copy(path string) error {
	target, err := c.target(path)
	if err != nil {
		return err
	}
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	c.session.Logger.Debug("Copied file.", "from", path, "to", target)
	c.copied++
	return nil
}

func (c *copier) remove(path string) error {
	target, err := c.target(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", target, err)
	}
	c.session.Logger.Debug("Removed copy.", "path", target)
	c.removed++
	return nil
}
