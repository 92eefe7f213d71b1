package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/ctxlog"
)

// Oracle decides which paths are ignored, such as build outputs.
type Oracle interface {
	// CheckIgnore returns the subset of paths that are ignored.
	CheckIgnore(ctx context.Context, paths []string) (map[string]struct{}, error)
}

// ForbiddenPathError reports a change to a path that may not change while
// watch mode runs, such as the project configuration.
type ForbiddenPathError struct {
	Path string
}

func (e *ForbiddenPathError) Error() string {
	return fmt.Sprintf("Cannot change the file at path %q while running watch mode.", e.Path)
}

// ClassifierOptions configures a Classifier.
type ClassifierOptions struct {
	Watcher Watcher
	Oracle  Oracle
	Changes *changes.Map
	// ForbiddenPaths are relative to the watcher root. A forbidden directory
	// forbids everything below it.
	ForbiddenPaths []string
}

// Classifier turns watcher events into change signals. Every observed event
// updates the change map; Next only returns once a source file changed.
type Classifier struct {
	watcher   Watcher
	oracle    Oracle
	changes   *changes.Map
	forbidden []string

	// Only touched by the goroutine calling Next.
	seen    map[string]struct{}
	sources map[string]struct{}
	initial bool

	mu      sync.Mutex
	pending map[string]*changes.Stat
	wake    chan struct{}

	// applyMu is held while a batch is written to the change map. recent
	// holds what was written since the last MarkConsumed.
	applyMu sync.Mutex
	recent  map[string]changes.FileState

	failOnce sync.Once
	failed   chan struct{}
	err      error

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewClassifier snapshots every file the watcher currently sees with the
// initial version and starts consuming events. The first call to Next
// returns immediately so the first build can run.
func NewClassifier(ctx context.Context, opts ClassifierOptions) (*Classifier, error) {
	root := opts.Watcher.Root()
	forbidden := make([]string, 0, len(opts.ForbiddenPaths))
	for _, p := range opts.ForbiddenPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		forbidden = append(forbidden, filepath.Clean(p))
	}

	c := &Classifier{
		watcher:   opts.Watcher,
		oracle:    opts.Oracle,
		changes:   opts.Changes,
		forbidden: forbidden,
		seen:      make(map[string]struct{}),
		sources:   make(map[string]struct{}),
		initial:   true,
		pending:   make(map[string]*changes.Stat),
		recent:    make(map[string]changes.FileState),
		wake:      make(chan struct{}, 1),
		failed:    make(chan struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	files := opts.Watcher.WatchedFiles()
	if err := c.ingest(ctx, files, true); err != nil {
		return nil, err
	}
	for _, p := range files {
		c.changes.Set(p, changes.FileState{Version: changes.InitialVersion, IsSourceFile: c.isSource(p)})
	}
	ctxlog.FromContext(ctx).Debug("Recorded initial file state.", "files", len(files), "sources", len(c.sources))

	go c.pump()
	return c, nil
}

// Close stops consuming watcher events. It does not close the watcher.
func (c *Classifier) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// MarkConsumed records that a build is about to read every change written
// so far.
func (c *Classifier) MarkConsumed() {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	c.recent = make(map[string]changes.FileState)
}

// ClearConsumed empties the change map except for changes written after
// the last MarkConsumed, which no build has seen yet.
func (c *Classifier) ClearConsumed() {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	c.changes.Clear()
	for p, state := range c.recent {
		c.changes.Set(p, state)
	}
}

// Next blocks until a source file changes, the watcher fails, a forbidden
// path changes, or ctx is done. It must not be called concurrently.
func (c *Classifier) Next(ctx context.Context) error {
	if c.initial {
		c.initial = false
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.failed:
			return c.err
		case <-c.wake:
		}

		changed, err := c.process(ctx, c.takePending())
		if err != nil {
			c.fail(err)
			return err
		}
		if changed {
			return nil
		}
	}
}

func (c *Classifier) pump() {
	defer close(c.done)
	events := c.watcher.Events()
	errs := c.watcher.Errors()
	for {
		select {
		case <-c.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.mu.Lock()
			c.pending[ev.Path] = ev.Stat
			c.mu.Unlock()
			select {
			case c.wake <- struct{}{}:
			default:
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.fail(fmt.Errorf("file watcher: %w", err))
		}
	}
}

func (c *Classifier) fail(err error) {
	c.failOnce.Do(func() {
		c.err = err
		close(c.failed)
	})
}

func (c *Classifier) takePending() map[string]*changes.Stat {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := c.pending
	c.pending = make(map[string]*changes.Stat)
	return batch
}

// process records a batch of events and reports whether any source file
// changed.
func (c *Classifier) process(ctx context.Context, batch map[string]*changes.Stat) (bool, error) {
	if len(batch) == 0 {
		return false, nil
	}
	paths := make([]string, 0, len(batch))
	for p := range batch {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if err := c.ingest(ctx, paths, false); err != nil {
		return false, err
	}

	logger := ctxlog.FromContext(ctx)
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	sourceChanged := false
	for _, p := range paths {
		version := changes.Fingerprint(p, batch[p])
		if prev, ok := c.changes.Get(p); ok && prev.Version == version {
			continue
		}
		state := changes.FileState{Version: version, IsSourceFile: c.isSource(p)}
		c.changes.Set(p, state)
		c.recent[p] = state
		if state.IsSourceFile {
			logger.Debug("Source file changed.", "path", p, "removed", state.IsRemoved())
			sourceChanged = true
		}
	}
	return sourceChanged, nil
}

// ingest classifies paths not seen before, asking the oracle once for the
// whole batch.
func (c *Classifier) ingest(ctx context.Context, paths []string, ignoreForbidden bool) error {
	var candidates []string
	for _, p := range paths {
		if _, ok := c.seen[p]; ok {
			continue
		}
		if c.isForbidden(p) {
			if ignoreForbidden {
				continue
			}
			return &ForbiddenPathError{Path: p}
		}
		c.seen[p] = struct{}{}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil
	}

	ignored, err := c.oracle.CheckIgnore(ctx, candidates)
	if err != nil {
		return fmt.Errorf("checking ignored files: %w", err)
	}
	for _, p := range candidates {
		if _, ok := ignored[p]; !ok {
			c.sources[p] = struct{}{}
		}
	}
	return nil
}

func (c *Classifier) isSource(path string) bool {
	_, ok := c.sources[path]
	return ok
}

func (c *Classifier) isForbidden(path string) bool {
	for _, f := range c.forbidden {
		if path == f || strings.HasPrefix(path, f+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}
