package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/phaserun/internal/cancellation"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/gitignore"
	"github.com/vk/phaserun/internal/model"
	"github.com/vk/phaserun/internal/notify"
	"github.com/vk/phaserun/internal/watch"
)

// forbiddenRoots may not change while watch mode runs, relative to the
// build folder.
var forbiddenRoots = []string{"phaserun.hcl", "phaserun.yaml", "phaserun.yml", "config"}

// runWatch rebuilds whenever a source file changes until ctx is done or a
// fatal watch error occurs. Interruption is a clean exit.
func (a *App) runWatch(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	root := a.config.BuildFolder

	w, err := watch.NewFSWatcher(root, watch.FSWatcherOptions{
		IgnoredDirs: append(append([]string(nil), watch.DefaultIgnoredDirs...), model.ToolFolderName),
	})
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer w.Close()

	changed := changes.NewMap()
	classifier, err := watch.NewClassifier(ctx, watch.ClassifierOptions{
		Watcher:        w,
		Oracle:         a.ignoreOracle(ctx),
		Changes:        changed,
		ForbiddenPaths: a.forbiddenPaths(),
	})
	if err != nil {
		return fmt.Errorf("classifying watched files: %w", err)
	}
	defer classifier.Close()
	logger.Info("Watching for changes.", "root", root, "files", len(w.WatchedFiles()))

	if a.config.StatusPort > 0 {
		srv := a.startStatusServer(ctx, a.config.StatusPort, changed)
		defer srv.close(ctx)
	}

	loop := &watch.Loop{
		Changes:      classifier,
		ChangedFiles: changed,
		Out:          a.outW,
		Build: func(ctx context.Context, token *cancellation.Token) error {
			return a.executeOnce(ctx, actionRunWatch, token, changed)
		},
		Waiting: func(ctx context.Context, buildErr error) {
			a.currentNotifier().Emit(ctx, notify.EventWatchIdle, map[string]any{
				"succeeded":       buildErr == nil,
				"pending_changes": changed.Len(),
			})
		},
	}
	err = loop.Run(ctx)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Debug("Watch mode interrupted.")
		return nil
	}
	return err
}

// ignoreOracle asks git when the build folder is a work tree, and otherwise
// treats clean files and the tool folder as ignored.
func (a *App) ignoreOracle(ctx context.Context) watch.Oracle {
	root := a.config.BuildFolder
	if gitignore.IsRepository(ctx, root) {
		ctxlog.FromContext(ctx).Debug("Using git ignore rules.", "root", root)
		return &gitignore.Git{Dir: root}
	}
	prefixes := []string{model.ToolFolderName}
	for _, phase := range a.project.Phases {
		prefixes = append(prefixes, phase.CleanFiles...)
	}
	ctxlog.FromContext(ctx).Debug("Not a git work tree, ignoring clean files.", "prefixes", prefixes)
	return gitignore.NewPrefixes(root, prefixes...)
}

// forbiddenPaths adds the configuration actually in use to forbiddenRoots.
func (a *App) forbiddenPaths() []string {
	paths := append([]string(nil), forbiddenRoots...)
	abs, err := filepath.Abs(a.config.ConfigPath)
	if err != nil {
		return paths
	}
	rel, err := filepath.Rel(a.config.BuildFolder, abs)
	if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		paths = append(paths, rel)
	}
	return paths
}
