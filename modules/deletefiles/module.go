// Package deletefiles provides the "delete-files" task plugin.
package deletefiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the "delete-files" plugin.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlugin("delete-files", &Plugin{})
}

// Plugin removes the comma-separated `paths`, relative to the build folder.
// Missing paths are not an error.
type Plugin struct{}

// RequiredOptions implements registry.OptionDescriber.
func (p *Plugin) RequiredOptions() []string {
	return []string{"paths"}
}

// Run implements operations.TaskPlugin.
func (p *Plugin) Run(ctx context.Context, s *operations.TaskSession) error {
	for _, rel := range s.OptionList("paths") {
		if s.Token.IsCancelled() {
			return context.Canceled
		}
		path := s.Path(rel)
		if err := checkInside(s.Params.BuildFolder, path); err != nil {
			return err
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("deleting %s: %w", path, err)
		}
		s.Logger.Debug("Deleted path.", "path", path)
	}
	return nil
}

func checkInside(root, path string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete %s: not inside the build folder", path)
	}
	return nil
}
