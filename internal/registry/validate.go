package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/model"
)

// ValidateProject checks that every task names a registered plugin and
// provides the options that plugin requires.
func (r *Registry) ValidateProject(ctx context.Context, project *model.Project) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, phase := range project.Phases {
		for _, task := range phase.Tasks {
			plugin, ok := r.plugins[task.Plugin]
			if !ok {
				errs = append(errs, fmt.Sprintf("task '%s': plugin '%s' is not registered (available: %s)", task.Key(), task.Plugin, strings.Join(r.PluginNames(), ", ")))
				continue
			}
			describer, ok := plugin.(OptionDescriber)
			if !ok {
				continue
			}
			for _, opt := range describer.RequiredOptions() {
				if task.Options[opt] == "" {
					errs = append(errs, fmt.Sprintf("task '%s': plugin '%s' requires option '%s'", task.Key(), task.Plugin, opt))
				}
			}
		}
	}

	if len(errs) > 0 {
		return errors.New("registry validation failed:\n" + strings.Join(errs, "\n"))
	}
	logger.Debug("Registry validation passed.", "plugins", len(r.plugins))
	return nil
}
