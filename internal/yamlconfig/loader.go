// Package yamlconfig implements config.Loader for phaserun.yaml files.
package yamlconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vk/phaserun/internal/config"
	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Loader reads YAML build configuration.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

type fileRoot struct {
	Phases []phaseDoc `yaml:"phases"`
}

type phaseDoc struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	DependsOn   []string  `yaml:"depends_on,omitempty"`
	CleanFiles  []string  `yaml:"clean_files,omitempty"`
	Tasks       []taskDoc `yaml:"tasks,omitempty"`
}

type taskDoc struct {
	Name      string            `yaml:"name"`
	Plugin    string            `yaml:"plugin"`
	DependsOn []string          `yaml:"depends_on,omitempty"`
	Options   map[string]string `yaml:"options,omitempty"`
}

// Load parses every .yaml and .yml file under paths. Unknown fields are
// rejected.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFiles(paths, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}

	model := &config.Model{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		var root fileRoot
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
		}

		for _, pd := range root.Phases {
			phase := &config.Phase{
				Name:        pd.Name,
				Description: pd.Description,
				DependsOn:   pd.DependsOn,
				CleanFiles:  pd.CleanFiles,
			}
			for _, td := range pd.Tasks {
				options := td.Options
				if options == nil {
					options = make(map[string]string)
				}
				phase.Tasks = append(phase.Tasks, &config.Task{
					Name:      td.Name,
					Plugin:    td.Plugin,
					DependsOn: td.DependsOn,
					Options:   options,
				})
			}
			model.Phases = append(model.Phases, phase)
		}
		model.Sources = append(model.Sources, file)
	}

	logger.Debug("YAML loading complete.", "files", len(model.Sources), "phases", len(model.Phases))
	return model, nil
}
