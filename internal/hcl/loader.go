package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/phaserun/internal/config"
	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	// Environ overrides os.Environ for the `env` variable.
	Environ func() []string
}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{Environ: os.Environ}
}

// fileRoot decodes all top-level blocks of a file.
type fileRoot struct {
	Phases []*phaseBlock `hcl:"phase,block"`
	Remain hcl.Body      `hcl:",remain"`
}

type phaseBlock struct {
	Name        string       `hcl:"name,label"`
	Description string       `hcl:"description,optional"`
	DependsOn   []string     `hcl:"depends_on,optional"`
	CleanFiles  []string     `hcl:"clean_files,optional"`
	Tasks       []*taskBlock `hcl:"task,block"`
}

type taskBlock struct {
	Name      string         `hcl:"name,label"`
	Plugin    string         `hcl:"plugin"`
	DependsOn []string       `hcl:"depends_on,optional"`
	Options   hcl.Expression `hcl:"options,optional"`
}

// Load parses every .hcl file under paths and merges them into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	model := &config.Model{}

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		evalCtx := l.evalContext(filepath.Dir(file))
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, pb := range root.Phases {
			phase, err := translatePhase(pb, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Phases = append(model.Phases, phase)
		}
		model.Sources = append(model.Sources, file)
	}

	logger.Debug("HCL loading complete.", "files", len(model.Sources), "phases", len(model.Phases))
	return model, nil
}

func translatePhase(pb *phaseBlock, evalCtx *hcl.EvalContext) (*config.Phase, error) {
	phase := &config.Phase{
		Name:        pb.Name,
		Description: pb.Description,
		DependsOn:   pb.DependsOn,
		CleanFiles:  pb.CleanFiles,
	}
	for _, tb := range pb.Tasks {
		options, err := decodeOptions(tb.Options, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("task '%s.%s': %w", pb.Name, tb.Name, err)
		}
		phase.Tasks = append(phase.Tasks, &config.Task{
			Name:      tb.Name,
			Plugin:    tb.Plugin,
			DependsOn: tb.DependsOn,
			Options:   options,
		})
	}
	return phase, nil
}

func (l *Loader) evalContext(buildFolder string) *hcl.EvalContext {
	env := make(map[string]cty.Value)
	environ := l.Environ
	if environ == nil {
		environ = os.Environ
	}
	for _, kv := range environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":          cty.ObjectVal(env),
			"build_folder": cty.StringVal(buildFolder),
		},
	}
}
