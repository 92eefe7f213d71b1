package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/phaserun/internal/registry"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Options configures Execute.
type Options struct {
	Out io.Writer
	// Modules replaces the built-in task plugins. Used by tests.
	Modules []registry.Module
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	out     io.Writer
	modules []registry.Module
}

// NewRootCommand creates the root command of the phaserun CLI.
func NewRootCommand(opts Options) *cobra.Command {
	root := &RootOptions{out: opts.Out, modules: opts.Modules}

	cmd := &cobra.Command{
		Use:   "phaserun",
		Short: "phaserun - an incremental, phase-based build orchestrator",
		Long: `phaserun runs the tasks of a project's build phases in dependency order,
in parallel where possible. In watch mode it rebuilds whenever a source file
changes, cancelling a build that is still running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			root.LogLevel = strings.ToLower(root.LogLevel)
			if !slices.Contains(validLogLevels, root.LogLevel) {
				return usageError(fmt.Sprintf("invalid log-level %q: must be one of %v", root.LogLevel, validLogLevels), nil)
			}
			root.LogFormat = strings.ToLower(root.LogFormat)
			if !slices.Contains(validLogFormats, root.LogFormat) {
				return usageError(fmt.Sprintf("invalid log-format %q: must be one of %v", root.LogFormat, validLogFormats), nil)
			}
			return nil
		},
	}
	if opts.Out != nil {
		cmd.SetOut(opts.Out)
		cmd.SetErr(opts.Out)
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("invalid arguments", err)
	})

	cmd.PersistentFlags().StringVarP(&root.ConfigPath, "config", "c", "phaserun.hcl", "path to phaserun.hcl, phaserun.yaml or a directory of .hcl files")
	cmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", envString(EnvLogLevel, "info"), "logging level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", envString(EnvLogFormat, "text"), "log output format (text|json)")

	cmd.AddCommand(NewRunCommand(root))
	cmd.AddCommand(NewPlanCommand(root))
	return cmd
}

// Execute parses args and runs the selected command.
func Execute(ctx context.Context, args []string, opts Options) error {
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func (r *RootOptions) output(cmd *cobra.Command) io.Writer {
	if r.out != nil {
		return r.out
	}
	return cmd.OutOrStdout()
}
