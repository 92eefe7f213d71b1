package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vk/phaserun/internal/app"
)

// RunOptions holds flags for the run and plan commands.
type RunOptions struct {
	*RootOptions

	To          []string
	Only        []string
	Watch       bool
	Clean       bool
	CleanCache  bool
	Verbose     bool
	Production  bool
	Locales     []string
	Parallelism int
	StatusPort  int
	MetricsDB   string
	NotifyURL   string
	BuildFolder string
}

// NewRunCommand creates the run command.
func NewRunCommand(root *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "run [config]",
		Short: "Run the selected phases",
		Long: `Run the selected phases once, or keep rebuilding on changes with --watch.

Example:
  phaserun run
  phaserun run --to test
  phaserun run --only lint --verbose
  phaserun run --watch --status-port 8088`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, args)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	opts.selectionFlags(cmd.Flags())
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "rebuild when source files change")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "delete each phase's clean files before running it")
	cmd.Flags().BoolVar(&opts.CleanCache, "clean-cache", false, "also delete each phase's cache folder (requires --clean)")
	cmd.Flags().BoolVar(&opts.Production, "production", false, "build for production")
	cmd.Flags().StringSliceVar(&opts.Locales, "locale", nil, "locales to build (repeatable)")
	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", envInt(EnvParallelism, 0), "maximum concurrent operations (0 = unbounded)")
	cmd.Flags().IntVar(&opts.StatusPort, "status-port", envInt(EnvStatusPort, 0), "serve /health and /status on this port in watch mode (0 = disabled)")
	cmd.Flags().StringVar(&opts.MetricsDB, "metrics-db", ".phaserun/metrics.db", "SQLite file receiving attempt metrics (empty = disabled)")
	cmd.Flags().StringVar(&opts.NotifyURL, "notify-url", envString(EnvNotifyURL, ""), "socket.io server receiving build events")
	return cmd
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(root *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "plan [config]",
		Short: "Print the operation graph without running it",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, args)
			if err != nil {
				return err
			}
			return a.Plan(cmd.Context(), opts.output(cmd))
		},
	}
	opts.selectionFlags(cmd.Flags())
	return cmd
}

func (o *RunOptions) selectionFlags(flags *pflag.FlagSet) {
	flags.StringSliceVar(&o.To, "to", nil, "run these phases and every phase they depend on")
	flags.StringSliceVar(&o.Only, "only", nil, "run only these phases")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&o.BuildFolder, "build-folder", "", "build folder (defaults to the config's directory)")
}

func (o *RunOptions) newApp(cmd *cobra.Command, args []string) (*app.App, error) {
	configPath := o.ConfigPath
	if len(args) == 1 {
		configPath = args[0]
	}

	cfg, err := app.NewConfig(app.Config{
		ConfigPath:  configPath,
		BuildFolder: o.BuildFolder,
		LogFormat:   o.LogFormat,
		LogLevel:    o.LogLevel,
		To:          o.To,
		Only:        o.Only,
		Watch:       o.Watch,
		Clean:       o.Clean,
		CleanCache:  o.CleanCache,
		Verbose:     o.Verbose,
		Production:  o.Production,
		Locales:     o.Locales,
		Parallelism: o.Parallelism,
		StatusPort:  o.StatusPort,
		MetricsDB:   o.MetricsDB,
		NotifyURL:   o.NotifyURL,
		Parameters:  parameters(cmd.Flags()),
	})
	if err != nil {
		return nil, usageError("invalid configuration", err)
	}

	a, err := app.NewApp(o.output(cmd), cfg, o.modules...)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: "startup failed", Err: err}
	}
	return a, nil
}

// parameters snapshots every flag as a string for the metrics record.
func parameters(flags *pflag.FlagSet) map[string]string {
	params := make(map[string]string)
	flags.VisitAll(func(f *pflag.Flag) {
		params[f.Name] = f.Value.String()
	})
	return params
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return usageError("invalid arguments", err)
		}
		return nil
	}
}
