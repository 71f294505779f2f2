// Command mt browses and edits JSON and YAML documents as a tree.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/modeltree/pkg/config"
	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/metrics"
	"github.com/vanderheijden86/modeltree/pkg/version"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	logPath     string
	showMetrics bool

	cfg     config.Config
	logFile *os.File
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "mt",
		Short: "Browse and edit JSON and YAML documents as a tree",
		Long: `mt mirrors a JSON or YAML document as a navigable tree.

The view command opens the interactive browser. dump and search print to
stdout for use in scripts, and serve relays edits between mt instances.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			opts.teardown(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/modeltree/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logPath, "log", "", "Write debug log to file")
	root.PersistentFlags().BoolVar(&opts.showMetrics, "metrics", false, "Print timing and counter metrics on exit")

	root.AddCommand(
		newViewCommand(opts),
		newDumpCommand(opts),
		newSearchCommand(opts),
		newSnapshotCommand(opts),
		newServeCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

// setup loads the config and routes debug output.
func (o *globalOptions) setup() error {
	var err error
	if o.configPath != "" {
		o.cfg, err = config.LoadFrom(o.configPath)
	} else {
		o.cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		o.cfg = config.DefaultConfig()
	}

	if o.logPath != "" {
		f, err := os.OpenFile(o.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		o.logFile = f
		debug.SetOutput(f)
		debug.SetEnabled(true)
	}
	if o.showMetrics {
		metrics.SetEnabled(true)
	}
	return nil
}

func (o *globalOptions) teardown(w io.Writer) {
	if o.showMetrics {
		if err := writeMetrics(w); err != nil {
			debug.Log("metrics: %v", err)
		}
	}
	if o.logFile != nil {
		debug.SetOutput(os.Stderr)
		o.logFile.Close()
		o.logFile = nil
	}
}

type metricsOutput struct {
	Timings  []metrics.TimingStats `json:"timings"`
	Counters map[string]int64      `json:"counters"`
}

func writeMetrics(w io.Writer) error {
	out := metricsOutput{
		Timings:  metrics.AllTimingStats(),
		Counters: metrics.Snapshot(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mt version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "mt "+version.String())
		},
	}
}
