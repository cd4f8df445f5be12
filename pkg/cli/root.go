// Package cli implements the metricsd command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configFile string
	jsonOutput bool

	host            string
	port            int
	logLevel        string
	logFormat       string
	logFile         string
	runtimeInterval string
	maxConnections  int
}

// NewRootCommand builds the metricsd command tree. Running it without a
// subcommand serves metrics.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "metricsd",
		Short: "metricsd exposes bot metrics for Prometheus",
		Long: `metricsd keeps the bot's counters, gauges and histograms in memory and
serves them on GET /metrics in the Prometheus text format, with a JSON
summary on GET /stats.

Configuration can be provided via flags, METRICSD_* environment variables,
or a YAML file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true, // We handle errors in Execute()
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "YAML config file (env: METRICSD_CONFIG)")
	pf.BoolVar(&opts.jsonOutput, "json", false, "Output command results in JSON format")
	pf.StringVar(&opts.host, "host", "", "Interface to listen on")
	pf.IntVar(&opts.port, "port", 0, "Port to listen on (default 1256)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text, json")
	pf.StringVar(&opts.logFile, "log-file", "", "Also write JSON logs to this file")
	pf.StringVar(&opts.runtimeInterval, "runtime-interval", "", "How often runtime stats are refreshed (e.g. 15s)")
	pf.IntVar(&opts.maxConnections, "max-connections", 0, "Cap on concurrent scrape connections, 0 for none")

	root.AddCommand(
		newServeCommand(opts),
		newValidateCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
