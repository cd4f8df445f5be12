package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/avairebot/metricsd/pkg/config"
)

// loadConfig resolves defaults, the config file, the environment and the
// flags, in that order, and validates the result.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()

	path := opts.configFile
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, opts, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies every flag the user actually passed into cfg.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) error {
	flags := cmd.Flags()
	set := func(flag, key string, apply func()) {
		if flags.Changed(flag) {
			apply()
			cfg.Set(key, config.SourceFlag)
		}
	}

	set("host", "host", func() { cfg.Host = opts.host })
	set("port", "port", func() { cfg.Port = opts.port })
	set("log-level", "logLevel", func() { cfg.LogLevel = opts.logLevel })
	set("log-format", "logFormat", func() { cfg.LogFormat = opts.logFormat })
	set("log-file", "logFile", func() { cfg.LogFile = opts.logFile })
	set("max-connections", "maxConnections", func() { cfg.MaxConnections = opts.maxConnections })

	if flags.Changed("runtime-interval") {
		d, err := time.ParseDuration(opts.runtimeInterval)
		if err != nil {
			return fmt.Errorf("invalid --runtime-interval %q: %w", opts.runtimeInterval, err)
		}
		cfg.RuntimeInterval = d
		cfg.Set("runtimeInterval", config.SourceFlag)
	}
	return nil
}
