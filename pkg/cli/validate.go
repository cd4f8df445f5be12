package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/avairebot/metricsd/pkg/cli/internal/output"
)

// ValidateOutput is the --json result of validate.
type ValidateOutput struct {
	Valid   bool              `json:"valid"`
	Addr    string            `json:"addr"`
	Sources map[string]string `json:"sources"`
}

func newValidateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Resolve and validate the configuration without serving",
		Long: `Resolve the configuration from defaults, --config, METRICSD_* variables and
flags, validate it, and print the result as YAML. Keys that were not left at
their defaults are listed with the layer that set them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return output.JSON(out, ValidateOutput{Valid: true, Addr: cfg.Addr(), Sources: cfg.Sources})
			}

			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "# configuration is valid")
			for _, key := range slices.Sorted(maps.Keys(cfg.Sources)) {
				fmt.Fprintf(out, "# %s set by %s\n", key, cfg.Sources[key])
			}
			_, err = out.Write(data)
			return err
		},
	}
}
