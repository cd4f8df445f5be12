package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avairebot/metricsd/pkg/config"
	"github.com/avairebot/metricsd/pkg/logging"
	"github.com/avairebot/metricsd/pkg/setup"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve metrics until interrupted (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

// runServe sets metrics up, then blocks until SIGINT, SIGTERM or the
// command context ends, and shuts the endpoint down within shutdownTimeout.
func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	rt, err := setup.Setup(cfg, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "metricsd listening on %s\n", rt.Addr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	rt.Logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := rt.Close(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newLogger builds the process logger. With a log file configured, records
// also go to the file as JSON.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	lc := cfg.LoggingConfig(stderr)
	handler := logging.NewHandler(lc)
	if cfg.LogFile == "" {
		return slog.New(handler), func() {}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	fileHandler := logging.NewHandler(logging.Config{
		Level:  lc.Level,
		Format: logging.FormatJSON,
		Output: f,
	})
	log := slog.New(logging.NewMultiHandler(handler, fileHandler))
	return log, func() { _ = f.Close() }, nil
}
