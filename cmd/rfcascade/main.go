// Command rfcascade evaluates RF signal chains from chain files and serves
// the cascade engine over gRPC.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/signalsfoundry/rfcascade/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "rfcascade",
		Short:         "Cascaded RF chain budget calculator",
		Long:          "rfcascade computes gain, noise, linearity and array metrics stage by stage along an RF signal chain.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default from RFCASCADE_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json (default from RFCASCADE_LOG_FORMAT)")

	root.AddCommand(
		newEvalCmd(opts),
		newMetricsCmd(),
		newInitCmd(),
		newServeCmd(opts),
	)
	return root
}

// logger builds the command's logger from the environment, letting flags
// win. Logs always go to stderr.
func (o *rootOptions) logger(cmd *cobra.Command, defaultLevel string) (logging.Logger, error) {
	cfg := logging.ConfigFromEnv()
	if o.logLevel != "" {
		cfg.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Format = o.logFormat
	}
	if cfg.Level == "" {
		cfg.Level = defaultLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Output = cmd.ErrOrStderr()
	return logging.New(cfg), nil
}
