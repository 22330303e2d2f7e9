// Command immo runs the offline climate, real estate and model jobs.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/immo-climat/internal/config"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

// cli carries what every subcommand needs once the root has run.
type cli struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "immo",
		Short:         "Climate clustering and real estate price jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat, "immo")
			c.metrics = observability.NewMetrics()
			return nil
		},
	}
	root.AddCommand(
		c.newClimateCmd(),
		c.newRealEstateCmd(),
		c.newModelCmd(),
		c.newEstimateCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
