package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/api"
	"github.com/naffles/nft-staking-rewards/internal/observability/metrics"
	"github.com/naffles/nft-staking-rewards/internal/observability/tracing"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func StartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Starts the scheduler, background audits and the admin API",
		Args:  cobra.ExactArgs(0),
		RunE:  startServer,
	}

	return cmd
}

func startServer(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = tracing.InjectTraceID(ctx)
	log := log.Ctx(ctx)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// initialize metrics with the metrics port from config
	metricsPort := a.cfg.Metrics.GetMetricsPort()
	metrics.Init(metricsPort)

	if err := a.service.StartDistributionSync(ctx); err != nil {
		return err
	}

	server := api.New(&a.cfg.API, a.service, a.db)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
