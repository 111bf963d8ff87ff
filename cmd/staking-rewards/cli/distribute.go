package cli

import (
	"encoding/json"
	"os"

	"github.com/naffles/nft-staking-rewards/internal/observability/tracing"
	"github.com/naffles/nft-staking-rewards/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// DistributeCmd runs one distribution batch and prints its summary
// Usage: ./staking-rewards distribute --config config.yml [--position-id <id> ...] [--reconcile]
func DistributeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Run a reward distribution batch once",
		Args:  cobra.ExactArgs(0),
		RunE:  distribute,
	}

	cmd.Flags().StringArray("position-id", nil, "Position to reward (repeatable). If omitted, every due position is processed")
	cmd.Flags().Bool("reconcile", false, "Pay missed months instead of running the monthly batch")
	cmd.MarkFlagsMutuallyExclusive("position-id", "reconcile")

	return cmd
}

func distribute(cmd *cobra.Command, _ []string) error {
	ctx := tracing.InjectTraceID(cmd.Context())

	positionIDs, err := cmd.Flags().GetStringArray("position-id")
	if err != nil {
		return err
	}
	reconcile, err := cmd.Flags().GetBool("reconcile")
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var summary *services.BatchSummary
	if reconcile {
		summary, err = a.service.RunReconciliation(ctx)
	} else {
		summary, err = a.service.RunBatch(ctx, positionIDs)
	}
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Int("processed", summary.TotalProcessed).
		Int("failed", summary.Failed).
		Int64("tickets", summary.TotalTickets).
		Msg("Distribution batch finished")

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}
