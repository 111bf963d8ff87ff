package cli

import (
	"fmt"

	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/spf13/cobra"
)

// RebuildSummaryCmd recomputes the cached reward summary of positions from the ledger
func RebuildSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild-summary <position-id>...",
		Short: "Rebuild position reward summaries from the reward history",
		Args:  cobra.MinimumNArgs(1),
		RunE:  rebuildSummary,
	}

	return cmd
}

func rebuildSummary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	for _, positionID := range args {
		position, drifted, err := a.service.RebuildPositionSummary(ctx, positionID)
		if db.IsNotFoundError(err) {
			fmt.Printf("Error: position %q hasn't been found\n", positionID)
			continue
		} else if err != nil {
			return err
		}

		if drifted {
			fmt.Printf("Position %q was rebuilt, total rewards now %d\n", positionID, position.TotalRewardsEarned)
		} else {
			fmt.Printf("Position %q was already in sync\n", positionID)
		}
	}

	return nil
}
