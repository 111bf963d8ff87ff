package services

import (
	"testing"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerQueries(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))
	env.expectMint(position.UserID, 12)
	_, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)

	t.Run("user rewards", func(t *testing.T) {
		rewards, err := env.svc.GetUserRewards(ctx, position.UserID)
		require.NoError(t, err)
		assert.Equal(t, int64(12), rewards.Totals.TotalTickets)
		assert.Equal(t, 15.0, rewards.Totals.TotalEffectiveValue)
		require.Len(t, rewards.Positions, 1)
		assert.Equal(t, position.ID, rewards.Positions[0].ID)
	})
	t.Run("contract performance", func(t *testing.T) {
		performance, err := env.svc.GetContractPerformance(ctx, contract.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(12), performance.TotalTickets)
		assert.Equal(t, int64(1), performance.UniqueUsers)

		_, err = env.svc.GetContractPerformance(ctx, "missing")
		assert.True(t, db.IsNotFoundError(err))
	})
	t.Run("monthly summary", func(t *testing.T) {
		from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		summary, err := env.svc.GetMonthlySummary(ctx, from, from.AddDate(0, 1, 0))
		require.NoError(t, err)
		require.Len(t, summary, 1)
		assert.Equal(t, "2025-03", summary[0].Month)
		assert.Equal(t, int64(12), summary[0].ByType[types.DistributionTypeMonthly])

		_, err = env.svc.GetMonthlySummary(ctx, from, from)
		assert.Error(t, err)
	})
	t.Run("rebuild summary", func(t *testing.T) {
		rebuilt, drifted, err := env.svc.RebuildPositionSummary(ctx, position.ID)
		require.NoError(t, err)
		assert.False(t, drifted)
		assert.Equal(t, int64(12), rebuilt.TotalRewardsEarned)
		require.Len(t, rebuilt.RewardSummary, 1)
	})
}
