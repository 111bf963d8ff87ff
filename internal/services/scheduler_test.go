package services

import (
	"context"
	"testing"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartDistributionScheduler(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, env.svc.StartDistributionScheduler(ctx))

	status, err := env.svc.GetDistributionStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.NextRun)
	assert.Equal(t, time.Date(2025, 4, 1, 3, 0, 0, 0, time.UTC), *status.NextRun)
}

func TestStartDistributionScheduler_InvalidSchedule(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Scheduler.MonthlySchedule = "not a schedule"

	assert.Error(t, env.svc.StartDistributionScheduler(t.Context()))
}

func TestRunScheduledBatch(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))

	// another instance owns the run, nothing is distributed
	require.NoError(t, env.db.AcquireDistributionLease(ctx, model.RewardDistributionLease, "instance-other", testNow, time.Hour))
	env.svc.runScheduledBatch(ctx, types.TriggerMonthly, testNow)
	assert.Nil(t, env.position(t, position.ID).LastRewardDistribution)

	require.NoError(t, env.db.ReleaseDistributionLease(ctx, model.RewardDistributionLease, "instance-other"))
	env.expectMint(position.UserID, 12)
	env.svc.runScheduledBatch(ctx, types.TriggerMonthly, testNow)
	assert.Equal(t, int64(12), env.position(t, position.ID).TotalRewardsEarned)
}

func TestRunScheduledBatch_AnchorsOnTick(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC))

	// the job starts late, the position is still anchored on the tick
	tick := time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)
	env.expectMint(position.UserID, 12)
	env.svc.runScheduledBatch(ctx, types.TriggerMonthly, tick)

	stored := env.position(t, position.ID)
	require.NotNil(t, stored.LastRewardDistribution)
	assert.Equal(t, tick, *stored.LastRewardDistribution)
}
