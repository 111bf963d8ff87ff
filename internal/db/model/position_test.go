package model

import (
	"testing"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stakedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestPosition(duration types.StakingDuration) *StakingPosition {
	return NewStakingPosition(
		"position-1", "user-1", "0xwallet", "contract-1",
		NFTIdentity{Chain: "ethereum", ContractAddress: "0xnft", TokenID: "42"},
		duration,
		stakedAt,
	)
}

func TestNewStakingPosition(t *testing.T) {
	p := newTestPosition(types.Duration12Months)

	assert.Equal(t, types.PositionStatusActive, p.Status)
	assert.Equal(t, stakedAt.AddDate(1, 0, 0), p.UnstakeAt)
	assert.Nil(t, p.LastRewardDistribution)
	assert.Zero(t, p.TotalRewardsEarned)
	require.NoError(t, p.Validate())

	invalid := newTestPosition(types.StakingDuration(24))
	var unsupported *types.UnsupportedDurationError
	require.ErrorAs(t, invalid.Validate(), &unsupported)

	invalid = newTestPosition(types.Duration6Months)
	invalid.UserID = ""
	require.ErrorIs(t, invalid.Validate(), ErrInvalidPosition)
}

func TestStakingPosition_Eligibility(t *testing.T) {
	p := newTestPosition(types.Duration6Months)

	assert.True(t, p.IsEligibleForRewards(stakedAt.AddDate(0, 1, 0)))
	assert.False(t, p.CanUnstake(stakedAt.AddDate(0, 1, 0)))

	// expiry is a predicate, not a state
	assert.False(t, p.IsEligibleForRewards(p.UnstakeAt))
	assert.True(t, p.CanUnstake(p.UnstakeAt))
	assert.Equal(t, types.PositionStatusActive, p.Status)

	p.Status = types.PositionStatusUnstaked
	assert.False(t, p.IsEligibleForRewards(stakedAt.AddDate(0, 1, 0)))
	assert.False(t, p.CanUnstake(p.UnstakeAt))
}

func TestStakingPosition_PendingRewardMonths(t *testing.T) {
	p := newTestPosition(types.Duration36Months)

	assert.Equal(t, 0, p.PendingRewardMonths(stakedAt.Add(-time.Hour)))
	assert.Equal(t, 0, p.PendingRewardMonths(stakedAt.AddDate(0, 0, 20)))
	assert.Equal(t, 1, p.PendingRewardMonths(stakedAt.AddDate(0, 0, 35)))
	assert.Equal(t, 2, p.PendingRewardMonths(stakedAt.AddDate(0, 0, 70)))

	last := stakedAt.AddDate(0, 5, 0)
	p.LastRewardDistribution = &last
	assert.Equal(t, 0, p.PendingRewardMonths(last.AddDate(0, 0, 10)))
	assert.Equal(t, 3, p.PendingRewardMonths(last.AddDate(0, 3, 1)))
}

func TestStakingPosition_ApplyRewardDistribution(t *testing.T) {
	p := newTestPosition(types.Duration12Months)
	now := stakedAt.AddDate(0, 0, 35)

	entry := p.ApplyRewardDistribution("record-1", 12, 1.25, types.DistributionTypeMonthly, now)

	assert.Equal(t, int64(12), p.TotalRewardsEarned)
	require.NotNil(t, p.LastRewardDistribution)
	assert.Equal(t, now, *p.LastRewardDistribution)
	require.Len(t, p.RewardSummary, 1)
	assert.Equal(t, entry, p.RewardSummary[0])
	assert.Equal(t, 0, p.PendingRewardMonths(now))

	// an earlier timestamp never moves the anchor backwards
	p.ApplyRewardDistribution("record-2", 3, 1.25, types.DistributionTypeManual, now.Add(-time.Hour))
	assert.Equal(t, now, *p.LastRewardDistribution)
	assert.Equal(t, int64(15), p.TotalRewardsEarned)
}

func TestStakingPosition_Unstake(t *testing.T) {
	t.Run("after lock period", func(t *testing.T) {
		p := newTestPosition(types.Duration6Months)
		p.TotalRewardsEarned = 500

		err := p.Unstake("0xproof", "", p.UnstakeAt.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, types.PositionStatusUnstaked, p.Status)
		assert.Nil(t, p.EarlyUnstakePenalty)
		assert.Equal(t, "0xproof", p.UnstakeProof)
		require.NotNil(t, p.ActualUnstakedAt)
		// unstake time is never touched
		assert.Equal(t, stakedAt.AddDate(0, 6, 0), p.UnstakeAt)
	})
	t.Run("early unstake needs a reason", func(t *testing.T) {
		p := newTestPosition(types.Duration6Months)
		err := p.Unstake("0xproof", "  ", stakedAt.AddDate(0, 1, 0))
		require.ErrorIs(t, err, types.ErrEarlyUnstakeReasonRequired)
		assert.Equal(t, types.PositionStatusActive, p.Status)
	})
	t.Run("early unstake applies penalty", func(t *testing.T) {
		p := newTestPosition(types.Duration12Months)
		p.TotalRewardsEarned = 1000

		midpoint := stakedAt.Add(p.UnstakeAt.Sub(stakedAt) / 2)
		err := p.Unstake("0xproof", "emergency unlock", midpoint)
		require.NoError(t, err)
		require.NotNil(t, p.EarlyUnstakePenalty)
		assert.Equal(t, int64(50), p.EarlyUnstakePenalty.PenaltyAmount)
		assert.Equal(t, "emergency unlock", p.EarlyUnstakePenalty.Reason)
		assert.LessOrEqual(t, float64(p.EarlyUnstakePenalty.PenaltyAmount), 0.10*float64(p.TotalRewardsEarned))
	})
	t.Run("unstaked is terminal", func(t *testing.T) {
		p := newTestPosition(types.Duration6Months)
		require.NoError(t, p.Unstake("", "", p.UnstakeAt))

		var notUnstakable *types.PositionNotUnstakableError
		require.ErrorAs(t, p.Unstake("", "", p.UnstakeAt), &notUnstakable)
	})
}

func TestNewDistributedRecord(t *testing.T) {
	p := newTestPosition(types.Duration12Months)
	contract := &StakingContract{ID: "contract-1", Name: "Naffles Genesis"}
	now := stakedAt.AddDate(0, 0, 35)

	record := NewDistributedRecord("record-1", "batch-1", p, contract, 1, 12, 1.25, types.DistributionTypeMonthly, []string{"t1"}, now)

	assert.Equal(t, 15.0, record.EffectiveValue)
	assert.Equal(t, types.RecordStatusDistributed, record.Status)
	assert.Equal(t, "Naffles Genesis", record.ContractName)
	assert.Equal(t, p.NFT, record.NFT)
	assert.Equal(t, float64(record.OpenEntryTickets)*record.BonusMultiplier, record.EffectiveValue)
}

func TestStakingContract_CheckDistributable(t *testing.T) {
	c := &StakingContract{ID: "c1", IsActive: true, IsValidated: true}
	require.NoError(t, c.CheckDistributable())

	c.IsValidated = false
	var inactive *types.ContractInactiveError
	require.ErrorAs(t, c.CheckDistributable(), &inactive)
	assert.True(t, inactive.Active)
	assert.False(t, inactive.Validated)
}
