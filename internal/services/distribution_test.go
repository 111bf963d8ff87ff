package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/queue"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/naffles/nft-staking-rewards/tests/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRunBatch_MonthlyDistribution(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))
	env.expectMint(position.UserID, 12)

	t.Run("first run pays one month", func(t *testing.T) {
		summary, err := env.svc.RunBatch(ctx, nil)
		require.NoError(t, err)

		assert.Equal(t, types.TriggerMonthly, summary.Trigger)
		assert.Equal(t, 1, summary.TotalProcessed)
		assert.Equal(t, 1, summary.Successful)
		assert.Equal(t, int64(12), summary.TotalTickets)

		result := resultFor(t, summary, position.ID)
		assert.Equal(t, types.OutcomeSuccess, result.Outcome)
		assert.Equal(t, 1, result.Months)
		assert.Equal(t, types.DistributionTypeMonthly, result.DistributionType)

		records, err := env.db.GetRewardHistoryByPosition(ctx, position.ID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(12), records[0].OpenEntryTickets)
		assert.Equal(t, 15.0, records[0].EffectiveValue)
		assert.Equal(t, result.RecordID, records[0].ID)
		assert.Equal(t, []string{"ticket-1"}, records[0].TicketIDs)

		stored := env.position(t, position.ID)
		assert.Equal(t, int64(12), stored.TotalRewardsEarned)
		require.NotNil(t, stored.LastRewardDistribution)
		assert.Equal(t, testNow, *stored.LastRewardDistribution)
		assert.Nil(t, stored.ProcessingLock)

		storedContract, err := env.db.GetStakingContract(ctx, contract.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(12), storedContract.TotalRewardsDistributed)
	})
	t.Run("immediate rerun distributes nothing", func(t *testing.T) {
		summary, err := env.svc.RunBatch(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, summary.TotalProcessed)
		assert.Zero(t, summary.TotalTickets)
	})
	t.Run("next month pays again", func(t *testing.T) {
		env.clock.Advance(31 * 24 * time.Hour)
		env.expectMint(position.UserID, 12)

		summary, err := env.svc.RunBatch(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(12), summary.TotalTickets)

		total, err := env.db.SumPositionLedgerTickets(ctx, position.ID)
		require.NoError(t, err)
		assert.Equal(t, env.position(t, position.ID).TotalRewardsEarned, total)
		assert.Equal(t, int64(24), total)
	})
}

func TestRunBatch_NotifiesEveryReward(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	notifier := mocks.NewNotifier(t)
	env.svc.notifier = notifier

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration36Months, testNow.AddDate(0, 0, -40))
	env.expectMint(position.UserID, 15)

	notifier.On("SendRewardNotification", mock.Anything, position.UserID, mock.MatchedBy(func(n queue.RewardNotification) bool {
		return n.PositionID == position.ID &&
			n.Tickets == 15 &&
			n.EffectiveValue == 22.5 &&
			n.ContractName == contract.Name &&
			n.NFTID == position.NFT.ID()
	})).Return(errors.New("queue full")).Once()

	summary, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	// a lost notification never fails the reward
	assert.Equal(t, 1, summary.Successful)
}

func TestRunBatch_BacklogIsPaidAsMissed(t *testing.T) {
	env := newTestEnv(t)

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -70))
	env.expectMint(position.UserID, 24)

	summary, err := env.svc.RunBatch(t.Context(), nil)
	require.NoError(t, err)

	result := resultFor(t, summary, position.ID)
	assert.Equal(t, 2, result.Months)
	assert.Equal(t, types.DistributionTypeMissed, result.DistributionType)
	assert.Equal(t, int64(24), env.position(t, position.ID).TotalRewardsEarned)
}

func TestRunReconciliation(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	idle := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -70))
	recent := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))
	env.expectMint(idle.UserID, 24)

	summary, err := env.svc.RunReconciliation(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.TriggerReconciliation, summary.Trigger)
	assert.Equal(t, 1, summary.TotalProcessed)

	records, err := env.db.GetRewardHistoryByPosition(ctx, idle.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.DistributionTypeMissed, records[0].DistributionType)
	assert.Equal(t, int64(24), records[0].OpenEntryTickets)
	assert.Equal(t, 2, records[0].Months)

	// one month behind is left to the monthly run
	assert.Nil(t, env.position(t, recent.ID).LastRewardDistribution)

	summary, err = env.svc.RunReconciliation(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalProcessed)
}

func TestRunBatch_FaultIsolation(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	active := env.seedContract(t)
	inactive := env.seedContract(t)
	require.NoError(t, env.db.SetStakingContractActive(ctx, inactive.ID, false))

	healthy := []*model.StakingPosition{
		env.seedPosition(t, active, types.Duration6Months, testNow.AddDate(0, 0, -35)),
		env.seedPosition(t, active, types.Duration12Months, testNow.AddDate(0, 0, -35)),
	}
	broken := env.seedPosition(t, inactive, types.Duration12Months, testNow.AddDate(0, 0, -35))
	env.expectMint(healthy[0].UserID, 10)
	env.expectMint(healthy[1].UserID, 12)

	summary, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalProcessed)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int64(22), summary.TotalTickets)

	result := resultFor(t, summary, broken.ID)
	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.Equal(t, types.ErrCodeContractInactive, result.ErrorCode)
	assert.False(t, result.Retryable)

	// the failure is visible in the ledger but never counts as earnings
	records, err := env.db.GetRewardHistoryByPosition(ctx, broken.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.RecordStatusFailed, records[0].Status)
	assert.Equal(t, types.ErrCodeContractInactive, records[0].ErrorCode)
	assert.Zero(t, records[0].OpenEntryTickets)
	assert.Equal(t, inactive.Name, records[0].ContractName)

	total, err := env.db.SumPositionLedgerTickets(ctx, broken.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, env.position(t, broken.ID).TotalRewardsEarned)
}

func TestRunBatch_TicketIssuanceFailureIsRetried(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.cfg.Distribution.RecordFailures = false

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))

	env.tickets.On("MintFreeEntries", mock.Anything, position.UserID, int64(12), mock.Anything).
		Return(nil, errors.New("service unavailable")).Once()

	summary, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	result := resultFor(t, summary, position.ID)
	assert.Equal(t, types.ErrCodeTicketIssuance, result.ErrorCode)
	assert.True(t, result.Retryable)

	stored := env.position(t, position.ID)
	assert.Nil(t, stored.LastRewardDistribution)
	assert.Nil(t, stored.ProcessingLock)
	assert.Empty(t, env.db.Records())

	env.expectMint(position.UserID, 12)
	summary, err = env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
}

func TestRunBatch_Manual(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	owed := env.seedPosition(t, contract, types.Duration6Months, testNow.AddDate(0, -3, 0))
	fresh := env.seedPosition(t, contract, types.Duration6Months, testNow.AddDate(0, 0, -10))
	expired := env.seedPosition(t, contract, types.Duration6Months, testNow.AddDate(0, -7, 0))
	env.expectMint(owed.UserID, 30)

	summary, err := env.svc.RunBatch(ctx, []string{owed.ID, owed.ID, fresh.ID, expired.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, types.TriggerManual, summary.Trigger)
	assert.Equal(t, 4, summary.TotalProcessed)

	result := resultFor(t, summary, owed.ID)
	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	assert.Equal(t, types.DistributionTypeManual, result.DistributionType)
	assert.Equal(t, int64(30), result.Tickets)

	// nothing owed yet is a successful no-op
	result = resultFor(t, summary, fresh.ID)
	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	assert.Zero(t, result.Tickets)
	assert.Nil(t, env.position(t, fresh.ID).LastRewardDistribution)

	result = resultFor(t, summary, expired.ID)
	assert.Equal(t, types.ErrCodePositionNotEligible, result.ErrorCode)

	result = resultFor(t, summary, "missing")
	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.Equal(t, types.ErrCodePositionNotEligible, result.ErrorCode)
}

func TestRunBatch_PendingMonthsTimesTierRate(t *testing.T) {
	for months := 0; months <= 5; months++ {
		for _, duration := range types.SupportedDurations() {
			env := newTestEnv(t)
			contract := env.seedContract(t)
			tier, err := contract.RewardStructure.GetRewardStructure(duration)
			require.NoError(t, err)

			// a day past the month boundary
			position := env.seedPosition(t, contract, duration, testNow.AddDate(0, -months, -1))
			expected := int64(months) * tier.TicketsPerMonth
			if expected > 0 {
				env.expectMint(position.UserID, expected)
			}

			summary, err := env.svc.RunBatch(t.Context(), []string{position.ID})
			require.NoError(t, err)
			assert.Equal(t, expected, summary.TotalTickets, "months=%d duration=%s", months, duration)
			assert.Equal(t, expected, env.position(t, position.ID).TotalRewardsEarned)
		}
	}
}

func TestRunBatch_SkipsLockedPositions(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))
	_, err := env.db.ClaimPositionForProcessing(ctx, position.ID, "other-job", testNow, time.Hour)
	require.NoError(t, err)

	summary, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, types.OutcomeSkipped, resultFor(t, summary, position.ID).Outcome)

	// the other job still owns the lock
	stored := env.position(t, position.ID)
	require.NotNil(t, stored.ProcessingLock)
	assert.Equal(t, "other-job", stored.ProcessingLock.Owner)
}

func TestRunBatch_ConcurrentCommitIsRejected(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))
	env.expectMint(position.UserID, 12)

	// another writer rewards the position between read and commit
	env.db.CommitHook = func(commit *db.RewardCommit) {
		env.db.CommitHook = nil
		record := *commit.Record
		record.ID = "concurrent-record"
		concurrent := *commit
		concurrent.Record = &record
		assert.NoError(t, env.db.CommitRewardDistribution(ctx, &concurrent))
	}

	summary, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ErrCodePositionRewarded, resultFor(t, summary, position.ID).ErrorCode)

	total, err := env.db.SumPositionLedgerTickets(ctx, position.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Equal(t, total, env.position(t, position.ID).TotalRewardsEarned)
}

func TestRunBatch_RequireVerification(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.cfg.Distribution.RequireVerification = true

	contract := env.seedContract(t)
	unverified := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))
	verified := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))
	require.NoError(t, env.db.UpdatePositionVerification(ctx, verified.ID, &model.VerificationResult{
		Verified: true, IntegrityScore: 100, CheckedAt: testNow,
	}))
	env.expectMint(verified.UserID, 12)

	summary, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ErrCodePositionUnverified, resultFor(t, summary, unverified.ID).ErrorCode)
	assert.Equal(t, types.OutcomeSuccess, resultFor(t, summary, verified.ID).Outcome)
}

func TestRunBatch_ZeroTicketTier(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	contract.RewardStructure = types.NewRewardStructure(0, 0, 0)
	require.NoError(t, env.db.SaveStakingContract(ctx, contract))
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))

	summary, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.Zero(t, summary.TotalTickets)
	assert.Nil(t, env.position(t, position.ID).LastRewardDistribution)
}

func TestRunBatch_Exclusion(t *testing.T) {
	ctx := t.Context()

	t.Run("in process", func(t *testing.T) {
		env := newTestEnv(t)
		require.True(t, env.svc.state.TryStart())

		_, err := env.svc.RunBatch(ctx, nil)
		assert.ErrorIs(t, err, ErrBatchInProgress)
	})
	t.Run("lease held by another instance", func(t *testing.T) {
		env := newTestEnv(t)
		contract := env.seedContract(t)
		position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))
		require.NoError(t, env.db.AcquireDistributionLease(ctx, model.RewardDistributionLease, "instance-other", testNow, time.Hour))

		_, err := env.svc.RunBatch(ctx, nil)
		assert.True(t, db.IsLeaseHeldError(err))
		assert.False(t, env.svc.state.IsRunning())

		// manual runs rely on the position lock only
		env.expectMint(position.UserID, 12)
		summary, err := env.svc.RunBatch(ctx, []string{position.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Successful)
	})
}

func TestRunBatch_PersistsStatus(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	first := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))
	second := env.seedPosition(t, contract, types.Duration36Months, testNow.AddDate(0, 0, -35))
	env.expectMint(first.UserID, 12)
	env.expectMint(second.UserID, 15)

	// a second instance sharing the database
	other := NewService(env.cfg, env.db, env.tickets, env.chain, env.notifier, WithClock(env.clock))

	summary, err := env.svc.RunBatch(ctx, []string{first.ID})
	require.NoError(t, err)
	otherSummary, err := other.RunBatch(ctx, []string{second.ID})
	require.NoError(t, err)

	for _, svc := range []*Service{env.svc, other} {
		status, err := svc.GetDistributionStatus(ctx)
		require.NoError(t, err)
		assert.False(t, status.IsRunning)
		require.NotNil(t, status.LastRun)
		assert.Equal(t, testNow, *status.LastRun)
		assert.Equal(t, int64(27), status.TotalDistributed)
		assert.Zero(t, status.TotalErrors)
		require.NotNil(t, status.LastBatch)
		assert.Contains(t, []string{summary.BatchID, otherSummary.BatchID}, status.LastBatch.BatchID)
	}
}

func TestRunBatch_MonthlyCadence(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	// the monthly job fires at 03:00 UTC on the 1st
	ticks := []time.Time{
		time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 1, 3, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC),
	}
	env.clock = clockwork.NewFakeClockAt(ticks[0])
	env.svc = NewService(env.cfg, env.db, env.tickets, env.chain, env.notifier, WithClock(env.clock))

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))

	for i, tick := range ticks {
		env.clock.Advance(tick.Sub(env.clock.Now()))
		env.expectMint(position.UserID, 12)

		summary, err := env.svc.RunBatch(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(12), summary.TotalTickets, "run %d", i)
		assert.Equal(t, types.DistributionTypeMonthly, resultFor(t, summary, position.ID).DistributionType)

		stored := env.position(t, position.ID)
		require.NotNil(t, stored.LastRewardDistribution)
		assert.Equal(t, tick, *stored.LastRewardDistribution)

		// nothing was missed, the daily sweep finds no backlog
		reconciled, err := env.svc.RunReconciliation(ctx)
		require.NoError(t, err)
		assert.Zero(t, reconciled.TotalProcessed)
	}

	assert.Equal(t, int64(48), env.position(t, position.ID).TotalRewardsEarned)
}

func TestRunBatch_RetryReusesMintReference(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))

	var references []string
	capture := func(args mock.Arguments) {
		references = append(references, args.String(3))
	}
	env.tickets.On("MintFreeEntries", mock.Anything, position.UserID, int64(12), mock.AnythingOfType("string")).
		Run(capture).
		Return(nil, errors.New("ticket service unavailable")).
		Once()
	env.tickets.On("MintFreeEntries", mock.Anything, position.UserID, int64(12), mock.AnythingOfType("string")).
		Run(capture).
		Return([]string{"ticket-1"}, nil).
		Once()

	summary, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	summary, err = env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Successful)

	require.Len(t, references, 2)
	assert.Equal(t, references[0], references[1])
	assert.Equal(t, references[1], resultFor(t, summary, position.ID).RecordID)

	// the next payout gets a new reference
	env.clock.Advance(31 * 24 * time.Hour)
	env.expectMint(position.UserID, 12)
	summary, err = env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	assert.NotEqual(t, references[0], resultFor(t, summary, position.ID).RecordID)
}

func TestRunBatch_CommitsTicketsMintedAtTimeout(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.cfg.Distribution.PositionTimeout = 50 * time.Millisecond

	contract := env.seedContract(t)
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -35))

	// the ticket service answers only after the position budget ran out
	env.tickets.On("MintFreeEntries", mock.Anything, position.UserID, int64(12), mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return([]string{"ticket-1"}, nil).
		Once()

	summary, err := env.svc.RunBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, int64(12), env.position(t, position.ID).TotalRewardsEarned)
}

func TestRunBatch_ManualZeroTicketTierWithNothingOwed(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	contract := env.seedContract(t)
	contract.RewardStructure = types.NewRewardStructure(0, 0, 0)
	require.NoError(t, env.db.SaveStakingContract(ctx, contract))
	position := env.seedPosition(t, contract, types.Duration12Months, testNow.AddDate(0, 0, -3))

	summary, err := env.svc.RunBatch(ctx, []string{position.ID})
	require.NoError(t, err)

	result := resultFor(t, summary, position.ID)
	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	assert.Zero(t, result.Tickets)
	assert.Empty(t, result.Error)
	assert.Nil(t, env.position(t, position.ID).LastRewardDistribution)
	env.tickets.AssertNotCalled(t, "MintFreeEntries", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRewardMonths(t *testing.T) {
	cases := []struct {
		trigger      types.BatchTrigger
		pending      int
		months       int
		distribution types.DistributionType
	}{
		{types.TriggerMonthly, 0, 0, types.DistributionTypeMonthly},
		{types.TriggerMonthly, 1, 1, types.DistributionTypeMonthly},
		{types.TriggerMonthly, 3, 3, types.DistributionTypeMissed},
		{types.TriggerReconciliation, 1, 0, types.DistributionTypeMissed},
		{types.TriggerReconciliation, 2, 2, types.DistributionTypeMissed},
		{types.TriggerManual, 0, 0, types.DistributionTypeManual},
		{types.TriggerManual, 4, 4, types.DistributionTypeManual},
	}
	for _, tc := range cases {
		months, distribution := rewardMonths(tc.trigger, tc.pending)
		assert.Equal(t, tc.months, months, "%s with %d pending", tc.trigger, tc.pending)
		assert.Equal(t, tc.distribution, distribution, "%s with %d pending", tc.trigger, tc.pending)
	}
}
