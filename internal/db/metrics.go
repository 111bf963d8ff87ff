package db

import (
	"context"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/observability/metrics"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *DbWithMetrics) SaveStakingContract(ctx context.Context, contract *model.StakingContract) error {
	return d.run("SaveStakingContract", func() error {
		return d.db.SaveStakingContract(ctx, contract)
	})
}

func (d *DbWithMetrics) GetStakingContract(ctx context.Context, contractID string) (result *model.StakingContract, err error) {
	//nolint:errcheck
	d.run("GetStakingContract", func() error {
		result, err = d.db.GetStakingContract(ctx, contractID)
		return err
	})

	return
}

func (d *DbWithMetrics) GetStakingContracts(ctx context.Context) (result []model.StakingContract, err error) {
	//nolint:errcheck
	d.run("GetStakingContracts", func() error {
		result, err = d.db.GetStakingContracts(ctx)
		return err
	})

	return
}

func (d *DbWithMetrics) SetStakingContractActive(ctx context.Context, contractID string, active bool) error {
	return d.run("SetStakingContractActive", func() error {
		return d.db.SetStakingContractActive(ctx, contractID, active)
	})
}

func (d *DbWithMetrics) SetStakingContractValidated(ctx context.Context, contractID string, validated bool) error {
	return d.run("SetStakingContractValidated", func() error {
		return d.db.SetStakingContractValidated(ctx, contractID, validated)
	})
}

func (d *DbWithMetrics) IncrementContractTotalStaked(ctx context.Context, contractID string, delta int64) error {
	return d.run("IncrementContractTotalStaked", func() error {
		return d.db.IncrementContractTotalStaked(ctx, contractID, delta)
	})
}

func (d *DbWithMetrics) IncrementContractRewardsDistributed(ctx context.Context, contractID string, tickets int64) error {
	return d.run("IncrementContractRewardsDistributed", func() error {
		return d.db.IncrementContractRewardsDistributed(ctx, contractID, tickets)
	})
}

func (d *DbWithMetrics) StakePosition(ctx context.Context, position *model.StakingPosition) error {
	return d.run("StakePosition", func() error {
		return d.db.StakePosition(ctx, position)
	})
}

func (d *DbWithMetrics) UnstakePosition(ctx context.Context, position *model.StakingPosition) error {
	return d.run("UnstakePosition", func() error {
		return d.db.UnstakePosition(ctx, position)
	})
}

func (d *DbWithMetrics) GetStakingPosition(ctx context.Context, positionID string) (result *model.StakingPosition, err error) {
	//nolint:errcheck
	d.run("GetStakingPosition", func() error {
		result, err = d.db.GetStakingPosition(ctx, positionID)
		return err
	})

	return
}

func (d *DbWithMetrics) GetStakingPositionsByIDs(ctx context.Context, positionIDs []string) (result []model.StakingPosition, err error) {
	//nolint:errcheck
	d.run("GetStakingPositionsByIDs", func() error {
		result, err = d.db.GetStakingPositionsByIDs(ctx, positionIDs)
		return err
	})

	return
}

func (d *DbWithMetrics) GetStakingPositionsByUser(ctx context.Context, userID string) (result []model.StakingPosition, err error) {
	//nolint:errcheck
	d.run("GetStakingPositionsByUser", func() error {
		result, err = d.db.GetStakingPositionsByUser(ctx, userID)
		return err
	})

	return
}

func (d *DbWithMetrics) FindPositionsDueForReward(ctx context.Context, now, cutoff time.Time, limit int64) (result []model.StakingPosition, err error) {
	//nolint:errcheck
	d.run("FindPositionsDueForReward", func() error {
		result, err = d.db.FindPositionsDueForReward(ctx, now, cutoff, limit)
		return err
	})

	return
}

func (d *DbWithMetrics) ClaimPositionForProcessing(ctx context.Context, positionID, owner string, now time.Time, ttl time.Duration) (result *model.StakingPosition, err error) {
	//nolint:errcheck
	d.run("ClaimPositionForProcessing", func() error {
		result, err = d.db.ClaimPositionForProcessing(ctx, positionID, owner, now, ttl)
		return err
	})

	return
}

func (d *DbWithMetrics) ReleasePositionLock(ctx context.Context, positionID, owner string) error {
	return d.run("ReleasePositionLock", func() error {
		return d.db.ReleasePositionLock(ctx, positionID, owner)
	})
}

func (d *DbWithMetrics) UpdatePositionVerification(ctx context.Context, positionID string, result *model.VerificationResult) error {
	return d.run("UpdatePositionVerification", func() error {
		return d.db.UpdatePositionVerification(ctx, positionID, result)
	})
}

func (d *DbWithMetrics) FindPositionsForVerification(ctx context.Context, checkedBefore time.Time, limit int64) (result []model.StakingPosition, err error) {
	//nolint:errcheck
	d.run("FindPositionsForVerification", func() error {
		result, err = d.db.FindPositionsForVerification(ctx, checkedBefore, limit)
		return err
	})

	return
}

func (d *DbWithMetrics) CommitRewardDistribution(ctx context.Context, commit *RewardCommit) error {
	return d.run("CommitRewardDistribution", func() error {
		return d.db.CommitRewardDistribution(ctx, commit)
	})
}

func (d *DbWithMetrics) SaveFailedRewardRecord(ctx context.Context, record *model.RewardHistoryRecord) error {
	return d.run("SaveFailedRewardRecord", func() error {
		return d.db.SaveFailedRewardRecord(ctx, record)
	})
}

func (d *DbWithMetrics) GetRewardHistoryByPosition(ctx context.Context, positionID string) (result []model.RewardHistoryRecord, err error) {
	//nolint:errcheck
	d.run("GetRewardHistoryByPosition", func() error {
		result, err = d.db.GetRewardHistoryByPosition(ctx, positionID)
		return err
	})

	return
}

func (d *DbWithMetrics) GetUserRewardTotals(ctx context.Context, userID string) (result *model.UserRewardTotals, err error) {
	//nolint:errcheck
	d.run("GetUserRewardTotals", func() error {
		result, err = d.db.GetUserRewardTotals(ctx, userID)
		return err
	})

	return
}

func (d *DbWithMetrics) GetContractPerformance(ctx context.Context, contractID string) (result *model.ContractPerformance, err error) {
	//nolint:errcheck
	d.run("GetContractPerformance", func() error {
		result, err = d.db.GetContractPerformance(ctx, contractID)
		return err
	})

	return
}

func (d *DbWithMetrics) GetMonthlyDistributionSummary(ctx context.Context, from, to time.Time) (result []model.MonthlyDistributionSummary, err error) {
	//nolint:errcheck
	d.run("GetMonthlyDistributionSummary", func() error {
		result, err = d.db.GetMonthlyDistributionSummary(ctx, from, to)
		return err
	})

	return
}

func (d *DbWithMetrics) SumPositionLedgerTickets(ctx context.Context, positionID string) (result int64, err error) {
	//nolint:errcheck
	d.run("SumPositionLedgerTickets", func() error {
		result, err = d.db.SumPositionLedgerTickets(ctx, positionID)
		return err
	})

	return
}

func (d *DbWithMetrics) RebuildPositionRewardSummary(ctx context.Context, positionID string) (result *model.StakingPosition, err error) {
	//nolint:errcheck
	d.run("RebuildPositionRewardSummary", func() error {
		result, err = d.db.RebuildPositionRewardSummary(ctx, positionID)
		return err
	})

	return
}

func (d *DbWithMetrics) AcquireDistributionLease(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) error {
	return d.run("AcquireDistributionLease", func() error {
		return d.db.AcquireDistributionLease(ctx, name, holder, now, ttl)
	})
}

func (d *DbWithMetrics) ReleaseDistributionLease(ctx context.Context, name, holder string) error {
	return d.run("ReleaseDistributionLease", func() error {
		return d.db.ReleaseDistributionLease(ctx, name, holder)
	})
}

func (d *DbWithMetrics) GetDistributionStatus(ctx context.Context) (result *model.DistributionStatus, err error) {
	//nolint:errcheck
	d.run("GetDistributionStatus", func() error {
		result, err = d.db.GetDistributionStatus(ctx)
		return err
	})

	return
}

func (d *DbWithMetrics) RecordDistributionBatch(ctx context.Context, batch *model.BatchSummaryDocument) error {
	return d.run("RecordDistributionBatch", func() error {
		return d.db.RecordDistributionBatch(ctx, batch)
	})
}

func (d *DbWithMetrics) CountStakesByUserSince(ctx context.Context, since time.Time, threshold int64) (result []model.UserStakeCount, err error) {
	//nolint:errcheck
	d.run("CountStakesByUserSince", func() error {
		result, err = d.db.CountStakesByUserSince(ctx, since, threshold)
		return err
	})

	return
}

func (d *DbWithMetrics) CountStakesByContractSince(ctx context.Context, since time.Time) (result []model.ContractStakeCount, err error) {
	//nolint:errcheck
	d.run("CountStakesByContractSince", func() error {
		result, err = d.db.CountStakesByContractSince(ctx, since)
		return err
	})

	return
}

func (d *DbWithMetrics) run(method string, f func() error) error {
	startTime := time.Now()
	err := f()
	duration := time.Since(startTime)

	metrics.RecordDbLatency(duration, method, err != nil)
	return err
}
