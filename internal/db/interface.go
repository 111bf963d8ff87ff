package db

import (
	"context"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db/model"
)

//go:generate mockery --name=DbInterface --output=../../tests/mocks --outpkg=mocks --filename=mock_db_client.go
type DbInterface interface {
	Ping(ctx context.Context) error

	// SaveStakingContract upserts a staking contract configuration.
	// Aggregate counters of an existing contract are left untouched.
	SaveStakingContract(ctx context.Context, contract *model.StakingContract) error
	// GetStakingContract returns a contract by id.
	GetStakingContract(ctx context.Context, contractID string) (*model.StakingContract, error)
	GetStakingContracts(ctx context.Context) ([]model.StakingContract, error)
	SetStakingContractActive(ctx context.Context, contractID string, active bool) error
	SetStakingContractValidated(ctx context.Context, contractID string, validated bool) error
	IncrementContractTotalStaked(ctx context.Context, contractID string, delta int64) error
	IncrementContractRewardsDistributed(ctx context.Context, contractID string, tickets int64) error

	// StakePosition inserts a new active position and increments the contract
	// total_staked counter in one transaction.
	StakePosition(ctx context.Context, position *model.StakingPosition) error
	// UnstakePosition persists an unstaked position and decrements the
	// contract total_staked counter in one transaction. The update only
	// applies while the stored position is still active.
	UnstakePosition(ctx context.Context, position *model.StakingPosition) error
	GetStakingPosition(ctx context.Context, positionID string) (*model.StakingPosition, error)
	GetStakingPositionsByIDs(ctx context.Context, positionIDs []string) ([]model.StakingPosition, error)
	GetStakingPositionsByUser(ctx context.Context, userID string) ([]model.StakingPosition, error)
	// FindPositionsDueForReward returns active, unexpired positions whose
	// reward anchor (last distribution, or stake time when never rewarded)
	// is at or before cutoff.
	FindPositionsDueForReward(ctx context.Context, now, cutoff time.Time, limit int64) ([]model.StakingPosition, error)
	// ClaimPositionForProcessing sets the processing lock on a position unless
	// another owner holds an unexpired lock. It returns the freshly read
	// position, or types.PositionLockedError when the lock is held.
	ClaimPositionForProcessing(ctx context.Context, positionID, owner string, now time.Time, ttl time.Duration) (*model.StakingPosition, error)
	ReleasePositionLock(ctx context.Context, positionID, owner string) error
	UpdatePositionVerification(ctx context.Context, positionID string, result *model.VerificationResult) error
	FindPositionsForVerification(ctx context.Context, checkedBefore time.Time, limit int64) ([]model.StakingPosition, error)

	// CommitRewardDistribution atomically appends the ledger record, advances
	// the position and increments the contract counter. It fails with
	// types.PositionAlreadyRewardedError when the position moved since it was read.
	CommitRewardDistribution(ctx context.Context, commit *RewardCommit) error
	SaveFailedRewardRecord(ctx context.Context, record *model.RewardHistoryRecord) error
	GetRewardHistoryByPosition(ctx context.Context, positionID string) ([]model.RewardHistoryRecord, error)
	GetUserRewardTotals(ctx context.Context, userID string) (*model.UserRewardTotals, error)
	GetContractPerformance(ctx context.Context, contractID string) (*model.ContractPerformance, error)
	GetMonthlyDistributionSummary(ctx context.Context, from, to time.Time) ([]model.MonthlyDistributionSummary, error)
	SumPositionLedgerTickets(ctx context.Context, positionID string) (int64, error)
	// RebuildPositionRewardSummary recomputes the reward summary cache and
	// total_rewards_earned of a position from the ledger.
	RebuildPositionRewardSummary(ctx context.Context, positionID string) (*model.StakingPosition, error)

	AcquireDistributionLease(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) error
	ReleaseDistributionLease(ctx context.Context, name, holder string) error
	GetDistributionStatus(ctx context.Context) (*model.DistributionStatus, error)
	// RecordDistributionBatch folds a finished batch into the shared status
	// document. Totals are incremented in place so concurrent instances never
	// overwrite each other.
	RecordDistributionBatch(ctx context.Context, batch *model.BatchSummaryDocument) error

	CountStakesByUserSince(ctx context.Context, since time.Time, threshold int64) ([]model.UserStakeCount, error)
	CountStakesByContractSince(ctx context.Context, since time.Time) ([]model.ContractStakeCount, error)
}
