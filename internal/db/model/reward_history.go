package model

import (
	"time"

	"github.com/naffles/nft-staking-rewards/internal/staking"
	"github.com/naffles/nft-staking-rewards/internal/types"
)

const RewardHistoryCollection = "staking_reward_history"

// RewardHistoryRecord is an immutable ledger entry. NFT, contract and
// duration context is copied in so later contract edits don't rewrite history.
type RewardHistoryRecord struct {
	ID               string                 `bson:"_id" json:"id"`
	BatchID          string                 `bson:"batch_id" json:"batchId"`
	UserID           string                 `bson:"user_id" json:"userId"`
	PositionID       string                 `bson:"position_id" json:"positionId"`
	ContractID       string                 `bson:"contract_id" json:"contractId"`
	ContractName     string                 `bson:"contract_name" json:"contractName"`
	NFT              NFTIdentity            `bson:"nft" json:"nft"`
	StakingDuration  types.StakingDuration  `bson:"staking_duration" json:"stakingDuration"`
	DistributionDate time.Time              `bson:"distribution_date" json:"distributionDate"`
	Months           int                    `bson:"months" json:"months"`
	OpenEntryTickets int64                  `bson:"open_entry_tickets" json:"openEntryTickets"`
	BonusMultiplier  float64                `bson:"bonus_multiplier" json:"bonusMultiplier"`
	EffectiveValue   float64                `bson:"effective_value" json:"effectiveValue"`
	DistributionType types.DistributionType `bson:"distribution_type" json:"distributionType"`
	Status           types.RecordStatus     `bson:"status" json:"status"`
	TicketIDs        []string               `bson:"ticket_ids,omitempty" json:"ticketIds,omitempty"`
	FailureReason    string                 `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`
	ErrorCode        string                 `bson:"error_code,omitempty" json:"errorCode,omitempty"`
}

// NewDistributedRecord builds the ledger entry for a successful distribution
func NewDistributedRecord(
	id, batchID string,
	position *StakingPosition,
	contract *StakingContract,
	months int,
	tickets int64,
	multiplier float64,
	distributionType types.DistributionType,
	ticketIDs []string,
	distributedAt time.Time,
) *RewardHistoryRecord {
	return &RewardHistoryRecord{
		ID:               id,
		BatchID:          batchID,
		UserID:           position.UserID,
		PositionID:       position.ID,
		ContractID:       contract.ID,
		ContractName:     contract.Name,
		NFT:              position.NFT,
		StakingDuration:  position.StakingDuration,
		DistributionDate: distributedAt.UTC(),
		Months:           months,
		OpenEntryTickets: tickets,
		BonusMultiplier:  multiplier,
		EffectiveValue:   staking.EffectiveValue(tickets, multiplier),
		DistributionType: distributionType,
		Status:           types.RecordStatusDistributed,
		TicketIDs:        ticketIDs,
	}
}

// NewFailedRecord builds a zero-ticket ledger entry describing a failed attempt
func NewFailedRecord(
	id, batchID string,
	position *StakingPosition,
	contractName string,
	distributionType types.DistributionType,
	cause error,
	attemptedAt time.Time,
) *RewardHistoryRecord {
	return &RewardHistoryRecord{
		ID:               id,
		BatchID:          batchID,
		UserID:           position.UserID,
		PositionID:       position.ID,
		ContractID:       position.ContractID,
		ContractName:     contractName,
		NFT:              position.NFT,
		StakingDuration:  position.StakingDuration,
		DistributionDate: attemptedAt.UTC(),
		DistributionType: distributionType,
		Status:           types.RecordStatusFailed,
		FailureReason:    cause.Error(),
		ErrorCode:        types.ErrorCode(cause),
	}
}

// UserRewardTotals aggregates the ledger for one user
type UserRewardTotals struct {
	UserID              string     `bson:"_id" json:"userId"`
	TotalTickets        int64      `bson:"total_tickets" json:"totalTickets"`
	TotalEffectiveValue float64    `bson:"total_effective_value" json:"totalEffectiveValue"`
	Distributions       int64      `bson:"distributions" json:"distributions"`
	LastDistribution    *time.Time `bson:"last_distribution" json:"lastDistribution"`
}

// ContractPerformance aggregates the ledger for one staking contract
type ContractPerformance struct {
	ContractID          string  `bson:"_id" json:"contractId"`
	TotalTickets        int64   `bson:"total_tickets" json:"totalTickets"`
	TotalEffectiveValue float64 `bson:"total_effective_value" json:"totalEffectiveValue"`
	Distributions       int64   `bson:"distributions" json:"distributions"`
	UniqueUsers         int64   `bson:"unique_users" json:"uniqueUsers"`
	UniquePositions     int64   `bson:"unique_positions" json:"uniquePositions"`
	AverageMultiplier   float64 `bson:"average_multiplier" json:"averageMultiplier"`
}

// MonthlyDistributionSummary is one calendar month of ledger activity
type MonthlyDistributionSummary struct {
	Month               string                           `bson:"_id" json:"month"` // YYYY-MM
	TotalTickets        int64                            `bson:"total_tickets" json:"totalTickets"`
	TotalEffectiveValue float64                          `bson:"total_effective_value" json:"totalEffectiveValue"`
	Distributions       int64                            `bson:"distributions" json:"distributions"`
	ByType              map[types.DistributionType]int64 `bson:"-" json:"byType"`
}
