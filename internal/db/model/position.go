package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/staking"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/naffles/nft-staking-rewards/internal/utils/state"
)

const StakingPositionsCollection = "staking_positions"

// ErrInvalidPosition is returned when a new position fails validation
var ErrInvalidPosition = errors.New("invalid staking position")

type NFTIdentity struct {
	Chain             string `bson:"chain" json:"chain"`
	ContractAddress   string `bson:"contract_address" json:"contractAddress"`
	TokenID           string `bson:"token_id" json:"tokenId"`
	OnChainPositionID string `bson:"on_chain_position_id,omitempty" json:"onChainPositionId,omitempty"`
}

// ID is the human readable NFT id used in notifications
func (n NFTIdentity) ID() string {
	return n.ContractAddress + ":" + n.TokenID
}

// RewardSummaryEntry is the denormalized copy of a ledger record kept on the
// position. It is a cache; the ledger is the source of truth.
type RewardSummaryEntry struct {
	RecordID         string                 `bson:"record_id" json:"recordId"`
	DistributedAt    time.Time              `bson:"distributed_at" json:"distributedAt"`
	Tickets          int64                  `bson:"tickets" json:"tickets"`
	BonusMultiplier  float64                `bson:"bonus_multiplier" json:"bonusMultiplier"`
	DistributionType types.DistributionType `bson:"distribution_type" json:"distributionType"`
}

type EarlyUnstakePenalty struct {
	PenaltyAmount int64     `bson:"penalty_amount" json:"penaltyAmount"`
	Reason        string    `bson:"reason" json:"reason"`
	AppliedAt     time.Time `bson:"applied_at" json:"appliedAt"`
}

type VerificationResult struct {
	Verified         bool      `bson:"verified" json:"verified"`
	IntegrityScore   float64   `bson:"integrity_score" json:"integrityScore"`
	MismatchedFields []string  `bson:"mismatched_fields,omitempty" json:"mismatchedFields,omitempty"`
	CheckedAt        time.Time `bson:"checked_at" json:"checkedAt"`
}

type ProcessingLock struct {
	Owner     string    `bson:"owner"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type StakingPosition struct {
	ID                     string                `bson:"_id" json:"id"`
	UserID                 string                `bson:"user_id" json:"userId"`
	WalletAddress          string                `bson:"wallet_address" json:"walletAddress"`
	ContractID             string                `bson:"contract_id" json:"contractId"`
	NFT                    NFTIdentity           `bson:"nft" json:"nft"`
	StakingDuration        types.StakingDuration `bson:"staking_duration" json:"stakingDuration"`
	StakedAt               time.Time             `bson:"staked_at" json:"stakedAt"`
	UnstakeAt              time.Time             `bson:"unstake_at" json:"unstakeAt"`
	Status                 types.PositionStatus  `bson:"status" json:"status"`
	LastRewardDistribution *time.Time            `bson:"last_reward_distribution" json:"lastRewardDistribution"`
	TotalRewardsEarned     int64                 `bson:"total_rewards_earned" json:"totalRewardsEarned"`
	RewardSummary          []RewardSummaryEntry  `bson:"reward_summary" json:"rewardSummary"`
	ActualUnstakedAt       *time.Time            `bson:"actual_unstaked_at,omitempty" json:"actualUnstakedAt,omitempty"`
	EarlyUnstakePenalty    *EarlyUnstakePenalty  `bson:"early_unstake_penalty,omitempty" json:"earlyUnstakePenalty,omitempty"`
	UnstakeProof           string                `bson:"unstake_proof,omitempty" json:"unstakeProof,omitempty"`
	Verification           *VerificationResult   `bson:"verification,omitempty" json:"verification,omitempty"`
	ProcessingLock         *ProcessingLock       `bson:"processing_lock,omitempty" json:"-"`
	CreatedAt              time.Time             `bson:"created_at" json:"createdAt"`
}

// NewStakingPosition creates an active position. UnstakeAt is fixed here and
// never changes afterwards.
func NewStakingPosition(
	id, userID, walletAddress, contractID string,
	nft NFTIdentity,
	duration types.StakingDuration,
	stakedAt time.Time,
) *StakingPosition {
	stakedAt = stakedAt.UTC()
	return &StakingPosition{
		ID:              id,
		UserID:          userID,
		WalletAddress:   walletAddress,
		ContractID:      contractID,
		NFT:             nft,
		StakingDuration: duration,
		StakedAt:        stakedAt,
		UnstakeAt:       staking.UnstakeAt(stakedAt, duration),
		Status:          types.PositionStatusActive,
		RewardSummary:   []RewardSummaryEntry{},
		CreatedAt:       stakedAt,
	}
}

func (p *StakingPosition) IsEligibleForRewards(now time.Time) bool {
	return p.Status == types.PositionStatusActive && now.Before(p.UnstakeAt)
}

func (p *StakingPosition) CanUnstake(now time.Time) bool {
	return p.Status == types.PositionStatusActive && !now.Before(p.UnstakeAt)
}

// RewardAnchor is the instant reward months are counted from
func (p *StakingPosition) RewardAnchor() time.Time {
	if p.LastRewardDistribution != nil {
		return *p.LastRewardDistribution
	}
	return p.StakedAt
}

func (p *StakingPosition) PendingRewardMonths(now time.Time) int {
	return staking.MonthsBetween(p.RewardAnchor(), now)
}

// ApplyRewardDistribution updates the in-memory reward fields and returns the
// summary entry that has to be persisted together with the ledger record.
func (p *StakingPosition) ApplyRewardDistribution(
	recordID string,
	tickets int64,
	multiplier float64,
	distributionType types.DistributionType,
	now time.Time,
) RewardSummaryEntry {
	now = now.UTC()
	entry := RewardSummaryEntry{
		RecordID:         recordID,
		DistributedAt:    now,
		Tickets:          tickets,
		BonusMultiplier:  multiplier,
		DistributionType: distributionType,
	}

	p.RewardSummary = append(p.RewardSummary, entry)
	p.TotalRewardsEarned += tickets
	// never move the anchor backwards
	if p.LastRewardDistribution == nil || now.After(*p.LastRewardDistribution) {
		p.LastRewardDistribution = &now
	}

	return entry
}

// Unstake transitions the position to unstaked. Unstaking before UnstakeAt
// requires a reason and records the early unstake penalty.
func (p *StakingPosition) Unstake(proof, reason string, now time.Time) error {
	if !state.IsQualifiedStatusForPositionStatusChange(p.Status, types.PositionStatusUnstaked) {
		return &types.PositionNotUnstakableError{PositionID: p.ID, Reason: "position is " + p.Status.String()}
	}

	now = now.UTC()
	early := now.Before(p.UnstakeAt)
	reason = strings.TrimSpace(reason)
	if early && reason == "" {
		return types.ErrEarlyUnstakeReasonRequired
	}

	p.Status = types.PositionStatusUnstaked
	p.ActualUnstakedAt = &now
	p.UnstakeProof = proof

	if early {
		p.EarlyUnstakePenalty = &EarlyUnstakePenalty{
			PenaltyAmount: staking.EarlyUnstakePenalty(p.TotalRewardsEarned, p.StakedAt, p.UnstakeAt, now),
			Reason:        reason,
			AppliedAt:     now,
		}
	}

	return nil
}

// Validate checks the fields required before a position is persisted
func (p *StakingPosition) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidPosition)
	case p.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidPosition)
	case p.ContractID == "":
		return fmt.Errorf("%w: contract id is required", ErrInvalidPosition)
	case p.NFT.ContractAddress == "" || p.NFT.TokenID == "":
		return fmt.Errorf("%w: nft contract address and token id are required", ErrInvalidPosition)
	case !p.StakingDuration.IsSupported():
		return &types.UnsupportedDurationError{Duration: int(p.StakingDuration)}
	case !p.UnstakeAt.After(p.StakedAt):
		return fmt.Errorf("%w: unstake time must be after stake time", ErrInvalidPosition)
	}

	return nil
}
