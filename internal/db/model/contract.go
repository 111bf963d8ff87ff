package model

import (
	"time"

	"github.com/naffles/nft-staking-rewards/internal/types"
)

const StakingContractsCollection = "staking_contracts"

// StakingContract is the per-collection reward configuration. Aggregate
// counters are only ever changed with $inc.
type StakingContract struct {
	ID                      string                `bson:"_id" json:"id"`
	Name                    string                `bson:"name" json:"name"`
	Chain                   string                `bson:"chain" json:"chain"`
	ContractAddress         string                `bson:"contract_address" json:"contractAddress"`
	RewardStructure         types.RewardStructure `bson:"reward_structure" json:"rewardStructure"`
	IsActive                bool                  `bson:"is_active" json:"isActive"`
	IsValidated             bool                  `bson:"is_validated" json:"isValidated"`
	TotalStaked             int64                 `bson:"total_staked" json:"totalStaked"`
	TotalRewardsDistributed int64                 `bson:"total_rewards_distributed" json:"totalRewardsDistributed"`
	CreatedAt               time.Time             `bson:"created_at" json:"createdAt"`
	UpdatedAt               time.Time             `bson:"updated_at" json:"updatedAt"`
}

// CanDistribute reports whether rewards may be paid for positions of this contract
func (c *StakingContract) CanDistribute() bool {
	return c.IsActive && c.IsValidated
}

// CheckDistributable returns ContractInactiveError unless the contract is
// both active and validated.
func (c *StakingContract) CheckDistributable() error {
	if c.CanDistribute() {
		return nil
	}

	return &types.ContractInactiveError{
		ContractID: c.ID,
		Active:     c.IsActive,
		Validated:  c.IsValidated,
	}
}
