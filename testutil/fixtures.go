package testutil

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/types"
)

// NewContract returns an active, validated contract paying 10/12/15 tickets
// per month for the 6/12/36 month tiers.
func NewContract(t *testing.T) *model.StakingContract {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.StakingContract{
		ID:              gofakeit.UUID(),
		Name:            gofakeit.Company(),
		Chain:           "ethereum",
		ContractAddress: gofakeit.Numerify("0x##########################################"),
		RewardStructure: types.NewRewardStructure(10, 12, 15),
		IsActive:        true,
		IsValidated:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewPosition returns an active position on contract staked at stakedAt
func NewPosition(
	t *testing.T, contract *model.StakingContract, duration types.StakingDuration, stakedAt time.Time,
) *model.StakingPosition {
	t.Helper()

	nft := model.NFTIdentity{
		Chain:             contract.Chain,
		ContractAddress:   contract.ContractAddress,
		TokenID:           gofakeit.Numerify("#######"),
		OnChainPositionID: gofakeit.UUID(),
	}

	return model.NewStakingPosition(
		gofakeit.UUID(),
		gofakeit.UUID(),
		gofakeit.Numerify("0x########################################"),
		contract.ID,
		nft,
		duration,
		stakedAt.Truncate(time.Millisecond),
	)
}
