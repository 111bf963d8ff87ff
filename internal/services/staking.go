package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/rs/zerolog/log"
)

type StakeRequest struct {
	UserID            string                `json:"userId"`
	WalletAddress     string                `json:"walletAddress"`
	ContractID        string                `json:"contractId"`
	TokenID           string                `json:"tokenId"`
	OnChainPositionID string                `json:"onChainPositionId"`
	Duration          types.StakingDuration `json:"stakingDuration"`
}

// ErrNFTAlreadyStaked is returned when the NFT backs another active position
var ErrNFTAlreadyStaked = errors.New("nft is already staked")

// Stake opens a position for an NFT of an active contract
func (s *Service) Stake(ctx context.Context, req StakeRequest) (*model.StakingPosition, error) {
	if !req.Duration.IsSupported() {
		return nil, &types.UnsupportedDurationError{Duration: int(req.Duration)}
	}

	contract, err := s.db.GetStakingContract(ctx, req.ContractID)
	if err != nil {
		return nil, err
	}
	if !contract.IsActive {
		return nil, &types.ContractInactiveError{
			ContractID: contract.ID,
			Active:     contract.IsActive,
			Validated:  contract.IsValidated,
		}
	}

	nft := model.NFTIdentity{
		Chain:             contract.Chain,
		ContractAddress:   contract.ContractAddress,
		TokenID:           req.TokenID,
		OnChainPositionID: req.OnChainPositionID,
	}
	position := model.NewStakingPosition(
		uuid.NewString(), req.UserID, req.WalletAddress, contract.ID, nft, req.Duration, s.now(),
	)
	if err := position.Validate(); err != nil {
		return nil, err
	}

	if err := s.db.StakePosition(ctx, position); err != nil {
		if db.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", ErrNFTAlreadyStaked, nft.ID())
		}
		return nil, fmt.Errorf("failed to stake position: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("position_id", position.ID).
		Str("user_id", position.UserID).
		Str("contract_id", contract.ID).
		Stringer("duration", position.StakingDuration).
		Msg("nft staked")

	return position, nil
}

// Unstake closes a position. Before the lock period ends a reason is
// required and the early unstake penalty is recorded.
func (s *Service) Unstake(ctx context.Context, positionID, proof, reason string) (*model.StakingPosition, error) {
	position, err := s.db.GetStakingPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}

	if err := position.Unstake(proof, reason, s.now()); err != nil {
		return nil, err
	}

	if err := s.db.UnstakePosition(ctx, position); err != nil {
		if db.IsNotFoundError(err) {
			// unstaked concurrently
			return nil, &types.PositionNotUnstakableError{PositionID: positionID, Reason: "position is no longer active"}
		}
		return nil, fmt.Errorf("failed to unstake position: %w", err)
	}

	event := log.Ctx(ctx).Info().
		Str("position_id", position.ID).
		Str("user_id", position.UserID)
	if position.EarlyUnstakePenalty != nil {
		event = event.
			Int64("penalty", position.EarlyUnstakePenalty.PenaltyAmount).
			Str("reason", position.EarlyUnstakePenalty.Reason)
	}
	event.Msg("position unstaked")

	return position, nil
}
