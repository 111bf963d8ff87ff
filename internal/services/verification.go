package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/clients/chainclient"
	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/observability/metrics"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/naffles/nft-staking-rewards/internal/utils/poller"
	"github.com/rs/zerolog/log"
)

// Integrity score weights, summing to 100
const (
	ownerWeight    = 30
	nftWeight      = 30
	activeWeight   = 25
	durationWeight = 15
)

// Mismatched field names stored on the verification result
const (
	fieldOwner             = "owner"
	fieldNFT               = "nft"
	fieldStatus            = "status"
	fieldDuration          = "duration"
	fieldOnChainPositionID = "onChainPositionId"
)

// VerifyPosition compares a position with its on-chain record and stores the
// resulting integrity score on the position.
func (s *Service) VerifyPosition(ctx context.Context, positionID string) (*model.VerificationResult, error) {
	position, err := s.db.GetStakingPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}

	var result *model.VerificationResult
	if position.NFT.OnChainPositionID == "" {
		result = &model.VerificationResult{
			MismatchedFields: []string{fieldOnChainPositionID},
			CheckedAt:        s.now(),
		}
	} else {
		onChain, err := s.chain.VerifyPosition(ctx, position.NFT.Chain, position.NFT.OnChainPositionID)
		if err != nil {
			return nil, fmt.Errorf("failed to read on-chain position %s: %w", position.NFT.OnChainPositionID, err)
		}
		result = ScoreIntegrity(position, onChain, s.cfg.Verification.VerifiedThreshold, s.now())
	}

	if err := s.db.UpdatePositionVerification(ctx, position.ID, result); err != nil {
		return nil, fmt.Errorf("failed to store verification result: %w", err)
	}
	metrics.RecordVerification(result.Verified)

	if !result.Verified {
		log.Ctx(ctx).Warn().
			Str("position_id", position.ID).
			Float64("integrity_score", result.IntegrityScore).
			Strs("mismatched_fields", result.MismatchedFields).
			Msg("position failed on-chain verification")
	}

	return result, nil
}

// ScoreIntegrity weighs the fields of a stored position that match the chain
func ScoreIntegrity(
	position *model.StakingPosition, onChain *chainclient.OnChainPosition, threshold float64, now time.Time,
) *model.VerificationResult {
	var score float64
	var mismatched []string

	if strings.EqualFold(onChain.Owner, position.WalletAddress) {
		score += ownerWeight
	} else {
		mismatched = append(mismatched, fieldOwner)
	}

	if strings.EqualFold(onChain.NFTContract, position.NFT.ContractAddress) && onChain.TokenID == position.NFT.TokenID {
		score += nftWeight
	} else {
		mismatched = append(mismatched, fieldNFT)
	}

	if onChain.Active == (position.Status == types.PositionStatusActive) {
		score += activeWeight
	} else {
		mismatched = append(mismatched, fieldStatus)
	}

	if onChain.DurationMonths == position.StakingDuration.Months() {
		score += durationWeight
	} else {
		mismatched = append(mismatched, fieldDuration)
	}

	return &model.VerificationResult{
		Verified:         score >= threshold,
		IntegrityScore:   score,
		MismatchedFields: mismatched,
		CheckedAt:        now,
	}
}

// StartVerificationAudit periodically re-verifies active positions
func (s *Service) StartVerificationAudit(ctx context.Context) {
	auditPoller := poller.NewPoller(
		s.cfg.Poller.VerificationPollingInterval,
		metrics.RecordPollerDuration("verification", s.auditPositions),
		poller.WithClock(s.clock),
	)
	go auditPoller.Start(ctx)
}

func (s *Service) auditPositions(ctx context.Context) error {
	checkedBefore := s.now().Add(-s.cfg.Poller.VerificationMaxAge)
	positions, err := s.db.FindPositionsForVerification(ctx, checkedBefore, int64(s.cfg.Poller.VerificationBatchSize))
	if err != nil {
		return fmt.Errorf("failed to find positions for verification: %w", err)
	}

	var failed int
	for _, position := range positions {
		if _, err := s.VerifyPosition(ctx, position.ID); err != nil {
			failed++
			log.Ctx(ctx).Error().
				Err(err).
				Str("position_id", position.ID).
				Msg("failed to verify position")
		}
	}

	log.Ctx(ctx).Debug().
		Int("positions", len(positions)).
		Int("failed", failed).
		Msg("verification audit finished")

	return nil
}
