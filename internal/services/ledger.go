package services

import (
	"context"
	"fmt"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/rs/zerolog/log"
)

// UserRewards is the ledger view of one user together with their positions
type UserRewards struct {
	Totals    *model.UserRewardTotals `json:"totals"`
	Positions []model.StakingPosition `json:"positions"`
}

func (s *Service) GetUserRewards(ctx context.Context, userID string) (*UserRewards, error) {
	totals, err := s.db.GetUserRewardTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user rewards: %w", err)
	}

	positions, err := s.db.GetStakingPositionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user positions: %w", err)
	}

	return &UserRewards{
		Totals:    totals,
		Positions: positions,
	}, nil
}

func (s *Service) GetContractPerformance(ctx context.Context, contractID string) (*model.ContractPerformance, error) {
	if _, err := s.db.GetStakingContract(ctx, contractID); err != nil {
		return nil, err
	}
	return s.db.GetContractPerformance(ctx, contractID)
}

// GetMonthlySummary covers whole calendar months, from inclusive to exclusive
func (s *Service) GetMonthlySummary(ctx context.Context, from, to time.Time) ([]model.MonthlyDistributionSummary, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid range: %s is not after %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return s.db.GetMonthlyDistributionSummary(ctx, from.UTC(), to.UTC())
}

// RebuildPositionSummary recomputes the cached reward summary of a position
// from the ledger. It reports whether the cached total had drifted.
func (s *Service) RebuildPositionSummary(ctx context.Context, positionID string) (*model.StakingPosition, bool, error) {
	before, err := s.db.GetStakingPosition(ctx, positionID)
	if err != nil {
		return nil, false, err
	}

	ledgerTotal, err := s.db.SumPositionLedgerTickets(ctx, positionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to sum ledger tickets: %w", err)
	}

	rebuilt, err := s.db.RebuildPositionRewardSummary(ctx, positionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to rebuild reward summary: %w", err)
	}

	drifted := before.TotalRewardsEarned != ledgerTotal ||
		len(before.RewardSummary) != len(rebuilt.RewardSummary)
	if drifted {
		log.Ctx(ctx).Warn().
			Str("position_id", positionID).
			Int64("cached_total", before.TotalRewardsEarned).
			Int64("ledger_total", ledgerTotal).
			Msg("reward summary cache had drifted from the ledger")
	}

	return rebuilt, drifted, nil
}
