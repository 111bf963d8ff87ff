package staking

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxEarlyUnstakePenaltyRate caps the early unstake penalty at 10% of
// lifetime earnings.
var MaxEarlyUnstakePenaltyRate = decimal.NewFromFloat(0.10)

// EffectiveValue is tickets x multiplier, computed in decimal so the ledger
// never stores binary rounding noise (10 x 1.1 == 11, not 11.000000000000002).
func EffectiveValue(tickets int64, multiplier float64) float64 {
	return decimal.NewFromInt(tickets).
		Mul(decimal.NewFromFloat(multiplier)).
		InexactFloat64()
}

// EarlyUnstakePenalty returns
//
//	floor(totalRewardsEarned * remaining / totalDuration * 0.10)
//
// where remaining is the part of the lock period left at unstakedAt. The
// result never exceeds 10% of totalRewardsEarned and is 0 once the lock
// period is over.
func EarlyUnstakePenalty(totalRewardsEarned int64, stakedAt, unstakeAt, unstakedAt time.Time) int64 {
	if totalRewardsEarned <= 0 || !unstakedAt.Before(unstakeAt) {
		return 0
	}

	total := unstakeAt.Sub(stakedAt)
	if total <= 0 {
		return 0
	}
	remaining := unstakeAt.Sub(unstakedAt)
	if remaining > total {
		remaining = total
	}

	earned := decimal.NewFromInt(totalRewardsEarned)
	penalty := earned.
		Mul(decimal.NewFromInt(int64(remaining))).
		Div(decimal.NewFromInt(int64(total))).
		Mul(MaxEarlyUnstakePenaltyRate).
		Floor()

	ceiling := earned.Mul(MaxEarlyUnstakePenaltyRate).Floor()
	if penalty.GreaterThan(ceiling) {
		penalty = ceiling
	}

	return penalty.IntPart()
}
