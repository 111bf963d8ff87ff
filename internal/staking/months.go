// Package staking holds the time and reward arithmetic behind the position
// state machine. Everything here is pure: callers pass in "now".
package staking

import (
	"time"

	"github.com/naffles/nft-staking-rewards/internal/types"
)

// MonthsBetween returns the number of whole calendar months elapsed from
// "from" to "to". A month is complete once the same day and time of day has
// been reached. Non-positive spans return 0.
func MonthsBetween(from, to time.Time) int {
	from, to = from.UTC(), to.UTC()
	if !to.After(from) {
		return 0
	}

	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if from.AddDate(0, months, 0).After(to) {
		months--
	}
	if months < 0 {
		return 0
	}

	return months
}

// UnstakeAt is the end of the lock period for a position staked at stakedAt
func UnstakeAt(stakedAt time.Time, duration types.StakingDuration) time.Time {
	return stakedAt.UTC().AddDate(0, duration.Months(), 0)
}

// DistributionCutoff returns the instant a reward anchor must precede for the
// position to owe at least the given number of months.
func DistributionCutoff(now time.Time, months int) time.Time {
	return now.UTC().AddDate(0, -months, 0)
}
