package types

import "fmt"

// StakingDuration is the lock period of a position in months
type StakingDuration int

const (
	Duration6Months  StakingDuration = 6
	Duration12Months StakingDuration = 12
	Duration36Months StakingDuration = 36
)

// Default bonus multipliers per tier, 1.1x / 1.25x / 1.5x
const (
	DefaultSixMonthMultiplier    = 1.10
	DefaultTwelveMonthMultiplier = 1.25
	DefaultThreeYearMultiplier   = 1.50
)

func SupportedDurations() []StakingDuration {
	return []StakingDuration{Duration6Months, Duration12Months, Duration36Months}
}

func (d StakingDuration) Months() int {
	return int(d)
}

func (d StakingDuration) IsSupported() bool {
	switch d {
	case Duration6Months, Duration12Months, Duration36Months:
		return true
	default:
		return false
	}
}

func (d StakingDuration) String() string {
	return fmt.Sprintf("%d months", int(d))
}

// RewardTier is the monthly reward rate of a single duration bucket
type RewardTier struct {
	TicketsPerMonth int64   `bson:"tickets_per_month" json:"ticketsPerMonth" yaml:"tickets-per-month"`
	BonusMultiplier float64 `bson:"bonus_multiplier" json:"bonusMultiplier" yaml:"bonus-multiplier"`
}

// RewardStructure holds the three fixed tiers configured for a collection
type RewardStructure struct {
	SixMonths    RewardTier `bson:"six_months" json:"sixMonths" yaml:"six-months"`
	TwelveMonths RewardTier `bson:"twelve_months" json:"twelveMonths" yaml:"twelve-months"`
	ThreeYears   RewardTier `bson:"three_years" json:"threeYears" yaml:"three-years"`
}

// NewRewardStructure builds a structure with the default tier multipliers
func NewRewardStructure(sixMonthTickets, twelveMonthTickets, threeYearTickets int64) RewardStructure {
	return RewardStructure{
		SixMonths:    RewardTier{TicketsPerMonth: sixMonthTickets, BonusMultiplier: DefaultSixMonthMultiplier},
		TwelveMonths: RewardTier{TicketsPerMonth: twelveMonthTickets, BonusMultiplier: DefaultTwelveMonthMultiplier},
		ThreeYears:   RewardTier{TicketsPerMonth: threeYearTickets, BonusMultiplier: DefaultThreeYearMultiplier},
	}
}

// GetRewardStructure resolves the tier for a duration. Any duration outside
// 6/12/36 months is a configuration error.
func (rs RewardStructure) GetRewardStructure(duration StakingDuration) (RewardTier, error) {
	switch duration {
	case Duration6Months:
		return rs.SixMonths, nil
	case Duration12Months:
		return rs.TwelveMonths, nil
	case Duration36Months:
		return rs.ThreeYears, nil
	default:
		return RewardTier{}, &UnsupportedDurationError{Duration: int(duration)}
	}
}

func (rs RewardStructure) Validate() error {
	for _, d := range SupportedDurations() {
		tier, err := rs.GetRewardStructure(d)
		if err != nil {
			return err
		}
		if tier.TicketsPerMonth < 0 {
			return fmt.Errorf("tickets per month for %s tier must not be negative", d)
		}
		if tier.BonusMultiplier < 1 {
			return fmt.Errorf("bonus multiplier for %s tier must be at least 1", d)
		}
	}

	return nil
}
