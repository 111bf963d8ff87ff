package staking

import (
	"testing"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestMonthsBetween(t *testing.T) {
	cases := []struct {
		name     string
		from, to time.Time
		expected int
	}{
		{"same instant", date(2025, 1, 10), date(2025, 1, 10), 0},
		{"to before from", date(2025, 3, 10), date(2025, 1, 10), 0},
		{"one day short of a month", date(2025, 1, 10), date(2025, 2, 9), 0},
		{"exactly one month", date(2025, 1, 10), date(2025, 2, 10), 1},
		{"35 days", date(2025, 1, 1), date(2025, 2, 5), 1},
		{"70 days", date(2025, 1, 1), date(2025, 3, 12), 2},
		{"across year", date(2024, 11, 15), date(2025, 2, 16), 3},
		{"time of day counts", date(2025, 1, 10), date(2025, 2, 10).Add(-time.Minute), 0},
		{"month end normalisation", date(2025, 1, 31), date(2025, 2, 28), 0},
		{"full lock period", date(2025, 1, 1), date(2026, 1, 1), 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MonthsBetween(tc.from, tc.to))
		})
	}
}

func TestUnstakeAt(t *testing.T) {
	stakedAt := date(2025, 1, 15)
	assert.Equal(t, date(2025, 7, 15), UnstakeAt(stakedAt, types.Duration6Months))
	assert.Equal(t, date(2026, 1, 15), UnstakeAt(stakedAt, types.Duration12Months))
	assert.Equal(t, date(2028, 1, 15), UnstakeAt(stakedAt, types.Duration36Months))
}

func TestEffectiveValue(t *testing.T) {
	assert.Equal(t, 15.0, EffectiveValue(12, 1.25))
	assert.Equal(t, 11.0, EffectiveValue(10, 1.1))
	assert.Equal(t, 0.0, EffectiveValue(0, 1.5))
}

func TestEarlyUnstakePenalty(t *testing.T) {
	stakedAt := date(2025, 1, 1)
	unstakeAt := UnstakeAt(stakedAt, types.Duration12Months)

	t.Run("no penalty after lock period", func(t *testing.T) {
		assert.Zero(t, EarlyUnstakePenalty(1000, stakedAt, unstakeAt, unstakeAt))
		assert.Zero(t, EarlyUnstakePenalty(1000, stakedAt, unstakeAt, unstakeAt.AddDate(0, 1, 0)))
	})
	t.Run("no earnings no penalty", func(t *testing.T) {
		assert.Zero(t, EarlyUnstakePenalty(0, stakedAt, unstakeAt, stakedAt.AddDate(0, 1, 0)))
	})
	t.Run("half way", func(t *testing.T) {
		midpoint := stakedAt.Add(unstakeAt.Sub(stakedAt) / 2)
		// 1000 * 0.5 * 0.10
		assert.Equal(t, int64(50), EarlyUnstakePenalty(1000, stakedAt, unstakeAt, midpoint))
	})
	t.Run("floor", func(t *testing.T) {
		midpoint := stakedAt.Add(unstakeAt.Sub(stakedAt) / 2)
		// 15 * 0.5 * 0.10 = 0.75
		assert.Equal(t, int64(0), EarlyUnstakePenalty(15, stakedAt, unstakeAt, midpoint))
	})
	t.Run("bounded by 10 percent of lifetime earnings", func(t *testing.T) {
		for _, earned := range []int64{1, 9, 10, 99, 1234, 1_000_000} {
			for _, at := range []time.Time{stakedAt.Add(-time.Hour), stakedAt, stakedAt.AddDate(0, 3, 0), unstakeAt.Add(-time.Second)} {
				penalty := EarlyUnstakePenalty(earned, stakedAt, unstakeAt, at)
				assert.LessOrEqual(t, float64(penalty), 0.10*float64(earned))
				assert.GreaterOrEqual(t, penalty, int64(0))
			}
		}
	})
}
