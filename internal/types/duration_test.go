package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRewardStructure(t *testing.T) {
	rs := RewardStructure{
		SixMonths:    RewardTier{TicketsPerMonth: 5, BonusMultiplier: 1.1},
		TwelveMonths: RewardTier{TicketsPerMonth: 12, BonusMultiplier: 1.25},
		ThreeYears:   RewardTier{TicketsPerMonth: 40, BonusMultiplier: 1.5},
	}

	t.Run("supported durations", func(t *testing.T) {
		tier, err := rs.GetRewardStructure(Duration6Months)
		require.NoError(t, err)
		assert.Equal(t, rs.SixMonths, tier)

		tier, err = rs.GetRewardStructure(Duration12Months)
		require.NoError(t, err)
		assert.Equal(t, rs.TwelveMonths, tier)

		tier, err = rs.GetRewardStructure(Duration36Months)
		require.NoError(t, err)
		assert.Equal(t, rs.ThreeYears, tier)
	})
	t.Run("unsupported durations", func(t *testing.T) {
		for _, d := range []StakingDuration{0, 1, 3, 24, -6} {
			_, err := rs.GetRewardStructure(d)
			var target *UnsupportedDurationError
			require.ErrorAs(t, err, &target, "duration %d", d)
			assert.Equal(t, int(d), target.Duration)
			assert.Equal(t, ErrCodeUnsupportedDuration, ErrorCode(err))
		}
	})
}

func TestRewardStructure_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		rs := NewRewardStructure(1, 2, 3)
		require.NoError(t, rs.Validate())
		assert.Equal(t, DefaultTwelveMonthMultiplier, rs.TwelveMonths.BonusMultiplier)
	})
	t.Run("zero tickets allowed", func(t *testing.T) {
		rs := NewRewardStructure(0, 0, 0)
		require.NoError(t, rs.Validate())
	})
	t.Run("negative tickets", func(t *testing.T) {
		rs := NewRewardStructure(1, -2, 3)
		err := rs.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "12 months")
	})
	t.Run("multiplier below one", func(t *testing.T) {
		rs := NewRewardStructure(1, 2, 3)
		rs.ThreeYears.BonusMultiplier = 0.5
		require.Error(t, rs.Validate())
	})
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("processing position: %w", &ContractInactiveError{ContractID: "c1"})
	assert.Equal(t, ErrCodeContractInactive, ErrorCode(wrapped))
	assert.False(t, IsRetryable(wrapped))

	ticketErr := &TicketIssuanceError{UserID: "u1", Count: 3, Err: errors.New("boom")}
	assert.Equal(t, ErrCodeTicketIssuance, ErrorCode(ticketErr))
	assert.True(t, IsRetryable(ticketErr))

	assert.Equal(t, ErrCodeInternal, ErrorCode(errors.New("unknown")))
	assert.Empty(t, ErrorCode(nil))
}
