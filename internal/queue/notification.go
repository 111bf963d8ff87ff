package queue

import (
	"context"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/types"
)

// RewardNotification is published once per committed reward
type RewardNotification struct {
	UserID           string                 `json:"userId"`
	PositionID       string                 `json:"positionId"`
	RecordID         string                 `json:"recordId"`
	NFTID            string                 `json:"nftId"`
	ContractName     string                 `json:"contractName"`
	Tickets          int64                  `json:"tickets"`
	BonusMultiplier  float64                `json:"bonusMultiplier"`
	EffectiveValue   float64                `json:"effectiveValue"`
	DistributionType types.DistributionType `json:"distributionType"`
	DistributedAt    time.Time              `json:"distributedAt"`
}

//go:generate mockery --name=Notifier --output=../../tests/mocks --outpkg=mocks --filename=mock_notifier.go
type Notifier interface {
	// SendRewardNotification hands a reward notification to the transport.
	// Implementations must not block the caller.
	SendRewardNotification(ctx context.Context, userID string, notification RewardNotification) error
}
