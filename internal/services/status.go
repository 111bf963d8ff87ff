package services

import (
	"context"
	"fmt"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db/model"
)

type DistributionStatus struct {
	LastRun          *time.Time                  `json:"lastRun"`
	NextRun          *time.Time                  `json:"nextRun"`
	TotalDistributed int64                       `json:"totalDistributed"`
	TotalErrors      int64                       `json:"totalErrors"`
	IsRunning        bool                        `json:"isRunning"`
	LastBatch        *model.BatchSummaryDocument `json:"lastBatch,omitempty"`
}

// GetDistributionStatus reports the totals shared by all instances together
// with the running flag and next scheduled run of this process.
func (s *Service) GetDistributionStatus(ctx context.Context) (*DistributionStatus, error) {
	stored, err := s.db.GetDistributionStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load distribution status: %w", err)
	}

	return &DistributionStatus{
		LastRun:          stored.LastRun,
		NextRun:          s.state.NextRun(),
		TotalDistributed: stored.TotalDistributed,
		TotalErrors:      stored.TotalErrors,
		IsRunning:        s.state.IsRunning(),
		LastBatch:        stored.LastBatch,
	}, nil
}
