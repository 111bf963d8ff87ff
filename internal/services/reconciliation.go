package services

import (
	"context"

	"github.com/naffles/nft-staking-rewards/internal/types"
)

// positions whose anchor is at least this many months old are considered
// to have missed a monthly run
const reconciliationBacklogMonths = 2

// RunReconciliation pays positions that missed one or more monthly runs.
// Each gets a single missed record for the whole backlog.
func (s *Service) RunReconciliation(ctx context.Context) (*BatchSummary, error) {
	return s.runBatch(ctx, types.TriggerReconciliation, nil, s.now())
}
