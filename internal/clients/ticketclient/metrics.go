package ticketclient

import (
	"context"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/observability/metrics"
)

type ticketClientWithMetrics struct {
	tickets TicketIssuanceInterface
}

func NewTicketClientWithMetrics(tickets TicketIssuanceInterface) *ticketClientWithMetrics {
	return &ticketClientWithMetrics{tickets: tickets}
}

func (t *ticketClientWithMetrics) MintFreeEntries(
	ctx context.Context, userID string, count int64, reference string,
) ([]string, error) {
	startTime := time.Now()
	ids, err := t.tickets.MintFreeEntries(ctx, userID, count, reference)
	metrics.RecordTicketClientLatency(time.Since(startTime), "MintFreeEntries", err != nil)

	return ids, err
}
