package chainclient

import (
	"context"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/observability/metrics"
)

type chainClientWithMetrics struct {
	chain ChainInterface
}

func NewChainClientWithMetrics(chain ChainInterface) *chainClientWithMetrics {
	return &chainClientWithMetrics{chain: chain}
}

func (c *chainClientWithMetrics) VerifyPosition(
	ctx context.Context, chain, onChainPositionID string,
) (*OnChainPosition, error) {
	return runChainClientMethodWithMetrics("VerifyPosition", func() (*OnChainPosition, error) {
		return c.chain.VerifyPosition(ctx, chain, onChainPositionID)
	})
}

func runChainClientMethodWithMetrics[T any](method string, f func() (T, error)) (T, error) {
	startTime := time.Now()
	v, err := f()
	duration := time.Since(startTime)

	metrics.RecordChainClientLatency(duration, method, err != nil)
	return v, err
}
