package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	bodies  [][]byte
	block   chan struct{}
	failErr error
	closed  bool
}

func (p *recordingPublisher) Publish(ctx context.Context, body []byte) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.failErr != nil {
		return p.failErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestQueueManager_PublishesAndDrains(t *testing.T) {
	publisher := &recordingPublisher{}
	qm := NewQueueManagerWithPublisher(publisher, 10, time.Second)
	qm.Start(context.Background())

	for i := 0; i < 3; i++ {
		err := qm.SendRewardNotification(context.Background(), "user-1", RewardNotification{
			UserID:           "user-1",
			Tickets:          12,
			DistributionType: types.DistributionTypeMonthly,
		})
		require.NoError(t, err)
	}
	qm.Shutdown()

	require.Len(t, publisher.bodies, 3)
	assert.True(t, publisher.closed)

	var decoded RewardNotification
	require.NoError(t, json.Unmarshal(publisher.bodies[0], &decoded))
	assert.Equal(t, int64(12), decoded.Tickets)

	err := qm.SendRewardNotification(context.Background(), "user-1", RewardNotification{})
	require.Error(t, err)
}

func TestQueueManager_FullBufferNeverBlocks(t *testing.T) {
	publisher := &recordingPublisher{block: make(chan struct{})}
	qm := NewQueueManagerWithPublisher(publisher, 1, time.Second)
	// no worker: the buffer fills after one message

	require.NoError(t, qm.SendRewardNotification(context.Background(), "user-1", RewardNotification{}))

	err := qm.SendRewardNotification(context.Background(), "user-2", RewardNotification{})
	var timeoutErr *types.NotificationTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "user-2", timeoutErr.UserID)
	assert.ErrorIs(t, err, ErrQueueFull)

	close(publisher.block)
	qm.Start(context.Background())
	qm.Shutdown()
	assert.Len(t, publisher.bodies, 1)
}

func TestQueueManager_PublishTimeout(t *testing.T) {
	// a publisher that never returns on its own is cut off by the timeout
	publisher := &recordingPublisher{block: make(chan struct{})}
	qm := NewQueueManagerWithPublisher(publisher, 1, 10*time.Millisecond)
	qm.Start(context.Background())

	require.NoError(t, qm.SendRewardNotification(context.Background(), "user-1", RewardNotification{}))
	qm.Shutdown()
	assert.Empty(t, publisher.bodies)
}
