package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/naffles/nft-staking-rewards/internal/observability/metrics"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/rs/zerolog/log"
)

var ErrQueueFull = errors.New("notification buffer is full")

type message struct {
	userID string
	body   []byte
}

// QueueManager buffers reward notifications and publishes them from a single
// background worker so a slow transport never blocks a distribution.
type QueueManager struct {
	publisher      Publisher
	buffer         chan message
	publishTimeout time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewQueueManager(cfg *config.NotificationConfig) (*QueueManager, error) {
	publisher, err := newRabbitPublisher(cfg)
	if err != nil {
		return nil, err
	}

	return NewQueueManagerWithPublisher(publisher, cfg.BufferSize, cfg.PublishTimeout), nil
}

func NewQueueManagerWithPublisher(publisher Publisher, bufferSize int, publishTimeout time.Duration) *QueueManager {
	return &QueueManager{
		publisher:      publisher,
		buffer:         make(chan message, bufferSize),
		publishTimeout: publishTimeout,
	}
}

// Start runs the publishing worker until Shutdown drains the buffer
func (qm *QueueManager) Start(ctx context.Context) {
	qm.wg.Add(1)
	go func() {
		defer qm.wg.Done()
		for msg := range qm.buffer {
			qm.publish(ctx, msg)
		}
	}()
}

func (qm *QueueManager) publish(ctx context.Context, msg message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), qm.publishTimeout)
	defer cancel()

	if err := qm.publisher.Publish(ctx, msg.body); err != nil {
		metrics.RecordQueueSendError()
		var publishErr error = err
		if errors.Is(err, context.DeadlineExceeded) {
			publishErr = &types.NotificationTimeoutError{UserID: msg.userID, Err: err}
		}
		log.Ctx(ctx).Error().Err(publishErr).Str("user_id", msg.userID).Msg("failed to publish reward notification")
	}
}

// SendRewardNotification enqueues the notification without blocking. The
// error is informational; a lost notification never affects the reward.
func (qm *QueueManager) SendRewardNotification(ctx context.Context, userID string, notification RewardNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to encode reward notification: %w", err)
	}

	qm.mu.RLock()
	defer qm.mu.RUnlock()
	if qm.closed {
		return errors.New("queue manager is shut down")
	}

	select {
	case qm.buffer <- message{userID: userID, body: body}:
		return nil
	default:
		metrics.RecordQueueSendError()
		return &types.NotificationTimeoutError{UserID: userID, Err: ErrQueueFull}
	}
}

// Shutdown gracefully stops the interaction with the queue, ensuring all resources are properly released.
func (qm *QueueManager) Shutdown() {
	qm.closeOnce.Do(func() {
		log.Info().Msg("Shutting down queue manager")

		qm.mu.Lock()
		qm.closed = true
		close(qm.buffer)
		qm.mu.Unlock()

		qm.wg.Wait()
		if err := qm.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close notification publisher")
		}
	})
}

// DisabledNotifier drops notifications when no queue is configured
type DisabledNotifier struct{}

func (DisabledNotifier) SendRewardNotification(ctx context.Context, userID string, _ RewardNotification) error {
	log.Ctx(ctx).Debug().Str("user_id", userID).Msg("notifications disabled, dropping reward notification")
	return nil
}
