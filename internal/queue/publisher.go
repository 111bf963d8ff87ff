package queue

import (
	"context"
	"fmt"

	"github.com/naffles/nft-staking-rewards/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher delivers one encoded message to the notification transport
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
	Close() error
}

type rabbitPublisher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

func newRabbitPublisher(cfg *config.NotificationConfig) (*rabbitPublisher, error) {
	conn, err := amqp.Dial(cfg.AmqpURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to notification queue: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open notification channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.QueueName,
		true,  // durable
		false, // auto delete
		false, // exclusive
		false, // no wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.QueueName, err)
	}

	return &rabbitPublisher{
		conn:      conn,
		channel:   ch,
		queueName: cfg.QueueName,
	}, nil
}

func (p *rabbitPublisher) Publish(ctx context.Context, body []byte) error {
	return p.channel.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (p *rabbitPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
