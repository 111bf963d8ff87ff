package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	defaultClientTimeout       = 10 * time.Second
	defaultClientMaxRetryTimes = 3
	defaultClientRetryInterval = 500 * time.Millisecond
	defaultTicketRateLimit     = 20
	defaultPublishTimeout      = 5 * time.Second
	defaultNotificationBuffer  = 1024
	defaultNotificationQueue   = "staking_reward_notifications"
)

// TicketIssuanceConfig configures the client minting free raffle entries
type TicketIssuanceConfig struct {
	URL           string        `mapstructure:"url"`
	APIKey        string        `mapstructure:"api-key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
	// RateLimit is the number of mint requests per second shared by all workers
	RateLimit float64 `mapstructure:"rate-limit"`
	Burst     int     `mapstructure:"burst"`
}

func (cfg *TicketIssuanceConfig) Validate() error {
	if err := validateURL("ticket-issuance", cfg.URL); err != nil {
		return err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultClientTimeout
	}
	if cfg.MaxRetryTimes == 0 {
		cfg.MaxRetryTimes = defaultClientMaxRetryTimes
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultClientRetryInterval
	}
	if cfg.RateLimit < 0 {
		return errors.New("ticket-issuance rate-limit must not be negative")
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultTicketRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RateLimit)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}

	return nil
}

// ChainConfig configures the read-only blockchain indexer client
type ChainConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
}

func (cfg *ChainConfig) Validate() error {
	if err := validateURL("chain", cfg.URL); err != nil {
		return err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultClientTimeout
	}
	if cfg.MaxRetryTimes == 0 {
		cfg.MaxRetryTimes = defaultClientMaxRetryTimes
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultClientRetryInterval
	}

	return nil
}

// NotificationConfig configures the RabbitMQ queue reward notifications are published to
type NotificationConfig struct {
	QueueUser      string        `mapstructure:"queue-user"`
	QueuePassword  string        `mapstructure:"queue-password"`
	Url            string        `mapstructure:"url"`
	QueueName      string        `mapstructure:"queue-name"`
	PublishTimeout time.Duration `mapstructure:"publish-timeout"`
	BufferSize     int           `mapstructure:"buffer-size"`
}

func (cfg *NotificationConfig) Validate() error {
	if cfg.Url == "" {
		return errors.New("notification queue url is required")
	}
	if cfg.QueueUser == "" || cfg.QueuePassword == "" {
		return errors.New("notification queue credentials are required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = defaultNotificationQueue
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultNotificationBuffer
	}

	return nil
}

// AmqpURL is the dial url including credentials
func (cfg *NotificationConfig) AmqpURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.QueueUser, cfg.QueuePassword),
		Host:   cfg.Url,
	}
	return u.String()
}

func validateURL(section, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s url is required", section)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s url: %w", section, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s url must use http or https", section)
	}

	return nil
}
