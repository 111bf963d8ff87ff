package config

import (
	"errors"
	"time"
)

const defaultAnomalyPollingInterval = 1 * time.Hour

type PollerConfig struct {
	VerificationPollingInterval time.Duration `mapstructure:"verification-polling-interval"`
	VerificationBatchSize       uint64        `mapstructure:"verification-batch-size"`
	// positions verified more recently than this are not re-checked by the audit
	VerificationMaxAge     time.Duration `mapstructure:"verification-max-age"`
	AnomalyPollingInterval time.Duration `mapstructure:"anomaly-polling-interval"`
}

func (cfg *PollerConfig) Validate() error {
	if cfg.VerificationPollingInterval <= 0 {
		return errors.New("verification-polling-interval must be positive")
	}

	if cfg.VerificationBatchSize <= 0 {
		return errors.New("verification-batch-size must be positive")
	}

	if cfg.VerificationMaxAge <= 0 {
		cfg.VerificationMaxAge = cfg.VerificationPollingInterval
	}

	if cfg.AnomalyPollingInterval <= 0 {
		cfg.AnomalyPollingInterval = defaultAnomalyPollingInterval
	}

	return nil
}
