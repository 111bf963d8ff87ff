package config

import (
	"errors"
	"time"
)

const (
	defaultMaxConcurrency    = 8
	defaultPositionTimeout   = 30 * time.Second
	defaultProcessingLockTTL = 5 * time.Minute
)

type DistributionConfig struct {
	// MaxConcurrency bounds the positions processed in parallel within a batch
	MaxConcurrency  int           `mapstructure:"max-concurrency"`
	PositionTimeout time.Duration `mapstructure:"position-timeout"`
	// BatchLimit caps positions loaded per full run, 0 means no cap
	BatchLimit        int64         `mapstructure:"batch-limit"`
	ProcessingLockTTL time.Duration `mapstructure:"processing-lock-ttl"`
	// RequireVerification makes on-chain verification a precondition for
	// paying rewards. Off by default.
	RequireVerification bool `mapstructure:"require-verification"`
	// RecordFailures writes a failed ledger record for every position failure
	RecordFailures bool `mapstructure:"record-failures"`
}

func (cfg *DistributionConfig) Validate() error {
	if cfg.MaxConcurrency < 0 {
		return errors.New("max-concurrency must not be negative")
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}

	if cfg.PositionTimeout < 0 {
		return errors.New("position-timeout must not be negative")
	}
	if cfg.PositionTimeout == 0 {
		cfg.PositionTimeout = defaultPositionTimeout
	}

	if cfg.BatchLimit < 0 {
		return errors.New("batch-limit must not be negative")
	}

	if cfg.ProcessingLockTTL <= 0 {
		cfg.ProcessingLockTTL = defaultProcessingLockTTL
	}
	// a lock must outlive the work it protects
	if cfg.ProcessingLockTTL < cfg.PositionTimeout {
		return errors.New("processing-lock-ttl must be at least position-timeout")
	}

	return nil
}
