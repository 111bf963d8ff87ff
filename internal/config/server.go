package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultVerifiedThreshold     = 90.0
	defaultMaxStakesPerUser      = 20
	defaultAnomalyWindow         = 24 * time.Hour
	defaultContractOutlierStddev = 3.0
	defaultAPIPort               = 8080
	defaultAPIRequestTimeout     = 60 * time.Second
)

type VerificationConfig struct {
	// VerifiedThreshold is the minimum integrity score (0-100) for a verified position
	VerifiedThreshold float64 `mapstructure:"verified-threshold"`
	// MaxStakesPerUser within AnomalyWindow before the user is flagged
	MaxStakesPerUser      int64         `mapstructure:"max-stakes-per-user"`
	AnomalyWindow         time.Duration `mapstructure:"anomaly-window"`
	ContractOutlierStddev float64       `mapstructure:"contract-outlier-stddev"`
}

func (cfg *VerificationConfig) Validate() error {
	if cfg.VerifiedThreshold < 0 || cfg.VerifiedThreshold > 100 {
		return errors.New("verified-threshold must be between 0 and 100")
	}
	if cfg.VerifiedThreshold == 0 {
		cfg.VerifiedThreshold = defaultVerifiedThreshold
	}
	if cfg.MaxStakesPerUser <= 0 {
		cfg.MaxStakesPerUser = defaultMaxStakesPerUser
	}
	if cfg.AnomalyWindow <= 0 {
		cfg.AnomalyWindow = defaultAnomalyWindow
	}
	if cfg.ContractOutlierStddev <= 0 {
		cfg.ContractOutlierStddev = defaultContractOutlierStddev
	}

	return nil
}

type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// RequestTimeout must cover a full manual batch
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	AdminToken     string        `mapstructure:"admin-token"`
}

func (cfg *APIConfig) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("api port %d is out of range", cfg.Port)
	}
	if cfg.Port == 0 {
		cfg.Port = defaultAPIPort
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultAPIRequestTimeout
	}

	return nil
}

func (cfg *APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

type MetricsConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (cfg *MetricsConfig) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("metrics server port must be between 0 and 65535 (inclusive)")
	}

	return nil
}

func (cfg *MetricsConfig) GetMetricsPort() int {
	return cfg.Port
}
