package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "STAKING"

type Config struct {
	Db             DbConfig             `mapstructure:"db"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	Distribution   DistributionConfig   `mapstructure:"distribution"`
	Poller         PollerConfig         `mapstructure:"poller"`
	TicketIssuance TicketIssuanceConfig `mapstructure:"ticket-issuance"`
	Chain          ChainConfig          `mapstructure:"chain"`
	Notification   *NotificationConfig  `mapstructure:"notification"`
	Verification   VerificationConfig   `mapstructure:"verification"`
	API            APIConfig            `mapstructure:"api"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
}

func (cfg *Config) Validate() error {
	if err := cfg.Db.Validate(); err != nil {
		return err
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		return err
	}
	if err := cfg.Distribution.Validate(); err != nil {
		return err
	}
	if err := cfg.Poller.Validate(); err != nil {
		return err
	}
	if err := cfg.TicketIssuance.Validate(); err != nil {
		return err
	}
	if err := cfg.Chain.Validate(); err != nil {
		return err
	}
	// notifications are optional, without them rewards are still distributed
	if cfg.Notification != nil {
		if err := cfg.Notification.Validate(); err != nil {
			return err
		}
	}
	if err := cfg.Verification.Validate(); err != nil {
		return err
	}
	if err := cfg.API.Validate(); err != nil {
		return err
	}

	return cfg.Metrics.Validate()
}

// New returns a fully parsed Config object from a given file path.
// Values can be overridden with STAKING_ prefixed environment variables,
// e.g. STAKING_DB_PASSWORD overrides db.password.
func New(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(cfgFile)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
