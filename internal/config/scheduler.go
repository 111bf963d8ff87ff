package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/naffles/nft-staking-rewards/pkg"
	"github.com/robfig/cron/v3"
)

const (
	// 03:00 UTC on the first day of every month
	defaultMonthlySchedule = "0 3 1 * *"
	// 04:30 UTC every day
	defaultReconciliationSchedule = "30 4 * * *"
	defaultLeaseTTL               = 2 * time.Hour
)

// CronParser is the five field parser used for every schedule in the service
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

type SchedulerConfig struct {
	Enabled                bool          `mapstructure:"enabled"`
	MonthlySchedule        string        `mapstructure:"monthly-schedule"`
	ReconciliationSchedule string        `mapstructure:"reconciliation-schedule"`
	LeaseTTL               time.Duration `mapstructure:"lease-ttl"`
	// InstanceID identifies this process as lease holder, defaults to hostname + random suffix
	InstanceID string `mapstructure:"instance-id"`
}

func (cfg *SchedulerConfig) Validate() error {
	if cfg.MonthlySchedule == "" {
		cfg.MonthlySchedule = defaultMonthlySchedule
	}
	if cfg.ReconciliationSchedule == "" {
		cfg.ReconciliationSchedule = defaultReconciliationSchedule
	}

	if _, err := CronParser.Parse(cfg.MonthlySchedule); err != nil {
		return fmt.Errorf("invalid monthly-schedule %q: %w", cfg.MonthlySchedule, err)
	}
	if _, err := CronParser.Parse(cfg.ReconciliationSchedule); err != nil {
		return fmt.Errorf("invalid reconciliation-schedule %q: %w", cfg.ReconciliationSchedule, err)
	}

	if cfg.LeaseTTL < 0 {
		return errors.New("lease-ttl must not be negative")
	}
	if cfg.LeaseTTL == 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}

	if cfg.InstanceID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "staking-rewards"
		}
		cfg.InstanceID = host + "-" + pkg.RandString(8)
	}

	return nil
}
