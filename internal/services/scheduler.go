package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/observability/tracing"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartDistributionScheduler registers the monthly run and the daily
// reconciliation sweep. Both stop when ctx is cancelled.
func (s *Service) StartDistributionScheduler(ctx context.Context) error {
	logger := cronLogger{logger: log.Ctx(ctx).With().Str("component", "scheduler").Logger()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(config.CronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	monthly, err := config.CronParser.Parse(s.cfg.Scheduler.MonthlySchedule)
	if err != nil {
		return fmt.Errorf("invalid monthly schedule: %w", err)
	}

	var monthlyID, reconciliationID cron.EntryID
	monthlyID, err = c.AddFunc(s.cfg.Scheduler.MonthlySchedule, func() {
		runAt := s.scheduledTime(c, monthlyID)
		s.runScheduledBatch(ctx, types.TriggerMonthly, runAt)
		s.state.SetNextRun(monthly.Next(s.now()))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule monthly distribution: %w", err)
	}

	reconciliationID, err = c.AddFunc(s.cfg.Scheduler.ReconciliationSchedule, func() {
		s.runScheduledBatch(ctx, types.TriggerReconciliation, s.scheduledTime(c, reconciliationID))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	s.state.SetNextRun(monthly.Next(s.now()))
	c.Start()

	log.Ctx(ctx).Info().
		Str("monthly_schedule", s.cfg.Scheduler.MonthlySchedule).
		Str("reconciliation_schedule", s.cfg.Scheduler.ReconciliationSchedule).
		Str("instance_id", s.cfg.Scheduler.InstanceID).
		Msg("distribution scheduler started")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		log.Info().Msg("distribution scheduler stopped")
	}()

	return nil
}

// scheduledTime is the tick an entry was fired for. Jobs run on their own
// goroutine, and the entry snapshot is served only after cron has moved Prev
// to the firing tick.
func (s *Service) scheduledTime(c *cron.Cron, id cron.EntryID) time.Time {
	if prev := c.Entry(id).Prev; !prev.IsZero() {
		return prev.UTC()
	}
	return s.now()
}

func (s *Service) runScheduledBatch(ctx context.Context, trigger types.BatchTrigger, runAt time.Time) {
	ctx = tracing.InjectTraceID(ctx)
	log := log.Ctx(ctx)

	summary, err := s.runBatch(ctx, trigger, nil, runAt)
	switch {
	case err == nil:
		if summary.Failed > 0 {
			log.Warn().
				Stringer("trigger", trigger).
				Int("failed", summary.Failed).
				Msg("scheduled distribution finished with failures, they are retried on the next run")
		}
	case db.IsLeaseHeldError(err):
		log.Info().Stringer("trigger", trigger).Msg("another instance is distributing rewards, skipping")
	case errors.Is(err, ErrBatchInProgress):
		log.Warn().Stringer("trigger", trigger).Msg("distribution batch still running, skipping")
	default:
		log.Error().Err(err).Stringer("trigger", trigger).Msg("scheduled distribution failed")
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
