package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/naffles/nft-staking-rewards/internal/clients/chainclient"
	"github.com/naffles/nft-staking-rewards/internal/clients/ticketclient"
	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/queue"
	"github.com/rs/zerolog/log"
)

type Service struct {
	cfg      *config.Config
	db       db.DbInterface
	tickets  ticketclient.TicketIssuanceInterface
	chain    chainclient.ChainInterface
	notifier queue.Notifier
	clock    clockwork.Clock
	state    *SchedulerState
}

type Option func(*Service)

// WithClock replaces the wall clock, used by tests to control time
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithSchedulerState shares one scheduler state between services
func WithSchedulerState(state *SchedulerState) Option {
	return func(s *Service) {
		s.state = state
	}
}

func NewService(
	cfg *config.Config,
	db db.DbInterface,
	tickets ticketclient.TicketIssuanceInterface,
	chain chainclient.ChainInterface,
	notifier queue.Notifier,
	opts ...Option,
) *Service {
	s := &Service{
		cfg:      cfg,
		db:       db,
		tickets:  tickets,
		chain:    chain,
		notifier: notifier,
		clock:    clockwork.NewRealClock(),
		state:    NewSchedulerState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = queue.DisabledNotifier{}
	}

	return s
}

func (s *Service) StartDistributionSync(ctx context.Context) error {
	// Start the monthly and reconciliation jobs
	if s.cfg.Scheduler.Enabled {
		if err := s.StartDistributionScheduler(ctx); err != nil {
			return err
		}
	} else {
		log.Ctx(ctx).Info().Msg("distribution scheduler disabled, only manual runs will distribute rewards")
	}
	// Keep auditing positions against the chain in the background
	s.StartVerificationAudit(ctx)
	s.StartAnomalyDetection(ctx)

	return nil
}

// now is millisecond precision UTC, matching what MongoDB stores
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}
