package services

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/naffles/nft-staking-rewards/tests/mocks"
	"github.com/naffles/nft-staking-rewards/testutil"
	"github.com/naffles/nft-staking-rewards/testutil/memdb"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *Service
	cfg      *config.Config
	db       *memdb.DB
	tickets  *mocks.TicketIssuanceInterface
	chain    *mocks.ChainInterface
	notifier *mocks.Notifier
	clock    *clockwork.FakeClock
}

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{
			Enabled:                true,
			MonthlySchedule:        "0 3 1 * *",
			ReconciliationSchedule: "30 4 * * *",
			LeaseTTL:               time.Hour,
			InstanceID:             "instance-test",
		},
		Distribution: config.DistributionConfig{
			MaxConcurrency:    4,
			PositionTimeout:   5 * time.Second,
			ProcessingLockTTL: time.Minute,
			RecordFailures:    true,
		},
		Poller: config.PollerConfig{
			VerificationPollingInterval: time.Hour,
			VerificationBatchSize:       10,
			VerificationMaxAge:          24 * time.Hour,
			AnomalyPollingInterval:      time.Hour,
		},
		Verification: config.VerificationConfig{
			VerifiedThreshold:     90,
			MaxStakesPerUser:      3,
			AnomalyWindow:         24 * time.Hour,
			ContractOutlierStddev: 1,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		cfg:      testConfig(),
		db:       memdb.New(),
		tickets:  mocks.NewTicketIssuanceInterface(t),
		chain:    mocks.NewChainInterface(t),
		notifier: mocks.NewNotifier(t),
		clock:    clockwork.NewFakeClockAt(testNow),
	}
	env.svc = NewService(env.cfg, env.db, env.tickets, env.chain, env.notifier, WithClock(env.clock))
	env.notifier.On("SendRewardNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	return env
}

// seedContract stores a contract paying 10/12/15 tickets for 6/12/36 months
func (e *testEnv) seedContract(t *testing.T) *model.StakingContract {
	t.Helper()

	contract := testutil.NewContract(t)
	require.NoError(t, e.db.SaveStakingContract(t.Context(), contract))
	return contract
}

func (e *testEnv) seedPosition(
	t *testing.T, contract *model.StakingContract, duration types.StakingDuration, stakedAt time.Time,
) *model.StakingPosition {
	t.Helper()

	position := testutil.NewPosition(t, contract, duration, stakedAt)
	require.NoError(t, e.db.StakePosition(t.Context(), position))
	return position
}

func (e *testEnv) position(t *testing.T, id string) *model.StakingPosition {
	t.Helper()

	position, err := e.db.GetStakingPosition(t.Context(), id)
	require.NoError(t, err)
	return position
}

func (e *testEnv) expectMint(userID string, tickets int64) *mock.Call {
	return e.tickets.On("MintFreeEntries", mock.Anything, userID, tickets, mock.AnythingOfType("string")).
		Return([]string{"ticket-1"}, nil).
		Once()
}

func resultFor(t *testing.T, summary *BatchSummary, positionID string) PositionResult {
	t.Helper()

	for _, r := range summary.Results {
		if r.PositionID == positionID {
			return r
		}
	}
	require.Failf(t, "missing result", "no result for position %s", positionID)
	return PositionResult{}
}
