package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/observability/metrics"
	"github.com/naffles/nft-staking-rewards/internal/observability/tracing"
	"github.com/naffles/nft-staking-rewards/internal/queue"
	"github.com/naffles/nft-staking-rewards/internal/staking"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/naffles/nft-staking-rewards/internal/utils"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// ErrBatchInProgress is returned when a distribution batch is already
// running in this process.
var ErrBatchInProgress = errors.New("a distribution batch is already in progress")

const commitTimeout = 10 * time.Second

type PositionResult struct {
	PositionID       string                 `json:"positionId"`
	UserID           string                 `json:"userId,omitempty"`
	Outcome          types.PositionOutcome  `json:"outcome"`
	Months           int                    `json:"months"`
	Tickets          int64                  `json:"tickets"`
	DistributionType types.DistributionType `json:"distributionType,omitempty"`
	RecordID         string                 `json:"recordId,omitempty"`
	ErrorCode        string                 `json:"errorCode,omitempty"`
	Error            string                 `json:"error,omitempty"`
	Retryable        bool                   `json:"retryable,omitempty"`
}

type BatchSummary struct {
	BatchID         string             `json:"batchId"`
	Trigger         types.BatchTrigger `json:"trigger"`
	StartedAt       time.Time          `json:"startedAt"`
	TotalProcessed  int                `json:"totalProcessed"`
	Successful      int                `json:"successful"`
	Failed          int                `json:"failed"`
	Skipped         int                `json:"skipped"`
	TotalTickets    int64              `json:"totalTickets"`
	Results         []PositionResult   `json:"results"`
	ExecutionTimeMs int64              `json:"executionTimeMs"`
}

func (b *BatchSummary) document() *model.BatchSummaryDocument {
	return &model.BatchSummaryDocument{
		BatchID:         b.BatchID,
		Trigger:         b.Trigger.String(),
		StartedAt:       b.StartedAt,
		TotalProcessed:  b.TotalProcessed,
		Successful:      b.Successful,
		Failed:          b.Failed,
		Skipped:         b.Skipped,
		TotalTickets:    b.TotalTickets,
		ExecutionTimeMs: b.ExecutionTimeMs,
	}
}

// RunBatch distributes pending rewards. Without position ids it sweeps every
// position that owes at least one month; with ids it is a manual run over
// exactly those positions. Per position failures are reported in the
// summary, only infrastructure failures are returned as errors.
func (s *Service) RunBatch(ctx context.Context, positionIDs []string) (*BatchSummary, error) {
	if len(positionIDs) > 0 {
		return s.runBatch(ctx, types.TriggerManual, positionIDs, s.now())
	}
	return s.runBatch(ctx, types.TriggerMonthly, nil, s.now())
}

// runBatch pays every position as of runAt. Positions rewarded by the batch
// are anchored on runAt rather than on the moment they were processed, so
// runs on a fixed schedule keep a stable one month spacing.
func (s *Service) runBatch(
	ctx context.Context, trigger types.BatchTrigger, positionIDs []string, runAt time.Time,
) (*BatchSummary, error) {
	if !s.state.TryStart() {
		return nil, ErrBatchInProgress
	}
	defer s.state.Finish()

	metrics.SetBatchRunning(true)
	defer metrics.SetBatchRunning(false)

	startedAt := s.now()
	batchID := uuid.NewString()
	ctx = tracing.InjectBatchID(ctx, batchID)
	log := log.Ctx(ctx)

	if trigger.IsFullBatch() {
		lease := s.cfg.Scheduler
		if err := s.db.AcquireDistributionLease(ctx, model.RewardDistributionLease, lease.InstanceID, startedAt, lease.LeaseTTL); err != nil {
			return nil, fmt.Errorf("failed to acquire distribution lease: %w", err)
		}
		defer func() {
			if err := s.db.ReleaseDistributionLease(context.WithoutCancel(ctx), model.RewardDistributionLease, lease.InstanceID); err != nil {
				log.Error().Err(err).Msg("failed to release distribution lease")
			}
		}()
	}

	ids, err := s.batchPositionIDs(ctx, trigger, positionIDs, runAt)
	if err != nil {
		metrics.RecordBatchDuration(time.Since(startedAt), trigger.String(), true)
		return nil, err
	}

	log.Info().
		Stringer("trigger", trigger).
		Int("positions", len(ids)).
		Msg("starting reward distribution batch")

	results := s.processPositions(ctx, batchID, trigger, ids, runAt)

	summary := &BatchSummary{
		BatchID:   batchID,
		Trigger:   trigger,
		StartedAt: runAt,
		Results:   results,
	}
	for _, r := range results {
		summary.TotalProcessed++
		switch r.Outcome {
		case types.OutcomeSuccess:
			summary.Successful++
			summary.TotalTickets += r.Tickets
		case types.OutcomeFailed:
			summary.Failed++
		case types.OutcomeSkipped:
			summary.Skipped++
		}
	}
	elapsed := s.clock.Since(startedAt)
	summary.ExecutionTimeMs = elapsed.Milliseconds()
	metrics.RecordBatchDuration(elapsed, trigger.String(), false)

	if err := s.db.RecordDistributionBatch(context.WithoutCancel(ctx), summary.document()); err != nil {
		log.Error().Err(err).Msg("failed to persist distribution status")
	}

	log.Info().
		Stringer("trigger", trigger).
		Int("total_processed", summary.TotalProcessed).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int64("total_tickets", summary.TotalTickets).
		Int64("execution_time_ms", summary.ExecutionTimeMs).
		Msg("reward distribution batch finished")

	return summary, nil
}

// batchPositionIDs resolves the positions a batch works on. Positions are
// re-read under the processing lock, so only ids are carried forward.
func (s *Service) batchPositionIDs(
	ctx context.Context, trigger types.BatchTrigger, positionIDs []string, now time.Time,
) ([]string, error) {
	if trigger == types.TriggerManual {
		return utils.Dedup(positionIDs), nil
	}

	cutoff := staking.DistributionCutoff(now, minimumMonthsOwed(trigger))
	positions, err := s.db.FindPositionsDueForReward(ctx, now, cutoff, s.cfg.Distribution.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to find positions due for reward: %w", err)
	}

	ids := make([]string, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (s *Service) processPositions(
	ctx context.Context, batchID string, trigger types.BatchTrigger, ids []string, runAt time.Time,
) []PositionResult {
	results := make([]PositionResult, len(ids))

	p := pool.New().WithMaxGoroutines(s.cfg.Distribution.MaxConcurrency)
	for i, id := range ids {
		p.Go(func() {
			results[i] = s.processPosition(ctx, batchID, trigger, id, runAt)
			metrics.RecordPositionProcessed(trigger.String(), results[i].Outcome.String())
		})
	}
	p.Wait()

	return results
}

// processPosition is the isolated unit of work for one position. Nothing it
// does can fail another position of the batch.
func (s *Service) processPosition(
	ctx context.Context, batchID string, trigger types.BatchTrigger, positionID string, runAt time.Time,
) PositionResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Distribution.PositionTimeout)
	defer cancel()
	log := log.Ctx(ctx).With().Str("position_id", positionID).Logger()
	ctx = log.WithContext(ctx)

	position, err := s.db.ClaimPositionForProcessing(ctx, positionID, batchID, s.now(), s.cfg.Distribution.ProcessingLockTTL)
	if err != nil {
		var locked *types.PositionLockedError
		if errors.As(err, &locked) {
			log.Debug().Msg("position is held by another job, skipping")
			return skippedResult(positionID, "position is being processed by another job")
		}
		if db.IsNotFoundError(err) {
			err = &types.PositionNotEligibleError{PositionID: positionID, Reason: "position not found"}
		}
		return failedResult(positionID, err)
	}
	defer func() {
		if err := s.db.ReleasePositionLock(context.WithoutCancel(ctx), positionID, batchID); err != nil {
			log.Error().Err(err).Msg("failed to release position lock")
		}
	}()

	result, contractName, err := s.distributeToPosition(ctx, batchID, trigger, position, runAt)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", position.UserID).
			Str("contract_id", position.ContractID).
			Msg("failed to distribute reward")
		s.recordFailure(ctx, batchID, trigger, position, contractName, err, runAt)

		failed := failedResult(positionID, err)
		failed.UserID = position.UserID
		return failed
	}

	return result
}

// distributeToPosition computes, mints and commits the reward of a claimed
// position. The contract name is returned for failure records.
func (s *Service) distributeToPosition(
	ctx context.Context,
	batchID string,
	trigger types.BatchTrigger,
	position *model.StakingPosition,
	now time.Time,
) (PositionResult, string, error) {
	log := log.Ctx(ctx)

	if !position.IsEligibleForRewards(now) {
		reason := "position is " + position.Status.String()
		if position.Status == types.PositionStatusActive {
			reason = "lock period has ended"
		}
		return PositionResult{}, "", &types.PositionNotEligibleError{PositionID: position.ID, Reason: reason}
	}

	contract, err := s.db.GetStakingContract(ctx, position.ContractID)
	if err != nil {
		return PositionResult{}, "", fmt.Errorf("failed to get staking contract %s: %w", position.ContractID, err)
	}
	if err := contract.CheckDistributable(); err != nil {
		return PositionResult{}, contract.Name, err
	}
	if s.cfg.Distribution.RequireVerification && (position.Verification == nil || !position.Verification.Verified) {
		return PositionResult{}, contract.Name, &types.PositionUnverifiedError{PositionID: position.ID}
	}

	tier, err := contract.RewardStructure.GetRewardStructure(position.StakingDuration)
	if err != nil {
		return PositionResult{}, contract.Name, err
	}

	months, distributionType := rewardMonths(trigger, position.PendingRewardMonths(now))
	result := PositionResult{
		PositionID:       position.ID,
		UserID:           position.UserID,
		Months:           months,
		DistributionType: distributionType,
	}
	if tier.TicketsPerMonth == 0 {
		log.Debug().Msg("tier pays no tickets, nothing to distribute")
		result.Outcome = types.OutcomeSuccess
		return result, contract.Name, nil
	}
	if months == 0 {
		if trigger == types.TriggerManual {
			// nothing owed yet, a manual run is then a no-op
			result.Outcome = types.OutcomeSuccess
			return result, contract.Name, nil
		}
		result.Outcome = types.OutcomeSkipped
		result.Error = "no reward months owed"
		return result, contract.Name, nil
	}

	tickets := int64(months) * tier.TicketsPerMonth
	recordID := rewardReference(position)
	ticketIDs, err := s.tickets.MintFreeEntries(ctx, position.UserID, tickets, recordID)
	if err != nil {
		var issuanceErr *types.TicketIssuanceError
		if !errors.As(err, &issuanceErr) {
			err = &types.TicketIssuanceError{UserID: position.UserID, Count: tickets, Err: err}
		}
		return PositionResult{}, contract.Name, err
	}

	previous := position.LastRewardDistribution
	record := model.NewDistributedRecord(
		recordID, batchID, position, contract,
		months, tickets, tier.BonusMultiplier, distributionType, ticketIDs, now,
	)
	entry := position.ApplyRewardDistribution(recordID, tickets, tier.BonusMultiplier, distributionType, now)

	// minted tickets are committed even when the position timeout fired
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	err = s.db.CommitRewardDistribution(commitCtx, &db.RewardCommit{
		Record:               record,
		SummaryEntry:         entry,
		PreviousDistribution: previous,
	})
	if err != nil {
		log.Error().
			Err(err).
			Strs("ticket_ids", ticketIDs).
			Str("record_id", recordID).
			Msg("tickets were minted but the reward could not be committed")
		return PositionResult{}, contract.Name, fmt.Errorf("failed to commit reward distribution: %w", err)
	}

	metrics.RecordTicketsDistributed(distributionType.String(), tickets)
	log.Debug().
		Str("record_id", recordID).
		Int("months", months).
		Int64("tickets", tickets).
		Stringer("distribution_type", distributionType).
		Msg("reward distributed")

	s.notify(ctx, contract, record)

	result.Outcome = types.OutcomeSuccess
	result.Tickets = tickets
	result.RecordID = recordID
	return result, contract.Name, nil
}

// rewardMonths decides how many months a trigger pays and how the record is
// tagged. A monthly run that finds a backlog pays all of it as missed, so no
// month is ever lost between runs.
func rewardMonths(trigger types.BatchTrigger, pending int) (int, types.DistributionType) {
	switch trigger {
	case types.TriggerManual:
		return pending, types.DistributionTypeManual
	case types.TriggerReconciliation:
		if pending < reconciliationBacklogMonths {
			pending = 0
		}
		return pending, types.DistributionTypeMissed
	default:
		if pending >= 2 {
			return pending, types.DistributionTypeMissed
		}
		return pending, types.DistributionTypeMonthly
	}
}

// rewardReference identifies one payout of a position. It is derived from the
// reward anchor, so a retry after a failed commit hands the ticket service
// the same reference and the ledger record keeps the same id.
func rewardReference(position *model.StakingPosition) string {
	key := position.ID + "|" + position.RewardAnchor().UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// minimumMonthsOwed is the staleness threshold of a full batch
func minimumMonthsOwed(trigger types.BatchTrigger) int {
	if trigger == types.TriggerReconciliation {
		return reconciliationBacklogMonths
	}
	return 1
}

func (s *Service) notify(ctx context.Context, contract *model.StakingContract, record *model.RewardHistoryRecord) {
	err := s.notifier.SendRewardNotification(ctx, record.UserID, queue.RewardNotification{
		UserID:           record.UserID,
		PositionID:       record.PositionID,
		RecordID:         record.ID,
		NFTID:            record.NFT.ID(),
		ContractName:     contract.Name,
		Tickets:          record.OpenEntryTickets,
		BonusMultiplier:  record.BonusMultiplier,
		EffectiveValue:   record.EffectiveValue,
		DistributionType: record.DistributionType,
		DistributedAt:    record.DistributionDate,
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("record_id", record.ID).Msg("failed to enqueue reward notification")
	}
}

func (s *Service) recordFailure(
	ctx context.Context,
	batchID string,
	trigger types.BatchTrigger,
	position *model.StakingPosition,
	contractName string,
	cause error,
	now time.Time,
) {
	if !s.cfg.Distribution.RecordFailures {
		return
	}

	record := model.NewFailedRecord(uuid.NewString(), batchID, position, contractName, distributionTypeOf(trigger), cause, now)
	if err := s.db.SaveFailedRewardRecord(context.WithoutCancel(ctx), record); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to save failed reward record")
	}
}

func distributionTypeOf(trigger types.BatchTrigger) types.DistributionType {
	switch trigger {
	case types.TriggerManual:
		return types.DistributionTypeManual
	case types.TriggerReconciliation:
		return types.DistributionTypeMissed
	default:
		return types.DistributionTypeMonthly
	}
}

func skippedResult(positionID, reason string) PositionResult {
	return PositionResult{
		PositionID: positionID,
		Outcome:    types.OutcomeSkipped,
		Error:      reason,
	}
}

func failedResult(positionID string, err error) PositionResult {
	return PositionResult{
		PositionID: positionID,
		Outcome:    types.OutcomeFailed,
		ErrorCode:  types.ErrorCode(err),
		Error:      err.Error(),
		Retryable:  types.IsRetryable(err),
	}
}
