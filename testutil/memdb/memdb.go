// Package memdb is an in-memory db.DbInterface for unit tests. It mirrors
// the filters and guards of the MongoDB implementation; aggregations are
// computed in Go.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/types"
)

var _ db.DbInterface = (*DB)(nil)

type DB struct {
	mu        sync.Mutex
	contracts map[string]model.StakingContract
	positions map[string]model.StakingPosition
	records   []model.RewardHistoryRecord
	leases    map[string]model.DistributionLease
	status    *model.DistributionStatus

	// CommitHook runs inside CommitRewardDistribution before the guard is
	// checked, letting tests interleave a concurrent writer.
	CommitHook func(commit *db.RewardCommit)
}

func New() *DB {
	return &DB{
		contracts: map[string]model.StakingContract{},
		positions: map[string]model.StakingPosition{},
		leases:    map[string]model.DistributionLease{},
	}
}

func (m *DB) Ping(ctx context.Context) error {
	return nil
}

func (m *DB) SaveStakingContract(ctx context.Context, contract *model.StakingContract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, c := range m.contracts {
		if id != contract.ID && c.Chain == contract.Chain && c.ContractAddress == contract.ContractAddress {
			return &db.DuplicateKeyError{Key: contract.ContractAddress, Message: "staking contract address already registered"}
		}
	}

	saved := *contract
	if existing, ok := m.contracts[contract.ID]; ok {
		saved.TotalStaked = existing.TotalStaked
		saved.TotalRewardsDistributed = existing.TotalRewardsDistributed
		saved.CreatedAt = existing.CreatedAt
	}
	m.contracts[contract.ID] = saved

	return nil
}

func (m *DB) GetStakingContract(ctx context.Context, contractID string) (*model.StakingContract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[contractID]
	if !ok {
		return nil, &db.NotFoundError{Key: contractID, Message: "staking contract not found"}
	}
	return &c, nil
}

func (m *DB) GetStakingContracts(ctx context.Context) ([]model.StakingContract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	contracts := make([]model.StakingContract, 0, len(m.contracts))
	for _, c := range m.contracts {
		contracts = append(contracts, c)
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].ID < contracts[j].ID })
	return contracts, nil
}

func (m *DB) SetStakingContractActive(ctx context.Context, contractID string, active bool) error {
	return m.updateContract(contractID, func(c *model.StakingContract) { c.IsActive = active })
}

func (m *DB) SetStakingContractValidated(ctx context.Context, contractID string, validated bool) error {
	return m.updateContract(contractID, func(c *model.StakingContract) { c.IsValidated = validated })
}

func (m *DB) IncrementContractTotalStaked(ctx context.Context, contractID string, delta int64) error {
	return m.updateContract(contractID, func(c *model.StakingContract) { c.TotalStaked += delta })
}

func (m *DB) IncrementContractRewardsDistributed(ctx context.Context, contractID string, tickets int64) error {
	return m.updateContract(contractID, func(c *model.StakingContract) { c.TotalRewardsDistributed += tickets })
}

func (m *DB) updateContract(contractID string, f func(c *model.StakingContract)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[contractID]
	if !ok {
		return &db.NotFoundError{Key: contractID, Message: "staking contract not found"}
	}
	f(&c)
	m.contracts[contractID] = c
	return nil
}

func (m *DB) StakePosition(ctx context.Context, position *model.StakingPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[position.ID]; ok {
		return &db.DuplicateKeyError{Key: position.ID, Message: "position already exists"}
	}
	for _, p := range m.positions {
		if p.Status == types.PositionStatusActive && p.NFT.Chain == position.NFT.Chain &&
			p.NFT.ContractAddress == position.NFT.ContractAddress && p.NFT.TokenID == position.NFT.TokenID {
			return &db.DuplicateKeyError{Key: position.NFT.ID(), Message: "nft is already staked"}
		}
	}
	c, ok := m.contracts[position.ContractID]
	if !ok {
		return &db.NotFoundError{Key: position.ContractID, Message: "staking contract not found"}
	}

	m.positions[position.ID] = clonePosition(position)
	c.TotalStaked++
	m.contracts[c.ID] = c

	return nil
}

func (m *DB) UnstakePosition(ctx context.Context, position *model.StakingPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.positions[position.ID]
	if !ok || stored.Status != types.PositionStatusActive {
		return &db.NotFoundError{Key: position.ID, Message: "active staking position not found"}
	}

	stored.Status = position.Status
	stored.ActualUnstakedAt = position.ActualUnstakedAt
	stored.UnstakeProof = position.UnstakeProof
	stored.EarlyUnstakePenalty = position.EarlyUnstakePenalty
	m.positions[position.ID] = stored

	if c, ok := m.contracts[position.ContractID]; ok {
		c.TotalStaked--
		m.contracts[c.ID] = c
	}

	return nil
}

func (m *DB) GetStakingPosition(ctx context.Context, positionID string) (*model.StakingPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getPosition(positionID)
}

func (m *DB) getPosition(positionID string) (*model.StakingPosition, error) {
	p, ok := m.positions[positionID]
	if !ok {
		return nil, &db.NotFoundError{Key: positionID, Message: "staking position not found"}
	}
	clone := clonePosition(&p)
	return &clone, nil
}

func (m *DB) GetStakingPositionsByIDs(ctx context.Context, positionIDs []string) ([]model.StakingPosition, error) {
	return m.filterPositions(func(p *model.StakingPosition) bool {
		for _, id := range positionIDs {
			if p.ID == id {
				return true
			}
		}
		return false
	}, nil, 0), nil
}

func (m *DB) GetStakingPositionsByUser(ctx context.Context, userID string) ([]model.StakingPosition, error) {
	return m.filterPositions(
		func(p *model.StakingPosition) bool { return p.UserID == userID },
		func(a, b *model.StakingPosition) bool { return a.StakedAt.After(b.StakedAt) },
		0,
	), nil
}

func (m *DB) FindPositionsDueForReward(
	ctx context.Context, now, cutoff time.Time, limit int64,
) ([]model.StakingPosition, error) {
	return m.filterPositions(
		func(p *model.StakingPosition) bool {
			return p.Status == types.PositionStatusActive &&
				p.UnstakeAt.After(now) &&
				!p.RewardAnchor().After(cutoff)
		},
		func(a, b *model.StakingPosition) bool {
			switch {
			case a.LastRewardDistribution == nil && b.LastRewardDistribution != nil:
				return true
			case a.LastRewardDistribution != nil && b.LastRewardDistribution == nil:
				return false
			case a.LastRewardDistribution != nil && !a.LastRewardDistribution.Equal(*b.LastRewardDistribution):
				return a.LastRewardDistribution.Before(*b.LastRewardDistribution)
			default:
				return a.StakedAt.Before(b.StakedAt)
			}
		},
		limit,
	), nil
}

func (m *DB) ClaimPositionForProcessing(
	ctx context.Context, positionID, owner string, now time.Time, ttl time.Duration,
) (*model.StakingPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[positionID]
	if !ok {
		return nil, &db.NotFoundError{Key: positionID, Message: "staking position not found"}
	}
	lock := p.ProcessingLock
	if lock != nil && lock.Owner != owner && lock.ExpiresAt.After(now) {
		return nil, &types.PositionLockedError{PositionID: positionID}
	}

	p.ProcessingLock = &model.ProcessingLock{Owner: owner, ExpiresAt: now.Add(ttl)}
	m.positions[positionID] = p

	return m.getPosition(positionID)
}

func (m *DB) ReleasePositionLock(ctx context.Context, positionID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[positionID]
	if ok && p.ProcessingLock != nil && p.ProcessingLock.Owner == owner {
		p.ProcessingLock = nil
		m.positions[positionID] = p
	}
	return nil
}

func (m *DB) UpdatePositionVerification(ctx context.Context, positionID string, result *model.VerificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[positionID]
	if !ok {
		return &db.NotFoundError{Key: positionID, Message: "staking position not found"}
	}
	verification := *result
	p.Verification = &verification
	m.positions[positionID] = p
	return nil
}

func (m *DB) FindPositionsForVerification(
	ctx context.Context, checkedBefore time.Time, limit int64,
) ([]model.StakingPosition, error) {
	return m.filterPositions(
		func(p *model.StakingPosition) bool {
			return p.Status == types.PositionStatusActive &&
				(p.Verification == nil || p.Verification.CheckedAt.Before(checkedBefore))
		},
		func(a, b *model.StakingPosition) bool {
			if a.Verification == nil || b.Verification == nil {
				return a.Verification == nil && b.Verification != nil
			}
			return a.Verification.CheckedAt.Before(b.Verification.CheckedAt)
		},
		limit,
	), nil
}

func (m *DB) filterPositions(
	match func(p *model.StakingPosition) bool,
	less func(a, b *model.StakingPosition) bool,
	limit int64,
) []model.StakingPosition {
	m.mu.Lock()
	defer m.mu.Unlock()

	var positions []model.StakingPosition
	for _, p := range m.positions {
		if match(&p) {
			positions = append(positions, clonePosition(&p))
		}
	}
	if less == nil {
		less = func(a, b *model.StakingPosition) bool { return a.ID < b.ID }
	}
	sort.SliceStable(positions, func(i, j int) bool { return less(&positions[i], &positions[j]) })
	if limit > 0 && int64(len(positions)) > limit {
		positions = positions[:limit]
	}
	return positions
}

func (m *DB) CommitRewardDistribution(ctx context.Context, commit *db.RewardCommit) error {
	// the driver refuses to start a transaction on a done context
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.CommitHook != nil {
		m.CommitHook(commit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record := commit.Record
	for _, r := range m.records {
		if r.ID == record.ID {
			return &db.DuplicateKeyError{Key: record.ID, Message: "reward history record already exists"}
		}
	}

	p, ok := m.positions[record.PositionID]
	if !ok || p.Status != types.PositionStatusActive || !sameTime(p.LastRewardDistribution, commit.PreviousDistribution) {
		return &types.PositionAlreadyRewardedError{PositionID: record.PositionID}
	}
	c, ok := m.contracts[record.ContractID]
	if !ok {
		return &db.NotFoundError{Key: record.ContractID, Message: "staking contract not found"}
	}

	distributedAt := commit.SummaryEntry.DistributedAt
	p.TotalRewardsEarned += record.OpenEntryTickets
	p.LastRewardDistribution = &distributedAt
	p.RewardSummary = append(append([]model.RewardSummaryEntry{}, p.RewardSummary...), commit.SummaryEntry)
	c.TotalRewardsDistributed += record.OpenEntryTickets

	m.records = append(m.records, *record)
	m.positions[p.ID] = p
	m.contracts[c.ID] = c

	return nil
}

func (m *DB) SaveFailedRewardRecord(ctx context.Context, record *model.RewardHistoryRecord) error {
	if record.Status != types.RecordStatusFailed {
		return fmt.Errorf("record %s is not a failed record", record.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *record)
	return nil
}

func (m *DB) GetRewardHistoryByPosition(ctx context.Context, positionID string) ([]model.RewardHistoryRecord, error) {
	return m.filterRecords(func(r *model.RewardHistoryRecord) bool { return r.PositionID == positionID }), nil
}

func (m *DB) GetUserRewardTotals(ctx context.Context, userID string) (*model.UserRewardTotals, error) {
	totals := &model.UserRewardTotals{UserID: userID}
	for _, r := range m.distributed(func(r *model.RewardHistoryRecord) bool { return r.UserID == userID }) {
		totals.TotalTickets += r.OpenEntryTickets
		totals.TotalEffectiveValue += r.EffectiveValue
		totals.Distributions++
		if totals.LastDistribution == nil || r.DistributionDate.After(*totals.LastDistribution) {
			date := r.DistributionDate
			totals.LastDistribution = &date
		}
	}
	return totals, nil
}

func (m *DB) GetContractPerformance(ctx context.Context, contractID string) (*model.ContractPerformance, error) {
	performance := &model.ContractPerformance{ContractID: contractID}
	users := map[string]struct{}{}
	positions := map[string]struct{}{}
	var multipliers float64

	for _, r := range m.distributed(func(r *model.RewardHistoryRecord) bool { return r.ContractID == contractID }) {
		performance.TotalTickets += r.OpenEntryTickets
		performance.TotalEffectiveValue += r.EffectiveValue
		performance.Distributions++
		users[r.UserID] = struct{}{}
		positions[r.PositionID] = struct{}{}
		multipliers += r.BonusMultiplier
	}
	performance.UniqueUsers = int64(len(users))
	performance.UniquePositions = int64(len(positions))
	if performance.Distributions > 0 {
		performance.AverageMultiplier = multipliers / float64(performance.Distributions)
	}
	return performance, nil
}

func (m *DB) GetMonthlyDistributionSummary(ctx context.Context, from, to time.Time) ([]model.MonthlyDistributionSummary, error) {
	byMonth := map[string]*model.MonthlyDistributionSummary{}
	for _, r := range m.distributed(func(r *model.RewardHistoryRecord) bool {
		return !r.DistributionDate.Before(from) && r.DistributionDate.Before(to)
	}) {
		month := r.DistributionDate.UTC().Format("2006-01")
		s, ok := byMonth[month]
		if !ok {
			s = &model.MonthlyDistributionSummary{Month: month, ByType: map[types.DistributionType]int64{}}
			byMonth[month] = s
		}
		s.TotalTickets += r.OpenEntryTickets
		s.TotalEffectiveValue += r.EffectiveValue
		s.Distributions++
		s.ByType[r.DistributionType] += r.OpenEntryTickets
	}

	summary := make([]model.MonthlyDistributionSummary, 0, len(byMonth))
	for _, s := range byMonth {
		summary = append(summary, *s)
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Month < summary[j].Month })
	return summary, nil
}

func (m *DB) SumPositionLedgerTickets(ctx context.Context, positionID string) (int64, error) {
	var total int64
	for _, r := range m.distributed(func(r *model.RewardHistoryRecord) bool { return r.PositionID == positionID }) {
		total += r.OpenEntryTickets
	}
	return total, nil
}

func (m *DB) RebuildPositionRewardSummary(ctx context.Context, positionID string) (*model.StakingPosition, error) {
	records := m.distributed(func(r *model.RewardHistoryRecord) bool { return r.PositionID == positionID })

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[positionID]
	if !ok {
		return nil, &db.NotFoundError{Key: positionID, Message: "staking position not found"}
	}
	p.RewardSummary = make([]model.RewardSummaryEntry, 0, len(records))
	p.TotalRewardsEarned = 0
	for _, r := range records {
		p.RewardSummary = append(p.RewardSummary, model.RewardSummaryEntry{
			RecordID:         r.ID,
			DistributedAt:    r.DistributionDate,
			Tickets:          r.OpenEntryTickets,
			BonusMultiplier:  r.BonusMultiplier,
			DistributionType: r.DistributionType,
		})
		p.TotalRewardsEarned += r.OpenEntryTickets
	}
	m.positions[positionID] = p

	return m.getPosition(positionID)
}

func (m *DB) distributed(match func(r *model.RewardHistoryRecord) bool) []model.RewardHistoryRecord {
	return m.filterRecords(func(r *model.RewardHistoryRecord) bool {
		return r.Status == types.RecordStatusDistributed && match(r)
	})
}

func (m *DB) filterRecords(match func(r *model.RewardHistoryRecord) bool) []model.RewardHistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []model.RewardHistoryRecord
	for _, r := range m.records {
		if match(&r) {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DistributionDate.Before(records[j].DistributionDate)
	})
	return records
}

func (m *DB) AcquireDistributionLease(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[name]
	if ok && lease.Holder != holder && lease.ExpiresAt.After(now) {
		return &db.LeaseHeldError{Name: name, Holder: lease.Holder}
	}
	m.leases[name] = model.DistributionLease{ID: name, Holder: holder, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	return nil
}

func (m *DB) ReleaseDistributionLease(ctx context.Context, name, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lease, ok := m.leases[name]; ok && lease.Holder == holder {
		delete(m.leases, name)
	}
	return nil
}

func (m *DB) GetDistributionStatus(ctx context.Context) (*model.DistributionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == nil {
		return &model.DistributionStatus{}, nil
	}
	status := *m.status
	return &status, nil
}

func (m *DB) RecordDistributionBatch(ctx context.Context, batch *model.BatchSummaryDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == nil {
		m.status = &model.DistributionStatus{}
	}
	m.status.TotalDistributed += batch.TotalTickets
	m.status.TotalErrors += int64(batch.Failed)
	if m.status.LastRun == nil || batch.StartedAt.After(*m.status.LastRun) {
		lastRun := batch.StartedAt
		m.status.LastRun = &lastRun
	}
	if m.status.LastBatch == nil || !batch.StartedAt.Before(m.status.LastBatch.StartedAt) {
		saved := *batch
		m.status.LastBatch = &saved
	}
	return nil
}

func (m *DB) CountStakesByUserSince(ctx context.Context, since time.Time, threshold int64) ([]model.UserStakeCount, error) {
	counts := map[string]int64{}
	for _, p := range m.filterPositions(func(p *model.StakingPosition) bool { return !p.StakedAt.Before(since) }, nil, 0) {
		counts[p.UserID]++
	}

	var result []model.UserStakeCount
	for user, count := range counts {
		if count > threshold {
			result = append(result, model.UserStakeCount{UserID: user, Count: count})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Count > result[j].Count })
	return result, nil
}

func (m *DB) CountStakesByContractSince(ctx context.Context, since time.Time) ([]model.ContractStakeCount, error) {
	counts := map[string]int64{}
	for _, p := range m.filterPositions(func(p *model.StakingPosition) bool { return !p.StakedAt.Before(since) }, nil, 0) {
		counts[p.ContractID]++
	}

	result := make([]model.ContractStakeCount, 0, len(counts))
	for contract, count := range counts {
		result = append(result, model.ContractStakeCount{ContractID: contract, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ContractID < result[j].ContractID })
	return result, nil
}

// Records returns every ledger record, failed ones included
func (m *DB) Records() []model.RewardHistoryRecord {
	return m.filterRecords(func(*model.RewardHistoryRecord) bool { return true })
}

func clonePosition(p *model.StakingPosition) model.StakingPosition {
	clone := *p
	clone.RewardSummary = append([]model.RewardSummaryEntry{}, p.RewardSummary...)
	if p.LastRewardDistribution != nil {
		last := *p.LastRewardDistribution
		clone.LastRewardDistribution = &last
	}
	if p.ProcessingLock != nil {
		lock := *p.ProcessingLock
		clone.ProcessingLock = &lock
	}
	if p.Verification != nil {
		verification := *p.Verification
		clone.Verification = &verification
	}
	return clone
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
