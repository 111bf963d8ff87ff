package model

import "time"

const (
	DistributionLeaseCollection  = "distribution_leases"
	DistributionStatusCollection = "distribution_status"

	// RewardDistributionLease is shared by the monthly run and the
	// reconciliation sweep so the two never overlap across instances.
	RewardDistributionLease = "reward_distribution"
)

// DistributionLease is a time bounded lock held by one service instance
type DistributionLease struct {
	ID         string    `bson:"_id"`
	Holder     string    `bson:"holder"`
	AcquiredAt time.Time `bson:"acquired_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

// BatchSummaryDocument is the persisted summary of the last full batch
type BatchSummaryDocument struct {
	BatchID         string    `bson:"batch_id" json:"batchId"`
	Trigger         string    `bson:"trigger" json:"trigger"`
	StartedAt       time.Time `bson:"started_at" json:"startedAt"`
	TotalProcessed  int       `bson:"total_processed" json:"totalProcessed"`
	Successful      int       `bson:"successful" json:"successful"`
	Failed          int       `bson:"failed" json:"failed"`
	Skipped         int       `bson:"skipped" json:"skipped"`
	TotalTickets    int64     `bson:"total_tickets" json:"totalTickets"`
	ExecutionTimeMs int64     `bson:"execution_time_ms" json:"executionTimeMs"`
}

// DistributionStatus is the singleton status document shared by every
// instance. It is only ever changed through RecordDistributionBatch.
type DistributionStatus struct {
	LastRun          *time.Time            `bson:"last_run" json:"lastRun"`
	TotalDistributed int64                 `bson:"total_distributed" json:"totalDistributed"`
	TotalErrors      int64                 `bson:"total_errors" json:"totalErrors"`
	LastBatch        *BatchSummaryDocument `bson:"last_batch,omitempty" json:"lastBatch,omitempty"`
}

// UserStakeCount and ContractStakeCount feed anomaly detection
type UserStakeCount struct {
	UserID string `bson:"_id"`
	Count  int64  `bson:"count"`
}

type ContractStakeCount struct {
	ContractID string `bson:"_id"`
	Count      int64  `bson:"count"`
}
