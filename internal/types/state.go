package types

// Enum values for Position Status
type PositionStatus string

const (
	PositionStatusActive   PositionStatus = "active"
	PositionStatusUnstaked PositionStatus = "unstaked"
)

func (s PositionStatus) String() string {
	return string(s)
}

// DistributionType tags every ledger record with the trigger that produced it
type DistributionType string

const (
	DistributionTypeMonthly DistributionType = "monthly"
	DistributionTypeMissed  DistributionType = "missed"
	DistributionTypeManual  DistributionType = "manual"
	DistributionTypeClaim   DistributionType = "claim"
)

func (t DistributionType) String() string {
	return string(t)
}

type RecordStatus string

const (
	RecordStatusDistributed RecordStatus = "distributed"
	RecordStatusFailed      RecordStatus = "failed"
)

func (s RecordStatus) String() string {
	return string(s)
}

// BatchTrigger identifies what started a distribution batch
type BatchTrigger string

const (
	TriggerMonthly        BatchTrigger = "monthly"
	TriggerReconciliation BatchTrigger = "reconciliation"
	TriggerManual         BatchTrigger = "manual"
)

func (t BatchTrigger) String() string {
	return string(t)
}

// DistributionType returns the ledger tag used for rewards paid by the trigger
// when exactly one period is owed.
func (t BatchTrigger) DistributionType() DistributionType {
	switch t {
	case TriggerReconciliation:
		return DistributionTypeMissed
	case TriggerManual:
		return DistributionTypeManual
	default:
		return DistributionTypeMonthly
	}
}

// IsFullBatch reports whether the trigger sweeps all eligible positions
// (as opposed to a targeted admin run).
func (t BatchTrigger) IsFullBatch() bool {
	return t == TriggerMonthly || t == TriggerReconciliation
}

type PositionOutcome string

const (
	OutcomeSuccess PositionOutcome = "success"
	OutcomeFailed  PositionOutcome = "failed"
	OutcomeSkipped PositionOutcome = "skipped"
)

func (o PositionOutcome) String() string {
	return string(o)
}
