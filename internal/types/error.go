package types

import (
	"context"
	"errors"
	"fmt"
)

// Error codes surfaced in batch summaries
const (
	ErrCodeContractInactive      = "CONTRACT_INACTIVE"
	ErrCodeUnsupportedDuration   = "UNSUPPORTED_DURATION"
	ErrCodeTicketIssuance        = "TICKET_ISSUANCE_FAILED"
	ErrCodeNotificationTimeout   = "NOTIFICATION_TIMEOUT"
	ErrCodePositionNotEligible   = "POSITION_NOT_ELIGIBLE"
	ErrCodePositionRewarded      = "POSITION_ALREADY_REWARDED"
	ErrCodePositionUnverified    = "POSITION_UNVERIFIED"
	ErrCodePositionLocked        = "POSITION_LOCKED"
	ErrCodeInternal              = "INTERNAL_ERROR"
	ErrCodeDeadlineExceeded      = "DEADLINE_EXCEEDED"
	ErrCodeEarlyUnstakeNoReason  = "EARLY_UNSTAKE_REASON_REQUIRED"
	ErrCodePositionNotUnstakable = "POSITION_NOT_UNSTAKABLE"
)

// ContractInactiveError is returned when a contract was deactivated (or never
// validated) between the eligibility query and processing. It is not retried
// until an admin reactivates the contract.
type ContractInactiveError struct {
	ContractID string
	Active     bool
	Validated  bool
}

func (e *ContractInactiveError) Error() string {
	return fmt.Sprintf("staking contract %s is not distributable (active=%t, validated=%t)",
		e.ContractID, e.Active, e.Validated)
}

// UnsupportedDurationError signals malformed contract or position configuration
type UnsupportedDurationError struct {
	Duration int
}

func (e *UnsupportedDurationError) Error() string {
	return fmt.Sprintf("unsupported staking duration %d months, expected one of 6, 12, 36", e.Duration)
}

// TicketIssuanceError wraps any failure of the ticket minting collaborator.
// The position was not advanced so the next scheduled run retries it.
type TicketIssuanceError struct {
	UserID string
	Count  int64
	Err    error
}

func (e *TicketIssuanceError) Error() string {
	return fmt.Sprintf("failed to mint %d free entries for user %s: %v", e.Count, e.UserID, e.Err)
}

func (e *TicketIssuanceError) Unwrap() error {
	return e.Err
}

// NotificationTimeoutError is logged when a reward notification could not be
// handed to the transport in time. It never fails a distribution.
type NotificationTimeoutError struct {
	UserID string
	Err    error
}

func (e *NotificationTimeoutError) Error() string {
	return fmt.Sprintf("reward notification for user %s timed out: %v", e.UserID, e.Err)
}

func (e *NotificationTimeoutError) Unwrap() error {
	return e.Err
}

type PositionNotEligibleError struct {
	PositionID string
	Reason     string
}

func (e *PositionNotEligibleError) Error() string {
	return fmt.Sprintf("position %s is not eligible for rewards: %s", e.PositionID, e.Reason)
}

// PositionAlreadyRewardedError is returned by the commit when another run
// advanced the position's last distribution after it was read.
type PositionAlreadyRewardedError struct {
	PositionID string
}

func (e *PositionAlreadyRewardedError) Error() string {
	return fmt.Sprintf("position %s was rewarded concurrently", e.PositionID)
}

type PositionUnverifiedError struct {
	PositionID string
}

func (e *PositionUnverifiedError) Error() string {
	return fmt.Sprintf("position %s has not passed on-chain verification", e.PositionID)
}

// PositionLockedError means another job currently holds the position
type PositionLockedError struct {
	PositionID string
}

func (e *PositionLockedError) Error() string {
	return fmt.Sprintf("position %s is being processed by another job", e.PositionID)
}

type PositionNotUnstakableError struct {
	PositionID string
	Reason     string
}

func (e *PositionNotUnstakableError) Error() string {
	return fmt.Sprintf("position %s cannot be unstaked: %s", e.PositionID, e.Reason)
}

var ErrEarlyUnstakeReasonRequired = errors.New("a reason is required to unstake before the lock period ends")

// ErrorCode maps an error to the code reported for a position in a batch summary
func ErrorCode(err error) string {
	var (
		contractInactive *ContractInactiveError
		unsupported      *UnsupportedDurationError
		ticket           *TicketIssuanceError
		notification     *NotificationTimeoutError
		notEligible      *PositionNotEligibleError
		rewarded         *PositionAlreadyRewardedError
		unverified       *PositionUnverifiedError
		locked           *PositionLockedError
		notUnstakable    *PositionNotUnstakableError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &contractInactive):
		return ErrCodeContractInactive
	case errors.As(err, &unsupported):
		return ErrCodeUnsupportedDuration
	case errors.As(err, &ticket):
		return ErrCodeTicketIssuance
	case errors.As(err, &notification):
		return ErrCodeNotificationTimeout
	case errors.As(err, &notEligible):
		return ErrCodePositionNotEligible
	case errors.As(err, &rewarded):
		return ErrCodePositionRewarded
	case errors.As(err, &unverified):
		return ErrCodePositionUnverified
	case errors.As(err, &locked):
		return ErrCodePositionLocked
	case errors.As(err, &notUnstakable):
		return ErrCodePositionNotUnstakable
	case errors.Is(err, ErrEarlyUnstakeReasonRequired):
		return ErrCodeEarlyUnstakeNoReason
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeDeadlineExceeded
	default:
		return ErrCodeInternal
	}
}

// IsRetryable reports whether the next scheduled run may succeed without
// admin intervention.
func IsRetryable(err error) bool {
	switch ErrorCode(err) {
	case ErrCodeContractInactive, ErrCodeUnsupportedDuration, ErrCodePositionUnverified, ErrCodePositionNotEligible:
		return false
	default:
		return true
	}
}
