package models

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the engine's failure taxonomy. Batch operations
// capture these per slot; single-slot operations propagate them directly.
var (
	// ErrSlotNotFound means the queried side holds no payload for the slot.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrRemoteUnavailable covers offline state, transport failures and
	// timeouts. The affected slot is marked sync_failed.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrRemoteRejected covers auth and server-side refusals.
	ErrRemoteRejected = errors.New("remote store rejected request")

	// ErrQuotaExceeded is returned by the pre-flight check before backup.
	ErrQuotaExceeded = errors.New("cloud storage quota exceeded")

	// ErrAmbiguousResolution means keep-newest could not pick a winner
	// because the timestamps tie within tolerance. No store was mutated.
	ErrAmbiguousResolution = errors.New("ambiguous resolution: timestamps tie within tolerance")

	// ErrOperationInProgress rejects a re-entrant call on a busy slot.
	ErrOperationInProgress = errors.New("operation already in progress for slot")

	// ErrManualChoiceRequired means a conflict was resolved with the manual
	// policy and awaits an explicit keep-local or keep-cloud decision.
	ErrManualChoiceRequired = errors.New("manual conflict choice required")

	// ErrNewerCopyExists guards backup/restore against overwriting a
	// destination copy that is strictly newer; callers opt in with the
	// OverwriteNewer option or resolve the conflict explicitly.
	ErrNewerCopyExists = errors.New("destination holds a newer copy")
)

// SlotError wraps a failure with the operation and slot it belongs to, so
// batch results carry enough context for a targeted retry.
type SlotError struct {
	Op   OperationType
	Slot int
	Err  error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("%s slot %d: %v", e.Op, e.Slot, e.Err)
}

func (e *SlotError) Unwrap() error { return e.Err }

// ValidationError rejects a corrupt or unsupported import blob. No store
// mutation was attempted, so the slot's status is left unchanged.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// QuotaError reports the pre-flight quota check failure with the numbers the
// UI needs to explain it.
type QuotaError struct {
	NeededBytes    int64
	RemainingBytes int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: need %d bytes, %d remaining", e.NeededBytes, e.RemainingBytes)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// PartialFailureError reports a combined delete where one half succeeded. The
// caller retries only the failed half.
type PartialFailureError struct {
	Slot      int
	CloudDone bool
	LocalDone bool
	CloudErr  error
	LocalErr  error
}

func (e *PartialFailureError) Error() string {
	switch {
	case e.CloudDone && !e.LocalDone:
		return fmt.Sprintf("slot %d: cloud copy deleted but local delete failed: %v", e.Slot, e.LocalErr)
	case e.LocalDone && !e.CloudDone:
		return fmt.Sprintf("slot %d: local copy deleted but cloud delete failed: %v", e.Slot, e.CloudErr)
	default:
		return fmt.Sprintf("slot %d: partial delete failure (cloud: %v, local: %v)", e.Slot, e.CloudErr, e.LocalErr)
	}
}

// IsRetryable reports whether the error is worth retrying without operator
// intervention.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}
