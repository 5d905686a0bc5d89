package models

import "time"

// OperationType identifies an orchestrated sync action.
type OperationType string

const (
	OpBackup  OperationType = "backup"
	OpRestore OperationType = "restore"
	OpResolve OperationType = "resolve"
	OpDelete  OperationType = "delete"
)

// OperationStatus tracks a SyncOperation through its lifetime.
type OperationStatus string

const (
	OpPending    OperationStatus = "pending"
	OpInProgress OperationStatus = "in_progress"
	OpCompleted  OperationStatus = "completed"
	OpFailed     OperationStatus = "failed"
)

// SyncOperation is a transient work item for one slot. It is created when an
// orchestrated action starts and discarded once the caller observes
// completion; it is never persisted.
type SyncOperation struct {
	Type            OperationType   `json:"type"`
	SlotNumber      int             `json:"slot_number"`
	Status          OperationStatus `json:"status"`
	ProgressPercent int             `json:"progress_percent"`
	StartedAt       time.Time       `json:"started_at"`
	Err             error           `json:"-"`
}

// Done reports whether the operation reached a terminal state.
func (o *SyncOperation) Done() bool {
	return o.Status == OpCompleted || o.Status == OpFailed
}
