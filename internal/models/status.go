package models

// SyncStatus is the computed relationship between a slot's local and cloud
// copies.
type SyncStatus string

const (
	// StatusEmpty means neither store holds a payload for the slot.
	StatusEmpty SyncStatus = "empty"

	// StatusSynced means both copies exist and their comparison tokens match.
	StatusSynced SyncStatus = "synced"

	// StatusLocalNewer means the local copy should be propagated to the cloud.
	StatusLocalNewer SyncStatus = "local_newer"

	// StatusCloudNewer means the cloud copy should be propagated locally.
	StatusCloudNewer SyncStatus = "cloud_newer"

	// StatusConflict means both copies diverged and neither timestamp
	// dominates within the clock-skew tolerance.
	StatusConflict SyncStatus = "conflict"

	// StatusSyncFailed means the last network operation for the slot errored.
	StatusSyncFailed SyncStatus = "sync_failed"
)

// NeedsAction reports whether the status requires a sync operation.
func (s SyncStatus) NeedsAction() bool {
	switch s {
	case StatusLocalNewer, StatusCloudNewer, StatusConflict, StatusSyncFailed:
		return true
	default:
		return false
	}
}

// Direction identifies which way payload bytes move for a slot operation.
type Direction string

const (
	DirectionNone    Direction = ""
	DirectionBackup  Direction = "backup"  // local -> cloud
	DirectionRestore Direction = "restore" // cloud -> local
)
