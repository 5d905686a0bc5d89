package sync

import (
	"time"

	"github.com/TheMichaelB/savesync/internal/models"
)

// Classify computes a slot's sync status from its local and cloud metadata.
// It is a pure function: the same metadata pair always yields the same
// status.
//
// Presence on one side alone means "needs propagation", not a conflict. When
// both copies exist with different comparison tokens, timestamps decide —
// but only outside the clock-skew tolerance band. Within the band neither
// side can be trusted to be newer, so the divergence is surfaced as a
// conflict instead of risking silent loss of a save.
func Classify(local, cloud *models.SlotMetadata, tolerance time.Duration) models.SyncStatus {
	switch {
	case local == nil && cloud == nil:
		return models.StatusEmpty
	case cloud == nil:
		return models.StatusLocalNewer
	case local == nil:
		return models.StatusCloudNewer
	}

	if local.SameToken(cloud) {
		return models.StatusSynced
	}

	delta := local.LastModified.Sub(cloud.LastModified)
	switch {
	case delta > tolerance:
		return models.StatusLocalNewer
	case delta < -tolerance:
		return models.StatusCloudNewer
	default:
		return models.StatusConflict
	}
}

// NewClassifier binds a tolerance, producing the classifier the registry
// uses for snapshots.
func NewClassifier(tolerance time.Duration) func(local, cloud *models.SlotMetadata) models.SyncStatus {
	return func(local, cloud *models.SlotMetadata) models.SyncStatus {
		return Classify(local, cloud, tolerance)
	}
}
