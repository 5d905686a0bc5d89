package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/models"
	"github.com/TheMichaelB/savesync/internal/registry"
	"github.com/TheMichaelB/savesync/internal/remote"
	"github.com/TheMichaelB/savesync/internal/store"
)

// Policy selects how a divergent slot collapses to one copy.
type Policy string

const (
	PolicyKeepLocal  Policy = "keep_local"
	PolicyKeepCloud  Policy = "keep_cloud"
	PolicyKeepNewest Policy = "keep_newest"
	PolicyManual     Policy = "manual"
)

// Resolution records a completed conflict resolution. PreviousStatus is kept
// for audit display; the engine does not support rollback.
type Resolution struct {
	Slot           int                  `json:"slot"`
	Policy         Policy               `json:"policy"`
	Winner         models.Direction     `json:"winner"`
	PreviousStatus models.SyncStatus    `json:"previous_status"`
	Meta           *models.SlotMetadata `json:"meta"`
	ResolvedAt     time.Time            `json:"resolved_at"`
}

// PendingManualChoice carries both candidate metadata (never payloads) for an
// external decision-maker. Resolution is re-invoked with keep_local or
// keep_cloud once the choice is made.
type PendingManualChoice struct {
	Slot  int                  `json:"slot"`
	Local *models.SlotMetadata `json:"local"`
	Cloud *models.SlotMetadata `json:"cloud"`
}

// Resolver collapses divergent slot copies according to a policy.
type Resolver struct {
	local     store.Store
	cloud     remote.Store
	registry  *registry.Registry
	tolerance time.Duration
	logger    *events.Logger
}

// NewResolver creates a conflict resolver.
func NewResolver(local store.Store, cloud remote.Store, reg *registry.Registry, tolerance time.Duration, logger *events.Logger) *Resolver {
	return &Resolver{
		local:     local,
		cloud:     cloud,
		registry:  reg,
		tolerance: tolerance,
		logger:    logger.WithField("component", "conflict_resolver"),
	}
}

// Resolve applies a policy to a divergent slot. On success both stores hold
// identical payload and metadata and the slot reports synced. The manual
// policy mutates nothing and returns a PendingManualChoice alongside
// models.ErrManualChoiceRequired. A keep_newest tie mutates nothing and
// returns models.ErrAmbiguousResolution.
func (r *Resolver) Resolve(ctx context.Context, slot int, policy Policy) (*Resolution, *PendingManualChoice, error) {
	slots, err := r.registry.Refresh(ctx, slot)
	if err != nil {
		return nil, nil, fmt.Errorf("refresh slot %d: %w", slot, err)
	}
	snap := slots[slot]

	if !snap.LocalPresent() || !snap.CloudPresent() {
		return nil, nil, &models.SlotError{Op: models.OpResolve, Slot: slot,
			Err: fmt.Errorf("both copies required for resolution, status %s", snap.Status)}
	}

	if snap.Local.SameToken(snap.Cloud) {
		// Nothing to collapse.
		r.registry.ClearFailure(slot)
		return &Resolution{
			Slot:           slot,
			Policy:         policy,
			Winner:         models.DirectionNone,
			PreviousStatus: snap.Status,
			Meta:           snap.Local,
			ResolvedAt:     time.Now(),
		}, nil, nil
	}

	switch policy {
	case PolicyManual:
		return nil, &PendingManualChoice{
			Slot:  slot,
			Local: snap.Local,
			Cloud: snap.Cloud,
		}, models.ErrManualChoiceRequired

	case PolicyKeepNewest:
		delta := snap.Local.LastModified.Sub(snap.Cloud.LastModified)
		switch {
		case delta > r.tolerance:
			policy = PolicyKeepLocal
		case delta < -r.tolerance:
			policy = PolicyKeepCloud
		default:
			return nil, nil, models.ErrAmbiguousResolution
		}

	case PolicyKeepLocal, PolicyKeepCloud:
		// Explicit winner.

	default:
		return nil, nil, fmt.Errorf("unknown policy: %s", policy)
	}

	r.logger.WithFields(map[string]interface{}{
		"slot":   slot,
		"policy": policy,
	}).Info("Resolving conflict")

	var winner models.Direction
	var meta *models.SlotMetadata

	if policy == PolicyKeepLocal {
		winner = models.DirectionBackup
		payload, localMeta, err := r.local.Read(slot)
		if err != nil {
			return nil, nil, &models.SlotError{Op: models.OpResolve, Slot: slot, Err: err}
		}
		if err := r.cloud.Write(ctx, slot, payload, localMeta); err != nil {
			r.registry.MarkFailure(slot, models.DirectionBackup, err)
			return nil, nil, &models.SlotError{Op: models.OpResolve, Slot: slot, Err: err}
		}
		r.registry.ApplyCloud(slot, localMeta)
		meta = localMeta
	} else {
		winner = models.DirectionRestore
		payload, cloudMeta, err := r.cloud.Read(ctx, slot)
		if err != nil {
			r.registry.MarkFailure(slot, models.DirectionRestore, err)
			return nil, nil, &models.SlotError{Op: models.OpResolve, Slot: slot, Err: err}
		}
		if !models.VerifyChecksum(payload, cloudMeta.Checksum) {
			err := fmt.Errorf("cloud payload failed integrity check for slot %d", slot)
			r.registry.MarkFailure(slot, models.DirectionRestore, err)
			return nil, nil, &models.SlotError{Op: models.OpResolve, Slot: slot, Err: err}
		}
		if err := r.local.Write(slot, payload, cloudMeta); err != nil {
			return nil, nil, &models.SlotError{Op: models.OpResolve, Slot: slot, Err: err}
		}
		r.registry.ApplyLocal(slot, cloudMeta)
		meta = cloudMeta
	}

	r.registry.ClearFailure(slot)

	return &Resolution{
		Slot:           slot,
		Policy:         policy,
		Winner:         winner,
		PreviousStatus: snap.Status,
		Meta:           meta,
		ResolvedAt:     time.Now(),
	}, nil, nil
}
