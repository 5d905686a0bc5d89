// Package registry maintains the in-memory index of per-slot sync
// descriptors. The cache is derived from store reads and is advisory: refresh
// is the only way new truth enters it, and components treat snapshots as
// possibly stale views, never as a source of truth.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/models"
	"github.com/TheMichaelB/savesync/internal/remote"
	"github.com/TheMichaelB/savesync/internal/store"
)

// Classifier computes a slot's sync status from its two metadata copies. It
// is injected so the registry stays free of policy.
type Classifier func(local, cloud *models.SlotMetadata) models.SyncStatus

// Registry caches per-slot descriptors for the fixed slot space 0..N-1.
type Registry struct {
	local    store.Store
	cloud    remote.Store
	gate     *remote.Gate
	classify Classifier
	logger   *events.Logger

	slotCount     int
	maxConcurrent int

	mu      sync.RWMutex
	entries map[int]*entry
}

// entry is the mutable cached state for one slot.
type entry struct {
	local      *models.SlotMetadata
	cloud      *models.SlotMetadata
	cloudStale bool

	lastDirection models.Direction
	lastError     string
}

// New creates a registry over the given stores.
func New(local store.Store, cloud remote.Store, gate *remote.Gate, classify Classifier, slotCount, maxConcurrent int, logger *events.Logger) *Registry {
	return &Registry{
		local:         local,
		cloud:         cloud,
		gate:          gate,
		classify:      classify,
		logger:        logger.WithField("component", "registry"),
		slotCount:     slotCount,
		maxConcurrent: maxConcurrent,
		entries:       make(map[int]*entry),
	}
}

// SlotCount returns the size of the slot space.
func (r *Registry) SlotCount() int { return r.slotCount }

// Refresh re-reads metadata for the requested slots (all slots if none
// given). Local reads are unconditional. Cloud stats run concurrently per
// slot and only when the gate is ready; one slot's remote failure never
// aborts the others — its prior cloud metadata is retained and marked stale.
func (r *Registry) Refresh(ctx context.Context, slots ...int) (map[int]*models.SaveSlot, error) {
	if len(slots) == 0 {
		slots = make([]int, r.slotCount)
		for i := range slots {
			slots[i] = i
		}
	}

	for _, slot := range slots {
		if slot < 0 || slot >= r.slotCount {
			return nil, fmt.Errorf("slot %d out of range [0, %d)", slot, r.slotCount)
		}
	}

	type cloudResult struct {
		meta *models.SlotMetadata
		err  error
	}
	cloudResults := make(map[int]cloudResult, len(slots))
	remoteReady := r.gate.Ready()

	if remoteReady {
		var wg sync.WaitGroup
		var resMu sync.Mutex
		sem := make(chan struct{}, r.maxConcurrent)

		for _, slot := range slots {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()

				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					resMu.Lock()
					cloudResults[slot] = cloudResult{err: ctx.Err()}
					resMu.Unlock()
					return
				}

				meta, err := r.cloud.Stat(ctx, slot)
				resMu.Lock()
				cloudResults[slot] = cloudResult{meta: meta, err: err}
				resMu.Unlock()
			}(slot)
		}
		wg.Wait()
	}

	result := make(map[int]*models.SaveSlot, len(slots))

	for _, slot := range slots {
		localMeta, err := r.local.ReadMeta(slot)
		if err != nil && !errors.Is(err, models.ErrSlotNotFound) {
			r.logger.WithSlot(slot).WithError(err).Warn("Local metadata read failed")
			localMeta = nil
		}

		r.mu.Lock()
		e := r.ensureEntry(slot)
		e.local = localMeta

		if remoteReady {
			res := cloudResults[slot]
			switch {
			case res.err == nil:
				e.cloud = res.meta
				e.cloudStale = false
			case errors.Is(res.err, models.ErrSlotNotFound):
				e.cloud = nil
				e.cloudStale = false
			default:
				// Keep the previous cloud view rather than discarding it.
				e.cloudStale = e.cloud != nil
				r.logger.WithSlot(slot).WithError(res.err).Warn("Cloud metadata read failed")
			}
		} else {
			e.cloudStale = e.cloud != nil
		}

		result[slot] = r.snapshotLocked(slot, e)
		r.mu.Unlock()
	}

	return result, nil
}

// Snapshot returns a copy of the cached descriptor for one slot.
func (r *Registry) Snapshot(slot int) (*models.SaveSlot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[slot]
	if !ok {
		return nil, false
	}
	return r.snapshotLocked(slot, e), true
}

// Snapshots returns copies of all cached descriptors, ordered by slot.
func (r *Registry) Snapshots() []*models.SaveSlot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slots := make([]int, 0, len(r.entries))
	for slot := range r.entries {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	result := make([]*models.SaveSlot, 0, len(slots))
	for _, slot := range slots {
		result = append(result, r.snapshotLocked(slot, r.entries[slot]))
	}
	return result
}

// ApplyLocal records a successful local write (or delete, with nil metadata)
// without a full refresh.
func (r *Registry) ApplyLocal(slot int, meta *models.SlotMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.ensureEntry(slot)
	e.local = meta.Clone()
}

// ApplyCloud records a successful cloud write (or delete, with nil metadata)
// without a full refresh.
func (r *Registry) ApplyCloud(slot int, meta *models.SlotMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.ensureEntry(slot)
	e.cloud = meta.Clone()
	e.cloudStale = false
}

// MarkCloudStale flags a slot's cached cloud metadata as possibly outdated,
// typically on a change-feed notice. The next refresh re-stats the slot.
func (r *Registry) MarkCloudStale(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[slot]; ok && e.cloud != nil {
		e.cloudStale = true
	}
}

// MarkFailure records a failed network operation for the slot; the snapshot
// reports sync_failed until the next success clears it.
func (r *Registry) MarkFailure(slot int, direction models.Direction, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.ensureEntry(slot)
	e.lastDirection = direction
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = "unknown error"
	}
}

// ClearFailure removes the failure overlay after a successful operation.
func (r *Registry) ClearFailure(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[slot]; ok {
		e.lastError = ""
		e.lastDirection = models.DirectionNone
	}
}

func (r *Registry) ensureEntry(slot int) *entry {
	e, ok := r.entries[slot]
	if !ok {
		e = &entry{}
		r.entries[slot] = e
	}
	return e
}

// snapshotLocked builds a SaveSlot view; callers hold the mutex.
func (r *Registry) snapshotLocked(slot int, e *entry) *models.SaveSlot {
	status := r.classify(e.local, e.cloud)
	if e.lastError != "" {
		status = models.StatusSyncFailed
	}

	return &models.SaveSlot{
		SlotNumber:    slot,
		Local:         e.local.Clone(),
		Cloud:         e.cloud.Clone(),
		CloudStale:    e.cloudStale,
		Status:        status,
		LastDirection: e.lastDirection,
		LastError:     e.lastError,
	}
}
