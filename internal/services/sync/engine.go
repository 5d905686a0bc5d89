package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/models"
	"github.com/TheMichaelB/savesync/internal/registry"
	"github.com/TheMichaelB/savesync/internal/remote"
	"github.com/TheMichaelB/savesync/internal/services/quota"
	"github.com/TheMichaelB/savesync/internal/store"
)

// Config contains engine tuning.
type Config struct {
	// MaxConcurrent bounds the per-slot fan-out of batch operations.
	MaxConcurrent int

	// ClockSkewTolerance is the band within which divergent timestamps are
	// treated as a conflict.
	ClockSkewTolerance time.Duration

	// EventBuffer caps the progress channel; oldest events are dropped on
	// overflow since progress is advisory.
	EventBuffer int
}

// BackupOptions configures a backup operation. Unknown behavior is not an
// option bag: every recognized field is enumerated here.
type BackupOptions struct {
	// OverwriteNewer permits overwriting a cloud copy that is strictly
	// newer than the local one. Off by default; the safe path is explicit
	// conflict resolution.
	OverwriteNewer bool
}

// RestoreOptions configures a restore operation, mirroring BackupOptions.
type RestoreOptions struct {
	OverwriteNewer bool
}

// Engine orchestrates multi-slot sync operations: sequencing network calls,
// enforcing the one-operation-per-slot rule, tracking progress, and
// aggregating per-slot failures.
type Engine struct {
	local  store.Store
	cloud  remote.Store
	reg    *registry.Registry
	quota  *quota.Tracker
	logger *events.Logger

	tolerance     time.Duration
	maxConcurrent int

	// Progress stream. The channel is never closed; emit drops the oldest
	// event when the buffer is full.
	evMu   sync.Mutex
	events chan Event

	// One in-flight operation per slot.
	slotMu   sync.Mutex
	inflight map[int]*models.SyncOperation
}

// errSlotSkipped signals a no-op inside slot helpers; it never escapes the
// engine.
var errSlotSkipped = errors.New("slot skipped")

// NewEngine creates a sync engine.
func NewEngine(local store.Store, cloud remote.Store, reg *registry.Registry, tracker *quota.Tracker, cfg *Config, logger *events.Logger) *Engine {
	return &Engine{
		local:         local,
		cloud:         cloud,
		reg:           reg,
		quota:         tracker,
		logger:        logger.WithField("component", "sync_engine"),
		tolerance:     cfg.ClockSkewTolerance,
		maxConcurrent: cfg.MaxConcurrent,
		events:        make(chan Event, cfg.EventBuffer),
		inflight:      make(map[int]*models.SyncOperation),
	}
}

// Events returns the progress event stream. The channel is never closed;
// consumers stop reading when done.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// ActiveOperations returns a snapshot of in-flight per-slot operations.
func (e *Engine) ActiveOperations() []models.SyncOperation {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()

	ops := make([]models.SyncOperation, 0, len(e.inflight))
	for _, op := range e.inflight {
		ops = append(ops, *op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].SlotNumber < ops[j].SlotNumber })
	return ops
}

// Backup copies a slot's local payload to the cloud, tagged with the local
// metadata. Repeated calls with an unchanged local payload are no-ops: the
// comparison token short-circuits before any write.
func (e *Engine) Backup(ctx context.Context, slot int, opts BackupOptions) (err error) {
	if err := e.acquireSlot(slot, models.OpBackup); err != nil {
		return err
	}
	defer func() { e.finishSlot(slot, err) }()

	slots, err := e.reg.Refresh(ctx, slot)
	if err != nil {
		return err
	}

	e.beginSlot(slot)
	e.emit(Event{Slot: slot, Phase: PhaseSlotStarted, Message: "backing up", Timestamp: time.Now()})

	err = e.backupSlot(ctx, slot, slots[slot], opts)
	if errors.Is(err, errSlotSkipped) {
		e.emit(Event{Slot: slot, Phase: PhaseSlotSkipped, Percent: 100, Message: "already synced", Timestamp: time.Now()})
		return nil
	}
	if err != nil {
		e.emit(Event{Slot: slot, Phase: PhaseSlotFailed, Message: err.Error(), Err: err, Timestamp: time.Now()})
		return err
	}

	e.emit(Event{Slot: slot, Phase: PhaseSlotCompleted, Percent: 100, Message: "backup complete", Timestamp: time.Now()})
	return nil
}

// Restore copies a slot's cloud payload into the local store, mirroring
// Backup.
func (e *Engine) Restore(ctx context.Context, slot int, opts RestoreOptions) (err error) {
	if err := e.acquireSlot(slot, models.OpRestore); err != nil {
		return err
	}
	defer func() { e.finishSlot(slot, err) }()

	slots, err := e.reg.Refresh(ctx, slot)
	if err != nil {
		return err
	}

	e.beginSlot(slot)
	e.emit(Event{Slot: slot, Phase: PhaseSlotStarted, Message: "restoring", Timestamp: time.Now()})

	err = e.restoreSlot(ctx, slot, slots[slot], opts)
	if errors.Is(err, errSlotSkipped) {
		e.emit(Event{Slot: slot, Phase: PhaseSlotSkipped, Percent: 100, Message: "already synced", Timestamp: time.Now()})
		return nil
	}
	if err != nil {
		e.emit(Event{Slot: slot, Phase: PhaseSlotFailed, Message: err.Error(), Err: err, Timestamp: time.Now()})
		return err
	}

	e.emit(Event{Slot: slot, Phase: PhaseSlotCompleted, Percent: 100, Message: "restore complete", Timestamp: time.Now()})
	return nil
}

// QuickSync reconciles every slot not already synced, using the registry's
// current cache. Local-newer slots are backed up, cloud-newer slots
// restored, conflicts deferred to the caller, and slots whose last network
// operation failed get a single retry in the last attempted direction.
func (e *Engine) QuickSync(ctx context.Context) (*BatchResult, error) {
	snaps := e.reg.Snapshots()
	if len(snaps) == 0 {
		refreshed, err := e.reg.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		snaps = make([]*models.SaveSlot, 0, len(refreshed))
		for _, snap := range refreshed {
			snaps = append(snaps, snap)
		}
		sort.Slice(snaps, func(i, j int) bool { return snaps[i].SlotNumber < snaps[j].SlotNumber })
	}

	return e.syncBatch(ctx, snaps)
}

// FullSync is QuickSync preceded by a forced metadata refresh across all
// slots, so decisions are based on current state rather than the cache.
func (e *Engine) FullSync(ctx context.Context) (*BatchResult, error) {
	refreshed, err := e.reg.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	snaps := make([]*models.SaveSlot, 0, len(refreshed))
	for _, snap := range refreshed {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].SlotNumber < snaps[j].SlotNumber })

	return e.syncBatch(ctx, snaps)
}

// slotWork is one actionable slot in a batch.
type slotWork struct {
	snap      *models.SaveSlot
	direction models.Direction
}

// syncBatch runs the shared quick/full sync core over the given snapshots
// with bounded fan-out. One slot's failure never halts the others.
func (e *Engine) syncBatch(ctx context.Context, snaps []*models.SaveSlot) (*BatchResult, error) {
	result := &BatchResult{Failures: make(map[int]error)}

	var work []slotWork
	for _, snap := range snaps {
		switch snap.Status {
		case models.StatusLocalNewer:
			work = append(work, slotWork{snap, models.DirectionBackup})
		case models.StatusCloudNewer:
			work = append(work, slotWork{snap, models.DirectionRestore})
		case models.StatusSyncFailed:
			if snap.LastDirection != models.DirectionNone {
				work = append(work, slotWork{snap, snap.LastDirection})
			} else {
				result.Skipped = append(result.Skipped, snap.SlotNumber)
			}
		case models.StatusConflict:
			// Never auto-resolved; the caller chooses a policy.
			result.Conflicts = append(result.Conflicts, snap.SlotNumber)
			e.emit(Event{Slot: snap.SlotNumber, Phase: PhaseSlotConflict,
				Message: "conflict requires resolution", Timestamp: time.Now()})
		default:
			result.Skipped = append(result.Skipped, snap.SlotNumber)
		}
	}

	result.Total = len(work)
	e.emit(Event{Slot: -1, Phase: PhaseStarted,
		Message: fmt.Sprintf("syncing %d slot(s)", result.Total), Timestamp: time.Now()})

	if result.Total == 0 {
		e.emit(Event{Slot: -1, Phase: PhaseCompleted, Percent: 100, Message: "nothing to sync", Timestamp: time.Now()})
		return result, nil
	}

	var (
		wg       sync.WaitGroup
		resMu    sync.Mutex
		done     int
		sem      = make(chan struct{}, e.maxConcurrent)
		opFor    = map[models.Direction]models.OperationType{models.DirectionBackup: models.OpBackup, models.DirectionRestore: models.OpRestore}
		total    = result.Total
		canceled bool
	)

	for _, w := range work {
		wg.Add(1)
		go func(w slotWork) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			slot := w.snap.SlotNumber

			// Cancellation takes effect between slots: a slot already
			// mid-transfer completes, workers that have not started yet
			// stand down.
			if ctx.Err() != nil {
				resMu.Lock()
				canceled = true
				result.Skipped = append(result.Skipped, slot)
				resMu.Unlock()
				return
			}

			if err := e.acquireSlot(slot, opFor[w.direction]); err != nil {
				resMu.Lock()
				result.Failures[slot] = err
				resMu.Unlock()
				return
			}

			var opErr error
			defer func() { e.finishSlot(slot, opErr) }()

			e.beginSlot(slot)
			e.emit(Event{Slot: slot, Phase: PhaseSlotStarted,
				Message: string(w.direction), Timestamp: time.Now()})

			if w.direction == models.DirectionBackup {
				opErr = e.backupSlot(ctx, slot, w.snap, BackupOptions{})
			} else {
				opErr = e.restoreSlot(ctx, slot, w.snap, RestoreOptions{})
			}

			resMu.Lock()
			done++
			percent := done * 100 / total
			switch {
			case errors.Is(opErr, errSlotSkipped):
				result.Skipped = append(result.Skipped, slot)
				e.emit(Event{Slot: slot, Phase: PhaseSlotSkipped, Percent: percent,
					Message: "already synced", Timestamp: time.Now()})
			case opErr != nil:
				result.Failures[slot] = opErr
				e.emit(Event{Slot: slot, Phase: PhaseSlotFailed, Percent: percent,
					Message: opErr.Error(), Err: opErr, Timestamp: time.Now()})
			default:
				result.Completed = append(result.Completed, slot)
				e.emit(Event{Slot: slot, Phase: PhaseSlotCompleted, Percent: percent,
					Message: fmt.Sprintf("%s complete", w.direction), Timestamp: time.Now()})
			}
			resMu.Unlock()
		}(w)
	}

	wg.Wait()

	sort.Ints(result.Completed)
	sort.Ints(result.Skipped)
	sort.Ints(result.Conflicts)

	if canceled {
		result.Cancelled = true
		e.emit(Event{Slot: -1, Phase: PhaseCancelled, Message: "sync cancelled", Timestamp: time.Now()})
		return result, ctx.Err()
	}

	e.emit(Event{Slot: -1, Phase: PhaseCompleted, Percent: 100,
		Message: fmt.Sprintf("synced %d, skipped %d, failed %d",
			len(result.Completed), len(result.Skipped), len(result.Failures)),
		Timestamp: time.Now()})

	e.logger.WithFields(map[string]interface{}{
		"completed": len(result.Completed),
		"skipped":   len(result.Skipped),
		"conflicts": len(result.Conflicts),
		"failures":  len(result.Failures),
	}).Info("Batch sync finished")

	return result, nil
}

// DeleteCloudSave removes a slot's cloud copy, and optionally the local copy
// too. Deletions are always explicit and caller-confirmed upstream; on a
// half-completed combined delete the returned PartialFailureError says which
// half to retry.
func (e *Engine) DeleteCloudSave(ctx context.Context, slot int, alsoDeleteLocal bool) (err error) {
	if err := e.acquireSlot(slot, models.OpDelete); err != nil {
		return err
	}
	defer func() { e.finishSlot(slot, err) }()
	e.beginSlot(slot)

	e.logger.WithFields(map[string]interface{}{
		"slot":       slot,
		"also_local": alsoDeleteLocal,
	}).Info("Deleting cloud save")

	if err := e.cloud.Delete(ctx, slot); err != nil {
		e.reg.MarkFailure(slot, models.DirectionNone, err)
		return &models.SlotError{Op: models.OpDelete, Slot: slot, Err: err}
	}
	e.reg.ApplyCloud(slot, nil)
	e.quota.Invalidate()

	if alsoDeleteLocal {
		if err := e.local.Delete(slot); err != nil {
			return &models.PartialFailureError{
				Slot:      slot,
				CloudDone: true,
				LocalErr:  err,
			}
		}
		e.reg.ApplyLocal(slot, nil)
	}

	e.reg.ClearFailure(slot)
	return nil
}

// backupSlot performs the actual local-to-cloud copy for one slot. Returns
// errSlotSkipped when the comparison tokens already match.
func (e *Engine) backupSlot(ctx context.Context, slot int, snap *models.SaveSlot, opts BackupOptions) error {
	if !snap.LocalPresent() {
		return &models.SlotError{Op: models.OpBackup, Slot: slot, Err: models.ErrSlotNotFound}
	}

	if snap.CloudPresent() {
		if snap.Local.SameToken(snap.Cloud) {
			e.reg.ClearFailure(slot)
			return errSlotSkipped
		}
		cloudAhead := snap.Cloud.LastModified.Sub(snap.Local.LastModified)
		if cloudAhead > e.tolerance && !opts.OverwriteNewer {
			return &models.SlotError{Op: models.OpBackup, Slot: slot, Err: models.ErrNewerCopyExists}
		}
	}

	// Pre-flight quota check: fail fast instead of failing mid-transfer.
	usage, err := e.quota.Usage(ctx)
	if err != nil {
		e.reg.MarkFailure(slot, models.DirectionBackup, err)
		return &models.SlotError{Op: models.OpBackup, Slot: slot, Err: err}
	}
	if usage.Remaining() < snap.Local.SizeBytes {
		qerr := &models.QuotaError{
			NeededBytes:    snap.Local.SizeBytes,
			RemainingBytes: usage.Remaining(),
		}
		e.reg.MarkFailure(slot, models.DirectionBackup, qerr)
		return &models.SlotError{Op: models.OpBackup, Slot: slot, Err: qerr}
	}

	payload, meta, err := e.local.Read(slot)
	if err != nil {
		e.reg.MarkFailure(slot, models.DirectionBackup, err)
		return &models.SlotError{Op: models.OpBackup, Slot: slot, Err: err}
	}

	if err := e.cloud.Write(ctx, slot, payload, meta); err != nil {
		e.reg.MarkFailure(slot, models.DirectionBackup, err)
		return &models.SlotError{Op: models.OpBackup, Slot: slot, Err: err}
	}

	e.reg.ApplyCloud(slot, meta)
	e.reg.ClearFailure(slot)
	e.quota.Invalidate()

	e.logger.WithFields(map[string]interface{}{
		"slot": slot,
		"size": meta.SizeBytes,
	}).Info("Backed up slot")

	return nil
}

// restoreSlot performs the actual cloud-to-local copy for one slot,
// verifying payload integrity against the comparison token before writing.
func (e *Engine) restoreSlot(ctx context.Context, slot int, snap *models.SaveSlot, opts RestoreOptions) error {
	if !snap.CloudPresent() {
		return &models.SlotError{Op: models.OpRestore, Slot: slot, Err: models.ErrSlotNotFound}
	}

	if snap.LocalPresent() {
		if snap.Local.SameToken(snap.Cloud) {
			e.reg.ClearFailure(slot)
			return errSlotSkipped
		}
		localAhead := snap.Local.LastModified.Sub(snap.Cloud.LastModified)
		if localAhead > e.tolerance && !opts.OverwriteNewer {
			return &models.SlotError{Op: models.OpRestore, Slot: slot, Err: models.ErrNewerCopyExists}
		}
	}

	payload, meta, err := e.cloud.Read(ctx, slot)
	if err != nil {
		e.reg.MarkFailure(slot, models.DirectionRestore, err)
		return &models.SlotError{Op: models.OpRestore, Slot: slot, Err: err}
	}

	if !models.VerifyChecksum(payload, meta.Checksum) {
		err := fmt.Errorf("cloud payload failed integrity check")
		e.reg.MarkFailure(slot, models.DirectionRestore, err)
		return &models.SlotError{Op: models.OpRestore, Slot: slot, Err: err}
	}

	if err := e.local.Write(slot, payload, meta); err != nil {
		e.reg.MarkFailure(slot, models.DirectionRestore, err)
		return &models.SlotError{Op: models.OpRestore, Slot: slot, Err: err}
	}

	e.reg.ApplyLocal(slot, meta)
	e.reg.ClearFailure(slot)

	e.logger.WithFields(map[string]interface{}{
		"slot": slot,
		"size": meta.SizeBytes,
	}).Info("Restored slot")

	return nil
}

// acquireSlot claims the per-slot in-flight marker. Overlapping operations
// on one slot are rejected, never queued silently.
func (e *Engine) acquireSlot(slot int, op models.OperationType) error {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()

	if existing, busy := e.inflight[slot]; busy {
		return &models.SlotError{Op: op, Slot: slot,
			Err: fmt.Errorf("%w (%s running)", models.ErrOperationInProgress, existing.Type)}
	}

	e.inflight[slot] = &models.SyncOperation{
		Type:       op,
		SlotNumber: slot,
		Status:     models.OpPending,
		StartedAt:  time.Now(),
	}
	return nil
}

// beginSlot moves a claimed operation from pending to in-progress once its
// transfer actually starts.
func (e *Engine) beginSlot(slot int) {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	if op, ok := e.inflight[slot]; ok {
		op.Status = models.OpInProgress
	}
}

// finishSlot stamps the operation's terminal state, releases the slot's
// in-flight marker, and returns the finished operation. A skip counts as
// completion: the slot ended up in the desired state.
func (e *Engine) finishSlot(slot int, opErr error) models.SyncOperation {
	e.slotMu.Lock()
	op, ok := e.inflight[slot]
	delete(e.inflight, slot)
	e.slotMu.Unlock()

	if !ok {
		return models.SyncOperation{SlotNumber: slot}
	}

	if opErr != nil && !errors.Is(opErr, errSlotSkipped) {
		op.Status = models.OpFailed
		op.Err = opErr
	} else {
		op.Status = models.OpCompleted
		op.ProgressPercent = 100
	}

	e.logger.WithFields(map[string]interface{}{
		"slot":     slot,
		"op":       string(op.Type),
		"status":   string(op.Status),
		"duration": time.Since(op.StartedAt).String(),
	}).Debug("Operation finished")

	return *op
}

// emit publishes a progress event, dropping the oldest buffered event when
// the consumer lags. Progress is advisory; correctness never depends on it.
func (e *Engine) emit(ev Event) {
	e.evMu.Lock()
	defer e.evMu.Unlock()

	for {
		select {
		case e.events <- ev:
			return
		default:
		}

		select {
		case <-e.events:
		default:
		}
	}
}
