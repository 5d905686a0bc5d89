package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/exchange"
	"github.com/TheMichaelB/savesync/internal/models"
	"github.com/TheMichaelB/savesync/internal/registry"
	"github.com/TheMichaelB/savesync/internal/store"
)

// Service is the high-level save-sync API exposed to collaborators: the
// engine's operations, conflict resolution, read-only slot snapshots, and
// the export/import boundary.
type Service struct {
	engine   *Engine
	resolver *Resolver
	registry *registry.Registry
	local    store.Store
	logger   *events.Logger
}

// NewService creates the sync service facade.
func NewService(engine *Engine, resolver *Resolver, reg *registry.Registry, local store.Store, logger *events.Logger) *Service {
	return &Service{
		engine:   engine,
		resolver: resolver,
		registry: reg,
		local:    local,
		logger:   logger.WithField("service", "sync"),
	}
}

// Slots refreshes and returns snapshots for all slots, ordered by number.
func (s *Service) Slots(ctx context.Context) ([]*models.SaveSlot, error) {
	refreshed, err := s.registry.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	slots := make([]*models.SaveSlot, 0, len(refreshed))
	for _, snap := range refreshed {
		slots = append(slots, snap)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].SlotNumber < slots[j].SlotNumber })
	return slots, nil
}

// Slot returns a refreshed snapshot for one slot.
func (s *Service) Slot(ctx context.Context, slot int) (*models.SaveSlot, error) {
	refreshed, err := s.registry.Refresh(ctx, slot)
	if err != nil {
		return nil, err
	}
	return refreshed[slot], nil
}

// Backup copies a slot's local payload to the cloud.
func (s *Service) Backup(ctx context.Context, slot int, opts BackupOptions) error {
	return s.engine.Backup(ctx, slot, opts)
}

// Restore copies a slot's cloud payload into the local store.
func (s *Service) Restore(ctx context.Context, slot int, opts RestoreOptions) error {
	return s.engine.Restore(ctx, slot, opts)
}

// QuickSync reconciles all unsynced slots from the current cache.
func (s *Service) QuickSync(ctx context.Context) (*BatchResult, error) {
	return s.engine.QuickSync(ctx)
}

// FullSync refreshes all slots first, then reconciles.
func (s *Service) FullSync(ctx context.Context) (*BatchResult, error) {
	return s.engine.FullSync(ctx)
}

// Resolve collapses a divergent slot under the given policy.
func (s *Service) Resolve(ctx context.Context, slot int, policy Policy) (*Resolution, *PendingManualChoice, error) {
	return s.resolver.Resolve(ctx, slot, policy)
}

// DeleteCloudSave removes a slot's cloud copy, optionally the local copy too.
func (s *Service) DeleteCloudSave(ctx context.Context, slot int, alsoDeleteLocal bool) error {
	return s.engine.DeleteCloudSave(ctx, slot, alsoDeleteLocal)
}

// SetFavorite toggles the local favorite marker for a slot.
func (s *Service) SetFavorite(slot int, favorite bool) error {
	payload, meta, err := s.local.Read(slot)
	if err != nil {
		return fmt.Errorf("read slot %d: %w", slot, err)
	}

	meta.Favorite = favorite
	if err := s.local.Write(slot, payload, meta); err != nil {
		return fmt.Errorf("write slot %d: %w", slot, err)
	}

	s.registry.ApplyLocal(slot, meta)
	return nil
}

// ExportSlot serializes a slot's local payload and metadata into a portable
// blob.
func (s *Service) ExportSlot(slot int) ([]byte, error) {
	payload, meta, err := s.local.Read(slot)
	if err != nil {
		return nil, fmt.Errorf("read slot %d: %w", slot, err)
	}
	return exchange.Export(payload, meta)
}

// ImportSlot validates a blob and installs it into the target local slot.
// Rejected blobs leave the slot untouched.
func (s *Service) ImportSlot(blob []byte, targetSlot int) error {
	payload, meta, err := exchange.Import(blob, targetSlot)
	if err != nil {
		return err
	}

	if err := s.local.Write(targetSlot, payload, meta); err != nil {
		return fmt.Errorf("write slot %d: %w", targetSlot, err)
	}

	s.registry.ApplyLocal(targetSlot, meta)
	s.logger.WithSlot(targetSlot).Info("Imported save blob")
	return nil
}

// Events returns the engine's progress event stream.
func (s *Service) Events() <-chan Event {
	return s.engine.Events()
}

// ActiveOperations returns in-flight per-slot operations.
func (s *Service) ActiveOperations() []models.SyncOperation {
	return s.engine.ActiveOperations()
}
