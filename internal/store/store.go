package store

import (
	"github.com/TheMichaelB/savesync/internal/models"
)

// Store is the local slot store: durable key-value persistence of save
// payloads and their metadata, keyed by slot number. Missing slots are
// reported as models.ErrSlotNotFound. Payloads are opaque to the store and
// the sync engine; they are copied, never mutated.
type Store interface {
	// Read returns the payload and metadata for a slot.
	Read(slot int) ([]byte, *models.SlotMetadata, error)

	// ReadMeta returns metadata without loading the payload.
	ReadMeta(slot int) (*models.SlotMetadata, error)

	// Write persists a payload and its metadata atomically.
	Write(slot int, payload []byte, meta *models.SlotMetadata) error

	// Delete removes a slot's payload and metadata.
	Delete(slot int) error

	// List returns the slot numbers currently holding a payload.
	List() ([]int, error)

	// Close releases resources.
	Close() error
}
