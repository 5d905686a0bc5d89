package store

import (
	"sync"

	"github.com/TheMichaelB/savesync/internal/models"
)

// MemStore is an in-memory slot store for tests, with optional fault
// injection per operation.
type MemStore struct {
	mu       sync.Mutex
	payloads map[int][]byte
	metas    map[int]*models.SlotMetadata

	// Fault injection: non-nil errors are returned by the matching call.
	ReadErr   error
	WriteErr  error
	DeleteErr error

	// Counters for assertions.
	WriteCalls  int
	DeleteCalls int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		payloads: make(map[int][]byte),
		metas:    make(map[int]*models.SlotMetadata),
	}
}

// Read returns the payload and metadata for a slot.
func (s *MemStore) Read(slot int) ([]byte, *models.SlotMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ReadErr != nil {
		return nil, nil, s.ReadErr
	}

	meta, ok := s.metas[slot]
	if !ok {
		return nil, nil, models.ErrSlotNotFound
	}

	payload := make([]byte, len(s.payloads[slot]))
	copy(payload, s.payloads[slot])
	return payload, meta.Clone(), nil
}

// ReadMeta returns metadata without the payload.
func (s *MemStore) ReadMeta(slot int) (*models.SlotMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ReadErr != nil {
		return nil, s.ReadErr
	}

	meta, ok := s.metas[slot]
	if !ok {
		return nil, models.ErrSlotNotFound
	}
	return meta.Clone(), nil
}

// Write persists a payload and its metadata.
func (s *MemStore) Write(slot int, payload []byte, meta *models.SlotMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.WriteCalls++
	if s.WriteErr != nil {
		return s.WriteErr
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.payloads[slot] = buf
	s.metas[slot] = meta.Clone()
	return nil
}

// Delete removes a slot.
func (s *MemStore) Delete(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeleteCalls++
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	if _, ok := s.metas[slot]; !ok {
		return models.ErrSlotNotFound
	}
	delete(s.metas, slot)
	delete(s.payloads, slot)
	return nil
}

// List returns the populated slot numbers.
func (s *MemStore) List() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ReadErr != nil {
		return nil, s.ReadErr
	}

	slots := make([]int, 0, len(s.metas))
	for slot := range s.metas {
		slots = append(slots, slot)
	}
	return slots, nil
}

// Close releases resources.
func (s *MemStore) Close() error { return nil }
