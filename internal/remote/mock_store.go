package remote

import (
	"context"
	"sync"

	"github.com/TheMichaelB/savesync/internal/models"
)

// MockStore is an in-memory remote store for tests. It counts network-shaped
// calls and supports per-operation fault injection.
type MockStore struct {
	mu       sync.Mutex
	payloads map[int][]byte
	metas    map[int]*models.SlotMetadata

	UsedBytes  int64
	TotalBytes int64

	// Fault injection.
	ReadErr   error
	StatErr   error
	WriteErr  error
	DeleteErr error
	QuotaErr  error

	// Per-slot stat faults, for refresh isolation tests.
	StatErrs map[int]error

	// Blocking injection: when set, Write signals WriteStarted and then
	// waits on WriteGate before touching the store. Lets tests cancel a
	// batch while one slot is mid-transfer.
	WriteStarted chan struct{}
	WriteGate    chan struct{}

	// Counters for assertions.
	ReadCalls   int
	StatCalls   int
	WriteCalls  int
	DeleteCalls int
	QuotaCalls  int
}

// NewMockStore creates an empty mock remote store with a generous quota.
func NewMockStore() *MockStore {
	return &MockStore{
		payloads:   make(map[int][]byte),
		metas:      make(map[int]*models.SlotMetadata),
		StatErrs:   make(map[int]error),
		TotalBytes: 1 << 30,
	}
}

// Seed installs a slot without counting a write call.
func (s *MockStore) Seed(slot int, payload []byte, meta *models.SlotMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.payloads[slot] = buf
	s.metas[slot] = meta.Clone()
	s.recalcUsage()
}

// Meta returns the stored metadata for assertions, or nil.
func (s *MockStore) Meta(slot int) *models.SlotMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metas[slot].Clone()
}

// Payload returns the stored payload for assertions, or nil.
func (s *MockStore) Payload(slot int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payloads[slot]; ok {
		buf := make([]byte, len(p))
		copy(buf, p)
		return buf
	}
	return nil
}

// Read returns the payload and metadata for a slot.
func (s *MockStore) Read(ctx context.Context, slot int) ([]byte, *models.SlotMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ReadCalls++
	if s.ReadErr != nil {
		return nil, nil, s.ReadErr
	}

	meta, ok := s.metas[slot]
	if !ok {
		return nil, nil, models.ErrSlotNotFound
	}

	buf := make([]byte, len(s.payloads[slot]))
	copy(buf, s.payloads[slot])
	return buf, meta.Clone(), nil
}

// Stat returns metadata only.
func (s *MockStore) Stat(ctx context.Context, slot int) (*models.SlotMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.StatCalls++
	if s.StatErr != nil {
		return nil, s.StatErr
	}
	if err, ok := s.StatErrs[slot]; ok && err != nil {
		return nil, err
	}

	meta, ok := s.metas[slot]
	if !ok {
		return nil, models.ErrSlotNotFound
	}
	return meta.Clone(), nil
}

// Write persists a payload and metadata.
func (s *MockStore) Write(ctx context.Context, slot int, payload []byte, meta *models.SlotMetadata) error {
	s.mu.Lock()
	started, gate := s.WriteStarted, s.WriteGate
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

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
	s.recalcUsage()
	return nil
}

// Delete removes a slot.
func (s *MockStore) Delete(ctx context.Context, slot int) error {
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
	s.recalcUsage()
	return nil
}

// List returns populated slot numbers.
func (s *MockStore) List(ctx context.Context) ([]int, error) {
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

// Quota returns the configured usage numbers.
func (s *MockStore) Quota(ctx context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.QuotaCalls++
	if s.QuotaErr != nil {
		return 0, 0, s.QuotaErr
	}
	return s.UsedBytes, s.TotalBytes, nil
}

// Close releases resources.
func (s *MockStore) Close() error { return nil }

func (s *MockStore) recalcUsage() {
	var used int64
	for _, p := range s.payloads {
		used += int64(len(p))
	}
	s.UsedBytes = used
}
