package models

import (
	"fmt"
	"time"
)

// SlotMetadata describes one copy of a save payload without carrying the
// payload itself. The checksum is the comparison token: equal tokens mean the
// payloads are byte-identical, so presence checks and no-op detection never
// need to transfer payload bytes.
type SlotMetadata struct {
	SlotNumber   int           `json:"slot_number"`
	LastModified time.Time     `json:"last_modified"`
	Checksum     string        `json:"checksum"`
	SizeBytes    int64         `json:"size_bytes"`
	Player       PlayerSummary `json:"player"`
	Favorite     bool          `json:"favorite,omitempty"`
}

// PlayerSummary holds denormalized display fields so slot listings never parse
// the opaque payload.
type PlayerSummary struct {
	Name            string `json:"name,omitempty"`
	Level           int    `json:"level,omitempty"`
	Area            string `json:"area,omitempty"`
	PlayTimeSeconds int64  `json:"play_time_seconds,omitempty"`
}

// Validate checks metadata consistency before it is persisted.
func (m *SlotMetadata) Validate() error {
	if m.SlotNumber < 0 {
		return fmt.Errorf("slot number cannot be negative: %d", m.SlotNumber)
	}
	if m.Checksum == "" {
		return fmt.Errorf("slot %d: checksum is required", m.SlotNumber)
	}
	if m.SizeBytes < 0 {
		return fmt.Errorf("slot %d: size cannot be negative", m.SlotNumber)
	}
	if m.LastModified.IsZero() {
		return fmt.Errorf("slot %d: last modified time is required", m.SlotNumber)
	}
	return nil
}

// SameToken reports whether two copies carry the same comparison token.
func (m *SlotMetadata) SameToken(other *SlotMetadata) bool {
	if m == nil || other == nil {
		return false
	}
	return m.Checksum != "" && m.Checksum == other.Checksum
}

// Clone returns a deep copy.
func (m *SlotMetadata) Clone() *SlotMetadata {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// SaveSlot is a read-only snapshot of one slot's sync state, handed to
// collaborators. Local and Cloud are nil when the corresponding store holds no
// payload.
type SaveSlot struct {
	SlotNumber int           `json:"slot_number"`
	Local      *SlotMetadata `json:"local,omitempty"`
	Cloud      *SlotMetadata `json:"cloud,omitempty"`

	// CloudStale marks cloud metadata retained from a previous refresh after
	// a remote read failure. Stale entries are advisory only.
	CloudStale bool `json:"cloud_stale,omitempty"`

	Status SyncStatus `json:"status"`

	// LastDirection records the direction of the last attempted network
	// operation; quickSync retries it once when Status is sync_failed.
	LastDirection Direction `json:"last_direction,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// LocalPresent reports whether the local store holds a payload.
func (s *SaveSlot) LocalPresent() bool { return s.Local != nil }

// CloudPresent reports whether the remote store holds a payload.
func (s *SaveSlot) CloudPresent() bool { return s.Cloud != nil }

// Clone returns a deep copy of the snapshot.
func (s *SaveSlot) Clone() *SaveSlot {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Local = s.Local.Clone()
	clone.Cloud = s.Cloud.Clone()
	return &clone
}
