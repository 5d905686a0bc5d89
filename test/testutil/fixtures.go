// Package testutil provides shared fixtures and helpers for save-sync tests.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/models"
)

// BaseTime is the reference save timestamp used across fixtures.
var BaseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// NewTestLogger creates a logger that discards output.
func NewTestLogger() *events.Logger {
	return events.NewTestLogger(events.ErrorLevel, io.Discard)
}

// SamplePayload generates a deterministic payload for a slot.
func SamplePayload(slot int) []byte {
	return []byte(fmt.Sprintf("save-data-slot-%d:%s", slot,
		bytes.Repeat([]byte{byte('a' + slot%26)}, 64)))
}

// SampleMeta creates metadata consistent with SamplePayload(slot), timestamped
// at BaseTime.
func SampleMeta(slot int) *models.SlotMetadata {
	payload := SamplePayload(slot)
	return &models.SlotMetadata{
		SlotNumber:   slot,
		LastModified: BaseTime,
		Checksum:     models.ChecksumBytes(payload),
		SizeBytes:    int64(len(payload)),
		Player: models.PlayerSummary{
			Name:            fmt.Sprintf("Hero%d", slot),
			Level:           10 + slot,
			Area:            "Emberfall Keep",
			PlayTimeSeconds: int64(3600 * (slot + 1)),
		},
	}
}

// MetaAt returns SampleMeta shifted to the given timestamp.
func MetaAt(slot int, at time.Time) *models.SlotMetadata {
	meta := SampleMeta(slot)
	meta.LastModified = at
	return meta
}

// PayloadWithMeta builds a payload distinct from SamplePayload and matching
// metadata, for simulating a divergent copy of the same slot.
func PayloadWithMeta(slot int, tag string, at time.Time) ([]byte, *models.SlotMetadata) {
	payload := []byte(fmt.Sprintf("save-data-slot-%d-%s", slot, tag))
	meta := SampleMeta(slot)
	meta.LastModified = at
	meta.Checksum = models.ChecksumBytes(payload)
	meta.SizeBytes = int64(len(payload))
	return payload, meta
}
