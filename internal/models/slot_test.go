package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMeta() *SlotMetadata {
	payload := []byte("payload")
	return &SlotMetadata{
		SlotNumber:   1,
		LastModified: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		Checksum:     ChecksumBytes(payload),
		SizeBytes:    int64(len(payload)),
		Player:       PlayerSummary{Name: "Hero", Level: 12},
	}
}

func TestSlotMetadataValidate(t *testing.T) {
	assert.NoError(t, validMeta().Validate())

	tests := []struct {
		name   string
		mutate func(*SlotMetadata)
	}{
		{"negative slot", func(m *SlotMetadata) { m.SlotNumber = -1 }},
		{"empty checksum", func(m *SlotMetadata) { m.Checksum = "" }},
		{"negative size", func(m *SlotMetadata) { m.SizeBytes = -1 }},
		{"zero timestamp", func(m *SlotMetadata) { m.LastModified = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMeta()
			tt.mutate(m)
			assert.Error(t, m.Validate())
		})
	}
}

func TestSameToken(t *testing.T) {
	a := validMeta()
	b := validMeta()
	b.LastModified = a.LastModified.Add(time.Hour)

	assert.True(t, a.SameToken(b), "timestamps do not matter, tokens do")

	b.Checksum = ChecksumBytes([]byte("other"))
	assert.False(t, a.SameToken(b))

	assert.False(t, a.SameToken(nil))
	assert.False(t, (*SlotMetadata)(nil).SameToken(a))

	a.Checksum = ""
	b.Checksum = ""
	assert.False(t, a.SameToken(b), "empty tokens never match")
}

func TestSlotMetadataClone(t *testing.T) {
	orig := validMeta()
	clone := orig.Clone()

	clone.Checksum = "changed"
	clone.Player.Name = "Impostor"

	assert.NotEqual(t, orig.Checksum, clone.Checksum)
	assert.Equal(t, "Hero", orig.Player.Name)

	assert.Nil(t, (*SlotMetadata)(nil).Clone())
}

func TestSaveSlotPresence(t *testing.T) {
	slot := &SaveSlot{SlotNumber: 0}
	assert.False(t, slot.LocalPresent())
	assert.False(t, slot.CloudPresent())

	slot.Local = validMeta()
	assert.True(t, slot.LocalPresent())
}

func TestChecksumBytes(t *testing.T) {
	a := ChecksumBytes([]byte("save data"))
	b := ChecksumBytes([]byte("save data"))
	c := ChecksumBytes([]byte("save data!"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "hex of a 256-bit digest")

	assert.True(t, VerifyChecksum([]byte("save data"), a))
	assert.False(t, VerifyChecksum([]byte("tampered"), a))
}

func TestNeedsAction(t *testing.T) {
	needs := []SyncStatus{StatusLocalNewer, StatusCloudNewer, StatusConflict, StatusSyncFailed}
	for _, status := range needs {
		assert.True(t, status.NeedsAction(), string(status))
	}
	assert.False(t, StatusEmpty.NeedsAction())
	assert.False(t, StatusSynced.NeedsAction())
}

func TestErrorWrapping(t *testing.T) {
	slotErr := &SlotError{Op: OpBackup, Slot: 3, Err: ErrRemoteUnavailable}
	assert.ErrorIs(t, slotErr, ErrRemoteUnavailable)
	assert.Contains(t, slotErr.Error(), "slot 3")

	quotaErr := &QuotaError{NeededBytes: 100, RemainingBytes: 10}
	assert.ErrorIs(t, quotaErr, ErrQuotaExceeded)

	require.True(t, IsRetryable(slotErr))
	assert.False(t, IsRetryable(ErrRemoteRejected))
	assert.False(t, IsRetryable(quotaErr))
}

func TestPartialFailureErrorMessage(t *testing.T) {
	err := &PartialFailureError{Slot: 2, CloudDone: true, LocalErr: ErrSlotNotFound}
	assert.Contains(t, err.Error(), "local delete failed")
}
