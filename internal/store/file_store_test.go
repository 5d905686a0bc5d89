package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/savesync/internal/models"
	"github.com/TheMichaelB/savesync/test/testutil"
)

func newFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()

	dir := t.TempDir()
	fs, err := NewFileStore(dir, 10*1024*1024, testutil.NewTestLogger())
	require.NoError(t, err)
	return fs, dir
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs, _ := newFileStore(t)

	payload := testutil.SamplePayload(1)
	meta := testutil.SampleMeta(1)
	require.NoError(t, fs.Write(1, payload, meta))

	got, gotMeta, err := fs.Read(1)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, meta.Checksum, gotMeta.Checksum)
	assert.Equal(t, meta.Player.Name, gotMeta.Player.Name)
	assert.True(t, meta.LastModified.Equal(gotMeta.LastModified))
}

func TestFileStoreReadMeta(t *testing.T) {
	fs, _ := newFileStore(t)

	require.NoError(t, fs.Write(2, testutil.SamplePayload(2), testutil.SampleMeta(2)))

	meta, err := fs.ReadMeta(2)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleMeta(2).Checksum, meta.Checksum)
}

func TestFileStoreMissingSlot(t *testing.T) {
	fs, _ := newFileStore(t)

	_, _, err := fs.Read(5)
	assert.ErrorIs(t, err, models.ErrSlotNotFound)

	_, err = fs.ReadMeta(5)
	assert.ErrorIs(t, err, models.ErrSlotNotFound)

	err = fs.Delete(5)
	assert.ErrorIs(t, err, models.ErrSlotNotFound)
}

func TestFileStoreOverwrite(t *testing.T) {
	fs, _ := newFileStore(t)

	require.NoError(t, fs.Write(0, testutil.SamplePayload(0), testutil.SampleMeta(0)))

	payload, meta := testutil.PayloadWithMeta(0, "second", testutil.BaseTime)
	require.NoError(t, fs.Write(0, payload, meta))

	got, gotMeta, err := fs.Read(0)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, meta.Checksum, gotMeta.Checksum)
}

func TestFileStoreDelete(t *testing.T) {
	fs, dir := newFileStore(t)

	require.NoError(t, fs.Write(3, testutil.SamplePayload(3), testutil.SampleMeta(3)))
	require.NoError(t, fs.Delete(3))

	_, _, err := fs.Read(3)
	assert.ErrorIs(t, err, models.ErrSlotNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "delete removes both payload and sidecar")
}

func TestFileStoreList(t *testing.T) {
	fs, _ := newFileStore(t)

	require.NoError(t, fs.Write(0, testutil.SamplePayload(0), testutil.SampleMeta(0)))
	require.NoError(t, fs.Write(4, testutil.SamplePayload(4), testutil.SampleMeta(4)))

	slots, err := fs.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 4}, slots)
}

func TestFileStoreListIgnoresOrphans(t *testing.T) {
	fs, dir := newFileStore(t)

	// A payload without its metadata sidecar does not count as a slot.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slot-7.sav"), []byte("orphan"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	slots, err := fs.List()
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFileStoreRejectsOversizedPayload(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, 16, testutil.NewTestLogger())
	require.NoError(t, err)

	err = fs.Write(0, testutil.SamplePayload(0), testutil.SampleMeta(0))
	assert.Error(t, err)
}

func TestFileStoreRejectsInvalidMetadata(t *testing.T) {
	fs, _ := newFileStore(t)

	meta := testutil.SampleMeta(0)
	meta.Checksum = ""

	err := fs.Write(0, testutil.SamplePayload(0), meta)
	assert.Error(t, err)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	logger := testutil.NewTestLogger()

	fs, err := NewFileStore(dir, 10*1024*1024, logger)
	require.NoError(t, err)
	require.NoError(t, fs.Write(2, testutil.SamplePayload(2), testutil.SampleMeta(2)))
	require.NoError(t, fs.Close())

	reopened, err := NewFileStore(dir, 10*1024*1024, logger)
	require.NoError(t, err)

	got, _, err := reopened.Read(2)
	require.NoError(t, err)
	assert.Equal(t, testutil.SamplePayload(2), got)
}

func TestFileStoreWriteLeavesNoTempFiles(t *testing.T) {
	fs, dir := newFileStore(t)

	require.NoError(t, fs.Write(1, testutil.SamplePayload(1), testutil.SampleMeta(1)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp.")
	}
}
