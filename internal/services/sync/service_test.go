package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/savesync/internal/models"
	"github.com/TheMichaelB/savesync/test/testutil"
)

func newServiceFixture(t *testing.T) (*Service, *engineFixture) {
	t.Helper()

	f := newEngineFixture(t)
	resolver := NewResolver(f.local, f.cloud, f.reg, testTolerance, testutil.NewTestLogger())
	svc := NewService(f.engine, resolver, f.reg, f.local, testutil.NewTestLogger())
	return svc, f
}

func TestServiceSlotsOrdered(t *testing.T) {
	svc, f := newServiceFixture(t)

	require.NoError(t, f.local.Write(5, testutil.SamplePayload(5), testutil.SampleMeta(5)))
	f.cloud.Seed(1, testutil.SamplePayload(1), testutil.SampleMeta(1))

	slots, err := svc.Slots(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 8)

	for i, slot := range slots {
		assert.Equal(t, i, slot.SlotNumber)
	}
	assert.Equal(t, models.StatusCloudNewer, slots[1].Status)
	assert.Equal(t, models.StatusLocalNewer, slots[5].Status)
}

func TestServiceSetFavorite(t *testing.T) {
	svc, f := newServiceFixture(t)

	require.NoError(t, f.local.Write(2, testutil.SamplePayload(2), testutil.SampleMeta(2)))
	require.NoError(t, svc.SetFavorite(2, true))

	_, meta, err := f.local.Read(2)
	require.NoError(t, err)
	assert.True(t, meta.Favorite)

	snap, ok := f.reg.Snapshot(2)
	require.True(t, ok)
	assert.True(t, snap.Local.Favorite)

	require.NoError(t, svc.SetFavorite(2, false))
	_, meta, err = f.local.Read(2)
	require.NoError(t, err)
	assert.False(t, meta.Favorite)
}

func TestServiceSetFavoriteMissingSlot(t *testing.T) {
	svc, _ := newServiceFixture(t)
	assert.ErrorIs(t, svc.SetFavorite(7, true), models.ErrSlotNotFound)
}

func TestServiceExportImport(t *testing.T) {
	svc, f := newServiceFixture(t)
	ctx := context.Background()

	payload := testutil.SamplePayload(1)
	require.NoError(t, f.local.Write(1, payload, testutil.SampleMeta(1)))

	blob, err := svc.ExportSlot(1)
	require.NoError(t, err)

	require.NoError(t, svc.ImportSlot(blob, 6))

	got, gotMeta, err := f.local.Read(6)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, 6, gotMeta.SlotNumber)

	slots, err := svc.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLocalNewer, slots[6].Status)
}

func TestServiceImportRejectsCorruptBlob(t *testing.T) {
	svc, f := newServiceFixture(t)

	require.NoError(t, f.local.Write(3, testutil.SamplePayload(3), testutil.SampleMeta(3)))
	before, _, err := f.local.Read(3)
	require.NoError(t, err)

	err = svc.ImportSlot([]byte("garbage"), 3)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	after, _, err := f.local.Read(3)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected import must leave the slot untouched")
}
