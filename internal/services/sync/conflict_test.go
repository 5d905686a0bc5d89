package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/savesync/internal/models"
	"github.com/TheMichaelB/savesync/test/testutil"
)

type resolverFixture struct {
	*engineFixture
	resolver *Resolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	f := newEngineFixture(t)
	resolver := NewResolver(f.local, f.cloud, f.reg, testTolerance, testutil.NewTestLogger())
	return &resolverFixture{engineFixture: f, resolver: resolver}
}

// seedConflict installs divergent copies whose timestamps sit inside the
// tolerance band.
func (f *resolverFixture) seedConflict(t *testing.T, slot int) (localPayload, cloudPayload []byte) {
	t.Helper()

	localPayload, localMeta := testutil.PayloadWithMeta(slot, "local", testutil.BaseTime.Add(2*time.Second))
	cloudPayload, cloudMeta := testutil.PayloadWithMeta(slot, "cloud", testutil.BaseTime)
	require.NoError(t, f.local.Write(slot, localPayload, localMeta))
	f.cloud.Seed(slot, cloudPayload, cloudMeta)
	return localPayload, cloudPayload
}

func TestResolveKeepLocal(t *testing.T) {
	f := newResolverFixture(t)
	localPayload, _ := f.seedConflict(t, 2)

	resolution, choice, err := f.resolver.Resolve(context.Background(), 2, PolicyKeepLocal)
	require.NoError(t, err)
	require.Nil(t, choice)

	assert.Equal(t, models.DirectionBackup, resolution.Winner)
	assert.Equal(t, models.StatusConflict, resolution.PreviousStatus)
	assert.Equal(t, localPayload, f.cloud.Payload(2))

	snap, ok := f.reg.Snapshot(2)
	require.True(t, ok)
	assert.Equal(t, models.StatusSynced, snap.Status)
}

func TestResolveKeepCloud(t *testing.T) {
	f := newResolverFixture(t)
	_, cloudPayload := f.seedConflict(t, 2)

	resolution, choice, err := f.resolver.Resolve(context.Background(), 2, PolicyKeepCloud)
	require.NoError(t, err)
	require.Nil(t, choice)

	assert.Equal(t, models.DirectionRestore, resolution.Winner)

	got, gotMeta, err := f.local.Read(2)
	require.NoError(t, err)
	assert.Equal(t, cloudPayload, got)
	assert.Equal(t, resolution.Meta.Checksum, gotMeta.Checksum)

	snap, ok := f.reg.Snapshot(2)
	require.True(t, ok)
	assert.Equal(t, models.StatusSynced, snap.Status)
}

func TestResolveKeepNewestPicksWinner(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	localPayload, localMeta := testutil.PayloadWithMeta(3, "local", testutil.BaseTime.Add(time.Minute))
	cloudPayload, cloudMeta := testutil.PayloadWithMeta(3, "cloud", testutil.BaseTime)
	require.NoError(t, f.local.Write(3, localPayload, localMeta))
	f.cloud.Seed(3, cloudPayload, cloudMeta)

	resolution, _, err := f.resolver.Resolve(ctx, 3, PolicyKeepNewest)
	require.NoError(t, err)

	assert.Equal(t, PolicyKeepLocal, resolution.Policy)
	assert.Equal(t, models.DirectionBackup, resolution.Winner)
	assert.Equal(t, localPayload, f.cloud.Payload(3))
}

// keep_newest with timestamps inside the tolerance band has no trustworthy
// winner: the call mutates nothing and reports ambiguity.
func TestResolveKeepNewestTie(t *testing.T) {
	f := newResolverFixture(t)
	localPayload, cloudPayload := f.seedConflict(t, 2)

	f.local.WriteCalls = 0
	f.cloud.WriteCalls = 0

	_, _, err := f.resolver.Resolve(context.Background(), 2, PolicyKeepNewest)
	assert.ErrorIs(t, err, models.ErrAmbiguousResolution)

	assert.Equal(t, 0, f.local.WriteCalls)
	assert.Equal(t, 0, f.cloud.WriteCalls)

	got, _, err := f.local.Read(2)
	require.NoError(t, err)
	assert.Equal(t, localPayload, got)
	assert.Equal(t, cloudPayload, f.cloud.Payload(2))
}

func TestResolveManual(t *testing.T) {
	f := newResolverFixture(t)
	localPayload, cloudPayload := f.seedConflict(t, 2)

	resolution, choice, err := f.resolver.Resolve(context.Background(), 2, PolicyManual)
	assert.ErrorIs(t, err, models.ErrManualChoiceRequired)
	assert.Nil(t, resolution)

	require.NotNil(t, choice)
	assert.Equal(t, 2, choice.Slot)
	require.NotNil(t, choice.Local)
	require.NotNil(t, choice.Cloud)
	assert.NotEqual(t, choice.Local.Checksum, choice.Cloud.Checksum)

	// Nothing moved.
	got, _, err := f.local.Read(2)
	require.NoError(t, err)
	assert.Equal(t, localPayload, got)
	assert.Equal(t, cloudPayload, f.cloud.Payload(2))
}

func TestResolveRequiresBothCopies(t *testing.T) {
	f := newResolverFixture(t)

	require.NoError(t, f.local.Write(1, testutil.SamplePayload(1), testutil.SampleMeta(1)))

	_, _, err := f.resolver.Resolve(context.Background(), 1, PolicyKeepLocal)
	require.Error(t, err)

	var slotErr *models.SlotError
	require.ErrorAs(t, err, &slotErr)
	assert.Equal(t, models.OpResolve, slotErr.Op)
}

func TestResolveAlreadyIdentical(t *testing.T) {
	f := newResolverFixture(t)

	require.NoError(t, f.local.Write(2, testutil.SamplePayload(2), testutil.SampleMeta(2)))
	f.cloud.Seed(2, testutil.SamplePayload(2), testutil.SampleMeta(2))

	f.cloud.WriteCalls = 0

	resolution, choice, err := f.resolver.Resolve(context.Background(), 2, PolicyKeepNewest)
	require.NoError(t, err)
	require.Nil(t, choice)
	assert.Equal(t, models.DirectionNone, resolution.Winner)
	assert.Equal(t, 0, f.cloud.WriteCalls)
}

func TestResolveUnknownPolicy(t *testing.T) {
	f := newResolverFixture(t)
	f.seedConflict(t, 2)

	_, _, err := f.resolver.Resolve(context.Background(), 2, Policy("flip_coin"))
	assert.Error(t, err)
}

func TestResolveNetworkFailureMarksSlot(t *testing.T) {
	f := newResolverFixture(t)
	f.seedConflict(t, 2)

	f.cloud.WriteErr = models.ErrRemoteUnavailable

	_, _, err := f.resolver.Resolve(context.Background(), 2, PolicyKeepLocal)
	assert.ErrorIs(t, err, models.ErrRemoteUnavailable)

	snap, ok := f.reg.Snapshot(2)
	require.True(t, ok)
	assert.Equal(t, models.StatusSyncFailed, snap.Status)
	assert.Equal(t, models.DirectionBackup, snap.LastDirection)
}
