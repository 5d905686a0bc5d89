package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/savesync/internal/models"
	"github.com/TheMichaelB/savesync/test/testutil"
)

func TestExportImportRoundTrip(t *testing.T) {
	payload := testutil.SamplePayload(2)
	meta := testutil.SampleMeta(2)

	blob, err := Export(payload, meta)
	require.NoError(t, err)

	got, gotMeta, err := Import(blob, 5)
	require.NoError(t, err)

	assert.Equal(t, payload, got)
	assert.Equal(t, 5, gotMeta.SlotNumber, "import retargets the slot number")
	assert.Equal(t, meta.Checksum, gotMeta.Checksum)
	assert.Equal(t, meta.Player, gotMeta.Player)
}

func TestExportRejectsMismatchedChecksum(t *testing.T) {
	meta := testutil.SampleMeta(0)
	meta.Checksum = "0123456789abcdef"

	_, err := Export(testutil.SamplePayload(0), meta)
	assert.Error(t, err)
}

func TestImportRejectsTruncatedBlob(t *testing.T) {
	blob, err := Export(testutil.SamplePayload(1), testutil.SampleMeta(1))
	require.NoError(t, err)

	for _, cut := range []int{1, len(blob) / 2, len(blob) - 1} {
		_, _, err := Import(blob[:cut], 1)
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr, "truncated at %d bytes", cut)
	}
}

func TestImportRejectsBadMagic(t *testing.T) {
	blob, err := Export(testutil.SamplePayload(1), testutil.SampleMeta(1))
	require.NoError(t, err)

	blob[0] = 'X'
	_, _, err = Import(blob, 1)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "magic")
}

func TestImportRejectsNewerVersion(t *testing.T) {
	blob, err := Export(testutil.SamplePayload(1), testutil.SampleMeta(1))
	require.NoError(t, err)

	blob[len(blobMagic)] = blobVersion + 1
	_, _, err = Import(blob, 1)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "version")
}

func TestImportRejectsTamperedPayload(t *testing.T) {
	blob, err := Export(testutil.SamplePayload(1), testutil.SampleMeta(1))
	require.NoError(t, err)

	// Flip a payload byte; the trailing digest no longer matches.
	blob[len(blob)-digestLen-1] ^= 0xFF

	_, _, err = Import(blob, 1)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "digest")
}

func TestImportAllOrNothing(t *testing.T) {
	_, _, err := Import([]byte("not a blob at all"), 0)

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}
