// Package exchange implements the export/import boundary: a self-describing,
// versioned blob carrying one slot's payload and metadata together, with an
// integrity digest so corrupt or truncated blobs are rejected before any
// store mutation.
package exchange

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/TheMichaelB/savesync/internal/models"
)

// Blob layout: magic | version | metadata length (uint32 BE) | metadata JSON
// | payload | BLAKE2b-256 digest of everything before it.
const (
	blobMagic   = "SVXB"
	blobVersion = 1

	headerLen = len(blobMagic) + 1 + 4
	digestLen = blake2b.Size256
)

// Export serializes a slot's payload and metadata into a portable blob.
func Export(payload []byte, meta *models.SlotMetadata) ([]byte, error) {
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	if !models.VerifyChecksum(payload, meta.Checksum) {
		return nil, fmt.Errorf("payload does not match metadata checksum")
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(headerLen + len(metaJSON) + len(payload) + digestLen)

	buf.WriteString(blobMagic)
	buf.WriteByte(blobVersion)

	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(metaJSON)))
	buf.Write(lenBytes[:])

	buf.Write(metaJSON)
	buf.Write(payload)

	digest := blake2b.Sum256(buf.Bytes())
	buf.Write(digest[:])

	return buf.Bytes(), nil
}

// Import validates a blob and returns its payload and metadata retargeted to
// the given slot. Validation is all-or-nothing: blobs with an unknown newer
// version, a bad digest, or inconsistent metadata are rejected without any
// partial result.
func Import(blob []byte, targetSlot int) ([]byte, *models.SlotMetadata, error) {
	if len(blob) < headerLen+digestLen {
		return nil, nil, &models.ValidationError{Reason: "blob too short"}
	}

	if string(blob[:len(blobMagic)]) != blobMagic {
		return nil, nil, &models.ValidationError{Reason: "bad magic"}
	}

	version := blob[len(blobMagic)]
	if version > blobVersion {
		return nil, nil, &models.ValidationError{
			Reason: fmt.Sprintf("unsupported blob version %d (max %d)", version, blobVersion),
		}
	}

	body := blob[:len(blob)-digestLen]
	digest := blob[len(blob)-digestLen:]
	want := blake2b.Sum256(body)
	if subtle.ConstantTimeCompare(digest, want[:]) != 1 {
		return nil, nil, &models.ValidationError{Reason: "integrity digest mismatch"}
	}

	metaLen := binary.BigEndian.Uint32(blob[len(blobMagic)+1 : headerLen])
	if int(metaLen) > len(body)-headerLen {
		return nil, nil, &models.ValidationError{Reason: "metadata length out of bounds"}
	}

	metaJSON := body[headerLen : headerLen+int(metaLen)]
	payload := body[headerLen+int(metaLen):]

	var meta models.SlotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, &models.ValidationError{Reason: "malformed metadata", Err: err}
	}

	if !models.VerifyChecksum(payload, meta.Checksum) {
		return nil, nil, &models.ValidationError{Reason: "payload does not match metadata checksum"}
	}

	meta.SlotNumber = targetSlot
	if err := meta.Validate(); err != nil {
		return nil, nil, &models.ValidationError{Reason: "invalid metadata", Err: err}
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	return out, &meta, nil
}
