package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/models"
)

// FileStore persists each slot as a payload file plus a JSON metadata
// sidecar. Writes are atomic: temp file then rename, metadata last, so a
// crash never leaves a payload without metadata pointing at stale bytes.
type FileStore struct {
	baseDir        string
	maxPayloadSize int64
	logger         *events.Logger
}

var slotFilePattern = regexp.MustCompile(`^slot-(\d+)\.sav$`)

// NewFileStore creates a file-backed slot store rooted at baseDir.
func NewFileStore(baseDir string, maxPayloadSize int64, logger *events.Logger) (*FileStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileStore{
		baseDir:        absPath,
		maxPayloadSize: maxPayloadSize,
		logger:         logger.WithField("component", "file_store"),
	}, nil
}

// Read returns the payload and metadata for a slot.
func (s *FileStore) Read(slot int) ([]byte, *models.SlotMetadata, error) {
	meta, err := s.ReadMeta(slot)
	if err != nil {
		return nil, nil, err
	}

	payload, err := os.ReadFile(s.payloadPath(slot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, models.ErrSlotNotFound
		}
		return nil, nil, fmt.Errorf("read payload: %w", err)
	}

	return payload, meta, nil
}

// ReadMeta returns metadata without loading the payload.
func (s *FileStore) ReadMeta(slot int) (*models.SlotMetadata, error) {
	data, err := os.ReadFile(s.metaPath(slot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrSlotNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta models.SlotMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata for slot %d: %w", slot, err)
	}

	return &meta, nil
}

// Write persists a payload and its metadata atomically.
func (s *FileStore) Write(slot int, payload []byte, meta *models.SlotMetadata) error {
	if int64(len(payload)) > s.maxPayloadSize {
		return fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), s.maxPayloadSize)
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"slot": slot,
		"size": len(payload),
	}).Debug("Writing slot")

	if err := s.writeAtomic(s.payloadPath(slot), payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := s.writeAtomic(s.metaPath(slot), metaData); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	return nil
}

// Delete removes a slot's payload and metadata. Metadata goes first so a
// partial delete never leaves metadata describing a missing payload.
func (s *FileStore) Delete(slot int) error {
	if _, err := s.ReadMeta(slot); err != nil {
		return err
	}

	if err := os.Remove(s.metaPath(slot)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete metadata: %w", err)
	}
	if err := os.Remove(s.payloadPath(slot)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete payload: %w", err)
	}

	s.logger.WithSlot(slot).Debug("Deleted slot")
	return nil
}

// List returns the slot numbers currently holding a payload.
func (s *FileStore) List() ([]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list base directory: %w", err)
	}

	var slots []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := slotFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		slot, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		// Only count slots with intact metadata.
		if _, err := os.Stat(s.metaPath(slot)); err == nil {
			slots = append(slots, slot)
		}
	}

	return slots, nil
}

// Close releases resources.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) payloadPath(slot int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("slot-%d.sav", slot))
}

func (s *FileStore) metaPath(slot int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("slot-%d.meta.json", slot))
}

// writeAtomic writes via temp file and rename.
func (s *FileStore) writeAtomic(path string, data []byte) error {
	tempPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
