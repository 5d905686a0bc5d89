package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/models"
)

// SQLiteStore persists slots in a single SQLite database. Payload and
// metadata live in one row, so writes are atomic by transaction.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore creates a SQLite-backed slot store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS save_slots (
        slot INTEGER PRIMARY KEY,
        payload BLOB NOT NULL,
        checksum TEXT NOT NULL,
        size_bytes INTEGER NOT NULL,
        last_modified TIMESTAMP NOT NULL,
        player_name TEXT NOT NULL DEFAULT '',
        player_level INTEGER NOT NULL DEFAULT 0,
        player_area TEXT NOT NULL DEFAULT '',
        play_time_seconds INTEGER NOT NULL DEFAULT 0,
        favorite INTEGER NOT NULL DEFAULT 0,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Read returns the payload and metadata for a slot.
func (s *SQLiteStore) Read(slot int) ([]byte, *models.SlotMetadata, error) {
	row := s.db.QueryRow(`
        SELECT payload, checksum, size_bytes, last_modified,
               player_name, player_level, player_area, play_time_seconds, favorite
        FROM save_slots WHERE slot = ?`, slot)

	var payload []byte
	meta, err := scanMeta(slot, row, &payload)
	if err != nil {
		return nil, nil, err
	}
	return payload, meta, nil
}

// ReadMeta returns metadata without loading the payload.
func (s *SQLiteStore) ReadMeta(slot int) (*models.SlotMetadata, error) {
	row := s.db.QueryRow(`
        SELECT checksum, size_bytes, last_modified,
               player_name, player_level, player_area, play_time_seconds, favorite
        FROM save_slots WHERE slot = ?`, slot)

	return scanMeta(slot, row, nil)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeta(slot int, row rowScanner, payload *[]byte) (*models.SlotMetadata, error) {
	meta := &models.SlotMetadata{SlotNumber: slot}
	var favorite int
	var lastModified time.Time

	dest := []interface{}{}
	if payload != nil {
		dest = append(dest, payload)
	}
	dest = append(dest,
		&meta.Checksum, &meta.SizeBytes, &lastModified,
		&meta.Player.Name, &meta.Player.Level, &meta.Player.Area,
		&meta.Player.PlayTimeSeconds, &favorite,
	)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSlotNotFound
		}
		return nil, fmt.Errorf("scan slot %d: %w", slot, err)
	}

	meta.LastModified = lastModified
	meta.Favorite = favorite != 0
	return meta, nil
}

// Write persists a payload and its metadata atomically.
func (s *SQLiteStore) Write(slot int, payload []byte, meta *models.SlotMetadata) error {
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}

	favorite := 0
	if meta.Favorite {
		favorite = 1
	}

	_, err := s.db.Exec(`
        INSERT INTO save_slots
            (slot, payload, checksum, size_bytes, last_modified,
             player_name, player_level, player_area, play_time_seconds, favorite, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(slot) DO UPDATE SET
            payload = excluded.payload,
            checksum = excluded.checksum,
            size_bytes = excluded.size_bytes,
            last_modified = excluded.last_modified,
            player_name = excluded.player_name,
            player_level = excluded.player_level,
            player_area = excluded.player_area,
            play_time_seconds = excluded.play_time_seconds,
            favorite = excluded.favorite,
            updated_at = CURRENT_TIMESTAMP`,
		slot, payload, meta.Checksum, meta.SizeBytes, meta.LastModified,
		meta.Player.Name, meta.Player.Level, meta.Player.Area,
		meta.Player.PlayTimeSeconds, favorite)
	if err != nil {
		return fmt.Errorf("write slot %d: %w", slot, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"slot": slot,
		"size": len(payload),
	}).Debug("Wrote slot")

	return nil
}

// Delete removes a slot.
func (s *SQLiteStore) Delete(slot int) error {
	result, err := s.db.Exec(`DELETE FROM save_slots WHERE slot = ?`, slot)
	if err != nil {
		return fmt.Errorf("delete slot %d: %w", slot, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrSlotNotFound
	}

	s.logger.WithSlot(slot).Debug("Deleted slot")
	return nil
}

// List returns the slot numbers currently holding a payload.
func (s *SQLiteStore) List() ([]int, error) {
	rows, err := s.db.Query(`SELECT slot FROM save_slots ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []int
	for rows.Next() {
		var slot int
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
