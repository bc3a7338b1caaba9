// Package sqlstore implements a store.DataStore backed by SQLite, using
// the pure-Go modernc.org/sqlite driver. Grounded on gastrolog's
// internal/config/sqlite/store.go: sql.Open("sqlite", path),
// SetMaxOpenConns(1) for single-writer semantics, WAL journal mode.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"objrepo/internal/store"
)

// Store is a SQLite-backed DataStore.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	kind INTEGER NOT NULL,
	id   TEXT NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS singletons (
	name TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS superblock (
	slot INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);
`

// Open opens (and, if missing, creates) a SQLite-backed store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: set journal_mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WriteBlock(ctx context.Context, kind store.Kind, id uuid.UUID, data []byte) error {
	switch kind {
	case store.KindMetadata:
		return s.writeSingleton(ctx, "metadata", data)
	case store.KindVersion:
		return s.writeSingleton(ctx, "version", data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocks (kind, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET data = excluded.data`,
		int(kind), id.String(), data)
	if err != nil {
		return fmt.Errorf("sqlstore: write block: %w", err)
	}
	return nil
}

func (s *Store) writeSingleton(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO singletons (name, data) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data`,
		name, data)
	if err != nil {
		return fmt.Errorf("sqlstore: write singleton %s: %w", name, err)
	}
	return nil
}

func (s *Store) ReadBlock(ctx context.Context, kind store.Kind, id uuid.UUID) ([]byte, bool, error) {
	switch kind {
	case store.KindMetadata:
		return s.readSingleton(ctx, "metadata")
	case store.KindVersion:
		return s.readSingleton(ctx, "version")
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM blocks WHERE kind = ? AND id = ?`, int(kind), id.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: read block: %w", err)
	}
	return data, true, nil
}

func (s *Store) readSingleton(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM singletons WHERE name = ?`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: read singleton %s: %w", name, err)
	}
	return data, true, nil
}

func (s *Store) RemoveBlock(ctx context.Context, kind store.Kind, id uuid.UUID) error {
	switch kind {
	case store.KindMetadata:
		_, err := s.db.ExecContext(ctx, `DELETE FROM singletons WHERE name = ?`, "metadata")
		return err
	case store.KindVersion:
		_, err := s.db.ExecContext(ctx, `DELETE FROM singletons WHERE name = ?`, "version")
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE kind = ? AND id = ?`, int(kind), id.String())
	if err != nil {
		return fmt.Errorf("sqlstore: remove block: %w", err)
	}
	return nil
}

func (s *Store) ListBlocks(ctx context.Context, kind store.Kind) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM blocks WHERE kind = ?`, int(kind))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list blocks: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, fmt.Errorf("sqlstore: scan block id: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: parse block id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) WriteSuperblock(ctx context.Context, slot store.SuperblockSlot, data [store.SuperblockSlotSize]byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO superblock (slot, data) VALUES (?, ?)
		 ON CONFLICT(slot) DO UPDATE SET data = excluded.data`,
		int(slot), data[:])
	if err != nil {
		return fmt.Errorf("sqlstore: write superblock: %w", err)
	}
	return nil
}

func (s *Store) ReadSuperblock(ctx context.Context, slot store.SuperblockSlot) ([store.SuperblockSlotSize]byte, bool, error) {
	var out [store.SuperblockSlotSize]byte
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM superblock WHERE slot = ?`, int(slot)).Scan(&data)
	if err == sql.ErrNoRows {
		return out, false, nil
	}
	if err != nil {
		return out, false, fmt.Errorf("sqlstore: read superblock: %w", err)
	}
	if len(data) != store.SuperblockSlotSize {
		return out, false, fmt.Errorf("sqlstore: superblock slot has unexpected size %d", len(data))
	}
	copy(out[:], data)
	return out, true, nil
}
