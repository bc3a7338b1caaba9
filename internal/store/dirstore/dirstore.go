// Package dirstore implements a store.DataStore backed by a directory in
// the local file system. It is grounded on two sources: the original
// source's directory/store.rs (staging-then-rename write discipline,
// two-hex-char sharding) and gastrolog's internal/chunk/file/meta_store.go
// (os.CreateTemp + Chmod + Write + Close + os.Rename atomic-write idiom).
package dirstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"objrepo/internal/logging"
	"objrepo/internal/store"
)

var kindDirNames = map[store.Kind]string{
	store.KindData:   "data",
	store.KindHeader: "header",
	store.KindLock:   "lock",
}

const (
	metadataFileName = "metadata"
	versionFileName  = "version"
	superPrimaryFile = "super.primary"
	superBackupFile  = "super.backup"
	stagingDirName   = "stage"
)

// Store is a directory-backed DataStore. It is single-writer-safe by
// convention (spec §5): concurrent writers against the same path are not
// supported.
type Store struct {
	root    string
	staging string
	logger  *slog.Logger
}

// Open opens (and, if missing, creates) a directory store rooted at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	logger = logging.Default(logger).With("component", "dirstore", "path", path)

	for _, sub := range kindDirNames {
		if err := os.MkdirAll(filepath.Join(path, sub), 0o755); err != nil {
			return nil, fmt.Errorf("dirstore: create %s dir: %w", sub, err)
		}
	}
	staging := filepath.Join(path, stagingDirName)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("dirstore: create staging dir: %w", err)
	}

	return &Store{root: path, staging: staging, logger: logger}, nil
}

func (s *Store) blockPath(kind store.Kind, id uuid.UUID) (string, error) {
	sub, ok := kindDirNames[kind]
	if !ok {
		return "", fmt.Errorf("dirstore: unsupported kind %v for block access", kind)
	}
	hex := id.String()
	shard := hex[:2]
	dir := filepath.Join(s.root, sub, shard)
	return filepath.Join(dir, hex), nil
}

// writeAtomic writes data to path via a staging file, then renames it into
// place. Staging-directory cleanup failures are logged, not fatal: the
// rename has already landed the data durably, so failing the call after
// that point would violate the "WriteBlock appears atomic" contract for no
// benefit. See SPEC_FULL.md's Open Question decision.
func (s *Store) writeAtomic(finalPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("dirstore: mkdir: %w", err)
	}

	staged, err := os.CreateTemp(s.staging, "block-*")
	if err != nil {
		return fmt.Errorf("dirstore: create staging file: %w", err)
	}
	stagedPath := staged.Name()

	if _, err := staged.Write(data); err != nil {
		staged.Close()
		os.Remove(stagedPath)
		return fmt.Errorf("dirstore: write staging file: %w", err)
	}
	if err := staged.Close(); err != nil {
		os.Remove(stagedPath)
		return fmt.Errorf("dirstore: close staging file: %w", err)
	}
	if err := os.Rename(stagedPath, finalPath); err != nil {
		os.Remove(stagedPath)
		return fmt.Errorf("dirstore: rename into place: %w", err)
	}

	if err := s.sweepStaleStaging(); err != nil {
		s.logger.Warn("staging cleanup failed after successful write", "error", err)
	}
	return nil
}

// sweepStaleStaging removes any leftover staging files from interrupted
// writes. It does not remove the staging directory itself.
func (s *Store) sweepStaleStaging() error {
	entries, err := os.ReadDir(s.staging)
	if err != nil {
		return err
	}
	var firstErr error
	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.staging, e.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) WriteBlock(_ context.Context, kind store.Kind, id uuid.UUID, data []byte) error {
	switch kind {
	case store.KindMetadata:
		return s.writeAtomic(filepath.Join(s.root, metadataFileName), data)
	case store.KindVersion:
		return s.writeAtomic(filepath.Join(s.root, versionFileName), data)
	}
	path, err := s.blockPath(kind, id)
	if err != nil {
		return err
	}
	return s.writeAtomic(path, data)
}

func (s *Store) readFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("dirstore: read %s: %w", path, err)
	}
	return data, true, nil
}

func (s *Store) ReadBlock(_ context.Context, kind store.Kind, id uuid.UUID) ([]byte, bool, error) {
	switch kind {
	case store.KindMetadata:
		return s.readFile(filepath.Join(s.root, metadataFileName))
	case store.KindVersion:
		return s.readFile(filepath.Join(s.root, versionFileName))
	}
	path, err := s.blockPath(kind, id)
	if err != nil {
		return nil, false, err
	}
	return s.readFile(path)
}

func (s *Store) RemoveBlock(_ context.Context, kind store.Kind, id uuid.UUID) error {
	var path string
	switch kind {
	case store.KindMetadata:
		path = filepath.Join(s.root, metadataFileName)
	case store.KindVersion:
		path = filepath.Join(s.root, versionFileName)
	default:
		p, err := s.blockPath(kind, id)
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("dirstore: remove %s: %w", path, err)
	}
	return nil
}

func (s *Store) ListBlocks(_ context.Context, kind store.Kind) ([]uuid.UUID, error) {
	sub, ok := kindDirNames[kind]
	if !ok {
		return nil, fmt.Errorf("dirstore: unsupported kind %v for list", kind)
	}
	base := filepath.Join(s.root, sub)

	var out []uuid.UUID
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		id, parseErr := uuid.Parse(d.Name())
		if parseErr != nil {
			s.logger.Warn("skipping unparseable block file name", "path", path)
			return nil
		}
		out = append(out, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dirstore: walk %s: %w", base, err)
	}
	return out, nil
}

func (s *Store) superblockPath(slot store.SuperblockSlot) string {
	if slot == store.SuperblockPrimary {
		return filepath.Join(s.root, superPrimaryFile)
	}
	return filepath.Join(s.root, superBackupFile)
}

func (s *Store) WriteSuperblock(_ context.Context, slot store.SuperblockSlot, data [store.SuperblockSlotSize]byte) error {
	return s.writeAtomic(s.superblockPath(slot), data[:])
}

func (s *Store) ReadSuperblock(_ context.Context, slot store.SuperblockSlot) ([store.SuperblockSlotSize]byte, bool, error) {
	var out [store.SuperblockSlotSize]byte
	data, ok, err := s.readFile(s.superblockPath(slot))
	if err != nil || !ok {
		return out, ok, err
	}
	if len(data) != store.SuperblockSlotSize {
		return out, false, fmt.Errorf("dirstore: superblock slot has unexpected size %d", len(data))
	}
	copy(out[:], data)
	return out, true, nil
}
