// Package gcsstore implements a store.DataStore backed by a Google Cloud
// Storage bucket, using cloud.google.com/go/storage (a direct dependency
// of the teacher repository, newly wired here as a DataStore backend).
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	objrepostore "objrepo/internal/store"
)

var kindPrefixes = map[objrepostore.Kind]string{
	objrepostore.KindData:   "data/",
	objrepostore.KindHeader: "header/",
	objrepostore.KindLock:   "lock/",
}

const (
	metadataObject     = "metadata"
	versionObject      = "version"
	superPrimaryObject = "superblock/primary"
	superBackupObject  = "superblock/backup"
)

// Store is a Google Cloud Storage-backed DataStore. The bucket must
// already exist.
type Store struct {
	bucket *storage.BucketHandle
	prefix string
}

// New constructs a Store over an already-configured GCS bucket handle.
func New(bucket *storage.BucketHandle, prefix string) *Store {
	return &Store{bucket: bucket, prefix: prefix}
}

func (s *Store) objectName(parts ...string) string {
	name := s.prefix
	for _, p := range parts {
		name += p
	}
	return name
}

func (s *Store) write(ctx context.Context, name string, data []byte) error {
	w := s.bucket.Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcsstore: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcsstore: close writer %s: %w", name, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, name string) ([]byte, bool, error) {
	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("gcsstore: read %s: %w", name, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("gcsstore: read body %s: %w", name, err)
	}
	return data, true, nil
}

func (s *Store) delete(ctx context.Context, name string) error {
	err := s.bucket.Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcsstore: delete %s: %w", name, err)
	}
	return nil
}

func (s *Store) WriteBlock(ctx context.Context, kind objrepostore.Kind, id uuid.UUID, data []byte) error {
	switch kind {
	case objrepostore.KindMetadata:
		return s.write(ctx, s.objectName(metadataObject), data)
	case objrepostore.KindVersion:
		return s.write(ctx, s.objectName(versionObject), data)
	}
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return fmt.Errorf("gcsstore: unsupported kind %v", kind)
	}
	return s.write(ctx, s.objectName(prefix, id.String()), data)
}

func (s *Store) ReadBlock(ctx context.Context, kind objrepostore.Kind, id uuid.UUID) ([]byte, bool, error) {
	switch kind {
	case objrepostore.KindMetadata:
		return s.read(ctx, s.objectName(metadataObject))
	case objrepostore.KindVersion:
		return s.read(ctx, s.objectName(versionObject))
	}
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return nil, false, fmt.Errorf("gcsstore: unsupported kind %v", kind)
	}
	return s.read(ctx, s.objectName(prefix, id.String()))
}

func (s *Store) RemoveBlock(ctx context.Context, kind objrepostore.Kind, id uuid.UUID) error {
	switch kind {
	case objrepostore.KindMetadata:
		return s.delete(ctx, s.objectName(metadataObject))
	case objrepostore.KindVersion:
		return s.delete(ctx, s.objectName(versionObject))
	}
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return fmt.Errorf("gcsstore: unsupported kind %v", kind)
	}
	return s.delete(ctx, s.objectName(prefix, id.String()))
}

func (s *Store) ListBlocks(ctx context.Context, kind objrepostore.Kind) ([]uuid.UUID, error) {
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return nil, fmt.Errorf("gcsstore: unsupported kind %v", kind)
	}
	fullPrefix := s.objectName(prefix)

	var out []uuid.UUID
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: fullPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcsstore: list objects: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, fullPrefix)
		id, err := uuid.Parse(name)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Store) WriteSuperblock(ctx context.Context, slot objrepostore.SuperblockSlot, data [objrepostore.SuperblockSlotSize]byte) error {
	name := superPrimaryObject
	if slot == objrepostore.SuperblockBackup {
		name = superBackupObject
	}
	return s.write(ctx, s.objectName(name), data[:])
}

func (s *Store) ReadSuperblock(ctx context.Context, slot objrepostore.SuperblockSlot) ([objrepostore.SuperblockSlotSize]byte, bool, error) {
	var out [objrepostore.SuperblockSlotSize]byte
	name := superPrimaryObject
	if slot == objrepostore.SuperblockBackup {
		name = superBackupObject
	}
	data, ok, err := s.read(ctx, s.objectName(name))
	if err != nil || !ok {
		return out, ok, err
	}
	if len(data) != objrepostore.SuperblockSlotSize {
		return out, false, fmt.Errorf("gcsstore: superblock slot has unexpected size %d", len(data))
	}
	copy(out[:], data)
	return out, true, nil
}
