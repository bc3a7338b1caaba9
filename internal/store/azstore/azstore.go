// Package azstore implements a store.DataStore backed by an Azure Blob
// Storage container, using github.com/Azure/azure-sdk-for-go/sdk/storage/azblob
// (a direct dependency of the teacher repository, newly wired here as a
// DataStore backend).
package azstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/google/uuid"

	"objrepo/internal/store"
)

var kindPrefixes = map[store.Kind]string{
	store.KindData:   "data/",
	store.KindHeader: "header/",
	store.KindLock:   "lock/",
}

const (
	metadataBlob     = "metadata"
	versionBlob      = "version"
	superPrimaryBlob = "superblock/primary"
	superBackupBlob  = "superblock/backup"
)

// Store is an Azure Blob Storage-backed DataStore. The container must
// already exist.
type Store struct {
	client    *azblob.Client
	container string
	prefix    string
}

// New constructs a Store over an already-configured azblob client.
func New(client *azblob.Client, container, prefix string) *Store {
	return &Store{client: client, container: container, prefix: prefix}
}

func (s *Store) blobName(parts ...string) string {
	name := s.prefix
	for _, p := range parts {
		name += p
	}
	return name
}

func (s *Store) upload(ctx context.Context, name string, data []byte) error {
	_, err := s.client.UploadBuffer(ctx, s.container, name, data, nil)
	if err != nil {
		return fmt.Errorf("azstore: upload %s: %w", name, err)
	}
	return nil
}

func (s *Store) download(ctx context.Context, name string) ([]byte, bool, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("azstore: download %s: %w", name, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("azstore: read body %s: %w", name, err)
	}
	return data, true, nil
}

func (s *Store) deleteBlob(ctx context.Context, name string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, name, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("azstore: delete %s: %w", name, err)
	}
	return nil
}

func (s *Store) WriteBlock(ctx context.Context, kind store.Kind, id uuid.UUID, data []byte) error {
	switch kind {
	case store.KindMetadata:
		return s.upload(ctx, s.blobName(metadataBlob), data)
	case store.KindVersion:
		return s.upload(ctx, s.blobName(versionBlob), data)
	}
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return fmt.Errorf("azstore: unsupported kind %v", kind)
	}
	return s.upload(ctx, s.blobName(prefix, id.String()), data)
}

func (s *Store) ReadBlock(ctx context.Context, kind store.Kind, id uuid.UUID) ([]byte, bool, error) {
	switch kind {
	case store.KindMetadata:
		return s.download(ctx, s.blobName(metadataBlob))
	case store.KindVersion:
		return s.download(ctx, s.blobName(versionBlob))
	}
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return nil, false, fmt.Errorf("azstore: unsupported kind %v", kind)
	}
	return s.download(ctx, s.blobName(prefix, id.String()))
}

func (s *Store) RemoveBlock(ctx context.Context, kind store.Kind, id uuid.UUID) error {
	switch kind {
	case store.KindMetadata:
		return s.deleteBlob(ctx, s.blobName(metadataBlob))
	case store.KindVersion:
		return s.deleteBlob(ctx, s.blobName(versionBlob))
	}
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return fmt.Errorf("azstore: unsupported kind %v", kind)
	}
	return s.deleteBlob(ctx, s.blobName(prefix, id.String()))
}

func (s *Store) ListBlocks(ctx context.Context, kind store.Kind) ([]uuid.UUID, error) {
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return nil, fmt.Errorf("azstore: unsupported kind %v", kind)
	}
	fullPrefix := s.blobName(prefix)

	var out []uuid.UUID
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &fullPrefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azstore: list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			name := strings.TrimPrefix(*item.Name, fullPrefix)
			id, err := uuid.Parse(name)
			if err != nil {
				continue
			}
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) WriteSuperblock(ctx context.Context, slot store.SuperblockSlot, data [store.SuperblockSlotSize]byte) error {
	name := superPrimaryBlob
	if slot == store.SuperblockBackup {
		name = superBackupBlob
	}
	return s.upload(ctx, s.blobName(name), data[:])
}

func (s *Store) ReadSuperblock(ctx context.Context, slot store.SuperblockSlot) ([store.SuperblockSlotSize]byte, bool, error) {
	var out [store.SuperblockSlotSize]byte
	name := superPrimaryBlob
	if slot == store.SuperblockBackup {
		name = superBackupBlob
	}
	data, ok, err := s.download(ctx, s.blobName(name))
	if err != nil || !ok {
		return out, ok, err
	}
	if len(data) != store.SuperblockSlotSize {
		return out, false, fmt.Errorf("azstore: superblock slot has unexpected size %d", len(data))
	}
	copy(out[:], data)
	return out, true, nil
}
