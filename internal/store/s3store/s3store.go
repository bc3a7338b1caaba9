// Package s3store implements a store.DataStore backed by an S3 bucket,
// using github.com/aws/aws-sdk-go-v2/service/s3 (a direct dependency of
// the teacher repository, newly wired here as a DataStore backend per the
// expansion's domain-stack charter).
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"objrepo/internal/store"
)

var kindPrefixes = map[store.Kind]string{
	store.KindData:   "data/",
	store.KindHeader: "header/",
	store.KindLock:   "lock/",
}

const (
	metadataKey     = "metadata"
	versionKey      = "version"
	superPrimaryKey = "superblock/primary"
	superBackupKey  = "superblock/backup"
)

// Store is an S3-backed DataStore. Bucket must already exist; Store does
// not create it.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New constructs a Store over an already-configured S3 client.
func New(client *s3.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) key(parts ...string) string {
	key := s.prefix
	for _, p := range parts {
		key += p
	}
	return key
}

func (s *Store) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3store: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("s3store: get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("s3store: read body %s: %w", key, err)
	}
	return data, true, nil
}

func (s *Store) deleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3store: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) WriteBlock(ctx context.Context, kind store.Kind, id uuid.UUID, data []byte) error {
	switch kind {
	case store.KindMetadata:
		return s.putObject(ctx, s.key(metadataKey), data)
	case store.KindVersion:
		return s.putObject(ctx, s.key(versionKey), data)
	}
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return fmt.Errorf("s3store: unsupported kind %v", kind)
	}
	return s.putObject(ctx, s.key(prefix, id.String()), data)
}

func (s *Store) ReadBlock(ctx context.Context, kind store.Kind, id uuid.UUID) ([]byte, bool, error) {
	switch kind {
	case store.KindMetadata:
		return s.getObject(ctx, s.key(metadataKey))
	case store.KindVersion:
		return s.getObject(ctx, s.key(versionKey))
	}
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return nil, false, fmt.Errorf("s3store: unsupported kind %v", kind)
	}
	return s.getObject(ctx, s.key(prefix, id.String()))
}

func (s *Store) RemoveBlock(ctx context.Context, kind store.Kind, id uuid.UUID) error {
	switch kind {
	case store.KindMetadata:
		return s.deleteObject(ctx, s.key(metadataKey))
	case store.KindVersion:
		return s.deleteObject(ctx, s.key(versionKey))
	}
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return fmt.Errorf("s3store: unsupported kind %v", kind)
	}
	return s.deleteObject(ctx, s.key(prefix, id.String()))
}

func (s *Store) ListBlocks(ctx context.Context, kind store.Kind) ([]uuid.UUID, error) {
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return nil, fmt.Errorf("s3store: unsupported kind %v", kind)
	}
	fullPrefix := s.key(prefix)

	var out []uuid.UUID
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3store: list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := (*obj.Key)[len(fullPrefix):]
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
	key := superPrimaryKey
	if slot == store.SuperblockBackup {
		key = superBackupKey
	}
	return s.putObject(ctx, s.key(key), data[:])
}

func (s *Store) ReadSuperblock(ctx context.Context, slot store.SuperblockSlot) ([store.SuperblockSlotSize]byte, bool, error) {
	var out [store.SuperblockSlotSize]byte
	key := superPrimaryKey
	if slot == store.SuperblockBackup {
		key = superBackupKey
	}
	data, ok, err := s.getObject(ctx, s.key(key))
	if err != nil || !ok {
		return out, ok, err
	}
	if len(data) != store.SuperblockSlotSize {
		return out, false, fmt.Errorf("s3store: superblock slot has unexpected size %d", len(data))
	}
	copy(out[:], data)
	return out, true, nil
}
