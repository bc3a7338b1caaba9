package repo

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"objrepo/internal/chunker"
	"objrepo/internal/chunkstore"
	"objrepo/internal/encode"
	"objrepo/internal/logging"
	"objrepo/internal/metadata"
	"objrepo/internal/object"
	"objrepo/internal/repoerr"
	"objrepo/internal/store"
	"objrepo/internal/superblock"
)

// formatVersion identifies the on-disk layout this package reads and
// writes; stored verbatim under store.VersionBlockID (spec.md §6).
const formatVersion = "objrepo-v1"

// masterKeyLen matches chacha20poly1305.KeySize; kept as a local constant
// rather than importing chacha20poly1305 directly here, mirroring
// internal/metadata's own choice to avoid a needless extra import.
const masterKeyLen = 32

// metadataSeal and metadataOpen wrap/unwrap the master key. Key wrapping
// always uses strong AEAD regardless of the repository's configured data
// Encryption (which may legitimately be "none" for data blocks); it would
// be unsound to let "no encryption" apply to the master key itself.
func metadataSeal(key, plaintext []byte) ([]byte, error) {
	p, err := encode.New(encode.CompressionNone, encode.EncryptionChaCha20Poly1305, key)
	if err != nil {
		return nil, err
	}
	return p.Encode(plaintext)
}

func metadataOpen(key, ciphertext []byte) ([]byte, error) {
	p, err := encode.New(encode.CompressionNone, encode.EncryptionChaCha20Poly1305, key)
	if err != nil {
		return nil, err
	}
	return p.Decode(ciphertext)
}

func chunkstorePackingFromMetadata(p metadata.Packing) chunkstore.Packing {
	return chunkstore.Packing{Enabled: p.Enabled, PackSize: p.PackSize}
}

// Create initializes a brand-new, empty repository over ds: a fresh master
// key, a singleton Metadata sealing it under password, an empty Header
// committed as the first header block, the version block, and finally the
// superblock (written last, since its presence is what a later Create call
// checks to detect an already-initialized store root).
func Create(ctx context.Context, ds store.DataStore, password string, cfg Config) (*ObjectRepo, error) {
	logger := logging.Default(cfg.Logger).With("component", "repo")

	if _, ok, err := ds.ReadSuperblock(ctx, store.SuperblockPrimary); err != nil {
		return nil, fmt.Errorf("repo: check for existing repository: %w", repoerr.ErrIo)
	} else if ok {
		return nil, fmt.Errorf("repo: create: %w", repoerr.ErrAlreadyExists)
	}

	masterKey := make([]byte, masterKeyLen)
	if _, err := rand.Read(masterKey); err != nil {
		return nil, fmt.Errorf("repo: generate master key: %w", err)
	}

	enc, err := encode.New(cfg.Compression, cfg.Encryption, masterKey)
	if err != nil {
		return nil, fmt.Errorf("repo: init encoder: %w", err)
	}

	header := emptyHeader()
	headerPlain, err := marshalHeader(header)
	if err != nil {
		return nil, err
	}
	headerEncoded, err := enc.Encode(headerPlain)
	if err != nil {
		return nil, fmt.Errorf("repo: encode header: %w", err)
	}
	headerID := uuid.New()
	if err := ds.WriteBlock(ctx, store.KindHeader, headerID, headerEncoded); err != nil {
		return nil, fmt.Errorf("repo: write header block: %w", repoerr.ErrIo)
	}

	if err := ds.WriteBlock(ctx, store.KindVersion, store.VersionBlockID, []byte(formatVersion)); err != nil {
		return nil, fmt.Errorf("repo: write version block: %w", repoerr.ErrIo)
	}

	repoID := uuid.New()
	md, err := metadata.New(repoID, password, masterKey, cfg.KeyParams,
		metadata.Packing{Enabled: cfg.Packing.Enabled, PackSize: cfg.Packing.PackSize}, metadataSeal)
	if err != nil {
		return nil, err
	}
	md.HeaderID = headerID

	mdData, err := metadata.Marshal(md)
	if err != nil {
		return nil, err
	}
	if err := ds.WriteBlock(ctx, store.KindMetadata, store.MetadataBlockID, mdData); err != nil {
		return nil, fmt.Errorf("repo: write metadata block: %w", repoerr.ErrIo)
	}

	// Header/HeaderSize are carried over from original_source's on-disk
	// layout for parity but are not used to locate anything here: the
	// header block is addressed by metadata.HeaderID within the
	// Kind-partitioned block space instead of a raw byte extent.
	sb := superblock.SuperBlock{
		ID:          repoID,
		BlockSize:   cfg.BlockSize,
		ChunkerBits: cfg.ChunkerBits,
		Compression: cfg.Compression,
		Encryption:  cfg.Encryption,
	}
	if err := superblock.Write(ctx, ds, sb); err != nil {
		return nil, err
	}

	cstore := chunkstore.New(ds, enc, cfg.Packing)
	state := &RepoState{
		ds:        ds,
		super:     sb,
		metadata:  md,
		chunks:    header.Chunks,
		packs:     header.Packs,
		masterKey: masterKey,
		enc:       enc,
		chunkCfg:  chunker.Config{Bits: uint(cfg.ChunkerBits)},
		cstore:    cstore,
		logger:    logger,
	}

	logger.Info("repository created", "repo_id", repoID)

	return &ObjectRepo{
		state:       state,
		instanceID:  uuid.Nil,
		managed:     header.Managed,
		handleTable: idTableFromSnapshot(header.HandleTable),
		savepoints:  make(map[uuid.UUID]object.Handle),
	}, nil
}

// Open reads back a repository previously written by Create (or a later
// Commit), unsealing the master key under password and loading the header
// named by the metadata singleton.
func Open(ctx context.Context, ds store.DataStore, password string, logger *slog.Logger) (*ObjectRepo, error) {
	logger = logging.Default(logger).With("component", "repo")

	primaryOK, backupOK, err := superblockPresence(ctx, ds)
	if err != nil {
		return nil, err
	}
	if !primaryOK && !backupOK {
		return nil, fmt.Errorf("repo: open: %w", repoerr.ErrNotFound)
	}
	if primaryOK != backupOK {
		logger.Warn("repairing superblock from surviving copy", "primary_ok", primaryOK, "backup_ok", backupOK)
	}

	sb, err := superblock.Read(ctx, ds)
	if err != nil {
		return nil, err
	}

	mdData, ok, err := ds.ReadBlock(ctx, store.KindMetadata, store.MetadataBlockID)
	if err != nil {
		return nil, fmt.Errorf("repo: read metadata block: %w", repoerr.ErrIo)
	}
	if !ok {
		return nil, fmt.Errorf("repo: metadata block missing: %w", repoerr.ErrCorrupt)
	}
	md, err := metadata.Unmarshal(mdData)
	if err != nil {
		return nil, err
	}

	masterKey, err := md.Unseal(password, metadataOpen)
	if err != nil {
		return nil, err
	}

	enc, err := encode.New(sb.Compression, sb.Encryption, masterKey)
	if err != nil {
		return nil, fmt.Errorf("repo: init encoder: %w", err)
	}

	headerEncoded, ok, err := ds.ReadBlock(ctx, store.KindHeader, md.HeaderID)
	if err != nil {
		return nil, fmt.Errorf("repo: read header block: %w", repoerr.ErrIo)
	}
	if !ok {
		return nil, fmt.Errorf("repo: header block %s missing: %w", md.HeaderID, repoerr.ErrCorrupt)
	}
	headerPlain, err := enc.Decode(headerEncoded)
	if err != nil {
		return nil, fmt.Errorf("repo: decode header (%v): %w", err, repoerr.ErrCorrupt)
	}
	header, err := unmarshalHeader(headerPlain)
	if err != nil {
		return nil, err
	}

	cstore := chunkstore.New(ds, enc, chunkstorePackingFromMetadata(md.Packing))
	state := &RepoState{
		ds:        ds,
		super:     sb,
		metadata:  md,
		chunks:    header.Chunks,
		packs:     header.Packs,
		masterKey: masterKey,
		enc:       enc,
		chunkCfg:  chunker.Config{Bits: uint(sb.ChunkerBits)},
		cstore:    cstore,
		logger:    logger,
	}

	logger.Info("repository opened", "repo_id", md.RepoID)

	return &ObjectRepo{
		state:       state,
		instanceID:  uuid.Nil,
		managed:     header.Managed,
		handleTable: idTableFromSnapshot(header.HandleTable),
		savepoints:  make(map[uuid.UUID]object.Handle),
	}, nil
}

func superblockPresence(ctx context.Context, ds store.DataStore) (primaryOK, backupOK bool, err error) {
	_, primaryOK, err = ds.ReadSuperblock(ctx, store.SuperblockPrimary)
	if err != nil {
		return false, false, fmt.Errorf("repo: read primary superblock: %w", repoerr.ErrIo)
	}
	_, backupOK, err = ds.ReadSuperblock(ctx, store.SuperblockBackup)
	if err != nil {
		return false, false, fmt.Errorf("repo: read backup superblock: %w", repoerr.ErrIo)
	}
	return primaryOK, backupOK, nil
}
