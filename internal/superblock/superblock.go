// Package superblock implements the repository's unencrypted root record:
// a fixed-offset, fixed-size (store.SuperblockSlotSize) payload describing
// on-disk geometry, stored twice (primary and backup) so a corrupt copy
// can be repaired from its sibling.
//
// Grounded on original_source/object/block.rs's SuperBlock/Extent/read_at/
// write_at/read/write; the 4-byte big-endian length prefix, msgpack
// payload, and zero padding to a fixed slot size are ported verbatim, with
// the primary-at-offset-0/backup-at-offset-4096 addressing delegated to
// store.DataStore's WriteSuperblock/ReadSuperblock (see internal/store).
package superblock

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"objrepo/internal/encode"
	"objrepo/internal/repoerr"
	"objrepo/internal/store"
)

// Extent is a contiguous run of blocks, used to locate the repository's
// header within the data region.
type Extent struct {
	Index  uint64 `msgpack:"index"`
	Blocks uint64 `msgpack:"blocks"`
}

// reservedSpace is the number of bytes occupied by the two superblock
// slots themselves; extents are indexed relative to the first byte after
// this region.
const reservedSpace = uint64(2 * store.SuperblockSlotSize)

// Start returns the byte offset of the start of the extent.
func (e Extent) Start(blockSize uint32) uint64 {
	return reservedSpace + e.Index*uint64(blockSize)
}

// Length returns the length of the extent in bytes.
func (e Extent) Length(blockSize uint32) uint64 {
	return e.Blocks * uint64(blockSize)
}

// End returns the byte offset one past the end of the extent.
func (e Extent) End(blockSize uint32) uint64 {
	return e.Start(blockSize) + e.Length(blockSize)
}

// Between returns the extent lying between e and other, or ok=false if
// they are adjacent (or overlapping/out of order).
func (e Extent) Between(other Extent) (gap Extent, ok bool) {
	gap = Extent{
		Index: e.Index + e.Blocks,
	}
	if other.Index < gap.Index {
		return Extent{}, false
	}
	gap.Blocks = other.Index - gap.Index
	if gap.Blocks == 0 {
		return Extent{}, false
	}
	return gap, true
}

// SuperBlock is the repository's unencrypted root: everything needed to
// interpret the data region before any key material is available.
type SuperBlock struct {
	ID          uuid.UUID          `msgpack:"id"`
	BlockSize   uint32             `msgpack:"block_size"`
	ChunkerBits uint32             `msgpack:"chunker_bits"`
	Compression encode.Compression `msgpack:"compression"`
	Encryption  encode.Encryption  `msgpack:"encryption"`
	Header      Extent             `msgpack:"header"`
	HeaderSize  uint32             `msgpack:"header_size"`
}

func encodeSlot(sb SuperBlock) ([store.SuperblockSlotSize]byte, error) {
	var out [store.SuperblockSlotSize]byte

	payload, err := msgpack.Marshal(&sb)
	if err != nil {
		return out, fmt.Errorf("superblock: marshal: %w", repoerr.ErrSerialize)
	}
	if len(payload)+4 > store.SuperblockSlotSize {
		return out, fmt.Errorf("superblock: payload of %d bytes exceeds slot size", len(payload))
	}

	binary.BigEndian.PutUint32(out[0:4], uint32(len(payload)))
	copy(out[4:], payload)
	// The remainder of out is already zero-valued, matching the Rust
	// implementation's explicit zero padding.
	return out, nil
}

func decodeSlot(data [store.SuperblockSlotSize]byte) (SuperBlock, error) {
	var sb SuperBlock

	size := binary.BigEndian.Uint32(data[0:4])
	if uint64(size)+4 > store.SuperblockSlotSize {
		return sb, fmt.Errorf("superblock: recorded payload size %d is out of range: %w", size, repoerr.ErrDeserialize)
	}
	payload := data[4 : 4+size]

	if err := msgpack.Unmarshal(payload, &sb); err != nil {
		return sb, fmt.Errorf("superblock: unmarshal: %w", repoerr.ErrDeserialize)
	}
	return sb, nil
}

// Write serializes sb and writes it to both the primary and backup slots.
func Write(ctx context.Context, ds store.DataStore, sb SuperBlock) error {
	data, err := encodeSlot(sb)
	if err != nil {
		return err
	}
	if err := ds.WriteSuperblock(ctx, store.SuperblockPrimary, data); err != nil {
		return fmt.Errorf("superblock: write primary: %w", repoerr.ErrIo)
	}
	if err := ds.WriteSuperblock(ctx, store.SuperblockBackup, data); err != nil {
		return fmt.Errorf("superblock: write backup: %w", repoerr.ErrIo)
	}
	return nil
}

// Read reads the superblock, preferring the primary slot and repairing a
// corrupt or missing side from its valid sibling. It fails only when
// neither slot holds a valid superblock.
func Read(ctx context.Context, ds store.DataStore) (SuperBlock, error) {
	primaryData, primaryOK, err := ds.ReadSuperblock(ctx, store.SuperblockPrimary)
	if err != nil {
		return SuperBlock{}, fmt.Errorf("superblock: read primary: %w", repoerr.ErrIo)
	}
	backupData, backupOK, err := ds.ReadSuperblock(ctx, store.SuperblockBackup)
	if err != nil {
		return SuperBlock{}, fmt.Errorf("superblock: read backup: %w", repoerr.ErrIo)
	}

	var primary, backup SuperBlock
	var primaryErr, backupErr error
	if primaryOK {
		primary, primaryErr = decodeSlot(primaryData)
	} else {
		primaryErr = fmt.Errorf("superblock: primary slot absent: %w", repoerr.ErrNotFound)
	}
	if backupOK {
		backup, backupErr = decodeSlot(backupData)
	} else {
		backupErr = fmt.Errorf("superblock: backup slot absent: %w", repoerr.ErrNotFound)
	}

	switch {
	case primaryErr == nil && backupErr == nil:
		return primary, nil
	case primaryErr == nil && backupErr != nil:
		if err := Write(ctx, ds, primary); err != nil {
			return SuperBlock{}, err
		}
		return primary, nil
	case primaryErr != nil && backupErr == nil:
		if err := Write(ctx, ds, backup); err != nil {
			return SuperBlock{}, err
		}
		return backup, nil
	default:
		return SuperBlock{}, fmt.Errorf("superblock: both primary and backup are corrupt: %w", repoerr.ErrCorrupt)
	}
}
