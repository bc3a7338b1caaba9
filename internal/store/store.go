// Package store defines the DataStore contract: the pluggable
// block-oriented backing store the repository core writes encoded blocks
// to and reads them from. Implementations live in subpackages (memstore,
// dirstore, sqlstore, s3store, azstore, gcsstore).
package store

import (
	"context"

	"github.com/google/uuid"
)

// Kind partitions block keys by role. A single block UUID is only ever
// written under one Kind at a time, but store implementations must keep
// each Kind's namespace independent (the same UUID could in principle
// collide across kinds without this partitioning).
type Kind int

const (
	// KindData holds chunk and pack payload blocks.
	KindData Kind = iota
	// KindHeader holds serialized repository Header blocks, one per
	// commit, addressed by freshly allocated UUIDs.
	KindHeader
	// KindLock holds advisory single-writer lock blocks.
	KindLock
	// KindMetadata holds exactly one block, under MetadataBlockID: the
	// repository's singleton metadata record naming the current header.
	KindMetadata
	// KindVersion holds exactly one block, under VersionBlockID: a
	// constant string identifying the on-disk format version.
	KindVersion
)

// Singleton block IDs. Metadata and Version are each stored under exactly
// one of these fixed UUIDs.
var (
	MetadataBlockID = uuid.MustParse("8691d360-29c6-11ea-8bc1-2fc8cfe66f33")
	VersionBlockID  = uuid.MustParse("cbf28b1c-3550-11ea-8cb0-87d7a14efe10")
)

// SuperblockSlot selects one of the two fixed physical copies of the
// unencrypted superblock root. These live outside the opaque block
// address space (see spec §6): they must be locatable before block_size
// itself is known, since block_size is one of the superblock's own
// fields.
type SuperblockSlot int

const (
	SuperblockPrimary SuperblockSlot = iota
	SuperblockBackup
)

// SuperblockSlotSize is the fixed size, in bytes, of each superblock slot.
const SuperblockSlotSize = 4096

// DataStore is the contract every backing store implementation must
// satisfy: write, read, remove, and list block operations partitioned by
// Kind, plus raw access to the two fixed-offset superblock slots.
//
// Implementations must be single-writer-safe and must make WriteBlock and
// WriteSuperblock appear atomic: a process killed between any two
// operations must never leave a block partially written or corrupt an
// unrelated block.
type DataStore interface {
	// WriteBlock writes data under id, tagged with kind. It overwrites any
	// prior value for id and appears atomic to readers.
	WriteBlock(ctx context.Context, kind Kind, id uuid.UUID, data []byte) error

	// ReadBlock returns the bytes stored under id, or ok=false if absent.
	ReadBlock(ctx context.Context, kind Kind, id uuid.UUID) (data []byte, ok bool, err error)

	// RemoveBlock removes the block under id. Removing an absent block is
	// not an error.
	RemoveBlock(ctx context.Context, kind Kind, id uuid.UUID) error

	// ListBlocks returns the IDs of all blocks currently stored under
	// kind. The order is unspecified and may include blocks concurrently
	// being removed by this same writer. Kind must be one of KindData,
	// KindHeader, or KindLock; KindMetadata/KindVersion are singletons and
	// are never listed.
	ListBlocks(ctx context.Context, kind Kind) ([]uuid.UUID, error)

	// WriteSuperblock writes exactly SuperblockSlotSize bytes to the given
	// slot, appearing atomic.
	WriteSuperblock(ctx context.Context, slot SuperblockSlot, data [SuperblockSlotSize]byte) error

	// ReadSuperblock returns the bytes at the given slot, or ok=false if
	// the slot has never been written.
	ReadSuperblock(ctx context.Context, slot SuperblockSlot) (data [SuperblockSlotSize]byte, ok bool, err error)
}
