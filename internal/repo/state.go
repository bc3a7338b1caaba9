// Package repo implements the repository core: state, header
// serialization, commit/rollback/savepoint, clean/repack, integrity
// verification, and password change (spec.md §4.7-§4.14). It is grounded
// almost line-for-line on original_source/repo/common/repository.rs.
package repo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"objrepo/internal/chunker"
	"objrepo/internal/chunkstore"
	"objrepo/internal/encode"
	"objrepo/internal/metadata"
	"objrepo/internal/object"
	"objrepo/internal/repoerr"
	"objrepo/internal/store"
	"objrepo/internal/superblock"
)

// ChunkHash is a chunk's content hash. It implements encoding.BinaryMarshaler
// so that msgpack (like it already does for uuid.UUID) encodes it as a
// compact 32-byte value even when used as a map key, rather than falling
// back to reflecting over a [32]uint8 array.
type ChunkHash [32]byte

func (h ChunkHash) MarshalBinary() ([]byte, error) {
	return h[:], nil
}

func (h *ChunkHash) UnmarshalBinary(data []byte) error {
	if len(data) != len(*h) {
		return fmt.Errorf("repo: chunk hash has wrong length %d", len(data))
	}
	copy(h[:], data)
	return nil
}

// ChunkInfo is one entry in the chunk map: a content hash's storage
// location and the set of handle IDs currently referencing it.
type ChunkInfo struct {
	Hash       ChunkHash
	Size       uint32
	BlockID    uuid.UUID
	Loc        *chunkstore.PackLocation // nil when packing is disabled
	References map[uuid.UUID]struct{}
}

// Header is the serialized aggregate spec.md calls {chunks, packs,
// managed, handle_table}: everything that changes between commits.
//
// The pack map here is simpler than the original's block_id -> []PackIndex
// shape: this chunk store never splits one chunk's bytes across two packs
// (each chunk is appended whole to the current buffer, which is flushed as
// one block once it reaches PackSize, so a pack may exceed PackSize), so a
// single PackLocation per block ID suffices.
type Header struct {
	Chunks      map[ChunkHash]*ChunkInfo                  `msgpack:"chunks"`
	Packs       map[uuid.UUID]*chunkstore.PackLocation    `msgpack:"packs"`
	Managed     map[uuid.UUID]map[uuid.UUID]object.Handle `msgpack:"managed"`
	HandleTable handleTableSnapshot                       `msgpack:"handle_table"`
}

// handleTableSnapshot is the wire form of idTable: next counter plus the
// free list, sufficient to reconstruct live/free state (live = all slots
// below next that are not in free).
type handleTableSnapshot struct {
	Next uint64   `msgpack:"next"`
	Free []uint64 `msgpack:"free"`
}

func (t *idTable) snapshot() handleTableSnapshot {
	free := append([]uint64(nil), t.free...)
	return handleTableSnapshot{Next: t.next, Free: free}
}

func idTableFromSnapshot(s handleTableSnapshot) *idTable {
	t := newIDTable()
	t.next = s.Next
	t.free = append([]uint64(nil), s.Free...)
	freeSet := make(map[uint64]bool, len(s.Free))
	for _, slot := range s.Free {
		freeSet[slot] = true
	}
	for slot := uint64(0); slot < s.Next; slot++ {
		if !freeSet[slot] {
			t.live[slot] = true
		}
	}
	return t
}

// Config bundles the tunables that describe a repository's on-disk
// layout, fixed at creation time (spec.md's SuperBlock fields plus the
// packing choice mirrored into Metadata.Packing).
type Config struct {
	BlockSize   uint32
	ChunkerBits uint32
	Compression encode.Compression
	Encryption  encode.Encryption
	Packing     chunkstore.Packing
	KeyParams   metadata.KeyDerivationParams

	// Logger receives repo lifecycle events (open, commit, rollback,
	// clean, verify) at Info and recoverable per-block anomalies
	// (superblock repair, corrupt chunk found during verify) at Warn. A
	// nil Logger is replaced with logging.Discard().
	Logger *slog.Logger
}

// RepoState is the repository's in-memory working state: the decoded
// metadata, chunk map, pack map, the master key, and a mutex-wrapped
// DataStore (spec.md §4.7).
type RepoState struct {
	storeMu  sync.Mutex
	ds       store.DataStore
	super    superblock.SuperBlock
	metadata metadata.Metadata

	chunks map[ChunkHash]*ChunkInfo
	packs  map[uuid.UUID]*chunkstore.PackLocation

	masterKey []byte
	enc       *encode.Pipeline
	chunkCfg  chunker.Config
	cstore    *chunkstore.ChunkStore
	logger    *slog.Logger
}

// ObjectRepo is the repository's public handle: state shared across all
// instances, plus this handle's own instance ID, managed-object map,
// handle-ID table, and savepoint table (spec.md's data model table).
type ObjectRepo struct {
	state      *RepoState
	instanceID uuid.UUID

	managed     map[uuid.UUID]map[uuid.UUID]object.Handle
	handleTable *idTable
	savepoints  map[uuid.UUID]object.Handle
}

// Info summarizes a repository's static configuration plus a live
// chunk/pack count, for diagnostic tooling such as cmd/objrepo's info
// command.
type Info struct {
	RepoID      uuid.UUID
	BlockSize   uint32
	ChunkerBits uint32
	Compression encode.Compression
	Encryption  encode.Encryption
	Packing     chunkstore.Packing
	ChunkCount  int
	PackCount   int
}

// Info returns r's static configuration and current chunk/pack counts.
func (r *ObjectRepo) Info() Info {
	return Info{
		RepoID:      r.state.metadata.RepoID,
		BlockSize:   r.state.super.BlockSize,
		ChunkerBits: r.state.super.ChunkerBits,
		Compression: r.state.super.Compression,
		Encryption:  r.state.super.Encryption,
		Packing:     chunkstorePackingFromMetadata(r.state.metadata.Packing),
		ChunkCount:  len(r.state.chunks),
		PackCount:   len(r.state.packs),
	}
}

func (s *RepoState) encodeData(plaintext []byte) ([]byte, error) {
	return s.enc.Encode(plaintext)
}

func (s *RepoState) decodeData(encoded []byte) ([]byte, error) {
	return s.enc.Decode(encoded)
}

// writeBlock writes a block under the repository's single mutually
// exclusive store lock (spec.md §5: held only across individual block
// operations, never across a whole public method).
func (s *RepoState) writeBlock(ctx context.Context, kind store.Kind, id uuid.UUID, data []byte) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	return s.ds.WriteBlock(ctx, kind, id, data)
}

func (s *RepoState) readBlock(ctx context.Context, kind store.Kind, id uuid.UUID) ([]byte, bool, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	return s.ds.ReadBlock(ctx, kind, id)
}

// fetchChunk implements object.ChunkSource against the chunk map and
// chunk store: resolve a content hash to its block/pack location, then
// fetch and decode it. In packing mode the physical block to read is the
// pack's own block ID (info.Loc.PackID), not the chunk's logical BlockID;
// see storeChunk's comment on why those two differ.
func (s *RepoState) fetchChunk(ctx context.Context, hash [32]byte) ([]byte, error) {
	info, ok := s.chunks[ChunkHash(hash)]
	if !ok {
		return nil, fmt.Errorf("repo: chunk %x not found in chunk map: %w", hash, repoerr.ErrCorrupt)
	}
	if info.Loc != nil {
		return s.cstore.ReadChunk(ctx, info.Loc.PackID, info.Loc)
	}
	return s.cstore.ReadChunk(ctx, info.BlockID, nil)
}

// storeChunk implements object.ChunkSink against the chunk map and chunk
// store: write a previously-unseen chunk's plaintext and record its
// ChunkInfo. The caller (a write cursor via the repoChunkAdapter)
// only calls this when Has reported false.
//
// In packing mode, ChunkInfo.BlockID is a logical per-chunk identity
// distinct from the physical pack block it lands in (info.Loc.PackID);
// multiple chunks share one pack's physical block ID but never share a
// logical BlockID. s.packs records every logical BlockID -> PackLocation
// ever minted, independent of the chunk map, and is never pruned here: it
// is only pruned by clean(), which needs to see pack-map entries whose
// chunk has since been removed from the chunk map in order to detect a
// pack carrying garbage that must be rewritten without it (spec.md
// §4.12, grounded on repository.rs's clean() building packs_to_blocks
// from self.state.packs/previous_header.packs rather than from chunks).
func (s *RepoState) storeChunk(ctx context.Context, hash [32]byte, plaintext []byte) error {
	blockID, loc, err := s.cstore.WriteChunk(ctx, plaintext)
	if err != nil {
		return err
	}
	s.chunks[ChunkHash(hash)] = &ChunkInfo{
		Hash:       ChunkHash(hash),
		Size:       uint32(len(plaintext)),
		BlockID:    blockID,
		Loc:        loc,
		References: make(map[uuid.UUID]struct{}),
	}
	if loc != nil {
		// Shares the pointer with cstore's pending list (and with
		// ChunkInfo.Loc above), so a later FlushPack's in-place PackID
		// backfill is visible here too without re-reading anything.
		s.packs[blockID] = loc
	}
	return nil
}

// hasChunk reports whether hash is already in the chunk map.
func (s *RepoState) hasChunk(hash [32]byte) bool {
	_, ok := s.chunks[ChunkHash(hash)]
	return ok
}

// marshalHeader produces the schema-evolution-friendly msgpack wire form
// of Header; field names are explicit tags so that adding a
// field later does not reorder or break old data (spec.md §4.8).
func marshalHeader(h Header) ([]byte, error) {
	data, err := msgpack.Marshal(&h)
	if err != nil {
		return nil, fmt.Errorf("repo: marshal header: %w", repoerr.ErrSerialize)
	}
	return data, nil
}

func unmarshalHeader(data []byte) (Header, error) {
	var h Header
	if err := msgpack.Unmarshal(data, &h); err != nil {
		return Header{}, fmt.Errorf("repo: unmarshal header: %w", repoerr.ErrDeserialize)
	}
	if h.Chunks == nil {
		h.Chunks = make(map[ChunkHash]*ChunkInfo)
	}
	if h.Packs == nil {
		h.Packs = make(map[uuid.UUID]*chunkstore.PackLocation)
	}
	if h.Managed == nil {
		h.Managed = make(map[uuid.UUID]map[uuid.UUID]object.Handle)
	}
	return h, nil
}

// emptyHeader is the header a freshly initialized, empty repository
// commits first.
func emptyHeader() Header {
	return Header{
		Chunks:      make(map[ChunkHash]*ChunkInfo),
		Packs:       make(map[uuid.UUID]*chunkstore.PackLocation),
		Managed:     make(map[uuid.UUID]map[uuid.UUID]object.Handle),
		HandleTable: newIDTable().snapshot(),
	}
}
