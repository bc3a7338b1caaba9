// Package chunkstore translates between content-addressed chunks and the
// blocks a store.DataStore persists, in both of spec's two packing modes:
// no packing (one block per chunk) and fixed packing (many chunks
// aggregated into one pack block, tracked by a pack index).
//
// Grounded on original_source/repo/common/repository.rs's pack-map
// handling in clean() (packs_to_blocks, dirty-pack detection) for the
// pack index shape, and other_examples' dittofs blocks/service.go for the
// last-decoded-pack read-cache pattern.
package chunkstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"objrepo/internal/encode"
	"objrepo/internal/store"
)

// Packing selects whether chunks are stored one-per-block or aggregated
// into fixed-size pack blocks.
type Packing struct {
	// Enabled selects fixed packing. If false, every chunk is its own
	// block and PackSize is ignored.
	Enabled  bool
	PackSize int
}

// PackLocation records where a chunk lives inside a pack block. PackID is
// the zero UUID until the pack containing this chunk has actually been
// flushed to a block; FlushPack backfills it in place once the pack is
// written, so callers may hold the pointer WriteChunk returned and read
// PackID after a later FlushPack call (explicit, or made by WriteChunk
// itself once the buffer reaches PackSize).
type PackLocation struct {
	PackID uuid.UUID
	Offset int
	Length int
}

// ChunkStore reads and writes chunk payloads through a DataStore,
// transparently handling packing. It is not safe for concurrent use
// (spec §5: single-writer, single-threaded cooperative model).
type ChunkStore struct {
	ds      store.DataStore
	enc     *encode.Pipeline
	packing Packing

	packBuf     []byte
	pending     []*PackLocation
	cacheMu     sync.Mutex
	lastPackID  uuid.UUID
	lastPackBuf []byte // decoded contents of the last-read pack
}

// New constructs a ChunkStore over ds using enc for chunk encoding.
func New(ds store.DataStore, enc *encode.Pipeline, packing Packing) *ChunkStore {
	return &ChunkStore{ds: ds, enc: enc, packing: packing}
}

// WriteChunk stores plaintext chunk bytes. When packing is disabled it
// writes a standalone block and returns that block's ID with a nil
// PackLocation. When packing is enabled it appends to the in-progress pack
// buffer and returns a freshly minted logical block ID (distinct from the
// pack's own block ID, which is not known until the pack is flushed) plus a
// PackLocation whose PackID is backfilled once the pack is flushed (either
// automatically, when the buffer reaches PackSize, or via an explicit
// FlushPack call). Callers needing to read the chunk back must resolve
// through loc.PackID, not the returned blockID, once the pack has flushed;
// the blockID itself only serves as a stable per-chunk identity distinct
// from any other chunk sharing the same pack (repo's pack map is keyed by
// it, grounded on repository.rs's chunk-level block_id in clean()'s
// pack-map handling).
func (c *ChunkStore) WriteChunk(ctx context.Context, plaintext []byte) (blockID uuid.UUID, loc *PackLocation, err error) {
	if !c.packing.Enabled {
		id := uuid.New()
		encoded, err := c.enc.Encode(plaintext)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("chunkstore: encode chunk: %w", err)
		}
		if err := c.ds.WriteBlock(ctx, store.KindData, id, encoded); err != nil {
			return uuid.Nil, nil, fmt.Errorf("chunkstore: write block: %w", err)
		}
		return id, nil, nil
	}

	id := uuid.New()
	loc = &PackLocation{Offset: len(c.packBuf), Length: len(plaintext)}
	c.packBuf = append(c.packBuf, plaintext...)
	c.pending = append(c.pending, loc)

	if len(c.packBuf) >= c.packing.PackSize {
		if _, err := c.FlushPack(ctx); err != nil {
			return uuid.Nil, nil, err
		}
	}
	return id, loc, nil
}

// FlushPack forces the in-progress pack buffer (if any) to be encoded and
// written as a block, backfilling PackID into every pending PackLocation
// returned since the last flush. Returns the zero UUID and no error if no
// chunks are buffered.
func (c *ChunkStore) FlushPack(ctx context.Context) (uuid.UUID, error) {
	if len(c.packBuf) == 0 {
		return uuid.Nil, nil
	}

	packID := uuid.New()
	encoded, err := c.enc.Encode(c.packBuf)
	if err != nil {
		return uuid.Nil, fmt.Errorf("chunkstore: encode pack: %w", err)
	}
	if err := c.ds.WriteBlock(ctx, store.KindData, packID, encoded); err != nil {
		return uuid.Nil, fmt.Errorf("chunkstore: write pack block: %w", err)
	}
	for _, loc := range c.pending {
		loc.PackID = packID
	}
	c.packBuf = nil
	c.pending = nil
	return packID, nil
}

// ReadChunk fetches and decodes a chunk. If loc is nil, blockID is read as
// a standalone block. If loc is non-nil, blockID is the pack's block ID
// and loc.Offset/Length slice the decoded pack contents; the most
// recently decoded pack is cached so sequential reads from the same pack
// avoid repeated decode cost. If loc.PackID is still the zero UUID (the
// containing pack has not been flushed yet, e.g. a read-after-write within
// the same uncommitted session), the chunk is sliced directly out of the
// in-progress pack buffer instead of the store.
func (c *ChunkStore) ReadChunk(ctx context.Context, blockID uuid.UUID, loc *PackLocation) ([]byte, error) {
	if loc == nil {
		encoded, ok, err := c.ds.ReadBlock(ctx, store.KindData, blockID)
		if err != nil {
			return nil, fmt.Errorf("chunkstore: read block: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("chunkstore: block %s missing", blockID)
		}
		return c.enc.Decode(encoded)
	}

	if loc.PackID == uuid.Nil {
		end := loc.Offset + loc.Length
		if end > len(c.packBuf) {
			return nil, fmt.Errorf("chunkstore: pending pack location out of range")
		}
		out := make([]byte, loc.Length)
		copy(out, c.packBuf[loc.Offset:end])
		return out, nil
	}

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.lastPackID != blockID || c.lastPackBuf == nil {
		encoded, ok, err := c.ds.ReadBlock(ctx, store.KindData, blockID)
		if err != nil {
			return nil, fmt.Errorf("chunkstore: read pack block: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("chunkstore: pack block %s missing", blockID)
		}
		decoded, err := c.enc.Decode(encoded)
		if err != nil {
			return nil, err
		}
		c.lastPackID = blockID
		c.lastPackBuf = decoded
	}

	end := loc.Offset + loc.Length
	if end > len(c.lastPackBuf) {
		return nil, fmt.Errorf("chunkstore: pack location out of range in block %s", blockID)
	}
	out := make([]byte, loc.Length)
	copy(out, c.lastPackBuf[loc.Offset:end])
	return out, nil
}

// InvalidateCache drops the cached decoded pack. Callers should invalidate
// after removing or rewriting the currently cached pack's block.
func (c *ChunkStore) InvalidateCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.lastPackID = uuid.Nil
	c.lastPackBuf = nil
}
