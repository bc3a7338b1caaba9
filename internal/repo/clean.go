package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"objrepo/internal/chunkstore"
	"objrepo/internal/repoerr"
	"objrepo/internal/store"
)

// previousHeader reads and deserializes the header the current metadata
// singleton names, independent of live (possibly uncommitted) state.
func (r *ObjectRepo) previousHeader(ctx context.Context) (Header, error) {
	encoded, ok, err := r.state.readBlock(ctx, store.KindHeader, r.state.metadata.HeaderID)
	if err != nil {
		return Header{}, fmt.Errorf("repo: read previous header block: %w", repoerr.ErrIo)
	}
	if !ok {
		return Header{}, fmt.Errorf("repo: previous header block %s missing: %w", r.state.metadata.HeaderID, repoerr.ErrCorrupt)
	}
	plain, err := r.state.decodeData(encoded)
	if err != nil {
		return Header{}, fmt.Errorf("repo: decode previous header: %w", err)
	}
	return unmarshalHeader(plain)
}

// Clean reclaims space no longer referenced by either live working state
// or the previously committed header, per spec.md §4.12. It is safe to
// call before committing: the previously committed header stays
// reachable via Rollback afterward, since the packing branch rewrites
// that same header block ID in place rather than advancing
// metadata.HeaderID ("without advancing the commit pointer").
func (r *ObjectRepo) Clean(ctx context.Context) error {
	previous, err := r.previousHeader(ctx)
	if err != nil {
		return err
	}

	referenced := make(map[uuid.UUID]struct{}, len(r.state.chunks)+len(previous.Chunks))
	for _, info := range r.state.chunks {
		referenced[info.BlockID] = struct{}{}
	}
	for _, info := range previous.Chunks {
		referenced[info.BlockID] = struct{}{}
	}

	if r.state.metadata.Packing.Enabled {
		if err := r.cleanPacked(ctx, referenced, previous); err != nil {
			return err
		}
	} else if err := r.cleanNoPacking(ctx, referenced); err != nil {
		return err
	}

	r.state.logger.Info("clean complete", "referenced_blocks", len(referenced))
	return nil
}

// cleanNoPacking removes every data block not in referenced: block IDs
// are the physical on-disk block IDs directly (spec.md §4.12 step 3).
func (r *ObjectRepo) cleanNoPacking(ctx context.Context, referenced map[uuid.UUID]struct{}) error {
	blocks, err := r.state.ds.ListBlocks(ctx, store.KindData)
	if err != nil {
		return fmt.Errorf("repo: list data blocks: %w", repoerr.ErrIo)
	}
	for _, id := range blocks {
		if _, ok := referenced[id]; ok {
			continue
		}
		if err := r.state.ds.RemoveBlock(ctx, store.KindData, id); err != nil {
			return fmt.Errorf("repo: remove block %s: %w", id, repoerr.ErrIo)
		}
	}
	return nil
}

// cleanPacked implements spec.md §4.12 step 4: dirty-pack detection and
// repack. merged is live.packs ∪ previous.packs, keyed by each chunk's
// logical block ID (distinct from any pack's own physical block ID —
// see chunkstore.WriteChunk's doc comment).
func (r *ObjectRepo) cleanPacked(ctx context.Context, referenced map[uuid.UUID]struct{}, previous Header) error {
	merged := make(map[uuid.UUID]*chunkstore.PackLocation, len(r.state.packs)+len(previous.Packs))
	for blockID, loc := range previous.Packs {
		merged[blockID] = loc
	}
	for blockID, loc := range r.state.packs {
		merged[blockID] = loc
	}

	// packContents[physicalPackID] is the set of logical block IDs the
	// pack map says live inside that physical pack.
	packContents := make(map[uuid.UUID]map[uuid.UUID]struct{})
	for blockID, loc := range merged {
		if loc == nil || loc.PackID == uuid.Nil {
			continue
		}
		if packContents[loc.PackID] == nil {
			packContents[loc.PackID] = make(map[uuid.UUID]struct{})
		}
		packContents[loc.PackID][blockID] = struct{}{}
	}

	packBlocks, err := r.state.ds.ListBlocks(ctx, store.KindData)
	if err != nil {
		return fmt.Errorf("repo: list pack blocks: %w", repoerr.ErrIo)
	}

	dirty := make(map[uuid.UUID]struct{})
	blocksToRepack := make(map[uuid.UUID]struct{})
	for _, packID := range packBlocks {
		contents, known := packContents[packID]
		if !known {
			// Not described by either pack map at all: unconditionally dirty.
			dirty[packID] = struct{}{}
			continue
		}
		isDirty := false
		for blockID := range contents {
			if _, ok := referenced[blockID]; !ok {
				isDirty = true
			}
		}
		if !isDirty {
			continue
		}
		dirty[packID] = struct{}{}
		for blockID := range contents {
			if _, ok := referenced[blockID]; ok {
				blocksToRepack[blockID] = struct{}{}
			}
		}
	}

	if len(dirty) == 0 {
		return nil
	}

	// Repack every still-referenced block out of a dirty pack, using the
	// chunk store directly (bypassing RepoState.storeChunk, which is keyed
	// by content hash and would mint a new, unrelated ChunkInfo).
	relocated := make(map[uuid.UUID]*chunkstore.PackLocation, len(blocksToRepack))
	for blockID := range blocksToRepack {
		loc := merged[blockID]
		plaintext, err := r.state.cstore.ReadChunk(ctx, loc.PackID, loc)
		if err != nil {
			return fmt.Errorf("repo: read block %s for repack: %w", blockID, err)
		}
		_, newLoc, err := r.state.cstore.WriteChunk(ctx, plaintext)
		if err != nil {
			return fmt.Errorf("repo: repack block %s: %w", blockID, err)
		}
		relocated[blockID] = newLoc
	}
	if _, err := r.state.cstore.FlushPack(ctx); err != nil {
		return fmt.Errorf("repo: flush repacked pack: %w", err)
	}
	r.state.cstore.InvalidateCache()

	for packID := range dirty {
		if err := r.state.ds.RemoveBlock(ctx, store.KindData, packID); err != nil {
			return fmt.Errorf("repo: remove dirty pack %s: %w", packID, err)
		}
	}

	newPacks := make(map[uuid.UUID]*chunkstore.PackLocation, len(referenced))
	for blockID := range referenced {
		if loc, ok := relocated[blockID]; ok {
			newPacks[blockID] = loc
			continue
		}
		if loc, ok := merged[blockID]; ok {
			newPacks[blockID] = loc
		}
	}

	r.state.packs = newPacks
	for _, info := range r.state.chunks {
		if loc, ok := newPacks[info.BlockID]; ok {
			info.Loc = loc
		}
	}

	// Step g: rewrite the previously committed header with only its pack
	// map swapped, under the same block ID metadata already names, so
	// rollback still resolves to a consistent (chunks, managed,
	// handle_table) view with an up-to-date physical pack layout.
	previous.Packs = newPacks
	plain, err := marshalHeader(previous)
	if err != nil {
		return err
	}
	encoded, err := r.state.encodeData(plain)
	if err != nil {
		return fmt.Errorf("repo: encode repacked header: %w", err)
	}
	if err := r.state.writeBlock(ctx, store.KindHeader, r.state.metadata.HeaderID, encoded); err != nil {
		return fmt.Errorf("repo: write repacked header: %w", repoerr.ErrIo)
	}
	return nil
}
