package repo

import (
	"github.com/google/uuid"

	"objrepo/internal/chunkstore"
	"objrepo/internal/object"
)

// cloneChunkInfo deep-copies info so a backup header cannot be mutated by
// later changes to live state through shared pointers.
func cloneChunkInfo(info *ChunkInfo) *ChunkInfo {
	cp := &ChunkInfo{
		Hash:       info.Hash,
		Size:       info.Size,
		BlockID:    info.BlockID,
		References: make(map[uuid.UUID]struct{}, len(info.References)),
	}
	if info.Loc != nil {
		loc := *info.Loc
		cp.Loc = &loc
	}
	for id := range info.References {
		cp.References[id] = struct{}{}
	}
	return cp
}

func cloneChunkMap(m map[ChunkHash]*ChunkInfo) map[ChunkHash]*ChunkInfo {
	out := make(map[ChunkHash]*ChunkInfo, len(m))
	for k, v := range m {
		out[k] = cloneChunkInfo(v)
	}
	return out
}

func clonePackMap(m map[uuid.UUID]*chunkstore.PackLocation) map[uuid.UUID]*chunkstore.PackLocation {
	out := make(map[uuid.UUID]*chunkstore.PackLocation, len(m))
	for k, v := range m {
		loc := *v
		out[k] = &loc
	}
	return out
}

func cloneManagedMap(m map[uuid.UUID]map[uuid.UUID]object.Handle) map[uuid.UUID]map[uuid.UUID]object.Handle {
	out := make(map[uuid.UUID]map[uuid.UUID]object.Handle, len(m))
	for instanceID, objs := range m {
		cp := make(map[uuid.UUID]object.Handle, len(objs))
		for objectID, h := range objs {
			cp[objectID] = h.Clone()
		}
		out[instanceID] = cp
	}
	return out
}

// cloneHeader takes a deep-copy snapshot of live state as a Header value,
// used as commit's backup (spec.md §4.9 step 1). original_source swaps
// the live fields into a transient struct to serialize without copying;
// that trick does not apply here, since Go maps are already reference
// values and marshalHeader never mutates them, so serializeHeader below
// simply reads live state directly with no transient swap needed.
func (r *ObjectRepo) cloneHeader() Header {
	return Header{
		Chunks:      cloneChunkMap(r.state.chunks),
		Packs:       clonePackMap(r.state.packs),
		Managed:     cloneManagedMap(r.managed),
		HandleTable: r.handleTable.snapshot(),
	}
}

// serializeHeader builds a Header directly from live state for
// marshaling. See cloneHeader's comment on why no transient swap is
// needed here.
func (r *ObjectRepo) serializeHeader() Header {
	return Header{
		Chunks:      r.state.chunks,
		Packs:       r.state.packs,
		Managed:     r.managed,
		HandleTable: r.handleTable.snapshot(),
	}
}

// restoreHeader installs h into live state as an independent copy, so
// that later mutation of live state cannot reach back into h (used both
// by commit's failure path and by rollback/savepoint restore).
func (r *ObjectRepo) restoreHeader(h Header) {
	r.state.chunks = cloneChunkMap(h.Chunks)
	r.state.packs = clonePackMap(h.Packs)
	r.managed = cloneManagedMap(h.Managed)
	r.handleTable = idTableFromSnapshot(h.HandleTable)
}
