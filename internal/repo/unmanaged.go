package repo

import (
	"context"
	"fmt"

	"objrepo/internal/object"
	"objrepo/internal/repoerr"
)

// ContainsUnmanaged reports whether h's handle ID is currently live in
// this repository instance's handle table. A stale clone of a handle that
// has since been mutated (and therefore recycled) reports false, which is
// the copy-on-write invariant spec.md §4.6 describes.
func (r *ObjectRepo) ContainsUnmanaged(h object.Handle) bool {
	return r.handleTable.contains(h.HandleID)
}

// AddUnmanaged mints a fresh handle ID and returns an empty handle owned
// by this repository instance. Content is added afterward through
// UnmanagedObjectMut.
func (r *ObjectRepo) AddUnmanaged() object.Handle {
	id := r.handleTable.alloc()
	return object.Handle{
		RepoID:     r.state.metadata.RepoID,
		InstanceID: r.instanceID,
		HandleID:   id,
	}
}

// RemoveUnmanaged drops h's reference to each of its chunks, deleting any
// ChunkInfo whose reference set becomes empty, and recycles h's handle ID.
// The underlying data blocks are not removed here; that is clean's job
// (spec.md §4.12), since a chunk no longer referenced by live state may
// still be required to roll back to the previously committed header.
func (r *ObjectRepo) RemoveUnmanaged(h object.Handle) error {
	if !r.ContainsUnmanaged(h) {
		return fmt.Errorf("repo: remove unmanaged: %w", repoerr.ErrNotFound)
	}
	for _, c := range h.Chunks {
		info, ok := r.state.chunks[ChunkHash(c.Hash)]
		if !ok {
			continue
		}
		delete(info.References, h.HandleID)
		if len(info.References) == 0 {
			delete(r.state.chunks, ChunkHash(c.Hash))
		}
	}
	r.handleTable.recycle(h.HandleID)
	return nil
}

// UnmanagedObject returns a read cursor over h's content.
func (r *ObjectRepo) UnmanagedObject(ctx context.Context, h object.Handle) (*object.ReadCursor, error) {
	if !r.ContainsUnmanaged(h) {
		return nil, fmt.Errorf("repo: unmanaged object: %w", repoerr.ErrNotFound)
	}
	return object.NewReadCursor(h, repoChunkAdapter{ctx: ctx, state: r.state}), nil
}

// MutCursor wraps an object.WriteCursor with the copy-on-write bookkeeping
// spec.md §4.5/§4.6 require: on Flush, every chunk in the old chunk list
// that did not survive into the new one drops its reference to the old
// handle, and every chunk in the final chunk list has its reference
// transferred from the old handle ID to a freshly minted one, which is
// then the only valid identity for the mutated object. The old ID is
// recycled.
type MutCursor struct {
	repo *ObjectRepo
	old  object.Handle
	wc   *object.WriteCursor
}

// Seek repositions the cursor before any Write in this session.
func (m *MutCursor) Seek(offset int64, whence int) (int64, error) {
	return m.wc.Seek(offset, whence)
}

// Write buffers bytes at the cursor's current position.
func (m *MutCursor) Write(p []byte) (int, error) {
	return m.wc.Write(p)
}

// Flush finalizes the write session and returns the mutated object's new
// handle. The handle passed to UnmanagedObjectMut is no longer valid
// after this call succeeds.
func (m *MutCursor) Flush() (object.Handle, error) {
	result, err := m.wc.Flush()
	if err != nil {
		return object.Handle{}, err
	}

	newID := m.repo.handleTable.alloc()

	inResult := make(map[ChunkHash]struct{}, len(result.Chunks))
	for _, c := range result.Chunks {
		inResult[ChunkHash(c.Hash)] = struct{}{}
	}

	// Every chunk the old handle referenced but that did not survive into
	// the new chunk list (the content it held was overwritten) loses its
	// reference to the old handle here; it is never visited by the loop
	// below since it is absent from result.Chunks.
	for _, c := range m.old.Chunks {
		hash := ChunkHash(c.Hash)
		if _, ok := inResult[hash]; ok {
			continue
		}
		info, ok := m.repo.state.chunks[hash]
		if !ok {
			continue
		}
		delete(info.References, m.old.HandleID)
		if len(info.References) == 0 {
			delete(m.repo.state.chunks, hash)
		}
	}

	// Every chunk in the final chunk list — whether preserved unchanged,
	// reused, or freshly stored during this write session — currently
	// carries the old handle ID in its reference set (registered as a side
	// effect of the write cursor's Has/Store calls, or carried over from
	// before this write). Replace it with the newly minted ID.
	for _, c := range result.Chunks {
		info, ok := m.repo.state.chunks[ChunkHash(c.Hash)]
		if !ok {
			continue
		}
		delete(info.References, m.old.HandleID)
		info.References[newID] = struct{}{}
	}
	m.repo.handleTable.recycle(m.old.HandleID)

	return object.Handle{
		RepoID:     m.old.RepoID,
		InstanceID: m.old.InstanceID,
		HandleID:   newID,
		Size:       result.Size,
		Chunks:     result.Chunks,
	}, nil
}

// UnmanagedObjectMut returns a write cursor over h. h's handle ID remains
// the reference-set key for every chunk processed during the write
// session; Flush swaps it for a freshly minted ID across the final chunk
// list (spec.md §4.5's copy-on-write mint-on-flush rule).
func (r *ObjectRepo) UnmanagedObjectMut(ctx context.Context, h object.Handle) (*MutCursor, error) {
	if !r.ContainsUnmanaged(h) {
		return nil, fmt.Errorf("repo: unmanaged object mut: %w", repoerr.ErrNotFound)
	}
	adapter := repoChunkAdapter{ctx: ctx, state: r.state, handleID: h.HandleID}
	return &MutCursor{repo: r, old: h, wc: object.NewWriteCursor(h, r.state.chunkCfg, adapter, adapter)}, nil
}

// CopyUnmanaged mints a fresh handle ID sharing h's existing chunk list
// (incrementing each chunk's reference count) without touching any chunk
// bytes, giving the caller an independent handle to identical content.
func (r *ObjectRepo) CopyUnmanaged(h object.Handle) (object.Handle, error) {
	if !r.ContainsUnmanaged(h) {
		return object.Handle{}, fmt.Errorf("repo: copy unmanaged: %w", repoerr.ErrNotFound)
	}
	newID := r.handleTable.alloc()
	for _, c := range h.Chunks {
		if info, ok := r.state.chunks[ChunkHash(c.Hash)]; ok {
			info.References[newID] = struct{}{}
		}
	}
	cp := h.Clone()
	cp.HandleID = newID
	return cp, nil
}
