package repo

import (
	"context"

	"github.com/google/uuid"
)

// repoChunkAdapter implements object.ChunkSource and object.ChunkSink
// against a RepoState's chunk map and chunk store, scoped to one handle ID
// for the duration of a single cursor's use. Has and Store both register
// handleID in the chunk's reference set as a side effect, per spec.md
// §4.5 ("its reference set gains the handle ID; no I/O" for an existing
// chunk, or a fresh ChunkInfo for a new one) — the object package's cursor
// has no notion of handle identity, so this bookkeeping lives here.
type repoChunkAdapter struct {
	ctx      context.Context
	state    *RepoState
	handleID uuid.UUID
}

func (a repoChunkAdapter) Fetch(hash [32]byte) ([]byte, error) {
	return a.state.fetchChunk(a.ctx, hash)
}

func (a repoChunkAdapter) Has(hash [32]byte) bool {
	info, ok := a.state.chunks[ChunkHash(hash)]
	if ok {
		info.References[a.handleID] = struct{}{}
	}
	return ok
}

func (a repoChunkAdapter) Store(hash [32]byte, plaintext []byte) error {
	if err := a.state.storeChunk(a.ctx, hash, plaintext); err != nil {
		return err
	}
	a.state.chunks[ChunkHash(hash)].References[a.handleID] = struct{}{}
	return nil
}
