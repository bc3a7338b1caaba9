// Package object defines the caller-visible ObjectHandle: a copy-on-write
// identifier for an unmanaged object's content. ObjectHandle is plain data
// and freely cloneable; the copy-on-write discipline that prevents two
// clones from diverging while sharing an ID lives in the repo package
// (see internal/repo, grounded on original_source's unmanaged_object_mut).
package object

import "github.com/google/uuid"

// ChunkRef is one entry in a handle's ordered chunk list: the content
// hash used to look up the chunk in the repository's chunk index, plus
// the chunk's plaintext length (needed to resolve byte offsets without
// decoding every chunk).
type ChunkRef struct {
	Hash [32]byte
	Size uint32
}

// Handle is the caller-visible identifier of an unmanaged object. It
// carries the object's chunk list and logical size, matching spec.md's
// ObjectHandle entity exactly: repo UUID, instance UUID, handle ID,
// logical size, ordered chunk hash list.
type Handle struct {
	RepoID     uuid.UUID
	InstanceID uuid.UUID
	HandleID   uuid.UUID
	Size       uint64
	Chunks     []ChunkRef
}

// Clone returns an independent copy of h. Cloning does not mint a new
// HandleID: per spec.md §4.6, only a mutating accessor on the owning
// repository does that, which is precisely what makes a clone's
// HandleID go stale once the original is mutated.
func (h Handle) Clone() Handle {
	chunks := make([]ChunkRef, len(h.Chunks))
	copy(chunks, h.Chunks)
	h.Chunks = chunks
	return h
}
