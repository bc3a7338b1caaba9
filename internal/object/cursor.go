// Package object: streaming read/write cursors over a Handle's chunk
// list (spec.md §4.5). Cursors depend only on two small interfaces
// (ChunkSource, ChunkSink) rather than on internal/repo directly, so that
// internal/repo can implement them against its chunk map and chunk store
// without object importing repo (which would create an import cycle:
// repo already needs to import object for the Handle type).
package object

import (
	"crypto/sha256"
	"errors"
	"io"

	"objrepo/internal/chunker"
)

// ChunkSource fetches the decoded plaintext of a previously written chunk
// by its content hash. Implemented by internal/repo against the chunk map
// and chunk store.
type ChunkSource interface {
	Fetch(hash [32]byte) ([]byte, error)
}

// ChunkSink records a newly observed chunk's plaintext. Store is only
// ever called for hashes the sink has not already told the cursor it has
// (via Has), giving the repository the dedup point described in spec §4.5.
type ChunkSink interface {
	Has(hash [32]byte) bool
	Store(hash [32]byte, plaintext []byte) error
}

// ReadCursor exposes Read/Seek over a Handle's logical byte range,
// decoding chunks on demand and caching only the single
// currently-decoded chunk (matching the chunk store's own
// last-decoded-pack cache, spec §4.4).
type ReadCursor struct {
	handle  Handle
	source  ChunkSource
	offsets []int64 // offsets[i] is the logical start offset of handle.Chunks[i]
	pos     int64

	curIndex int
	curBuf   []byte
}

// NewReadCursor creates a cursor over h. h is not retained by reference
// beyond construction; later mutation of the handle the caller obtained
// it from does not affect an in-flight cursor.
func NewReadCursor(h Handle, source ChunkSource) *ReadCursor {
	offsets := make([]int64, len(h.Chunks)+1)
	var total int64
	for i, c := range h.Chunks {
		offsets[i] = total
		total += int64(c.Size)
	}
	offsets[len(h.Chunks)] = total
	return &ReadCursor{handle: h.Clone(), source: source, offsets: offsets, curIndex: -1}
}

// Seek implements io.Seeker. Seeking past the end of the object is
// permitted; a subsequent Read returns io.EOF rather than an error.
func (r *ReadCursor) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = r.pos + offset
	case io.SeekEnd:
		newPos = int64(r.handle.Size) + offset
	default:
		return 0, errors.New("object: invalid whence")
	}
	if newPos < 0 {
		return 0, errors.New("object: negative seek position")
	}
	r.pos = newPos
	return r.pos, nil
}

// indexForOffset returns the chunk index containing the logical offset,
// or len(handle.Chunks) if offset is at or past the end.
func (r *ReadCursor) indexForOffset(offset int64) int {
	// Chunk counts per object are modest (content-defined chunking keeps
	// chunks in the tens-of-KB to low-MB range), so a linear scan from the
	// last known index is fine; sequential reads make it O(1) amortized.
	i := r.curIndex
	if i < 0 {
		i = 0
	}
	for i > 0 && r.offsets[i] > offset {
		i--
	}
	for i < len(r.handle.Chunks) && r.offsets[i+1] <= offset {
		i++
	}
	return i
}

// Read implements io.Reader.
func (r *ReadCursor) Read(p []byte) (int, error) {
	if r.pos >= int64(r.handle.Size) {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	idx := r.indexForOffset(r.pos)
	if idx != r.curIndex {
		buf, err := r.source.Fetch(r.handle.Chunks[idx].Hash)
		if err != nil {
			return 0, err
		}
		r.curIndex = idx
		r.curBuf = buf
	}

	localOff := int(r.pos - r.offsets[idx])
	n := copy(p, r.curBuf[localOff:])
	r.pos += int64(n)
	return n, nil
}

// FlushResult is the outcome of a WriteCursor.Flush: the Handle's new
// chunk list and logical size. The caller (internal/repo) is responsible
// for minting a fresh HandleID and updating chunk reference sets, since
// that bookkeeping belongs to the repository's chunk map, not to the
// object package (spec §4.6).
type FlushResult struct {
	Chunks []ChunkRef
	Size   uint64
}

// WriteCursor exposes Write/Flush over a Handle, splicing new bytes into
// the existing chunk list and re-chunking from the splice point per spec
// §4.5/§9. A cursor is single-use: construct one, perform one write
// session (any number of sequential Write calls at the position left off
// by the previous call, or after a single leading Seek), then Flush.
type WriteCursor struct {
	handle Handle
	source ChunkSource
	sink   ChunkSink

	started bool
	pos     int64

	preservedPrefix []ChunkRef // chunks entirely before the splice point, kept unchanged
	replayPrefix    []byte     // original bytes of the boundary chunk before the splice point
	oldTail         []byte     // original bytes from the splice point to the old end of the object
	overlay         []byte     // bytes the caller has written this session, in order

	chunker *chunker.Chunker
	out     []ChunkRef
}

// NewWriteCursor creates a write cursor over h, positioned at offset 0.
// Call Seek before the first Write to splice elsewhere.
func NewWriteCursor(h Handle, cfg chunker.Config, source ChunkSource, sink ChunkSink) *WriteCursor {
	return &WriteCursor{handle: h.Clone(), source: source, sink: sink, chunker: chunker.New(cfg)}
}

// Seek repositions the cursor before any Write call in this session. It
// is an error to call Seek after Write.
func (w *WriteCursor) Seek(offset int64, whence int) (int64, error) {
	if w.started {
		return 0, errors.New("object: Seek after Write is not supported in a single write session")
	}
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = w.pos + offset
	case io.SeekEnd:
		newPos = int64(w.handle.Size) + offset
	default:
		return 0, errors.New("object: invalid whence")
	}
	if newPos < 0 || newPos > int64(w.handle.Size) {
		return 0, errors.New("object: seek position out of range for write cursor")
	}
	w.pos = newPos
	return w.pos, nil
}

// splice reads and buffers the chunk containing the splice point (if any)
// and the remainder of the object's old content, per spec §4.5.
func (w *WriteCursor) splice() error {
	offsets := make([]int64, len(w.handle.Chunks)+1)
	var total int64
	for i, c := range w.handle.Chunks {
		offsets[i] = total
		total += int64(c.Size)
	}
	offsets[len(w.handle.Chunks)] = total

	idx := 0
	for idx < len(w.handle.Chunks) && offsets[idx+1] <= w.pos {
		idx++
	}
	w.preservedPrefix = append([]ChunkRef(nil), w.handle.Chunks[:idx]...)

	if idx < len(w.handle.Chunks) {
		boundaryChunk, err := w.source.Fetch(w.handle.Chunks[idx].Hash)
		if err != nil {
			return err
		}
		localOff := int(w.pos - offsets[idx])
		w.replayPrefix = append([]byte(nil), boundaryChunk[:localOff]...)

		tail := append([]byte(nil), boundaryChunk[localOff:]...)
		for j := idx + 1; j < len(w.handle.Chunks); j++ {
			buf, err := w.source.Fetch(w.handle.Chunks[j].Hash)
			if err != nil {
				return err
			}
			tail = append(tail, buf...)
		}
		w.oldTail = tail
	}

	return nil
}

// Write appends p at the cursor's current logical position, advancing it.
// Bytes are buffered; the chunker only sees them at Flush, once the full
// overlay and preserved old tail are known.
func (w *WriteCursor) Write(p []byte) (int, error) {
	if !w.started {
		if err := w.splice(); err != nil {
			return 0, err
		}
		w.started = true
	}
	w.overlay = append(w.overlay, p...)
	w.pos += int64(len(p))
	return len(p), nil
}

func (w *WriteCursor) storeChunk(chunk []byte) (ChunkRef, error) {
	hash := sha256.Sum256(chunk)
	if !w.sink.Has(hash) {
		if err := w.sink.Store(hash, chunk); err != nil {
			return ChunkRef{}, err
		}
	}
	return ChunkRef{Hash: hash, Size: uint32(len(chunk))}, nil
}

// Flush forces the chunker to emit any tail chunk, finalizing the new
// chunk list and size. It does not mutate the Handle the cursor was
// constructed from or mint a new HandleID; the caller applies FlushResult
// to the repository's live state (spec §4.5/§4.6).
func (w *WriteCursor) Flush() (FlushResult, error) {
	if !w.started {
		// Write was never called: nothing changed.
		return FlushResult{Chunks: append([]ChunkRef(nil), w.handle.Chunks...), Size: w.handle.Size}, nil
	}

	// Replacement bytes: whatever the caller wrote, followed by any
	// remaining old tail not covered by the overlay.
	var replaced []byte
	if len(w.overlay) >= len(w.oldTail) {
		replaced = w.overlay
	} else {
		replaced = append(append([]byte(nil), w.overlay...), w.oldTail[len(w.overlay):]...)
	}

	feed := append(w.replayPrefix, replaced...)
	for _, chunk := range w.chunker.Write(feed) {
		ref, err := w.storeChunk(chunk)
		if err != nil {
			return FlushResult{}, err
		}
		w.out = append(w.out, ref)
	}
	if tail := w.chunker.Finish(); tail != nil {
		ref, err := w.storeChunk(tail)
		if err != nil {
			return FlushResult{}, err
		}
		w.out = append(w.out, ref)
	}

	chunks := append(append([]ChunkRef(nil), w.preservedPrefix...), w.out...)
	var size uint64
	for _, c := range chunks {
		size += uint64(c.Size)
	}
	return FlushResult{Chunks: chunks, Size: size}, nil
}
