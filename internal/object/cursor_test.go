package object

import (
	"bytes"
	"crypto/sha256"
	"io"
	"testing"

	"objrepo/internal/chunker"
)

// memChunks is a trivial in-memory ChunkSource/ChunkSink used by cursor
// tests; internal/repo provides the real implementation backed by the
// chunk map and chunk store.
type memChunks struct {
	store map[[32]byte][]byte
}

func newMemChunks() *memChunks {
	return &memChunks{store: make(map[[32]byte][]byte)}
}

func (m *memChunks) Fetch(hash [32]byte) ([]byte, error) {
	data, ok := m.store[hash]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}

func (m *memChunks) Has(hash [32]byte) bool {
	_, ok := m.store[hash]
	return ok
}

func (m *memChunks) Store(hash [32]byte, plaintext []byte) error {
	cp := append([]byte(nil), plaintext...)
	m.store[hash] = cp
	return nil
}

func testChunkerConfig() chunker.Config {
	return chunker.Config{Bits: 8}
}

func writeFullObject(t *testing.T, chunks *memChunks, data []byte) Handle {
	t.Helper()
	wc := NewWriteCursor(Handle{}, testChunkerConfig(), chunks, chunks)
	if _, err := wc.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	result, err := wc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return Handle{Chunks: result.Chunks, Size: result.Size}
}

func readAll(t *testing.T, chunks *memChunks, h Handle) []byte {
	t.Helper()
	rc := NewReadCursor(h, chunks)
	got, err := io.ReadAll(readerFunc(rc.Read))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return got
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func deterministicBytes(n int, seed byte) []byte {
	out := make([]byte, n)
	x := seed
	for i := range out {
		x = x*31 + 7
		out[i] = x
	}
	return out
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	chunks := newMemChunks()
	data := deterministicBytes(200000, 0xA5)

	h := writeFullObject(t, chunks, data)
	if h.Size != uint64(len(data)) {
		t.Fatalf("size = %d, want %d", h.Size, len(data))
	}

	got := readAll(t, chunks, h)
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestDeduplicationAcrossObjects(t *testing.T) {
	chunks := newMemChunks()
	data := deterministicBytes(100000, 0x42)

	h1 := writeFullObject(t, chunks, data)
	before := len(chunks.store)
	h2 := writeFullObject(t, chunks, data)
	after := len(chunks.store)

	if before != after {
		t.Fatalf("expected no new chunks stored for identical content: before=%d after=%d", before, after)
	}
	if len(h1.Chunks) != len(h2.Chunks) {
		t.Fatalf("expected identical chunk lists, got %d vs %d chunks", len(h1.Chunks), len(h2.Chunks))
	}
	for i := range h1.Chunks {
		if h1.Chunks[i].Hash != h2.Chunks[i].Hash {
			t.Fatalf("chunk %d hash mismatch between identical writes", i)
		}
	}
}

func TestSpliceOverwriteMiddlePreservesUnaffectedBytes(t *testing.T) {
	chunks := newMemChunks()
	original := deterministicBytes(50000, 0x7)
	h := writeFullObject(t, chunks, original)

	overwrite := deterministicBytes(500, 0x99)
	spliceAt := int64(20000)

	wc := NewWriteCursor(h, testChunkerConfig(), chunks, chunks)
	if _, err := wc.Seek(spliceAt, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := wc.Write(overwrite); err != nil {
		t.Fatalf("Write: %v", err)
	}
	result, err := wc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	h2 := Handle{Chunks: result.Chunks, Size: result.Size}

	if h2.Size != h.Size {
		t.Fatalf("size changed on same-length overwrite: got %d, want %d", h2.Size, h.Size)
	}

	want := append([]byte(nil), original...)
	copy(want[spliceAt:], overwrite)

	got := readAll(t, chunks, h2)
	if !bytes.Equal(got, want) {
		t.Fatalf("spliced content mismatch")
	}
}

func TestAppendGrowsObject(t *testing.T) {
	chunks := newMemChunks()
	original := deterministicBytes(10000, 0x11)
	h := writeFullObject(t, chunks, original)

	extra := deterministicBytes(5000, 0x22)
	wc := NewWriteCursor(h, testChunkerConfig(), chunks, chunks)
	if _, err := wc.Seek(int64(h.Size), io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := wc.Write(extra); err != nil {
		t.Fatalf("Write: %v", err)
	}
	result, err := wc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	h2 := Handle{Chunks: result.Chunks, Size: result.Size}

	want := append(append([]byte(nil), original...), extra...)
	if h2.Size != uint64(len(want)) {
		t.Fatalf("size = %d, want %d", h2.Size, len(want))
	}
	got := readAll(t, chunks, h2)
	if !bytes.Equal(got, want) {
		t.Fatalf("appended content mismatch")
	}
}

func TestReadSeekPastEndReturnsEOF(t *testing.T) {
	chunks := newMemChunks()
	h := writeFullObject(t, chunks, deterministicBytes(1000, 0x3))

	rc := NewReadCursor(h, chunks)
	if _, err := rc.Seek(int64(h.Size)+100, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buf := make([]byte, 10)
	n, err := rc.Read(buf)
	if n != 0 || err != io.EOF {
		t.Fatalf("got n=%d err=%v, want n=0 err=io.EOF", n, err)
	}
}

func TestChunkHashesAreSHA256(t *testing.T) {
	chunks := newMemChunks()
	data := deterministicBytes(2000, 0x55)
	h := writeFullObject(t, chunks, data)

	var reassembled []byte
	for _, c := range h.Chunks {
		buf, ok := chunks.store[c.Hash]
		if !ok {
			t.Fatalf("chunk %x missing from store", c.Hash)
		}
		if sha256.Sum256(buf) != c.Hash {
			t.Fatalf("chunk content does not match its recorded hash")
		}
		reassembled = append(reassembled, buf...)
	}
	if !bytes.Equal(reassembled, data) {
		t.Fatalf("reassembled chunks do not match original data")
	}
}
