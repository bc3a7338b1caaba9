package chunkstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"

	"objrepo/internal/encode"
	"objrepo/internal/store/memstore"
)

func newPipeline(t *testing.T) *encode.Pipeline {
	t.Helper()
	p, err := encode.New(encode.CompressionNone, encode.EncryptionNone, nil)
	if err != nil {
		t.Fatalf("encode.New: %v", err)
	}
	return p
}

func TestChunkStoreNoPacking(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	cs := New(ds, newPipeline(t), Packing{Enabled: false})

	blockID, loc, err := cs.WriteChunk(ctx, []byte("hello chunk"))
	if err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if loc != nil {
		t.Fatalf("expected nil PackLocation without packing")
	}

	got, err := cs.ReadChunk(ctx, blockID, nil)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if !bytes.Equal(got, []byte("hello chunk")) {
		t.Fatalf("got %q, want %q", got, "hello chunk")
	}
}

func TestChunkStoreFixedPacking(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	cs := New(ds, newPipeline(t), Packing{Enabled: true, PackSize: 1 << 20})

	payloads := [][]byte{
		[]byte("chunk one"),
		[]byte("chunk two, a bit longer"),
		[]byte("chunk three"),
	}
	var locs []*PackLocation
	for _, p := range payloads {
		_, loc, err := cs.WriteChunk(ctx, p)
		if err != nil {
			t.Fatalf("WriteChunk: %v", err)
		}
		locs = append(locs, loc)
	}

	// Pack is below PackSize, so nothing has flushed yet.
	for _, loc := range locs {
		if loc.PackID.String() != "00000000-0000-0000-0000-000000000000" {
			t.Fatalf("expected unresolved PackID before flush")
		}
	}

	packID, err := cs.FlushPack(ctx)
	if err != nil {
		t.Fatalf("FlushPack: %v", err)
	}

	for i, loc := range locs {
		if loc.PackID != packID {
			t.Fatalf("loc %d PackID not backfilled", i)
		}
		got, err := cs.ReadChunk(ctx, packID, loc)
		if err != nil {
			t.Fatalf("ReadChunk %d: %v", i, err)
		}
		if !bytes.Equal(got, payloads[i]) {
			t.Fatalf("chunk %d: got %q, want %q", i, got, payloads[i])
		}
	}
}

func TestChunkStorePackAutoFlushesAtSize(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	cs := New(ds, newPipeline(t), Packing{Enabled: true, PackSize: 16})

	_, loc1, err := cs.WriteChunk(ctx, []byte("0123456789"))
	if err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	_, loc2, err := cs.WriteChunk(ctx, []byte("abcdef"))
	if err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	// The second write pushed the buffer to 16 bytes == PackSize,
	// triggering an automatic flush; both locations should already be
	// resolved to the same pack without an explicit FlushPack call.
	if loc1.PackID != loc2.PackID {
		t.Fatalf("expected both chunks in the same auto-flushed pack")
	}
	if loc1.PackID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatalf("expected pack to have auto-flushed")
	}

	got1, err := cs.ReadChunk(ctx, loc1.PackID, loc1)
	if err != nil {
		t.Fatalf("ReadChunk 1: %v", err)
	}
	if string(got1) != "0123456789" {
		t.Fatalf("got %q", got1)
	}
	got2, err := cs.ReadChunk(ctx, loc2.PackID, loc2)
	if err != nil {
		t.Fatalf("ReadChunk 2: %v", err)
	}
	if string(got2) != "abcdef" {
		t.Fatalf("got %q", got2)
	}
}

func TestChunkStoreReadsUnflushedPendingChunk(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	cs := New(ds, newPipeline(t), Packing{Enabled: true, PackSize: 1 << 20})

	_, loc, err := cs.WriteChunk(ctx, []byte("not yet flushed"))
	if err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if loc.PackID != uuid.Nil {
		t.Fatalf("expected unresolved PackID before flush")
	}

	got, err := cs.ReadChunk(ctx, loc.PackID, loc)
	if err != nil {
		t.Fatalf("ReadChunk before flush: %v", err)
	}
	if string(got) != "not yet flushed" {
		t.Fatalf("got %q, want %q", got, "not yet flushed")
	}
}
