package superblock

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"objrepo/internal/encode"
	"objrepo/internal/store"
	"objrepo/internal/store/memstore"
)

func testSuperBlock() SuperBlock {
	return SuperBlock{
		ID:          uuid.New(),
		BlockSize:   4096,
		ChunkerBits: 12,
		Compression: encode.CompressionZstd,
		Encryption:  encode.EncryptionNone,
		Header:      Extent{Index: 0, Blocks: 3},
		HeaderSize:  9000,
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	sb := testSuperBlock()

	if err := Write(ctx, ds, sb); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(ctx, ds)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != sb {
		t.Fatalf("got %+v, want %+v", got, sb)
	}
}

func TestReadRepairsCorruptBackup(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	sb := testSuperBlock()
	if err := Write(ctx, ds, sb); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var garbage [store.SuperblockSlotSize]byte
	for i := range garbage {
		garbage[i] = 0xFF
	}
	if err := ds.WriteSuperblock(ctx, store.SuperblockBackup, garbage); err != nil {
		t.Fatalf("corrupt backup: %v", err)
	}

	got, err := Read(ctx, ds)
	if err != nil {
		t.Fatalf("Read after corrupting backup: %v", err)
	}
	if got != sb {
		t.Fatalf("got %+v, want %+v", got, sb)
	}

	repaired, ok, err := ds.ReadSuperblock(ctx, store.SuperblockBackup)
	if err != nil || !ok {
		t.Fatalf("expected backup slot readable after repair, ok=%v err=%v", ok, err)
	}
	again, err := decodeSlot(repaired)
	if err != nil {
		t.Fatalf("decode repaired backup: %v", err)
	}
	if again != sb {
		t.Fatalf("repaired backup = %+v, want %+v", again, sb)
	}
}

func TestReadRepairsCorruptPrimary(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	sb := testSuperBlock()
	if err := Write(ctx, ds, sb); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var garbage [store.SuperblockSlotSize]byte
	if err := ds.WriteSuperblock(ctx, store.SuperblockPrimary, garbage); err != nil {
		t.Fatalf("corrupt primary: %v", err)
	}

	got, err := Read(ctx, ds)
	if err != nil {
		t.Fatalf("Read after corrupting primary: %v", err)
	}
	if got != sb {
		t.Fatalf("got %+v, want %+v", got, sb)
	}
}

func TestReadFailsWhenBothCorrupt(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	sb := testSuperBlock()
	if err := Write(ctx, ds, sb); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var garbage [store.SuperblockSlotSize]byte
	for i := range garbage {
		garbage[i] = 0xAA
	}
	if err := ds.WriteSuperblock(ctx, store.SuperblockPrimary, garbage); err != nil {
		t.Fatalf("corrupt primary: %v", err)
	}
	if err := ds.WriteSuperblock(ctx, store.SuperblockBackup, garbage); err != nil {
		t.Fatalf("corrupt backup: %v", err)
	}

	if _, err := Read(ctx, ds); err == nil {
		t.Fatalf("expected error when both slots are corrupt")
	}
}
