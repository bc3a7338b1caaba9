// Package storetest provides a shared conformance test suite for
// store.DataStore implementations. The memstore, dirstore and sqlstore
// tests wire this suite to verify each satisfies the full DataStore
// contract; s3store, azstore and gcsstore have no tests that run it.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"objrepo/internal/store"
)

// TestStore runs the full conformance suite against a DataStore
// implementation. newStore must return a fresh, empty store for each
// sub-test.
func TestStore(t *testing.T, newStore func(t *testing.T) store.DataStore) {
	ctx := context.Background()

	t.Run("ReadMissingBlock", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.ReadBlock(ctx, store.KindData, uuid.New())
		if err != nil {
			t.Fatalf("ReadBlock: %v", err)
		}
		if ok {
			t.Fatal("expected ok=false for missing block")
		}
	})

	t.Run("WriteReadRoundTrip", func(t *testing.T) {
		s := newStore(t)
		for _, kind := range []store.Kind{store.KindData, store.KindHeader, store.KindLock} {
			id := uuid.New()
			want := []byte("payload for " + id.String())
			if err := s.WriteBlock(ctx, kind, id, want); err != nil {
				t.Fatalf("WriteBlock(%v): %v", kind, err)
			}
			got, ok, err := s.ReadBlock(ctx, kind, id)
			if err != nil {
				t.Fatalf("ReadBlock(%v): %v", kind, err)
			}
			if !ok {
				t.Fatalf("ReadBlock(%v): expected ok=true", kind)
			}
			if string(got) != string(want) {
				t.Fatalf("ReadBlock(%v): got %q, want %q", kind, got, want)
			}
		}
	})

	t.Run("OverwriteReplacesValue", func(t *testing.T) {
		s := newStore(t)
		id := uuid.New()
		if err := s.WriteBlock(ctx, store.KindData, id, []byte("v1")); err != nil {
			t.Fatalf("WriteBlock v1: %v", err)
		}
		if err := s.WriteBlock(ctx, store.KindData, id, []byte("v2")); err != nil {
			t.Fatalf("WriteBlock v2: %v", err)
		}
		got, ok, err := s.ReadBlock(ctx, store.KindData, id)
		if err != nil || !ok {
			t.Fatalf("ReadBlock: ok=%v err=%v", ok, err)
		}
		if string(got) != "v2" {
			t.Fatalf("expected overwritten value v2, got %q", got)
		}
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		id := uuid.New()
		if err := s.RemoveBlock(ctx, store.KindData, id); err != nil {
			t.Fatalf("RemoveBlock on absent block: %v", err)
		}
		if err := s.WriteBlock(ctx, store.KindData, id, []byte("x")); err != nil {
			t.Fatalf("WriteBlock: %v", err)
		}
		if err := s.RemoveBlock(ctx, store.KindData, id); err != nil {
			t.Fatalf("RemoveBlock: %v", err)
		}
		if err := s.RemoveBlock(ctx, store.KindData, id); err != nil {
			t.Fatalf("RemoveBlock twice: %v", err)
		}
		_, ok, err := s.ReadBlock(ctx, store.KindData, id)
		if err != nil {
			t.Fatalf("ReadBlock: %v", err)
		}
		if ok {
			t.Fatal("expected block to be gone after remove")
		}
	})

	t.Run("ListBlocksReflectsWritesAndRemoves", func(t *testing.T) {
		s := newStore(t)
		ids := make([]uuid.UUID, 3)
		for i := range ids {
			ids[i] = uuid.New()
			if err := s.WriteBlock(ctx, store.KindData, ids[i], []byte("x")); err != nil {
				t.Fatalf("WriteBlock: %v", err)
			}
		}
		listed, err := s.ListBlocks(ctx, store.KindData)
		if err != nil {
			t.Fatalf("ListBlocks: %v", err)
		}
		if len(listed) != len(ids) {
			t.Fatalf("expected %d blocks, got %d", len(ids), len(listed))
		}
		if err := s.RemoveBlock(ctx, store.KindData, ids[0]); err != nil {
			t.Fatalf("RemoveBlock: %v", err)
		}
		listed, err = s.ListBlocks(ctx, store.KindData)
		if err != nil {
			t.Fatalf("ListBlocks: %v", err)
		}
		if len(listed) != len(ids)-1 {
			t.Fatalf("expected %d blocks after remove, got %d", len(ids)-1, len(listed))
		}
	})

	t.Run("MetadataAndVersionAreSingletons", func(t *testing.T) {
		s := newStore(t)
		if err := s.WriteBlock(ctx, store.KindMetadata, store.MetadataBlockID, []byte("meta1")); err != nil {
			t.Fatalf("WriteBlock metadata: %v", err)
		}
		if err := s.WriteBlock(ctx, store.KindVersion, store.VersionBlockID, []byte("v1")); err != nil {
			t.Fatalf("WriteBlock version: %v", err)
		}
		gotMeta, ok, err := s.ReadBlock(ctx, store.KindMetadata, store.MetadataBlockID)
		if err != nil || !ok || string(gotMeta) != "meta1" {
			t.Fatalf("metadata readback: ok=%v err=%v got=%q", ok, err, gotMeta)
		}
		gotVer, ok, err := s.ReadBlock(ctx, store.KindVersion, store.VersionBlockID)
		if err != nil || !ok || string(gotVer) != "v1" {
			t.Fatalf("version readback: ok=%v err=%v got=%q", ok, err, gotVer)
		}
	})

	t.Run("SuperblockSlotsIndependent", func(t *testing.T) {
		s := newStore(t)
		var primary, backup [store.SuperblockSlotSize]byte
		copy(primary[:], "primary-payload")
		copy(backup[:], "backup-payload")

		if err := s.WriteSuperblock(ctx, store.SuperblockPrimary, primary); err != nil {
			t.Fatalf("WriteSuperblock primary: %v", err)
		}
		if err := s.WriteSuperblock(ctx, store.SuperblockBackup, backup); err != nil {
			t.Fatalf("WriteSuperblock backup: %v", err)
		}
		gotPrimary, ok, err := s.ReadSuperblock(ctx, store.SuperblockPrimary)
		if err != nil || !ok {
			t.Fatalf("ReadSuperblock primary: ok=%v err=%v", ok, err)
		}
		if gotPrimary != primary {
			t.Fatal("primary superblock slot mismatch")
		}
		gotBackup, ok, err := s.ReadSuperblock(ctx, store.SuperblockBackup)
		if err != nil || !ok {
			t.Fatalf("ReadSuperblock backup: ok=%v err=%v", ok, err)
		}
		if gotBackup != backup {
			t.Fatal("backup superblock slot mismatch")
		}
	})

	t.Run("ReadSuperblockMissingSlot", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.ReadSuperblock(ctx, store.SuperblockPrimary)
		if err != nil {
			t.Fatalf("ReadSuperblock: %v", err)
		}
		if ok {
			t.Fatal("expected ok=false for never-written superblock slot")
		}
	})
}
