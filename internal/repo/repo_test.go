package repo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"objrepo/internal/chunkstore"
	"objrepo/internal/encode"
	"objrepo/internal/metadata"
	"objrepo/internal/object"
	"objrepo/internal/repoerr"
	"objrepo/internal/store"
	"objrepo/internal/store/memstore"
)

// testKeyParams keeps argon2id cheap enough for a test suite; production
// callers use metadata.DefaultKeyDerivationParams.
var testKeyParams = metadata.KeyDerivationParams{Memory: 8 * 1024, Time: 1, Threads: 1}

func testConfig(packing chunkstore.Packing) Config {
	return Config{
		BlockSize:   4096,
		ChunkerBits: 8, // ~256-byte average chunks, so short test payloads still split into several
		Compression: encode.CompressionZstd,
		Encryption:  encode.EncryptionChaCha20Poly1305,
		Packing:     packing,
		KeyParams:   testKeyParams,
	}
}

func mustCreate(t *testing.T, ds store.DataStore, packing chunkstore.Packing) *ObjectRepo {
	t.Helper()
	r, err := Create(context.Background(), ds, "correct horse battery staple", testConfig(packing))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return r
}

func writeUnmanaged(t *testing.T, r *ObjectRepo, content []byte) object.Handle {
	t.Helper()
	ctx := context.Background()
	h := r.AddUnmanaged()
	mc, err := r.UnmanagedObjectMut(ctx, h)
	if err != nil {
		t.Fatalf("UnmanagedObjectMut: %v", err)
	}
	if _, err := mc.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := mc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return out
}

func readAll(t *testing.T, r *ObjectRepo, h object.Handle) []byte {
	t.Helper()
	rc, err := r.UnmanagedObject(context.Background(), h)
	if err != nil {
		t.Fatalf("UnmanagedObject: %v", err)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return data
}

func TestCreateRejectsExistingRepository(t *testing.T) {
	ds := memstore.New()
	mustCreate(t, ds, chunkstore.Packing{})
	_, err := Create(context.Background(), ds, "password", testConfig(chunkstore.Packing{}))
	if !errors.Is(err, repoerr.ErrAlreadyExists) {
		t.Fatalf("Create over existing repo: got %v, want ErrAlreadyExists", err)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	ds := memstore.New()
	content := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	r := mustCreate(t, ds, chunkstore.Packing{})
	h := writeUnmanaged(t, r, content)
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r2, err := Open(context.Background(), ds, "correct horse battery staple", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !r2.ContainsUnmanaged(h) {
		t.Fatalf("handle not live after reopen")
	}
	got := readAll(t, r2, h)
	if !bytes.Equal(got, content) {
		t.Fatalf("round-tripped content mismatch: got %d bytes, want %d", len(got), len(content))
	}
}

func TestOpenWrongPassword(t *testing.T) {
	ds := memstore.New()
	mustCreate(t, ds, chunkstore.Packing{})
	_, err := Open(context.Background(), ds, "wrong password", nil)
	if !errors.Is(err, repoerr.ErrPassword) {
		t.Fatalf("Open with wrong password: got %v, want ErrPassword", err)
	}
}

func TestOpenMissingRepository(t *testing.T) {
	ds := memstore.New()
	_, err := Open(context.Background(), ds, "password", nil)
	if !errors.Is(err, repoerr.ErrNotFound) {
		t.Fatalf("Open empty store: got %v, want ErrNotFound", err)
	}
}

func TestDeduplicationSharesChunks(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	content := bytes.Repeat([]byte("duplicate me please "), 100)
	h1 := writeUnmanaged(t, r, content)
	h2 := writeUnmanaged(t, r, content)

	if len(h1.Chunks) == 0 || len(h2.Chunks) == 0 {
		t.Fatalf("expected at least one chunk per object")
	}
	if len(h1.Chunks) != len(h2.Chunks) {
		t.Fatalf("identical content produced different chunk counts: %d vs %d", len(h1.Chunks), len(h2.Chunks))
	}
	for i := range h1.Chunks {
		if h1.Chunks[i].Hash != h2.Chunks[i].Hash {
			t.Fatalf("chunk %d hash mismatch between duplicate writes", i)
		}
		info := r.state.chunks[ChunkHash(h1.Chunks[i].Hash)]
		if len(info.References) != 2 {
			t.Fatalf("chunk %d expected 2 references, got %d", i, len(info.References))
		}
	}

	if !bytes.Equal(readAll(t, r, h1), content) || !bytes.Equal(readAll(t, r, h2), content) {
		t.Fatalf("deduplicated content did not round-trip")
	}
}

func TestCopyOnWriteInvalidatesOldHandle(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	original := bytes.Repeat([]byte("abcdefgh"), 500)
	h := writeUnmanaged(t, r, original)
	if !r.ContainsUnmanaged(h) {
		t.Fatalf("freshly written handle should be live")
	}

	mc, err := r.UnmanagedObjectMut(context.Background(), h)
	if err != nil {
		t.Fatalf("UnmanagedObjectMut: %v", err)
	}
	if _, err := mc.Seek(0, io.SeekEnd); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := mc.Write([]byte("-appended-tail")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	h2, err := mc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if r.ContainsUnmanaged(h) {
		t.Fatalf("old handle ID should no longer be live after mutation")
	}
	if !r.ContainsUnmanaged(h2) {
		t.Fatalf("new handle ID should be live after mutation")
	}

	got := readAll(t, r, h2)
	want := append(append([]byte(nil), original...), []byte("-appended-tail")...)
	if !bytes.Equal(got, want) {
		t.Fatalf("mutated content mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestMutateMiddleChunkReleasesReplacedChunkReference(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	original := bytes.Repeat([]byte("A"), 2000)
	h := writeUnmanaged(t, r, original)
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	oldHashes := make(map[ChunkHash]struct{}, len(h.Chunks))
	for _, c := range h.Chunks {
		oldHashes[ChunkHash(c.Hash)] = struct{}{}
	}

	mc, err := r.UnmanagedObjectMut(context.Background(), h)
	if err != nil {
		t.Fatalf("UnmanagedObjectMut: %v", err)
	}
	if _, err := mc.Seek(800, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := mc.Write(bytes.Repeat([]byte("Z"), 200)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	h2, err := mc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	newHashes := make(map[ChunkHash]struct{}, len(h2.Chunks))
	for _, c := range h2.Chunks {
		newHashes[ChunkHash(c.Hash)] = struct{}{}
	}

	var replaced []ChunkHash
	for hash := range oldHashes {
		if _, stillPresent := newHashes[hash]; !stillPresent {
			replaced = append(replaced, hash)
		}
	}
	if len(replaced) == 0 {
		t.Fatalf("mid-object overwrite should have changed at least one chunk's content")
	}

	for _, hash := range replaced {
		if info, ok := r.state.chunks[hash]; ok {
			t.Fatalf("replaced chunk %x should have no surviving references, found %v", hash, info.References)
		}
	}

	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	blocksBefore, err := ds.ListBlocks(context.Background(), store.KindData)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if err := r.Clean(context.Background()); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	blocksAfter, err := ds.ListBlocks(context.Background(), store.KindData)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocksAfter) >= len(blocksBefore) {
		t.Fatalf("expected Clean to reclaim the replaced chunk's block: before=%d after=%d", len(blocksBefore), len(blocksAfter))
	}

	want := append([]byte(nil), original...)
	copy(want[800:1000], bytes.Repeat([]byte("Z"), 200))
	if !bytes.Equal(readAll(t, r, h2), want) {
		t.Fatalf("mutated content mismatch")
	}
}

func TestRemoveUnmanagedReleasesReferences(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	content := bytes.Repeat([]byte("removable content "), 50)
	h := writeUnmanaged(t, r, content)
	hash := ChunkHash(h.Chunks[0].Hash)
	if _, ok := r.state.chunks[hash]; !ok {
		t.Fatalf("expected chunk present before removal")
	}

	if err := r.RemoveUnmanaged(h); err != nil {
		t.Fatalf("RemoveUnmanaged: %v", err)
	}
	if r.ContainsUnmanaged(h) {
		t.Fatalf("handle should no longer be live after removal")
	}
	if _, ok := r.state.chunks[hash]; ok {
		t.Fatalf("chunk map entry should be gone once its last reference is removed")
	}
}

func TestManagedObjectLifecycle(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	objID := uuid.New()
	if _, err := r.AddManaged(objID); err != nil {
		t.Fatalf("AddManaged: %v", err)
	}
	if _, err := r.AddManaged(objID); !errors.Is(err, repoerr.ErrAlreadyExists) {
		t.Fatalf("AddManaged duplicate: got %v, want ErrAlreadyExists", err)
	}

	mc, err := r.ManagedObjectMut(context.Background(), objID)
	if err != nil {
		t.Fatalf("ManagedObjectMut: %v", err)
	}
	content := bytes.Repeat([]byte("managed payload "), 80)
	if _, err := mc.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := mc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	rc, err := r.ManagedObject(context.Background(), objID)
	if err != nil {
		t.Fatalf("ManagedObject: %v", err)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("managed object content mismatch")
	}

	dstID := uuid.New()
	if err := r.CopyManaged(objID, dstID); err != nil {
		t.Fatalf("CopyManaged: %v", err)
	}
	if !r.ContainsManaged(dstID) {
		t.Fatalf("copy destination should exist")
	}

	if err := r.RemoveManaged(objID); err != nil {
		t.Fatalf("RemoveManaged: %v", err)
	}
	if r.ContainsManaged(objID) {
		t.Fatalf("removed managed object should be gone")
	}
	if !r.ContainsManaged(dstID) {
		t.Fatalf("copy should survive removal of its source")
	}
}

func TestCommitThenRollbackDiscardsUncommittedWrite(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	committed := writeUnmanaged(t, r, bytes.Repeat([]byte("committed "), 40))
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	uncommitted := writeUnmanaged(t, r, bytes.Repeat([]byte("uncommitted "), 40))
	if !r.ContainsUnmanaged(uncommitted) {
		t.Fatalf("uncommitted handle should be live before rollback")
	}

	if err := r.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if !r.ContainsUnmanaged(committed) {
		t.Fatalf("committed handle should survive rollback")
	}
	if r.ContainsUnmanaged(uncommitted) {
		t.Fatalf("uncommitted handle should not survive rollback")
	}
}

func TestSavepointRestore(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	before := writeUnmanaged(t, r, bytes.Repeat([]byte("before savepoint "), 30))
	sp, err := r.Savepoint(context.Background())
	if err != nil {
		t.Fatalf("Savepoint: %v", err)
	}

	after := writeUnmanaged(t, r, bytes.Repeat([]byte("after savepoint "), 30))
	if !r.ContainsUnmanaged(after) {
		t.Fatalf("post-savepoint handle should be live")
	}

	if err := r.Restore(context.Background(), sp); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if !r.ContainsUnmanaged(before) {
		t.Fatalf("pre-savepoint handle should be live after restore")
	}
	if r.ContainsUnmanaged(after) {
		t.Fatalf("post-savepoint handle should not be live after restore")
	}
}

func TestSavepointInvalidatedByCommit(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	writeUnmanaged(t, r, bytes.Repeat([]byte("data "), 30))
	sp, err := r.Savepoint(context.Background())
	if err != nil {
		t.Fatalf("Savepoint: %v", err)
	}

	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := r.Restore(context.Background(), sp); !errors.Is(err, repoerr.ErrInvalidSavepoint) {
		t.Fatalf("Restore after commit: got %v, want ErrInvalidSavepoint", err)
	}
}

func TestCleanNoPackingReclaimsUnreferencedBlocks(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	h := writeUnmanaged(t, r, bytes.Repeat([]byte("will be removed "), 60))
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	blocksBefore, err := ds.ListBlocks(context.Background(), store.KindData)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}

	if err := r.RemoveUnmanaged(h); err != nil {
		t.Fatalf("RemoveUnmanaged: %v", err)
	}
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.Clean(context.Background()); err != nil {
		t.Fatalf("Clean: %v", err)
	}

	blocksAfter, err := ds.ListBlocks(context.Background(), store.KindData)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocksAfter) >= len(blocksBefore) {
		t.Fatalf("expected Clean to reclaim blocks: before=%d after=%d", len(blocksBefore), len(blocksAfter))
	}
}

func TestCleanPreservesRollback(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	kept := writeUnmanaged(t, r, bytes.Repeat([]byte("kept across clean "), 50))
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	doomed := writeUnmanaged(t, r, bytes.Repeat([]byte("about to be removed "), 50))
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.RemoveUnmanaged(doomed); err != nil {
		t.Fatalf("RemoveUnmanaged: %v", err)
	}

	// Clean runs against live (uncommitted) state plus the previously
	// committed header, so the just-removed object's chunks are still
	// referenced by that previous header and must survive.
	if err := r.Clean(context.Background()); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if err := r.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if !r.ContainsUnmanaged(doomed) {
		t.Fatalf("rollback after clean should still restore the removed handle")
	}
	if !bytes.Equal(readAll(t, r, kept), bytes.Repeat([]byte("kept across clean "), 50)) {
		t.Fatalf("unrelated object content corrupted by clean")
	}
}

func TestCleanPackedRepacksDirtyPacks(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{Enabled: true, PackSize: 512})

	h1 := writeUnmanaged(t, r, bytes.Repeat([]byte("alpha"), 40))
	h2 := writeUnmanaged(t, r, bytes.Repeat([]byte("bravo"), 40))
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := r.RemoveUnmanaged(h1); err != nil {
		t.Fatalf("RemoveUnmanaged: %v", err)
	}
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := r.Clean(context.Background()); err != nil {
		t.Fatalf("Clean: %v", err)
	}

	if !bytes.Equal(readAll(t, r, h2), bytes.Repeat([]byte("bravo"), 40)) {
		t.Fatalf("surviving object content corrupted by pack repack")
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})

	objID := uuid.New()
	if _, err := r.AddManaged(objID); err != nil {
		t.Fatalf("AddManaged: %v", err)
	}
	mc, err := r.ManagedObjectMut(context.Background(), objID)
	if err != nil {
		t.Fatalf("ManagedObjectMut: %v", err)
	}
	content := bytes.Repeat([]byte("verify me "), 60)
	if _, err := mc.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := mc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	report, err := r.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.CorruptChunks) != 0 || len(report.CorruptManaged) != 0 {
		t.Fatalf("expected clean report before corruption, got %+v", report)
	}

	var victim ChunkHash
	for id := range r.state.chunks {
		victim = id
		break
	}
	info := r.state.chunks[victim]
	if err := ds.WriteBlock(context.Background(), store.KindData, info.BlockID, []byte("corrupted bytes, not a valid encoded chunk")); err != nil {
		t.Fatalf("corrupt block: %v", err)
	}

	report, err = r.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify after corruption: %v", err)
	}
	if len(report.CorruptChunks) == 0 {
		t.Fatalf("expected at least one corrupt chunk to be detected")
	}
	if len(report.CorruptManaged) == 0 {
		t.Fatalf("expected the managed object referencing the corrupt chunk to be flagged")
	}
}

func TestChangePasswordRequiresCommitToPersist(t *testing.T) {
	ds := memstore.New()
	r := mustCreate(t, ds, chunkstore.Packing{})
	writeUnmanaged(t, r, bytes.Repeat([]byte("secret "), 20))
	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := r.ChangePassword("new password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := Open(context.Background(), ds, "new password", nil); !errors.Is(err, repoerr.ErrPassword) {
		t.Fatalf("Open with new password before commit: got %v, want ErrPassword (change not yet durable)", err)
	}

	if err := r.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := Open(context.Background(), ds, "correct horse battery staple", nil); !errors.Is(err, repoerr.ErrPassword) {
		t.Fatalf("Open with old password after commit: got %v, want ErrPassword", err)
	}
	if _, err := Open(context.Background(), ds, "new password", nil); err != nil {
		t.Fatalf("Open with new password after commit: %v", err)
	}
}
