package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"objrepo/internal/metadata"
	"objrepo/internal/object"
	"objrepo/internal/repoerr"
	"objrepo/internal/store"
)

// Commit durably publishes live state, per spec.md §4.9:
//
//  1. Clone the current Header into a backup.
//  2. Remove every savepoint's stored unmanaged object (savepoints are
//     invalidated by a successful commit).
//  3. Serialize the Header from live state.
//  4. Encode it, allocate a fresh block UUID, and write it as a header
//     block.
//  5. Swing metadata.HeaderID to the new block and atomically rewrite the
//     metadata singleton.
//
// Any failure up to and including step 4 restores the backup and returns
// the error. Once step 5 succeeds, Commit always returns success; the
// savepoint table is cleared unconditionally afterward.
func (r *ObjectRepo) Commit(ctx context.Context) error {
	backup := r.cloneHeader()

	for _, h := range r.savepoints {
		if err := r.RemoveUnmanaged(h); err != nil && !errors.Is(err, repoerr.ErrNotFound) {
			r.restoreHeader(backup)
			return err
		}
	}

	// Durably flush any pack buffer still pending in memory before the
	// header that references it is written: otherwise a committed chunk's
	// PackLocation could still carry the zero PackID, unresolvable on a
	// later Open. Flushing is a no-op when packing is disabled or nothing
	// is buffered.
	if _, err := r.state.cstore.FlushPack(ctx); err != nil {
		r.restoreHeader(backup)
		return fmt.Errorf("repo: flush pending pack: %w", err)
	}

	header := r.serializeHeader()
	plain, err := marshalHeader(header)
	if err != nil {
		r.restoreHeader(backup)
		return err
	}
	encoded, err := r.state.encodeData(plain)
	if err != nil {
		r.restoreHeader(backup)
		return fmt.Errorf("repo: encode header: %w", err)
	}

	headerID := uuid.New()
	if err := r.state.writeBlock(ctx, store.KindHeader, headerID, encoded); err != nil {
		r.restoreHeader(backup)
		return fmt.Errorf("repo: write header block: %w", repoerr.ErrIo)
	}

	newMetadata := r.state.metadata
	newMetadata.HeaderID = headerID
	mdData, err := metadata.Marshal(newMetadata)
	if err != nil {
		r.restoreHeader(backup)
		return err
	}
	if err := r.state.writeBlock(ctx, store.KindMetadata, store.MetadataBlockID, mdData); err != nil {
		r.restoreHeader(backup)
		return fmt.Errorf("repo: write metadata block: %w", repoerr.ErrIo)
	}
	r.state.metadata = newMetadata

	// The commit is now durably visible (step 5 completed). Savepoints are
	// invalidated unconditionally from here; any failure clearing them
	// must not turn this call into an error.
	r.savepoints = make(map[uuid.UUID]object.Handle)
	r.state.logger.Info("commit complete", "header_id", headerID)
	return nil
}

// Rollback discards all in-memory changes since the last commit, reading
// back the header named by the current metadata singleton (spec.md
// §4.10). It is not idempotent against a crash mid-rollback: once the
// header block has been read, the rest of the operation is purely
// in-memory.
func (r *ObjectRepo) Rollback(ctx context.Context) error {
	encoded, ok, err := r.state.readBlock(ctx, store.KindHeader, r.state.metadata.HeaderID)
	if err != nil {
		return fmt.Errorf("repo: read header block: %w", repoerr.ErrIo)
	}
	if !ok {
		return fmt.Errorf("repo: header block %s missing: %w", r.state.metadata.HeaderID, repoerr.ErrCorrupt)
	}
	plain, err := r.state.decodeData(encoded)
	if err != nil {
		return fmt.Errorf("repo: decode header: %w", err)
	}
	header, err := unmarshalHeader(plain)
	if err != nil {
		return err
	}
	r.restoreHeader(header)
	r.state.logger.Info("rollback complete", "header_id", r.state.metadata.HeaderID)
	return nil
}
