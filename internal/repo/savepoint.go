package repo

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"objrepo/internal/repoerr"
)

// Savepoint serializes the current (possibly uncommitted) Header into a
// fresh unmanaged object and records it under a new UUID, returning that
// UUID as the caller's savepoint token (spec.md §4.11).
//
// original_source models the caller's side as a weak reference to the
// UUID, upgraded on Restore; Go has no equivalent GC-observable weak
// pointer, and the spec itself calls this "a deliberate caller's lifetime
// decides validity contract; any implementation providing weak-strong
// shared ownership suffices" (§9). This package instead treats
// Commit clearing the savepoint table as the sole explicit invalidation
// path (§4.11's dominant case — "savepoints are invalidated by commit")
// and Restore's handle-table liveness check as the guard against any
// other staleness, which together reproduce the same observable
// behavior (stale token -> ErrInvalidSavepoint) without GC-tied weak refs.
func (r *ObjectRepo) Savepoint(ctx context.Context) (uuid.UUID, error) {
	plain, err := marshalHeader(r.serializeHeader())
	if err != nil {
		return uuid.Nil, err
	}

	h := r.AddUnmanaged()
	mc, err := r.UnmanagedObjectMut(ctx, h)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := mc.Write(plain); err != nil {
		return uuid.Nil, err
	}
	stored, err := mc.Flush()
	if err != nil {
		return uuid.Nil, err
	}

	spID := uuid.New()
	r.savepoints[spID] = stored
	return spID, nil
}

// Restore replaces live state with the Header captured by a prior
// Savepoint call, identified by spID. It fails with
// repoerr.ErrInvalidSavepoint if spID is unknown or its backing object has
// since become unreachable.
func (r *ObjectRepo) Restore(ctx context.Context, spID uuid.UUID) error {
	h, ok := r.savepoints[spID]
	if !ok || !r.ContainsUnmanaged(h) {
		return fmt.Errorf("repo: restore savepoint: %w", repoerr.ErrInvalidSavepoint)
	}

	rc, err := r.UnmanagedObject(ctx, h)
	if err != nil {
		return fmt.Errorf("repo: restore savepoint: %w", repoerr.ErrInvalidSavepoint)
	}
	plain, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	header, err := unmarshalHeader(plain)
	if err != nil {
		return err
	}
	r.restoreHeader(header)
	return nil
}
