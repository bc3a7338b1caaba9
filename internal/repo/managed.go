package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"objrepo/internal/object"
	"objrepo/internal/repoerr"
)

// Instance returns this repository handle's current instance namespace.
func (r *ObjectRepo) Instance() uuid.UUID {
	return r.instanceID
}

// SetInstance switches which instance namespace subsequent *Managed calls
// operate against.
func (r *ObjectRepo) SetInstance(id uuid.UUID) {
	r.instanceID = id
}

// Instances lists every instance UUID currently holding at least one
// managed object.
func (r *ObjectRepo) Instances() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(r.managed))
	for id := range r.managed {
		out = append(out, id)
	}
	return out
}

// ManagedObjectsIn returns the object-ID -> handle map for instanceID,
// used by verify (and the CLI's ls) to walk managed objects regardless of
// this repository handle's current instance.
func (r *ObjectRepo) ManagedObjectsIn(instanceID uuid.UUID) map[uuid.UUID]object.Handle {
	return r.managed[instanceID]
}

// ContainsManaged reports whether objectID exists in the current instance.
func (r *ObjectRepo) ContainsManaged(objectID uuid.UUID) bool {
	objs, ok := r.managed[r.instanceID]
	if !ok {
		return false
	}
	_, ok = objs[objectID]
	return ok
}

// AddManaged creates a new empty managed object under objectID in the
// current instance.
func (r *ObjectRepo) AddManaged(objectID uuid.UUID) (object.Handle, error) {
	if r.ContainsManaged(objectID) {
		return object.Handle{}, fmt.Errorf("repo: add managed: %w", repoerr.ErrAlreadyExists)
	}
	h := r.AddUnmanaged()
	if r.managed[r.instanceID] == nil {
		r.managed[r.instanceID] = make(map[uuid.UUID]object.Handle)
	}
	r.managed[r.instanceID][objectID] = h
	return h, nil
}

// RemoveManaged deletes objectID from the current instance, releasing its
// chunk references the same way RemoveUnmanaged does.
func (r *ObjectRepo) RemoveManaged(objectID uuid.UUID) error {
	objs, ok := r.managed[r.instanceID]
	if !ok {
		return fmt.Errorf("repo: remove managed: %w", repoerr.ErrNotFound)
	}
	h, ok := objs[objectID]
	if !ok {
		return fmt.Errorf("repo: remove managed: %w", repoerr.ErrNotFound)
	}
	if err := r.RemoveUnmanaged(h); err != nil {
		return err
	}
	delete(objs, objectID)
	if len(objs) == 0 {
		delete(r.managed, r.instanceID)
	}
	return nil
}

// ManagedObject returns a read cursor over objectID's content in the
// current instance.
func (r *ObjectRepo) ManagedObject(ctx context.Context, objectID uuid.UUID) (*object.ReadCursor, error) {
	objs, ok := r.managed[r.instanceID]
	if !ok {
		return nil, fmt.Errorf("repo: managed object: %w", repoerr.ErrNotFound)
	}
	h, ok := objs[objectID]
	if !ok {
		return nil, fmt.Errorf("repo: managed object: %w", repoerr.ErrNotFound)
	}
	return r.UnmanagedObject(ctx, h)
}

// ManagedMutCursor wraps MutCursor, writing the mutated handle back into
// the managed map on Flush so the new handle ID is the one future lookups
// of this object ID resolve to.
type ManagedMutCursor struct {
	*MutCursor
	objectID uuid.UUID
}

func (m *ManagedMutCursor) Flush() (object.Handle, error) {
	h, err := m.MutCursor.Flush()
	if err != nil {
		return object.Handle{}, err
	}
	m.repo.managed[m.repo.instanceID][m.objectID] = h
	return h, nil
}

// ManagedObjectMut returns a write cursor over objectID's content in the
// current instance.
func (r *ObjectRepo) ManagedObjectMut(ctx context.Context, objectID uuid.UUID) (*ManagedMutCursor, error) {
	objs, ok := r.managed[r.instanceID]
	if !ok {
		return nil, fmt.Errorf("repo: managed object mut: %w", repoerr.ErrNotFound)
	}
	h, ok := objs[objectID]
	if !ok {
		return nil, fmt.Errorf("repo: managed object mut: %w", repoerr.ErrNotFound)
	}
	mc, err := r.UnmanagedObjectMut(ctx, h)
	if err != nil {
		return nil, err
	}
	return &ManagedMutCursor{MutCursor: mc, objectID: objectID}, nil
}

// CopyManaged duplicates srcObjectID's handle (sharing its chunk list) to
// dstObjectID within the current instance.
func (r *ObjectRepo) CopyManaged(srcObjectID, dstObjectID uuid.UUID) error {
	if r.ContainsManaged(dstObjectID) {
		return fmt.Errorf("repo: copy managed: %w", repoerr.ErrAlreadyExists)
	}
	objs, ok := r.managed[r.instanceID]
	if !ok {
		return fmt.Errorf("repo: copy managed: %w", repoerr.ErrNotFound)
	}
	src, ok := objs[srcObjectID]
	if !ok {
		return fmt.Errorf("repo: copy managed: %w", repoerr.ErrNotFound)
	}
	cp, err := r.CopyUnmanaged(src)
	if err != nil {
		return err
	}
	objs[dstObjectID] = cp
	return nil
}
