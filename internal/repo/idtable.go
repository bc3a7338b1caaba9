package repo

import "github.com/google/uuid"

// idTable is a compact allocator for handle IDs: a monotonic counter with
// a free list of recycled slots, so that a long-lived repository does not
// grow an ever-larger handle ID space as objects are created and removed.
// Allocated slots are exposed to callers as uuid.UUID (the type spec.md's
// ObjectHandle.handle_id is defined in terms of) by embedding the slot
// number in the low 8 bytes of an otherwise-zero UUID.
//
// Grounded on spec.md §4.7's "handle-ID table (a compact allocator
// recycling freed IDs)". original_source's own id_table.rs was not part
// of the retrieved reference pack, so the free-list/counter shape below
// is this package's own straightforward reading of that one-line
// description rather than a ported implementation.
type idTable struct {
	next uint64
	free []uint64
	live map[uint64]bool
}

func newIDTable() *idTable {
	return &idTable{live: make(map[uint64]bool)}
}

func slotToUUID(slot uint64) uuid.UUID {
	var id uuid.UUID
	for i := 0; i < 8; i++ {
		id[15-i] = byte(slot >> (8 * i))
	}
	return id
}

func uuidToSlot(id uuid.UUID) uint64 {
	var slot uint64
	for i := 0; i < 8; i++ {
		slot |= uint64(id[15-i]) << (8 * i)
	}
	return slot
}

// alloc allocates and returns a fresh handle ID, reusing a recycled slot
// when one is available.
func (t *idTable) alloc() uuid.UUID {
	var slot uint64
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		slot = t.next
		t.next++
	}
	t.live[slot] = true
	return slotToUUID(slot)
}

// recycle returns id's slot to the free list. Recycling an ID not
// currently live is a no-op.
func (t *idTable) recycle(id uuid.UUID) {
	slot := uuidToSlot(id)
	if t.live[slot] {
		delete(t.live, slot)
		t.free = append(t.free, slot)
	}
}

// contains reports whether id is a currently live slot.
func (t *idTable) contains(id uuid.UUID) bool {
	return t.live[uuidToSlot(id)]
}

// clone returns an independent deep copy. (Commit's backup of the handle
// table goes through snapshot, not clone.)
func (t *idTable) clone() *idTable {
	cp := &idTable{next: t.next, live: make(map[uint64]bool, len(t.live))}
	cp.free = append(cp.free, t.free...)
	for k, v := range t.live {
		cp.live[k] = v
	}
	return cp
}

// reset discards all allocations.
func (t *idTable) reset() {
	t.next = 0
	t.free = nil
	t.live = make(map[uint64]bool)
}
