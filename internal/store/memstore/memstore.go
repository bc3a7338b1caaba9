// Package memstore implements an in-memory store.DataStore, grounded on
// the original source's MemoryStore (store/memory.rs): block maps keyed by
// kind, guarded by a single mutex.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"objrepo/internal/store"
)

// Store is a sync.Mutex-guarded in-memory DataStore. Useful for tests and
// ephemeral repositories.
type Store struct {
	mu         sync.Mutex
	data       map[uuid.UUID][]byte
	header     map[uuid.UUID][]byte
	lock       map[uuid.UUID][]byte
	metadata   []byte
	version    []byte
	superblock [2]*[store.SuperblockSlotSize]byte
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		data:   make(map[uuid.UUID][]byte),
		header: make(map[uuid.UUID][]byte),
		lock:   make(map[uuid.UUID][]byte),
	}
}

func (s *Store) bucket(kind store.Kind) map[uuid.UUID][]byte {
	switch kind {
	case store.KindData:
		return s.data
	case store.KindHeader:
		return s.header
	case store.KindLock:
		return s.lock
	default:
		return nil
	}
}

func (s *Store) WriteBlock(_ context.Context, kind store.Kind, id uuid.UUID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := append([]byte(nil), data...)
	switch kind {
	case store.KindMetadata:
		s.metadata = cp
		return nil
	case store.KindVersion:
		s.version = cp
		return nil
	}
	b := s.bucket(kind)
	b[id] = cp
	return nil
}

func (s *Store) ReadBlock(_ context.Context, kind store.Kind, id uuid.UUID) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case store.KindMetadata:
		if s.metadata == nil {
			return nil, false, nil
		}
		return append([]byte(nil), s.metadata...), true, nil
	case store.KindVersion:
		if s.version == nil {
			return nil, false, nil
		}
		return append([]byte(nil), s.version...), true, nil
	}
	b := s.bucket(kind)
	v, ok := b[id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) RemoveBlock(_ context.Context, kind store.Kind, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case store.KindMetadata:
		s.metadata = nil
		return nil
	case store.KindVersion:
		s.version = nil
		return nil
	}
	b := s.bucket(kind)
	delete(b, id)
	return nil
}

func (s *Store) ListBlocks(_ context.Context, kind store.Kind) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucket(kind)
	out := make([]uuid.UUID, 0, len(b))
	for id := range b {
		out = append(out, id)
	}
	return out, nil
}

func (s *Store) WriteSuperblock(_ context.Context, slot store.SuperblockSlot, data [store.SuperblockSlotSize]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := data
	s.superblock[slot] = &cp
	return nil
}

func (s *Store) ReadSuperblock(_ context.Context, slot store.SuperblockSlot) ([store.SuperblockSlotSize]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.superblock[slot] == nil {
		var zero [store.SuperblockSlotSize]byte
		return zero, false, nil
	}
	return *s.superblock[slot], true, nil
}
