package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps session bags in process memory. Intended for tests and local development.
type MemoryBackend struct {
	mu   sync.Mutex
	bags map[string]map[string]string
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{bags: make(map[string]map[string]string)}
}

// Open returns the bag for id, or a new empty bag when id is empty or unknown.
func (b *MemoryBackend) Open(ctx context.Context, id string) (Store, error) {
	b.mu.Lock()
	_, ok := b.bags[id]
	b.mu.Unlock()
	if id == "" || !ok {
		nid, err := newID()
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.bags[nid] = make(map[string]string)
		b.mu.Unlock()
		id = nid
	}
	return &MemoryStore{backend: b, id: id}, nil
}

// Len returns the number of bags held.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bags)
}

// MemoryStore is a Store backed by a MemoryBackend.
type MemoryStore struct {
	backend *MemoryBackend
	id      string
}

// NewMemoryStore returns a standalone bag with a fixed id.
func NewMemoryStore(id string) *MemoryStore {
	b := NewMemoryBackend()
	b.bags[id] = make(map[string]string)
	return &MemoryStore{backend: b, id: id}
}

func (s *MemoryStore) ID() string { return s.id }

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	v, ok := s.backend.bags[s.id][key]
	return v, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	bag, ok := s.backend.bags[s.id]
	if !ok {
		bag = make(map[string]string)
		s.backend.bags[s.id] = bag
	}
	bag[key] = value
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.bags[s.id], key)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.bags[s.id] = make(map[string]string)
	return nil
}

func (s *MemoryStore) RegenerateID(ctx context.Context) error {
	nid, err := newID()
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	bag := s.backend.bags[s.id]
	if bag == nil {
		bag = make(map[string]string)
	}
	delete(s.backend.bags, s.id)
	s.backend.bags[nid] = bag
	s.id = nid
	return nil
}

// Keys returns a copy of the bag contents.
func (s *MemoryStore) Keys() map[string]string {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	out := make(map[string]string, len(s.backend.bags[s.id]))
	for k, v := range s.backend.bags[s.id] {
		out[k] = v
	}
	return out
}
