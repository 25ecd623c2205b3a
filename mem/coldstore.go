package mem

import (
	"context"
	"sync"

	"github.com/sharedcode/kvom"
)

type coldStore struct {
	mu     sync.Mutex
	lookup map[string][]byte
}

// NewColdStore returns an in-memory kvom.ColdStore.
func NewColdStore() kvom.ColdStore {
	return &coldStore{
		lookup: make(map[string][]byte),
	}
}

func (s *coldStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup[key], nil
}

func (s *coldStore) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		out[k] = s.lookup[k]
	}
	return out, nil
}

func (s *coldStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup[key] = value
	return nil
}

func (s *coldStore) SetMulti(ctx context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.lookup[k] = v
	}
	return nil
}

func (s *coldStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lookup, key)
	return nil
}

func (s *coldStore) DeleteMulti(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.lookup, k)
	}
	return nil
}
