// Package store provides blob persistence for sync state. Sync managers
// read and write their whole state as one JSON document; the store only
// needs to hold bytes and hand them back.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Store persists a single opaque blob. Load returns nil with no error when
// nothing has been saved yet. Save replaces the blob atomically: a reader
// sees either the previous blob or the new one, never a mix.
type Store interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// InMemoryStore keeps the blob in memory. It is the fallback when no
// database path is configured, and the workhorse of tests.
type InMemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

func (s *InMemoryStore) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make([]byte, len(data))
	copy(s.data, data)
	return nil
}

// ScopedStore nests a named blob inside a parent store. The parent blob is
// a JSON object keyed by scope name, so any number of scopes share one
// parent without colliding; scopes may themselves be scoped.
type ScopedStore struct {
	parent Store
	scope  string
}

func NewScopedStore(parent Store, scope string) *ScopedStore {
	return &ScopedStore{parent: parent, scope: scope}
}

func (s *ScopedStore) Load() ([]byte, error) {
	scopes, err := s.loadScopes()
	if err != nil {
		return nil, err
	}
	data, ok := scopes[s.scope]
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (s *ScopedStore) Save(data []byte) error {
	scopes, err := s.loadScopes()
	if err != nil {
		return err
	}
	scopes[s.scope] = data
	blob, err := json.Marshal(scopes)
	if err != nil {
		return fmt.Errorf("marshal scoped store %q: %w", s.scope, err)
	}
	return s.parent.Save(blob)
}

func (s *ScopedStore) loadScopes() (map[string]json.RawMessage, error) {
	blob, err := s.parent.Load()
	if err != nil {
		return nil, fmt.Errorf("load scoped store %q: %w", s.scope, err)
	}
	scopes := make(map[string]json.RawMessage)
	if blob == nil {
		return scopes, nil
	}
	if err := json.Unmarshal(blob, &scopes); err != nil {
		return nil, fmt.Errorf("unmarshal scoped store %q: %w", s.scope, err)
	}
	return scopes, nil
}
