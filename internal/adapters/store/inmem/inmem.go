// Package inmem is the in-memory document store backend, used in tests
// and for ephemeral runs.
package inmem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/example/reproc/internal/adapters/store"
	"github.com/example/reproc/internal/core/entity"
	"github.com/example/reproc/internal/ports/secondary"
)

// Opener hands out in-memory stores by namespace name.
type Opener struct {
	mu     sync.Mutex
	stores map[string]*Store
}

func NewOpener() *Opener {
	return &Opener{stores: make(map[string]*Store)}
}

// Open implements secondary.StoreOpener.
func (o *Opener) Open(name string) (secondary.EntityStore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.stores[name]
	if !ok {
		s = New()
		o.stores[name] = s
	}
	return s, nil
}

// Store keeps documents serialized in a map. Serializing on write keeps
// callers from sharing mutable state with the store.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// Get implements secondary.EntityStore.
func (s *Store) Get(ctx context.Context, id string) (entity.Document, error) {
	s.mu.RLock()
	raw, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(raw)
}

// Save implements secondary.EntityStore.
func (s *Store) Save(ctx context.Context, doc entity.Document) error {
	id, _ := doc["prepid"].(string)
	if id == "" {
		return fmt.Errorf("document has no prepid")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", id, err)
	}
	s.mu.Lock()
	s.docs[id] = raw
	s.mu.Unlock()
	return nil
}

// Delete implements secondary.EntityStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
	return nil
}

// Query implements secondary.EntityStore.
func (s *Store) Query(ctx context.Context, q secondary.Query) ([]entity.Document, error) {
	s.mu.RLock()
	raws := make([][]byte, 0, len(s.docs))
	for _, raw := range s.docs {
		raws = append(raws, raw)
	}
	s.mu.RUnlock()

	var matched []entity.Document
	for _, raw := range raws {
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if store.Matches(doc, q) {
			matched = append(matched, doc)
		}
	}
	return store.Finish(matched, q), nil
}

func decode(raw []byte) (entity.Document, error) {
	var doc entity.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}
