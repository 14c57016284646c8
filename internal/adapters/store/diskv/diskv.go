// Package diskv is the filesystem document store backend, one file per
// document under a namespace directory.
package diskv

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/peterbourgon/diskv/v3"

	"github.com/example/reproc/internal/adapters/store"
	"github.com/example/reproc/internal/core/entity"
	"github.com/example/reproc/internal/ports/secondary"
)

// Opener hands out diskv stores rooted under a base path, one directory
// per namespace.
type Opener struct {
	path   string
	mu     sync.Mutex
	stores map[string]*Store
}

func NewOpener(path string) *Opener {
	return &Opener{path: path, stores: make(map[string]*Store)}
}

// Open implements secondary.StoreOpener.
func (o *Opener) Open(name string) (secondary.EntityStore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.stores[name]
	if !ok {
		s = New(filepath.Join(o.path, name))
		o.stores[name] = s
	}
	return s, nil
}

// Store persists documents as JSON files keyed by identifier.
type Store struct {
	diskv *diskv.Diskv
}

func New(path string) *Store {
	flatTransform := func(s string) []string { return []string{} }
	return &Store{
		diskv: diskv.New(diskv.Options{
			BasePath:     path,
			Transform:    flatTransform,
			CacheSizeMax: 1024 * 1024,
		}),
	}
}

// Get implements secondary.EntityStore.
func (s *Store) Get(ctx context.Context, id string) (entity.Document, error) {
	if !s.diskv.Has(id) {
		return nil, nil
	}
	raw, err := s.diskv.Read(id)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", id, err)
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
	if err := s.diskv.Write(id, raw); err != nil {
		return fmt.Errorf("writing document %s: %w", id, err)
	}
	return nil
}

// Delete implements secondary.EntityStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	if !s.diskv.Has(id) {
		return nil
	}
	if err := s.diskv.Erase(id); err != nil {
		return fmt.Errorf("erasing document %s: %w", id, err)
	}
	return nil
}

// Query implements secondary.EntityStore.
func (s *Store) Query(ctx context.Context, q secondary.Query) ([]entity.Document, error) {
	var matched []entity.Document
	for id := range s.diskv.Keys(nil) {
		raw, err := s.diskv.Read(id)
		if err != nil {
			return nil, fmt.Errorf("reading document %s: %w", id, err)
		}
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
