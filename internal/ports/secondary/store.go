// Package secondary defines the driven-side ports: the entity store and
// the remote service clients the lifecycle services depend on.
// Implementations live in internal/adapters.
package secondary

import (
	"context"

	"github.com/example/reproc/internal/core/entity"
)

// Query selects documents by a single field predicate. Value supports a
// trailing "*" wildcard for prefix matching on string fields. For fields
// holding lists or nested structures, a document matches when the value
// appears anywhere within the field (reverse-reference queries). Results
// are ordered by identifier.
type Query struct {
	Field   string
	Value   string
	Limit   int
	SortAsc bool
}

// EntityStore is document persistence for one entity-type namespace,
// keyed by the identifier in the document's "prepid" field. Save is an
// upsert with last-write-wins semantics; concurrency control is the
// caller's job (the lifecycle services hold the identifier lock across
// read-modify-write sequences).
type EntityStore interface {
	// Get returns the document with the given identifier, or nil when
	// absent. Absence is not an error.
	Get(ctx context.Context, id string) (entity.Document, error)
	Save(ctx context.Context, doc entity.Document) error
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, q Query) ([]entity.Document, error)
}

// StoreOpener hands out the EntityStore for a named entity-type
// namespace ("requests", "tickets", ...), creating it on first use.
type StoreOpener interface {
	Open(name string) (EntityStore, error)
}
