// Package sqlite is the SQLite document store backend. Each namespace
// gets its own table holding the identifier and the JSON document;
// field queries go through the json1 functions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/reproc/internal/adapters/store"
	"github.com/example/reproc/internal/core/entity"
	"github.com/example/reproc/internal/ports/secondary"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Opener hands out table-backed stores on a shared SQLite database.
type Opener struct {
	db     *sql.DB
	mu     sync.Mutex
	stores map[string]*Store
}

// NewOpener opens the SQLite database at path, creating it if needed.
func NewOpener(path string) (*Opener, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	return &Opener{db: db, stores: make(map[string]*Store)}, nil
}

// Open implements secondary.StoreOpener.
func (o *Opener) Open(name string) (secondary.EntityStore, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid namespace name %q", name)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.stores[name]
	if ok {
		return s, nil
	}
	_, err := o.db.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (prepid TEXT PRIMARY KEY, doc TEXT NOT NULL)`, name,
	))
	if err != nil {
		return nil, fmt.Errorf("creating table %s: %w", name, err)
	}
	s = &Store{db: o.db, table: name}
	o.stores[name] = s
	return s, nil
}

func (o *Opener) Close() error {
	return o.db.Close()
}

// Store is one namespace table.
type Store struct {
	db    *sql.DB
	table string
}

// Get implements secondary.EntityStore.
func (s *Store) Get(ctx context.Context, id string) (entity.Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE prepid = ?`, s.table), id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting document %s: %w", id, err)
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
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (prepid, doc) VALUES (?, ?)
		 ON CONFLICT(prepid) DO UPDATE SET doc = excluded.doc`, s.table,
	), id, raw)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", id, err)
	}
	return nil
}

// Delete implements secondary.EntityStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE prepid = ?`, s.table), id,
	)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

// Query implements secondary.EntityStore. json_tree flattens the
// queried field, so the same predicate covers scalar fields and values
// nested in lists or objects.
func (s *Store) Query(ctx context.Context, q secondary.Query) ([]entity.Document, error) {
	var where string
	var arg string
	if hasWildcard(q.Value) {
		where = `EXISTS (SELECT 1 FROM json_tree(doc, '$.' || ?) WHERE CAST(atom AS TEXT) LIKE ? ESCAPE '\')`
		arg = store.EscapeLike(trimWildcard(q.Value)) + "%"
	} else {
		where = `EXISTS (SELECT 1 FROM json_tree(doc, '$.' || ?) WHERE CAST(atom AS TEXT) = ?)`
		arg = q.Value
	}
	order := "DESC"
	if q.SortAsc {
		order = "ASC"
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY prepid %s`, s.table, where, order)
	args := []any{q.Field, arg}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s by %s: %w", s.table, q.Field, err)
	}
	defer rows.Close()

	var docs []entity.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying %s by %s: %w", s.table, q.Field, err)
	}
	return docs, nil
}

func hasWildcard(value string) bool {
	return len(value) > 0 && value[len(value)-1] == '*'
}

func trimWildcard(value string) string {
	return value[:len(value)-1]
}

func decode(raw []byte) (entity.Document, error) {
	var doc entity.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}
