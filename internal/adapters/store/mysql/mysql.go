// Package mysql is the MySQL document store backend. Each namespace
// gets its own table with a JSON document column; field queries use
// JSON_EXTRACT for scalar fields and JSON_SEARCH for values nested in
// lists or objects.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/example/reproc/internal/adapters/store"
	"github.com/example/reproc/internal/core/entity"
	"github.com/example/reproc/internal/ports/secondary"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Opener hands out table-backed stores on a shared MySQL database.
type Opener struct {
	db     *sql.DB
	mu     sync.Mutex
	stores map[string]*Store
}

// NewOpener connects with the given DSN.
func NewOpener(dsn string) (*Opener, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
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
		`CREATE TABLE IF NOT EXISTS %s (prepid VARCHAR(255) PRIMARY KEY, doc JSON NOT NULL)`, name,
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
		 ON DUPLICATE KEY UPDATE doc = VALUES(doc)`, s.table,
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

// Query implements secondary.EntityStore. The scalar comparison covers
// plain fields; JSON_SEARCH covers string values nested in lists or
// objects under the field.
func (s *Store) Query(ctx context.Context, q secondary.Query) ([]entity.Document, error) {
	var where string
	var args []any
	if hasWildcard(q.Value) {
		pattern := store.EscapeLike(trimWildcard(q.Value)) + "%"
		where = `(JSON_UNQUOTE(JSON_EXTRACT(doc, CONCAT('$.', ?))) LIKE ?
		          OR JSON_SEARCH(doc, 'one', ?, NULL, CONCAT('$.', ?)) IS NOT NULL)`
		args = []any{q.Field, pattern, pattern, q.Field}
	} else {
		where = `(JSON_UNQUOTE(JSON_EXTRACT(doc, CONCAT('$.', ?))) = ?
		          OR JSON_SEARCH(doc, 'one', ?, NULL, CONCAT('$.', ?)) IS NOT NULL)`
		args = []any{q.Field, q.Value, store.EscapeLike(q.Value), q.Field}
	}
	order := "DESC"
	if q.SortAsc {
		order = "ASC"
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY prepid %s`, s.table, where, order)
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
