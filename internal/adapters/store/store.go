// Package store holds the shared query semantics of the document store
// backends. The in-memory and disk backends evaluate queries with
// Matches; the SQL backends translate the same semantics into JSON
// functions of their dialect.
package store

import (
	"sort"
	"strconv"
	"strings"

	"github.com/example/reproc/internal/core/entity"
	"github.com/example/reproc/internal/ports/secondary"
)

// Matches reports whether doc satisfies the query predicate. A value
// with a trailing "*" matches string fields by prefix. For fields
// holding lists or nested structures the document matches when the
// value appears anywhere within the field.
func Matches(doc entity.Document, q secondary.Query) bool {
	field, ok := doc[q.Field]
	if !ok {
		return false
	}
	want := q.Value
	prefix := strings.HasSuffix(want, "*")
	if prefix {
		want = strings.TrimSuffix(want, "*")
	}
	return contains(field, want, prefix)
}

func contains(v any, want string, prefix bool) bool {
	switch t := v.(type) {
	case string:
		if prefix {
			return strings.HasPrefix(t, want)
		}
		return t == want
	case float64:
		// JSON numbers decode as float64; integers format cleanly.
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if prefix {
			return strings.HasPrefix(s, want)
		}
		return s == want
	case bool:
		return !prefix && strconv.FormatBool(t) == want
	case []any:
		for _, item := range t {
			if contains(item, want, prefix) {
				return true
			}
		}
	case map[string]any:
		for _, item := range t {
			if contains(item, want, prefix) {
				return true
			}
		}
	case entity.Document:
		for _, item := range t {
			if contains(item, want, prefix) {
				return true
			}
		}
	}
	return false
}

// Finish orders matched documents by identifier and applies the limit.
func Finish(docs []entity.Document, q secondary.Query) []entity.Document {
	sort.Slice(docs, func(i, j int) bool {
		a, _ := docs[i]["prepid"].(string)
		b, _ := docs[j]["prepid"].(string)
		if q.SortAsc {
			return a < b
		}
		return a > b
	})
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// EscapeLike escapes the SQL LIKE wildcards in a literal value. Both
// SQL backends use '\' as the escape character.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
