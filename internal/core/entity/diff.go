// Package entity contains the pure document machinery shared by all
// lifecycle services: the structural diff engine and the conversion
// between record types and their stored document form.
package entity

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Diff recursively compares two document values and returns the paths of
// the fields whose values differ, in schema traversal order. An empty
// result means the documents are equal and an update is a no-op.
//
// Comparison rules:
//   - two objects recurse key-by-key over the reference's keys; keys
//     present only in the target are not inspected (the asymmetry is
//     deliberate and callers rely on it),
//   - two lists of different length report the whole path; equal lengths
//     recurse element-by-element with an "_index" suffix,
//   - anything else is compared by value.
func Diff(reference, target any) []string {
	return diffValue(reference, target, "", nil)
}

func diffValue(reference, target any, prefix string, changed []string) []string {
	switch ref := reference.(type) {
	case map[string]any:
		if tgt, ok := target.(map[string]any); ok {
			keys := make([]string, 0, len(ref))
			for key := range ref {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				changed = diffValue(ref[key], tgt[key], prefix+"."+key, changed)
			}
			return changed
		}
	case []any:
		if tgt, ok := target.([]any); ok {
			if len(ref) != len(tgt) {
				return append(changed, trimPath(prefix))
			}
			for i := range ref {
				changed = diffValue(ref[i], tgt[i], fmt.Sprintf("%s_%d", prefix, i), changed)
			}
			return changed
		}
	}

	if !reflect.DeepEqual(reference, target) {
		changed = append(changed, trimPath(prefix))
	}
	return changed
}

func trimPath(prefix string) string {
	return strings.TrimLeft(strings.TrimLeft(prefix, "."), "_")
}
