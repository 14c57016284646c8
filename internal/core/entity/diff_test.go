package entity

import (
	"reflect"
	"testing"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name      string
		reference any
		target    any
		want      []string
	}{
		{
			name:      "equal documents produce no changes",
			reference: map[string]any{"a": 1.0, "b": []any{1.0, 2.0}},
			target:    map[string]any{"a": 1.0, "b": []any{1.0, 2.0}},
			want:      nil,
		},
		{
			name:      "changed scalar",
			reference: map[string]any{"a": 1.0, "b": []any{1.0, 2.0}},
			target:    map[string]any{"a": 2.0, "b": []any{1.0, 2.0}},
			want:      []string{"a"},
		},
		{
			name:      "list length mismatch reports whole path",
			reference: map[string]any{"a": []any{1.0, 2.0}},
			target:    map[string]any{"a": []any{1.0, 2.0, 3.0}},
			want:      []string{"a"},
		},
		{
			name:      "list element change reports indexed path",
			reference: map[string]any{"a": []any{1.0, 2.0}},
			target:    map[string]any{"a": []any{1.0, 3.0}},
			want:      []string{"a_1"},
		},
		{
			name: "nested object field",
			reference: map[string]any{
				"outer": map[string]any{"inner": "x", "same": true},
			},
			target: map[string]any{
				"outer": map[string]any{"inner": "y", "same": true},
			},
			want: []string{"outer.inner"},
		},
		{
			name: "nested list of objects",
			reference: map[string]any{
				"seqs": []any{
					map[string]any{"conditions": "old"},
					map[string]any{"conditions": "keep"},
				},
			},
			target: map[string]any{
				"seqs": []any{
					map[string]any{"conditions": "new"},
					map[string]any{"conditions": "keep"},
				},
			},
			want: []string{"seqs_0.conditions"},
		},
		{
			name:      "keys only in target are not reported",
			reference: map[string]any{"a": 1.0},
			target:    map[string]any{"a": 1.0, "added": "value"},
			want:      nil,
		},
		{
			name:      "key missing from target is reported",
			reference: map[string]any{"a": 1.0, "removed": "value"},
			target:    map[string]any{"a": 1.0},
			want:      []string{"removed"},
		},
		{
			name:      "type change is a value change",
			reference: map[string]any{"a": []any{1.0}},
			target:    map[string]any{"a": "no longer a list"},
			want:      []string{"a"},
		},
		{
			name:      "multiple changes in traversal order",
			reference: map[string]any{"b": 1.0, "a": 1.0, "c": 1.0},
			target:    map[string]any{"b": 2.0, "a": 2.0, "c": 1.0},
			want:      []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.reference, tt.target)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiffRoundTripThroughDocuments(t *testing.T) {
	type record struct {
		PrepID string `json:"prepid"`
		Runs   []int  `json:"runs"`
	}

	old, err := ToDocument(&record{PrepID: "X", Runs: []int{1, 2}})
	if err != nil {
		t.Fatalf("ToDocument() error = %v", err)
	}
	updated, err := ToDocument(&record{PrepID: "X", Runs: []int{1, 3}})
	if err != nil {
		t.Fatalf("ToDocument() error = %v", err)
	}

	got := Diff(old, updated)
	want := []string{"runs_1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Diff() = %v, want %v", got, want)
	}
}
