package store

import (
	"testing"

	"github.com/example/reproc/internal/core/entity"
	"github.com/example/reproc/internal/ports/secondary"
)

func TestMatches(t *testing.T) {
	doc := entity.Document{
		"prepid":      "ReReco-Run2024A-ZeroBias-19Nov2024-00001",
		"status":      "new",
		"runs":        []any{float64(100), float64(200)},
		"total_events": float64(5000),
		"created_requests": []any{
			map[string]any{
				"chained_request": "Chain-Run2024A-ZeroBias-19Nov2024-00001",
				"requests":        []any{"ReReco-Run2024A-ZeroBias-19Nov2024-00001"},
			},
		},
	}

	for _, test := range []struct {
		name  string
		query secondary.Query
		want  bool
	}{
		{"scalar equality", secondary.Query{Field: "status", Value: "new"}, true},
		{"scalar mismatch", secondary.Query{Field: "status", Value: "done"}, false},
		{"prefix", secondary.Query{Field: "prepid", Value: "ReReco-Run2024A-*"}, true},
		{"prefix mismatch", secondary.Query{Field: "prepid", Value: "ReReco-Run2024B-*"}, false},
		{"match all", secondary.Query{Field: "prepid", Value: "*"}, true},
		{"number in list", secondary.Query{Field: "runs", Value: "200"}, true},
		{"number missing from list", secondary.Query{Field: "runs", Value: "300"}, false},
		{"number equality", secondary.Query{Field: "total_events", Value: "5000"}, true},
		{"nested membership", secondary.Query{Field: "created_requests", Value: "ReReco-Run2024A-ZeroBias-19Nov2024-00001"}, true},
		{"absent field", secondary.Query{Field: "notes", Value: "x"}, false},
	} {
		t.Run(test.name, func(t *testing.T) {
			if have := Matches(doc, test.query); have != test.want {
				t.Errorf("have %v, want %v", have, test.want)
			}
		})
	}
}

func TestFinish(t *testing.T) {
	docs := []entity.Document{
		{"prepid": "b"},
		{"prepid": "c"},
		{"prepid": "a"},
	}
	asc := Finish(append([]entity.Document(nil), docs...), secondary.Query{SortAsc: true})
	if asc[0]["prepid"] != "a" || asc[2]["prepid"] != "c" {
		t.Errorf("ascending order broken: %v", asc)
	}
	desc := Finish(append([]entity.Document(nil), docs...), secondary.Query{Limit: 1})
	if len(desc) != 1 || desc[0]["prepid"] != "c" {
		t.Errorf("descending limited result broken: %v", desc)
	}
}

func TestEscapeLike(t *testing.T) {
	if have := EscapeLike(`50%_done\x`); have != `50\%\_done\\x` {
		t.Errorf("have %q", have)
	}
}
