// Package storetest exercises the document store contract. Each backend
// calls TestEntityStore from its own test with a fresh store.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reproc/internal/core/entity"
	"github.com/example/reproc/internal/ports/secondary"
)

// TestEntityStore runs the contract tests against an empty store.
func TestEntityStore(t *testing.T, s secondary.EntityStore) {
	ctx := context.Background()

	doc, err := s.Get(ctx, "ReReco-Run2024A-ZeroBias-19Nov2024-00001")
	require.NoError(t, err)
	require.Nil(t, doc, "absent document must read as nil")

	docs := []entity.Document{
		{
			"prepid":      "ReReco-Run2024A-ZeroBias-19Nov2024-00001",
			"status":      "new",
			"subcampaign": "Run2024A_19Nov2024",
			"runs":        []any{float64(100), float64(200)},
		},
		{
			"prepid":      "ReReco-Run2024A-ZeroBias-19Nov2024-00002",
			"status":      "approved",
			"subcampaign": "Run2024A_19Nov2024",
		},
		{
			"prepid":      "ReReco-Run2024B-Muon-19Nov2024-00001",
			"status":      "new",
			"subcampaign": "Run2024B_19Nov2024",
			"created_requests": []any{
				map[string]any{
					"chained_request": "Chain-Run2024B-Muon-19Nov2024-00001",
					"requests":        []any{"ReReco-Run2024B-Muon-19Nov2024-00001"},
				},
			},
		},
	}
	for _, doc := range docs {
		require.NoError(t, s.Save(ctx, doc))
	}

	t.Run("get", func(t *testing.T) {
		doc, err := s.Get(ctx, "ReReco-Run2024A-ZeroBias-19Nov2024-00002")
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, "approved", doc["status"])
	})

	t.Run("upsert", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, entity.Document{
			"prepid": "ReReco-Run2024A-ZeroBias-19Nov2024-00002",
			"status": "submitting",
		}))
		doc, err := s.Get(ctx, "ReReco-Run2024A-ZeroBias-19Nov2024-00002")
		require.NoError(t, err)
		assert.Equal(t, "submitting", doc["status"])
	})

	t.Run("query equality", func(t *testing.T) {
		found, err := s.Query(ctx, secondary.Query{Field: "subcampaign", Value: "Run2024B_19Nov2024"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "ReReco-Run2024B-Muon-19Nov2024-00001", found[0]["prepid"])
	})

	t.Run("query prefix", func(t *testing.T) {
		found, err := s.Query(ctx, secondary.Query{
			Field:   "prepid",
			Value:   "ReReco-Run2024A-ZeroBias-19Nov2024-*",
			SortAsc: true,
		})
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "ReReco-Run2024A-ZeroBias-19Nov2024-00001", found[0]["prepid"], "ascending order")
	})

	t.Run("query newest first", func(t *testing.T) {
		found, err := s.Query(ctx, secondary.Query{
			Field: "prepid",
			Value: "ReReco-Run2024A-ZeroBias-19Nov2024-*",
			Limit: 1,
		})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "ReReco-Run2024A-ZeroBias-19Nov2024-00002", found[0]["prepid"], "descending order")
	})

	t.Run("query nested membership", func(t *testing.T) {
		found, err := s.Query(ctx, secondary.Query{
			Field: "created_requests",
			Value: "ReReco-Run2024B-Muon-19Nov2024-00001",
		})
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("query no match", func(t *testing.T) {
		found, err := s.Query(ctx, secondary.Query{Field: "status", Value: "done"})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "ReReco-Run2024B-Muon-19Nov2024-00001"))
		doc, err := s.Get(ctx, "ReReco-Run2024B-Muon-19Nov2024-00001")
		require.NoError(t, err)
		assert.Nil(t, doc, "document still present after delete")
	})
}
