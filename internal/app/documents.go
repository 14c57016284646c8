package app

import (
	"context"
	"fmt"

	"github.com/example/reproc/internal/core/entity"
	"github.com/example/reproc/internal/models"
	"github.com/example/reproc/internal/ports/secondary"
)

// documentInto decodes a stored document into an entity value.
func documentInto(doc entity.Document, out models.Entity) error {
	if err := entity.FromDocument(doc, out); err != nil {
		return fmt.Errorf("decoding document %v: %w", doc["prepid"], err)
	}
	return nil
}

// saveEntity encodes and upserts an entity. Callers hold the entity lock.
func saveEntity(ctx context.Context, store secondary.EntityStore, obj models.Entity) error {
	doc, err := entity.ToDocument(obj)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", obj.ID(), err)
	}
	if err := store.Save(ctx, doc); err != nil {
		return fmt.Errorf("saving %s: %w", obj.ID(), err)
	}
	return nil
}
