package entity

import "encoding/json"

// Document is the stored form of an entity: the JSON value tree keyed by
// field name. The identifier lives in the "prepid" field.
type Document map[string]any

// ToDocument converts a record to its stored document form through its
// JSON encoding, so the diff engine and the storage adapters see exactly
// the shape that gets persisted.
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDocument decodes a stored document into out, which must be a
// pointer to a record type.
func FromDocument(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
