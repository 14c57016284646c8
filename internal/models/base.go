// Package models contains the persisted record types shared by the
// lifecycle services, the storage adapters and the transport layers.
// The JSON tags define the stored document shape.
package models

import "strings"

// HistoryEntry is one audit record. History is append-only: entries are
// never rewritten or removed once persisted.
type HistoryEntry struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
	Time   int64  `json:"time"`
}

// Entity is implemented by every record type managed by a lifecycle service.
type Entity interface {
	// ID returns the unique identifier. It is assigned exactly once,
	// at creation, and never changes afterwards.
	ID() string
	GetHistory() []HistoryEntry
	SetHistory([]HistoryEntry)
	AddHistory(action string, data any, at int64)
}

// Base carries the fields common to all entities and implements Entity.
// Embed it into concrete record types.
type Base struct {
	PrepID  string         `json:"prepid"`
	History []HistoryEntry `json:"history"`
}

func (b *Base) ID() string { return b.PrepID }

func (b *Base) GetHistory() []HistoryEntry { return b.History }

func (b *Base) SetHistory(h []HistoryEntry) { b.History = h }

// AddHistory appends an audit entry with the given unix timestamp.
func (b *Base) AddHistory(action string, data any, at int64) {
	b.History = append(b.History, HistoryEntry{Action: action, Data: data, Time: at})
}

// ParseInputDataset splits a dataset name of the form
// "/{dataset}/{era}-{version}/{tier}" into its dataset and era parts.
func ParseInputDataset(name string) (dataset, era string, ok bool) {
	var parts []string
	for _, p := range strings.Split(name, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", "", false
	}
	dataset = parts[0]
	era = strings.SplitN(parts[1], "-", 2)[0]
	return dataset, era, true
}

// PrimaryDataset returns the dataset part of an input dataset name,
// used for blacklist checks.
func PrimaryDataset(name string) string {
	dataset, _, _ := ParseInputDataset(name)
	return dataset
}
