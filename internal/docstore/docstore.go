// Package docstore provides a generic schemaless document store: named
// collections of documents addressed by id, with get/create/update/increment
// and simple equality queries. Backends differ in what they can do atomically;
// Increment uses the backend's atomic primitive where one exists.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Update and Increment when the target document
// does not exist. Get reports absence as (nil, nil) instead.
var ErrNotFound = errors.New("docstore: document not found")

// Document is a schemaless set of fields. Values survive a round trip through
// a backend as strings, numbers, bools, nested Documents and slices; callers
// should read them back through the coercion helpers below.
type Document map[string]any

// Filter is an equality constraint on a field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from a collection. OrderBy names a field to sort
// by; Limit of 0 means no limit.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is the document store contract consumed by the analytics pipeline.
type Store interface {
	// Get returns the document, or (nil, nil) when absent.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Create writes a new document. Creating an id that already exists is a
	// no-op, which makes the ensure-exists discipline safe to retry.
	Create(ctx context.Context, collection, id string, fields Document) error

	// Update merges the given top-level fields into an existing document.
	// Returns ErrNotFound when the document is absent.
	Update(ctx context.Context, collection, id string, fields Document) error

	// Increment adds delta to a numeric field, atomically where the backend
	// supports it. The field may be a dotted path into a nested map
	// ("top_objectives.conversion"). Returns ErrNotFound when the document
	// is absent; a missing field starts from zero.
	Increment(ctx context.Context, collection, id, field string, delta int64) error

	// QueryDocs returns documents matching all filters.
	QueryDocs(ctx context.Context, collection string, q Query) ([]Document, error)
}

// ===========================================
// FIELD COERCION HELPERS
// ===========================================

// String returns the field as a string, or "" when absent.
func String(d Document, field string) string {
	if v, ok := d[field].(string); ok {
		return v
	}
	return ""
}

// Int returns the field as an int64, coercing the numeric types backends
// produce. Absent or non-numeric fields read as 0.
func Int(d Document, field string) int64 {
	switch v := d[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Float returns the field as a float64, or 0 when absent.
func Float(d Document, field string) float64 {
	switch v := d[field].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// Bool returns the field as a bool, or false when absent.
func Bool(d Document, field string) bool {
	if v, ok := d[field].(bool); ok {
		return v
	}
	return false
}

// Time returns the field as a time.Time, accepting both native times and
// RFC3339 strings. The zero time is returned when absent or unparseable.
func Time(d Document, field string) time.Time {
	switch v := d[field].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Map returns a nested map field as a Document, or an empty Document when
// absent.
func Map(d Document, field string) Document {
	switch v := d[field].(type) {
	case Document:
		return v
	case map[string]any:
		return Document(v)
	}
	return Document{}
}

// Strings returns a slice field as []string, skipping non-string elements.
func Strings(d Document, field string) []string {
	raw, ok := d[field].([]any)
	if !ok {
		if s, ok := d[field].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
