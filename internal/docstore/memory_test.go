package docstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreGetAbsent(t *testing.T) {
	s := NewMemoryStore()

	doc, err := s.Get(context.Background(), "things", "missing")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if doc != nil {
		t.Fatalf("got %v, want nil for absent document", doc)
	}
}

func TestMemoryStoreCreateIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Create(ctx, "things", "a", Document{"n": int64(1)}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	// Second create with different fields must not overwrite.
	if err := s.Create(ctx, "things", "a", Document{"n": int64(99)}); err != nil {
		t.Fatalf("second Create returned error: %v", err)
	}

	doc, err := s.Get(ctx, "things", "a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got := Int(doc, "n"); got != 1 {
		t.Fatalf("got n=%d, want 1", got)
	}
}

func TestMemoryStoreUpdateAbsent(t *testing.T) {
	s := NewMemoryStore()

	err := s.Update(context.Background(), "things", "missing", Document{"n": int64(1)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreIncrement(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Increment(ctx, "things", "missing", "n", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound for absent document", err)
	}

	if err := s.Create(ctx, "things", "a", Document{"n": int64(10)}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := s.Increment(ctx, "things", "a", "n", 5); err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}
	// Dotted path into a map that does not exist yet.
	if err := s.Increment(ctx, "things", "a", "counts.conversion", 2); err != nil {
		t.Fatalf("nested Increment returned error: %v", err)
	}

	doc, err := s.Get(ctx, "things", "a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got := Int(doc, "n"); got != 15 {
		t.Fatalf("got n=%d, want 15", got)
	}
	counts := Map(doc, "counts")
	if got := Int(counts, "conversion"); got != 2 {
		t.Fatalf("got counts.conversion=%d, want 2", got)
	}
}

func TestMemoryStoreQueryDocs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []Document{
		{"id": "s1", "owner": "u1", "created_at": base},
		{"id": "s2", "owner": "u2", "created_at": base.Add(time.Minute)},
		{"id": "s3", "owner": "u1", "created_at": base.Add(2 * time.Minute)},
		{"id": "s4", "owner": "u1", "created_at": base.Add(3 * time.Minute)},
	}
	for _, row := range rows {
		if err := s.Create(ctx, "sessions", String(row, "id"), row); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	got, err := s.QueryDocs(ctx, "sessions", Query{
		Filters: []Filter{{Field: "owner", Value: "u1"}},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("QueryDocs returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d documents, want 2", len(got))
	}
	if String(got[0], "id") != "s4" || String(got[1], "id") != "s3" {
		t.Fatalf("got order %s, %s, want s4, s3", String(got[0], "id"), String(got[1], "id"))
	}
}

func TestMemoryStoreCloneIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Create(ctx, "things", "a", Document{"nested": Document{"n": int64(1)}}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	doc, _ := s.Get(ctx, "things", "a")
	Map(doc, "nested")["n"] = int64(100)

	again, _ := s.Get(ctx, "things", "a")
	if got := Int(Map(again, "nested"), "n"); got != 1 {
		t.Fatalf("stored document mutated through returned copy: got %d, want 1", got)
	}
}
