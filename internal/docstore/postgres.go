package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on PostgreSQL. All collections share one
// table with a jsonb payload; Update shallow-merges with the || operator and
// Increment is a single atomic UPDATE via jsonb_set, so counters never go
// through a client-side read-modify-write.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed document store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the documents table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS documents_data_idx
		ON documents USING gin (data jsonb_path_ops)
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM documents WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&raw)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Create(ctx context.Context, collection, id string, fields Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO NOTHING
	`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("failed to create %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET data = data || $3::jsonb
		WHERE collection = $1 AND id = $2
	`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	path := strings.Split(field, ".")

	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET data = jsonb_set(data, $3::text[],
			to_jsonb(COALESCE((data #>> $3::text[])::bigint, 0) + $4), true)
		WHERE collection = $1 AND id = $2
	`, collection, id, path, delta)
	if err != nil {
		return fmt.Errorf("failed to increment %s/%s.%s: %w", collection, id, field, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) QueryDocs(ctx context.Context, collection string, q Query) ([]Document, error) {
	sql := `SELECT data FROM documents WHERE collection = $1`
	args := []any{collection}

	for _, f := range q.Filters {
		probe, err := filterProbe(f)
		if err != nil {
			return nil, err
		}
		args = append(args, probe)
		sql += fmt.Sprintf(" AND data @> $%d::jsonb", len(args))
	}

	if q.OrderBy != "" {
		// RFC3339 timestamps sort chronologically as text.
		sql += fmt.Sprintf(" ORDER BY data->>'%s'", strings.ReplaceAll(q.OrderBy, "'", ""))
		if q.Desc {
			sql += " DESC"
		}
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// filterProbe builds the jsonb containment probe for an equality filter,
// nesting dotted field paths.
func filterProbe(f Filter) ([]byte, error) {
	parts := strings.Split(f.Field, ".")
	probe := map[string]any{parts[len(parts)-1]: f.Value}
	for i := len(parts) - 2; i >= 0; i-- {
		probe = map[string]any{parts[i]: probe}
	}
	raw, err := json.Marshal(probe)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter on %s: %w", f.Field, err)
	}
	return raw, nil
}
