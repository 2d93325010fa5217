package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Each document is a hash
// ("doc:<collection>:<id>"); nested maps are flattened into dotted hash
// fields so counters inside them stay addressable by HINCRBY, which gives
// atomic increments without read-modify-write. A per-collection sorted set
// ("doc:<collection>:ids", scored by insertion time) drives queries; filters
// are applied client-side, so queries suit the modest per-user volumes of
// duplicate checks and history listings rather than full scans.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed document store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func (s *RedisStore) indexKey(collection string) string {
	return "doc:" + collection + ":ids"
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (Document, error) {
	fields, err := s.client.HGetAll(ctx, s.docKey(collection, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", collection, id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return unflatten(fields), nil
}

func (s *RedisStore) Create(ctx context.Context, collection, id string, fields Document) error {
	key := s.docKey(collection, id)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis create %s/%s: %w", collection, id, err)
	}
	if exists > 0 {
		return nil
	}

	flat := flatten("", fields)
	pipe := s.client.TxPipeline()
	if len(flat) > 0 {
		pipe.HSet(ctx, key, flat)
	} else {
		// A document with no scalar fields still has to exist for later
		// increments; keep a marker field out of band.
		pipe.HSet(ctx, key, "_created", time.Now().UTC().Format(time.RFC3339Nano))
	}
	pipe.ZAdd(ctx, s.indexKey(collection), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis create %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, collection, id string, fields Document) error {
	key := s.docKey(collection, id)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis update %s/%s: %w", collection, id, err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	flat := flatten("", fields)
	if len(flat) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, key, flat).Err(); err != nil {
		return fmt.Errorf("redis update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	key := s.docKey(collection, id)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis increment %s/%s: %w", collection, id, err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	if err := s.client.HIncrBy(ctx, key, field, delta).Err(); err != nil {
		return fmt.Errorf("redis increment %s/%s.%s: %w", collection, id, field, err)
	}
	return nil
}

func (s *RedisStore) QueryDocs(ctx context.Context, collection string, q Query) ([]Document, error) {
	idxKey := s.indexKey(collection)

	var ids []string
	var err error
	if q.Desc {
		ids, err = s.client.ZRevRange(ctx, idxKey, 0, -1).Result()
	} else {
		ids, err = s.client.ZRange(ctx, idxKey, 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("redis query %s: %w", collection, err)
	}

	matched := make([]Document, 0)
	for _, id := range ids {
		doc, err := s.Get(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		if !matchesFilters(doc, q.Filters) {
			continue
		}
		matched = append(matched, doc)
		// Insertion order tracks created_at, so when that is also the sort
		// key the limit can short-circuit the scan.
		if q.Limit > 0 && len(matched) >= q.Limit && (q.OrderBy == "" || q.OrderBy == "created_at") {
			return matched, nil
		}
	}

	if q.OrderBy != "" && q.OrderBy != "created_at" {
		sortDocs(matched, q.OrderBy, q.Desc)
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// ===========================================
// HASH FIELD ENCODING
// ===========================================

// flatten turns a document into hash field/value pairs. Nested maps become
// dotted field names; scalars are stored so that integers remain HINCRBY
// compatible and everything else round-trips through JSON.
func flatten(prefix string, fields Document) map[string]any {
	out := make(map[string]any)
	for k, v := range fields {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		switch val := v.(type) {
		case Document:
			for fk, fv := range flatten(name, val) {
				out[fk] = fv
			}
		case map[string]any:
			for fk, fv := range flatten(name, Document(val)) {
				out[fk] = fv
			}
		case map[string]int64:
			for mk, mv := range val {
				out[name+"."+mk] = strconv.FormatInt(mv, 10)
			}
		case int:
			out[name] = strconv.Itoa(val)
		case int64:
			out[name] = strconv.FormatInt(val, 10)
		case float64:
			out[name] = strconv.FormatFloat(val, 'g', -1, 64)
		case string:
			out[name] = encodeJSON(val)
		case bool:
			out[name] = strconv.FormatBool(val)
		case time.Time:
			out[name] = encodeJSON(val.UTC().Format(time.RFC3339Nano))
		default:
			out[name] = encodeJSON(val)
		}
	}
	return out
}

// unflatten rebuilds a nested document from dotted hash fields.
func unflatten(fields map[string]string) Document {
	doc := Document{}
	for name, raw := range fields {
		if name == "_created" {
			continue
		}
		parts := strings.Split(name, ".")
		target := doc
		for _, p := range parts[:len(parts)-1] {
			next, ok := target[p].(Document)
			if !ok {
				next = Document{}
				target[p] = next
			}
			target = next
		}
		target[parts[len(parts)-1]] = decodeValue(raw)
	}
	return doc
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
