package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	apperrors "gigbook/internal/errors"
)

type memDoc struct {
	seq  int64
	data []byte
}

// MemoryStore keeps documents in process. A transaction holds the store
// lock for its whole duration and is rolled back by restoring a snapshot.
type MemoryStore struct {
	mu    sync.Mutex
	seq   int64
	colls map[string]map[string]memDoc
}

type memTxKey struct{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{colls: make(map[string]map[string]memDoc)}
}

func (m *MemoryStore) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memTxKey{}).(*MemoryStore)
	return owner == m
}

func (m *MemoryStore) lock(ctx context.Context) func() {
	if m.inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string, dst any) error {
	defer m.lock(ctx)()

	doc, ok := m.colls[collection][id]
	if !ok {
		return notFound(collection, id)
	}
	if err := json.Unmarshal(doc.data, dst); err != nil {
		return apperrors.Internal(err, fmt.Sprintf("decode %s/%s", collection, id))
	}
	return nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Internal(err, fmt.Sprintf("encode %s/%s", collection, id))
	}

	defer m.lock(ctx)()
	m.put(collection, id, data)
	return nil
}

func (m *MemoryStore) put(collection, id string, data []byte) {
	coll, ok := m.colls[collection]
	if !ok {
		coll = make(map[string]memDoc)
		m.colls[collection] = coll
	}
	existing, ok := coll[id]
	if !ok {
		m.seq++
		existing.seq = m.seq
	}
	existing.data = data
	coll[id] = existing
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	defer m.lock(ctx)()
	delete(m.colls[collection], id)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	defer m.lock(ctx)()

	type row struct {
		seq    int64
		doc    Document
		fields map[string]any
	}

	var rows []row
	for id, d := range m.colls[collection] {
		fields := map[string]any{}
		if err := json.Unmarshal(d.data, &fields); err != nil {
			return nil, apperrors.Internal(err, fmt.Sprintf("decode %s/%s", collection, id))
		}
		if !matches(fields, q.Where) {
			continue
		}
		rows = append(rows, row{seq: d.seq, doc: Document{ID: id, Data: d.data}, fields: fields})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if q.OrderBy != "" {
			a, b := textOf(rows[i].fields[q.OrderBy]), textOf(rows[j].fields[q.OrderBy])
			if a != b {
				if q.Desc {
					return a > b
				}
				return a < b
			}
		}
		if q.Desc && q.OrderBy == "" {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].seq < rows[j].seq
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	out := make([]Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.doc)
	}
	return out, nil
}

func matches(fields map[string]any, where []Filter) bool {
	for _, f := range where {
		v, ok := fields[f.Field]
		if !ok || textOf(v) != textOf(f.Value) {
			return false
		}
	}
	return true
}

// textOf renders a value the way Postgres' ->> operator would.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%v", t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func (m *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	defer m.lock(ctx)()

	fields := map[string]json.RawMessage{}
	if doc, ok := m.colls[collection][id]; ok {
		if err := json.Unmarshal(doc.data, &fields); err != nil {
			return apperrors.Internal(err, fmt.Sprintf("decode %s/%s", collection, id))
		}
	}

	var current int64
	if raw, ok := fields[field]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &current); err != nil {
			return apperrors.Internal(err, fmt.Sprintf("field %s of %s/%s is not an integer", field, collection, id))
		}
	}

	encoded, _ := json.Marshal(current + delta)
	fields[field] = encoded
	data, err := json.Marshal(fields)
	if err != nil {
		return apperrors.Internal(err, fmt.Sprintf("encode %s/%s", collection, id))
	}
	m.put(collection, id, data)
	return nil
}

func (m *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	seq := m.seq
	if err := fn(context.WithValue(ctx, memTxKey{}, m)); err != nil {
		m.colls = snapshot
		m.seq = seq
		return err
	}
	return nil
}

// snapshot copies the collection maps. Document bytes are never mutated in
// place, so sharing them is safe.
func (m *MemoryStore) snapshot() map[string]map[string]memDoc {
	out := make(map[string]map[string]memDoc, len(m.colls))
	for name, coll := range m.colls {
		c := make(map[string]memDoc, len(coll))
		for id, d := range coll {
			c[id] = d
		}
		out[name] = c
	}
	return out
}
