// Package store is the transactional document store every collection of
// the booking core lives in. Collections are slash-separated paths such as
// "venueProfiles/v1/members".
package store

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "gigbook/internal/errors"
)

// Filter matches documents whose top-level Field equals Value. Values are
// compared by their text form, so 5, "5" and 5.0 are equal.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Where []Filter
	// OrderBy sorts by the text form of a top-level field. Empty keeps
	// insertion order.
	OrderBy string
	Desc    bool
	Limit   int
}

type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document into dst.
func (d Document) Decode(dst any) error {
	if err := json.Unmarshal(d.Data, dst); err != nil {
		return apperrors.Internal(err, fmt.Sprintf("decode document %s", d.ID))
	}
	return nil
}

// Store is implemented by PostgresStore and MemoryStore.
//
// Reads inside RunInTx lock what they read until the transaction ends.
// RunInTx may run fn more than once, so fn must not have side effects
// outside the store. Nested RunInTx calls join the outer transaction.
type Store interface {
	Get(ctx context.Context, collection, id string, dst any) error
	Set(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Increment adds delta to a numeric top-level field, creating the
	// document or field when missing.
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Exists reports whether collection/id is present.
func Exists(ctx context.Context, s Store, collection, id string) (bool, error) {
	var raw json.RawMessage
	err := s.Get(ctx, collection, id, &raw)
	if err == nil {
		return true, nil
	}
	if apperrors.CodeOf(err) == apperrors.CodeNotFound {
		return false, nil
	}
	return false, err
}

// ArrayUnion appends value to a top-level string array unless present.
func ArrayUnion(ctx context.Context, s Store, collection, id, field, value string) error {
	return updateArray(ctx, s, collection, id, field, func(items []string) []string {
		for _, it := range items {
			if it == value {
				return items
			}
		}
		return append(items, value)
	})
}

// ArrayRemove drops every occurrence of value from a top-level string array.
func ArrayRemove(ctx context.Context, s Store, collection, id, field, value string) error {
	return updateArray(ctx, s, collection, id, field, func(items []string) []string {
		out := items[:0]
		for _, it := range items {
			if it != value {
				out = append(out, it)
			}
		}
		return out
	})
}

func updateArray(ctx context.Context, s Store, collection, id, field string, fn func([]string) []string) error {
	return s.RunInTx(ctx, func(ctx context.Context) error {
		doc := map[string]json.RawMessage{}
		if err := s.Get(ctx, collection, id, &doc); err != nil {
			return err
		}

		var items []string
		if raw, ok := doc[field]; ok && string(raw) != "null" {
			if err := json.Unmarshal(raw, &items); err != nil {
				return apperrors.Internal(err, fmt.Sprintf("field %s of %s/%s is not a string array", field, collection, id))
			}
		}

		encoded, err := json.Marshal(nonNil(fn(items)))
		if err != nil {
			return apperrors.Internal(err, "encode array")
		}
		doc[field] = encoded
		return s.Set(ctx, collection, id, doc)
	})
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// Op is one unit of a chunked batch. Writes is the number of documents it
// touches.
type Op struct {
	Writes int
	Apply  func(ctx context.Context) error
}

// CommitChunked groups ops into transactions of at most limit writes and
// commits each group on its own. Chunks are not atomic with each other: on
// failure the ops of earlier chunks stay committed, and the returned count
// says how many ops that is. Ops must be safe to apply again.
func CommitChunked(ctx context.Context, s Store, ops []Op, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}

	committed := 0
	for start := 0; start < len(ops); {
		end, writes := start, 0
		for end < len(ops) && (end == start || writes+ops[end].Writes <= limit) {
			writes += ops[end].Writes
			end++
		}

		chunk := ops[start:end]
		err := s.RunInTx(ctx, func(ctx context.Context) error {
			for _, op := range chunk {
				if err := op.Apply(ctx); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return committed, err
		}

		committed += len(chunk)
		start = end
	}
	return committed, nil
}

func notFound(collection, id string) error {
	return apperrors.NotFound("%s/%s not found", collection, id)
}
