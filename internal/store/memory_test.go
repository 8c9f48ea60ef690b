package store

import (
	"context"
	"errors"
	"testing"

	apperrors "gigbook/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func TestMemoryStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var got doc
	err := s.Get(ctx, "gigs", "g1", &got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, s.Set(ctx, "gigs", "g1", doc{Name: "Friday"}))
	require.NoError(t, s.Get(ctx, "gigs", "g1", &got))
	assert.Equal(t, "Friday", got.Name)

	require.NoError(t, s.Delete(ctx, "gigs", "g1"))
	ok, err := Exists(ctx, s, "gigs", "g1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreRollsBackFailedTransaction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "users", "u1", doc{Name: "a", Count: 10}))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Increment(ctx, "users", "u1", "count", -4))
		require.NoError(t, s.Set(ctx, "users", "u2", doc{Name: "b"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var got doc
	require.NoError(t, s.Get(ctx, "users", "u1", &got))
	assert.Equal(t, int64(10), got.Count)
	ok, err := Exists(ctx, s, "users", "u2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreNestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			return s.Set(ctx, "gigs", "g1", doc{Name: "nested"})
		})
	})
	require.NoError(t, err)

	var got doc
	require.NoError(t, s.Get(ctx, "gigs", "g1", &got))
	assert.Equal(t, "nested", got.Name)
}

func TestMemoryStoreIncrementCreatesMissingDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Increment(ctx, "users", "u1", "count", 250))
	require.NoError(t, s.Increment(ctx, "users", "u1", "count", -100))

	var got doc
	require.NoError(t, s.Get(ctx, "users", "u1", &got))
	assert.Equal(t, int64(150), got.Count)
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "fees", "c", doc{Name: "c", Status: "pending"}))
	require.NoError(t, s.Set(ctx, "fees", "a", doc{Name: "a", Status: "cleared"}))
	require.NoError(t, s.Set(ctx, "fees", "b", doc{Name: "b", Status: "pending"}))

	docs, err := s.Query(ctx, "fees", Query{Where: []Filter{{Field: "status", Value: "pending"}}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0].ID, "insertion order without OrderBy")
	assert.Equal(t, "b", docs[1].ID)

	docs, err = s.Query(ctx, "fees", Query{OrderBy: "name", Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)

	var decoded doc
	require.NoError(t, docs[0].Decode(&decoded))
	assert.Equal(t, "cleared", decoded.Status)
}

func TestArrayUnionAndRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "venueProfiles", "v1", map[string]any{"name": "Hall"}))

	require.NoError(t, ArrayUnion(ctx, s, "venueProfiles", "v1", "gigs", "g1"))
	require.NoError(t, ArrayUnion(ctx, s, "venueProfiles", "v1", "gigs", "g2"))
	require.NoError(t, ArrayUnion(ctx, s, "venueProfiles", "v1", "gigs", "g1"))

	var got struct {
		Name string   `json:"name"`
		Gigs []string `json:"gigs"`
	}
	require.NoError(t, s.Get(ctx, "venueProfiles", "v1", &got))
	assert.Equal(t, []string{"g1", "g2"}, got.Gigs)

	require.NoError(t, ArrayRemove(ctx, s, "venueProfiles", "v1", "gigs", "g1"))
	require.NoError(t, s.Get(ctx, "venueProfiles", "v1", &got))
	assert.Equal(t, []string{"g2"}, got.Gigs)
	assert.Equal(t, "Hall", got.Name)
}

func TestCommitChunked(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var ops []Op
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		id := id
		ops = append(ops, Op{Writes: 2, Apply: func(ctx context.Context) error {
			return s.Set(ctx, "fees", id, doc{Name: id})
		}})
	}

	n, err := CommitChunked(ctx, s, ops, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	docs, err := s.Query(ctx, "fees", Query{})
	require.NoError(t, err)
	assert.Len(t, docs, 5)
}

func TestCommitChunkedKeepsEarlierChunks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	ops := []Op{
		{Writes: 1, Apply: func(ctx context.Context) error { return s.Set(ctx, "fees", "a", doc{}) }},
		{Writes: 1, Apply: func(ctx context.Context) error { return s.Set(ctx, "fees", "b", doc{}) }},
		{Writes: 1, Apply: func(ctx context.Context) error { return s.Set(ctx, "fees", "c", doc{}) }},
		{Writes: 1, Apply: func(ctx context.Context) error { return boom }},
	}

	n, err := CommitChunked(ctx, s, ops, 2)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)

	for id, want := range map[string]bool{"a": true, "b": true, "c": false} {
		ok, err := Exists(ctx, s, "fees", id)
		require.NoError(t, err)
		assert.Equal(t, want, ok, id)
	}
}
