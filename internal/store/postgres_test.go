package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuery(t *testing.T) {
	query, args := buildQuery("pendingFees", Query{
		Where:   []Filter{{Field: "gigId", Value: "g1"}, {Field: "amount", Value: 500}},
		OrderBy: "createdAt",
		Limit:   10,
	}, true)

	assert.Equal(t,
		`SELECT id, data FROM documents WHERE collection = $1`+
			` AND data->>$2::text = $3 AND data->>$4::text = $5`+
			` ORDER BY data->>$6::text ASC, seq ASC LIMIT $7 FOR UPDATE`,
		query)
	assert.Equal(t, []any{"pendingFees", "gigId", "g1", "amount", "500", "createdAt", 10}, args)
}

func TestBuildQueryDefaultsToInsertionOrder(t *testing.T) {
	query, args := buildQuery("gigs", Query{Desc: true}, false)
	assert.Equal(t, `SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq DESC`, query)
	assert.Equal(t, []any{"gigs"}, args)
}
