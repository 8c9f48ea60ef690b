package search

import (
	"testing"
	"time"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQueryMatchAll(t *testing.T) {
	q, err := BuildQuery(&models.SearchGigsRequest{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, q)
}

func TestBuildQueryFilters(t *testing.T) {
	q, err := BuildQuery(&models.SearchGigsRequest{
		Query:  "jazz",
		From:   "2026-03-01",
		To:     "2026-03-31",
		Status: models.GigOpen,
	})
	require.NoError(t, err)

	clauses := q["bool"].(map[string]any)
	must := clauses["must"].([]map[string]any)
	require.Len(t, must, 1)
	assert.Equal(t, "jazz", must[0]["multi_match"].(map[string]any)["query"])

	filter := clauses["filter"].([]map[string]any)
	require.Len(t, filter, 2)
	window := filter[0]["range"].(map[string]any)["startTime"].(map[string]any)
	assert.Equal(t, "2026-03-01T00:00:00Z", window["gte"])
	assert.Equal(t, "2026-04-01T00:00:00Z", window["lt"])
	assert.Equal(t, map[string]any{"status": "open"}, filter[1]["term"])
}

func TestBuildQueryRejectsBadDate(t *testing.T) {
	_, err := BuildQuery(&models.SearchGigsRequest{From: "01/03/2026"})
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestPageBounds(t *testing.T) {
	page, size := pageBounds(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageSize, size)

	page, size = pageBounds(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, maxPageSize, size)
}

func TestSummarize(t *testing.T) {
	start := time.Date(2026, 3, 8, 20, 0, 0, 0, time.UTC)
	s := Summarize(&models.Gig{
		ID:         "gig-1",
		VenueID:    "venue-1",
		Title:      "Friday Jazz",
		Status:     models.GigOpen,
		Budget:     "£150",
		StartTime:  start,
		Applicants: []models.Applicant{{ID: "a"}, {ID: "b"}},
	})
	assert.Equal(t, int64(15000), s.BudgetPence)
	assert.Equal(t, 2, s.ApplicantCount)
	assert.Equal(t, start, s.StartTime)
}
