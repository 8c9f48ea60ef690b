package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gigbook/internal/config"
	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"
	"gigbook/internal/money"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	dateLayout      = "2006-01-02"
)

// GigIndex mirrors gigs into Elasticsearch so they can be searched by
// title, date and status. The document store stays the source of truth.
type GigIndex struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

func NewGigIndex(cfg config.ElasticsearchConfig) (*GigIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	index := &GigIndex{client: es, config: cfg}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := index.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return index, nil
}

func (i *GigIndex) ensureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{i.config.Index}}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", i.config.Index)
		return nil
	}

	body, err := json.Marshal(indexMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: i.config.Index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", i.config.Index)
	return nil
}

func indexMapping() map[string]any {
	keyword := map[string]any{"type": "keyword"}
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":      keyword,
				"venueId": keyword,
				"title": map[string]any{
					"type":     "text",
					"analyzer": "english",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
					},
				},
				"kind":           keyword,
				"status":         keyword,
				"budget":         keyword,
				"budgetPence":    map[string]any{"type": "long"},
				"nonPayable":     map[string]any{"type": "boolean"},
				"startTime":      map[string]any{"type": "date", "format": "strict_date_optional_time||epoch_millis"},
				"applicantCount": map[string]any{"type": "integer"},
				"updatedAt":      map[string]any{"type": "date"},
			},
		},
	}
}

// Summarize builds the indexed view of gig.
func Summarize(gig *models.Gig) models.GigSummary {
	pence, err := money.ParseFee(gig.Budget)
	if err != nil {
		pence = 0
	}
	return models.GigSummary{
		ID:             gig.ID,
		VenueID:        gig.VenueID,
		Title:          gig.Title,
		Kind:           gig.Kind,
		Status:         gig.Status,
		Budget:         gig.Budget,
		BudgetPence:    pence,
		NonPayable:     gig.NonPayable,
		StartTime:      gig.StartTime,
		ApplicantCount: len(gig.Applicants),
		UpdatedAt:      gig.UpdatedAt,
	}
}

// IndexGig writes the current state of gig to the index.
func (i *GigIndex) IndexGig(ctx context.Context, gig *models.Gig) error {
	body, err := json.Marshal(Summarize(gig))
	if err != nil {
		return fmt.Errorf("failed to marshal gig: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      i.config.Index,
		DocumentID: gig.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to index gig: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

// DeleteGig removes a gig from the index. A gig that was never indexed is
// not an error.
func (i *GigIndex) DeleteGig(ctx context.Context, gigID string) error {
	res, err := esapi.DeleteRequest{
		Index:      i.config.Index,
		DocumentID: gigID,
		Refresh:    "wait_for",
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to delete gig: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

// Search runs a paged query against the index.
func (i *GigIndex) Search(ctx context.Context, req *models.SearchGigsRequest) (*models.SearchGigsResponse, error) {
	query, err := BuildQuery(req)
	if err != nil {
		return nil, err
	}
	page, size := pageBounds(req.Page, req.PageSize)

	body, err := json.Marshal(map[string]any{
		"query":            query,
		"sort":             buildSort(req.Query),
		"from":             (page - 1) * size,
		"size":             size,
		"track_total_hits": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{i.config.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.GigSummary `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	gigs := make([]models.GigSummary, len(response.Hits.Hits))
	for n, hit := range response.Hits.Hits {
		gigs[n] = hit.Source
	}

	return &models.SearchGigsResponse{
		Gigs:     gigs,
		Total:    response.Hits.Total.Value,
		Page:     page,
		PageSize: size,
	}, nil
}

// HealthCheck waits briefly for the cluster to report at least yellow.
func (i *GigIndex) HealthCheck(ctx context.Context) error {
	res, err := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}

// BuildQuery turns the request filters into an Elasticsearch bool query.
// Malformed dates are rejected as invalid arguments.
func BuildQuery(req *models.SearchGigsRequest) (map[string]any, error) {
	var must, filter []map[string]any

	if req.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":     req.Query,
				"fields":    []string{"title^2", "kind"},
				"fuzziness": "AUTO",
			},
		})
	}

	if req.From != "" || req.To != "" {
		window := map[string]any{}
		if req.From != "" {
			from, err := time.Parse(dateLayout, req.From)
			if err != nil {
				return nil, apperrors.InvalidArgument("from must be YYYY-MM-DD")
			}
			window["gte"] = from.Format(time.RFC3339)
		}
		if req.To != "" {
			to, err := time.Parse(dateLayout, req.To)
			if err != nil {
				return nil, apperrors.InvalidArgument("to must be YYYY-MM-DD")
			}
			window["lt"] = to.AddDate(0, 0, 1).Format(time.RFC3339)
		}
		filter = append(filter, map[string]any{
			"range": map[string]any{"startTime": window},
		})
	}

	if req.Status != "" {
		filter = append(filter, map[string]any{
			"term": map[string]any{"status": string(req.Status)},
		})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]any{"match_all": map[string]any{}}, nil
	}

	clauses := map[string]any{}
	if len(must) > 0 {
		clauses["must"] = must
	}
	if len(filter) > 0 {
		clauses["filter"] = filter
	}
	return map[string]any{"bool": clauses}, nil
}

func buildSort(query string) []map[string]any {
	if query != "" {
		return []map[string]any{
			{"_score": map[string]any{"order": "desc"}},
			{"startTime": map[string]any{"order": "asc"}},
		}
	}
	return []map[string]any{
		{"startTime": map[string]any{"order": "asc"}},
		{"id": map[string]any{"order": "asc"}},
	}
}

func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
