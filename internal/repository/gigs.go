package repository

import (
	"context"

	"gigbook/internal/models"
	"gigbook/internal/store"
)

type GigRepository struct {
	store store.Store
}

func NewGigRepository(s store.Store) *GigRepository {
	return &GigRepository{store: s}
}

func (r *GigRepository) Get(ctx context.Context, id string) (*models.Gig, error) {
	return get[models.Gig](ctx, r.store, CollGigs, id)
}

func (r *GigRepository) Save(ctx context.Context, gig *models.Gig) error {
	if gig.Applicants == nil {
		gig.Applicants = []models.Applicant{}
	}
	return r.store.Set(ctx, CollGigs, gig.ID, gig)
}

func (r *GigRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, CollGigs, id)
}

func (r *GigRepository) ListByVenue(ctx context.Context, venueID string) ([]models.Gig, error) {
	return query[models.Gig](ctx, r.store, CollGigs, store.Query{
		Where:   []store.Filter{{Field: "venueId", Value: venueID}},
		OrderBy: "startTime",
	})
}
