package repository

import (
	"context"

	"gigbook/internal/models"
	"gigbook/internal/store"
)

type PendingFeeRepository struct {
	store store.Store
}

func NewPendingFeeRepository(s store.Store) *PendingFeeRepository {
	return &PendingFeeRepository{store: s}
}

func (r *PendingFeeRepository) Get(ctx context.Context, id string) (*models.PendingFee, error) {
	return get[models.PendingFee](ctx, r.store, CollPendingFees, id)
}

func (r *PendingFeeRepository) Save(ctx context.Context, fee *models.PendingFee) error {
	return r.store.Set(ctx, CollPendingFees, fee.ID, fee)
}

// ListByGig returns the fees of one performer's booking of a gig.
func (r *PendingFeeRepository) ListByGig(ctx context.Context, gigID, performerID string) ([]models.PendingFee, error) {
	return query[models.PendingFee](ctx, r.store, CollPendingFees, store.Query{
		Where: []store.Filter{
			{Field: "gigId", Value: gigID},
			{Field: "performerId", Value: performerID},
		},
	})
}

func (r *PendingFeeRepository) ListPendingByGig(ctx context.Context, gigID, performerID string) ([]models.PendingFee, error) {
	return query[models.PendingFee](ctx, r.store, CollPendingFees, store.Query{
		Where: []store.Filter{
			{Field: "gigId", Value: gigID},
			{Field: "performerId", Value: performerID},
			{Field: "status", Value: models.FeePending},
		},
	})
}

// ListPending returns every pending fee, oldest clearing time first.
func (r *PendingFeeRepository) ListPending(ctx context.Context, limit int) ([]models.PendingFee, error) {
	return query[models.PendingFee](ctx, r.store, CollPendingFees, store.Query{
		Where:   []store.Filter{{Field: "status", Value: models.FeePending}},
		OrderBy: "disputeClearingTime",
		Limit:   limit,
	})
}

func (r *PendingFeeRepository) ListByPerformer(ctx context.Context, performerID string) ([]models.PendingFee, error) {
	return query[models.PendingFee](ctx, r.store, CollPendingFees, store.Query{
		Where:   []store.Filter{{Field: "performerId", Value: performerID}},
		OrderBy: "createdAt",
		Desc:    true,
	})
}

type DisputeRepository struct {
	store store.Store
}

func NewDisputeRepository(s store.Store) *DisputeRepository {
	return &DisputeRepository{store: s}
}

func (r *DisputeRepository) Get(ctx context.Context, id string) (*models.Dispute, error) {
	return get[models.Dispute](ctx, r.store, CollDisputes, id)
}

func (r *DisputeRepository) Save(ctx context.Context, d *models.Dispute) error {
	return r.store.Set(ctx, CollDisputes, d.ID, d)
}

type PaymentRepository struct {
	store store.Store
}

func NewPaymentRepository(s store.Store) *PaymentRepository {
	return &PaymentRepository{store: s}
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*models.Payment, error) {
	return get[models.Payment](ctx, r.store, CollPayments, id)
}

func (r *PaymentRepository) Save(ctx context.Context, p *models.Payment) error {
	return r.store.Set(ctx, CollPayments, p.ID, p)
}
