package repository

import (
	"context"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"
	"gigbook/internal/store"
)

type UserRepository struct {
	store store.Store
}

func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{store: s}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	return get[models.User](ctx, r.store, CollUsers, id)
}

func (r *UserRepository) Save(ctx context.Context, u *models.User) error {
	return r.store.Set(ctx, CollUsers, u.ID, u)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := query[models.User](ctx, r.store, CollUsers, store.Query{
		Where: []store.Filter{{Field: "email", Value: email}},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apperrors.NotFound("no user with email %s", email)
	}
	return &users[0], nil
}

// AdjustBalance adds delta pence to one ledger field. It must run inside
// the transaction that changes the fee the balance reflects.
func (r *UserRepository) AdjustBalance(ctx context.Context, userID, field string, delta int64) error {
	if delta == 0 {
		return nil
	}
	return r.store.Increment(ctx, CollUsers, userID, field, delta)
}

type AuditRepository struct {
	store store.Store
}

func NewAuditRepository(s store.Store) *AuditRepository {
	return &AuditRepository{store: s}
}

func (r *AuditRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	return r.store.Set(ctx, CollAudit, e.ID, e)
}

func (r *AuditRepository) List(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return query[models.AuditEntry](ctx, r.store, CollAudit, store.Query{Desc: true, Limit: limit})
}

type InviteRepository struct {
	store store.Store
}

func NewInviteRepository(s store.Store) *InviteRepository {
	return &InviteRepository{store: s}
}

func (r *InviteRepository) Get(ctx context.Context, id string) (*models.Invite, error) {
	return get[models.Invite](ctx, r.store, CollInvites, id)
}

func (r *InviteRepository) Save(ctx context.Context, inv *models.Invite) error {
	return r.store.Set(ctx, CollInvites, inv.ID, inv)
}

// ListPending returns the pending invites of one team for one email.
func (r *InviteRepository) ListPending(ctx context.Context, kind models.EntityKind, entityID, email string) ([]models.Invite, error) {
	return query[models.Invite](ctx, r.store, CollInvites, store.Query{
		Where: []store.Filter{
			{Field: "kind", Value: kind},
			{Field: "entityId", Value: entityID},
			{Field: "email", Value: email},
			{Field: "status", Value: models.InvitePending},
		},
	})
}

func (r *InviteRepository) ListByEntity(ctx context.Context, kind models.EntityKind, entityID string) ([]models.Invite, error) {
	return query[models.Invite](ctx, r.store, CollInvites, store.Query{
		Where: []store.Filter{
			{Field: "kind", Value: kind},
			{Field: "entityId", Value: entityID},
		},
	})
}

func (r *InviteRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, CollInvites, id)
}
