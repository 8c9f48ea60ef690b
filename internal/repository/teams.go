package repository

import (
	"context"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"
	"gigbook/internal/store"
)

// TeamRepository stores the member sub-collections of venue and artist
// profiles. It is the permission resolver's view of a team.
type TeamRepository struct {
	store store.Store
}

func NewTeamRepository(s store.Store) *TeamRepository {
	return &TeamRepository{store: s}
}

func profileCollection(kind models.EntityKind) (string, error) {
	switch kind {
	case models.EntityVenue:
		return CollVenues, nil
	case models.EntityArtist:
		return CollArtists, nil
	}
	return "", apperrors.InvalidArgument("%s has no member table", kind)
}

func membersCollection(kind models.EntityKind, entityID string) (string, error) {
	coll, err := profileCollection(kind)
	if err != nil {
		return "", err
	}
	return coll + "/" + entityID + "/" + subCollMembers, nil
}

type ownedProfile struct {
	UserID    string `json:"userId"`
	CreatedBy string `json:"createdBy"`
}

// TeamOwner returns the owner of a venue or artist profile. Legacy
// profiles only carry createdBy.
func (r *TeamRepository) TeamOwner(ctx context.Context, kind models.EntityKind, entityID string) (string, error) {
	coll, err := profileCollection(kind)
	if err != nil {
		return "", err
	}
	p, err := get[ownedProfile](ctx, r.store, coll, entityID)
	if err != nil {
		return "", err
	}
	if p.UserID != "" {
		return p.UserID, nil
	}
	return p.CreatedBy, nil
}

func (r *TeamRepository) TeamMember(ctx context.Context, kind models.EntityKind, entityID, userID string) (*models.Member, error) {
	coll, err := membersCollection(kind, entityID)
	if err != nil {
		return nil, err
	}
	return get[models.Member](ctx, r.store, coll, userID)
}

// Members lists a team's members in the order they joined.
func (r *TeamRepository) Members(ctx context.Context, kind models.EntityKind, entityID string) ([]models.Member, error) {
	coll, err := membersCollection(kind, entityID)
	if err != nil {
		return nil, err
	}
	return query[models.Member](ctx, r.store, coll, store.Query{})
}

func (r *TeamRepository) SaveMember(ctx context.Context, kind models.EntityKind, entityID string, m *models.Member) error {
	coll, err := membersCollection(kind, entityID)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, coll, m.UserID, m)
}

func (r *TeamRepository) DeleteMember(ctx context.Context, kind models.EntityKind, entityID, userID string) error {
	coll, err := membersCollection(kind, entityID)
	if err != nil {
		return err
	}
	return r.store.Delete(ctx, coll, userID)
}
