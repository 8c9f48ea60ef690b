package repository

import (
	"context"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"
	"gigbook/internal/store"
)

// PerformerRepository resolves a performer id to its entity variant.
type PerformerRepository struct {
	store store.Store
	teams *TeamRepository
}

func NewPerformerRepository(s store.Store, teams *TeamRepository) *PerformerRepository {
	return &PerformerRepository{store: s, teams: teams}
}

// Resolve looks the id up as an artist profile, then a band, then a
// musician profile. Artist members are loaded with the profile.
func (r *PerformerRepository) Resolve(ctx context.Context, id string) (models.Performer, error) {
	if id == "" {
		return nil, apperrors.InvalidArgument("missing performer id")
	}

	artist, err := get[models.ArtistProfile](ctx, r.store, CollArtists, id)
	if err == nil {
		members, err := r.teams.Members(ctx, models.EntityArtist, id)
		if err != nil {
			return nil, err
		}
		return models.ArtistEntity{Profile: artist, Members: members}, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	band, err := get[models.Band](ctx, r.store, CollBands, id)
	if err == nil {
		return models.BandEntity{Band: band}, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	musician, err := get[models.MusicianProfile](ctx, r.store, CollMusicians, id)
	if err == nil {
		return models.MusicianEntity{Profile: musician}, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return nil, apperrors.NotFound("performer %s not found", id)
}

func isNotFound(err error) bool {
	return apperrors.CodeOf(err) == apperrors.CodeNotFound
}

// ProfileCollection is the collection holding performers of type t.
func ProfileCollection(t models.PerformerType) string {
	switch t {
	case models.PerformerArtist:
		return CollArtists
	case models.PerformerBand:
		return CollBands
	default:
		return CollMusicians
	}
}
