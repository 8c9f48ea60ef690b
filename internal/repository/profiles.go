package repository

import (
	"context"

	"gigbook/internal/models"
	"gigbook/internal/store"
)

type VenueRepository struct {
	store store.Store
}

func NewVenueRepository(s store.Store) *VenueRepository {
	return &VenueRepository{store: s}
}

func (r *VenueRepository) Get(ctx context.Context, id string) (*models.VenueProfile, error) {
	return get[models.VenueProfile](ctx, r.store, CollVenues, id)
}

func (r *VenueRepository) Save(ctx context.Context, v *models.VenueProfile) error {
	return r.store.Set(ctx, CollVenues, v.ID, v)
}

type ArtistRepository struct {
	store store.Store
}

func NewArtistRepository(s store.Store) *ArtistRepository {
	return &ArtistRepository{store: s}
}

func (r *ArtistRepository) Get(ctx context.Context, id string) (*models.ArtistProfile, error) {
	return get[models.ArtistProfile](ctx, r.store, CollArtists, id)
}

func (r *ArtistRepository) Save(ctx context.Context, a *models.ArtistProfile) error {
	return r.store.Set(ctx, CollArtists, a.ID, a)
}

type MusicianRepository struct {
	store store.Store
}

func NewMusicianRepository(s store.Store) *MusicianRepository {
	return &MusicianRepository{store: s}
}

func (r *MusicianRepository) Get(ctx context.Context, id string) (*models.MusicianProfile, error) {
	return get[models.MusicianProfile](ctx, r.store, CollMusicians, id)
}

func (r *MusicianRepository) Save(ctx context.Context, m *models.MusicianProfile) error {
	return r.store.Set(ctx, CollMusicians, m.ID, m)
}

type BandRepository struct {
	store store.Store
}

func NewBandRepository(s store.Store) *BandRepository {
	return &BandRepository{store: s}
}

func (r *BandRepository) Get(ctx context.Context, id string) (*models.Band, error) {
	return get[models.Band](ctx, r.store, CollBands, id)
}

func (r *BandRepository) Save(ctx context.Context, b *models.Band) error {
	if b.Members == nil {
		b.Members = []models.BandMember{}
	}
	return r.store.Set(ctx, CollBands, b.ID, b)
}

func (r *BandRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, CollBands, id)
}
