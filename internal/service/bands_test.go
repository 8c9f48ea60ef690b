package service

import (
	"testing"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitsOf(b *models.Band) []float64 {
	out := make([]float64, 0, len(b.Members))
	for _, m := range b.Members {
		out = append(out, m.Split)
	}
	return out
}

// fourPieceBand returns a band led by user-1 and joined by user-2..4.
func (f *fixture) fourPieceBand() (*models.Band, []*models.MusicianProfile) {
	f.t.Helper()
	leader := f.musician("user-1", "Ana")
	band, err := f.svc.Bands.CreateBand(f.ctx, "user-1", &models.CreateBandRequest{
		Name:              "Night Shift",
		MusicianProfileID: leader.ID,
		JoinPassword:      "backline",
	})
	require.NoError(f.t, err)

	profiles := []*models.MusicianProfile{leader}
	for _, user := range []string{"user-2", "user-3", "user-4"} {
		p := f.musician(user, user)
		band, err = f.svc.Bands.JoinBandByPassword(f.ctx, user, band.ID, &models.BandMembershipRequest{
			MusicianProfileID: p.ID,
			Password:          "backline",
		})
		require.NoError(f.t, err)
		profiles = append(profiles, p)
	}
	return band, profiles
}

func TestBandSplitsFollowRoster(t *testing.T) {
	f := newFixture(t)
	band, profiles := f.fourPieceBand()
	assert.Equal(t, []float64{25, 25, 25, 25}, splitsOf(band))
	assert.True(t, band.Members[0].IsAdmin)
	assert.Equal(t, "user-1", band.Admin.UserID)

	band, err := f.svc.Bands.RemoveBandMember(f.ctx, "user-1", band.ID, profiles[3].ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{33.33, 33.33, 33.33}, splitsOf(band))

	removed, err := f.repos.Musicians.Get(f.ctx, profiles[3].ID)
	require.NoError(t, err)
	assert.Empty(t, removed.Bands)

	band, err = f.svc.Bands.LeaveBand(f.ctx, "user-3", band.ID, &models.BandMembershipRequest{MusicianProfileID: profiles[2].ID})
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50}, splitsOf(band))

	stored, err := f.repos.Bands.Get(f.ctx, band.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50}, splitsOf(stored))
}

func TestBandRosterRules(t *testing.T) {
	f := newFixture(t)
	band, profiles := f.fourPieceBand()

	_, err := f.svc.Bands.LeaveBand(f.ctx, "user-1", band.ID, &models.BandMembershipRequest{MusicianProfileID: profiles[0].ID})
	assertCode(t, err, apperrors.CodeFailedPrecondition)

	_, err = f.svc.Bands.RemoveBandMember(f.ctx, "user-2", band.ID, profiles[3].ID)
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.svc.Bands.RemoveBandMember(f.ctx, "user-1", band.ID, profiles[0].ID)
	assertCode(t, err, apperrors.CodeFailedPrecondition)

	_, err = f.svc.Bands.JoinBandByPassword(f.ctx, "user-2", band.ID, &models.BandMembershipRequest{MusicianProfileID: profiles[1].ID, Password: "backline"})
	assertCode(t, err, apperrors.CodeFailedPrecondition)

	outsider := f.musician("user-5", "Eve")
	_, err = f.svc.Bands.JoinBandByPassword(f.ctx, "user-5", band.ID, &models.BandMembershipRequest{MusicianProfileID: outsider.ID, Password: "wrong"})
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.svc.Bands.JoinBandByPassword(f.ctx, "user-1", band.ID, &models.BandMembershipRequest{MusicianProfileID: outsider.ID, Password: "backline"})
	assertCode(t, err, apperrors.CodePermissionDenied)
}

func TestBandInvite(t *testing.T) {
	f := newFixture(t)
	leader := f.musician("user-1", "Ana")
	band, err := f.svc.Bands.CreateBand(f.ctx, "user-1", &models.CreateBandRequest{Name: "Duo", MusicianProfileID: leader.ID})
	require.NoError(t, err)

	_, err = f.svc.Bands.CreateBandInvite(f.ctx, "user-2", band.ID, &models.CreateBandInviteRequest{})
	assertCode(t, err, apperrors.CodePermissionDenied)

	invite, err := f.svc.Bands.CreateBandInvite(f.ctx, "user-1", band.ID, &models.CreateBandInviteRequest{Email: "ben@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.EntityBand, invite.Kind)

	p := f.musician("user-2", "Ben")
	band, err = f.svc.Bands.AcceptBandInvite(f.ctx, "user-2", invite.ID, &models.BandMembershipRequest{MusicianProfileID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50}, splitsOf(band))
	assert.Equal(t, "Band Member", band.Members[1].Role)

	other := f.musician("user-3", "Cy")
	_, err = f.svc.Bands.AcceptBandInvite(f.ctx, "user-3", invite.ID, &models.BandMembershipRequest{MusicianProfileID: other.ID})
	assertCode(t, err, apperrors.CodeFailedPrecondition)

	_, err = f.svc.Bands.JoinBandByPassword(f.ctx, "user-3", band.ID, &models.BandMembershipRequest{MusicianProfileID: other.ID})
	assertCode(t, err, apperrors.CodePermissionDenied)
}

func TestSetBandAdmin(t *testing.T) {
	f := newFixture(t)
	band, profiles := f.fourPieceBand()

	band, err := f.svc.Bands.SetBandAdmin(f.ctx, "user-1", band.ID, &models.BandMembershipRequest{MusicianProfileID: profiles[1].ID})
	require.NoError(t, err)
	assert.Equal(t, "user-2", band.Admin.UserID)
	assert.False(t, band.Members[0].IsAdmin)
	assert.True(t, band.Members[1].IsAdmin)

	_, err = f.svc.Bands.SetBandAdmin(f.ctx, "user-1", band.ID, &models.BandMembershipRequest{MusicianProfileID: profiles[0].ID})
	assertCode(t, err, apperrors.CodePermissionDenied)

	band, err = f.svc.Bands.LeaveBand(f.ctx, "user-1", band.ID, &models.BandMembershipRequest{MusicianProfileID: profiles[0].ID})
	require.NoError(t, err)
	assert.Len(t, band.Members, 3)
}

func TestOnlyBandAdminBooksGigs(t *testing.T) {
	f := newFixture(t)
	band, _ := f.fourPieceBand()
	v := f.venue(venueOwner)
	g := f.gig(venueOwner, v.ID, "£400")

	_, err := f.svc.Gigs.ApplyToGig(f.ctx, "user-2", g.ID, &models.ApplyRequest{PerformerID: band.ID})
	assertCode(t, err, apperrors.CodePermissionDenied)

	f.apply("user-1", g.ID, band.ID, "")
	resp := f.venueAccepts(g.ID, band.ID)
	assert.Equal(t, "£400", resp.AgreedFee)
	assert.Nil(t, resp.PayoutConfig)

	stored, err := f.repos.Bands.Get(f.ctx, band.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{g.ID}, stored.Gigs)
}

func TestDeleteBand(t *testing.T) {
	f := newFixture(t)
	band, profiles := f.fourPieceBand()
	invite, err := f.svc.Bands.CreateBandInvite(f.ctx, "user-1", band.ID, &models.CreateBandInviteRequest{})
	require.NoError(t, err)

	err = f.svc.Bands.DeleteBand(f.ctx, "user-2", band.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)

	require.NoError(t, f.svc.Bands.DeleteBand(f.ctx, "user-1", band.ID))

	_, err = f.repos.Bands.Get(f.ctx, band.ID)
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = f.repos.Invites.Get(f.ctx, invite.ID)
	assertCode(t, err, apperrors.CodeNotFound)
	for _, p := range profiles {
		stored, err := f.repos.Musicians.Get(f.ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Bands)
	}
}
