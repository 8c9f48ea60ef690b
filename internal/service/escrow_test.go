package service

import (
	"testing"
	"time"

	"gigbook/internal/booking"
	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"
	"gigbook/internal/permissions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paidBooking returns a gig whose accepted musician has been paid for.
func (f *fixture) paidBooking() (*models.Gig, *models.MusicianProfile) {
	f.t.Helper()
	g, m := f.acceptedBooking()
	f.pay(g.ID, m.ID)
	return f.reload(g.ID), m
}

func (f *fixture) afterClearing(g *models.Gig) {
	f.now = g.StartTime.Add(48*time.Hour + time.Minute)
}

func TestClearDueFeesMovesFunds(t *testing.T) {
	f := newFixture(t)
	g, _ := f.paidBooking()

	resp, err := f.svc.Escrow.ClearDueFees(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, resp.Cleared)

	err = f.svc.Escrow.MarkFeeCleared(f.ctx, "pi_1")
	assertCode(t, err, apperrors.CodeFailedPrecondition)

	f.afterClearing(g)
	resp, err = f.svc.Escrow.ClearDueFees(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pi_1"}, resp.Cleared)
	assert.Empty(t, resp.Failed)

	u := f.user("user-1")
	assert.Equal(t, int64(0), u.PendingFunds)
	assert.Equal(t, int64(20000), u.TotalEarnings)
	assert.Equal(t, int64(20000), u.WithdrawableEarnings)
	assert.Empty(t, f.proc.transfers)

	fee, err := f.repos.PendingFees.Get(f.ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeCleared, fee.Status)
	assert.Equal(t, models.FeeCleared, f.reload(g.ID).MusicianFeeStatus)

	resp, err = f.svc.Escrow.ClearDueFees(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, resp.Cleared)
	assert.Equal(t, int64(20000), f.user("user-1").TotalEarnings)
}

func TestClearedFeeIsTransferredToConnectedAccount(t *testing.T) {
	f := newFixture(t)
	g, _ := f.paidBooking()
	_, err := f.svc.Teams.UpsertUser(f.ctx, "user-1", &models.UpsertUserRequest{Email: "ana@example.com", StripeConnectID: "acct_ana"})
	require.NoError(t, err)

	f.afterClearing(g)
	require.NoError(t, f.svc.Escrow.MarkFeeCleared(f.ctx, "pi_1"))

	require.Len(t, f.proc.transfers, 1)
	tr := f.proc.transfers[0]
	assert.Equal(t, "acct_ana", tr.DestinationAccount)
	assert.Equal(t, int64(20000), tr.AmountPence)
	assert.Equal(t, g.ID, tr.TransferGroup)
	assert.Equal(t, "transfer-pi_1-user-1", tr.IdempotencyKey)

	u := f.user("user-1")
	assert.Equal(t, int64(20000), u.TotalEarnings)
	assert.Equal(t, int64(0), u.WithdrawableEarnings)
}

func TestDisputeBlocksClearing(t *testing.T) {
	f := newFixture(t)
	g, m := f.paidBooking()

	resp, err := f.svc.Escrow.LogDispute(f.ctx, venueOwner, &models.LogDisputeRequest{
		GigID:       g.ID,
		PerformerID: m.ID,
		Reason:      "  no show  ",
		Details:     "The act did not arrive.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.DisputeID)
	assert.False(t, resp.AlreadyInDispute)

	fee, err := f.repos.PendingFees.Get(f.ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeInDispute, fee.Status)
	assert.Equal(t, "no show", fee.DisputeReason)
	assert.Nil(t, fee.DisputeClearingTime)

	gig := f.reload(g.ID)
	assert.True(t, gig.DisputeLogged)
	assert.Nil(t, gig.DisputeClearingTime)
	assert.Equal(t, models.FeeInDispute, gig.MusicianFeeStatus)

	dispute, err := f.repos.Disputes.Get(f.ctx, resp.DisputeID)
	require.NoError(t, err)
	assert.Equal(t, []string{venueOwner, "user-1"}, dispute.Participants)
	assert.Contains(t, f.rec.Tags(), models.StatusTagDisputeLogged)

	again, err := f.svc.Escrow.LogDispute(f.ctx, "user-1", &models.LogDisputeRequest{GigID: g.ID, PerformerID: m.ID, Reason: "late payment"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyInDispute)

	f.afterClearing(g)
	cleared, err := f.svc.Escrow.ClearDueFees(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, cleared.Cleared)
	assert.Equal(t, int64(20000), f.user("user-1").PendingFunds)
}

func TestDisputeValidation(t *testing.T) {
	f := newFixture(t)
	g, m := f.paidBooking()

	_, err := f.svc.Escrow.LogDispute(f.ctx, venueOwner, &models.LogDisputeRequest{GigID: g.ID, PerformerID: m.ID, Reason: "   "})
	assertCode(t, err, apperrors.CodeInvalidArgument)

	_, err = f.svc.Escrow.LogDispute(f.ctx, "stranger", &models.LogDisputeRequest{GigID: g.ID, PerformerID: m.ID, Reason: "no show"})
	assertCode(t, err, apperrors.CodePermissionDenied)

	f.addMember(venueOwner, models.EntityVenue, g.VenueID, "reviewer", map[string]bool{permissions.VenueReviewsCreate: true})
	_, err = f.svc.Escrow.LogDispute(f.ctx, "reviewer", &models.LogDisputeRequest{GigID: g.ID, PerformerID: m.ID, Reason: "no show"})
	require.NoError(t, err)
}

func TestDisputeWithoutFeeIsNotFound(t *testing.T) {
	f := newFixture(t)
	g, m := f.acceptedBooking()

	_, err := f.svc.Escrow.LogDispute(f.ctx, venueOwner, &models.LogDisputeRequest{GigID: g.ID, PerformerID: m.ID, Reason: "no show"})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCancelPaidBookingReversesAndRefunds(t *testing.T) {
	f := newFixture(t)
	g, m := f.paidBooking()

	_, err := f.svc.Gigs.CancelBooking(f.ctx, "user-1", g.ID, &models.CancelBookingRequest{
		PerformerID: m.ID,
		Initiator:   models.RolePerformer,
		Reason:      "illness",
	})
	require.NoError(t, err)

	fee, err := f.repos.PendingFees.Get(f.ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeCancelled, fee.Status)
	assert.Equal(t, "illness", fee.CancellationReason)
	assert.Equal(t, int64(0), f.user("user-1").PendingFunds)

	assert.Equal(t, []string{"pi_1"}, f.proc.refunds)
	payment, err := f.repos.Payments.Get(f.ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, payment.Status)

	gig := f.reload(g.ID)
	assert.Equal(t, models.GigOpen, gig.Status)
	assert.Empty(t, gig.PaymentIntentID)
	assert.False(t, gig.Paid)

	n, err := f.svc.Escrow.CancelFeesForGig(f.ctx, g.ID, m.ID, "again")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(0), f.user("user-1").PendingFunds)
}

func TestCancelResumesInterruptedReversal(t *testing.T) {
	f := newFixture(t)
	g, m := f.paidBooking()

	// The gig write committed but the fee reversal never ran.
	gig := f.reload(g.ID)
	_, err := booking.Cancel(gig, m.ID, models.RoleVenue, "")
	require.NoError(t, err)
	require.NoError(t, f.repos.Gigs.Save(f.ctx, gig))

	_, err = f.svc.Gigs.CancelBooking(f.ctx, venueOwner, g.ID, &models.CancelBookingRequest{PerformerID: m.ID, Initiator: models.RoleVenue})
	require.NoError(t, err)

	fee, err := f.repos.PendingFees.Get(f.ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeCancelled, fee.Status)
	assert.Equal(t, int64(0), f.user("user-1").PendingFunds)

	_, err = f.svc.Gigs.CancelBooking(f.ctx, venueOwner, g.ID, &models.CancelBookingRequest{PerformerID: m.ID, Initiator: models.RoleVenue})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestArtistFeeIsSplitAndReversed(t *testing.T) {
	f := newFixture(t)
	v := f.venue(venueOwner)
	_, err := f.svc.Teams.UpsertUser(f.ctx, venueOwner, &models.UpsertUserRequest{Email: "owner@venue.example", StripeCustomerID: "cus_venue"})
	require.NoError(t, err)
	g := f.gig(venueOwner, v.ID, "£100")

	a := f.artist("artist-owner", "The Quiet Hours")
	f.addMember("artist-owner", models.EntityArtist, a.ID, "drummer", nil)
	sixty, thirty := 60.0, 30.0
	_, err = f.svc.Teams.SetPayoutShare(f.ctx, "artist-owner", a.ID, "artist-owner", &models.SetPayoutShareRequest{Percent: &sixty})
	require.NoError(t, err)
	_, err = f.svc.Teams.SetPayoutShare(f.ctx, "artist-owner", a.ID, "drummer", &models.SetPayoutShareRequest{Percent: &thirty})
	require.NoError(t, err)

	f.apply("artist-owner", g.ID, a.ID, "")
	f.venueAccepts(g.ID, a.ID)
	f.pay(g.ID, a.ID)

	assert.Equal(t, int64(6000), f.user("artist-owner").PendingFunds)
	assert.Equal(t, int64(3000), f.user("drummer").PendingFunds)

	fee, err := f.repos.PendingFees.Get(f.ctx, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, fee.PayoutConfig)
	assert.Len(t, fee.PayoutConfig.Shares, 2)

	// Later share changes do not touch the booked split.
	ten := 10.0
	_, err = f.svc.Teams.SetPayoutShare(f.ctx, "artist-owner", a.ID, "drummer", &models.SetPayoutShareRequest{Percent: &ten})
	require.NoError(t, err)

	_, err = f.svc.Gigs.CancelBooking(f.ctx, venueOwner, g.ID, &models.CancelBookingRequest{PerformerID: a.ID, Initiator: models.RoleVenue})
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.user("artist-owner").PendingFunds)
	assert.Equal(t, int64(0), f.user("drummer").PendingFunds)
}

func TestFeeQueriesAreScoped(t *testing.T) {
	f := newFixture(t)
	g, m := f.paidBooking()

	fee, err := f.svc.Escrow.FindPendingFee(f.ctx, "user-1", g.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", fee.ID)

	_, err = f.svc.Escrow.FindPendingFee(f.ctx, venueOwner, g.ID, m.ID)
	require.NoError(t, err)

	_, err = f.svc.Escrow.FindPendingFee(f.ctx, "stranger", g.ID, m.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)

	fees, err := f.svc.Escrow.ListPerformerFees(f.ctx, "user-1", m.ID)
	require.NoError(t, err)
	require.Len(t, fees, 1)

	_, err = f.svc.Escrow.ListPerformerFees(f.ctx, venueOwner, m.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)
}
