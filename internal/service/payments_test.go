package service

import (
	"fmt"
	"testing"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/external"
	"gigbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acceptedBooking returns a £200 gig with one accepted musician whose
// venue owner has a saved processor customer.
func (f *fixture) acceptedBooking() (*models.Gig, *models.MusicianProfile) {
	f.t.Helper()
	v := f.venue(venueOwner)
	_, err := f.svc.Teams.UpsertUser(f.ctx, venueOwner, &models.UpsertUserRequest{
		Email:            "owner@venue.example",
		StripeCustomerID: "cus_venue",
	})
	require.NoError(f.t, err)
	g := f.gig(venueOwner, v.ID, "£200")
	m := f.musician("user-1", "Ana")
	f.apply("user-1", g.ID, m.ID, "")
	f.venueAccepts(g.ID, m.ID)
	return g, m
}

func (f *fixture) pay(gigID, performerID string) *models.ConfirmPaymentResponse {
	f.t.Helper()
	resp, err := f.svc.Payments.ConfirmPayment(f.ctx, venueOwner, gigID, &models.ConfirmPaymentRequest{
		PerformerID:     performerID,
		PaymentMethodID: "pm_card",
	})
	require.NoError(f.t, err)
	return resp
}

func TestConfirmPaymentCreatesPendingFee(t *testing.T) {
	f := newFixture(t)
	g, m := f.acceptedBooking()

	resp := f.pay(g.ID, m.ID)
	assert.Equal(t, "pi_1", resp.PaymentIntentID)
	assert.Equal(t, "succeeded", resp.Status)
	assert.False(t, resp.RequiresAction)

	require.Len(t, f.proc.charges, 1)
	charge := f.proc.charges[0]
	assert.Equal(t, int64(20000), charge.AmountPence)
	assert.Equal(t, "cus_venue", charge.CustomerID)
	assert.Equal(t, "gig-"+g.ID+"-"+m.ID, charge.IdempotencyKey)

	gig := f.reload(g.ID)
	assert.Equal(t, models.ApplicantConfirmed, applicantStatus(gig, m.ID))
	assert.True(t, gig.Paid)
	assert.Equal(t, models.GigClosed, gig.Status)
	assert.Equal(t, models.PaymentSucceeded, gig.PaymentStatus)
	assert.Equal(t, models.FeePending, gig.MusicianFeeStatus)
	require.NotNil(t, gig.DisputeClearingTime)
	assert.True(t, g.StartTime.Add(f.svc.Payments.clearingWindow).Equal(*gig.DisputeClearingTime))

	fee, err := f.repos.PendingFees.Get(f.ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), fee.Amount)
	assert.Equal(t, "user-1", fee.RecipientUserID)
	assert.Equal(t, models.FeePending, fee.Status)

	assert.Equal(t, int64(20000), f.user("user-1").PendingFunds)
	assert.Contains(t, f.rec.Tags(), models.StatusTagPaymentPaid)

	require.NoError(t, f.svc.Payments.HandlePaymentSucceeded(f.ctx, "pi_1"))
	assert.Equal(t, int64(20000), f.user("user-1").PendingFunds)
}

func TestWebhookRedeliveryIsIgnored(t *testing.T) {
	f := newFixture(t)
	g, m := f.acceptedBooking()
	f.proc.chargeStatus = "requires_action"

	resp := f.pay(g.ID, m.ID)
	assert.True(t, resp.RequiresAction)
	assert.Equal(t, "pi_1_secret", resp.ClientSecret)
	assert.Equal(t, models.ApplicantPaymentProcessing, applicantStatus(f.reload(g.ID), m.ID))

	_, err := f.repos.PendingFees.Get(f.ctx, "pi_1")
	assertCode(t, err, apperrors.CodeNotFound)

	f.proc.event = &external.WebhookEvent{ID: "evt_1", Type: external.EventPaymentSucceeded, PaymentIntentID: "pi_1"}
	require.NoError(t, f.svc.Payments.HandleWebhook(f.ctx, []byte("{}"), "valid"))
	require.NoError(t, f.svc.Payments.HandleWebhook(f.ctx, []byte("{}"), "valid"))

	assert.Equal(t, int64(20000), f.user("user-1").PendingFunds)
	assert.Equal(t, models.ApplicantConfirmed, applicantStatus(f.reload(g.ID), m.ID))

	err = f.svc.Payments.HandleWebhook(f.ctx, []byte("{}"), "forged")
	assertCode(t, err, apperrors.CodeInvalidArgument)
}

func TestWebhookForUnknownPaymentIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.proc.event = &external.WebhookEvent{ID: "evt_9", Type: external.EventPaymentSucceeded, PaymentIntentID: "pi_unknown"}
	require.NoError(t, f.svc.Payments.HandleWebhook(f.ctx, nil, "valid"))
}

func TestDeclinedChargeRevertsBooking(t *testing.T) {
	f := newFixture(t)
	g, m := f.acceptedBooking()
	f.proc.chargeErr = fmt.Errorf("%w: insufficient funds", external.ErrPaymentDeclined)

	_, err := f.svc.Payments.ConfirmPayment(f.ctx, venueOwner, g.ID, &models.ConfirmPaymentRequest{PerformerID: m.ID, PaymentMethodID: "pm_card"})
	assertCode(t, err, apperrors.CodeFailedPrecondition)

	gig := f.reload(g.ID)
	assert.Equal(t, models.ApplicantAccepted, applicantStatus(gig, m.ID))
	assert.Equal(t, models.PaymentFailed, gig.PaymentStatus)

	f.proc.chargeErr = nil
	resp := f.pay(g.ID, m.ID)
	assert.Equal(t, "succeeded", resp.Status)
}

func TestDuplicateConfirmConflicts(t *testing.T) {
	f := newFixture(t)
	g, m := f.acceptedBooking()
	f.proc.chargeStatus = "requires_action"
	f.pay(g.ID, m.ID)

	_, err := f.svc.Payments.ConfirmPayment(f.ctx, venueOwner, g.ID, &models.ConfirmPaymentRequest{PerformerID: m.ID, PaymentMethodID: "pm_card"})
	assertCode(t, err, apperrors.CodeConflict)
	assert.Len(t, f.proc.charges, 1)
}

func TestPaymentFailedAllowsRetry(t *testing.T) {
	f := newFixture(t)
	g, m := f.acceptedBooking()
	f.proc.chargeStatus = "requires_action"
	f.pay(g.ID, m.ID)

	require.NoError(t, f.svc.Payments.HandlePaymentFailed(f.ctx, "pi_1", "card expired"))

	gig := f.reload(g.ID)
	assert.Equal(t, models.ApplicantAccepted, applicantStatus(gig, m.ID))
	assert.Equal(t, models.PaymentFailed, gig.PaymentStatus)
	payment, err := f.repos.Payments.Get(f.ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, payment.Status)

	f.proc.chargeStatus = "succeeded"
	resp := f.pay(g.ID, m.ID)
	assert.Equal(t, "pi_2", resp.PaymentIntentID)
}

func TestConfirmPaymentNeedsCustomer(t *testing.T) {
	f := newFixture(t)
	v := f.venue(venueOwner)
	g := f.gig(venueOwner, v.ID, "£200")
	m := f.musician("user-1", "Ana")
	f.apply("user-1", g.ID, m.ID, "")
	f.venueAccepts(g.ID, m.ID)

	_, err := f.svc.Payments.ConfirmPayment(f.ctx, venueOwner, g.ID, &models.ConfirmPaymentRequest{PerformerID: m.ID, PaymentMethodID: "pm_card"})
	assertCode(t, err, apperrors.CodeFailedPrecondition)

	_, err = f.svc.Payments.ConfirmPayment(f.ctx, "user-1", g.ID, &models.ConfirmPaymentRequest{PerformerID: m.ID, PaymentMethodID: "pm_card"})
	assertCode(t, err, apperrors.CodePermissionDenied)
	assert.Empty(t, f.proc.charges)
}

func TestSettlementAfterCancelIsRefunded(t *testing.T) {
	f := newFixture(t)
	g, m := f.acceptedBooking()
	f.proc.chargeStatus = "requires_action"
	f.pay(g.ID, m.ID)

	_, err := f.svc.Gigs.CancelBooking(f.ctx, venueOwner, g.ID, &models.CancelBookingRequest{PerformerID: m.ID, Initiator: models.RoleVenue})
	require.NoError(t, err)

	require.NoError(t, f.svc.Payments.HandlePaymentSucceeded(f.ctx, "pi_1"))
	assert.Equal(t, []string{"pi_1"}, f.proc.refunds)
	assert.Equal(t, int64(0), f.user("user-1").PendingFunds)

	payment, err := f.repos.Payments.Get(f.ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, payment.Status)

	require.NoError(t, f.svc.Payments.HandlePaymentSucceeded(f.ctx, "pi_1"))
	assert.Len(t, f.proc.refunds, 1)
}

func TestRefundPaymentNeedsCancelledFee(t *testing.T) {
	f := newFixture(t)
	g, m := f.acceptedBooking()
	f.pay(g.ID, m.ID)

	_, err := f.svc.Payments.RefundPayment(f.ctx, venueOwner, &models.RefundRequest{PaymentIntentID: "pi_1"})
	assertCode(t, err, apperrors.CodeFailedPrecondition)
	assert.Empty(t, f.proc.refunds)
}

func TestBalanceNeedsConnectedAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Teams.UpsertUser(f.ctx, "user-1", &models.UpsertUserRequest{Email: "ana@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Payments.Balance(f.ctx, "user-1")
	assertCode(t, err, apperrors.CodeFailedPrecondition)

	_, err = f.svc.Teams.UpsertUser(f.ctx, "user-1", &models.UpsertUserRequest{Email: "ana@example.com", StripeConnectID: "acct_1"})
	require.NoError(t, err)
	balance, err := f.svc.Payments.Balance(f.ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance.Available[0].Amount)
}
