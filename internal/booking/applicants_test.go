package booking

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func musician(id string) models.Performer {
	return models.MusicianEntity{Profile: &models.MusicianProfile{ID: id, UserID: "user-" + id}}
}

func openGig() *models.Gig {
	return &models.Gig{ID: "g1", VenueID: "v1", Status: models.GigOpen, Budget: "£100"}
}

func statuses(g *models.Gig) map[string]models.ApplicantStatus {
	out := map[string]models.ApplicantStatus{}
	for _, a := range g.Applicants {
		out[a.ID] = a.Status
	}
	return out
}

func TestAcceptDeclinesEveryoneElse(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	require.NoError(t, Apply(g, musician("B"), "£120", now))

	a, err := Accept(g, "A", models.RoleVenue, now)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicantAccepted, a.Status)
	assert.Equal(t, map[string]models.ApplicantStatus{"A": models.ApplicantAccepted, "B": models.ApplicantDeclined}, statuses(g))
	assert.Equal(t, "£100", g.AgreedFee)
	assert.Equal(t, models.GigOpen, g.Status)
	assert.False(t, g.Paid)
}

func TestAcceptNonPayableConfirmsAndCloses(t *testing.T) {
	g := openGig()
	g.NonPayable = true
	require.NoError(t, Apply(g, musician("A"), "£0", now))

	a, err := Accept(g, "A", models.RoleVenue, now)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicantConfirmed, a.Status)
	assert.Equal(t, models.GigClosed, g.Status)
	assert.True(t, g.Paid)
}

func TestAcceptTicketedGigCloses(t *testing.T) {
	g := openGig()
	g.Kind = models.KindTicketed
	require.NoError(t, Apply(g, musician("A"), "£100", now))

	_, err := Accept(g, "A", models.RoleVenue, now)
	require.NoError(t, err)
	assert.Equal(t, models.GigClosed, g.Status)
}

func TestAcceptGuards(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	require.NoError(t, Invite(g, musician("B"), "£90", now))

	_, err := Accept(g, "A", models.RolePerformer, now)
	assert.True(t, errors.Is(err, apperrors.ErrFailedPrecondition), "performer cannot accept own application")

	_, err = Accept(g, "B", models.RoleVenue, now)
	assert.True(t, errors.Is(err, apperrors.ErrFailedPrecondition), "venue cannot accept own invitation")

	_, err = Accept(g, "nobody", models.RoleVenue, now)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = Accept(g, "B", models.RolePerformer, now)
	require.NoError(t, err)

	_, err = Accept(g, "A", models.RoleVenue, now)
	assert.True(t, errors.Is(err, apperrors.ErrFailedPrecondition), "declined applicant cannot be accepted")
}

func TestApplyAndInviteRejectDuplicates(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	assert.True(t, errors.Is(Apply(g, musician("A"), "£100", now), apperrors.ErrFailedPrecondition))
	assert.True(t, errors.Is(Invite(g, musician("A"), "£100", now), apperrors.ErrFailedPrecondition))

	g.Status = models.GigClosed
	assert.True(t, errors.Is(Apply(g, musician("C"), "£100", now), apperrors.ErrFailedPrecondition))
}

func TestNegotiate(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	g.Applicants[0].Viewed = true

	require.NoError(t, Negotiate(g, musician("A"), "£80", models.RoleVenue, now))
	assert.Equal(t, "£80", g.Applicants[0].Fee)
	assert.Equal(t, models.RoleVenue, g.Applicants[0].SentBy)
	assert.True(t, g.Applicants[0].Viewed)

	require.NoError(t, Negotiate(g, musician("A"), "£90", models.RolePerformer, now))
	assert.Equal(t, models.RolePerformer, g.Applicants[0].SentBy)
	assert.False(t, g.Applicants[0].Viewed)

	require.NoError(t, Negotiate(g, musician("B"), "£150", models.RolePerformer, now))
	require.Len(t, g.Applicants, 2)
	assert.Equal(t, "£150", g.Applicants[1].Fee)

	err := Negotiate(g, musician("C"), "£150", models.RoleVenue, now)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, Decline(g, "B", now))
	require.NoError(t, Negotiate(g, musician("B"), "£140", models.RolePerformer, now))
	assert.Equal(t, models.ApplicantPending, g.Applicants[1].Status)
	assert.Equal(t, "£140", g.Applicants[1].Fee)
}

func TestNegotiateReopensDeclinedOffer(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	require.NoError(t, Decline(g, "A", now))

	require.NoError(t, Negotiate(g, musician("A"), "£90", models.RolePerformer, now))
	assert.Equal(t, models.ApplicantPending, g.Applicants[0].Status)
	assert.Equal(t, models.RolePerformer, g.Applicants[0].SentBy)

	a, err := Accept(g, "A", models.RoleVenue, now)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicantAccepted, a.Status)
	assert.Equal(t, "£90", g.AgreedFee)
}

func TestNegotiateReopensWithdrawnApplicant(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	require.NoError(t, Withdraw(g, "A", now))

	require.NoError(t, Negotiate(g, musician("A"), "£120", models.RoleVenue, now))
	assert.Equal(t, models.ApplicantPending, g.Applicants[0].Status)

	_, err := Accept(g, "A", models.RolePerformer, now)
	require.NoError(t, err)
	assert.Equal(t, "£120", g.AgreedFee)
}

func TestNegotiateRefusesBookedApplicant(t *testing.T) {
	for _, status := range []models.ApplicantStatus{models.ApplicantAccepted, models.ApplicantConfirmed, models.ApplicantPaymentProcessing} {
		g := openGig()
		require.NoError(t, Apply(g, musician("A"), "£100", now))
		g.Applicants[0].Status = status

		err := Negotiate(g, musician("A"), "£50", models.RoleVenue, now)
		assert.True(t, errors.Is(err, apperrors.ErrFailedPrecondition), "status %s", status)
		assert.Equal(t, status, g.Applicants[0].Status)
		assert.Equal(t, "£100", g.Applicants[0].Fee)
	}
}

func TestUnknownSideIsRejected(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))

	_, err := Accept(g, "A", "", now)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
	assert.Equal(t, models.ApplicantPending, g.Applicants[0].Status)

	err = Negotiate(g, musician("A"), "£90", "promoter", now)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestWithdraw(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	require.NoError(t, Apply(g, musician("B"), "£100", now))

	require.NoError(t, Withdraw(g, "B", now))
	assert.Equal(t, models.ApplicantWithdrawn, statuses(g)["B"])

	_, err := Accept(g, "A", models.RoleVenue, now)
	require.NoError(t, err)
	assert.True(t, errors.Is(Withdraw(g, "A", now), apperrors.ErrFailedPrecondition))
	assert.True(t, errors.Is(Withdraw(g, "missing", now), apperrors.ErrNotFound))
}

func bookedGig(t *testing.T) *models.Gig {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	require.NoError(t, Apply(g, musician("B"), "£100", now))
	_, err := Accept(g, "A", models.RoleVenue, now)
	require.NoError(t, err)

	clearing := now.Add(48 * time.Hour)
	g.PayoutConfig = &models.PayoutConfig{PerformerEntityID: "A", TotalFee: 10000}
	g.Paid = true
	g.PaymentStatus = models.PaymentSucceeded
	g.PaymentIntentID = "pi_1"
	g.DisputeClearingTime = &clearing
	g.Status = models.GigClosed
	g.Applicants[0].Status = models.ApplicantConfirmed
	return g
}

func TestPerformerCancelReopens(t *testing.T) {
	g := bookedGig(t)

	removed, err := Cancel(g, "A", models.RolePerformer, "ill")
	require.NoError(t, err)
	assert.Equal(t, "A", removed.ID)
	assert.Equal(t, models.GigOpen, g.Status)
	assert.Equal(t, map[string]models.ApplicantStatus{"B": models.ApplicantPending}, statuses(g))
	assert.Empty(t, g.AgreedFee)
	assert.Nil(t, g.PayoutConfig)
	assert.Nil(t, g.DisputeClearingTime)
	assert.False(t, g.Paid)
	assert.Empty(t, g.PaymentIntentID)
	assert.Equal(t, "ill", g.CancellationReason)
}

func TestVenueCancelCloses(t *testing.T) {
	g := bookedGig(t)

	_, err := Cancel(g, "A", models.RoleVenue, "")
	require.NoError(t, err)
	assert.Equal(t, models.GigClosed, g.Status)
	assert.Equal(t, map[string]models.ApplicantStatus{"B": models.ApplicantDeclined}, statuses(g))
	assert.Nil(t, g.PayoutConfig)

	_, err = Cancel(g, "B", models.RoleVenue, "")
	assert.True(t, errors.Is(err, apperrors.ErrFailedPrecondition))
}

func TestPaymentTransitions(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	assert.True(t, errors.Is(MarkPaymentProcessing(g, "A", now), apperrors.ErrFailedPrecondition))

	_, err := Accept(g, "A", models.RoleVenue, now)
	require.NoError(t, err)
	require.NoError(t, MarkPaymentProcessing(g, "A", now))
	assert.True(t, errors.Is(MarkPaymentProcessing(g, "A", now), apperrors.ErrFailedPrecondition))

	require.NoError(t, RevertPayment(g, "A", now))
	assert.Equal(t, models.ApplicantAccepted, g.Applicants[0].Status)

	require.NoError(t, MarkPaymentProcessing(g, "A", now))
	require.NoError(t, MarkPaid(g, "A", now))
	assert.Equal(t, models.ApplicantConfirmed, g.Applicants[0].Status)
}

func TestConfirmUnpaid(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	_, err := Accept(g, "A", models.RoleVenue, now)
	require.NoError(t, err)
	assert.True(t, errors.Is(ConfirmUnpaid(g, "A", now), apperrors.ErrFailedPrecondition))

	g.NonPayable = true
	require.NoError(t, ConfirmUnpaid(g, "A", now))
	assert.Equal(t, models.ApplicantConfirmed, g.Applicants[0].Status)
	assert.True(t, g.Paid)
}

func TestMarkViewed(t *testing.T) {
	g := openGig()
	require.NoError(t, Apply(g, musician("A"), "£100", now))
	require.NoError(t, Apply(g, musician("B"), "£100", now))
	MarkViewed(g)
	for _, a := range g.Applicants {
		assert.True(t, a.Viewed)
	}
}

// Random apply/invite/accept/decline/withdraw/cancel sequences never leave
// more than one applicant holding the slot, and every accept leaves exactly
// one.
func TestExclusivityUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sides := []models.Role{models.RoleVenue, models.RolePerformer}

	for run := 0; run < 300; run++ {
		g := openGig()
		for step := 0; step < 40; step++ {
			id := fmt.Sprintf("p%d", rng.Intn(6))
			switch rng.Intn(7) {
			case 0:
				_ = Apply(g, musician(id), "£100", now)
			case 1:
				_ = Invite(g, musician(id), "£100", now)
			case 2:
				_ = Negotiate(g, musician(id), "£110", sides[rng.Intn(2)], now)
			case 3:
				if _, err := Accept(g, id, sides[rng.Intn(2)], now); err == nil {
					active := 0
					for _, a := range g.Applicants {
						if a.Status.Active() {
							active++
							assert.Equal(t, id, a.ID)
						} else {
							assert.Equal(t, models.ApplicantDeclined, a.Status)
						}
					}
					assert.Equal(t, 1, active)
				}
			case 4:
				_ = Decline(g, id, now)
			case 5:
				_ = Withdraw(g, id, now)
			case 6:
				_, _ = Cancel(g, id, sides[rng.Intn(2)], "")
				if rng.Intn(2) == 0 {
					g.Status = models.GigOpen
				}
			}
			require.NoError(t, CheckExclusive(g))
		}
	}
}
