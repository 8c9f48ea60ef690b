// Package booking holds the applicant state machine of a gig. Every
// function mutates the gig in memory only; callers load and save the gig in
// one store transaction around it.
package booking

import (
	"time"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"
)

// Find returns the index of performerID's applicant entry, or -1.
func Find(g *models.Gig, performerID string) int {
	for i := range g.Applicants {
		if g.Applicants[i].ID == performerID {
			return i
		}
	}
	return -1
}

// Active returns the applicant holding the booking slot, if any.
func Active(g *models.Gig) *models.Applicant {
	for i := range g.Applicants {
		if g.Applicants[i].Status.Active() {
			return &g.Applicants[i]
		}
	}
	return nil
}

// CheckExclusive fails when more than one applicant holds the slot.
func CheckExclusive(g *models.Gig) error {
	n := 0
	for _, a := range g.Applicants {
		if a.Status.Active() {
			n++
		}
	}
	if n > 1 {
		return apperrors.Internal(nil, "gig "+g.ID+" has more than one active applicant")
	}
	return nil
}

func target(g *models.Gig, performerID string) (*models.Applicant, error) {
	i := Find(g, performerID)
	if i < 0 {
		return nil, apperrors.NotFound("performer %s has not applied to gig %s", performerID, g.ID)
	}
	return &g.Applicants[i], nil
}

func requireOpen(g *models.Gig) error {
	if g.Status != models.GigOpen {
		return apperrors.FailedPrecondition("gig %s is not open", g.ID)
	}
	return nil
}

// ValidSide rejects anything but the venue and performer sides.
func ValidSide(side models.Role) error {
	if side != models.RoleVenue && side != models.RolePerformer {
		return apperrors.InvalidArgument("side must be %q or %q, got %q", models.RoleVenue, models.RolePerformer, side)
	}
	return nil
}

func requirePending(a *models.Applicant) error {
	if a.Status != models.ApplicantPending {
		return apperrors.FailedPrecondition("applicant %s is %s, not pending", a.ID, a.Status)
	}
	return nil
}

// Apply appends a pending application from p.
func Apply(g *models.Gig, p models.Performer, fee string, now time.Time) error {
	if err := requireOpen(g); err != nil {
		return err
	}
	if Find(g, p.EntityID()) >= 0 {
		return apperrors.FailedPrecondition("performer %s is already listed on gig %s", p.EntityID(), g.ID)
	}

	g.Applicants = append(g.Applicants, models.Applicant{
		ID:        p.EntityID(),
		Type:      p.Type(),
		Fee:       fee,
		Status:    models.ApplicantPending,
		Timestamp: now,
		SentBy:    models.RolePerformer,
	})
	return nil
}

// Invite appends a pending invitation from the venue to p.
func Invite(g *models.Gig, p models.Performer, fee string, now time.Time) error {
	if err := requireOpen(g); err != nil {
		return err
	}
	if Find(g, p.EntityID()) >= 0 {
		return apperrors.FailedPrecondition("performer %s is already listed on gig %s", p.EntityID(), g.ID)
	}

	g.Applicants = append(g.Applicants, models.Applicant{
		ID:        p.EntityID(),
		Type:      p.Type(),
		Fee:       fee,
		Status:    models.ApplicantPending,
		Invited:   true,
		Timestamp: now,
		SentBy:    models.RoleVenue,
	})
	return nil
}

// Negotiate records a counter-offer from side and puts the applicant back
// to pending, which reopens a declined or withdrawn candidacy. A performer
// countering on a gig they are not listed on joins it with that fee.
func Negotiate(g *models.Gig, p models.Performer, fee string, side models.Role, now time.Time) error {
	if err := ValidSide(side); err != nil {
		return err
	}
	if err := requireOpen(g); err != nil {
		return err
	}

	i := Find(g, p.EntityID())
	if i < 0 {
		if side != models.RolePerformer {
			return apperrors.NotFound("performer %s has not applied to gig %s", p.EntityID(), g.ID)
		}
		return Apply(g, p, fee, now)
	}

	a := &g.Applicants[i]
	if a.Status.Active() {
		return apperrors.FailedPrecondition("applicant %s is %s and cannot renegotiate", a.ID, a.Status)
	}
	a.Status = models.ApplicantPending
	a.Fee = fee
	a.SentBy = side
	a.Timestamp = now
	if side == models.RolePerformer {
		a.Viewed = false
	}
	return nil
}

// Accept gives performerID the booking slot and declines everyone else in
// the same step. A side cannot accept the fee it proposed itself.
func Accept(g *models.Gig, performerID string, side models.Role, now time.Time) (*models.Applicant, error) {
	if err := ValidSide(side); err != nil {
		return nil, err
	}
	a, err := target(g, performerID)
	if err != nil {
		return nil, err
	}
	if err := requirePending(a); err != nil {
		return nil, err
	}
	if active := Active(g); active != nil {
		return nil, apperrors.FailedPrecondition("gig %s is already booked", g.ID)
	}
	if a.SentBy == side {
		return nil, apperrors.FailedPrecondition("cannot accept your own offer")
	}

	for i := range g.Applicants {
		other := &g.Applicants[i]
		if other.ID == performerID {
			continue
		}
		other.Status = models.ApplicantDeclined
	}

	a.Status = models.ApplicantAccepted
	if g.NonPayable {
		a.Status = models.ApplicantConfirmed
	}
	a.Timestamp = now

	g.AgreedFee = a.Fee
	g.Paid = g.NonPayable
	if g.NonPayable || g.Kind == models.KindTicketed {
		g.Status = models.GigClosed
	}
	return a, nil
}

// Decline turns down a pending applicant.
func Decline(g *models.Gig, performerID string, now time.Time) error {
	a, err := target(g, performerID)
	if err != nil {
		return err
	}
	if err := requirePending(a); err != nil {
		return err
	}
	a.Status = models.ApplicantDeclined
	a.Timestamp = now
	return nil
}

// Withdraw pulls a pending application. A booked applicant must cancel.
func Withdraw(g *models.Gig, performerID string, now time.Time) error {
	a, err := target(g, performerID)
	if err != nil {
		return err
	}
	if a.Status.Active() {
		return apperrors.FailedPrecondition("applicant %s is %s and must cancel instead", a.ID, a.Status)
	}
	if err := requirePending(a); err != nil {
		return err
	}
	a.Status = models.ApplicantWithdrawn
	a.Timestamp = now
	return nil
}

// ConfirmUnpaid confirms an accepted booking of a gig that takes no
// payment through the platform.
func ConfirmUnpaid(g *models.Gig, performerID string, now time.Time) error {
	if !g.NonPayable {
		return apperrors.FailedPrecondition("gig %s must be paid through checkout", g.ID)
	}
	a, err := target(g, performerID)
	if err != nil {
		return err
	}
	switch a.Status {
	case models.ApplicantConfirmed:
	case models.ApplicantAccepted:
		a.Status = models.ApplicantConfirmed
		a.Timestamp = now
	default:
		return apperrors.FailedPrecondition("applicant %s is %s, not accepted", a.ID, a.Status)
	}
	g.Paid = true
	return nil
}

// Cancel removes a booked applicant. A performer cancelling reopens the gig
// and puts every other applicant back to pending; a venue cancelling closes
// it and leaves the others as they are. Booking and payment fields are
// cleared either way.
func Cancel(g *models.Gig, performerID string, initiator models.Role, reason string) (models.Applicant, error) {
	i := Find(g, performerID)
	if i < 0 {
		return models.Applicant{}, apperrors.NotFound("performer %s has not applied to gig %s", performerID, g.ID)
	}
	removed := g.Applicants[i]
	if !removed.Status.Active() {
		return models.Applicant{}, apperrors.FailedPrecondition("applicant %s is %s, nothing to cancel", removed.ID, removed.Status)
	}

	survivors := make([]models.Applicant, 0, len(g.Applicants)-1)
	survivors = append(survivors, g.Applicants[:i]...)
	survivors = append(survivors, g.Applicants[i+1:]...)

	if initiator == models.RoleVenue {
		g.Status = models.GigClosed
	} else {
		for j := range survivors {
			survivors[j].Status = models.ApplicantPending
		}
		g.Status = models.GigOpen
	}
	g.Applicants = survivors

	g.AgreedFee = ""
	g.PayoutConfig = nil
	g.Paid = false
	g.PaymentStatus = models.PaymentNone
	g.PaymentIntentID = ""
	g.MusicianFeeStatus = ""
	g.DisputeLogged = false
	g.DisputeClearingTime = nil
	g.CancellationReason = reason
	return removed, nil
}

// MarkPaymentProcessing moves the accepted applicant into checkout.
func MarkPaymentProcessing(g *models.Gig, performerID string, now time.Time) error {
	a, err := target(g, performerID)
	if err != nil {
		return err
	}
	switch a.Status {
	case models.ApplicantAccepted:
	case models.ApplicantPaymentProcessing:
		return apperrors.FailedPrecondition("payment for gig %s is already processing", g.ID)
	default:
		return apperrors.FailedPrecondition("applicant %s is %s, not accepted", a.ID, a.Status)
	}
	a.Status = models.ApplicantPaymentProcessing
	a.Timestamp = now
	return nil
}

// MarkPaid confirms the applicant whose payment went through.
func MarkPaid(g *models.Gig, performerID string, now time.Time) error {
	a, err := target(g, performerID)
	if err != nil {
		return err
	}
	if !a.Status.Active() {
		return apperrors.FailedPrecondition("applicant %s is %s and cannot be paid", a.ID, a.Status)
	}
	a.Status = models.ApplicantConfirmed
	a.Timestamp = now
	return nil
}

// RevertPayment puts a failed checkout back to accepted.
func RevertPayment(g *models.Gig, performerID string, now time.Time) error {
	a, err := target(g, performerID)
	if err != nil {
		return err
	}
	if a.Status != models.ApplicantPaymentProcessing {
		return nil
	}
	a.Status = models.ApplicantAccepted
	a.Timestamp = now
	return nil
}

// MarkViewed flags every applicant as seen by the venue.
func MarkViewed(g *models.Gig) {
	for i := range g.Applicants {
		g.Applicants[i].Viewed = true
	}
}
