package service

import (
	"context"
	"fmt"
	"strings"

	"gigbook/internal/booking"
	"gigbook/internal/conversations"
	apperrors "gigbook/internal/errors"
	"gigbook/internal/logger"
	"gigbook/internal/models"
	"gigbook/internal/money"
	"gigbook/internal/payout"
	"gigbook/internal/permissions"
	"gigbook/internal/repository"
	"gigbook/internal/store"

	"github.com/google/uuid"
)

// GigService runs the applicant state machine against stored gigs.
type GigService struct {
	*core
	escrow    *EscrowService
	payments  *PaymentService
	chunkSize int
}

func NewGigService(c *core, escrow *EscrowService, payments *PaymentService, chunkSize int) *GigService {
	return &GigService{core: c, escrow: escrow, payments: payments, chunkSize: chunkSize}
}

// CreateGig posts a gig for a venue. An empty or zero budget makes it
// non-payable.
func (s *GigService) CreateGig(ctx context.Context, actor string, req *models.CreateGigRequest) (*models.Gig, error) {
	if err := s.assertVenue(ctx, actor, req.VenueID, permissions.VenueGigsCreate); err != nil {
		return nil, err
	}

	budget := strings.TrimSpace(req.Budget)
	nonPayable := true
	if budget != "" {
		pence, err := parseFee(budget)
		if err != nil {
			return nil, err
		}
		nonPayable = pence == 0
		budget = money.Format(pence)
	}

	now := s.now()
	gig := &models.Gig{
		ID:         uuid.New().String(),
		VenueID:    req.VenueID,
		Title:      strings.TrimSpace(req.Title),
		Kind:       strings.TrimSpace(req.Kind),
		Status:     models.GigOpen,
		Budget:     budget,
		NonPayable: nonPayable,
		StartTime:  req.StartTime.UTC(),
		Applicants: []models.Applicant{},
		CreatedBy:  actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Gigs.Save(ctx, gig); err != nil {
			return err
		}
		return store.ArrayUnion(ctx, s.store, repository.CollVenues, gig.VenueID, "gigs", gig.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gig: %w", err)
	}

	s.reindex(ctx, gig)
	logger.WithContext(ctx).Info("Gig created",
		"gig_id", gig.ID, "venue_id", gig.VenueID, "non_payable", gig.NonPayable)
	return gig, nil
}

func (s *GigService) GetGig(ctx context.Context, actor, gigID string) (*models.Gig, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.repos.Gigs.Get(ctx, gigID)
}

// ListVenueGigs returns a venue's gigs by start time.
func (s *GigService) ListVenueGigs(ctx context.Context, actor, venueID string) ([]models.Gig, error) {
	if err := s.assertVenue(ctx, actor, venueID, permissions.VenueGigsRead); err != nil {
		return nil, err
	}
	return s.repos.Gigs.ListByVenue(ctx, venueID)
}

// offerFee resolves the fee of a new offer: the budget when none is given,
// and the normalised amount on payable gigs.
func offerFee(gig *models.Gig, fee string) (string, error) {
	fee = strings.TrimSpace(fee)
	if fee == "" {
		fee = gig.Budget
	}
	if gig.NonPayable {
		return fee, nil
	}
	pence, err := parseFee(fee)
	if err != nil {
		return "", err
	}
	if pence <= 0 {
		return "", apperrors.InvalidArgument("a payable gig needs a positive fee")
	}
	return money.Format(pence), nil
}

func (s *GigService) linkProfile(ctx context.Context, p models.Performer, gigID string) error {
	return store.ArrayUnion(ctx, s.store, repository.ProfileCollection(p.Type()), p.EntityID(), "gigs", gigID)
}

// ApplyToGig adds a pending application from a performer the actor acts for.
func (s *GigService) ApplyToGig(ctx context.Context, actor, gigID string, req *models.ApplyRequest) (*models.ApplicantsResponse, error) {
	performer, err := s.repos.Performers.Resolve(ctx, req.PerformerID)
	if err != nil {
		return nil, err
	}
	if err := s.assertPerformer(ctx, actor, performer); err != nil {
		return nil, err
	}

	var fee string
	gig, err := s.transition(ctx, "apply", gigID, func(ctx context.Context, g *models.Gig) error {
		f, err := offerFee(g, req.Fee)
		if err != nil {
			return err
		}
		fee = f
		if err := booking.Apply(g, performer, fee, s.now()); err != nil {
			return err
		}
		return s.linkProfile(ctx, performer, g.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Announce(ctx, conversationRef(gig, performer.EntityID()),
		conversations.TextApplied(performer.DisplayName(), fee), string(models.ApplicantPending))
	s.reindex(ctx, gig)
	return models.NewApplicantsResponse(gig), nil
}

// InviteToGig adds a pending invitation from the venue.
func (s *GigService) InviteToGig(ctx context.Context, actor, gigID string, req *models.InviteRequest) (*models.ApplicantsResponse, error) {
	performer, err := s.repos.Performers.Resolve(ctx, req.PerformerID)
	if err != nil {
		return nil, err
	}

	var fee string
	gig, err := s.transition(ctx, "invite", gigID, func(ctx context.Context, g *models.Gig) error {
		if err := s.assertVenue(ctx, actor, g.VenueID, permissions.VenueGigsInvite); err != nil {
			return err
		}
		f, err := offerFee(g, req.Fee)
		if err != nil {
			return err
		}
		fee = f
		if err := booking.Invite(g, performer, fee, s.now()); err != nil {
			return err
		}
		return s.linkProfile(ctx, performer, g.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Announce(ctx, conversationRef(gig, performer.EntityID()),
		conversations.TextInvited(performer.DisplayName(), fee), string(models.ApplicantPending))
	return models.NewApplicantsResponse(gig), nil
}

// NegotiateFee records a counter-offer. Earlier open offers in the
// conversation are marked countered.
func (s *GigService) NegotiateFee(ctx context.Context, actor, gigID string, req *models.NegotiateRequest) (*models.ApplicantsResponse, error) {
	performer, err := s.repos.Performers.Resolve(ctx, req.PerformerID)
	if err != nil {
		return nil, err
	}

	var fee string
	gig, err := s.transition(ctx, "negotiate", gigID, func(ctx context.Context, g *models.Gig) error {
		if err := s.assertSide(ctx, actor, req.Side, g, performer); err != nil {
			return err
		}
		if g.NonPayable {
			return apperrors.FailedPrecondition("gig %s takes no fee", g.ID)
		}
		f, err := offerFee(g, req.Fee)
		if err != nil {
			return err
		}
		fee = f
		listed := booking.Find(g, performer.EntityID()) >= 0
		if err := booking.Negotiate(g, performer, fee, req.Side, s.now()); err != nil {
			return err
		}
		if !listed {
			return s.linkProfile(ctx, performer, g.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ref := conversationRef(gig, performer.EntityID())
	s.notifier.UpdateStatus(ctx, ref, models.MessageRef{Types: offerTypes, Status: string(models.ApplicantPending)}, "countered")
	s.notifier.Announce(ctx, ref, conversations.TextNegotiated(req.Side, fee), string(models.ApplicantPending))
	return models.NewApplicantsResponse(gig), nil
}

// AcceptOffer books the performer. Every other applicant is declined in
// the same transaction, and a payable artist booking gets its payout
// split fixed from the current member shares.
func (s *GigService) AcceptOffer(ctx context.Context, actor, gigID string, req *models.ApplicantActionRequest) (*models.ApplicantsResponse, error) {
	performer, err := s.repos.Performers.Resolve(ctx, req.PerformerID)
	if err != nil {
		return nil, err
	}

	var (
		accepted models.Applicant
		closed   []string
	)
	gig, err := s.transition(ctx, "accept", gigID, func(ctx context.Context, g *models.Gig) error {
		if err := s.assertSide(ctx, actor, req.Side, g, performer); err != nil {
			return err
		}

		open := map[string]bool{}
		for _, a := range g.Applicants {
			if a.Status == models.ApplicantPending {
				open[a.ID] = true
			}
		}

		a, err := booking.Accept(g, performer.EntityID(), req.Side, s.now())
		if err != nil {
			return err
		}
		accepted = *a

		closed = closed[:0]
		for _, other := range g.Applicants {
			if other.ID != a.ID && open[other.ID] {
				closed = append(closed, other.ID)
			}
		}

		if g.NonPayable {
			return nil
		}
		total, err := parseFee(a.Fee)
		if err != nil {
			return err
		}
		// Member shares are re-read inside the transaction.
		current, err := s.repos.Performers.Resolve(ctx, performer.EntityID())
		if err != nil {
			return err
		}
		g.PayoutConfig = payout.ComputeShares(current, total)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ref := conversationRef(gig, accepted.ID)
	s.notifier.UpdateStatus(ctx, ref, models.MessageRef{Types: offerTypes, Status: string(models.ApplicantPending)}, string(models.ApplicantAccepted))
	s.notifier.Announce(ctx, ref, conversations.TextAccepted(req.Side, accepted.Fee), models.StatusTagAccepted)
	for _, id := range closed {
		s.notifier.UpdateStatus(ctx, conversationRef(gig, id),
			models.MessageRef{Types: offerTypes, Status: string(models.ApplicantPending)}, models.StatusTagAppsClosed)
	}
	s.reindex(ctx, gig)

	logger.WithContext(ctx).Info("Offer accepted",
		"gig_id", gig.ID, "performer_id", accepted.ID, "side", req.Side, "fee", accepted.Fee,
		"declined", len(closed))
	return models.NewApplicantsResponse(gig), nil
}

// DeclineApplication turns down a pending offer from either side.
func (s *GigService) DeclineApplication(ctx context.Context, actor, gigID string, req *models.ApplicantActionRequest) (*models.ApplicantsResponse, error) {
	var performer models.Performer
	if req.Side == models.RolePerformer {
		p, err := s.repos.Performers.Resolve(ctx, req.PerformerID)
		if err != nil {
			return nil, err
		}
		performer = p
	}

	gig, err := s.transition(ctx, "decline", gigID, func(ctx context.Context, g *models.Gig) error {
		if err := s.assertSide(ctx, actor, req.Side, g, performer); err != nil {
			return err
		}
		return booking.Decline(g, req.PerformerID, s.now())
	})
	if err != nil {
		return nil, err
	}

	text := conversations.TextDeclined
	if req.Side == models.RolePerformer {
		text = conversations.TextOfferDecline
	}
	ref := conversationRef(gig, req.PerformerID)
	s.notifier.UpdateStatus(ctx, ref, models.MessageRef{Types: offerTypes, Status: string(models.ApplicantPending)}, string(models.ApplicantDeclined))
	s.notifier.Announce(ctx, ref, text, models.StatusTagDeclined)
	return models.NewApplicantsResponse(gig), nil
}

// WithdrawApplication pulls a performer's pending offer.
func (s *GigService) WithdrawApplication(ctx context.Context, actor, gigID string, req *models.WithdrawRequest) (*models.ApplicantsResponse, error) {
	performer, err := s.repos.Performers.Resolve(ctx, req.PerformerID)
	if err != nil {
		return nil, err
	}
	if err := s.assertPerformer(ctx, actor, performer); err != nil {
		return nil, err
	}

	gig, err := s.transition(ctx, "withdraw", gigID, func(ctx context.Context, g *models.Gig) error {
		return booking.Withdraw(g, performer.EntityID(), s.now())
	})
	if err != nil {
		return nil, err
	}

	ref := conversationRef(gig, performer.EntityID())
	s.notifier.UpdateStatus(ctx, ref, models.MessageRef{Types: offerTypes, Status: string(models.ApplicantPending)}, string(models.ApplicantWithdrawn))
	s.notifier.Announce(ctx, ref, conversations.TextWithdrawn, models.StatusTagWithdrawn)
	return models.NewApplicantsResponse(gig), nil
}

// ConfirmPaymentAndBooking confirms an accepted booking of a non-payable
// gig.
func (s *GigService) ConfirmPaymentAndBooking(ctx context.Context, actor, gigID string, req *models.ConfirmBookingRequest) (*models.ApplicantsResponse, error) {
	gig, err := s.transition(ctx, "confirm", gigID, func(ctx context.Context, g *models.Gig) error {
		if err := s.assertVenue(ctx, actor, g.VenueID, permissions.VenueApplicationsManage); err != nil {
			return err
		}
		return booking.ConfirmUnpaid(g, req.PerformerID, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Announce(ctx, conversationRef(gig, req.PerformerID), conversations.TextUnpaidBooked, models.StatusTagPaymentPaid)
	return models.NewApplicantsResponse(gig), nil
}

// CancelBooking removes the booked performer. Pending fees of the booking
// are cancelled with their ledger effects reversed, and the venue is
// refunded when a fee was reversed.
//
// The gig write and the fee reversal commit separately. Calling
// CancelBooking again after a partial failure finishes the reversal.
func (s *GigService) CancelBooking(ctx context.Context, actor, gigID string, req *models.CancelBookingRequest) (*models.ApplicantsResponse, error) {
	var performer models.Performer
	if req.Initiator == models.RolePerformer {
		p, err := s.repos.Performers.Resolve(ctx, req.PerformerID)
		if err != nil {
			return nil, err
		}
		performer = p
	}
	reason := strings.TrimSpace(req.Reason)

	var (
		removed  models.Applicant
		intentID string
		resumed  bool
	)
	gig, err := s.transition(ctx, "cancel", gigID, func(ctx context.Context, g *models.Gig) error {
		if err := s.assertSide(ctx, actor, req.Initiator, g, performer); err != nil {
			return err
		}

		intentID = g.PaymentIntentID
		r, err := booking.Cancel(g, req.PerformerID, req.Initiator, reason)
		if err != nil {
			switch apperrors.CodeOf(err) {
			case apperrors.CodeNotFound, apperrors.CodeFailedPrecondition:
				pending, lerr := s.repos.PendingFees.ListPendingByGig(ctx, g.ID, req.PerformerID)
				if lerr == nil && len(pending) > 0 {
					resumed = true
					return errNothingToSave
				}
			}
			return err
		}
		removed = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	reversed, err := s.escrow.CancelFeesForGig(ctx, gig.ID, req.PerformerID, reason)
	if err != nil {
		return nil, fmt.Errorf("booking cancelled but fee reversal is incomplete, retry the cancellation: %w", err)
	}
	if resumed {
		logger.WithContext(ctx).Info("Resumed fee reversal of cancelled booking",
			"gig_id", gig.ID, "performer_id", req.PerformerID, "reversed", reversed)
		return models.NewApplicantsResponse(gig), nil
	}

	if reversed > 0 && intentID != "" {
		s.payments.refundCancelled(ctx, intentID)
	}

	if req.Initiator == models.RoleVenue {
		s.notifier.Announce(ctx, conversationRef(gig, removed.ID), conversations.TextVenueCancel, models.StatusTagCancelled)
	} else {
		s.notifier.Announce(ctx, conversationRef(gig, removed.ID),
			fmt.Sprintf("%s has cancelled the booking.", performer.DisplayName()), models.StatusTagCancelled)
		for _, a := range gig.Applicants {
			ref := conversationRef(gig, a.ID)
			s.notifier.UpdateStatus(ctx, ref,
				models.MessageRef{Types: offerTypes, Status: models.StatusTagAppsClosed}, string(models.ApplicantPending))
			s.notifier.Announce(ctx, ref, conversations.TextReopened, models.StatusTagReopened)
		}
	}
	s.reindex(ctx, gig)

	logger.WithContext(ctx).Info("Booking cancelled",
		"gig_id", gig.ID, "performer_id", removed.ID, "initiator", req.Initiator,
		"gig_status", gig.Status, "fees_reversed", reversed)
	return models.NewApplicantsResponse(gig), nil
}

// MarkApplicantsViewed flags every applicant as seen by the venue.
func (s *GigService) MarkApplicantsViewed(ctx context.Context, actor, gigID string) (*models.ApplicantsResponse, error) {
	gig, err := s.transition(ctx, "viewed", gigID, func(ctx context.Context, g *models.Gig) error {
		if err := s.assertVenue(ctx, actor, g.VenueID, permissions.VenueGigsRead); err != nil {
			return err
		}
		booking.MarkViewed(g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.NewApplicantsResponse(gig), nil
}

// DeleteGig removes a gig and every reference to it. A gig holding an
// unsettled fee cannot be deleted.
func (s *GigService) DeleteGig(ctx context.Context, actor, gigID string) error {
	gig, err := s.repos.Gigs.Get(ctx, gigID)
	if err != nil {
		return err
	}
	if err := s.assertVenue(ctx, actor, gig.VenueID, permissions.VenueGigsUpdate); err != nil {
		return err
	}
	if active := booking.Active(gig); active != nil {
		pending, err := s.repos.PendingFees.ListByGig(ctx, gig.ID, active.ID)
		if err != nil {
			return fmt.Errorf("failed to list fees: %w", err)
		}
		for _, fee := range pending {
			if fee.Status == models.FeePending || fee.Status == models.FeeInDispute {
				return apperrors.FailedPrecondition("gig %s has an unsettled fee, cancel the booking first", gig.ID)
			}
		}
	}

	ops := []store.Op{{
		Writes: 1,
		Apply: func(ctx context.Context) error {
			return ignoreNotFound(store.ArrayRemove(ctx, s.store, repository.CollVenues, gig.VenueID, "gigs", gig.ID))
		},
	}}
	for _, a := range gig.Applicants {
		a := a
		ops = append(ops, store.Op{
			Writes: 1,
			Apply: func(ctx context.Context) error {
				return ignoreNotFound(store.ArrayRemove(ctx, s.store, repository.ProfileCollection(a.Type), a.ID, "gigs", gig.ID))
			},
		})
	}
	ops = append(ops, store.Op{
		Writes: 1,
		Apply: func(ctx context.Context) error {
			return ignoreNotFound(s.repos.Gigs.Delete(ctx, gig.ID))
		},
	})

	if n, err := store.CommitChunked(ctx, s.store, ops, s.chunkSize); err != nil {
		return fmt.Errorf("gig deletion stopped after %d of %d writes: %w", n, len(ops), err)
	}

	for _, a := range gig.Applicants {
		ref := conversationRef(gig, a.ID)
		s.notifier.UpdateStatus(ctx, ref, models.MessageRef{Types: offerTypes, Status: string(models.ApplicantPending)}, models.StatusTagAppsClosed)
		s.notifier.Announce(ctx, ref, conversations.TextGigDeleted, models.StatusTagGigDeleted)
	}
	s.unindex(ctx, gig.ID)
	s.audit(ctx, "gig.delete", actor, gig.ID, map[string]any{"venueId": gig.VenueID, "applicants": len(gig.Applicants)})
	return nil
}

func ignoreNotFound(err error) error {
	if apperrors.CodeOf(err) == apperrors.CodeNotFound {
		return nil
	}
	return err
}
