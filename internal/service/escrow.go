package service

import (
	"context"
	"fmt"
	"strings"

	"gigbook/internal/conversations"
	apperrors "gigbook/internal/errors"
	"gigbook/internal/escrow"
	"gigbook/internal/external"
	"gigbook/internal/logger"
	"gigbook/internal/metrics"
	"gigbook/internal/models"
	"gigbook/internal/permissions"
	"gigbook/internal/store"

	"github.com/google/uuid"
)

// EscrowService moves pending fees through their lifecycle and keeps the
// users' ledger balances in step with them.
type EscrowService struct {
	*core
	processor external.PaymentProcessor
	currency  string
	chunkSize int
}

func NewEscrowService(c *core, processor external.PaymentProcessor, currency string, chunkSize int) *EscrowService {
	return &EscrowService{core: c, processor: processor, currency: currency, chunkSize: chunkSize}
}

// CancelFeesForGig cancels every pending fee of one performer's booking of
// a gig and takes each allocation back out of its recipient's pending
// funds. Fees already cancelled, cleared or disputed are left alone, so
// running it twice changes nothing the second time. It returns the number
// of fees cancelled.
func (s *EscrowService) CancelFeesForGig(ctx context.Context, gigID, performerID, reason string) (int, error) {
	fees, err := s.repos.PendingFees.ListPendingByGig(ctx, gigID, performerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending fees: %w", err)
	}

	cancelled := map[string]bool{}
	ops := make([]store.Op, 0, len(fees))
	for _, f := range fees {
		feeID := f.ID
		ops = append(ops, store.Op{
			Writes: 1 + len(escrow.Allocations(&f)),
			Apply: func(ctx context.Context) error {
				fee, err := s.repos.PendingFees.Get(ctx, feeID)
				if err != nil {
					return err
				}
				if !escrow.Cancel(fee, reason, s.now()) {
					return nil
				}
				if err := s.repos.PendingFees.Save(ctx, fee); err != nil {
					return err
				}
				for _, a := range escrow.Allocations(fee) {
					if err := s.repos.Users.AdjustBalance(ctx, a.UserID, models.FieldPendingFunds, -a.Amount); err != nil {
						return err
					}
				}
				cancelled[fee.ID] = true
				return nil
			},
		})
	}

	n, err := store.CommitChunked(ctx, s.store, ops, s.chunkSize)
	if err != nil {
		return n, fmt.Errorf("fee reversal stopped after %d of %d fees: %w", n, len(ops), err)
	}
	metrics.FeesReversed.Add(float64(len(cancelled)))
	if len(cancelled) > 0 {
		logger.WithContext(ctx).Info("Pending fees cancelled",
			"gig_id", gigID, "performer_id", performerID, "cancelled", len(cancelled))
	}
	return len(cancelled), nil
}

// LogDispute freezes the fee of a booking. Either the venue, through a
// member holding reviews.create, or the performer side may raise it.
func (s *EscrowService) LogDispute(ctx context.Context, actor string, req *models.LogDisputeRequest) (*models.LogDisputeResponse, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperrors.InvalidArgument("a dispute reason is required")
	}

	gig, err := s.repos.Gigs.Get(ctx, req.GigID)
	if err != nil {
		return nil, err
	}
	performer, err := s.repos.Performers.Resolve(ctx, req.PerformerID)
	if err != nil {
		return nil, err
	}
	if err := s.assertDisputeParty(ctx, actor, gig, performer); err != nil {
		return nil, err
	}

	found, err := s.findFee(ctx, gig, performer.EntityID())
	if err != nil {
		return nil, err
	}
	venueOwner, err := s.repos.Teams.TeamOwner(ctx, models.EntityVenue, gig.VenueID)
	if err != nil {
		return nil, err
	}

	resp := &models.LogDisputeResponse{Success: true}
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		fee, err := s.repos.PendingFees.Get(ctx, found.ID)
		if err != nil {
			return err
		}
		already, err := escrow.LogDispute(fee, req.Reason, req.Details)
		if err != nil {
			return err
		}
		resp.AlreadyInDispute = already
		if already {
			return nil
		}
		if err := s.repos.PendingFees.Save(ctx, fee); err != nil {
			return err
		}

		g, err := s.repos.Gigs.Get(ctx, gig.ID)
		if err != nil {
			return err
		}
		g.DisputeLogged = true
		g.DisputeClearingTime = nil
		g.MusicianFeeStatus = models.FeeInDispute
		g.UpdatedAt = s.now()
		if err := s.repos.Gigs.Save(ctx, g); err != nil {
			return err
		}

		dispute := &models.Dispute{
			ID:           uuid.New().String(),
			Type:         "gig",
			GigID:        gig.ID,
			VenueID:      gig.VenueID,
			PerformerID:  performer.EntityID(),
			FeeID:        fee.ID,
			RaisedByUID:  actor,
			Reason:       fee.DisputeReason,
			Details:      fee.DisputeDetails,
			Attachments:  req.Attachments,
			Participants: participants(venueOwner, performer.OwnerUserID(), actor),
			Status:       models.DisputeOpen,
			CreatedAt:    s.now(),
		}
		resp.DisputeID = dispute.ID
		return s.repos.Disputes.Save(ctx, dispute)
	})
	metrics.ObserveTransition("dispute", err)
	if err != nil {
		return nil, err
	}
	if resp.AlreadyInDispute {
		return resp, nil
	}

	metrics.Disputes.Inc()
	s.notifier.Announce(ctx, conversationRef(gig, performer.EntityID()),
		conversations.TextDispute(gig.StartTime.Format("2 January 2006")), models.StatusTagDisputeLogged)
	logger.WithContext(ctx).Info("Dispute logged",
		"gig_id", gig.ID, "fee_id", found.ID, "dispute_id", resp.DisputeID)
	return resp, nil
}

func (s *EscrowService) assertDisputeParty(ctx context.Context, actor string, gig *models.Gig, p models.Performer) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if s.assertPerformer(ctx, actor, p) == nil {
		return nil
	}
	return s.assertVenue(ctx, actor, gig.VenueID, permissions.VenueReviewsCreate)
}

func participants(ids ...string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// findFee returns the fee of a booking: the one keyed by the gig's
// payment intent when there is one, else the newest recorded.
func (s *EscrowService) findFee(ctx context.Context, gig *models.Gig, performerID string) (*models.PendingFee, error) {
	if gig.PaymentIntentID != "" {
		fee, err := s.repos.PendingFees.Get(ctx, gig.PaymentIntentID)
		if err == nil && fee.PerformerID == performerID {
			return fee, nil
		}
		if err != nil && apperrors.CodeOf(err) != apperrors.CodeNotFound {
			return nil, err
		}
	}

	fees, err := s.repos.PendingFees.ListByGig(ctx, gig.ID, performerID)
	if err != nil {
		return nil, err
	}
	if len(fees) == 0 {
		return nil, apperrors.NotFound("no fee recorded for performer %s on gig %s", performerID, gig.ID)
	}
	newest := &fees[0]
	for i := range fees {
		if fees[i].CreatedAt.After(newest.CreatedAt) {
			newest = &fees[i]
		}
	}
	return newest, nil
}

// FindPendingFee returns the fee of a booking to either party.
func (s *EscrowService) FindPendingFee(ctx context.Context, actor, gigID, performerID string) (*models.PendingFee, error) {
	gig, err := s.repos.Gigs.Get(ctx, gigID)
	if err != nil {
		return nil, err
	}
	performer, err := s.repos.Performers.Resolve(ctx, performerID)
	if err != nil {
		return nil, err
	}
	if s.assertPerformer(ctx, actor, performer) != nil {
		if err := s.assertVenue(ctx, actor, gig.VenueID, permissions.VenueFinancesRead); err != nil {
			return nil, err
		}
	}
	return s.findFee(ctx, gig, performer.EntityID())
}

// ListPerformerFees returns a performer's fees, newest first.
func (s *EscrowService) ListPerformerFees(ctx context.Context, actor, performerID string) ([]models.PendingFee, error) {
	performer, err := s.repos.Performers.Resolve(ctx, performerID)
	if err != nil {
		return nil, err
	}
	if artist, ok := performer.(models.ArtistEntity); ok {
		err = s.resolver.Assert(ctx, actor, models.EntityArtist, artist.EntityID(), permissions.ArtistFinancesRead)
	} else {
		err = s.assertPerformer(ctx, actor, performer)
	}
	if err != nil {
		return nil, err
	}
	return s.repos.PendingFees.ListByPerformer(ctx, performer.EntityID())
}

// MarkFeeCleared releases a due fee. Pending funds move to total and
// withdrawable earnings in the same transaction; recipients with a
// connected account are then paid out, which takes the transferred amount
// back off their withdrawable balance.
func (s *EscrowService) MarkFeeCleared(ctx context.Context, feeID string) error {
	var cleared *models.PendingFee
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		fee, err := s.repos.PendingFees.Get(ctx, feeID)
		if err != nil {
			return err
		}
		if err := escrow.Clear(fee, s.now()); err != nil {
			return err
		}
		if err := s.repos.PendingFees.Save(ctx, fee); err != nil {
			return err
		}

		for _, a := range escrow.Allocations(fee) {
			if err := s.repos.Users.AdjustBalance(ctx, a.UserID, models.FieldPendingFunds, -a.Amount); err != nil {
				return err
			}
			if err := s.repos.Users.AdjustBalance(ctx, a.UserID, models.FieldTotalEarnings, a.Amount); err != nil {
				return err
			}
			if err := s.repos.Users.AdjustBalance(ctx, a.UserID, models.FieldWithdrawableEarnings, a.Amount); err != nil {
				return err
			}
		}

		gig, err := s.repos.Gigs.Get(ctx, fee.GigID)
		switch {
		case err == nil:
			gig.MusicianFeeStatus = models.FeeCleared
			gig.UpdatedAt = s.now()
			if err := s.repos.Gigs.Save(ctx, gig); err != nil {
				return err
			}
		case apperrors.CodeOf(err) != apperrors.CodeNotFound:
			return err
		}

		cleared = fee
		return nil
	})
	if err != nil {
		return err
	}

	metrics.FeesCleared.Inc()
	logger.WithContext(ctx).Info("Fee cleared", "fee_id", cleared.ID, "gig_id", cleared.GigID, "amount", cleared.Amount)
	s.payOut(ctx, cleared)
	return nil
}

// payOut transfers each allocation of a cleared fee to its recipient's
// connected account. Failures are logged; the money stays withdrawable.
func (s *EscrowService) payOut(ctx context.Context, fee *models.PendingFee) {
	for _, a := range escrow.Allocations(fee) {
		if a.Amount <= 0 {
			continue
		}
		user, err := s.repos.Users.Get(ctx, a.UserID)
		if err != nil || user.StripeConnectID == "" {
			continue
		}

		transferID, err := s.processor.Transfer(ctx, external.TransferRequest{
			AmountPence:        a.Amount,
			Currency:           s.currency,
			DestinationAccount: user.StripeConnectID,
			TransferGroup:      fee.GigID,
			IdempotencyKey:     "transfer-" + fee.ID + "-" + a.UserID,
			Metadata: map[string]string{
				"feeId":  fee.ID,
				"gigId":  fee.GigID,
				"userId": a.UserID,
			},
		})
		if err != nil {
			metrics.BestEffortFailures.WithLabelValues("payouts").Inc()
			logger.WithContext(ctx).Error("Failed to transfer cleared fee",
				"sink", "payouts", "fee_id", fee.ID, "user_id", a.UserID, "amount", a.Amount, "error", err)
			continue
		}

		if err := s.repos.Users.AdjustBalance(ctx, a.UserID, models.FieldWithdrawableEarnings, -a.Amount); err != nil {
			logger.WithContext(ctx).Error("Failed to record transfer against withdrawable earnings",
				"fee_id", fee.ID, "user_id", a.UserID, "transfer_id", transferID, "error", err)
			continue
		}
		logger.WithContext(ctx).Info("Cleared fee transferred",
			"fee_id", fee.ID, "user_id", a.UserID, "amount", a.Amount, "transfer_id", transferID)
	}
}

// ClearDueFees clears every pending fee whose clearing time has passed.
// A fee that fails is reported and the rest are still attempted.
func (s *EscrowService) ClearDueFees(ctx context.Context) (*models.ClearFeesResponse, error) {
	fees, err := s.repos.PendingFees.ListPending(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending fees: %w", err)
	}

	resp := &models.ClearFeesResponse{Success: true, Cleared: []string{}}
	now := s.now()
	for i := range fees {
		fee := &fees[i]
		if !escrow.Due(fee, now) {
			continue
		}
		if err := s.MarkFeeCleared(ctx, fee.ID); err != nil {
			logger.WithContext(ctx).Error("Failed to clear fee", "fee_id", fee.ID, "error", err)
			resp.Failed = append(resp.Failed, fee.ID)
			continue
		}
		resp.Cleared = append(resp.Cleared, fee.ID)
	}
	return resp, nil
}
