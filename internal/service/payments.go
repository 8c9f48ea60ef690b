package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigbook/internal/booking"
	"gigbook/internal/conversations"
	apperrors "gigbook/internal/errors"
	"gigbook/internal/escrow"
	"gigbook/internal/external"
	"gigbook/internal/logger"
	"gigbook/internal/metrics"
	"gigbook/internal/models"
	"gigbook/internal/money"
	"gigbook/internal/permissions"
)

const (
	confirmKeyTTL = 10 * time.Minute
	webhookKeyTTL = 24 * time.Hour
)

// PaymentService charges venues for booked gigs and turns settled charges
// into pending fees.
type PaymentService struct {
	*core
	processor      external.PaymentProcessor
	guard          IdempotencyGuard
	currency       string
	clearingWindow time.Duration
}

func NewPaymentService(c *core, processor external.PaymentProcessor, guard IdempotencyGuard, currency string, clearingWindow time.Duration) *PaymentService {
	return &PaymentService{
		core:           c,
		processor:      processor,
		guard:          guard,
		currency:       currency,
		clearingWindow: clearingWindow,
	}
}

// ConfirmPayment charges the venue for the agreed fee of an accepted
// booking. The applicant waits in payment processing until the processor
// reports the outcome; a charge that settles at once is handled
// immediately.
func (s *PaymentService) ConfirmPayment(ctx context.Context, actor, gigID string, req *models.ConfirmPaymentRequest) (*models.ConfirmPaymentResponse, error) {
	gig, err := s.repos.Gigs.Get(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if err := s.assertVenue(ctx, actor, gig.VenueID, permissions.VenueGigsPay); err != nil {
		return nil, err
	}
	if gig.NonPayable {
		return nil, apperrors.FailedPrecondition("gig %s takes no payment", gig.ID)
	}

	customerID := req.CustomerID
	if customerID == "" {
		user, err := s.repos.Users.Get(ctx, actor)
		if err != nil && apperrors.CodeOf(err) != apperrors.CodeNotFound {
			return nil, err
		}
		if user != nil {
			customerID = user.StripeCustomerID
		}
	}
	if customerID == "" {
		return nil, apperrors.FailedPrecondition("no saved customer to charge")
	}

	key := "confirm:" + gig.ID + ":" + req.PerformerID
	if s.guard != nil {
		ok, err := s.guard.AcquireIdempotencyKey(ctx, key, confirmKeyTTL)
		if err != nil {
			return nil, apperrors.Internal(err, "idempotency check failed")
		}
		if !ok {
			return nil, apperrors.Conflict("payment for this booking is already in progress")
		}
	}

	var amount int64
	gig, err = s.transition(ctx, "payment_start", gig.ID, func(ctx context.Context, g *models.Gig) error {
		if err := booking.MarkPaymentProcessing(g, req.PerformerID, s.now()); err != nil {
			return err
		}
		pence, err := parseFee(g.AgreedFee)
		if err != nil {
			return err
		}
		amount = pence
		g.PaymentStatus = models.PaymentProcessing
		return nil
	})
	if err != nil {
		s.release(ctx, key)
		return nil, err
	}

	result, err := s.processor.CreateCharge(ctx, external.ChargeRequest{
		AmountPence:     amount,
		Currency:        s.currency,
		CustomerID:      customerID,
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  "gig-" + gig.ID + "-" + req.PerformerID,
		Description:     "Gig fee: " + gig.Title,
		Metadata: map[string]string{
			"gigId":       gig.ID,
			"performerId": req.PerformerID,
			"venueId":     gig.VenueID,
		},
	})
	if err != nil {
		s.revert(ctx, gig.ID, req.PerformerID)
		s.release(ctx, key)
		return nil, chargeError(err)
	}

	now := s.now()
	payment := &models.Payment{
		ID:          result.ID,
		GigID:       gig.ID,
		PerformerID: req.PerformerID,
		VenueID:     gig.VenueID,
		Amount:      amount,
		Currency:    s.currency,
		Status:      models.PaymentProcessing,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Payments.Save(ctx, payment); err != nil {
			return err
		}
		g, err := s.repos.Gigs.Get(ctx, gig.ID)
		if err != nil {
			return err
		}
		g.PaymentIntentID = result.ID
		g.UpdatedAt = now
		return s.repos.Gigs.Save(ctx, g)
	})
	if err != nil {
		return nil, fmt.Errorf("charge %s created but not recorded: %w", result.ID, err)
	}

	logger.WithContext(ctx).Info("Gig payment created",
		"gig_id", gig.ID, "performer_id", req.PerformerID, "payment_intent_id", result.ID,
		"status", result.Status, "requires_action", result.RequiresAction)

	if result.Status == "succeeded" {
		if err := s.HandlePaymentSucceeded(ctx, result.ID); err != nil {
			logger.WithContext(ctx).Error("Failed to settle payment, waiting for webhook",
				"payment_intent_id", result.ID, "error", err)
		}
	}

	return &models.ConfirmPaymentResponse{
		Success:         true,
		PaymentIntentID: result.ID,
		Status:          result.Status,
		RequiresAction:  result.RequiresAction,
		ClientSecret:    result.ClientSecret,
	}, nil
}

func chargeError(err error) error {
	switch {
	case errors.Is(err, external.ErrPaymentDeclined):
		return apperrors.FailedPrecondition("%v", err)
	case errors.Is(err, external.ErrIdempotencyConflict):
		return apperrors.Conflict("payment for this booking is already in progress")
	case errors.Is(err, external.ErrProcessorNotConfigured):
		return apperrors.FailedPrecondition("payments are not available")
	default:
		return apperrors.Internal(err, "payment failed")
	}
}

func (s *PaymentService) release(ctx context.Context, key string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.ReleaseIdempotencyKey(ctx, key); err != nil {
		logger.WithContext(ctx).Warn("Failed to release idempotency key", "key", key, "error", err)
	}
}

// revert puts a booking whose charge failed back to accepted.
func (s *PaymentService) revert(ctx context.Context, gigID, performerID string) {
	_, err := s.transition(ctx, "payment_revert", gigID, func(ctx context.Context, g *models.Gig) error {
		if err := booking.RevertPayment(g, performerID, s.now()); err != nil {
			return err
		}
		g.PaymentStatus = models.PaymentFailed
		return nil
	})
	if err != nil {
		logger.WithContext(ctx).Error("Failed to revert payment state", "gig_id", gigID, "performer_id", performerID, "error", err)
	}
}

// HandlePaymentSucceeded confirms the booking a charge was made for and
// records its pending fee, crediting each recipient's pending funds.
// Delivering the same intent again changes nothing.
func (s *PaymentService) HandlePaymentSucceeded(ctx context.Context, intentID string) error {
	payment, err := s.repos.Payments.Get(ctx, intentID)
	if err != nil {
		return err
	}
	performer, err := s.repos.Performers.Resolve(ctx, payment.PerformerID)
	if err != nil {
		return err
	}

	var (
		gig       *models.Gig
		created   bool
		orphaned  bool
		clearedAt time.Time
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		created, orphaned = false, false

		p, err := s.repos.Payments.Get(ctx, intentID)
		if err != nil {
			return err
		}
		if p.Status == models.PaymentRefunded {
			return nil
		}
		if _, err := s.repos.PendingFees.Get(ctx, intentID); err == nil {
			return nil
		} else if apperrors.CodeOf(err) != apperrors.CodeNotFound {
			return err
		}

		g, err := s.repos.Gigs.Get(ctx, p.GigID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := booking.MarkPaid(g, p.PerformerID, now); err != nil {
			orphaned = true
			p.Status = models.PaymentSucceeded
			p.UpdatedAt = now
			return s.repos.Payments.Save(ctx, p)
		}

		clearedAt = g.StartTime.Add(s.clearingWindow)
		g.Paid = true
		g.Status = models.GigClosed
		g.PaymentStatus = models.PaymentSucceeded
		g.PaymentIntentID = intentID
		g.MusicianFeeStatus = models.FeePending
		g.DisputeClearingTime = &clearedAt
		g.UpdatedAt = now
		if err := booking.CheckExclusive(g); err != nil {
			return err
		}
		if err := s.repos.Gigs.Save(ctx, g); err != nil {
			return err
		}

		fee := &models.PendingFee{
			ID:                  intentID,
			PerformerID:         p.PerformerID,
			RecipientUserID:     performer.OwnerUserID(),
			GigID:               g.ID,
			VenueID:             g.VenueID,
			Amount:              p.Amount,
			Currency:            p.Currency,
			Status:              models.FeePending,
			PayoutConfig:        g.PayoutConfig,
			DisputeClearingTime: &clearedAt,
			CreatedAt:           now,
		}
		if err := s.repos.PendingFees.Save(ctx, fee); err != nil {
			return err
		}
		for _, a := range escrow.Allocations(fee) {
			if err := s.repos.Users.AdjustBalance(ctx, a.UserID, models.FieldPendingFunds, a.Amount); err != nil {
				return err
			}
		}

		p.Status = models.PaymentSucceeded
		p.UpdatedAt = now
		if err := s.repos.Payments.Save(ctx, p); err != nil {
			return err
		}
		gig, created = g, true
		return nil
	})
	metrics.ObserveTransition("payment_succeeded", err)
	if err != nil {
		return err
	}

	if orphaned {
		logger.WithContext(ctx).Warn("Payment settled for a booking that no longer exists, refunding",
			"payment_intent_id", intentID, "gig_id", payment.GigID, "performer_id", payment.PerformerID)
		s.refundCancelled(ctx, intentID)
		return nil
	}
	if !created {
		return nil
	}

	s.notifier.UpdateStatus(ctx, conversationRef(gig, payment.PerformerID),
		models.MessageRef{Types: offerTypes, Status: string(models.ApplicantAccepted)}, string(models.ApplicantConfirmed))
	s.notifier.Announce(ctx, conversationRef(gig, payment.PerformerID),
		conversations.TextPaid(money.Format(payment.Amount)), models.StatusTagPaymentPaid)
	s.reindex(ctx, gig)
	logger.WithContext(ctx).Info("Payment settled, fee pending",
		"payment_intent_id", intentID, "gig_id", gig.ID, "amount", payment.Amount, "clears_at", clearedAt)
	return nil
}

// HandlePaymentFailed puts the booking back to accepted so the venue can
// pay again.
func (s *PaymentService) HandlePaymentFailed(ctx context.Context, intentID, reason string) error {
	payment, err := s.repos.Payments.Get(ctx, intentID)
	if err != nil {
		return err
	}

	_, err = s.transition(ctx, "payment_failed", payment.GigID, func(ctx context.Context, g *models.Gig) error {
		if g.PaymentIntentID != "" && g.PaymentIntentID != intentID {
			return errNothingToSave
		}
		if err := booking.RevertPayment(g, payment.PerformerID, s.now()); err != nil {
			return err
		}
		g.PaymentStatus = models.PaymentFailed

		payment.Status = models.PaymentFailed
		payment.UpdatedAt = s.now()
		return s.repos.Payments.Save(ctx, payment)
	})
	if err != nil {
		return err
	}

	s.release(ctx, "confirm:"+payment.GigID+":"+payment.PerformerID)
	logger.WithContext(ctx).Warn("Gig payment failed",
		"payment_intent_id", intentID, "gig_id", payment.GigID, "reason", reason)
	return nil
}

// HandleWebhook verifies and dispatches a processor event. Events seen
// before are acknowledged without being handled again.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, external.ErrInvalidWebhook) {
			return apperrors.InvalidArgument("invalid webhook signature")
		}
		return apperrors.Internal(err, "webhook rejected")
	}
	if event.PaymentIntentID == "" {
		return nil
	}

	key := "webhook:" + event.ID
	if s.guard != nil {
		ok, err := s.guard.AcquireIdempotencyKey(ctx, key, webhookKeyTTL)
		if err != nil {
			return apperrors.Internal(err, "idempotency check failed")
		}
		if !ok {
			return nil
		}
	}

	switch event.Type {
	case external.EventPaymentSucceeded:
		err = s.HandlePaymentSucceeded(ctx, event.PaymentIntentID)
	case external.EventPaymentFailed:
		err = s.HandlePaymentFailed(ctx, event.PaymentIntentID, event.FailureMessage)
	}
	if err != nil {
		s.release(ctx, key)
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			logger.WithContext(ctx).Warn("Webhook for unknown payment", "event_id", event.ID, "payment_intent_id", event.PaymentIntentID)
			return nil
		}
		return err
	}
	return nil
}

// RefundPayment refunds a charge whose fee was cancelled or never created.
func (s *PaymentService) RefundPayment(ctx context.Context, actor string, req *models.RefundRequest) (*models.Payment, error) {
	payment, err := s.repos.Payments.Get(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if err := s.assertVenue(ctx, actor, payment.VenueID, permissions.VenueGigsPay); err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentRefunded {
		return payment, nil
	}

	fee, err := s.repos.PendingFees.Get(ctx, payment.ID)
	switch {
	case err == nil && fee.Status != models.FeeCancelled:
		return nil, apperrors.FailedPrecondition("fee %s is %s, cancel the booking first", fee.ID, fee.Status)
	case err != nil && apperrors.CodeOf(err) != apperrors.CodeNotFound:
		return nil, err
	}

	refundID, err := s.processor.Refund(ctx, payment.ID, "refund-"+payment.ID)
	if err != nil {
		return nil, chargeError(err)
	}
	if err := s.markRefunded(ctx, payment.ID, refundID); err != nil {
		return nil, err
	}
	s.audit(ctx, "payment.refund", actor, payment.ID, map[string]any{"gigId": payment.GigID, "amount": payment.Amount})
	return s.repos.Payments.Get(ctx, payment.ID)
}

// refundCancelled refunds a charge after its booking was cancelled.
// Failures are logged for a manual RefundPayment.
func (s *PaymentService) refundCancelled(ctx context.Context, intentID string) {
	refundID, err := s.processor.Refund(ctx, intentID, "refund-"+intentID)
	if err != nil {
		metrics.BestEffortFailures.WithLabelValues("refunds").Inc()
		logger.WithContext(ctx).Error("Failed to refund cancelled booking",
			"sink", "refunds", "payment_intent_id", intentID, "error", err)
		return
	}
	if err := s.markRefunded(ctx, intentID, refundID); err != nil {
		logger.WithContext(ctx).Error("Refund issued but not recorded",
			"payment_intent_id", intentID, "refund_id", refundID, "error", err)
	}
}

func (s *PaymentService) markRefunded(ctx context.Context, intentID, refundID string) error {
	return s.store.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.repos.Payments.Get(ctx, intentID)
		if err != nil {
			return err
		}
		p.Status = models.PaymentRefunded
		p.RefundID = refundID
		p.UpdatedAt = s.now()
		return s.repos.Payments.Save(ctx, p)
	})
}

// Balance returns the processor balance of the actor's connected account.
func (s *PaymentService) Balance(ctx context.Context, actor string) (*external.Balance, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	user, err := s.repos.Users.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	if user.StripeConnectID == "" {
		return nil, apperrors.FailedPrecondition("no connected payout account")
	}
	balance, err := s.processor.RetrieveBalance(ctx, user.StripeConnectID)
	if err != nil {
		return nil, chargeError(err)
	}
	return balance, nil
}
