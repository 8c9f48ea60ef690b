package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

var (
	ErrPaymentDeclined        = errors.New("payment declined")
	ErrProviderDown           = errors.New("payment provider unavailable")
	ErrIdempotencyConflict    = errors.New("payment idempotency key in use")
	ErrInvalidWebhook         = errors.New("invalid webhook signature")
	ErrProcessorNotConfigured = errors.New("payment processor not configured")
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type ChargeRequest struct {
	AmountPence     int64
	Currency        string
	CustomerID      string
	PaymentMethodID string
	IdempotencyKey  string
	Description     string
	Metadata        map[string]string
}

type ChargeResult struct {
	ID             string
	Status         string
	ClientSecret   string
	RequiresAction bool
}

type TransferRequest struct {
	AmountPence        int64
	Currency           string
	DestinationAccount string
	TransferGroup      string
	IdempotencyKey     string
	Metadata           map[string]string
}

type BalanceAmount struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Balance struct {
	Available []BalanceAmount `json:"available"`
	Pending   []BalanceAmount `json:"pending"`
}

// WebhookEvent is the part of a processor event the booking flow acts on.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	Metadata        map[string]string
	FailureMessage  string
}

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// PaymentProcessor is the card and payout provider used for gig fees.
type PaymentProcessor interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, paymentIntentID, idempotencyKey string) (string, error)
	Transfer(ctx context.Context, req TransferRequest) (string, error)
	RetrieveBalance(ctx context.Context, connectAccountID string) (*Balance, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

type StripeProcessor struct {
	client        *client.API
	webhookSecret string
}

func NewStripeProcessor(cfg StripeConfig) *StripeProcessor {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return &StripeProcessor{client: sc, webhookSecret: cfg.WebhookSecret}
}

// CreateCharge confirms an off-session payment intent against the saved
// payment method. A card that needs authentication is not an error: the
// result carries the client secret for the venue to finish the payment.
func (p *StripeProcessor) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountPence <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrPaymentDeclined)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountPence),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		Description:   stripe.String(req.Description),
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := p.client.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeAuthenticationRequired && stripeErr.PaymentIntent != nil {
			return &ChargeResult{
				ID:             stripeErr.PaymentIntent.ID,
				Status:         string(stripeErr.PaymentIntent.Status),
				ClientSecret:   stripeErr.PaymentIntent.ClientSecret,
				RequiresAction: true,
			}, nil
		}
		return nil, mapStripeError(err)
	}

	return &ChargeResult{
		ID:             pi.ID,
		Status:         string(pi.Status),
		ClientSecret:   pi.ClientSecret,
		RequiresAction: pi.Status == stripe.PaymentIntentStatusRequiresAction,
	}, nil
}

func (p *StripeProcessor) Refund(ctx context.Context, paymentIntentID, idempotencyKey string) (string, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}
	params.Context = ctx

	r, err := p.client.Refunds.New(params)
	if err != nil {
		return "", mapStripeError(err)
	}
	return r.ID, nil
}

// Transfer moves a cleared share to a performer's connected account.
func (p *StripeProcessor) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountPence),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.DestinationAccount),
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	t, err := p.client.Transfers.New(params)
	if err != nil {
		return "", mapStripeError(err)
	}
	return t.ID, nil
}

func (p *StripeProcessor) RetrieveBalance(ctx context.Context, connectAccountID string) (*Balance, error) {
	params := &stripe.BalanceParams{}
	params.SetStripeAccount(connectAccountID)
	params.Context = ctx

	b, err := p.client.Balance.Get(params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	out := &Balance{}
	for _, a := range b.Available {
		out.Available = append(out.Available, BalanceAmount{Amount: a.Amount, Currency: string(a.Currency)})
	}
	for _, a := range b.Pending {
		out.Pending = append(out.Pending, BalanceAmount{Amount: a.Amount, Currency: string(a.Currency)})
	}
	return out, nil
}

// ParseWebhook verifies the signature header and extracts the payment
// intent fields. Event types other than payment intents come back with an
// empty PaymentIntentID.
func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			slog.Warn("Failed to decode payment intent from webhook", "event_id", event.ID, "error", err)
			return out, nil
		}
		out.PaymentIntentID = pi.ID
		out.Metadata = pi.Metadata
		if pi.LastPaymentError != nil {
			out.FailureMessage = pi.LastPaymentError.Msg
		}
	}
	return out, nil
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripe.ErrorCodeCardDeclined:
			return fmt.Errorf("%w: card was declined (%s)", ErrPaymentDeclined, stripeErr.Msg)
		case stripe.ErrorCodeExpiredCard:
			return fmt.Errorf("%w: card has expired", ErrPaymentDeclined)
		case stripe.ErrorCodeBalanceInsufficient:
			return fmt.Errorf("%w: insufficient funds", ErrPaymentDeclined)
		case stripe.ErrorCodeIdempotencyKeyInUse:
			return ErrIdempotencyConflict
		}

		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return ErrProviderDown
		}
	}
	return fmt.Errorf("payment gateway error: %w", err)
}

// UnconfiguredProcessor rejects every call. It stands in when no secret key
// is set so the rest of the API keeps working in development.
type UnconfiguredProcessor struct{}

func (UnconfiguredProcessor) CreateCharge(context.Context, ChargeRequest) (*ChargeResult, error) {
	return nil, ErrProcessorNotConfigured
}

func (UnconfiguredProcessor) Refund(context.Context, string, string) (string, error) {
	return "", ErrProcessorNotConfigured
}

func (UnconfiguredProcessor) Transfer(context.Context, TransferRequest) (string, error) {
	return "", ErrProcessorNotConfigured
}

func (UnconfiguredProcessor) RetrieveBalance(context.Context, string) (*Balance, error) {
	return nil, ErrProcessorNotConfigured
}

func (UnconfiguredProcessor) ParseWebhook([]byte, string) (*WebhookEvent, error) {
	return nil, ErrProcessorNotConfigured
}
