package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigbook/internal/booking"
	"gigbook/internal/conversations"
	apperrors "gigbook/internal/errors"
	"gigbook/internal/external"
	"gigbook/internal/logger"
	"gigbook/internal/metrics"
	"gigbook/internal/models"
	"gigbook/internal/money"
	"gigbook/internal/permissions"
	"gigbook/internal/repository"
	"gigbook/internal/store"

	"github.com/google/uuid"
)

// GigIndexer mirrors gigs into the search index.
type GigIndexer interface {
	IndexGig(ctx context.Context, gig *models.Gig) error
	DeleteGig(ctx context.Context, gigID string) error
}

// IdempotencyGuard claims a key for a while so concurrent duplicates of a
// request are rejected. cache.ValkeyClient implements it.
type IdempotencyGuard interface {
	AcquireIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Options carries the optional collaborators of the services. Nil
// interfaces disable the feature behind them.
type Options struct {
	Payments       external.PaymentProcessor
	Idempotency    IdempotencyGuard
	Index          GigIndexer
	Synchronizer   conversations.Synchronizer
	Currency       string
	ClearingWindow time.Duration
	WriteChunkSize int
	Now            func() time.Time
}

type Services struct {
	Gigs     *GigService
	Escrow   *EscrowService
	Payments *PaymentService
	Teams    *TeamService
	Bands    *BandService
}

func NewServices(repos *repository.Repositories, resolver *permissions.Resolver, opts Options) *Services {
	if opts.Payments == nil {
		opts.Payments = external.UnconfiguredProcessor{}
	}
	if opts.Currency == "" {
		opts.Currency = "gbp"
	}
	if opts.ClearingWindow <= 0 {
		opts.ClearingWindow = 48 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	c := &core{
		repos:    repos,
		store:    repos.Store,
		resolver: resolver,
		notifier: conversations.NewNotifier(opts.Synchronizer),
		index:    opts.Index,
		now:      opts.Now,
	}

	escrowService := NewEscrowService(c, opts.Payments, opts.Currency, opts.WriteChunkSize)
	paymentService := NewPaymentService(c, opts.Payments, opts.Idempotency, opts.Currency, opts.ClearingWindow)
	gigService := NewGigService(c, escrowService, paymentService, opts.WriteChunkSize)

	return &Services{
		Gigs:     gigService,
		Escrow:   escrowService,
		Payments: paymentService,
		Teams:    NewTeamService(c),
		Bands:    NewBandService(c, opts.WriteChunkSize),
	}
}

// core is shared by every service.
type core struct {
	repos    *repository.Repositories
	store    store.Store
	resolver *permissions.Resolver
	notifier *conversations.Notifier
	index    GigIndexer
	now      func() time.Time
}

// errNothingToSave ends a transition without writing the gig.
var errNothingToSave = errors.New("nothing to save")

var offerTypes = []string{
	models.MessageTypeApplication,
	models.MessageTypeInvitation,
	models.MessageTypeNegotiation,
}

// transition re-reads the gig inside a transaction, lets fn change it and
// saves it. The returned gig is what was committed.
func (c *core) transition(ctx context.Context, action, gigID string, fn func(ctx context.Context, gig *models.Gig) error) (*models.Gig, error) {
	var committed *models.Gig
	err := c.store.RunInTx(ctx, func(ctx context.Context) error {
		gig, err := c.repos.Gigs.Get(ctx, gigID)
		if err != nil {
			return err
		}
		if err := fn(ctx, gig); err != nil {
			if errors.Is(err, errNothingToSave) {
				committed = gig
				return nil
			}
			return err
		}
		if err := booking.CheckExclusive(gig); err != nil {
			return err
		}
		gig.UpdatedAt = c.now()
		if err := c.repos.Gigs.Save(ctx, gig); err != nil {
			return err
		}
		committed = gig
		return nil
	})
	metrics.ObserveTransition(action, err)
	if err != nil {
		logger.WithContext(ctx).Warn("Gig transition rejected",
			"action", action, "gig_id", gigID, "code", apperrors.CodeOf(err), "error", err)
		return nil, err
	}
	return committed, nil
}

func requireActor(actor string) error {
	if actor == "" {
		return apperrors.ErrUnauthorized
	}
	return nil
}

func (c *core) assertVenue(ctx context.Context, actor, venueID, capability string) error {
	return c.resolver.Assert(ctx, actor, models.EntityVenue, venueID, capability)
}

// assertPerformer checks that actor may book for p: artist members need
// gigs.book, a musician profile only answers to its user and a band to its
// admin.
func (c *core) assertPerformer(ctx context.Context, actor string, p models.Performer) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	switch v := p.(type) {
	case models.ArtistEntity:
		return c.resolver.Assert(ctx, actor, models.EntityArtist, v.EntityID(), permissions.ArtistGigsBook)
	case models.BandEntity:
		if v.Band.Admin.UserID == actor {
			return nil
		}
		return apperrors.PermissionDenied("only the band admin can act for band %s", v.EntityID())
	default:
		if p.OwnerUserID() == actor {
			return nil
		}
		return apperrors.PermissionDenied("profile %s belongs to another user", p.EntityID())
	}
}

// assertSide authorizes actor for one side of an applicant action.
func (c *core) assertSide(ctx context.Context, actor string, side models.Role, gig *models.Gig, p models.Performer) error {
	if err := booking.ValidSide(side); err != nil {
		return err
	}
	if side == models.RoleVenue {
		return c.assertVenue(ctx, actor, gig.VenueID, permissions.VenueApplicationsManage)
	}
	if p == nil {
		return apperrors.InvalidArgument("missing performer")
	}
	return c.assertPerformer(ctx, actor, p)
}

func conversationRef(gig *models.Gig, performerID string) models.ConversationRef {
	return models.ConversationRef{GigID: gig.ID, VenueID: gig.VenueID, PerformerID: performerID}
}

// audit appends to the audit log after the change it records has
// committed. A failed append is logged, not returned.
func (c *core) audit(ctx context.Context, action, actor, target string, details map[string]any) {
	entry := &models.AuditEntry{
		ID:        uuid.New().String(),
		Action:    action,
		ActorID:   actor,
		TargetID:  target,
		Details:   details,
		CreatedAt: c.now(),
	}
	if err := c.repos.Audit.Append(ctx, entry); err != nil {
		metrics.BestEffortFailures.WithLabelValues("audit").Inc()
		logger.WithContext(ctx).Error("Failed to append audit entry",
			"sink", "audit", "action", action, "target_id", target, "error", err)
	}
}

func (c *core) reindex(ctx context.Context, gig *models.Gig) {
	if c.index == nil {
		return
	}
	if err := c.index.IndexGig(ctx, gig); err != nil {
		metrics.BestEffortFailures.WithLabelValues("search").Inc()
		logger.WithContext(ctx).Error("Failed to index gig", "sink", "search", "gig_id", gig.ID, "error", err)
	}
}

func (c *core) unindex(ctx context.Context, gigID string) {
	if c.index == nil {
		return
	}
	if err := c.index.DeleteGig(ctx, gigID); err != nil {
		metrics.BestEffortFailures.WithLabelValues("search").Inc()
		logger.WithContext(ctx).Error("Failed to remove gig from index", "sink", "search", "gig_id", gigID, "error", err)
	}
}

// parseFee turns a display fee into pence, rejecting bad input as an
// invalid argument.
func parseFee(fee string) (int64, error) {
	pence, err := money.ParseFee(fee)
	if err != nil {
		return 0, apperrors.InvalidArgument("%v", err)
	}
	return pence, nil
}

// ensureUser returns the user document, creating an empty one for a user
// the store has not seen yet.
func (c *core) ensureUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := c.repos.Users.Get(ctx, userID)
	if err == nil {
		return user, nil
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user = &models.User{
		ID:             userID,
		VenueProfiles:  []string{},
		ArtistProfiles: []string{},
		CreatedAt:      c.now(),
	}
	if err := c.repos.Users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
