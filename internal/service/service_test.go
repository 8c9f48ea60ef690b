package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gigbook/internal/conversations"
	apperrors "gigbook/internal/errors"
	"gigbook/internal/external"
	"gigbook/internal/models"
	"gigbook/internal/permissions"
	"gigbook/internal/repository"
	"gigbook/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu           sync.Mutex
	next         int
	chargeStatus string
	chargeErr    error
	refundErr    error
	transferErr  error
	charges      []external.ChargeRequest
	refunds      []string
	transfers    []external.TransferRequest
	event        *external.WebhookEvent
}

func (p *fakeProcessor) CreateCharge(_ context.Context, req external.ChargeRequest) (*external.ChargeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.charges = append(p.charges, req)
	if p.chargeErr != nil {
		return nil, p.chargeErr
	}
	p.next++
	status := p.chargeStatus
	if status == "" {
		status = "succeeded"
	}
	res := &external.ChargeResult{ID: fmt.Sprintf("pi_%d", p.next), Status: status}
	if status == "requires_action" {
		res.RequiresAction = true
		res.ClientSecret = res.ID + "_secret"
	}
	return res, nil
}

func (p *fakeProcessor) Refund(_ context.Context, paymentIntentID, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return "", p.refundErr
	}
	p.refunds = append(p.refunds, paymentIntentID)
	return "re_" + paymentIntentID, nil
}

func (p *fakeProcessor) Transfer(_ context.Context, req external.TransferRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transferErr != nil {
		return "", p.transferErr
	}
	p.transfers = append(p.transfers, req)
	return fmt.Sprintf("tr_%d", len(p.transfers)), nil
}

func (p *fakeProcessor) RetrieveBalance(_ context.Context, _ string) (*external.Balance, error) {
	return &external.Balance{Available: []external.BalanceAmount{{Amount: 1500, Currency: "gbp"}}}, nil
}

func (p *fakeProcessor) ParseWebhook(payload []byte, signature string) (*external.WebhookEvent, error) {
	if signature != "valid" {
		return nil, external.ErrInvalidWebhook
	}
	return p.event, nil
}

type memoryGuard struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (g *memoryGuard) AcquireIdempotencyKey(_ context.Context, key string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *memoryGuard) ReleaseIdempotencyKey(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    store.Store
	repos    *repository.Repositories
	resolver *permissions.Resolver
	svc      *Services
	rec      *conversations.Recorder
	proc     *fakeProcessor
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	repos := repository.NewRepositories(s)
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: s,
		repos: repos,
		rec:   &conversations.Recorder{},
		proc:  &fakeProcessor{},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.resolver = permissions.NewResolver(permissions.DefaultCatalog(), repos.Teams)
	f.svc = NewServices(repos, f.resolver, Options{
		Payments:       f.proc,
		Idempotency:    &memoryGuard{keys: map[string]bool{}},
		Synchronizer:   f.rec,
		ClearingWindow: 48 * time.Hour,
		WriteChunkSize: 2,
		Now:            func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) venue(owner string) *models.VenueProfile {
	f.t.Helper()
	v, err := f.svc.Teams.CreateVenue(f.ctx, owner, &models.CreateVenueRequest{Name: "The Lexington"})
	require.NoError(f.t, err)
	return v
}

func (f *fixture) gig(owner, venueID, budget string) *models.Gig {
	f.t.Helper()
	g, err := f.svc.Gigs.CreateGig(f.ctx, owner, &models.CreateGigRequest{
		VenueID:   venueID,
		Title:     "Friday late show",
		Budget:    budget,
		StartTime: f.now.Add(7 * 24 * time.Hour),
	})
	require.NoError(f.t, err)
	return g
}

func (f *fixture) musician(user, name string) *models.MusicianProfile {
	f.t.Helper()
	m, err := f.svc.Teams.CreateMusicianProfile(f.ctx, user, &models.CreateMusicianRequest{Name: name})
	require.NoError(f.t, err)
	return m
}

func (f *fixture) artist(owner, name string) *models.ArtistProfile {
	f.t.Helper()
	a, err := f.svc.Teams.CreateArtistProfile(f.ctx, owner, &models.CreateArtistRequest{Name: name})
	require.NoError(f.t, err)
	return a
}

// addMember puts user on a team through an invite with the given
// capabilities.
func (f *fixture) addMember(owner string, kind models.EntityKind, entityID, user string, perms map[string]bool) {
	f.t.Helper()
	inv, err := f.svc.Teams.CreateInvite(f.ctx, owner, kind, entityID, &models.CreateInviteRequest{
		Email:       user + "@example.com",
		Permissions: perms,
	})
	require.NoError(f.t, err)
	_, err = f.svc.Teams.AcceptInvite(f.ctx, user, inv.ID)
	require.NoError(f.t, err)
}

func (f *fixture) user(id string) *models.User {
	f.t.Helper()
	u, err := f.repos.Users.Get(f.ctx, id)
	require.NoError(f.t, err)
	return u
}

func (f *fixture) reload(gigID string) *models.Gig {
	f.t.Helper()
	g, err := f.repos.Gigs.Get(f.ctx, gigID)
	require.NoError(f.t, err)
	return g
}

func applicantStatus(g *models.Gig, performerID string) models.ApplicantStatus {
	for _, a := range g.Applicants {
		if a.ID == performerID {
			return a.Status
		}
	}
	return ""
}

func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.CodeOf(err), err.Error())
}
