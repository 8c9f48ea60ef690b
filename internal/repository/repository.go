package repository

import (
	"context"

	"gigbook/internal/store"
)

// Collection names.
const (
	CollGigs          = "gigs"
	CollVenues        = "venueProfiles"
	CollArtists       = "artistProfiles"
	CollMusicians     = "musicianProfiles"
	CollBands         = "bands"
	CollPendingFees   = "pendingFees"
	CollDisputes      = "disputes"
	CollUsers         = "users"
	CollAudit         = "auditLog"
	CollInvites       = "invites"
	CollPayments      = "payments"
	CollConversations = "conversations"

	subCollMembers  = "members"
	subCollMessages = "messages"
)

type Repositories struct {
	Store         store.Store
	Gigs          *GigRepository
	Venues        *VenueRepository
	Artists       *ArtistRepository
	Musicians     *MusicianRepository
	Bands         *BandRepository
	Teams         *TeamRepository
	Performers    *PerformerRepository
	PendingFees   *PendingFeeRepository
	Disputes      *DisputeRepository
	Users         *UserRepository
	Audit         *AuditRepository
	Invites       *InviteRepository
	Payments      *PaymentRepository
	Conversations *ConversationRepository
}

func NewRepositories(s store.Store) *Repositories {
	teams := NewTeamRepository(s)
	return &Repositories{
		Store:         s,
		Gigs:          NewGigRepository(s),
		Venues:        NewVenueRepository(s),
		Artists:       NewArtistRepository(s),
		Musicians:     NewMusicianRepository(s),
		Bands:         NewBandRepository(s),
		Teams:         teams,
		Performers:    NewPerformerRepository(s, teams),
		PendingFees:   NewPendingFeeRepository(s),
		Disputes:      NewDisputeRepository(s),
		Users:         NewUserRepository(s),
		Audit:         NewAuditRepository(s),
		Invites:       NewInviteRepository(s),
		Payments:      NewPaymentRepository(s),
		Conversations: NewConversationRepository(s),
	}
}

// decodeAll decodes query results into a slice of T.
func decodeAll[T any](docs []store.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func query[T any](ctx context.Context, s store.Store, collection string, q store.Query) ([]T, error) {
	docs, err := s.Query(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](docs)
}

func get[T any](ctx context.Context, s store.Store, collection, id string) (*T, error) {
	var v T
	if err := s.Get(ctx, collection, id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

