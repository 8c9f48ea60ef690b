package service

import (
	"context"
	"strings"
	"time"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/logger"
	"gigbook/internal/models"
	"gigbook/internal/permissions"
	"gigbook/internal/repository"
	"gigbook/internal/store"

	"github.com/google/uuid"
)

const (
	defaultInviteTTLDays = 7
	maxInviteTTLDays     = 30
)

// TeamService manages users, profiles, team members and invites.
type TeamService struct {
	*core
}

func NewTeamService(c *core) *TeamService {
	return &TeamService{core: c}
}

func userProfilesField(kind models.EntityKind) string {
	if kind == models.EntityVenue {
		return "venueProfiles"
	}
	return "artistProfiles"
}

func teamCapability(kind models.EntityKind, venueKey, artistKey string) string {
	if kind == models.EntityVenue {
		return venueKey
	}
	return artistKey
}

// UpsertUser creates the actor's user document or updates its contact and
// processor fields. Ledger balances are never touched here.
func (s *TeamService) UpsertUser(ctx context.Context, actor string, req *models.UpsertUserRequest) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.ensureUser(ctx, actor)
		if err != nil {
			return err
		}
		u.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Name != "" {
			u.Name = strings.TrimSpace(req.Name)
		}
		if req.StripeCustomerID != "" {
			u.StripeCustomerID = req.StripeCustomerID
		}
		if req.StripeConnectID != "" {
			u.StripeConnectID = req.StripeConnectID
		}
		user = u
		return s.repos.Users.Save(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *TeamService) ownerMember(actor string, kind models.EntityKind, payoutsEnabled bool) (*models.Member, error) {
	keys, err := s.resolver.Catalog().For(kind)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &models.Member{
		UserID:         actor,
		Status:         models.MemberActive,
		Role:           models.RoleOwner,
		Permissions:    keys.Full(),
		PayoutsEnabled: payoutsEnabled,
		AddedBy:        actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CreateVenue creates a venue profile owned by the actor.
func (s *TeamService) CreateVenue(ctx context.Context, actor string, req *models.CreateVenueRequest) (*models.VenueProfile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	venue := &models.VenueProfile{
		ID:        uuid.New().String(),
		UserID:    actor,
		CreatedBy: actor,
		Name:      strings.TrimSpace(req.Name),
		Gigs:      []string{},
		CreatedAt: s.now(),
	}
	owner, err := s.ownerMember(actor, models.EntityVenue, false)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.ensureUser(ctx, actor); err != nil {
			return err
		}
		if err := s.repos.Venues.Save(ctx, venue); err != nil {
			return err
		}
		if err := s.repos.Teams.SaveMember(ctx, models.EntityVenue, venue.ID, owner); err != nil {
			return err
		}
		return store.ArrayUnion(ctx, s.store, repository.CollUsers, actor, "venueProfiles", venue.ID)
	})
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("Venue created", "venue_id", venue.ID)
	return venue, nil
}

// CreateArtistProfile creates a multi-member artist profile owned by the
// actor.
func (s *TeamService) CreateArtistProfile(ctx context.Context, actor string, req *models.CreateArtistRequest) (*models.ArtistProfile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	artist := &models.ArtistProfile{
		ID:        uuid.New().String(),
		UserID:    actor,
		CreatedBy: actor,
		Name:      strings.TrimSpace(req.Name),
		Gigs:      []string{},
		CreatedAt: s.now(),
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.ensureUser(ctx, actor)
		if err != nil {
			return err
		}
		owner, err := s.ownerMember(actor, models.EntityArtist, user.StripeConnectID != "")
		if err != nil {
			return err
		}
		if err := s.repos.Artists.Save(ctx, artist); err != nil {
			return err
		}
		if err := s.repos.Teams.SaveMember(ctx, models.EntityArtist, artist.ID, owner); err != nil {
			return err
		}
		return store.ArrayUnion(ctx, s.store, repository.CollUsers, actor, "artistProfiles", artist.ID)
	})
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("Artist profile created", "artist_id", artist.ID)
	return artist, nil
}

// CreateMusicianProfile creates the actor's solo musician profile. A user
// has at most one.
func (s *TeamService) CreateMusicianProfile(ctx context.Context, actor string, req *models.CreateMusicianRequest) (*models.MusicianProfile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	profile := &models.MusicianProfile{
		ID:        uuid.New().String(),
		UserID:    actor,
		Name:      strings.TrimSpace(req.Name),
		Gigs:      []string{},
		Bands:     []string{},
		CreatedAt: s.now(),
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.ensureUser(ctx, actor)
		if err != nil {
			return err
		}
		if user.MusicianProfileID != "" {
			return apperrors.FailedPrecondition("user already has musician profile %s", user.MusicianProfileID)
		}
		if err := s.repos.Musicians.Save(ctx, profile); err != nil {
			return err
		}
		user.MusicianProfileID = profile.ID
		return s.repos.Users.Save(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ListMembers returns a team's members to anyone on the team.
func (s *TeamService) ListMembers(ctx context.Context, actor string, kind models.EntityKind, entityID string) ([]models.Member, error) {
	keys, err := s.resolver.Catalog().For(kind)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Assert(ctx, actor, kind, entityID, keys.Viewer()); err != nil {
		return nil, err
	}
	return s.repos.Teams.Members(ctx, kind, entityID)
}

// loadEditableMember returns a member record that may be changed by
// someone else, refusing the owner.
func (s *TeamService) loadEditableMember(ctx context.Context, kind models.EntityKind, entityID, userID string) (*models.Member, error) {
	owner, err := s.repos.Teams.TeamOwner(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}
	if userID == owner {
		return nil, apperrors.PermissionDenied("the owner cannot be edited or removed")
	}
	member, err := s.repos.Teams.TeamMember(ctx, kind, entityID, userID)
	if err != nil {
		return nil, err
	}
	if member.Role == models.RoleOwner {
		return nil, apperrors.PermissionDenied("the owner cannot be edited or removed")
	}
	return member, nil
}

// UpdateMemberPermissions replaces a member's capabilities. Unknown keys
// are rejected, and the viewer key stays on.
func (s *TeamService) UpdateMemberPermissions(ctx context.Context, actor string, kind models.EntityKind, entityID, userID string, req *models.UpdatePermissionsRequest) (*models.Member, error) {
	if actor != "" && actor == userID {
		return nil, apperrors.PermissionDenied("you cannot edit your own permissions")
	}
	keys, err := s.resolver.Catalog().For(kind)
	if err != nil {
		return nil, err
	}
	if err := keys.Validate(req.Permissions); err != nil {
		return nil, err
	}
	capability := teamCapability(kind, permissions.VenueMembersUpdate, permissions.ArtistMembersUpdate)
	if err := s.resolver.Assert(ctx, actor, kind, entityID, capability); err != nil {
		return nil, err
	}

	var member *models.Member
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.loadEditableMember(ctx, kind, entityID, userID)
		if err != nil {
			return err
		}
		m.Permissions = keys.Sanitize(req.Permissions)
		m.UpdatedAt = s.now()
		member = m
		return s.repos.Teams.SaveMember(ctx, kind, entityID, m)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "member.permissions.update", actor, userID, map[string]any{
		"kind": kind, "entityId": entityID, "permissions": member.Permissions,
	})
	return member, nil
}

// RemoveMember marks a member removed. Members may always remove
// themselves; removing someone else takes members.update.
func (s *TeamService) RemoveMember(ctx context.Context, actor string, kind models.EntityKind, entityID, userID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor != userID {
		capability := teamCapability(kind, permissions.VenueMembersUpdate, permissions.ArtistMembersUpdate)
		if err := s.resolver.Assert(ctx, actor, kind, entityID, capability); err != nil {
			return err
		}
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.loadEditableMember(ctx, kind, entityID, userID)
		if err != nil {
			return err
		}
		m.Status = models.MemberRemoved
		m.PayoutSharePercent = 0
		m.UpdatedAt = s.now()
		if err := s.repos.Teams.SaveMember(ctx, kind, entityID, m); err != nil {
			return err
		}
		return ignoreNotFound(store.ArrayRemove(ctx, s.store, repository.CollUsers, userID, userProfilesField(kind), entityID))
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "member.remove", actor, userID, map[string]any{"kind": kind, "entityId": entityID})
	return nil
}

// TransferOwnership hands a team to another active member. Only the
// current owner may do it; their member record is deleted and the new
// owner gets every capability.
func (s *TeamService) TransferOwnership(ctx context.Context, actor string, kind models.EntityKind, entityID string, req *models.TransferOwnershipRequest) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	keys, err := s.resolver.Catalog().For(kind)
	if err != nil {
		return err
	}
	newOwner := req.NewOwnerUserID

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		owner, err := s.repos.Teams.TeamOwner(ctx, kind, entityID)
		if err != nil {
			return err
		}
		if owner != actor {
			return apperrors.PermissionDenied("only the owner can transfer ownership")
		}
		if newOwner == actor {
			return apperrors.InvalidArgument("you already own %s %s", kind, entityID)
		}

		member, err := s.repos.Teams.TeamMember(ctx, kind, entityID, newOwner)
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeNotFound {
				return apperrors.FailedPrecondition("user %s is not a member", newOwner)
			}
			return err
		}
		if member.Status != models.MemberActive {
			return apperrors.FailedPrecondition("user %s is not an active member", newOwner)
		}

		if err := s.setProfileOwner(ctx, kind, entityID, newOwner); err != nil {
			return err
		}
		if err := ignoreNotFound(s.repos.Teams.DeleteMember(ctx, kind, entityID, actor)); err != nil {
			return err
		}
		if err := ignoreNotFound(store.ArrayRemove(ctx, s.store, repository.CollUsers, actor, userProfilesField(kind), entityID)); err != nil {
			return err
		}

		member.Role = models.RoleOwner
		member.Permissions = keys.Full()
		member.UpdatedAt = s.now()
		if err := s.repos.Teams.SaveMember(ctx, kind, entityID, member); err != nil {
			return err
		}
		return store.ArrayUnion(ctx, s.store, repository.CollUsers, newOwner, userProfilesField(kind), entityID)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "owner.transfer", actor, newOwner, map[string]any{"kind": kind, "entityId": entityID})
	logger.WithContext(ctx).Info("Ownership transferred", "kind", kind, "entity_id", entityID, "new_owner", newOwner)
	return nil
}

func (s *TeamService) setProfileOwner(ctx context.Context, kind models.EntityKind, entityID, userID string) error {
	switch kind {
	case models.EntityVenue:
		v, err := s.repos.Venues.Get(ctx, entityID)
		if err != nil {
			return err
		}
		v.UserID = userID
		return s.repos.Venues.Save(ctx, v)
	case models.EntityArtist:
		a, err := s.repos.Artists.Get(ctx, entityID)
		if err != nil {
			return err
		}
		a.UserID = userID
		return s.repos.Artists.Save(ctx, a)
	}
	return apperrors.InvalidArgument("%s has no owner", kind)
}

// CreateInvite invites an email address onto a team. A live pending
// invite for the same address is returned instead of a new one.
func (s *TeamService) CreateInvite(ctx context.Context, actor string, kind models.EntityKind, entityID string, req *models.CreateInviteRequest) (*models.Invite, error) {
	keys, err := s.resolver.Catalog().For(kind)
	if err != nil {
		return nil, err
	}
	capability := teamCapability(kind, permissions.VenueMembersInvite, permissions.ArtistMembersInvite)
	if err := s.resolver.Assert(ctx, actor, kind, entityID, capability); err != nil {
		return nil, err
	}

	ttlDays := req.TTLDays
	if ttlDays == 0 {
		ttlDays = defaultInviteTTLDays
	}
	if ttlDays < 1 || ttlDays > maxInviteTTLDays {
		return nil, apperrors.InvalidArgument("ttlDays must be between 1 and %d", maxInviteTTLDays)
	}
	if err := keys.Validate(req.Permissions); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, apperrors.InvalidArgument("email is required")
	}

	now := s.now()
	existing, err := s.repos.Invites.ListPending(ctx, kind, entityID, email)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].ExpiresAt.After(now) {
			return &existing[i], nil
		}
	}

	invite := &models.Invite{
		ID:          uuid.New().String(),
		Kind:        kind,
		EntityID:    entityID,
		Email:       email,
		Permissions: keys.Sanitize(req.Permissions),
		Role:        "member",
		Status:      models.InvitePending,
		InvitedBy:   actor,
		ExpiresAt:   now.Add(time.Duration(ttlDays) * 24 * time.Hour),
		CreatedAt:   now,
	}
	if err := s.repos.Invites.Save(ctx, invite); err != nil {
		return nil, err
	}

	s.audit(ctx, "invite.create", actor, invite.ID, map[string]any{
		"kind": kind, "entityId": entityID, "email": email, "permissions": invite.Permissions,
	})
	return invite, nil
}

// AcceptInvite makes the actor an active member of the invite's team with
// the invited capabilities.
func (s *TeamService) AcceptInvite(ctx context.Context, actor, inviteID string) (*models.Member, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var member *models.Member
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		invite, err := s.repos.Invites.Get(ctx, inviteID)
		if err != nil {
			return err
		}
		if invite.Kind != models.EntityVenue && invite.Kind != models.EntityArtist {
			return apperrors.InvalidArgument("invite %s is not a team invite", inviteID)
		}

		existing, err := s.repos.Teams.TeamMember(ctx, invite.Kind, invite.EntityID, actor)
		if err != nil && apperrors.CodeOf(err) != apperrors.CodeNotFound {
			return err
		}
		if existing != nil && existing.Status == models.MemberActive {
			member = existing
			return s.markAccepted(ctx, invite, actor)
		}

		if invite.Status != models.InvitePending {
			return apperrors.FailedPrecondition("invite %s has already been used", inviteID)
		}
		if !s.now().Before(invite.ExpiresAt) {
			return apperrors.FailedPrecondition("invite %s has expired", inviteID)
		}

		user, err := s.ensureUser(ctx, actor)
		if err != nil {
			return err
		}
		if user.Email != "" && invite.Email != "" && !strings.EqualFold(user.Email, invite.Email) {
			return apperrors.PermissionDenied("invite %s was sent to another address", inviteID)
		}

		keys, err := s.resolver.Catalog().For(invite.Kind)
		if err != nil {
			return err
		}
		now := s.now()
		member = &models.Member{
			UserID:         actor,
			Status:         models.MemberActive,
			Role:           invite.Role,
			Permissions:    keys.Sanitize(invite.Permissions),
			PayoutsEnabled: user.StripeConnectID != "",
			AddedBy:        invite.InvitedBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if existing != nil {
			member.CreatedAt = existing.CreatedAt
		}
		if err := s.repos.Teams.SaveMember(ctx, invite.Kind, invite.EntityID, member); err != nil {
			return err
		}
		if err := store.ArrayUnion(ctx, s.store, repository.CollUsers, actor, userProfilesField(invite.Kind), invite.EntityID); err != nil {
			return err
		}
		return s.markAccepted(ctx, invite, actor)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "invite.accept", actor, inviteID, map[string]any{"permissions": member.Permissions})
	return member, nil
}

func (s *TeamService) markAccepted(ctx context.Context, invite *models.Invite, actor string) error {
	if invite.Status == models.InviteAccepted {
		return nil
	}
	now := s.now()
	invite.Status = models.InviteAccepted
	invite.AcceptedBy = actor
	invite.AcceptedAt = &now
	return s.repos.Invites.Save(ctx, invite)
}

// SetPayoutShare sets the percentage of artist fees a member receives.
// Shares are not required to sum to 100.
func (s *TeamService) SetPayoutShare(ctx context.Context, actor, artistID, userID string, req *models.SetPayoutShareRequest) (*models.Member, error) {
	if req.Percent == nil {
		return nil, apperrors.InvalidArgument("percent is required")
	}
	percent := *req.Percent
	if percent < 0 || percent > 100 {
		return nil, apperrors.InvalidArgument("percent must be between 0 and 100")
	}
	if err := s.resolver.Assert(ctx, actor, models.EntityArtist, artistID, permissions.ArtistFinancesEdit); err != nil {
		return nil, err
	}

	var member *models.Member
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.repos.Teams.TeamMember(ctx, models.EntityArtist, artistID, userID)
		if err != nil {
			return err
		}
		if m.Status != models.MemberActive {
			return apperrors.FailedPrecondition("member %s is not active", userID)
		}
		m.PayoutSharePercent = percent
		m.UpdatedAt = s.now()
		member = m
		return s.repos.Teams.SaveMember(ctx, models.EntityArtist, artistID, m)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "member.payout_share", actor, userID, map[string]any{"artistId": artistID, "percent": percent})
	return member, nil
}
