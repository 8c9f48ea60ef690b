package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/logger"
	"gigbook/internal/models"
	"gigbook/internal/payout"
	"gigbook/internal/repository"
	"gigbook/internal/store"

	"github.com/google/uuid"
)

const (
	bandInviteTTL  = 7 * 24 * time.Hour
	bandLeaderRole = "Band Leader"
	bandMemberRole = "Band Member"
)

// BandService manages band rosters and their internal fee splits.
type BandService struct {
	*core
	chunkSize int
}

func NewBandService(c *core, chunkSize int) *BandService {
	return &BandService{core: c, chunkSize: chunkSize}
}

// ownMusicianProfile loads a musician profile and checks it is the actor's.
func (s *BandService) ownMusicianProfile(ctx context.Context, actor, profileID string) (*models.MusicianProfile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	profile, err := s.repos.Musicians.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile.UserID != actor {
		return nil, apperrors.PermissionDenied("musician profile %s belongs to another user", profileID)
	}
	return profile, nil
}

func requireBandAdmin(band *models.Band, actor string) error {
	if actor == "" {
		return apperrors.ErrUnauthorized
	}
	if band.Admin.UserID != actor {
		return apperrors.PermissionDenied("only the band admin can manage band %s", band.ID)
	}
	return nil
}

func memberIndex(band *models.Band, profileID string) int {
	for i, m := range band.Members {
		if m.MusicianProfileID == profileID {
			return i
		}
	}
	return -1
}

func applyEvenSplit(band *models.Band) {
	splits := payout.EvenSplit(len(band.Members))
	for i := range band.Members {
		band.Members[i].Split = splits[i]
	}
}

// CreateBand creates a band led by one of the actor's musician profiles.
func (s *BandService) CreateBand(ctx context.Context, actor string, req *models.CreateBandRequest) (*models.Band, error) {
	profile, err := s.ownMusicianProfile(ctx, actor, req.MusicianProfileID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	band := &models.Band{
		ID:   uuid.New().String(),
		Name: strings.TrimSpace(req.Name),
		Admin: models.BandAdmin{
			MusicianProfileID: profile.ID,
			UserID:            actor,
		},
		JoinPassword: req.JoinPassword,
		Members: []models.BandMember{{
			MusicianProfileID: profile.ID,
			UserID:            actor,
			Name:              profile.Name,
			Role:              bandLeaderRole,
			IsAdmin:           true,
			Split:             100,
			JoinedAt:          now,
		}},
		Gigs:      []string{},
		CreatedAt: now,
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Bands.Save(ctx, band); err != nil {
			return err
		}
		return store.ArrayUnion(ctx, s.store, repository.CollMusicians, profile.ID, "bands", band.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create band: %w", err)
	}
	logger.WithContext(ctx).Info("Band created", "band_id", band.ID, "admin_profile_id", profile.ID)
	return band, nil
}

// CreateBandInvite issues a week-long invite to join the band.
func (s *BandService) CreateBandInvite(ctx context.Context, actor, bandID string, req *models.CreateBandInviteRequest) (*models.Invite, error) {
	band, err := s.repos.Bands.Get(ctx, bandID)
	if err != nil {
		return nil, err
	}
	if err := requireBandAdmin(band, actor); err != nil {
		return nil, err
	}

	now := s.now()
	invite := &models.Invite{
		ID:        uuid.New().String(),
		Kind:      models.EntityBand,
		EntityID:  band.ID,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Role:      bandMemberRole,
		Status:    models.InvitePending,
		InvitedBy: actor,
		ExpiresAt: now.Add(bandInviteTTL),
		CreatedAt: now,
	}
	if err := s.repos.Invites.Save(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

// AcceptBandInvite adds one of the actor's musician profiles to the band
// behind an invite.
func (s *BandService) AcceptBandInvite(ctx context.Context, actor, inviteID string, req *models.BandMembershipRequest) (*models.Band, error) {
	profile, err := s.ownMusicianProfile(ctx, actor, req.MusicianProfileID)
	if err != nil {
		return nil, err
	}

	var band *models.Band
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		invite, err := s.repos.Invites.Get(ctx, inviteID)
		if err != nil {
			return err
		}
		if invite.Kind != models.EntityBand {
			return apperrors.InvalidArgument("invite %s is not a band invite", inviteID)
		}
		if invite.Status != models.InvitePending {
			return apperrors.FailedPrecondition("invite %s has already been used", inviteID)
		}
		now := s.now()
		if !now.Before(invite.ExpiresAt) {
			return apperrors.FailedPrecondition("invite %s has expired", inviteID)
		}

		band, err = s.join(ctx, invite.EntityID, profile, invite.Role)
		if err != nil {
			return err
		}

		invite.Status = models.InviteAccepted
		invite.AcceptedBy = actor
		invite.AcceptedAt = &now
		return s.repos.Invites.Save(ctx, invite)
	})
	if err != nil {
		return nil, err
	}
	return band, nil
}

// JoinBandByPassword adds a musician profile to a band that has a join
// password set.
func (s *BandService) JoinBandByPassword(ctx context.Context, actor, bandID string, req *models.BandMembershipRequest) (*models.Band, error) {
	profile, err := s.ownMusicianProfile(ctx, actor, req.MusicianProfileID)
	if err != nil {
		return nil, err
	}

	var band *models.Band
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.repos.Bands.Get(ctx, bandID)
		if err != nil {
			return err
		}
		if b.JoinPassword == "" || b.JoinPassword != req.Password {
			return apperrors.PermissionDenied("wrong band password")
		}
		band, err = s.join(ctx, bandID, profile, bandMemberRole)
		return err
	})
	if err != nil {
		return nil, err
	}
	return band, nil
}

// join adds profile to the roster and splits the fee evenly again. It runs
// inside the caller's transaction.
func (s *BandService) join(ctx context.Context, bandID string, profile *models.MusicianProfile, role string) (*models.Band, error) {
	band, err := s.repos.Bands.Get(ctx, bandID)
	if err != nil {
		return nil, err
	}
	if memberIndex(band, profile.ID) >= 0 {
		return nil, apperrors.FailedPrecondition("musician %s is already in band %s", profile.ID, band.ID)
	}

	band.Members = append(band.Members, models.BandMember{
		MusicianProfileID: profile.ID,
		UserID:            profile.UserID,
		Name:              profile.Name,
		Role:              role,
		JoinedAt:          s.now(),
	})
	applyEvenSplit(band)

	if err := s.repos.Bands.Save(ctx, band); err != nil {
		return nil, err
	}
	if err := store.ArrayUnion(ctx, s.store, repository.CollMusicians, profile.ID, "bands", band.ID); err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("Musician joined band", "band_id", band.ID, "profile_id", profile.ID, "members", len(band.Members))
	return band, nil
}

// LeaveBand takes one of the actor's profiles off a roster and splits the
// fee evenly again. The admin has to hand over the band first.
func (s *BandService) LeaveBand(ctx context.Context, actor, bandID string, req *models.BandMembershipRequest) (*models.Band, error) {
	profile, err := s.ownMusicianProfile(ctx, actor, req.MusicianProfileID)
	if err != nil {
		return nil, err
	}

	var band *models.Band
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.repos.Bands.Get(ctx, bandID)
		if err != nil {
			return err
		}
		i := memberIndex(b, profile.ID)
		if i < 0 {
			return apperrors.NotFound("musician %s is not in band %s", profile.ID, bandID)
		}
		if b.Admin.MusicianProfileID == profile.ID {
			return apperrors.FailedPrecondition("the band admin cannot leave, make someone else admin first")
		}

		b.Members = append(b.Members[:i], b.Members[i+1:]...)
		applyEvenSplit(b)
		if err := s.repos.Bands.Save(ctx, b); err != nil {
			return err
		}
		band = b
		return ignoreNotFound(store.ArrayRemove(ctx, s.store, repository.CollMusicians, profile.ID, "bands", bandID))
	})
	if err != nil {
		return nil, err
	}
	return band, nil
}

// RemoveBandMember drops a member on the admin's say. Their split is
// shared equally among the rest.
func (s *BandService) RemoveBandMember(ctx context.Context, actor, bandID, profileID string) (*models.Band, error) {
	var band *models.Band
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.repos.Bands.Get(ctx, bandID)
		if err != nil {
			return err
		}
		if err := requireBandAdmin(b, actor); err != nil {
			return err
		}
		i := memberIndex(b, profileID)
		if i < 0 {
			return apperrors.NotFound("musician %s is not in band %s", profileID, bandID)
		}
		if b.Members[i].IsAdmin || b.Admin.MusicianProfileID == profileID {
			return apperrors.FailedPrecondition("the band admin cannot be removed")
		}

		splits := make([]float64, len(b.Members))
		for j, m := range b.Members {
			splits[j] = m.Split
		}
		splits = payout.RedistributeRemoved(splits, i)

		b.Members = append(b.Members[:i], b.Members[i+1:]...)
		for j := range b.Members {
			b.Members[j].Split = splits[j]
		}
		if err := s.repos.Bands.Save(ctx, b); err != nil {
			return err
		}
		band = b
		return ignoreNotFound(store.ArrayRemove(ctx, s.store, repository.CollMusicians, profileID, "bands", bandID))
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "band.member.remove", actor, profileID, map[string]any{"bandId": bandID})
	return band, nil
}

// SetBandAdmin moves the single admin seat to another member.
func (s *BandService) SetBandAdmin(ctx context.Context, actor, bandID string, req *models.BandMembershipRequest) (*models.Band, error) {
	var band *models.Band
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.repos.Bands.Get(ctx, bandID)
		if err != nil {
			return err
		}
		if err := requireBandAdmin(b, actor); err != nil {
			return err
		}
		i := memberIndex(b, req.MusicianProfileID)
		if i < 0 {
			return apperrors.NotFound("musician %s is not in band %s", req.MusicianProfileID, bandID)
		}

		for j := range b.Members {
			b.Members[j].IsAdmin = j == i
		}
		b.Admin = models.BandAdmin{
			MusicianProfileID: b.Members[i].MusicianProfileID,
			UserID:            b.Members[i].UserID,
		}
		band = b
		return s.repos.Bands.Save(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "band.admin.transfer", actor, band.Admin.UserID, map[string]any{"bandId": bandID})
	return band, nil
}

// DeleteBand removes a band, its invites and every member's reference to
// it, in chunks.
func (s *BandService) DeleteBand(ctx context.Context, actor, bandID string) error {
	band, err := s.repos.Bands.Get(ctx, bandID)
	if err != nil {
		return err
	}
	if err := requireBandAdmin(band, actor); err != nil {
		return err
	}
	invites, err := s.repos.Invites.ListByEntity(ctx, models.EntityBand, bandID)
	if err != nil {
		return err
	}

	ops := make([]store.Op, 0, len(band.Members)+len(invites)+1)
	for _, m := range band.Members {
		profileID := m.MusicianProfileID
		ops = append(ops, store.Op{Writes: 1, Apply: func(ctx context.Context) error {
			return ignoreNotFound(store.ArrayRemove(ctx, s.store, repository.CollMusicians, profileID, "bands", bandID))
		}})
	}
	for _, inv := range invites {
		inviteID := inv.ID
		ops = append(ops, store.Op{Writes: 1, Apply: func(ctx context.Context) error {
			return ignoreNotFound(s.repos.Invites.Delete(ctx, inviteID))
		}})
	}
	ops = append(ops, store.Op{Writes: 1, Apply: func(ctx context.Context) error {
		return ignoreNotFound(s.repos.Bands.Delete(ctx, bandID))
	}})

	if n, err := store.CommitChunked(ctx, s.store, ops, s.chunkSize); err != nil {
		return fmt.Errorf("band deletion stopped after %d of %d writes: %w", n, len(ops), err)
	}

	s.audit(ctx, "band.delete", actor, bandID, map[string]any{"members": len(band.Members)})
	logger.WithContext(ctx).Info("Band deleted", "band_id", bandID)
	return nil
}
