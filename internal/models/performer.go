package models

// Performer is a bookable actor, resolved once per request from whichever
// collection holds the id.
type Performer interface {
	EntityID() string
	Type() PerformerType
	OwnerUserID() string
	DisplayName() string
	isPerformer()
}

// MusicianEntity is a legacy solo profile. It has no member table.
type MusicianEntity struct {
	Profile *MusicianProfile
}

// ArtistEntity is a multi-member artist profile with its active and
// removed members.
type ArtistEntity struct {
	Profile *ArtistProfile
	Members []Member
}

// BandEntity is a band whose admin acts for it.
type BandEntity struct {
	Band *Band
}

func (m MusicianEntity) EntityID() string    { return m.Profile.ID }
func (m MusicianEntity) Type() PerformerType { return PerformerMusician }
func (m MusicianEntity) OwnerUserID() string { return m.Profile.UserID }
func (m MusicianEntity) DisplayName() string { return m.Profile.Name }
func (MusicianEntity) isPerformer()          {}

func (a ArtistEntity) EntityID() string    { return a.Profile.ID }
func (a ArtistEntity) Type() PerformerType { return PerformerArtist }
func (a ArtistEntity) OwnerUserID() string { return a.Profile.OwnerID() }
func (a ArtistEntity) DisplayName() string { return a.Profile.Name }
func (ArtistEntity) isPerformer()          {}

// Member returns the member record of userID, if any.
func (a ArtistEntity) Member(userID string) (Member, bool) {
	for _, m := range a.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

func (b BandEntity) EntityID() string    { return b.Band.ID }
func (b BandEntity) Type() PerformerType { return PerformerBand }
func (b BandEntity) OwnerUserID() string { return b.Band.Admin.UserID }
func (b BandEntity) DisplayName() string { return b.Band.Name }
func (BandEntity) isPerformer()          {}
