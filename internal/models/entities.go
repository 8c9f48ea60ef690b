package models

import (
	"time"
)

type GigStatus string

const (
	GigOpen   GigStatus = "open"
	GigClosed GigStatus = "closed"
)

// KindTicketed gigs close on acceptance even when payable.
const KindTicketed = "Ticketed Gig"

type ApplicantStatus string

const (
	ApplicantPending           ApplicantStatus = "pending"
	ApplicantAccepted          ApplicantStatus = "accepted"
	ApplicantDeclined          ApplicantStatus = "declined"
	ApplicantConfirmed         ApplicantStatus = "confirmed"
	ApplicantWithdrawn         ApplicantStatus = "withdrawn"
	ApplicantPaymentProcessing ApplicantStatus = "payment processing"
)

// Active reports whether the status holds the gig's single booking slot.
func (s ApplicantStatus) Active() bool {
	return s == ApplicantAccepted || s == ApplicantConfirmed || s == ApplicantPaymentProcessing
}

type PerformerType string

const (
	PerformerMusician PerformerType = "musician"
	PerformerBand     PerformerType = "band"
	PerformerArtist   PerformerType = "artist"
)

// Role is the side that proposed an applicant's current fee.
type Role string

const (
	RoleVenue     Role = "venue"
	RolePerformer Role = "musician"
)

type PaymentStatus string

const (
	PaymentNone       PaymentStatus = ""
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

type FeeStatus string

const (
	FeePending   FeeStatus = "pending"
	FeeCleared   FeeStatus = "cleared"
	FeeCancelled FeeStatus = "cancelled"
	FeeInDispute FeeStatus = "in dispute"
)

// Gig is one booking opportunity posted by a venue.
type Gig struct {
	ID                  string        `json:"id"`
	VenueID             string        `json:"venueId"`
	Title               string        `json:"title"`
	Kind                string        `json:"kind,omitempty"`
	Status              GigStatus     `json:"status"`
	Budget              string        `json:"budget"`
	NonPayable          bool          `json:"nonPayable"`
	StartTime           time.Time     `json:"startTime"`
	AgreedFee           string        `json:"agreedFee,omitempty"`
	PayoutConfig        *PayoutConfig `json:"payoutConfig,omitempty"`
	Applicants          []Applicant   `json:"applicants"`
	Paid                bool          `json:"paid"`
	PaymentStatus       PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentIntentID     string        `json:"paymentIntentId,omitempty"`
	MusicianFeeStatus   FeeStatus     `json:"musicianFeeStatus,omitempty"`
	DisputeLogged       bool          `json:"disputeLogged"`
	DisputeClearingTime *time.Time    `json:"disputeClearingTime,omitempty"`
	CancellationReason  string        `json:"cancellationReason,omitempty"`
	CreatedBy           string        `json:"createdBy"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// Applicant is one performer's candidacy, embedded in Gig.Applicants.
type Applicant struct {
	ID        string          `json:"id"`
	Type      PerformerType   `json:"type"`
	Fee       string          `json:"fee"`
	Status    ApplicantStatus `json:"status"`
	Invited   bool            `json:"invited"`
	Timestamp time.Time       `json:"timestamp"`
	SentBy    Role            `json:"sentBy"`
	Viewed    bool            `json:"viewed"`
}

type PayoutShare struct {
	UserID  string  `json:"userId"`
	Percent float64 `json:"percent"`
}

// PayoutConfig is the fee split fixed when a multi-member performer is accepted.
// Percentages are stored as configured and need not sum to 100.
type PayoutConfig struct {
	PerformerEntityID string        `json:"performerEntityId"`
	TotalFee          int64         `json:"totalFee"`
	Shares            []PayoutShare `json:"shares"`
}

type MemberStatus string

const (
	MemberActive  MemberStatus = "active"
	MemberRemoved MemberStatus = "removed"
)

const RoleOwner = "owner"

// Member is one user's seat on a venue or artist team.
type Member struct {
	UserID             string          `json:"userId"`
	Status             MemberStatus    `json:"status"`
	Role               string          `json:"role"`
	Permissions        map[string]bool `json:"permissions"`
	PayoutSharePercent float64         `json:"payoutSharePercent"`
	PayoutsEnabled     bool            `json:"payoutsEnabled"`
	AddedBy            string          `json:"addedBy,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type VenueProfile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedBy string    `json:"createdBy,omitempty"`
	Name      string    `json:"name"`
	Gigs      []string  `json:"gigs"`
	CreatedAt time.Time `json:"createdAt"`
}

// OwnerID returns the owning user, falling back to the legacy creator field.
func (v *VenueProfile) OwnerID() string {
	if v.UserID != "" {
		return v.UserID
	}
	return v.CreatedBy
}

type ArtistProfile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedBy string    `json:"createdBy,omitempty"`
	Name      string    `json:"name"`
	Gigs      []string  `json:"gigs"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *ArtistProfile) OwnerID() string {
	if a.UserID != "" {
		return a.UserID
	}
	return a.CreatedBy
}

// MusicianProfile is the legacy solo performer without a member table.
type MusicianProfile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Gigs      []string  `json:"gigs"`
	Bands     []string  `json:"bands"`
	CreatedAt time.Time `json:"createdAt"`
}

type BandMember struct {
	MusicianProfileID string    `json:"musicianProfileId"`
	UserID            string    `json:"userId"`
	Name              string    `json:"name"`
	Role              string    `json:"role"`
	IsAdmin           bool      `json:"isAdmin"`
	Split             float64   `json:"split"`
	JoinedAt          time.Time `json:"joinedAt"`
}

// Band keeps its roster inline, ordered by join time. The first member
// receives the remainder of an even split.
type Band struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Admin        BandAdmin    `json:"admin"`
	JoinPassword string       `json:"joinPassword,omitempty"`
	Members      []BandMember `json:"members"`
	Gigs         []string     `json:"gigs"`
	CreatedAt    time.Time    `json:"createdAt"`
}

type BandAdmin struct {
	MusicianProfileID string `json:"musicianProfileId"`
	UserID            string `json:"userId"`
}

// PendingFee is the escrow record of one paid booking. Its id is the
// payment intent id.
type PendingFee struct {
	ID                  string        `json:"id"`
	PerformerID         string        `json:"performerId"`
	RecipientUserID     string        `json:"recipientUserId"`
	GigID               string        `json:"gigId"`
	VenueID             string        `json:"venueId"`
	Amount              int64         `json:"amount"`
	Currency            string        `json:"currency"`
	Status              FeeStatus     `json:"status"`
	PayoutConfig        *PayoutConfig `json:"payoutConfig,omitempty"`
	DisputeLogged       bool          `json:"disputeLogged"`
	DisputeReason       string        `json:"disputeReason,omitempty"`
	DisputeDetails      string        `json:"disputeDetails,omitempty"`
	DisputeClearingTime *time.Time    `json:"disputeClearingTime,omitempty"`
	CancelledAt         *time.Time    `json:"cancelledAt,omitempty"`
	CancellationReason  string        `json:"cancellationReason,omitempty"`
	ClearedAt           *time.Time    `json:"clearedAt,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
}

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

type Dispute struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	GigID        string        `json:"gigId"`
	VenueID      string        `json:"venueId"`
	PerformerID  string        `json:"performerId"`
	FeeID        string        `json:"feeId"`
	RaisedByUID  string        `json:"raisedByUid"`
	Reason       string        `json:"reason"`
	Details      string        `json:"details,omitempty"`
	Attachments  []string      `json:"attachments,omitempty"`
	Participants []string      `json:"participants"`
	Status       DisputeStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// User holds the per-user escrow ledger. Balances are in pence.
type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Name                 string    `json:"name"`
	StripeCustomerID     string    `json:"stripeCustomerId,omitempty"`
	StripeConnectID      string    `json:"stripeConnectId,omitempty"`
	PendingFunds         int64     `json:"pendingFunds"`
	WithdrawableEarnings int64     `json:"withdrawableEarnings"`
	TotalEarnings        int64     `json:"totalEarnings"`
	VenueProfiles        []string  `json:"venueProfiles"`
	ArtistProfiles       []string  `json:"artistProfiles"`
	MusicianProfileID    string    `json:"musicianProfileId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Ledger fields changed only through store increments.
const (
	FieldPendingFunds         = "pendingFunds"
	FieldWithdrawableEarnings = "withdrawableEarnings"
	FieldTotalEarnings        = "totalEarnings"
)

type AuditEntry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	ActorID   string         `json:"actorId"`
	TargetID  string         `json:"targetId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type EntityKind string

const (
	EntityVenue  EntityKind = "venue"
	EntityArtist EntityKind = "artist"
	EntityBand   EntityKind = "band"
)

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
)

type Invite struct {
	ID          string          `json:"id"`
	Kind        EntityKind      `json:"kind"`
	EntityID    string          `json:"entityId"`
	Email       string          `json:"email,omitempty"`
	Permissions map[string]bool `json:"permissions,omitempty"`
	Role        string          `json:"role,omitempty"`
	Status      InviteStatus    `json:"status"`
	InvitedBy   string          `json:"invitedBy"`
	AcceptedBy  string          `json:"acceptedBy,omitempty"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	CreatedAt   time.Time       `json:"createdAt"`
	AcceptedAt  *time.Time      `json:"acceptedAt,omitempty"`
}

// Payment mirrors one charge attempt against the processor.
type Payment struct {
	ID          string        `json:"id"`
	GigID       string        `json:"gigId"`
	PerformerID string        `json:"performerId"`
	VenueID     string        `json:"venueId"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	RefundID    string        `json:"refundId,omitempty"`
	CreatedBy   string        `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type Conversation struct {
	ID            string    `json:"id"`
	GigID         string    `json:"gigId"`
	VenueID       string    `json:"venueId"`
	PerformerID   string    `json:"performerId"`
	Status        string    `json:"status,omitempty"`
	LastMessage   string    `json:"lastMessage,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

type ConversationMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Status    string    `json:"status,omitempty"`
	SenderID  string    `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
}
