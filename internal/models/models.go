package models

import "time"

// CreateGigRequest posts a new gig for a venue. An empty or zero budget
// makes the gig non-payable.
type CreateGigRequest struct {
	VenueID   string    `json:"venueId" binding:"required"`
	Title     string    `json:"title" binding:"required"`
	Kind      string    `json:"kind"`
	Budget    string    `json:"budget"`
	StartTime time.Time `json:"startTime" binding:"required"`
}

// ApplyRequest is a performer applying to a gig. Fee defaults to the budget.
type ApplyRequest struct {
	PerformerID string `json:"performerId" binding:"required"`
	Fee         string `json:"fee"`
}

// InviteRequest is a venue inviting a performer. Fee defaults to the budget.
type InviteRequest struct {
	PerformerID string `json:"performerId" binding:"required"`
	Fee         string `json:"fee"`
}

// NegotiateRequest proposes a new fee from one side of the booking.
type NegotiateRequest struct {
	PerformerID string `json:"performerId" binding:"required"`
	Fee         string `json:"fee" binding:"required"`
	Side        Role   `json:"side" binding:"required,oneof=venue musician"`
}

// ApplicantActionRequest targets one applicant on behalf of one side.
type ApplicantActionRequest struct {
	PerformerID string `json:"performerId" binding:"required"`
	Side        Role   `json:"side" binding:"required,oneof=venue musician"`
}

type WithdrawRequest struct {
	PerformerID string `json:"performerId" binding:"required"`
}

type ConfirmBookingRequest struct {
	PerformerID string `json:"performerId" binding:"required"`
}

type CancelBookingRequest struct {
	PerformerID string `json:"performerId" binding:"required"`
	Initiator   Role   `json:"initiator" binding:"required,oneof=venue musician"`
	Reason      string `json:"reason"`
}

type LogDisputeRequest struct {
	GigID       string   `json:"gigId" binding:"required"`
	PerformerID string   `json:"performerId" binding:"required"`
	Reason      string   `json:"reason" binding:"required"`
	Details     string   `json:"details"`
	Attachments []string `json:"attachments"`
}

type ConfirmPaymentRequest struct {
	PerformerID     string `json:"performerId" binding:"required"`
	PaymentMethodID string `json:"paymentMethodId" binding:"required"`
	CustomerID      string `json:"customerId"`
}

type RefundRequest struct {
	PaymentIntentID string `json:"paymentIntentId" binding:"required"`
}

// ApplicantsResponse is returned by every applicant transition.
type ApplicantsResponse struct {
	Success      bool          `json:"success"`
	GigID        string        `json:"gigId"`
	Status       GigStatus     `json:"status"`
	AgreedFee    string        `json:"agreedFee,omitempty"`
	PayoutConfig *PayoutConfig `json:"payoutConfig,omitempty"`
	Applicants   []Applicant   `json:"applicants"`
}

// NewApplicantsResponse snapshots gig's applicant state.
func NewApplicantsResponse(gig *Gig) *ApplicantsResponse {
	return &ApplicantsResponse{
		Success:      true,
		GigID:        gig.ID,
		Status:       gig.Status,
		AgreedFee:    gig.AgreedFee,
		PayoutConfig: gig.PayoutConfig,
		Applicants:   gig.Applicants,
	}
}

type ConfirmPaymentResponse struct {
	Success         bool   `json:"success"`
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
	RequiresAction  bool   `json:"requiresAction"`
	ClientSecret    string `json:"clientSecret,omitempty"`
}

type LogDisputeResponse struct {
	Success          bool   `json:"success"`
	DisputeID        string `json:"disputeId,omitempty"`
	AlreadyInDispute bool   `json:"alreadyInDispute"`
}

type ClearFeesResponse struct {
	Success bool     `json:"success"`
	Cleared []string `json:"cleared"`
	Failed  []string `json:"failed,omitempty"`
}

type CreateVenueRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateArtistRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateMusicianRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpsertUserRequest struct {
	Email            string `json:"email" binding:"required,email"`
	Name             string `json:"name"`
	StripeCustomerID string `json:"stripeCustomerId"`
	StripeConnectID  string `json:"stripeConnectId"`
}

type UpdatePermissionsRequest struct {
	Permissions map[string]bool `json:"permissions" binding:"required"`
}

type TransferOwnershipRequest struct {
	NewOwnerUserID string `json:"newOwnerUserId" binding:"required"`
}

// CreateInviteRequest invites a user by email. TTLDays is 1 to 30, default 7.
type CreateInviteRequest struct {
	Email       string          `json:"email" binding:"required,email"`
	Permissions map[string]bool `json:"permissions"`
	TTLDays     int             `json:"ttlDays"`
}

type SetPayoutShareRequest struct {
	Percent *float64 `json:"percent" binding:"required"`
}

type CreateBandRequest struct {
	Name              string `json:"name" binding:"required"`
	MusicianProfileID string `json:"musicianProfileId" binding:"required"`
	JoinPassword      string `json:"joinPassword"`
}

type CreateBandInviteRequest struct {
	Email string `json:"email"`
}

// BandMembershipRequest names the musician profile joining, leaving or
// being promoted.
type BandMembershipRequest struct {
	MusicianProfileID string `json:"musicianProfileId" binding:"required"`
	Password          string `json:"password"`
}

// SearchGigsRequest filters the gig search index. Dates are YYYY-MM-DD.
type SearchGigsRequest struct {
	Query    string    `form:"q"`
	From     string    `form:"from"`
	To       string    `form:"to"`
	Status   GigStatus `form:"status"`
	Page     int       `form:"page"`
	PageSize int       `form:"pageSize"`
}

// GigSummary is the indexed view of a gig.
type GigSummary struct {
	ID             string    `json:"id"`
	VenueID        string    `json:"venueId"`
	Title          string    `json:"title"`
	Kind           string    `json:"kind,omitempty"`
	Status         GigStatus `json:"status"`
	Budget         string    `json:"budget"`
	BudgetPence    int64     `json:"budgetPence"`
	NonPayable     bool      `json:"nonPayable"`
	StartTime      time.Time `json:"startTime"`
	ApplicantCount int       `json:"applicantCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type SearchGigsResponse struct {
	Gigs     []GigSummary `json:"gigs"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
}
