package models

import "time"

// Subjects and queues carrying conversation commands to the projector.
const (
	SubjectConversationAnnounce      = "conversations.announce"
	SubjectConversationMessageStatus = "conversations.message_status"
)

// Announcement status tags.
const (
	StatusTagAccepted      = "accepted"
	StatusTagDeclined      = "declined"
	StatusTagWithdrawn     = "withdrawn"
	StatusTagReopened      = "reopened"
	StatusTagCancelled     = "cancelled"
	StatusTagPaymentPaid   = "payment confirmed"
	StatusTagDisputeLogged = "dispute"
	StatusTagGigDeleted    = "gig deleted"
	StatusTagAppsClosed    = "apps-closed"
)

// Conversation message types that carry an offer.
const (
	MessageTypeApplication  = "application"
	MessageTypeInvitation   = "invitation"
	MessageTypeNegotiation  = "negotiation"
	MessageTypeAnnouncement = "announcement"
)

// ConversationRef addresses the conversation between a venue and a
// performer about one gig.
type ConversationRef struct {
	GigID       string `json:"gigId"`
	VenueID     string `json:"venueId"`
	PerformerID string `json:"performerId"`
}

// MessageRef selects messages in a conversation. An empty ID matches every
// message of one of Types currently in Status.
type MessageRef struct {
	ID     string   `json:"id,omitempty"`
	Types  []string `json:"types,omitempty"`
	Status string   `json:"status,omitempty"`
}

type AnnouncementCommand struct {
	Ref       ConversationRef `json:"ref"`
	Text      string          `json:"text"`
	StatusTag string          `json:"statusTag"`
	SentAt    time.Time       `json:"sentAt"`
}

type MessageStatusCommand struct {
	Ref       ConversationRef `json:"ref"`
	Message   MessageRef      `json:"message"`
	NewStatus string          `json:"newStatus"`
	SentAt    time.Time       `json:"sentAt"`
}
