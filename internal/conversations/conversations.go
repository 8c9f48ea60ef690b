// Package conversations carries booking transitions into the messaging
// system that the venue and performer use to talk about a gig.
package conversations

import (
	"context"
	"fmt"
	"sync"

	"gigbook/internal/logger"
	"gigbook/internal/metrics"
	"gigbook/internal/models"
)

// Announcement texts.
const (
	TextReopened     = "This gig has reopened. Applications are open again."
	TextGigDeleted   = "This gig has been deleted by the venue."
	TextDeclined     = "Your gig application was declined."
	TextOfferDecline = "Your offer was declined."
	TextWithdrawn    = "The application for this gig has been withdrawn."
	TextVenueCancel  = "The venue has cancelled this booking."
	TextUnpaidBooked = "The gig has been confirmed."
)

func TextAccepted(role models.Role, fee string) string {
	return fmt.Sprintf("The %s has accepted the gig for a fee of %s.", role, fee)
}

func TextNegotiated(role models.Role, fee string) string {
	return fmt.Sprintf("The %s proposes a new fee of %s.", role, fee)
}

func TextApplied(name, fee string) string {
	return fmt.Sprintf("%s has applied to your gig for %s.", name, fee)
}

func TextInvited(name, fee string) string {
	return fmt.Sprintf("You have been invited to play this gig as %s for %s.", name, fee)
}

func TextPaid(fee string) string {
	return fmt.Sprintf("The gig has been confirmed with a fee of %s. The fee is released after the dispute period.", fee)
}

func TextDispute(date string) string {
	return fmt.Sprintf("A dispute has been logged for the gig on %s.", date)
}

// Synchronizer is the messaging system as seen from the booking core.
type Synchronizer interface {
	PostAnnouncement(ctx context.Context, ref models.ConversationRef, text, statusTag string) error
	UpdateMessageStatus(ctx context.Context, ref models.ConversationRef, msg models.MessageRef, newStatus string) error
}

// Notifier calls a Synchronizer after a transition has committed. Failures
// are logged and counted, never returned.
type Notifier struct {
	sync Synchronizer
}

func NewNotifier(s Synchronizer) *Notifier {
	if s == nil {
		s = Nop{}
	}
	return &Notifier{sync: s}
}

func (n *Notifier) Announce(ctx context.Context, ref models.ConversationRef, text, statusTag string) {
	if err := n.sync.PostAnnouncement(ctx, ref, text, statusTag); err != nil {
		metrics.BestEffortFailures.WithLabelValues("conversations").Inc()
		logger.WithContext(ctx).Error("Failed to post conversation announcement",
			"sink", "conversations", "gig_id", ref.GigID, "performer_id", ref.PerformerID,
			"status_tag", statusTag, "error", err)
	}
}

func (n *Notifier) UpdateStatus(ctx context.Context, ref models.ConversationRef, msg models.MessageRef, newStatus string) {
	if err := n.sync.UpdateMessageStatus(ctx, ref, msg, newStatus); err != nil {
		metrics.BestEffortFailures.WithLabelValues("conversations").Inc()
		logger.WithContext(ctx).Error("Failed to update conversation message status",
			"sink", "conversations", "gig_id", ref.GigID, "performer_id", ref.PerformerID,
			"new_status", newStatus, "error", err)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) PostAnnouncement(context.Context, models.ConversationRef, string, string) error {
	return nil
}

func (Nop) UpdateMessageStatus(context.Context, models.ConversationRef, models.MessageRef, string) error {
	return nil
}

// Recorder keeps every call in memory. Err, when set, is returned from
// every call after recording it.
type Recorder struct {
	mu            sync.Mutex
	Err           error
	Announcements []models.AnnouncementCommand
	StatusUpdates []models.MessageStatusCommand
}

func (r *Recorder) PostAnnouncement(_ context.Context, ref models.ConversationRef, text, statusTag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Announcements = append(r.Announcements, models.AnnouncementCommand{Ref: ref, Text: text, StatusTag: statusTag})
	return r.Err
}

func (r *Recorder) UpdateMessageStatus(_ context.Context, ref models.ConversationRef, msg models.MessageRef, newStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StatusUpdates = append(r.StatusUpdates, models.MessageStatusCommand{Ref: ref, Message: msg, NewStatus: newStatus})
	return r.Err
}

// Tags returns the status tags announced so far, in order.
func (r *Recorder) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Announcements))
	for _, a := range r.Announcements {
		out = append(out, a.StatusTag)
	}
	return out
}
