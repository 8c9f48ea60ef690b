package consumers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"
	"gigbook/internal/repository"
	"gigbook/internal/store"

	"github.com/google/uuid"
)

const systemSender = "system"

// messageNamespace seeds the ids of projected announcements so a
// redelivered command writes the same message again.
var messageNamespace = uuid.MustParse("6f1c8a52-3c4e-4d8e-9b0a-2f7d5e1c9a41")

// Projector applies conversation commands to the conversation documents.
type Projector struct {
	store store.Store
	repo  *repository.ConversationRepository
}

func NewProjector(s store.Store, repo *repository.ConversationRepository) *Projector {
	return &Projector{store: s, repo: repo}
}

// ApplyAnnouncement appends a system message to the conversation, creating
// the conversation on first use. A pending announcement is an open offer
// and is stored as a negotiation so later status updates can find it.
func (p *Projector) ApplyAnnouncement(ctx context.Context, cmd models.AnnouncementCommand) error {
	if cmd.Ref.GigID == "" || cmd.Ref.PerformerID == "" {
		return apperrors.InvalidArgument("announcement without a conversation")
	}
	sentAt := cmd.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	id := repository.ConversationID(cmd.Ref)
	msg := &models.ConversationMessage{
		ID:        announcementID(cmd),
		Type:      models.MessageTypeAnnouncement,
		Text:      cmd.Text,
		Status:    cmd.StatusTag,
		SenderID:  systemSender,
		Timestamp: sentAt,
	}
	if cmd.StatusTag == string(models.ApplicantPending) {
		msg.Type = models.MessageTypeNegotiation
	}

	return p.store.RunInTx(ctx, func(ctx context.Context) error {
		conv, err := p.conversation(ctx, id, cmd.Ref)
		if err != nil {
			return err
		}
		if err := p.repo.SaveMessage(ctx, id, msg); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		if !sentAt.Before(conv.LastMessageAt) {
			conv.LastMessage = cmd.Text
			conv.LastMessageAt = sentAt
			conv.Status = cmd.StatusTag
		}
		return p.repo.Save(ctx, conv)
	})
}

// ApplyMessageStatus sets the status of the messages cmd selects. A
// conversation that does not exist yet has nothing to update.
func (p *Projector) ApplyMessageStatus(ctx context.Context, cmd models.MessageStatusCommand) (int, error) {
	id := repository.ConversationID(cmd.Ref)
	updated := 0
	err := p.store.RunInTx(ctx, func(ctx context.Context) error {
		updated = 0
		messages, err := p.repo.Messages(ctx, id)
		if err != nil {
			return err
		}
		for i := range messages {
			m := &messages[i]
			if !matches(cmd.Message, m) || m.Status == cmd.NewStatus {
				continue
			}
			m.Status = cmd.NewStatus
			if err := p.repo.SaveMessage(ctx, id, m); err != nil {
				return fmt.Errorf("failed to update message %s: %w", m.ID, err)
			}
			updated++
		}
		return nil
	})
	return updated, err
}

func (p *Projector) conversation(ctx context.Context, id string, ref models.ConversationRef) (*models.Conversation, error) {
	conv, err := p.repo.Get(ctx, id)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	return &models.Conversation{
		ID:          id,
		GigID:       ref.GigID,
		VenueID:     ref.VenueID,
		PerformerID: ref.PerformerID,
	}, nil
}

func matches(sel models.MessageRef, m *models.ConversationMessage) bool {
	if sel.ID != "" {
		return m.ID == sel.ID
	}
	if len(sel.Types) > 0 && !slices.Contains(sel.Types, m.Type) {
		return false
	}
	return sel.Status == "" || m.Status == sel.Status
}

func announcementID(cmd models.AnnouncementCommand) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%d", repository.ConversationID(cmd.Ref), cmd.StatusTag, cmd.Text, cmd.Ref.VenueID, cmd.SentAt.UnixNano())
	return uuid.NewSHA1(messageNamespace, []byte(key)).String()
}
