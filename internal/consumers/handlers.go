package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gigbook/internal/models"

	"github.com/nats-io/stan.go"
)

const handleTimeout = 10 * time.Second

// Handlers decode conversation commands and hand them to the projector.
type Handlers struct {
	projector *Projector
}

func NewHandlers(p *Projector) *Handlers {
	return &Handlers{projector: p}
}

// HandleAnnouncement applies one encoded AnnouncementCommand.
func (h *Handlers) HandleAnnouncement(ctx context.Context, data []byte) error {
	var cmd models.AnnouncementCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		// A message that cannot be decoded will never succeed; drop it.
		slog.Error("Failed to unmarshal announcement", "error", err)
		return nil
	}

	if err := h.projector.ApplyAnnouncement(ctx, cmd); err != nil {
		return fmt.Errorf("failed to apply announcement: %w", err)
	}
	slog.Debug("Projected announcement", "gig_id", cmd.Ref.GigID, "performer_id", cmd.Ref.PerformerID, "status_tag", cmd.StatusTag)
	return nil
}

// HandleMessageStatus applies one encoded MessageStatusCommand.
func (h *Handlers) HandleMessageStatus(ctx context.Context, data []byte) error {
	var cmd models.MessageStatusCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		slog.Error("Failed to unmarshal message status command", "error", err)
		return nil
	}

	n, err := h.projector.ApplyMessageStatus(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to apply message status: %w", err)
	}
	slog.Debug("Projected message status", "gig_id", cmd.Ref.GigID, "performer_id", cmd.Ref.PerformerID,
		"new_status", cmd.NewStatus, "updated", n)
	return nil
}

// natsHandler acks a message once handle succeeds. A failed message is
// left unacked and redelivered after the ack wait.
func natsHandler(subject string, handle func(context.Context, []byte) error) stan.MsgHandler {
	return func(m *stan.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()

		if err := handle(ctx, m.Data); err != nil {
			slog.Error("Failed to handle message", "subject", subject, "sequence", m.Sequence, "error", err)
			return
		}
		if err := m.Ack(); err != nil {
			slog.Error("Failed to ack message", "subject", subject, "sequence", m.Sequence, "error", err)
		}
	}
}
