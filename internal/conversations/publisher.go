package conversations

import (
	"context"
	"time"

	"gigbook/internal/messaging"
	"gigbook/internal/models"
)

// Broker is a message transport publishing JSON payloads by subject or
// queue name.
type Broker interface {
	Publish(ctx context.Context, subject string, data any) error
}

// Publisher sends conversation commands to the projector through a broker.
type Publisher struct {
	broker Broker
	now    func() time.Time
}

func NewPublisher(b Broker) *Publisher {
	return &Publisher{broker: b, now: func() time.Time { return time.Now().UTC() }}
}

func NewNATSPublisher(c *messaging.NATSClient) *Publisher {
	return NewPublisher(c)
}

func NewAMQPPublisher(c *messaging.AMQPClient) *Publisher {
	return NewPublisher(c)
}

func (p *Publisher) PostAnnouncement(ctx context.Context, ref models.ConversationRef, text, statusTag string) error {
	return p.broker.Publish(ctx, models.SubjectConversationAnnounce, models.AnnouncementCommand{
		Ref:       ref,
		Text:      text,
		StatusTag: statusTag,
		SentAt:    p.now(),
	})
}

func (p *Publisher) UpdateMessageStatus(ctx context.Context, ref models.ConversationRef, msg models.MessageRef, newStatus string) error {
	return p.broker.Publish(ctx, models.SubjectConversationMessageStatus, models.MessageStatusCommand{
		Ref:       ref,
		Message:   msg,
		NewStatus: newStatus,
		SentAt:    p.now(),
	})
}
