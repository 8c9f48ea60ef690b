package consumers

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"gigbook/internal/messaging"
	"gigbook/internal/models"
)

const queueGroup = "conversation-projector"

// ConsumerService feeds conversation commands from the configured broker
// into the projector.
type ConsumerService struct {
	nats     *messaging.NATSClient
	amqp     *messaging.AMQPClient
	handlers *Handlers

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumerService needs exactly one of the two brokers.
func NewConsumerService(nats *messaging.NATSClient, amqp *messaging.AMQPClient, handlers *Handlers) (*ConsumerService, error) {
	if nats == nil && amqp == nil {
		return nil, errors.New("no conversation broker configured")
	}
	return &ConsumerService{nats: nats, amqp: amqp, handlers: handlers}, nil
}

func (cs *ConsumerService) routes() map[string]func(context.Context, []byte) error {
	return map[string]func(context.Context, []byte) error{
		models.SubjectConversationAnnounce:      cs.handlers.HandleAnnouncement,
		models.SubjectConversationMessageStatus: cs.handlers.HandleMessageStatus,
	}
}

func (cs *ConsumerService) Start(ctx context.Context) error {
	slog.Info("Starting conversation consumers...")
	ctx, cs.cancel = context.WithCancel(ctx)

	for subject, handle := range cs.routes() {
		if cs.nats != nil {
			if _, err := cs.nats.SubscribeQueue(subject, queueGroup, natsHandler(subject, handle)); err != nil {
				return err
			}
			continue
		}

		cs.wg.Add(1)
		go func(queue string, handle func(context.Context, []byte) error) {
			defer cs.wg.Done()
			err := cs.amqp.Consume(ctx, queue, queueGroup, func(body []byte) error {
				return handle(ctx, body)
			})
			if err != nil {
				slog.Error("AMQP consumer stopped", "queue", queue, "error", err)
			}
		}(subject, handle)
	}

	slog.Info("All consumers started successfully")
	return nil
}

// Shutdown stops the AMQP consumers and waits for them to return. NATS
// subscriptions end when the connection is closed.
func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")
	if cs.cancel != nil {
		cs.cancel()
	}

	done := make(chan struct{})
	go func() {
		cs.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
