package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type AMQPConfig struct {
	URL string
}

// AMQPClient publishes JSON messages to durable queues over one channel.
type AMQPClient struct {
	conn *amqp.Connection

	mu       sync.Mutex
	ch       *amqp.Channel
	declared map[string]bool
}

func NewAMQPClient(cfg AMQPConfig) (*AMQPClient, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial AMQP broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	slog.Info("Connected to AMQP broker")
	return &AMQPClient{conn: conn, ch: ch, declared: make(map[string]bool)}, nil
}

func (c *AMQPClient) declare(queue string) error {
	if c.declared[queue] {
		return nil
	}
	if _, err := c.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	c.declared[queue] = true
	return nil
}

// Publish sends data as a persistent JSON message routed to queue.
func (c *AMQPClient) Publish(ctx context.Context, queue string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.declare(queue); err != nil {
		return err
	}

	err = c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queue, err)
	}
	return nil
}

// Consume delivers messages from queue to handler until ctx is done.
// A handler error nacks the delivery with requeue.
func (c *AMQPClient) Consume(ctx context.Context, queue, consumer string, handler func(body []byte) error) error {
	c.mu.Lock()
	err := c.declare(queue)
	var deliveries <-chan amqp.Delivery
	if err == nil {
		deliveries, err = c.ch.Consume(queue, consumer, false, false, false, false, nil)
	}
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %w", queue, err)
	}

	slog.Info("Consuming queue", "queue", queue, "consumer", consumer)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for queue %s closed", queue)
			}
			if err := handler(d.Body); err != nil {
				slog.Error("Failed to handle AMQP message", "queue", queue, "error", err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *AMQPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		_ = c.ch.Close()
	}
	return c.conn.Close()
}
