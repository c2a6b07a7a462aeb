package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"shopbd-be/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const EventOrderPaid = "order.paid"

type OrderPaidEvent struct {
	Event   string    `json:"event"`
	OrderID uint      `json:"order_id"`
	Amount  float64   `json:"amount"`
	ValID   string    `json:"val_id"`
	PaidAt  time.Time `json:"paid_at"`
}

type Publisher interface {
	PublishOrderPaid(ctx context.Context, e OrderPaidEvent) error
}

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	mu    sync.Mutex
	ch    Channel
	conn  *amqp.Connection
	queue string
}

// Dial connects to the broker and declares the event queue.
func Dial(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	p, err := NewAMQPPublisher(ch, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewAMQPPublisher(ch Channel, queue string) (*AMQPPublisher, error) {
	q, err := ch.QueueDeclare(
		queue, // name of the queue
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}

	return &AMQPPublisher{ch: ch, queue: q.Name}, nil
}

func (p *AMQPPublisher) PublishOrderPaid(ctx context.Context, e OrderPaidEvent) error {
	if e.Event == "" {
		e.Event = EventOrderPaid
	}
	if e.PaidAt.IsZero() {
		e.PaidAt = time.Now().UTC()
	}

	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"", p.queue, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.PaidAt,
			Type:         e.Event,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Event, err)
	}

	logger.ForOrder(ctx, e.OrderID).Debug("event published", zap.String("event", e.Event), zap.String("queue", p.queue))
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderPaid(context.Context, OrderPaidEvent) error { return nil }
