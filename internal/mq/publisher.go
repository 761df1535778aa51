// Package mq publishes notifications and payment signals to a RabbitMQ topic exchange.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rpggio/handshake/internal/notify"
)

const (
	DefaultExchange = "handshake.events"

	notificationPrefix = "notification."
	PaymentReadyKey    = "payment.milestone_ready"
)

// Channel is the subset of *amqp091.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Notification is the message body for party notifications.
type Notification struct {
	PartyID    string         `json:"party_id"`
	Kind       notify.Kind    `json:"kind"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// PaymentSignal is the message body for payment eligibility.
type PaymentSignal struct {
	MilestoneID string    `json:"milestone_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher implements notify.Emitter and notify.PaymentEligibility.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  Channel
	exchange string
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p, err := NewPublisher(ch, exchange)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher declares a durable topic exchange on ch.
func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

// Emit publishes a notification routed by its kind.
func (p *Publisher) Emit(ctx context.Context, partyID string, kind notify.Kind, payload map[string]any) error {
	return p.publish(ctx, notificationPrefix+string(kind), Notification{
		PartyID:    partyID,
		Kind:       kind,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
}

// MarkReady publishes a payment eligibility signal.
func (p *Publisher) MarkReady(ctx context.Context, milestoneID string) error {
	return p.publish(ctx, PaymentReadyKey, PaymentSignal{
		MilestoneID: milestoneID,
		OccurredAt:  time.Now().UTC(),
	})
}

// IsConnected reports whether the underlying connection is open. A publisher built on a bare
// channel is always considered connected.
func (p *Publisher) IsConnected() bool {
	if p.conn == nil {
		return p.channel != nil
	}
	return !p.conn.IsClosed()
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	// amqp091 channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

var (
	_ notify.Emitter            = (*Publisher)(nil)
	_ notify.PaymentEligibility = (*Publisher)(nil)
)
