// Package push delivers realtime refresh signals to connected parties over Redis Pub/Sub.
package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rpggio/handshake/internal/notify"
)

// Channel returns the Pub/Sub channel carrying a party's events.
func Channel(partyID string) string {
	return fmt.Sprintf("handshake:party:%s:events", partyID)
}

// RedisPusher implements notify.Pusher.
type RedisPusher struct {
	rdb *redis.Client
}

// NewRedisPusher creates a pusher on the given client. The caller owns the client.
func NewRedisPusher(rdb *redis.Client) *RedisPusher {
	return &RedisPusher{rdb: rdb}
}

// Publish sends ev on the party's channel.
func (p *RedisPusher) Publish(ctx context.Context, partyID string, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if err := p.rdb.Publish(ctx, Channel(partyID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (p *RedisPusher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Subscription delivers one party's events until closed.
type Subscription struct {
	events chan notify.Event
	cancel context.CancelFunc
}

// Events returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan notify.Event {
	return s.events
}

// Close stops the subscription.
func (s *Subscription) Close() {
	s.cancel()
}

// Subscribe listens on a party's channel. Delivery is at-most-once; malformed payloads are
// skipped.
func (p *RedisPusher) Subscribe(ctx context.Context, partyID string) (*Subscription, error) {
	pubsub := p.rdb.Subscribe(ctx, Channel(partyID))
	// Wait for the subscription to be confirmed so no publish is missed after return.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	events := make(chan notify.Event, 16)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(events)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev notify.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case events <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{events: events, cancel: cancel}, nil
}

var _ notify.Pusher = (*RedisPusher)(nil)
