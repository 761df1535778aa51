package notify

import "context"

// Emitter delivers notifications to a party. Delivery success is never awaited by callers.
type Emitter interface {
	Emit(ctx context.Context, partyID string, kind Kind, payload map[string]any) error
}

// Pusher publishes realtime UI refresh signals.
type Pusher interface {
	Publish(ctx context.Context, partyID string, ev Event) error
}

// PaymentEligibility is signalled when a milestone becomes payable.
type PaymentEligibility interface {
	MarkReady(ctx context.Context, milestoneID string) error
}

// Publisher is what domain services use to announce events.
// Implementations must not block on delivery and must not return delivery errors.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	PaymentReady(ctx context.Context, milestoneID string)
}
