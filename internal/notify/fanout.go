package notify

import "context"

// Fanout forwards every event to each publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, p := range f {
		p.Publish(ctx, ev)
	}
}

func (f Fanout) PaymentReady(ctx context.Context, milestoneID string) {
	for _, p := range f {
		p.PaymentReady(ctx, milestoneID)
	}
}

var _ Publisher = Fanout(nil)
