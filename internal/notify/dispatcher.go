package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/handshake/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// Dispatcher runs every side effect in its own goroutine with its own deadline.
// Failures are logged and counted, never returned.
type Dispatcher struct {
	emitter  Emitter
	pusher   Pusher
	payments PaymentEligibility
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Any sink may be nil.
func NewDispatcher(emitter Emitter, pusher Pusher, payments PaymentEligibility, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		emitter:  emitter,
		pusher:   pusher,
		payments: payments,
		timeout:  timeout,
		logger:   logger,
	}
}

// Publish sends ev as a notification and as a realtime push.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	if ev.PartyID == "" {
		return
	}
	if d.emitter != nil {
		d.run(ctx, "notification", string(ev.Kind), func(ctx context.Context) error {
			return d.emitter.Emit(ctx, ev.PartyID, ev.Kind, ev.Payload)
		})
	}
	if d.pusher != nil {
		d.run(ctx, "push", string(ev.Kind), func(ctx context.Context) error {
			return d.pusher.Publish(ctx, ev.PartyID, ev)
		})
	}
}

// PaymentReady signals that a milestone may be paid out.
func (d *Dispatcher) PaymentReady(ctx context.Context, milestoneID string) {
	if d.payments == nil || milestoneID == "" {
		return
	}
	d.run(ctx, "payment", milestoneID, func(ctx context.Context) error {
		return d.payments.MarkReady(ctx, milestoneID)
	})
}

// Wait blocks until in-flight side effects finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, channel, subject string, fn func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			metrics.IncrementSideEffectFailure(channel)
			d.logger.Warn("side effect failed", "channel", channel, "subject", subject, "error", err)
		}
	}()
}
