package notify

import (
	"context"
	"sync"
)

// Recorder is a Publisher that keeps everything it is given. Used by tests and by the
// local test server.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	ready  []string
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) PaymentReady(_ context.Context, milestoneID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = append(r.ready, milestoneID)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// EventsFor returns recorded events addressed to partyID with the given kind.
func (r *Recorder) EventsFor(partyID string, kind Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.PartyID == partyID && ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// PaymentsReady returns the milestone IDs signalled as payable.
func (r *Recorder) PaymentsReady() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ready...)
}
