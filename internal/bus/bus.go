// Package bus moves envelopes between services over a pluggable pub/sub
// backend. The publish side reports backend failures synchronously to the
// caller; the subscribe side bridges backend messages into an in-process
// unbounded FIFO queue and makes its own death observable.
package bus

import (
	"context"

	"github.com/supportstack/tickets/internal/events"
)

// Publisher emits one envelope into the backend. A write failure surfaces
// to the caller, because the event is part of that request's side effects.
type Publisher interface {
	Publish(ctx context.Context, envelope events.Envelope) error
}

// Adapter bridges the backend's well-known channel into the process.
//
// Subscribe starts the bridge and returns the receive side of the queue plus
// a one-shot error channel. The error channel yields exactly when the bridge
// terminates: the context's error on cancellation, or the backend fault that
// killed it. The owner decides whether to reconnect or crash; a silently
// dead subscriber is a correctness bug.
type Adapter interface {
	Subscribe(ctx context.Context) (<-chan events.Envelope, <-chan error, error)
}
