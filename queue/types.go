package queue

import (
	"context"
	"iter"
)

// Queue is a concurrent broadcast queue. Every listener sees every
// event pushed after it joined, in push order.
type Queue[X any] interface {
	// Push adds events to the queue. It returns true if it dropped
	// earlier events that every listener had already consumed.
	Push(all ...X) bool

	// Join subscribes to events pushed after this call returns. Once
	// the context is cancelled the listener yields no further values.
	Join(ctx context.Context) Listener[X]
}

// Listener consumes events from a Queue.
type Listener[X any] interface {
	// Next waits for and returns the next event. It returns the zero
	// X and false once the listener's context is cancelled.
	Next() (X, bool)

	// Batch waits for events and returns all that are available. An
	// empty slice means the listener's context is cancelled.
	Batch() []X

	// Iter yields events one at a time until cancellation.
	Iter() iter.Seq[X]

	// BatchIter yields non-empty batches until cancellation.
	BatchIter() iter.Seq[[]X]
}
