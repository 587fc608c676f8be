// Package watch defines the transport-facing collaborators of the engine.
//
// A Watch is one live subscription to one (query name, arguments) pair. It is
// owned by the transport: the engine only reads its current result, registers
// update callbacks, and hands its reconnect journal to a replacement Watch
// when the factory is swapped.
package watch

import (
	"context"
)

// Journal is an opaque reconnect token produced by the transport. A Watch
// created with its predecessor's journal resumes from the same causal point.
// The empty Journal means "start from scratch".
type Journal string

// Watch is a live subscription handle.
type Watch interface {
	// Result returns the current value. ok is false until the transport
	// delivered a first value. err is set when the query failed server-side.
	Result() (value any, ok bool, err error)

	// OnUpdate registers a callback fired whenever the result may have
	// changed. Callbacks may fire on any goroutine. The returned function
	// removes the callback; calling it more than once is safe.
	OnUpdate(callback func()) (unsubscribe func())

	// Journal returns the watch's current reconnect journal.
	Journal() Journal
}

// Factory creates Watches. Supplied by the transport layer and swappable at
// runtime.
type Factory interface {
	CreateWatch(name string, args map[string]any, journal Journal) (Watch, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(name string, args map[string]any, journal Journal) (Watch, error)

// CreateWatch calls f.
func (f FactoryFunc) CreateWatch(name string, args map[string]any, journal Journal) (Watch, error) {
	return f(name, args, journal)
}

// Request is one mutation invocation sent to the server.
type Request struct {
	// ID correlates the optimistic layer with the authoritative result.
	ID string

	// Name is the mutation function name.
	Name string

	// Args are the mutation arguments.
	Args map[string]any
}

// MutationSender delivers mutations to the server. It blocks until the
// authoritative result or failure is known. Retries belong to the sender.
type MutationSender interface {
	SendMutation(ctx context.Context, req Request) (any, error)
}

// SenderFunc adapts a function to the MutationSender interface.
type SenderFunc func(ctx context.Context, req Request) (any, error)

// SendMutation calls f.
func (f SenderFunc) SendMutation(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}
