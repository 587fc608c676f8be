package testutil

import (
	"context"
	"sync"

	"github.com/roach88/querysync/internal/watch"
)

// FakeSender is a scripted watch.MutationSender.
//
// By default every mutation succeeds with a nil result. Respond overrides
// the outcome; Hold blocks SendMutation until Release so tests can observe
// the in-flight state.
type FakeSender struct {
	mu       sync.Mutex
	requests []watch.Request
	respond  func(req watch.Request) (any, error)
	gate     chan struct{}
}

// NewFakeSender creates a sender that succeeds with a nil result.
func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

// Respond sets the function deciding each mutation's outcome.
func (s *FakeSender) Respond(fn func(req watch.Request) (any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respond = fn
}

// Hold makes subsequent SendMutation calls block until Release.
func (s *FakeSender) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
}

// Release unblocks held SendMutation calls.
func (s *FakeSender) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// SendMutation implements watch.MutationSender.
func (s *FakeSender) SendMutation(ctx context.Context, req watch.Request) (any, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	respond := s.respond
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if respond == nil {
		return nil, nil
	}
	return respond(req)
}

// Requests returns a copy of the received requests in order.
func (s *FakeSender) Requests() []watch.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]watch.Request, len(s.requests))
	copy(out, s.requests)
	return out
}
