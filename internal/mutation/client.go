package mutation

import (
	"log/slog"

	"github.com/roach88/querysync/internal/engine"
	"github.com/roach88/querysync/internal/watch"
)

// Client creates Mutations bound to one observer and one sender.
type Client struct {
	observer *engine.Observer
	sender   watch.MutationSender
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client applying optimistic updates to observer and
// sending mutations through sender.
func NewClient(observer *engine.Observer, sender watch.MutationSender, opts ...Option) *Client {
	c := &Client{
		observer: observer,
		sender:   sender,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mutation returns an invocation builder for the named mutation.
func (c *Client) Mutation(name string) *Mutation {
	return &Mutation{client: c, name: name}
}
