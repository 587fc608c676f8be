package mutation

import (
	"context"
	"fmt"

	"github.com/roach88/querysync/internal/engine"
	"github.com/roach88/querysync/internal/value"
	"github.com/roach88/querysync/internal/watch"
)

// Mutation is an immutable mutation invocation builder.
type Mutation struct {
	client *Client
	name   string
	update engine.OptimisticUpdate
}

// Name returns the mutation function name.
func (m *Mutation) Name() string {
	return m.name
}

// HasOptimisticUpdate reports whether an update is attached.
func (m *Mutation) HasOptimisticUpdate() bool {
	return m.update != nil
}

// WithOptimisticUpdate returns a copy of m carrying fn. A Mutation carries at
// most one update: attaching a second fails with AlreadySpecified.
func (m *Mutation) WithOptimisticUpdate(fn engine.OptimisticUpdate) (*Mutation, error) {
	if m.update != nil {
		return nil, engine.NewAlreadySpecifiedError(m.name)
	}
	return &Mutation{client: m.client, name: m.name, update: fn}, nil
}

// Call invokes the mutation with at most one argument object.
//
// The optimistic update, if any, is applied before the mutation is sent and
// settled once the sender returns. The sender's result and error are
// returned as is.
func (m *Mutation) Call(ctx context.Context, args ...any) (any, error) {
	if len(args) > 1 {
		return nil, &engine.Error{
			Code:     engine.ErrCodeInvalidArguments,
			Message:  "mutation takes at most one argument object",
			Mutation: m.name,
			Err:      fmt.Errorf("%w: got %d arguments", value.ErrInvalidArguments, len(args)),
		}
	}
	if misusedAsEventHandler(args) {
		return nil, engine.NewMisuseError(m.name)
	}

	normalized, err := m.arguments(args)
	if err != nil {
		return nil, err
	}

	c := m.client
	req := watch.Request{
		ID:   c.observer.NextRequestID(),
		Name: m.name,
		Args: normalized,
	}

	if m.update != nil {
		if err := c.observer.ApplyOptimisticUpdate(req.ID, m.name, normalized, m.update); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("mutation sent", "mutation", m.name, "request", req.ID)
	result, err := c.sender.SendMutation(ctx, req)

	if m.update != nil {
		c.observer.SettleMutation(req.ID, err != nil)
	}
	if err != nil {
		c.logger.Debug("mutation failed", "mutation", m.name, "request", req.ID, "error", err)
		return nil, err
	}
	c.logger.Debug("mutation completed", "mutation", m.name, "request", req.ID)
	return result, nil
}

// arguments returns the normalized argument object of a call.
func (m *Mutation) arguments(args []any) (map[string]any, error) {
	var raw map[string]any
	if len(args) == 1 && args[0] != nil {
		obj, ok := args[0].(map[string]any)
		if !ok {
			return nil, m.invalid(fmt.Errorf("%w: arguments must be an object, got %T", value.ErrInvalidArguments, args[0]))
		}
		raw = obj
	}

	normalized, err := value.NormalizeArgs(raw)
	if err != nil {
		return nil, m.invalid(err)
	}
	out, _ := value.ToAny(normalized).(map[string]any)
	return out, nil
}

func (m *Mutation) invalid(err error) *engine.Error {
	return &engine.Error{
		Code:     engine.ErrCodeInvalidArguments,
		Message:  "arguments cannot be canonicalized",
		Mutation: m.name,
		Err:      err,
	}
}
