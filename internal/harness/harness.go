package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/querysync/internal/engine"
	"github.com/roach88/querysync/internal/mutation"
	"github.com/roach88/querysync/internal/testutil"
	"github.com/roach88/querysync/internal/value"
	"github.com/roach88/querysync/internal/watch"
)

// Harness is the test execution engine.
// It drives one observer over fake factories with deterministic request IDs.
type Harness struct {
	observer  *engine.Observer
	factories []*testutil.FakeFactory
	current   *testutil.FakeFactory
	sender    *signalSender
	client    *mutation.Client
	held      []chan error
	notified  atomic.Int64
	logger    *slog.Logger
}

// Option configures a scenario run.
type Option func(*config)

type config struct {
	engineOpts []engine.Option
}

// WithEngineOptions passes extra options to the observer of each run, such
// as a persister or metrics. They apply after the harness defaults.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// signalSender fixes each request's outcome when it arrives, then signals
// that it reached the sender so held calls can be observed in flight.
type signalSender struct {
	*testutil.FakeSender
	sent chan struct{}

	mu     sync.Mutex
	reject error
}

// rejectNext sets the error returned for requests arriving from now on.
func (s *signalSender) rejectNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = err
}

func (s *signalSender) SendMutation(ctx context.Context, req watch.Request) (any, error) {
	s.mu.Lock()
	reject := s.reject
	s.mu.Unlock()

	select {
	case s.sent <- struct{}{}:
	default:
	}
	if _, err := s.FakeSender.SendMutation(ctx, req); err != nil {
		return nil, err
	}
	return nil, reject
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh observer for isolation.
//
// Execution flow:
// 1. Create a fake factory and an observer with a counting listener
// 2. Execute steps in order, recording a trace event per step
// 3. Evaluate assertions against the final state
// 4. Return result with pass/fail, trace, and errors
//
// A step failing differently than scripted is recorded in the result, not
// returned. The returned error is reserved for scenarios the harness cannot
// execute at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	if scenario == nil {
		return nil, errors.New("nil scenario")
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	first := testutil.NewFakeFactory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		factories: []*testutil.FakeFactory{first},
		current:   first,
		sender:    &signalSender{FakeSender: testutil.NewFakeSender(), sent: make(chan struct{}, 1)},
		logger:    logger,
	}
	engineOpts := append([]engine.Option{
		engine.WithLogger(logger),
		engine.WithRequestIDs(testutil.NewFixedIDGenerator("req")),
	}, cfg.engineOpts...)
	h.observer = engine.New(first, engineOpts...)
	defer h.observer.Destroy()
	defer h.release()
	h.client = mutation.NewClient(h.observer, h.sender, mutation.WithLogger(logger))
	h.observer.Subscribe(func() { h.notified.Add(1) })

	result := NewResult()
	for i, step := range scenario.Steps {
		before := h.notified.Load()
		err := h.execute(step)
		h.logger.Debug("step executed", "step", i, "action", step.Action, "error", err)

		code := errorCode(err)
		if code != step.ExpectError {
			switch {
			case step.ExpectError == "":
				result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, step.Action, err))
			case err == nil:
				result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got none", i, step.Action, step.ExpectError))
			default:
				result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s", i, step.Action, step.ExpectError, code))
			}
		}

		result.Trace = append(result.Trace, TraceEvent{
			Step:          i,
			Action:        step.Action,
			Label:         step.Label,
			Notifications: int(h.notified.Load() - before),
			Snapshot:      h.snapshot(),
			Error:         code,
		})
	}

	if err := h.release(); err != nil {
		result.AddError(fmt.Sprintf("held mutation failed at end of scenario: %v", err))
	}

	result.Notifications = int(h.notified.Load())
	result.MutationsSent = len(h.sender.Requests())
	result.Final = h.snapshot()
	for _, f := range h.factories {
		result.WatchesCreated += f.CreateCount()
		for _, w := range f.Watches() {
			if n := w.ActiveCallbacks(); n > 0 {
				result.ActiveCallbacks[w.Name] += n
			}
		}
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// execute performs one step.
func (h *Harness) execute(step Step) error {
	switch step.Action {
	case StepSetQueries:
		return h.setQueries(step)
	case StepDeliver, StepFail:
		return h.push(step)
	case StepOptimistic:
		return h.optimistic(step)
	case StepSettle:
		h.observer.SettleMutation(step.Request, step.Failed)
		return nil
	case StepSwap:
		return h.swap(step)
	case StepDestroy:
		h.observer.Destroy()
		return nil
	case StepMutate:
		return h.mutate(step)
	case StepRelease:
		return h.release()
	case StepSnapshot:
		return nil
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func (h *Harness) setQueries(step Step) error {
	if step.FailCreate != "" {
		h.current.FailFor(step.FailCreate, testutil.ErrFakeFactory)
		defer h.current.FailFor(step.FailCreate, nil)
	}

	desired := make(map[string]engine.QuerySpec, len(step.Queries))
	for slot, ref := range step.Queries {
		desired[slot] = engine.QuerySpec{Name: ref.Name, Args: ref.Args}
	}
	return h.observer.SetQueries(desired)
}

// push delivers a value or error through the live Watch of a query.
func (h *Harness) push(step Step) error {
	w := h.liveWatch(step.Query, step.Args)
	if w == nil {
		return fmt.Errorf("no live watch for %s %v", step.Query, step.Args)
	}
	if step.Journal != "" {
		w.SetJournal(watch.Journal(step.Journal))
	}
	if step.Action == StepFail {
		w.Fail(errors.New(step.Error))
		return nil
	}
	w.Deliver(step.Value)
	return nil
}

// liveWatch finds the newest watch for (name, args) that still has a
// registered callback, searching the newest factory first.
func (h *Harness) liveWatch(name string, args map[string]any) *testutil.FakeWatch {
	for i := len(h.factories) - 1; i >= 0; i-- {
		ws := h.factories[i].WatchesFor(name, args)
		for j := len(ws) - 1; j >= 0; j-- {
			if ws[j].ActiveCallbacks() > 0 {
				return ws[j]
			}
		}
	}
	return nil
}

func (h *Harness) optimistic(step Step) error {
	return h.observer.ApplyOptimisticUpdate(step.Request, step.Mutation, step.Args, writeAll(step.Writes))
}

// writeAll returns an optimistic update applying writes in order.
func writeAll(writes []Write) engine.OptimisticUpdate {
	return func(s *engine.OptimisticLocalStore, _ map[string]any) error {
		for _, w := range writes {
			if err := s.SetQuery(w.Query, w.Args, w.Value); err != nil {
				return err
			}
		}
		return nil
	}
}

// mutate invokes a mutation through the client. A scripted rejection is the
// expected outcome and is not reported as a step error.
func (h *Harness) mutate(step Step) error {
	m := h.client.Mutation(step.Mutation)
	if len(step.Writes) > 0 || step.AttachTwice {
		var err error
		if m, err = m.WithOptimisticUpdate(writeAll(step.Writes)); err != nil {
			return err
		}
	}
	if step.AttachTwice {
		if _, err := m.WithOptimisticUpdate(writeAll(step.Writes)); err != nil {
			return err
		}
	}

	var rejection error
	if step.Reject != "" {
		rejection = errors.New(step.Reject)
	}
	h.sender.rejectNext(rejection)

	args := step.CallArgs
	if args == nil && step.Args != nil {
		args = []any{step.Args}
	}
	call := func() error {
		_, err := m.Call(context.Background(), args...)
		if rejection != nil && errors.Is(err, rejection) {
			return nil
		}
		return err
	}

	if !step.Hold {
		if len(h.held) > 0 {
			return errors.New("mutate without hold while mutations are held; release them first")
		}
		err := call()
		h.drainSent()
		return err
	}

	if len(h.held) == 0 {
		h.sender.Hold()
	}
	h.drainSent()
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case <-h.sender.sent:
		h.held = append(h.held, done)
		return nil
	case err := <-done:
		if len(h.held) == 0 {
			h.sender.Release()
		}
		return err
	}
}

// release lets every held mutation complete and waits for them.
func (h *Harness) release() error {
	if len(h.held) == 0 {
		return nil
	}
	h.sender.Release()
	var errs []error
	for _, done := range h.held {
		if err := <-done; err != nil {
			errs = append(errs, err)
		}
	}
	h.held = nil
	h.drainSent()
	return errors.Join(errs...)
}

func (h *Harness) drainSent() {
	select {
	case <-h.sender.sent:
	default:
	}
}

func (h *Harness) swap(step Step) error {
	next := testutil.NewFakeFactory()
	for name, v := range step.Initial {
		next.SetInitial(name, v)
	}
	if step.FailCreate != "" {
		next.FailFor(step.FailCreate, testutil.ErrFakeFactory)
	}

	err := h.observer.SwapWatchFactory(next)
	h.factories = append(h.factories, next)
	if err != nil {
		return err
	}
	h.current = next
	return nil
}

// snapshot renders the current slot values as plain JSON values.
func (h *Harness) snapshot() map[string]any {
	out := make(map[string]any)
	for slot, r := range h.observer.CurrentResults() {
		out[slot] = renderResult(r)
	}
	return out
}

func renderResult(r engine.Result) any {
	switch {
	case !r.Loaded:
		return nil
	case r.Err != nil:
		return map[string]any{"error": r.Err.Error()}
	default:
		return r.Value
	}
}

// errorCode maps an error to its code. Errors without a code map to
// "UNKNOWN"; nil maps to "".
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return string(engErr.Code)
	}
	var valErr *value.Error
	if errors.As(err, &valErr) {
		return string(engine.ErrCodeInvalidArguments)
	}
	return "UNKNOWN"
}
