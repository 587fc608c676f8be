package testutil

import (
	"errors"
	"sync"

	"github.com/roach88/querysync/internal/value"
	"github.com/roach88/querysync/internal/watch"
)

// FakeWatch is an in-memory watch.Watch driven by the test.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks are
// invoked outside the internal lock.
type FakeWatch struct {
	Name           string
	Args           map[string]any
	InitialJournal watch.Journal

	mu        sync.Mutex
	value     any
	loaded    bool
	err       error
	journal   watch.Journal
	callbacks map[int]func()
	nextID    int
}

// NewFakeWatch creates a watch with no value.
func NewFakeWatch(name string, args map[string]any, journal watch.Journal) *FakeWatch {
	return &FakeWatch{
		Name:           name,
		Args:           args,
		InitialJournal: journal,
		journal:        journal,
		callbacks:      make(map[int]func()),
	}
}

// Result implements watch.Watch.
func (w *FakeWatch) Result() (any, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value, w.loaded, w.err
}

// OnUpdate implements watch.Watch.
func (w *FakeWatch) OnUpdate(callback func()) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	w.callbacks[id] = callback

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.callbacks, id)
	}
}

// Journal implements watch.Watch.
func (w *FakeWatch) Journal() watch.Journal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.journal
}

// SetJournal replaces the journal the transport would report.
func (w *FakeWatch) SetJournal(j watch.Journal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.journal = j
}

// Preload sets an immediate value without firing callbacks, as if the
// transport already had the result cached when the watch was created.
func (w *FakeWatch) Preload(v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value, w.loaded, w.err = v, true, nil
}

// Deliver sets a new value and fires every registered callback.
func (w *FakeWatch) Deliver(v any) {
	w.mu.Lock()
	w.value, w.loaded, w.err = v, true, nil
	w.mu.Unlock()
	w.fire()
}

// Fail records a server-side query error and fires every callback.
func (w *FakeWatch) Fail(err error) {
	w.mu.Lock()
	w.value, w.loaded, w.err = nil, true, err
	w.mu.Unlock()
	w.fire()
}

// Ping fires callbacks without changing the value.
func (w *FakeWatch) Ping() {
	w.fire()
}

// ActiveCallbacks returns the number of registered update callbacks.
func (w *FakeWatch) ActiveCallbacks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.callbacks)
}

func (w *FakeWatch) fire() {
	w.mu.Lock()
	callbacks := make([]func(), 0, len(w.callbacks))
	for id := 0; id < w.nextID; id++ {
		if cb, ok := w.callbacks[id]; ok {
			callbacks = append(callbacks, cb)
		}
	}
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// FactoryCall records one CreateWatch invocation.
type FactoryCall struct {
	Name    string
	Args    map[string]any
	Journal watch.Journal
}

// ErrFakeFactory is returned by FakeFactory when a failure was scripted
// without a specific error.
var ErrFakeFactory = errors.New("fake factory: create failed")

// FakeFactory is a watch.Factory that records every call and keeps every
// watch it created.
type FakeFactory struct {
	mu       sync.Mutex
	calls    []FactoryCall
	watches  []*FakeWatch
	initial  map[string]any
	failFor  map[string]error
	failNext error
}

// NewFakeFactory creates an empty factory.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{
		initial: make(map[string]any),
		failFor: make(map[string]error),
	}
}

// CreateWatch implements watch.Factory.
func (f *FakeFactory) CreateWatch(name string, args map[string]any, journal watch.Journal) (watch.Watch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, FactoryCall{Name: name, Args: args, Journal: journal})

	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	if err, ok := f.failFor[name]; ok {
		return nil, err
	}

	w := NewFakeWatch(name, args, journal)
	if v, ok := f.initial[name]; ok {
		w.Preload(v)
	}
	f.watches = append(f.watches, w)
	return w, nil
}

// SetInitial makes every future watch for name start with an immediate value.
func (f *FakeFactory) SetInitial(name string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initial[name] = v
}

// FailNext makes the next CreateWatch call fail. A nil err uses ErrFakeFactory.
func (f *FakeFactory) FailNext(err error) {
	if err == nil {
		err = ErrFakeFactory
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = err
}

// FailFor makes every CreateWatch call for name fail until cleared with a
// nil err.
func (f *FakeFactory) FailFor(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failFor, name)
		return
	}
	f.failFor[name] = err
}

// CreateCount returns the number of CreateWatch calls, failed ones included.
func (f *FakeFactory) CreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Calls returns a copy of the recorded calls in order.
func (f *FakeFactory) Calls() []FactoryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FactoryCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// Watches returns every watch created so far in creation order.
func (f *FakeFactory) Watches() []*FakeWatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeWatch, len(f.watches))
	copy(out, f.watches)
	return out
}

// WatchesFor returns the watches created for a structurally equal
// (name, args) pair.
func (f *FakeFactory) WatchesFor(name string, args map[string]any) []*FakeWatch {
	var out []*FakeWatch
	for _, w := range f.Watches() {
		if w.Name == name && value.Equal(normalizeArgs(w.Args), normalizeArgs(args)) {
			out = append(out, w)
		}
	}
	return out
}

// Latest returns the most recently created watch for (name, args), or nil.
func (f *FakeFactory) Latest(name string, args map[string]any) *FakeWatch {
	ws := f.WatchesFor(name, args)
	if len(ws) == 0 {
		return nil
	}
	return ws[len(ws)-1]
}

// ActiveCallbacks sums the registered callbacks over all watches.
func (f *FakeFactory) ActiveCallbacks() int {
	total := 0
	for _, w := range f.Watches() {
		total += w.ActiveCallbacks()
	}
	return total
}

func normalizeArgs(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
