package engine

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/querysync/internal/value"
	"github.com/roach88/querysync/internal/watch"
)

// QuerySpec names one query and its arguments.
type QuerySpec struct {
	Name string
	Args map[string]any
}

// binding is a slot's current QueryKey.
type binding struct {
	key  value.QueryKey
	name string
}

// Observer is the consumer surface of the engine.
//
// Thread-safety model:
//   - every public method is safe from any goroutine
//   - all state changes happen inside a turn holding mu
//   - Watch callbacks only enqueue; any goroutine releasing mu, readers
//     included, drains the queue
//   - listeners run outside mu and may call back into the Observer, but an
//     OptimisticUpdate must only use the store it is handed
//
// INVARIANTS:
//   - one subscription per distinct QueryKey, refs == bound slot count
//   - every slot's key has a live subscription
//   - after Destroy no callback changes state
type Observer struct {
	mu        sync.Mutex
	reg       *registry
	cache     *resultCache
	queue     *eventQueue
	clock     *Clock
	slots     map[string]binding
	listeners map[int]func()
	nextID    int
	layers    map[string]*layer
	destroyed bool

	logger    *slog.Logger
	metrics   *Metrics
	persister Persister
	ids       IDGenerator
}

// Option configures an Observer.
type Option func(*Observer)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Observer) {
		o.logger = l
	}
}

// WithMetrics records observer activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *Observer) {
		o.metrics = m
	}
}

// WithPersister stores authoritative results and journals in p and seeds new
// subscriptions from it. Unless WithClock is also given, the clock resumes
// after p's last seq.
func WithPersister(p Persister) Option {
	return func(o *Observer) {
		o.persister = p
	}
}

// WithRequestIDs sets the mutation request ID generator.
// Default: UUIDv7Generator.
func WithRequestIDs(g IDGenerator) Option {
	return func(o *Observer) {
		o.ids = g
	}
}

// WithClock sets the logical clock stamping cache writes.
func WithClock(c *Clock) Option {
	return func(o *Observer) {
		o.clock = c
	}
}

// New creates an Observer creating Watches through factory.
func New(factory watch.Factory, opts ...Option) *Observer {
	o := &Observer{
		cache:     newResultCache(),
		queue:     newEventQueue(),
		slots:     make(map[string]binding),
		listeners: make(map[int]func()),
		layers:    make(map[string]*layer),
		logger:    slog.Default(),
		ids:       UUIDv7Generator{},
	}
	o.reg = newRegistry(factory, o.onWatchEvent)

	for _, opt := range opts {
		opt(o)
	}

	if o.clock == nil {
		o.clock = NewClock()
		if o.persister != nil {
			last, err := o.persister.LastSeq()
			if err != nil {
				o.logger.Warn("persisted seq unavailable, starting clock at 0", "error", err)
			} else {
				o.clock = NewClockAt(last)
			}
		}
	}
	return o
}

// NextRequestID returns a fresh mutation request ID.
func (o *Observer) NextRequestID() string {
	return o.ids.Generate()
}

// SetQueries binds every slot of desired to its query and unbinds slots not
// in desired.
//
// All arguments are canonicalized before anything changes, so an
// InvalidArguments error leaves the observer untouched. A slot bound to the
// same query as before keeps its Watch. If the factory fails, every Watch
// created by this call is released and the previous bindings stay.
//
// SetQueries never notifies listeners: a new subscription starts with
// whatever value is already known, and only later Watch updates notify.
func (o *Observer) SetQueries(desired map[string]QuerySpec) error {
	return o.turn(func() (bool, error) {
		if o.destroyed {
			return false, newDestroyedError()
		}

		slots := make(map[string]binding, len(desired))
		targets := make(map[value.QueryKey]target, len(desired))
		for _, slot := range sortedSlots(desired) {
			spec := desired[slot]
			key, args, argsJSON, err := canonicalQuery(spec.Name, spec.Args)
			if err != nil {
				return false, newInvalidArgumentsError(slot, spec.Name, err)
			}
			slots[slot] = binding{key: key, name: spec.Name}
			t := targets[key]
			t.name, t.args, t.argsJSON = spec.Name, args, argsJSON
			t.refs++
			targets[key] = t
		}

		persisted := make(map[value.QueryKey]PersistedResult)
		journalFor := func(key value.QueryKey) watch.Journal {
			rec, ok := o.loadPersisted(key)
			if !ok {
				return ""
			}
			persisted[key] = rec
			return rec.Journal
		}

		created, released, err := o.reg.reconcile(targets, journalFor)
		if err != nil {
			o.logger.Warn("set queries failed", "error", err)
			return false, err
		}

		for _, s := range created {
			o.seed(s, persisted)
			o.logger.Debug("watch created", "key", s.key.Short(), "query", s.name)
		}
		for _, s := range released {
			o.cache.remove(s.key)
			o.logger.Debug("watch released", "key", s.key.Short(), "query", s.name)
		}
		o.slots = slots

		o.metrics.created(len(created))
		o.metrics.released(len(released))
		o.metrics.active(o.reg.len())
		return false, nil
	})
}

// seed sets the initial cache entry of a new subscription: a held optimistic
// write wins, then the Watch's immediate result, then the persisted value.
func (o *Observer) seed(s *subscription, persisted map[value.QueryKey]PersistedResult) {
	if e, ok := o.cache.get(s.key); ok && e.writer != "" {
		return
	}
	e := &entry{name: s.name, args: s.args, argsJSON: s.argsJSON}
	if v, ok, err := s.watch.Result(); ok || err != nil {
		e.result = Result{Value: v, Err: err, Loaded: true}
		e.seq = o.clock.Next()
	} else if rec, ok := persisted[s.key]; ok {
		e.result = Result{Value: rec.Value, Loaded: true}
		e.seq = rec.Seq
	}
	o.cache.put(s.key, e)
}

// GetCurrentQueries returns every slot's visible value: nil when not yet
// loaded, the error when the query failed, the value otherwise.
// Returns an empty map after Destroy.
func (o *Observer) GetCurrentQueries() map[string]any {
	var out map[string]any
	o.read(func() {
		out = make(map[string]any, len(o.slots))
		for slot, b := range o.slots {
			out[slot] = o.cache.result(b.key).Visible()
		}
	})
	return out
}

// CurrentResults is GetCurrentQueries with the loaded state made explicit.
func (o *Observer) CurrentResults() map[string]Result {
	var out map[string]Result
	o.read(func() {
		out = make(map[string]Result, len(o.slots))
		for slot, b := range o.slots {
			out[slot] = o.cache.result(b.key)
		}
	})
	return out
}

// LocalQueryResult reads the cached result of one query without subscribing.
// The result is not loaded when nothing is cached for it.
func (o *Observer) LocalQueryResult(name string, args map[string]any) (Result, error) {
	key, err := value.Canonicalize(name, args)
	if err != nil {
		return Result{}, newInvalidArgumentsError("", name, err)
	}

	var r Result
	o.read(func() { r = o.cache.result(key) })
	return r, nil
}

// Subscribe registers listener for visible changes. The returned function
// removes it; calling it again is a no-op. Subscribing to a destroyed
// observer registers nothing.
func (o *Observer) Subscribe(listener func()) func() {
	id, ok := -1, false
	o.read(func() {
		if o.destroyed {
			return
		}
		id, ok = o.nextID, true
		o.nextID++
		o.listeners[id] = listener
	})
	if !ok {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			o.read(func() { delete(o.listeners, id) })
		})
	}
}

// SwapWatchFactory moves every live subscription to factory, handing each
// replacement its predecessor's journal.
//
// Either every subscription moves or none does. Listeners are notified only
// if some replacement's immediate result differs from the cached one.
func (o *Observer) SwapWatchFactory(factory watch.Factory) error {
	return o.turn(func() (bool, error) {
		if o.destroyed {
			return false, newDestroyedError()
		}

		swapped, err := o.reg.swap(factory)
		if err != nil {
			o.logger.Warn("watch factory swap failed", "error", err)
			return false, err
		}

		changed := false
		for _, s := range swapped {
			v, ok, err := s.watch.Result()
			if !ok && err == nil {
				continue
			}
			next := Result{Value: v, Err: err, Loaded: true}
			if o.writeServer(s, next) {
				changed = true
			}
		}

		o.logger.Debug("watch factory swapped", "subscriptions", len(swapped), "changed", changed)
		o.metrics.created(len(swapped))
		o.metrics.released(len(swapped))
		return changed, nil
	})
}

// Destroy releases every subscription and clears slots and listeners.
// Later Watch callbacks are dropped. Idempotent.
func (o *Observer) Destroy() {
	_ = o.turn(func() (bool, error) {
		if o.destroyed {
			return false, nil
		}
		o.destroyed = true
		o.queue.Close()

		n := o.reg.destroyAll()
		o.cache.clear()
		o.slots = make(map[string]binding)
		o.listeners = make(map[int]func())
		o.layers = make(map[string]*layer)

		o.logger.Debug("observer destroyed", "released", n)
		o.metrics.released(n)
		o.metrics.active(0)
		return false, nil
	})
}

// Stats is a point-in-time view of the observer's size.
type Stats struct {
	Subscriptions int
	Slots         int
	Listeners     int
	CacheEntries  int
	PendingEvents int
	InFlight      int
	Seq           int64
	Destroyed     bool
}

// Stats returns current counts.
func (o *Observer) Stats() Stats {
	var st Stats
	o.read(func() {
		st = Stats{
			Subscriptions: o.reg.len(),
			Slots:         len(o.slots),
			Listeners:     len(o.listeners),
			CacheEntries:  o.cache.len(),
			PendingEvents: o.queue.Len(),
			InFlight:      len(o.layers),
			Seq:           o.clock.Current(),
			Destroyed:     o.destroyed,
		}
	})
	return st
}

// onWatchEvent is installed as every Watch's update callback.
func (o *Observer) onWatchEvent(ev Event) {
	if !o.queue.Enqueue(ev) {
		o.metrics.dropped(dropDestroyed)
		return
	}
	o.pump()
}

// turn runs fn holding the lock, notifies listeners if fn reports a visible
// change, then drains events that arrived meanwhile.
func (o *Observer) turn(fn func() (notify bool, err error)) error {
	notify, err := o.locked(fn)
	if notify {
		o.dispatch()
	}
	o.pump()
	return err
}

// read runs fn holding the lock, then drains events whose pump found the
// lock taken while fn ran. fn must not change state.
func (o *Observer) read(fn func()) {
	func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		fn()
	}()
	o.pump()
}

func (o *Observer) locked(fn func() (bool, error)) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fn()
}

// pump processes queued events one at a time. If another goroutine holds the
// lock it returns; the holder re-checks the queue after unlocking. Every
// path that takes mu outside pump ends in turn, read or a pump loop, so no
// event is left queued once all callers return.
func (o *Observer) pump() {
	for o.queue.Len() > 0 {
		if !o.mu.TryLock() {
			return
		}
		ev, ok := o.queue.TryDequeue()
		changed := ok && o.processEvent(ev)
		o.mu.Unlock()

		if changed {
			o.dispatch()
		}
	}
}

// processEvent applies the latest result of the Watch that fired.
// Returns true when a visible value changed.
func (o *Observer) processEvent(ev Event) bool {
	if o.destroyed {
		o.metrics.dropped(dropDestroyed)
		return false
	}
	if !o.reg.live(ev) {
		o.metrics.dropped(dropStale)
		return false
	}

	s, _ := o.reg.lookup(ev.Key)
	v, ok, err := s.watch.Result()
	if !ok && err == nil {
		o.metrics.dropped(dropEmpty)
		return false
	}

	changed := o.writeServer(s, Result{Value: v, Err: err, Loaded: true})
	if changed {
		o.logger.Debug("query updated", "key", ev.Key.Short(), "query", s.name)
	}
	return changed
}

// writeServer stores an authoritative result, overwriting any optimistic
// value, and persists it. Returns true when the visible value changed.
func (o *Observer) writeServer(s *subscription, next Result) bool {
	prev := o.cache.result(s.key)
	seq := o.clock.Next()
	o.cache.put(s.key, &entry{
		result:   next,
		seq:      seq,
		name:     s.name,
		args:     s.args,
		argsJSON: s.argsJSON,
	})

	if next.Err == nil {
		o.savePersisted(PersistedResult{
			Key:     s.key,
			Name:    s.name,
			Args:    s.args,
			Value:   next.Value,
			Journal: s.watch.Journal(),
			Seq:     seq,
		})
	}
	return !prev.Equal(next)
}

// dispatch calls every listener registered at the time of the call, skipping
// those removed meanwhile.
func (o *Observer) dispatch() {
	o.mu.Lock()
	ids := make([]int, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	sort.Ints(ids)
	o.metrics.notified()

	for _, id := range ids {
		o.mu.Lock()
		l := o.listeners[id]
		o.mu.Unlock()
		if l != nil {
			l()
		}
	}
}

func (o *Observer) loadPersisted(key value.QueryKey) (PersistedResult, bool) {
	if o.persister == nil {
		return PersistedResult{}, false
	}
	rec, ok, err := o.persister.Load(key)
	if err != nil {
		o.logger.Warn("load persisted result failed", "key", key.Short(), "error", err)
		return PersistedResult{}, false
	}
	return rec, ok
}

func (o *Observer) savePersisted(rec PersistedResult) {
	if o.persister == nil {
		return
	}
	if err := o.persister.Save(rec); err != nil {
		o.logger.Warn("save persisted result failed", "key", rec.Key.Short(), "error", err)
	}
}

// canonicalQuery returns the key, a normalized copy of args, and the
// canonical args text.
func canonicalQuery(name string, args map[string]any) (value.QueryKey, map[string]any, string, error) {
	key, err := value.Canonicalize(name, args)
	if err != nil {
		return "", nil, "", err
	}
	normalized, err := value.NormalizeArgs(args)
	if err != nil {
		return "", nil, "", err
	}
	argsJSON, err := value.MarshalCanonical(normalized)
	if err != nil {
		return "", nil, "", err
	}
	copied, _ := value.ToAny(normalized).(map[string]any)
	return key, copied, string(argsJSON), nil
}

func sortedSlots(desired map[string]QuerySpec) []string {
	slots := make([]string, 0, len(desired))
	for slot := range desired {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}
