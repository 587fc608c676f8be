package engine

import (
	"sort"

	"github.com/roach88/querysync/internal/value"
	"github.com/roach88/querysync/internal/watch"
)

// subscription is the single live Watch of one QueryKey.
//
// refs counts the slots bound to the key. gen changes every time the Watch
// is replaced so events from a retired Watch can be recognized.
type subscription struct {
	key         value.QueryKey
	name        string
	args        map[string]any
	argsJSON    string
	watch       watch.Watch
	unsubscribe func()
	refs        int
	gen         uint64
}

// target is one desired subscription in a reconcile call.
type target struct {
	name     string
	args     map[string]any
	argsJSON string
	refs     int
}

// registry owns the QueryKey -> Subscription mapping.
//
// Exactly one subscription exists per distinct key. The registry never
// touches the result cache; the observer seeds and drops entries from the
// created/released lists it returns.
//
// Not safe for concurrent use; callers hold the observer's turn lock.
type registry struct {
	factory watch.Factory
	subs    map[value.QueryKey]*subscription
	gen     uint64

	// onEvent receives every Watch update callback.
	onEvent func(Event)
}

func newRegistry(factory watch.Factory, onEvent func(Event)) *registry {
	return &registry{
		factory: factory,
		subs:    make(map[value.QueryKey]*subscription),
		onEvent: onEvent,
	}
}

// lookup returns the live subscription for key.
func (r *registry) lookup(key value.QueryKey) (*subscription, bool) {
	s, ok := r.subs[key]
	return s, ok
}

// live reports whether ev came from the current Watch of a live subscription.
func (r *registry) live(ev Event) bool {
	s, ok := r.subs[ev.Key]
	return ok && s.gen == ev.Gen
}

func (r *registry) len() int {
	return len(r.subs)
}

// keys returns the live keys in sorted order.
func (r *registry) keys() []value.QueryKey {
	keys := make([]value.QueryKey, 0, len(r.subs))
	for k := range r.subs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// install wires the update callback of a freshly created Watch.
func (r *registry) install(s *subscription) {
	r.gen++
	s.gen = r.gen
	ev := Event{Key: s.key, Gen: s.gen}
	s.unsubscribe = s.watch.OnUpdate(func() { r.onEvent(ev) })
}

// reconcile makes the live set equal the desired set.
//
// Newly desired keys get a Watch created through the current factory with
// the journal returned by journalFor. Keys desired before and after keep
// their Watch and only have refs updated. Keys no longer desired are
// unsubscribed.
//
// All creations happen before any release. If any creation fails, every
// Watch created by this call is unsubscribed and the registry is unchanged.
func (r *registry) reconcile(
	desired map[value.QueryKey]target,
	journalFor func(value.QueryKey) watch.Journal,
) (created, released []*subscription, err error) {
	keys := make([]value.QueryKey, 0, len(desired))
	for k := range desired {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		if _, ok := r.subs[key]; ok {
			continue
		}
		t := desired[key]
		w, err := r.factory.CreateWatch(t.name, t.args, journalFor(key))
		if err != nil {
			r.abort(created)
			return nil, nil, newWatchCreateError(t.name, err)
		}
		s := &subscription{
			key:      key,
			name:     t.name,
			args:     t.args,
			argsJSON: t.argsJSON,
			watch:    w,
		}
		r.subs[key] = s
		r.install(s)
		created = append(created, s)
	}

	for _, key := range r.keys() {
		s := r.subs[key]
		t, ok := desired[key]
		if !ok {
			s.unsubscribe()
			delete(r.subs, key)
			released = append(released, s)
			continue
		}
		s.refs = t.refs
	}
	return created, released, nil
}

func (r *registry) abort(created []*subscription) {
	for _, s := range created {
		s.unsubscribe()
		delete(r.subs, s.key)
	}
}

// swap replaces every live Watch with one created by factory, handing over
// each old Watch's journal.
//
// Replacements are all created before any callback moves. On failure no
// callback is installed on any replacement, the old Watches stay live and
// the factory is not switched. Returns the subscriptions in key order.
func (r *registry) swap(factory watch.Factory) ([]*subscription, error) {
	keys := r.keys()
	replacements := make([]watch.Watch, len(keys))
	for i, key := range keys {
		s := r.subs[key]
		w, err := factory.CreateWatch(s.name, s.args, s.watch.Journal())
		if err != nil {
			return nil, newWatchCreateError(s.name, err)
		}
		replacements[i] = w
	}

	swapped := make([]*subscription, len(keys))
	for i, key := range keys {
		s := r.subs[key]
		s.unsubscribe()
		s.watch = replacements[i]
		r.install(s)
		swapped[i] = s
	}
	r.factory = factory
	return swapped, nil
}

// destroyAll unsubscribes every Watch and empties the registry.
// Returns the number of Watches released. Idempotent.
func (r *registry) destroyAll() int {
	n := len(r.subs)
	for key, s := range r.subs {
		s.unsubscribe()
		delete(r.subs, key)
	}
	return n
}
