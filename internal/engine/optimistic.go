package engine

import (
	"errors"

	"github.com/roach88/querysync/internal/value"
)

// errStoreClosed is returned by an OptimisticLocalStore used after its
// update function returned.
var errStoreClosed = errors.New("optimistic store used outside its update")

// OptimisticUpdate writes speculative results for a mutation before the
// server confirms it.
type OptimisticUpdate func(store *OptimisticLocalStore, args map[string]any) error

// QueryResult is one cached query returned by GetAllQueries.
type QueryResult struct {
	Args  map[string]any
	Value any
}

// write records one optimistic cache write so it can be rolled back.
// prev is nil when the key had no entry.
type write struct {
	key  value.QueryKey
	prev *entry
	seq  int64
}

// layer is the set of writes made on behalf of one mutation request.
type layer struct {
	requestID string
	mutation  string
	writes    []write
}

// OptimisticLocalStore is the view of the result cache handed to one
// OptimisticUpdate call. It is valid only until that call returns.
type OptimisticLocalStore struct {
	o       *Observer
	layer   *layer
	changed bool
	closed  bool
}

// SetQuery writes value as the result of (name, args).
//
// The key need not be subscribed: a write to an unsubscribed key is held
// and becomes the initial value of a later subscription.
func (s *OptimisticLocalStore) SetQuery(name string, args map[string]any, v any) error {
	if s.closed {
		return errStoreClosed
	}
	key, copied, argsJSON, err := canonicalQuery(name, args)
	if err != nil {
		return newInvalidArgumentsError("", name, err)
	}

	o := s.o
	var prev *entry
	if e, ok := o.cache.get(key); ok {
		prev = e.clone()
	}

	next := Result{Value: v, Loaded: true}
	seq := o.clock.Next()
	o.cache.put(key, &entry{
		result:   next,
		seq:      seq,
		writer:   s.layer.requestID,
		name:     name,
		args:     copied,
		argsJSON: argsJSON,
	})
	s.layer.writes = append(s.layer.writes, write{key: key, prev: prev, seq: seq})
	o.metrics.optimisticWrite()

	if _, subscribed := o.reg.lookup(key); subscribed {
		var prevResult Result
		if prev != nil {
			prevResult = prev.result
		}
		if !prevResult.Equal(next) {
			s.changed = true
		}
	}
	return nil
}

// GetQuery returns the cached value of (name, args). ok is false when the
// query is not loaded, failed, or its arguments cannot be canonicalized.
func (s *OptimisticLocalStore) GetQuery(name string, args map[string]any) (v any, ok bool) {
	key, err := value.Canonicalize(name, args)
	if err != nil {
		return nil, false
	}
	r := s.o.cache.result(key)
	if !r.Loaded || r.Err != nil {
		return nil, false
	}
	return r.Value, true
}

// GetAllQueries returns every loaded result of name ordered by canonical
// arguments.
func (s *OptimisticLocalStore) GetAllQueries(name string) []QueryResult {
	var out []QueryResult
	for _, e := range s.o.cache.byName(name) {
		if !e.result.Loaded || e.result.Err != nil {
			continue
		}
		out = append(out, QueryResult{Args: e.args, Value: e.result.Value})
	}
	return out
}

// ApplyOptimisticUpdate runs fn for the mutation request requestID.
//
// Every write fn makes is recorded against requestID so SettleMutation can
// undo it. All writes of one call produce at most one notification. If fn
// fails its writes are rolled back and its error returned. A second update
// for an unsettled requestID fails with AlreadySpecified.
func (o *Observer) ApplyOptimisticUpdate(requestID, mutation string, args map[string]any, fn OptimisticUpdate) error {
	return o.turn(func() (bool, error) {
		if o.destroyed {
			return false, newDestroyedError()
		}
		if _, exists := o.layers[requestID]; exists {
			return false, NewAlreadySpecifiedError(mutation)
		}

		l := &layer{requestID: requestID, mutation: mutation}
		store := &OptimisticLocalStore{o: o, layer: l}
		err := fn(store, args)
		store.closed = true

		if err != nil {
			for i := len(l.writes) - 1; i >= 0; i-- {
				o.restore(l.writes[i])
			}
			o.logger.Debug("optimistic update failed", "mutation", mutation, "request", requestID, "error", err)
			return false, err
		}

		o.layers[requestID] = l
		o.logger.Debug("optimistic update applied",
			"mutation", mutation,
			"request", requestID,
			"writes", len(l.writes),
		)
		return store.changed, nil
	})
}

// SettleMutation retires the optimistic writes of requestID once the
// mutation's authoritative outcome is known.
//
// Held writes to unsubscribed keys are evicted. On failure, each subscribed
// key still showing the request's write is restored to its previous value.
// On success the optimistic values stay until the server overwrites them.
// Unknown request IDs are ignored.
func (o *Observer) SettleMutation(requestID string, failed bool) {
	_ = o.turn(func() (bool, error) {
		l, ok := o.layers[requestID]
		if !ok {
			return false, nil
		}
		delete(o.layers, requestID)

		changed := false
		if failed {
			for i := len(l.writes) - 1; i >= 0; i-- {
				w := l.writes[i]
				if o.current(w) {
					before := o.cache.result(w.key)
					o.restore(w)
					if _, subscribed := o.reg.lookup(w.key); subscribed && !before.Equal(o.cache.result(w.key)) {
						changed = true
					}
					continue
				}
				o.rebase(requestID, w)
			}
		}

		for _, w := range l.writes {
			if _, subscribed := o.reg.lookup(w.key); subscribed {
				continue
			}
			if e, ok := o.cache.get(w.key); ok && e.writer == requestID {
				o.cache.remove(w.key)
			}
		}

		o.logger.Debug("mutation settled",
			"mutation", l.mutation,
			"request", requestID,
			"failed", failed,
			"changed", changed,
		)
		return changed, nil
	})
}

// current reports whether w is still the latest write to its key.
func (o *Observer) current(w write) bool {
	e, ok := o.cache.get(w.key)
	return ok && e.seq == w.seq
}

// restore puts back the entry w replaced. A key that had no entry falls back
// to its Watch's result when subscribed.
func (o *Observer) restore(w write) {
	if w.prev != nil {
		o.cache.put(w.key, w.prev)
		return
	}
	s, subscribed := o.reg.lookup(w.key)
	if !subscribed {
		o.cache.remove(w.key)
		return
	}
	e := &entry{name: s.name, args: s.args, argsJSON: s.argsJSON, seq: o.clock.Next()}
	if v, ok, err := s.watch.Result(); ok || err != nil {
		e.result = Result{Value: v, Err: err, Loaded: true}
	}
	o.cache.put(w.key, e)
}

// rebase handles a failed write that a later write already covered: any
// later in-flight write that would restore the failed value restores what
// the failed write replaced instead.
func (o *Observer) rebase(requestID string, failed write) {
	for _, l := range o.layers {
		for i := range l.writes {
			w := &l.writes[i]
			if w.key != failed.key || w.prev == nil {
				continue
			}
			if w.prev.writer == requestID && w.prev.seq == failed.seq {
				w.prev = failed.prev
			}
		}
	}
}
