package engine

import (
	"sort"

	"github.com/roach88/querysync/internal/value"
)

// Result is the visible state of one query.
type Result struct {
	// Value is the latest value. Meaningful only when Loaded and Err is nil.
	Value any

	// Err is the server-side query error, if the query failed.
	Err error

	// Loaded is false until a first value or error arrived.
	Loaded bool
}

// Equal reports whether two results are indistinguishable to a reader.
// Errors compare by message since transports rarely reuse error values.
func (r Result) Equal(other Result) bool {
	if r.Loaded != other.Loaded {
		return false
	}
	if (r.Err == nil) != (other.Err == nil) {
		return false
	}
	if r.Err != nil {
		return r.Err.Error() == other.Err.Error()
	}
	return value.Equal(r.Value, other.Value)
}

// Visible returns what a snapshot shows for the result: nil when not
// loaded, the error when failed, the value otherwise.
func (r Result) Visible() any {
	switch {
	case !r.Loaded:
		return nil
	case r.Err != nil:
		return r.Err
	default:
		return r.Value
	}
}

// entry is one cache slot.
//
// writer is empty for values that came from a Watch (or from the persisted
// store) and holds the mutation request ID for optimistic writes.
type entry struct {
	result   Result
	seq      int64
	writer   string
	name     string
	args     map[string]any
	argsJSON string
}

// resultCache maps QueryKeys to their current results.
//
// Not safe for concurrent use; callers hold the observer's turn lock.
type resultCache struct {
	entries map[value.QueryKey]*entry
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[value.QueryKey]*entry)}
}

func (c *resultCache) get(key value.QueryKey) (*entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// result returns the cached result, or the zero Result when absent.
func (c *resultCache) result(key value.QueryKey) Result {
	if e, ok := c.entries[key]; ok {
		return e.result
	}
	return Result{}
}

func (c *resultCache) put(key value.QueryKey, e *entry) {
	c.entries[key] = e
}

func (c *resultCache) remove(key value.QueryKey) {
	delete(c.entries, key)
}

func (c *resultCache) len() int {
	return len(c.entries)
}

func (c *resultCache) clear() {
	c.entries = make(map[value.QueryKey]*entry)
}

// byName returns every entry for a query name ordered by canonical args.
func (c *resultCache) byName(name string) []*entry {
	var out []*entry
	for _, e := range c.entries {
		if e.name == name {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].argsJSON < out[j].argsJSON
	})
	return out
}

// clone copies an entry so a rollback can restore it later.
func (e *entry) clone() *entry {
	c := *e
	return &c
}
