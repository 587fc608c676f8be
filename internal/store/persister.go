package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/querysync/internal/engine"
	"github.com/roach88/querysync/internal/value"
)

// DefaultTimeout bounds each persister call.
const DefaultTimeout = 2 * time.Second

// persister adapts a Store to engine.Persister.
type persister struct {
	store   *Store
	timeout time.Duration
}

// Persister returns an engine.Persister backed by s. Each call is bounded by
// timeout; a non-positive timeout uses DefaultTimeout.
func Persister(s *Store, timeout time.Duration) engine.Persister {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &persister{store: s, timeout: timeout}
}

// Load implements engine.Persister.
func (p *persister) Load(key value.QueryKey) (engine.PersistedResult, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	rec, ok, err := p.store.LoadResult(ctx, key)
	if err != nil || !ok {
		return engine.PersistedResult{}, false, err
	}

	v, err := value.Decode([]byte(rec.Value))
	if err != nil {
		return engine.PersistedResult{}, false, fmt.Errorf("load %s: %w", key.Short(), err)
	}
	decoded, err := value.Decode([]byte(rec.Args))
	if err != nil {
		return engine.PersistedResult{}, false, fmt.Errorf("load %s: %w", key.Short(), err)
	}
	args, _ := decoded.(map[string]any)

	return engine.PersistedResult{
		Key:     rec.Key,
		Name:    rec.Name,
		Args:    args,
		Value:   v,
		Journal: rec.Journal,
		Seq:     rec.Seq,
	}, true, nil
}

// Save implements engine.Persister.
func (p *persister) Save(res engine.PersistedResult) error {
	args, err := value.MarshalCanonical(res.Args)
	if err != nil {
		return fmt.Errorf("save %s: args: %w", res.Key.Short(), err)
	}
	v, err := value.MarshalCanonical(res.Value)
	if err != nil {
		return fmt.Errorf("save %s: value: %w", res.Key.Short(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.store.SaveResult(ctx, Record{
		Key:     res.Key,
		Name:    res.Name,
		Args:    string(args),
		Value:   string(v),
		Journal: res.Journal,
		Seq:     res.Seq,
	})
}

// LastSeq implements engine.Persister.
func (p *persister) LastSeq() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.store.LastSeq(ctx)
}
