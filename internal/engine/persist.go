package engine

import (
	"github.com/roach88/querysync/internal/value"
	"github.com/roach88/querysync/internal/watch"
)

// PersistedResult is the last authoritative value of one query together
// with the journal of the Watch that produced it.
type PersistedResult struct {
	Key     value.QueryKey
	Name    string
	Args    map[string]any
	Value   any
	Journal watch.Journal
	Seq     int64
}

// Persister stores authoritative results across restarts.
//
// Implementations bound their own latency; the observer calls them while
// holding its turn lock. Errors are logged and never fail an operation.
type Persister interface {
	// Load returns the stored result for key.
	Load(key value.QueryKey) (PersistedResult, bool, error)

	// Save stores rec unless a record with a higher Seq already exists.
	Save(rec PersistedResult) error

	// LastSeq returns the highest stored Seq, or 0.
	LastSeq() (int64, error)
}
