// Package engine implements the query synchronization engine.
//
// The engine keeps every distinct (query name, arguments) pair subscribed
// exactly once no matter how many slots request it, caches each query's
// current result, and notifies listeners only when a visible result
// actually changes. Optimistic updates write into the same cache before the
// server confirms a mutation.
//
// ARCHITECTURE:
//
// Single-Writer Turns:
// All registry and cache mutation happens while one goroutine holds the
// observer's turn lock. Watch callbacks never touch state directly: they
// enqueue an update event into a FIFO queue and pump it. Whoever holds the
// lock drains the queue as it releases, read-only calls included, so:
//   - a callback fired synchronously inside CreateWatch is processed right
//     after the creating call returns
//   - events of one Watch are processed in the order they were produced
//   - no event stays queued once every public call has returned
//   - listeners always run outside the lock and may call back into the
//     observer
//
// Components:
//   - registry: QueryKey -> live Watch, refcounted by slot
//   - resultCache: QueryKey -> current Result, written by Watch updates and
//     optimistic writes only
//   - Observer: the consumer surface (SetQueries, GetCurrentQueries,
//     Subscribe, SwapWatchFactory, Destroy)
//   - OptimisticLocalStore: the mutation-scoped view handed to optimistic
//     update functions
//
// Notification rules:
//   - SetQueries never notifies for changes it caused itself
//   - each processed Watch update that changed a visible value notifies
//     every listener once
//   - all writes of one optimistic update coalesce into one notification
//   - after Destroy every late callback is dropped
package engine
