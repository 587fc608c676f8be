// Package harness runs conformance scenarios against the query engine.
//
// A scenario scripts an Observer against the in-memory fake transport from
// internal/testutil and asserts on the observable outcome: slot snapshots,
// listener notifications, and Watch lifecycle counts.
//
// # Scenario Format
//
// Scenarios are YAML (or CUE) files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	steps:
//	  - action: set_queries
//	    queries:
//	      query: { name: myQuery, args: {} }
//	  - action: deliver
//	    query: myQuery
//	    args: {}
//	    value: result
//	assertions:
//	  - type: snapshot
//	    expect: { query: result }
//	  - type: notifications
//	    count: 1
//
// # Step Actions
//
//   - set_queries: bind slots to queries (fail_create makes one query's
//     watch creation fail)
//   - deliver / fail: push a value or an error through the live Watch of a
//     query, optionally setting its journal first
//   - optimistic: apply an optimistic update writing each entry of writes
//   - settle: settle a mutation request as succeeded or failed
//   - mutate: call a mutation through the mutation client; writes become its
//     optimistic update, reject makes the server refuse it, hold keeps it in
//     flight, call_args passes a raw argument list and attach_twice attaches
//     a second update
//   - release: let every held mutation complete
//   - swap: move every subscription to a fresh factory (initial seeds
//     immediate values, fail_create makes one creation fail)
//   - destroy: destroy the observer
//   - snapshot: record the current state under a label
//
// A step that is expected to fail names the error code in expect_error.
//
// # Assertion Types
//
//   - snapshot: the final slot values; ~ (null) means not loaded and
//     {error: msg} means the query failed
//   - notifications: total listener notifications
//   - watches_created: total CreateWatch calls across all factories
//   - active_callbacks: live Watch callbacks, optionally for one query
//   - mutations_sent: requests that reached the mutation sender
//
// # Deterministic Testing
//
// Every step appends a trace event carrying the snapshot after the step and
// the notifications it caused. The trace is serialized as canonical JSON so
// golden files are byte-identical across runs.
package harness
