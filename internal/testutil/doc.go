// Package testutil provides deterministic fakes for the engine's transport
// collaborators.
//
// FakeFactory and FakeWatch stand in for a live transport: tests create
// watches through the factory, push values with Deliver, and inspect how
// many watches were created and how many update callbacks are still
// registered. FakeSender scripts mutation round trips, and FixedIDGenerator
// produces predictable request IDs for golden traces.
package testutil
