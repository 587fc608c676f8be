// Package mutation builds mutation invocations with optional optimistic
// updates.
//
// A Mutation carries at most one OptimisticUpdate. Call applies it to the
// observer's cache under a fresh request ID, sends the mutation through the
// injected MutationSender, and settles the optimistic layer with the
// outcome. Transport results and failures are returned unchanged; retries
// belong to the sender.
package mutation
