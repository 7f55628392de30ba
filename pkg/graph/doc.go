// Package graph implements the work-node state machine and its read-side
// companions: Lifecycle (create, transition, split, move, delete),
// Registry (reference lifecycle) and Resolver (executor context assembly).
//
// Every mutating operation follows the same shape: read the graph once,
// validate, mutate the in-memory snapshot, write the whole graph back in a
// single atomic replace. A failed validation never reaches the store.
package graph
