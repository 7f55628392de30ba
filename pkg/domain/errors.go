package domain

import "errors"

// Error taxonomy. Services wrap these sentinels with context via fmt.Errorf
// and %w; adapters map them to protocol status codes with errors.Is.
var (
	// ErrWorkspaceNotFound is returned when a workspace id has no graph.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrNodeNotFound is returned when a node id is absent from the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrReferenceNotFound is returned when a reference target is absent
	// from the node.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrWorkspaceExists is returned when initializing an id that already
	// has a graph.
	ErrWorkspaceExists = errors.New("workspace already exists")

	// ErrReferenceExists is returned when adding a duplicate active target
	// to the same node.
	ErrReferenceExists = errors.New("reference already exists")

	// ErrInvalidTransition is returned for a (status, action) pair not in
	// the transition table.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConclusionRequired is returned when a terminal transition lacks a
	// conclusion.
	ErrConclusionRequired = errors.New("conclusion required")

	// ErrGraphCorrupted is returned when the store yields an unparseable
	// or structurally broken graph. Fatal for the affected workspace.
	ErrGraphCorrupted = errors.New("graph corrupted")

	// ErrDispatchActive is returned when an operation conflicts with the
	// current dispatch state (already enabled, or mode switch while nodes
	// are mid-execution).
	ErrDispatchActive = errors.New("dispatch state conflict")

	// ErrDispatchFailed is returned when a VCS operation fails during
	// dispatch bookkeeping or reconciliation.
	ErrDispatchFailed = errors.New("dispatch operation failed")

	// ErrMergeConflict is returned when reconciliation hits a merge
	// conflict; dispatch state is left unchanged.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrValidation is returned for malformed input such as an empty or
	// oversized title.
	ErrValidation = errors.New("validation failed")
)
