package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// VCS is the version-control collaborator used by the dispatch coordinator
// for branch bookkeeping and reconciliation. All operations are fallible;
// the coordinator reports failures as domain.ErrDispatchFailed (or
// domain.ErrMergeConflict where the implementation can tell them apart).
//
// Implementations should honor context cancellation: the coordinator wraps
// calls with caller-supplied timeouts.
type VCS interface {
	// Head returns the current commit id.
	Head(ctx context.Context) (string, error)

	// CurrentBranch returns the name of the checked-out branch.
	CurrentBranch(ctx context.Context) (string, error)

	// CreateBranch creates name at the given start point (empty = HEAD).
	CreateBranch(ctx context.Context, name, from string) error

	// Checkout switches the working tree to the named branch.
	Checkout(ctx context.Context, name string) error

	// Commit records staged changes and returns the new commit id.
	Commit(ctx context.Context, message string) (string, error)

	// MergeBranch merges the named branch into the current one, preserving
	// individual commits.
	MergeBranch(ctx context.Context, name string) error

	// SquashMerge combines all commits of the named branch into a single
	// commit with the given message and returns its id.
	SquashMerge(ctx context.Context, name, message string) (string, error)

	// CherryPick applies the given commits onto the current branch.
	CherryPick(ctx context.Context, commits []string) error

	// DeleteBranch removes the named branch.
	DeleteBranch(ctx context.Context, name string, force bool) error

	// ListCommits returns the commits reachable from 'to' but not 'from',
	// oldest first.
	ListCommits(ctx context.Context, from, to string) ([]domain.Commit, error)
}
