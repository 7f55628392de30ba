package domain

import "time"

// DispatchMode describes how node execution maps onto version control.
type DispatchMode string

const (
	// DispatchDisabled is the default: no dispatch bookkeeping at all.
	DispatchDisabled DispatchMode = "disabled"
	// DispatchEnabled marks dispatch metadata without VCS involvement;
	// changes happen in place on the working line.
	DispatchEnabled DispatchMode = "enabled"
	// DispatchEnabledGit maps node execution onto a process branch with a
	// pristine backup branch kept aside.
	DispatchEnabledGit DispatchMode = "enabled-git"
)

// DispatchConfig is the workspace-level dispatch record.
type DispatchConfig struct {
	Mode DispatchMode `json:"mode"`

	// Branch bookkeeping, set only in enabled-git mode. WorkBranch is the
	// branch that was checked out when dispatch was enabled; reconciliation
	// merges back into it.
	WorkBranch    string `json:"work_branch,omitempty"`
	BackupBranch  string `json:"backup_branch,omitempty"`
	ProcessBranch string `json:"process_branch,omitempty"`
	// BaseCommit is the head the branches were cut from.
	BaseCommit string `json:"base_commit,omitempty"`

	EnabledAt *time.Time `json:"enabled_at,omitempty"`
}

// Active reports whether dispatch is currently enabled in any mode.
func (c DispatchConfig) Active() bool {
	return c.Mode == DispatchEnabled || c.Mode == DispatchEnabledGit
}

// NodeDispatchStatus tracks the commit expectation of a single node.
type NodeDispatchStatus string

const (
	// DispatchAwaitingCommit is set when the node enters execution in git
	// mode: a commit on the process branch is expected.
	DispatchAwaitingCommit NodeDispatchStatus = "awaiting_commit"
	// DispatchCommitted is set once the producing commit is recorded.
	DispatchCommitted NodeDispatchStatus = "committed"
)

// NodeDispatch is the per-node dispatch sub-record, present only while the
// workspace runs in git dispatch mode.
type NodeDispatch struct {
	Status   NodeDispatchStatus `json:"status"`
	Branch   string             `json:"branch,omitempty"`
	CommitID string             `json:"commit_id,omitempty"`
}

// MergeStrategy selects how the process branch is reconciled back into the
// working line when dispatch is disabled.
type MergeStrategy string

const (
	// MergeSequential replays every process-branch commit, preserving
	// individual history and order.
	MergeSequential MergeStrategy = "sequential"
	// MergeSquash combines all process-branch commits into one.
	MergeSquash MergeStrategy = "squash"
	// MergeCherryPick applies a caller-chosen subset of commits.
	MergeCherryPick MergeStrategy = "cherry-pick"
	// MergeSkip performs no merge and leaves the process branch for manual
	// handling.
	MergeSkip MergeStrategy = "skip"
)

// Valid reports whether the strategy is one of the four known values.
func (s MergeStrategy) Valid() bool {
	switch s {
	case MergeSequential, MergeSquash, MergeCherryPick, MergeSkip:
		return true
	}
	return false
}

// Commit identifies a single VCS commit for dispatch reconciliation.
type Commit struct {
	ID      string `json:"id"`
	Subject string `json:"subject,omitempty"`
}
