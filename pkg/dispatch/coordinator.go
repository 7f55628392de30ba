// Package dispatch implements the optional git-backed execution mode: it
// maps workspace lifecycle onto branch bookkeeping and reconciles the
// process branch back into the working line when dispatch is disabled.
//
// The coordinator never creates commits itself; commit creation is an
// external collaborator action it reconciles against. All VCS failures
// leave the stored dispatch state unchanged.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Coordinator governs the dispatch configuration of a workspace.
type Coordinator struct {
	store   ports.GraphStore
	vcs     ports.VCS
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithVCSTimeout bounds each individual VCS call. Zero disables the bound.
func WithVCSTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = timeout
	}
}

// NewCoordinator creates the coordinator. The VCS may be nil when only
// non-git dispatch is used; enabling git mode then fails cleanly.
func NewCoordinator(store ports.GraphStore, vcs ports.VCS, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		vcs:     vcs,
		logger:  logging.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enable turns dispatch on. With useGit, a backup branch (pristine
// snapshot) and a process branch are cut from the current head and the
// process branch is checked out; without it only metadata is marked and
// changes happen in place.
func (c *Coordinator) Enable(ctx context.Context, workspaceID string, useGit bool) (*domain.DispatchConfig, error) {
	graph, err := c.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if graph.Dispatch.Active() {
		return nil, fmt.Errorf("dispatch already enabled (%s): %w", graph.Dispatch.Mode, domain.ErrDispatchActive)
	}

	now := c.now()
	config := domain.DispatchConfig{Mode: domain.DispatchEnabled, EnabledAt: &now}

	if useGit {
		gitConfig, err := c.cutBranches(ctx, workspaceID, now)
		if err != nil {
			return nil, err
		}
		config = *gitConfig
	}

	graph.Dispatch = config
	graph.UpdatedAt = now
	if err := c.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	c.logger.Info("dispatch enabled", "workspace", workspaceID, "mode", config.Mode, "process_branch", config.ProcessBranch)
	return &graph.Dispatch, nil
}

// cutBranches prepares the enabled-git configuration: backup and process
// branches from the current head, process branch checked out.
func (c *Coordinator) cutBranches(ctx context.Context, workspaceID string, now time.Time) (*domain.DispatchConfig, error) {
	if c.vcs == nil {
		return nil, fmt.Errorf("no VCS configured for workspace %s: %w", workspaceID, domain.ErrDispatchFailed)
	}

	head, err := c.call(ctx, c.vcs.Head)
	if err != nil {
		return nil, c.vcsError("resolve head", err)
	}
	work, err := c.call(ctx, c.vcs.CurrentBranch)
	if err != nil {
		return nil, c.vcsError("resolve current branch", err)
	}

	stamp := now.Format("20060102-150405")
	backup := fmt.Sprintf("arbor/backup/%s-%s", workspaceID, stamp)
	process := fmt.Sprintf("arbor/process/%s-%s", workspaceID, stamp)

	if err := c.callErr(ctx, func(ctx context.Context) error {
		return c.vcs.CreateBranch(ctx, backup, head)
	}); err != nil {
		return nil, c.vcsError("create backup branch", err)
	}
	if err := c.callErr(ctx, func(ctx context.Context) error {
		return c.vcs.CreateBranch(ctx, process, head)
	}); err != nil {
		// Best effort rollback so a retry starts clean.
		_ = c.vcs.DeleteBranch(ctx, backup, true)
		return nil, c.vcsError("create process branch", err)
	}
	if err := c.callErr(ctx, func(ctx context.Context) error {
		return c.vcs.Checkout(ctx, process)
	}); err != nil {
		_ = c.vcs.DeleteBranch(ctx, process, true)
		_ = c.vcs.DeleteBranch(ctx, backup, true)
		return nil, c.vcsError("checkout process branch", err)
	}

	return &domain.DispatchConfig{
		Mode:          domain.DispatchEnabledGit,
		WorkBranch:    work,
		BackupBranch:  backup,
		ProcessBranch: process,
		BaseCommit:    head,
		EnabledAt:     &now,
	}, nil
}

// Report describes the reconciliation work pending on a workspace, so
// callers can pick a merge strategy before disabling.
type Report struct {
	Mode          domain.DispatchMode `json:"mode"`
	WorkBranch    string              `json:"work_branch,omitempty"`
	BackupBranch  string              `json:"backup_branch,omitempty"`
	ProcessBranch string              `json:"process_branch,omitempty"`
	Commits       []domain.Commit     `json:"commits,omitempty"`
	// AwaitingCommit lists nodes that entered execution but have no
	// recorded producing commit yet.
	AwaitingCommit []string `json:"awaiting_commit,omitempty"`
}

// Query reports the current dispatch state and pending commits. Read-only.
func (c *Coordinator) Query(ctx context.Context, workspaceID string) (*Report, error) {
	graph, err := c.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Mode:          graph.Dispatch.Mode,
		WorkBranch:    graph.Dispatch.WorkBranch,
		BackupBranch:  graph.Dispatch.BackupBranch,
		ProcessBranch: graph.Dispatch.ProcessBranch,
	}
	if graph.Dispatch.Mode != domain.DispatchEnabledGit {
		return report, nil
	}

	commits, err := c.listProcessCommits(ctx, graph.Dispatch)
	if err != nil {
		return nil, err
	}
	report.Commits = commits

	for _, node := range graph.Nodes {
		if node.Dispatch != nil && node.Dispatch.Status == domain.DispatchAwaitingCommit {
			report.AwaitingCommit = append(report.AwaitingCommit, node.ID)
		}
	}
	return report, nil
}

// DisableRequest selects the reconciliation strategy and branch retention.
type DisableRequest struct {
	Strategy          domain.MergeStrategy
	KeepBackupBranch  bool
	KeepProcessBranch bool
	// CommitMessage overrides the generated squash message.
	CommitMessage string
	// Commits is the caller-chosen subset for cherry-pick.
	Commits []string
}

// DisableResult summarizes a successful reconciliation.
type DisableResult struct {
	Strategy domain.MergeStrategy `json:"strategy"`
	Merged   int                  `json:"merged"`
	CommitID string               `json:"commit_id,omitempty"`
}

// Disable reconciles the process branch into the working line with the
// requested strategy, then tears down dispatch state. The operation is
// all-or-nothing: a VCS failure (including merge conflicts) leaves the
// workspace in enabled-git mode.
func (c *Coordinator) Disable(ctx context.Context, workspaceID string, req DisableRequest) (*DisableResult, error) {
	if !req.Strategy.Valid() {
		return nil, fmt.Errorf("unknown merge strategy %q: %w", req.Strategy, domain.ErrValidation)
	}

	graph, err := c.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !graph.Dispatch.Active() {
		return nil, fmt.Errorf("dispatch not enabled: %w", domain.ErrDispatchActive)
	}

	result := &DisableResult{Strategy: req.Strategy}
	config := graph.Dispatch

	if config.Mode == domain.DispatchEnabledGit {
		if err := c.reconcile(ctx, config, req, result); err != nil {
			return nil, err
		}
	}

	now := c.now()
	graph.Dispatch = domain.DispatchConfig{Mode: domain.DispatchDisabled}
	graph.UpdatedAt = now
	if err := c.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	// Branches go only once the cleared state is durable; a failed write
	// leaves them intact so a retry can still list process commits.
	if config.Mode == domain.DispatchEnabledGit {
		c.deleteBranches(ctx, config, req)
	}

	c.logger.Info("dispatch disabled", "workspace", workspaceID, "strategy", req.Strategy, "merged", result.Merged)
	return result, nil
}

// reconcile applies the merge strategy on the working line.
func (c *Coordinator) reconcile(ctx context.Context, config domain.DispatchConfig, req DisableRequest, result *DisableResult) error {
	if req.Strategy == domain.MergeSkip {
		return nil
	}

	commits, err := c.listProcessCommits(ctx, config)
	if err != nil {
		return err
	}

	if err := c.callErr(ctx, func(ctx context.Context) error {
		return c.vcs.Checkout(ctx, config.WorkBranch)
	}); err != nil {
		return c.vcsError("checkout work branch", err)
	}

	switch req.Strategy {
	case domain.MergeSequential:
		if err := c.callErr(ctx, func(ctx context.Context) error {
			return c.vcs.MergeBranch(ctx, config.ProcessBranch)
		}); err != nil {
			return c.vcsError("sequential merge", err)
		}
		result.Merged = len(commits)

	case domain.MergeSquash:
		message := req.CommitMessage
		if message == "" {
			message = fmt.Sprintf("arbor: merge %d dispatched commits", len(commits))
		}
		commitID, err := c.call(ctx, func(ctx context.Context) (string, error) {
			return c.vcs.SquashMerge(ctx, config.ProcessBranch, message)
		})
		if err != nil {
			return c.vcsError("squash merge", err)
		}
		result.Merged = len(commits)
		result.CommitID = commitID

	case domain.MergeCherryPick:
		if len(req.Commits) == 0 {
			return fmt.Errorf("cherry-pick requires an explicit commit list: %w", domain.ErrValidation)
		}
		if err := c.callErr(ctx, func(ctx context.Context) error {
			return c.vcs.CherryPick(ctx, req.Commits)
		}); err != nil {
			return c.vcsError("cherry-pick", err)
		}
		result.Merged = len(req.Commits)
	}

	return nil
}

// deleteBranches removes dispatch branches after a successful
// reconciliation, honoring the keep flags. Skip always leaves the process
// branch for manual handling. Deletion failures are logged, not fatal: the
// merge already succeeded.
func (c *Coordinator) deleteBranches(ctx context.Context, config domain.DispatchConfig, req DisableRequest) {
	keepProcess := req.KeepProcessBranch || req.Strategy == domain.MergeSkip
	if !keepProcess {
		if err := c.vcs.DeleteBranch(ctx, config.ProcessBranch, true); err != nil {
			c.logger.Warn("failed to delete process branch", "branch", config.ProcessBranch, "err", err)
		}
	}
	if !req.KeepBackupBranch {
		if err := c.vcs.DeleteBranch(ctx, config.BackupBranch, true); err != nil {
			c.logger.Warn("failed to delete backup branch", "branch", config.BackupBranch, "err", err)
		}
	}
}

// SwitchMode moves between git and non-git dispatch. Disallowed while any
// node is mid-execution, to avoid orphaned branch state; a git workspace
// with unreconciled commits must go through Disable instead.
func (c *Coordinator) SwitchMode(ctx context.Context, workspaceID string, useGit bool) (*domain.DispatchConfig, error) {
	graph, err := c.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !graph.Dispatch.Active() {
		return nil, fmt.Errorf("dispatch not enabled: %w", domain.ErrDispatchActive)
	}
	if graph.InProgress() {
		return nil, fmt.Errorf("nodes are mid-execution: %w", domain.ErrDispatchActive)
	}

	now := c.now()
	var retired *domain.DispatchConfig
	switch {
	case useGit && graph.Dispatch.Mode == domain.DispatchEnabledGit,
		!useGit && graph.Dispatch.Mode == domain.DispatchEnabled:
		return &graph.Dispatch, nil

	case useGit:
		config, err := c.cutBranches(ctx, workspaceID, now)
		if err != nil {
			return nil, err
		}
		graph.Dispatch = *config

	default:
		commits, err := c.listProcessCommits(ctx, graph.Dispatch)
		if err != nil {
			return nil, err
		}
		if len(commits) > 0 {
			return nil, fmt.Errorf("process branch holds %d unreconciled commits, disable with a strategy first: %w",
				len(commits), domain.ErrDispatchActive)
		}
		if err := c.callErr(ctx, func(ctx context.Context) error {
			return c.vcs.Checkout(ctx, graph.Dispatch.WorkBranch)
		}); err != nil {
			return nil, c.vcsError("checkout work branch", err)
		}
		config := graph.Dispatch
		retired = &config
		graph.Dispatch = domain.DispatchConfig{Mode: domain.DispatchEnabled, EnabledAt: config.EnabledAt}
	}

	graph.UpdatedAt = now
	if err := c.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	// Same ordering as Disable: branch removal waits for the durable state.
	if retired != nil {
		c.deleteBranches(ctx, *retired, DisableRequest{Strategy: domain.MergeSequential})
	}

	c.logger.Info("dispatch mode switched", "workspace", workspaceID, "mode", graph.Dispatch.Mode)
	return &graph.Dispatch, nil
}

func (c *Coordinator) listProcessCommits(ctx context.Context, config domain.DispatchConfig) ([]domain.Commit, error) {
	if c.vcs == nil {
		return nil, fmt.Errorf("no VCS configured: %w", domain.ErrDispatchFailed)
	}
	commits, err := bounded(ctx, c.timeout, func(ctx context.Context) ([]domain.Commit, error) {
		return c.vcs.ListCommits(ctx, config.BaseCommit, config.ProcessBranch)
	})
	if err != nil {
		return nil, c.vcsError("list process commits", err)
	}
	return commits, nil
}

// vcsError classifies a VCS failure: merge conflicts keep their identity,
// everything else becomes a dispatch failure.
func (c *Coordinator) vcsError(op string, err error) error {
	if errors.Is(err, domain.ErrMergeConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrDispatchFailed)
}

// call helpers bound each VCS operation with the configured timeout.

func (c *Coordinator) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	return bounded(ctx, c.timeout, fn)
}

func (c *Coordinator) callErr(ctx context.Context, fn func(context.Context) error) error {
	_, err := bounded(ctx, c.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}
