// Package git implements the VCS port on top of the git CLI. All commands
// target a specific repository directory via the -C flag, injected by every
// method, so the adapter never depends on the process working directory.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Repository implements ports.VCS against a git working tree.
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting the given directory.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// run executes a git command targeting this repository and returns stdout.
// Stderr is captured separately and included in error messages on failure.
func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if isConflict(stdout.String(), stderr.String()) {
			return "", fmt.Errorf("git %s in %s: %s: %w",
				strings.Join(args, " "), r.dir, firstLine(stdout.String()+stderr.String()), domain.ErrMergeConflict)
		}
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// isConflict recognizes merge/cherry-pick conflicts from git output. Git
// prints CONFLICT markers on stdout and the resolution hint on stderr.
func isConflict(stdout, stderr string) bool {
	return strings.Contains(stdout, "CONFLICT") ||
		strings.Contains(stderr, "CONFLICT") ||
		strings.Contains(stderr, "fix conflicts")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Head returns the current commit id.
func (r *Repository) Head(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the name of the checked-out branch.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CreateBranch creates name at the given start point (empty = HEAD).
func (r *Repository) CreateBranch(ctx context.Context, name, from string) error {
	args := []string{"branch", name}
	if from != "" {
		args = append(args, from)
	}
	_, err := r.run(ctx, args...)
	return err
}

// Checkout switches the working tree to the named branch.
func (r *Repository) Checkout(ctx context.Context, name string) error {
	_, err := r.run(ctx, "checkout", name)
	return err
}

// Commit records staged changes and returns the new commit id.
func (r *Repository) Commit(ctx context.Context, message string) (string, error) {
	if _, err := r.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	return r.Head(ctx)
}

// MergeBranch merges the named branch into the current one, preserving
// individual commits.
func (r *Repository) MergeBranch(ctx context.Context, name string) error {
	_, err := r.run(ctx, "merge", "--no-edit", name)
	return err
}

// SquashMerge combines all commits of the named branch into a single commit
// with the given message and returns its id.
func (r *Repository) SquashMerge(ctx context.Context, name, message string) (string, error) {
	if _, err := r.run(ctx, "merge", "--squash", name); err != nil {
		return "", err
	}
	return r.Commit(ctx, message)
}

// CherryPick applies the given commits onto the current branch, in order.
func (r *Repository) CherryPick(ctx context.Context, commits []string) error {
	if len(commits) == 0 {
		return nil
	}
	args := append([]string{"cherry-pick"}, commits...)
	_, err := r.run(ctx, args...)
	return err
}

// DeleteBranch removes the named branch.
func (r *Repository) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := r.run(ctx, "branch", flag, name)
	return err
}

// ListCommits returns the commits reachable from 'to' but not 'from',
// oldest first. The format keeps id and subject on one tab-separated line.
func (r *Repository) ListCommits(ctx context.Context, from, to string) ([]domain.Commit, error) {
	out, err := r.run(ctx, "log", "--reverse", "--format=%H%x09%s", from+".."+to)
	if err != nil {
		return nil, err
	}

	var commits []domain.Commit
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		id, subject, _ := strings.Cut(line, "\t")
		commits = append(commits, domain.Commit{ID: id, Subject: subject})
	}
	return commits, nil
}
