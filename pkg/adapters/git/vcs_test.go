package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	full := append([]string{"-C", dir,
		"-c", "user.name=test",
		"-c", "user.email=test@example.com",
		"-c", "commit.gpgsign=false",
	}, args...)
	out, err := exec.Command("git", full...).CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return string(out)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// setupRepo creates a repository with one commit on branch "main".
func setupRepo(t *testing.T) (string, *Repository) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	mustGit(t, dir, "init", "-b", "main")
	mustGit(t, dir, "config", "user.name", "test")
	mustGit(t, dir, "config", "user.email", "test@example.com")
	mustGit(t, dir, "config", "commit.gpgsign", "false")
	writeFile(t, dir, "README.md", "hello\n")
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "initial")

	return dir, NewRepository(dir)
}

func TestHeadAndCurrentBranch(t *testing.T) {
	_, repo := setupRepo(t)
	ctx := context.Background()

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Len(t, head, 40)

	branch, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestBranchCheckoutCommit(t *testing.T) {
	dir, repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateBranch(ctx, "feature", ""))
	require.NoError(t, repo.Checkout(ctx, "feature"))

	writeFile(t, dir, "feature.txt", "work\n")
	mustGit(t, dir, "add", ".")
	id, err := repo.Commit(ctx, "add feature file")
	require.NoError(t, err)
	assert.Len(t, id, 40)

	branch, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feature", branch)
}

func TestListCommits(t *testing.T) {
	dir, repo := setupRepo(t)
	ctx := context.Background()

	base, err := repo.Head(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.CreateBranch(ctx, "process", ""))
	require.NoError(t, repo.Checkout(ctx, "process"))

	writeFile(t, dir, "a.txt", "a\n")
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "first change")

	writeFile(t, dir, "b.txt", "b\n")
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "second change")

	commits, err := repo.ListCommits(ctx, base, "process")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	// Oldest first.
	assert.Equal(t, "first change", commits[0].Subject)
	assert.Equal(t, "second change", commits[1].Subject)
}

func TestSquashMerge(t *testing.T) {
	dir, repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateBranch(ctx, "process", ""))
	require.NoError(t, repo.Checkout(ctx, "process"))
	writeFile(t, dir, "a.txt", "a\n")
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "change one")
	writeFile(t, dir, "b.txt", "b\n")
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "change two")

	require.NoError(t, repo.Checkout(ctx, "main"))
	id, err := repo.SquashMerge(ctx, "process", "squashed changes")
	require.NoError(t, err)
	assert.Len(t, id, 40)

	// Both files landed in one commit.
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
	assert.FileExists(t, filepath.Join(dir, "b.txt"))

	base, err := repo.ListCommits(ctx, "main~1", "main")
	require.NoError(t, err)
	require.Len(t, base, 1)
	assert.Equal(t, "squashed changes", base[0].Subject)
}

func TestMergeConflictDetected(t *testing.T) {
	dir, repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateBranch(ctx, "process", ""))
	require.NoError(t, repo.Checkout(ctx, "process"))
	writeFile(t, dir, "README.md", "process version\n")
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "process edit")

	require.NoError(t, repo.Checkout(ctx, "main"))
	writeFile(t, dir, "README.md", "main version\n")
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "main edit")

	err := repo.MergeBranch(ctx, "process")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMergeConflict), "expected ErrMergeConflict, got %v", err)
}

func TestDeleteBranch(t *testing.T) {
	_, repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateBranch(ctx, "doomed", ""))
	require.NoError(t, repo.DeleteBranch(ctx, "doomed", false))

	// Force-delete an unmerged branch.
	require.NoError(t, repo.CreateBranch(ctx, "doomed2", ""))
	require.NoError(t, repo.DeleteBranch(ctx, "doomed2", true))
}
