// Package testutil holds helpers shared by tests that need a real
// repository and an isolated gitbutler home.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// IsolateHome points HOME and GITBUTLER_HOME at a fresh directory so tests
// never touch the user's configuration, registry or daemon socket.
func IsolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GITBUTLER_HOME", home)
	return home
}

// InitGitRepo initializes a repository in a new temporary directory with
// an uncommitted README and returns its working directory.
func InitGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err, "init repository")
	WriteFile(t, dir, "README.md", "# Test Project\n")
	return dir
}

// WriteFile writes content to rel inside dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// CreateCommit stages every change in dir and commits it on the current
// branch.
func CreateCommit(t *testing.T, dir, message string) plumbing.Hash {
	t.Helper()
	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, wt.AddWithOptions(&gogit.AddOptions{All: true}))
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err, "commit %q", message)
	return hash
}

// CreateBranch creates and checks out a new branch at HEAD.
func CreateBranch(t *testing.T, dir, branch string) {
	t.Helper()
	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	}))
}
