package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/grovetools/gitbutler/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (*Repository, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "Test User"
	cfg.User.Email = "test@example.com"
	require.NoError(t, repo.SetConfig(cfg))

	r, err := Open(dir)
	require.NoError(t, err)
	return r, dir
}

func TestOpen(t *testing.T) {
	r, dir := initRepo(t)

	assert.Equal(t, dir, r.Workdir())
	assert.Equal(t, filepath.Join(dir, ".git"), r.GitDir())

	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotARepository))
	assert.False(t, IsRepository(t.TempDir()))
	assert.True(t, IsRepository(dir))
}

func TestFindRoot(t *testing.T) {
	_, dir := initRepo(t)
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestHeadUnborn(t *testing.T) {
	r, _ := initRepo(t)

	branch, hash, err := r.Head()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
	assert.True(t, hash.IsZero())
}

func TestSignature(t *testing.T) {
	r, _ := initRepo(t)

	name, email := r.Signature()
	assert.Equal(t, "Test User", name)
	assert.Equal(t, "test@example.com", email)
}

func TestName(t *testing.T) {
	r, dir := initRepo(t)
	assert.Equal(t, filepath.Base(dir), r.Name())

	_, err := r.repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:someone/widgets.git"},
	})
	require.NoError(t, err)
	assert.Equal(t, "widgets", r.Name())
}

func TestExtractRepoName(t *testing.T) {
	tests := map[string]string{
		"git@github.com:user/repo.git":  "repo",
		"https://github.com/user/repo":  "repo",
		"https://example.com/a/b/c.git": "c",
		"/srv/git/project.git/":         "project",
	}
	for url, want := range tests {
		assert.Equal(t, want, extractRepoName(url), url)
	}
}

func TestWriteBlob(t *testing.T) {
	r, dir := initRepo(t)

	hash, err := r.WriteBlob([]byte("hello\n"))
	require.NoError(t, err)
	// git hash-object of "hello\n"
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", hash.String())

	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))
	fromPath, err := r.WriteBlobFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, hash, fromPath)

	data, err := r.ReadBlob(hash)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	_, err = r.WriteBlobFromPath(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, errors.ErrCodeFilesystem))
}

func TestWriteTreeNested(t *testing.T) {
	r, _ := initRepo(t)

	a, err := r.WriteBlob([]byte("a"))
	require.NoError(t, err)
	b, err := r.WriteBlob([]byte("b"))
	require.NoError(t, err)

	entries := []TreeEntry{
		{Path: "src/main.go", Mode: filemode.Regular, Hash: a},
		{Path: "src.txt", Mode: filemode.Regular, Hash: b},
		{Path: "README", Mode: filemode.Executable, Hash: b},
	}
	root, err := r.WriteTree(entries)
	require.NoError(t, err)

	tree, err := r.ReadTree(root)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 3)
	// "src.txt" sorts before "src/" in git order
	assert.Equal(t, "README", tree.Entries[0].Name)
	assert.Equal(t, "src.txt", tree.Entries[1].Name)
	assert.Equal(t, "src", tree.Entries[2].Name)
	assert.Equal(t, filemode.Dir, tree.Entries[2].Mode)

	content, err := r.ReadFile(root, "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "a", string(content))

	reversed := []TreeEntry{entries[2], entries[1], entries[0]}
	again, err := r.WriteTree(reversed)
	require.NoError(t, err)
	assert.Equal(t, root, again)
}

func TestWriteTreeWithSubtreeEntries(t *testing.T) {
	r, _ := initRepo(t)

	blob, err := r.WriteBlob([]byte("x"))
	require.NoError(t, err)
	sub, err := r.WriteTree([]TreeEntry{{Path: "f", Mode: filemode.Regular, Hash: blob}})
	require.NoError(t, err)

	root, err := r.WriteTree([]TreeEntry{
		{Path: "wd", Mode: filemode.Dir, Hash: sub},
		{Path: "logs/HEAD", Mode: filemode.Regular, Hash: blob},
	})
	require.NoError(t, err)

	content, err := r.ReadFile(root, "wd/f")
	require.NoError(t, err)
	assert.Equal(t, "x", string(content))
}

func TestWriteTreeEmptyAndConflicts(t *testing.T) {
	r, _ := initRepo(t)

	empty, err := r.WriteTree(nil)
	require.NoError(t, err)
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", empty.String())

	blob, err := r.WriteBlob([]byte("x"))
	require.NoError(t, err)
	_, err = r.WriteTree([]TreeEntry{
		{Path: "a", Mode: filemode.Regular, Hash: blob},
		{Path: "a/b", Mode: filemode.Regular, Hash: blob},
	})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = r.WriteTree([]TreeEntry{{Path: "", Mode: filemode.Regular, Hash: blob}})
	assert.Error(t, err)
}

func TestCommitAndRefs(t *testing.T) {
	r, _ := initRepo(t)
	const ref = "refs/gitbutler/current"

	current, err := r.ResolveRef(ref)
	require.NoError(t, err)
	assert.True(t, current.IsZero())

	tree, err := r.WriteTree(nil)
	require.NoError(t, err)

	first, err := r.WriteCommit(CommitSpec{Tree: tree, Message: "gitbutler check"})
	require.NoError(t, err)
	require.NoError(t, r.UpdateRef(ref, first, plumbing.ZeroHash))

	second, err := r.WriteCommit(CommitSpec{Tree: tree, Parents: []plumbing.Hash{first}, Message: "gitbutler check"})
	require.NoError(t, err)
	require.NoError(t, r.UpdateRef(ref, second, first))

	resolved, err := r.ResolveRef(ref)
	require.NoError(t, err)
	assert.Equal(t, second, resolved)

	commit, err := r.ReadCommit(second)
	require.NoError(t, err)
	assert.Equal(t, []plumbing.Hash{first}, commit.ParentHashes)
	assert.Equal(t, "Test User", commit.Author.Name)
	assert.Equal(t, "gitbutler check", commit.Message)

	// Stale expectation is rejected
	err = r.UpdateRef(ref, first, first)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeStore))
}

func TestIndexMissingIsEmpty(t *testing.T) {
	r, _ := initRepo(t)

	idx, err := r.Index()
	require.NoError(t, err)
	assert.Empty(t, idx.Entries)
}
