package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/git"
	"github.com/grovetools/gitbutler/pkg/ignore"
	"github.com/grovetools/gitbutler/pkg/lfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBlobs struct {
	inner BlobStorer
	calls map[string]int
}

func (c *countingBlobs) Store(path string, size int64) (plumbing.Hash, error) {
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[filepath.Base(path)]++
	return c.inner.Store(path, size)
}

func (c *countingBlobs) Threshold() int64 {
	return c.inner.Threshold()
}

type fixture struct {
	repo    *git.Repository
	dir     string
	blobs   *countingBlobs
	builder *Builder
}

func newFixture(t *testing.T, threshold int64) *fixture {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	repo, err := git.Open(dir)
	require.NoError(t, err)

	x := lfs.New(repo, filepath.Join(repo.GitDir(), "lfs", "objects"), lfs.WithThreshold(threshold))
	blobs := &countingBlobs{inner: x}
	b := NewBuilder(repo, blobs, Layout{
		Workdir:       dir,
		SessionDir:    filepath.Join(repo.GitDir(), "gb", "session"),
		Reflog:        filepath.Join(repo.GitDir(), "logs", "HEAD"),
		RecordedIndex: filepath.Join(repo.GitDir(), "gb", "index"),
	})
	return &fixture{repo: repo, dir: dir, blobs: blobs, builder: b}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// stage adds rel to git's own index with an mtime well in the past, so the
// entry is not racily clean.
func (f *fixture) stage(t *testing.T, rel string) {
	t.Helper()
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(f.dir, filepath.FromSlash(rel)), past, past))

	repo, err := gogit.PlainOpen(f.dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(rel)
	require.NoError(t, err)
}

func (f *fixture) build(t *testing.T) *Result {
	t.Helper()
	m, err := ignore.Load(f.dir, nil, nil)
	require.NoError(t, err)
	res, err := f.builder.Build(context.Background(), m)
	require.NoError(t, err)
	return res
}

func TestBuildComposesThreeTrees(t *testing.T) {
	f := newFixture(t, lfs.DefaultThreshold)
	f.write(t, "file.txt", "0123456789")
	f.write(t, "src/main.go", "package main\n")
	f.write(t, ".gitignore", "*.log\n")
	f.write(t, "debug.log", "noise")
	f.write(t, ".git/gb/session/meta/start", "100")
	f.write(t, ".git/logs/HEAD", "reflog line\n")

	res := f.build(t)

	root, err := f.repo.ReadTree(res.Tree)
	require.NoError(t, err)
	require.Len(t, root.Entries, 3)
	names := map[string]plumbing.Hash{}
	for _, e := range root.Entries {
		assert.Equal(t, filemode.Dir, e.Mode)
		names[e.Name] = e.Hash
	}
	assert.Equal(t, res.Workdir, names["wd"])
	assert.Equal(t, res.Session, names["session"])
	assert.Equal(t, res.Logs, names["logs"])

	content, err := f.repo.ReadFile(res.Tree, "wd/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(content))

	_, err = f.repo.ReadFile(res.Tree, "wd/src/main.go")
	assert.NoError(t, err)
	_, err = f.repo.ReadFile(res.Tree, "wd/debug.log")
	assert.Error(t, err, "ignored files are not snapshotted")
	_, err = f.repo.ReadFile(res.Tree, "wd/.git/HEAD")
	assert.Error(t, err, "the git directory is not part of the working tree")

	start, err := f.repo.ReadFile(res.Tree, "session/meta/start")
	require.NoError(t, err)
	assert.Equal(t, "100", string(start))

	log, err := f.repo.ReadFile(res.Tree, "logs/HEAD")
	require.NoError(t, err)
	assert.Equal(t, "reflog line\n", string(log))
}

func TestBuildWithoutReflogOrSession(t *testing.T) {
	f := newFixture(t, lfs.DefaultThreshold)
	f.write(t, "a.txt", "a")

	res := f.build(t)

	logs, err := f.repo.ReadTree(res.Logs)
	require.NoError(t, err)
	assert.Empty(t, logs.Entries)
	session, err := f.repo.ReadTree(res.Session)
	require.NoError(t, err)
	assert.Empty(t, session.Entries)
}

func TestBuildIsIdempotent(t *testing.T) {
	f := newFixture(t, lfs.DefaultThreshold)
	f.write(t, "a.txt", "a")
	f.write(t, "dir/b.txt", "b")

	first := f.build(t)
	second := f.build(t)
	assert.Equal(t, first.Tree, second.Tree)
}

func TestBuildReusesUnchangedFiles(t *testing.T) {
	f := newFixture(t, lfs.DefaultThreshold)
	f.write(t, "stable.txt", "same")
	f.write(t, "moving.txt", "v1")

	first := f.build(t)
	assert.Equal(t, 2, first.Stored)
	require.NoError(t, f.builder.SaveIndex(first))

	// Move the mtime of one file only
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "moving.txt"), []byte("v2"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(f.dir, "moving.txt"), future, future))

	second := f.build(t)
	assert.Equal(t, 1, second.Reused)
	assert.Equal(t, 1, second.Stored)
	assert.Equal(t, 1, f.blobs.calls["stable.txt"], "unchanged file is not read again")
	assert.Equal(t, 2, f.blobs.calls["moving.txt"])

	firstStable, err := f.repo.ReadFile(first.Tree, "wd/stable.txt")
	require.NoError(t, err)
	secondStable, err := f.repo.ReadFile(second.Tree, "wd/stable.txt")
	require.NoError(t, err)
	assert.Equal(t, firstStable, secondStable)

	moved, err := f.repo.ReadFile(second.Tree, "wd/moving.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(moved))
}

func TestBuildReusesFilesStagedInGit(t *testing.T) {
	f := newFixture(t, lfs.DefaultThreshold)
	f.write(t, "a.txt", "hello")
	f.write(t, "b.txt", "untracked")
	f.stage(t, "a.txt")

	res := f.build(t)
	assert.Equal(t, 1, res.Reused)
	assert.Equal(t, 1, res.Stored)
	assert.Zero(t, f.blobs.calls["a.txt"], "staged file is not read")

	content, err := f.repo.ReadFile(res.Tree, "wd/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	wd, err := f.repo.ReadTree(res.Workdir)
	require.NoError(t, err)
	idx, err := f.repo.Index()
	require.NoError(t, err)
	staged, err := idx.Entry("a.txt")
	require.NoError(t, err)
	for _, e := range wd.Entries {
		if e.Name == "a.txt" {
			assert.Equal(t, staged.Hash, e.Hash)
		}
	}
}

func TestBuildRehashesStagedFileAfterEdit(t *testing.T) {
	f := newFixture(t, lfs.DefaultThreshold)
	f.write(t, "a.txt", "hello")
	f.stage(t, "a.txt")
	f.write(t, "a.txt", "hello, world")

	res := f.build(t)
	assert.Zero(t, res.Reused)
	assert.Equal(t, 1, res.Stored)

	content, err := f.repo.ReadFile(res.Tree, "wd/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(content))
}

func TestBuildExternalizesLargeStagedFile(t *testing.T) {
	f := newFixture(t, 64)
	big := make([]byte, 100)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	f.write(t, "big.bin", string(big))
	f.write(t, "small.txt", "small")
	f.stage(t, "big.bin")
	f.stage(t, "small.txt")

	res := f.build(t)
	assert.Equal(t, 1, res.Reused, "only the small file comes from git's index")
	assert.Equal(t, 1, f.blobs.calls["big.bin"])

	data, err := f.repo.ReadFile(res.Tree, "wd/big.bin")
	require.NoError(t, err)
	p, err := lfs.ParsePointer(data)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Size)

	// The recorded index holds the pointer id, so the next build reuses it
	require.NoError(t, f.builder.SaveIndex(res))
	again := f.build(t)
	assert.Equal(t, 2, again.Reused)
	assert.Equal(t, res.Tree, again.Tree)
}

func TestBuildExternalizesLargeFiles(t *testing.T) {
	f := newFixture(t, 64)
	big := make([]byte, 100)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	f.write(t, "big.bin", string(big))
	f.write(t, "small.txt", "small")

	res := f.build(t)

	data, err := f.repo.ReadFile(res.Tree, "wd/big.bin")
	require.NoError(t, err)
	p, err := lfs.ParsePointer(data)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Size)

	copied, err := os.ReadFile(filepath.Join(f.repo.GitDir(), "lfs", "objects", p.OID))
	require.NoError(t, err)
	assert.Equal(t, big, copied)

	small, err := f.repo.ReadFile(res.Tree, "wd/small.txt")
	require.NoError(t, err)
	assert.Equal(t, "small", string(small))
}

func TestBuildExternalizesAtDefaultThreshold(t *testing.T) {
	if testing.Short() {
		t.Skip("writes a 150MB file")
	}
	f := newFixture(t, lfs.DefaultThreshold)
	path := filepath.Join(f.dir, "huge.bin")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, file.Truncate(150_000_000))
	require.NoError(t, file.Close())

	res := f.build(t)

	data, err := f.repo.ReadFile(res.Tree, "wd/huge.bin")
	require.NoError(t, err)
	p, err := lfs.ParsePointer(data)
	require.NoError(t, err)
	assert.Equal(t, int64(150_000_000), p.Size)

	info, err := os.Stat(filepath.Join(f.repo.GitDir(), "lfs", "objects", p.OID))
	require.NoError(t, err)
	assert.Equal(t, int64(150_000_000), info.Size())
}

type failingBlobs struct{}

func (failingBlobs) Store(path string, size int64) (plumbing.Hash, error) {
	return plumbing.ZeroHash, errors.FilesystemFailed("copy", path, os.ErrPermission)
}

func (failingBlobs) Threshold() int64 { return lfs.DefaultThreshold }

type recordingStore struct {
	Store
	trees int
}

func (r *recordingStore) WriteTree(entries []git.TreeEntry) (plumbing.Hash, error) {
	r.trees++
	return r.Store.WriteTree(entries)
}

func TestBuildWritesNoTreeWhenLogFails(t *testing.T) {
	f := newFixture(t, lfs.DefaultThreshold)
	f.write(t, "a.txt", "a")
	f.write(t, ".git/gb/session/meta/start", "100")
	// A reflog path that is a directory cannot be stored as a blob
	f.write(t, ".git/logs/HEAD/nested", "x")

	rec := &recordingStore{Store: f.repo}
	f.builder.store = rec

	m, err := ignore.Load(f.dir, nil, nil)
	require.NoError(t, err)
	_, err = f.builder.Build(context.Background(), m)
	require.Error(t, err)
	assert.Zero(t, rec.trees)
}

func TestBuildAbortsOnStoreFailure(t *testing.T) {
	f := newFixture(t, lfs.DefaultThreshold)
	f.write(t, "a.txt", "a")
	f.builder.blobs = failingBlobs{}

	m, err := ignore.Load(f.dir, nil, nil)
	require.NoError(t, err)
	_, err = f.builder.Build(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeFilesystem))
}

func TestBuildHonorsCancellation(t *testing.T) {
	f := newFixture(t, lfs.DefaultThreshold)
	f.write(t, "a.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := ignore.Load(f.dir, nil, nil)
	require.NoError(t, err)
	_, err = f.builder.Build(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
}
