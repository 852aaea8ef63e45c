// Package git adapts a go-git repository to the small object-store surface
// the session watcher needs: blobs, trees, commits, references and the
// staging index.
package git

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/grovetools/gitbutler/errors"
)

const (
	fallbackName  = "gitbutler"
	fallbackEmail = "gitbutler@localhost"
)

// Repository is an opened non-bare repository.
type Repository struct {
	repo    *git.Repository
	workdir string
	gitDir  string
}

// Open opens the repository whose working directory is path.
func Open(path string) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.FilesystemFailed("resolve", path, err)
	}

	repo, err := git.PlainOpen(abs)
	if err != nil {
		return nil, errors.NotARepository(abs, err)
	}
	return wrap(repo, abs)
}

// FindRoot returns the working directory of the repository containing path.
func FindRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.FilesystemFailed("resolve", path, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", errors.NotARepository(abs, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", errors.NotARepository(abs, err)
	}
	return wt.Filesystem.Root(), nil
}

// IsRepository reports whether path is the root of a non-bare repository.
func IsRepository(path string) bool {
	repo, err := Open(path)
	return err == nil && repo != nil
}

func wrap(repo *git.Repository, workdir string) (*Repository, error) {
	if _, err := repo.Worktree(); err != nil {
		return nil, errors.NotARepository(workdir, err)
	}

	gitDir := filepath.Join(workdir, git.GitDirName)
	if fs, ok := repo.Storer.(*filesystem.Storage); ok {
		gitDir = fs.Filesystem().Root()
	}

	return &Repository{repo: repo, workdir: workdir, gitDir: gitDir}, nil
}

// Workdir returns the absolute working directory.
func (r *Repository) Workdir() string {
	return r.workdir
}

// GitDir returns the absolute git directory.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// Head returns the checked out branch short name and commit. An unborn
// branch yields its name and the zero hash.
func (r *Repository) Head() (string, plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", plumbing.ZeroHash, errors.StoreFailed("read HEAD", err)
	}

	if ref.Type() == plumbing.HashReference {
		return "", ref.Hash(), nil
	}

	branch := ref.Target().Short()
	resolved, err := r.repo.Reference(ref.Target(), true)
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return branch, plumbing.ZeroHash, nil
	}
	if err != nil {
		return "", plumbing.ZeroHash, errors.StoreFailed("resolve HEAD", err)
	}
	return branch, resolved.Hash(), nil
}

// Signature returns the configured user name and email, falling back to a
// fixed gitbutler identity.
func (r *Repository) Signature() (name, email string) {
	name, email = fallbackName, fallbackEmail

	cfg, err := r.repo.ConfigScoped(gitconfig.GlobalScope)
	if err != nil {
		return name, email
	}
	if cfg.User.Name != "" {
		name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		email = cfg.User.Email
	}
	return name, email
}

// Name returns a display name for the repository: the last path element of
// the origin remote URL, else the working directory base name.
func (r *Repository) Name() string {
	if remote, err := r.repo.Remote(git.DefaultRemoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			if name := extractRepoName(urls[0]); name != "" {
				return name
			}
		}
	}
	return filepath.Base(r.workdir)
}

// extractRepoName extracts repository name from git URL
func extractRepoName(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	url = strings.TrimSuffix(url, ".git")

	// Handle SSH URLs (git@github.com:user/repo)
	if strings.HasPrefix(url, "git@") {
		if i := strings.Index(url, ":"); i >= 0 {
			url = url[i+1:]
		}
	}

	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ReadGitFile reads a file relative to the git directory.
func (r *Repository) ReadGitFile(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.gitDir, filepath.FromSlash(rel)))
}
