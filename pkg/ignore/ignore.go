// Package ignore evaluates a repository's ignore rules.
//
// Rules come from .gitignore files in the working tree, .git/info/exclude,
// the user's core.excludesfile and the system gitconfig, plus optional
// extra exclude patterns in Docker-style syntax.
package ignore

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/grovetools/gitbutler/errors"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// Matcher answers whether a path relative to the working directory is
// ignored.
type Matcher struct {
	rules gitignore.Matcher
	extra *patternmatcher.PatternMatcher
	log   *logrus.Entry
}

// Load reads the ignore rules of the working directory at workdir. exclude
// holds additional patterns applied on top of them.
func Load(workdir string, exclude []string, log *logrus.Entry) (*Matcher, error) {
	patterns, err := gitignore.ReadPatterns(osfs.New(workdir), nil)
	if err != nil {
		return nil, errors.IgnoreEvalFailed(workdir, err)
	}

	root := osfs.New("/")
	if global, err := gitignore.LoadGlobalPatterns(root); err == nil {
		patterns = append(global, patterns...)
	}
	if system, err := gitignore.LoadSystemPatterns(root); err == nil {
		patterns = append(system, patterns...)
	}

	m := &Matcher{
		rules: gitignore.NewMatcher(patterns),
		log:   log,
	}

	if len(exclude) > 0 {
		extra, err := patternmatcher.New(exclude)
		if err != nil {
			return nil, errors.IgnoreEvalFailed(workdir, err).WithDetail("patterns", exclude)
		}
		m.extra = extra
	}

	return m, nil
}

// Match reports whether rel is ignored. rel is slash-separated.
func (m *Matcher) Match(rel string, isDir bool) (bool, error) {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return false, nil
	}

	if m.rules.Match(strings.Split(rel, "/"), isDir) {
		return true, nil
	}

	if m.extra != nil {
		matched, err := m.extra.MatchesOrParentMatches(filepath.FromSlash(rel))
		if err != nil {
			return true, errors.IgnoreEvalFailed(rel, err)
		}
		if matched {
			return true, nil
		}
	}

	return false, nil
}

// IsIgnored is Match with evaluation failures treated as ignored. Failures
// are logged.
func (m *Matcher) IsIgnored(rel string, isDir bool) bool {
	ignored, err := m.Match(rel, isDir)
	if err != nil {
		if m.log != nil {
			m.log.WithError(err).WithField("path", rel).Warn("Ignore rule evaluation failed, treating path as ignored")
		}
		return true
	}
	return ignored
}

// IsIgnoredDir is IsIgnored for a directory.
func (m *Matcher) IsIgnoredDir(rel string) bool {
	return m.IsIgnored(rel, true)
}
