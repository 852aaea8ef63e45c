package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "info"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\nbuild/\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", ".gitignore"), []byte("secret.txt\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "info", "exclude"), []byte("local.env\n"), 0o644))
	return dir
}

func TestMatch(t *testing.T) {
	dir := setup(t)

	m, err := Load(dir, []string{"tmp/**"}, nil)
	require.NoError(t, err)

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"main.go", false, false},
		{"debug.log", false, true},
		{"nested/trace.log", false, true},
		{"build", true, true},
		{"build/out.bin", false, true},
		{"sub/secret.txt", false, true},
		{"secret.txt", false, false},
		{"local.env", false, true},
		{"tmp/cache/x", false, true},
		{"tmpfile", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := m.Match(tt.path, tt.isDir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadRejectsBadExclude(t *testing.T) {
	dir := setup(t)

	_, err := Load(dir, []string{"["}, nil)
	assert.Error(t, err)
}

func TestIsIgnoredFailsSafe(t *testing.T) {
	dir := setup(t)
	logger, hook := test.NewNullLogger()

	m, err := Load(dir, nil, logrus.NewEntry(logger))
	require.NoError(t, err)
	assert.False(t, m.IsIgnored("main.go", false))
	assert.True(t, m.IsIgnoredDir("build"))
	assert.Empty(t, hook.Entries)
}
