package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GB_TEST_DIR", "projects")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "tilde", in: "~/code", want: filepath.Join(home, "code")},
		{name: "bare tilde", in: "~", want: home},
		{name: "env var", in: "~/$GB_TEST_DIR/x", want: filepath.Join(home, "projects", "x")},
		{name: "absolute", in: "/tmp/a/../b", want: "/tmp/b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSameFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	require.NoError(t, os.Mkdir(real, 0o755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(real, link))

	assert.True(t, Same(real, link))
	assert.True(t, Same(real, filepath.Join(real, ".")))
	assert.False(t, Same(real, dir))
}
