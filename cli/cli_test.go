package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/grovetools/gitbutler/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHint(t *testing.T) {
	assert.Contains(t, Hint(errors.NotARepository("/tmp/x", nil)), "/tmp/x")
	assert.Contains(t, Hint(errors.ProjectNotFound("p1")), "projects ls")
	assert.Contains(t, Hint(errors.New(errors.ErrCodeAlreadyRunning, "x").WithDetail("pid", 7)), "pid 7")
	assert.Empty(t, Hint(errors.New(errors.ErrCodeInternal, "x")))
}

func TestExecuteReportsErrors(t *testing.T) {
	root := NewStandardCommand("gitbutler", "test")
	root.AddCommand(&cobra.Command{
		Use: "fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.ProjectNotFound("p1")
		},
	})

	var stderr bytes.Buffer
	root.SetErr(&stderr)
	root.SetArgs([]string{"fail"})

	assert.Equal(t, 1, Execute(root))
	assert.Contains(t, stderr.String(), "PROJECT_NOT_FOUND")
	assert.Contains(t, stderr.String(), "projects ls")
}

func TestVersionCommandJSON(t *testing.T) {
	root := NewStandardCommand("gitbutler", "test")
	root.AddCommand(NewVersionCommand("gitbutler"))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--json"})
	require.NoError(t, root.Execute())

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, "dev", info["version"])
}

func TestDocsCommand(t *testing.T) {
	cmd := NewDocsCommand("schema", "print", func() ([]byte, error) { return []byte(`{"a":1}`), nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "{\"a\":1}\n", out.String())
}

func TestParseChoices(t *testing.T) {
	desc, choices := parseChoices("Digest case: lower, upper, or mixed")
	assert.Equal(t, "Digest case:", desc)
	assert.Equal(t, []string{"lower", "upper", "mixed"}, choices)

	desc, choices = parseChoices("Plain usage")
	assert.Equal(t, "Plain usage", desc)
	assert.Nil(t, choices)
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "one two\nthree", wrapText("one two three", 8))
}
