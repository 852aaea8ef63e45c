package profiling

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderDisabled(t *testing.T) {
	r := &Recorder{}
	r.Start("build").Stop()

	var out bytes.Buffer
	r.Summarize(&out)
	assert.Empty(t, out.String())
}

func TestRecorderAggregatesConcurrentSpans(t *testing.T) {
	r := &Recorder{}
	r.Enable()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Start("build").Stop()
		}()
	}
	wg.Wait()
	r.Start("commit").Stop()

	var out bytes.Buffer
	r.Summarize(&out)
	text := out.String()

	require.Contains(t, text, "- build: 8×")
	require.Contains(t, text, "- commit: 1×")
	assert.Less(t, strings.Index(text, "build"), strings.Index(text, "commit"))
}

func TestCobraProfilerWritesHeapProfile(t *testing.T) {
	heap := filepath.Join(t.TempDir(), "heap.pprof")

	root := &cobra.Command{Use: "gitbutler", RunE: func(*cobra.Command, []string) error { return nil }}
	p := NewCobraProfiler()
	p.AddFlags(root)
	root.PersistentPreRunE = p.PreRun
	root.PersistentPostRunE = p.PostRun

	var stderr bytes.Buffer
	root.SetErr(&stderr)
	root.SetArgs([]string{"--mem-profile", heap})
	require.NoError(t, root.Execute())

	info, err := os.Stat(heap)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.Contains(t, stderr.String(), "heap profile: "+heap)
}
