package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
)

// CobraProfiler binds --cpu-profile, --mem-profile and --timing to a
// command tree.
type CobraProfiler struct {
	cpuPath string
	memPath string
	timing  bool

	cpuFile *os.File
}

func NewCobraProfiler() *CobraProfiler {
	return &CobraProfiler{}
}

// AddFlags registers the profiling flags as persistent flags of cmd.
func (p *CobraProfiler) AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&p.cpuPath, "cpu-profile", "", "Write a pprof CPU profile to this file")
	flags.StringVar(&p.memPath, "mem-profile", "", "Write a pprof heap profile to this file on exit")
	flags.BoolVar(&p.timing, "timing", false, "Print snapshot phase timings on exit")
}

// PreRun starts CPU profiling and phase timing. Use as PersistentPreRunE.
func (p *CobraProfiler) PreRun(cmd *cobra.Command, _ []string) error {
	if p.timing {
		Enable()
	}
	if p.cpuPath == "" {
		return nil
	}

	f, err := os.Create(p.cpuPath)
	if err != nil {
		return fmt.Errorf("create cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("start cpu profile: %w", err)
	}
	p.cpuFile = f
	return nil
}

// PostRun flushes profiles and the timing summary to the command's stderr.
// Use as PersistentPostRunE.
func (p *CobraProfiler) PostRun(cmd *cobra.Command, _ []string) error {
	stderr := cmd.ErrOrStderr()

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		err := p.cpuFile.Close()
		p.cpuFile = nil
		if err != nil {
			return fmt.Errorf("close cpu profile: %w", err)
		}
		fmt.Fprintf(stderr, "cpu profile: %s\n", p.cpuPath)
	}

	if p.memPath != "" {
		if err := writeHeapProfile(p.memPath); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "heap profile: %s\n", p.memPath)
	}

	if p.timing {
		Summarize(stderr)
	}
	return nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write heap profile: %w", err)
	}
	return f.Close()
}
