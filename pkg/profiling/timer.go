// Package profiling records how long the phases of a snapshot take.
// Timing is off until Enable is called; Start is then safe to use from
// several project watchers at once.
package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stopper is an interface for stopping a timed span.
type Stopper interface {
	Stop()
}

// phase aggregates every span recorded under one name.
type phase struct {
	count int
	total time.Duration
	max   time.Duration
	first time.Time
}

type span struct {
	name  string
	start time.Time
	rec   *Recorder
}

// Stop completes the timing for this span.
func (s *span) Stop() {
	s.rec.observe(s.name, s.start, time.Since(s.start))
}

// Recorder collects phase durations.
type Recorder struct {
	enabled atomic.Bool
	mu      sync.Mutex
	phases  map[string]*phase
}

var defaultRecorder = &Recorder{}

// Enable turns on the global recorder.
func Enable() {
	defaultRecorder.Enable()
}

// Start begins a span of the named phase on the global recorder.
// It returns a Stopper which must be used to end the span, typically via defer.
func Start(name string) Stopper {
	return defaultRecorder.Start(name)
}

// Summarize prints the global recorder's phases to w.
func Summarize(w io.Writer) {
	defaultRecorder.Summarize(w)
}

// Enable turns the recorder on.
func (r *Recorder) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phases == nil {
		r.phases = make(map[string]*phase)
	}
	r.enabled.Store(true)
}

// Start begins a span of the named phase.
func (r *Recorder) Start(name string) Stopper {
	if !r.enabled.Load() {
		return noopStopper{}
	}
	return &span{name: name, start: time.Now(), rec: r}
}

func (r *Recorder) observe(name string, start time.Time, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.phases[name]
	if !ok {
		p = &phase{first: start}
		r.phases[name] = p
	}
	p.count++
	p.total += d
	if d > p.max {
		p.max = d
	}
}

// Summarize prints one line per phase, in the order phases first ran.
func (r *Recorder) Summarize(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled.Load() || len(r.phases) == 0 {
		return
	}

	names := make([]string, 0, len(r.phases))
	for name := range r.phases {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return r.phases[names[i]].first.Before(r.phases[names[j]].first)
	})

	fmt.Fprintln(w, "\n--- Timing Profile ---")
	for _, name := range names {
		p := r.phases[name]
		avg := p.total / time.Duration(p.count)
		fmt.Fprintf(w, "- %s: %d× total %v, avg %v, max %v\n", name, p.count,
			p.total.Round(100*time.Microsecond), avg.Round(100*time.Microsecond), p.max.Round(100*time.Microsecond))
	}
	fmt.Fprintln(w, "--------------------")
}

// noopStopper is used when the recorder is disabled.
type noopStopper struct{}

func (s noopStopper) Stop() {}
