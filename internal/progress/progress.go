// Package progress defines the ProgressSink contract (spec.md §4.6, §6) and
// its implementations: a no-op sink, a terminal progress-bar sink, and a
// test-capturing sink.
//
// Adapted from the teacher's internal/progress.Bar wrapper, which hid a
// single schollz/progressbar instance behind an enabled/disabled switch.
// Here the sink is an explicit value threaded through Run(...) instead of a
// package-level/constructor-scoped object, per spec.md §9's instruction to
// replace implicit progress singletons with an explicit interface.
package progress

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/jdoe/dupescan/internal/report"
)

// Phase names a discrete stage of the pipeline.
type Phase string

const (
	PhaseWalk    Phase = "walk"
	PhaseStage1  Phase = "stage1"
	PhaseStage2  Phase = "stage2"
	PhaseStage3  Phase = "stage3"
	PhaseRollup  Phase = "rollup"
)

// Event is one lifecycle notification emitted during a run.
type Event struct {
	Kind EventKind

	// Started
	Root string

	// FileDiscovered
	Path string
	Size int64

	// StageProgress
	Phase Phase
	Done  int64
	Total int64

	// Finished
	Stats report.Stats
}

// EventKind discriminates the Event union.
type EventKind int

const (
	Started EventKind = iota
	FileDiscovered
	StageProgress
	Finished
)

// Sink receives lifecycle events. Implementations must be safe for
// concurrent use: the walker and worker pool both emit events from many
// goroutines.
type Sink interface {
	OnEvent(Event)
}

// NoopSink discards every event. Used for JSON-mode runs and tests that
// don't care about progress.
type NoopSink struct{}

func (NoopSink) OnEvent(Event) {}

// TerminalSink renders a spinner/progress-bar to stderr via
// schollz/progressbar, throttled the same way the teacher throttles its
// Bar (50ms).
type TerminalSink struct {
	mu         sync.Mutex
	bar        *progressbar.ProgressBar
	phase      Phase
	discovered int64
	verbose    bool
}

const updateInterval = 50 * time.Millisecond

// NewTerminalSink creates a spinner-mode progress sink writing to stderr.
// When verbose is true, every discovered file updates the spinner
// description (its path is shown); otherwise the description is refreshed
// only every 256 files, to keep output from the walker's concurrent
// goroutines from interleaving faster than a human can read.
func NewTerminalSink(verbose bool) *TerminalSink {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
	)
	return &TerminalSink{bar: bar, verbose: verbose}
}

func (s *TerminalSink) OnEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case Started:
		s.bar.Describe(fmt.Sprintf("scanning %s", e.Root))
	case FileDiscovered:
		s.discovered++
		if s.verbose {
			s.bar.Describe(fmt.Sprintf("discovered %s (%s)", e.Path, humanize.Bytes(uint64(e.Size))))
		} else if s.discovered%256 == 0 {
			s.bar.Describe(fmt.Sprintf("discovered %d files", s.discovered))
		}
	case StageProgress:
		s.phase = e.Phase
		if e.Total > 0 {
			s.bar.Describe(fmt.Sprintf("%s: %d/%d", e.Phase, e.Done, e.Total))
		} else {
			s.bar.Describe(fmt.Sprintf("%s: %d", e.Phase, e.Done))
		}
	case Finished:
		_ = s.bar.Finish()
		fmt.Fprintf(os.Stderr, "✔ scanned %d files, found %d duplicate bytes\n",
			e.Stats.FilesScanned, e.Stats.DuplicateBytes)
	}
}

// CapturingSink records every event it receives, in order, for assertions
// in tests.
type CapturingSink struct {
	mu     sync.Mutex
	Events []Event
}

// NewCapturingSink creates an empty CapturingSink.
func NewCapturingSink() *CapturingSink {
	return &CapturingSink{}
}

func (s *CapturingSink) OnEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, e)
}

// Snapshot returns a copy of the recorded events so far.
func (s *CapturingSink) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.Events))
	copy(out, s.Events)
	return out
}
