package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/ziadkadry99/doc-qa/internal/embeddings"
)

// Reporter provides progress feedback while passages are embedded.
type Reporter interface {
	Start(total int, description string)
	Update(current int)
	Finish()
}

// NewReporter returns a TerminalReporter if running in an interactive terminal,
// or a CIReporter if the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{Out: os.Stderr}
	}
	return &TerminalReporter{Out: os.Stderr}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	Out io.Writer
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int, description string) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.Out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int) {
	if r.bar != nil {
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	Out         io.Writer
	total       int
	description string
}

func (r *CIReporter) Start(total int, description string) {
	r.total = total
	r.description = description
	fmt.Fprintf(r.Out, "%s: %d passages\n", description, total)
}

func (r *CIReporter) Update(current int) {
	fmt.Fprintf(r.Out, "[%d/%d] %s\n", current, r.total, r.description)
}

func (r *CIReporter) Finish() {
	fmt.Fprintf(r.Out, "%s complete\n", r.description)
}

// Tracker adapts a Reporter to an embeddings.ProgressFunc. The reporter is
// started on the first callback, once the total is known. Callbacks may
// arrive from several goroutines and out of order; the reported count
// never goes backwards.
type Tracker struct {
	mu          sync.Mutex
	reporter    Reporter
	description string
	started     bool
	current     int
}

// NewTracker creates a Tracker for r.
func NewTracker(r Reporter, description string) *Tracker {
	return &Tracker{reporter: r, description: description}
}

// Func returns the callback to hand to the embedding pool.
func (t *Tracker) Func() embeddings.ProgressFunc {
	return func(done, total int) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.started {
			t.reporter.Start(total, t.description)
			t.started = true
		}
		if done <= t.current {
			return
		}
		t.current = done
		t.reporter.Update(done)
	}
}

// Finish finishes the reporter if it was started.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		t.reporter.Finish()
		t.started = false
		t.current = 0
	}
}
